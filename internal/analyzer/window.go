package analyzer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yourusername/smart-charge/internal/models"
)

var (
	ErrNoData            = fmt.Errorf("%w: price and carbon series must both be non-empty", ErrData)
	ErrNoOverlap         = fmt.Errorf("%w: no price and carbon slots share a timestamp", ErrData)
	ErrInsufficientSlots = fmt.Errorf("%w: not enough aligned slots for the requested duration", ErrData)
	ErrInvalidDuration   = fmt.Errorf("%w: charge duration must be at least one slot", ErrData)
)

// FallbackBaselineCost is used when no window exists at the baseline time.
const FallbackBaselineCost = 5.0

// baselineMultiplier approximates peak-time cost when no baseline time is given.
const baselineMultiplier = 1.5

// AlignedSlot is a price and carbon observation sharing a timestamp.
type AlignedSlot struct {
	Time   time.Time
	Price  float64
	Carbon float64
}

// Align inner-joins the two series on exact timestamp and sorts chronologically.
func Align(prices []models.PriceSlot, carbon []models.CarbonSlot) ([]AlignedSlot, error) {
	if len(prices) == 0 || len(carbon) == 0 {
		return nil, ErrNoData
	}

	byTime := make(map[int64]int, len(carbon))
	for _, c := range carbon {
		byTime[c.Time.UnixNano()] = c.Intensity
	}

	aligned := make([]AlignedSlot, 0, len(prices))
	seen := make(map[int64]bool, len(prices))
	for _, p := range prices {
		key := p.Time.UnixNano()
		intensity, ok := byTime[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		aligned = append(aligned, AlignedSlot{Time: p.Time, Price: p.Price, Carbon: float64(intensity)})
	}
	if len(aligned) == 0 {
		return nil, ErrNoOverlap
	}

	sort.Slice(aligned, func(i, j int) bool { return aligned[i].Time.Before(aligned[j].Time) })
	return aligned, nil
}

// SlotsFor converts a charge duration in hours to half-hour slots, rounding to nearest.
func SlotsFor(hours float64) int {
	return int(math.Round(hours * 2))
}

// WindowSelector finds the best contiguous charging interval.
type WindowSelector struct {
	scorer    *Scorer
	chargerKW float64
}

// NewWindowSelector uses the default 7.4kW charger when chargerKW <= 0.
func NewWindowSelector(scorer *Scorer, chargerKW float64) *WindowSelector {
	if chargerKW <= 0 {
		chargerKW = models.DefaultChargerKW
	}
	return &WindowSelector{scorer: scorer, chargerKW: chargerKW}
}

// Scorer returns the scorer used for ranking windows.
func (ws *WindowSelector) Scorer() *Scorer {
	return ws.scorer
}

// FindOptimalWindow slides a window of round(hours*2) aligned slots across the series
// and returns the highest scoring one. Ties keep the earliest window.
// baseline is optional; see baselineCost.
func (ws *WindowSelector) FindOptimalWindow(prices []models.PriceSlot, carbon []models.CarbonSlot, hours float64, baseline *time.Time) (*models.ChargingWindow, error) {
	aligned, err := Align(prices, carbon)
	if err != nil {
		return nil, err
	}

	needed := SlotsFor(hours)
	if needed < 1 {
		return nil, ErrInvalidDuration
	}
	if len(aligned) < needed {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientSlots, needed, len(aligned))
	}

	bestStart := -1
	bestScore := math.Inf(-1)
	for i := 0; i+needed <= len(aligned); i++ {
		avgPrice, avgCarbon := averages(aligned[i : i+needed])
		if score := ws.scorer.OpportunityScore(avgPrice, avgCarbon); score > bestScore {
			bestScore = score
			bestStart = i
		}
	}

	best := aligned[bestStart : bestStart+needed]
	avgPrice, avgCarbonExact := averages(best)
	avgCarbon := int(avgCarbonExact)

	kwh := hours * ws.chargerKW
	totalCost := avgPrice * kwh / 100

	var baselineCost float64
	if baseline != nil {
		baselineCost = baselineCostAt(aligned, *baseline, needed, kwh)
	} else {
		baselineCost = totalCost * baselineMultiplier
	}

	return &models.ChargingWindow{
		Start:             best[0].Time,
		End:               best[0].Time.Add(time.Duration(needed) * models.SlotDuration),
		AvgPrice:          avgPrice,
		AvgCarbon:         avgCarbon,
		TotalCost:         totalCost,
		TotalCarbon:       int(math.Round(float64(avgCarbon) * kwh)),
		OpportunityScore:  bestScore,
		Rating:            Classify(bestScore),
		Reason:            ws.scorer.Reason(avgPrice, float64(avgCarbon)),
		SavingsVsBaseline: baselineCost - totalCost,
		KWh:               kwh,
	}, nil
}

// baselineCostAt prices the window starting at the first aligned slot at or after t.
// When that window would run past the series the fixed fallback is returned.
func baselineCostAt(aligned []AlignedSlot, t time.Time, needed int, kwh float64) float64 {
	for i, s := range aligned {
		if s.Time.Before(t) {
			continue
		}
		if i+needed > len(aligned) {
			return FallbackBaselineCost
		}
		avgPrice, _ := averages(aligned[i : i+needed])
		return avgPrice * kwh / 100
	}
	return FallbackBaselineCost
}

func averages(slots []AlignedSlot) (price, carbon float64) {
	for _, s := range slots {
		price += s.Price
		carbon += s.Carbon
	}
	n := float64(len(slots))
	return price / n, carbon / n
}
