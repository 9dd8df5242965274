package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/logger"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/stats"
	"github.com/yourusername/smart-charge/internal/store"
)

const (
	// DefaultRetentionDays is how long a target date is kept after it passes.
	DefaultRetentionDays = 30
	// DefaultSignificantChange is the consecutive-snapshot drift, in percentage points, worth alerting on.
	DefaultSignificantChange = 10.0
	// DefaultMinDrift is the overall drift threshold for ForecastsWithDrift.
	DefaultMinDrift = 10.0

	evolutionVersion = "1.0"
)

// Confidence blend weights.
const (
	timeWeight     = 0.40
	sourceWeight   = 0.35
	accuracyWeight = 0.25
)

// EvolutionConfig configures an EvolutionTracker.
type EvolutionConfig struct {
	RetentionDays     int     `mapstructure:"retention_days"`
	SignificantChange float64 `mapstructure:"significant_change"`
}

// DefaultEvolutionConfig returns the standard retention and alert threshold.
func DefaultEvolutionConfig() EvolutionConfig {
	return EvolutionConfig{
		RetentionDays:     DefaultRetentionDays,
		SignificantChange: DefaultSignificantChange,
	}
}

// EvolutionTracker records daily snapshots of the prediction for each future target date.
type EvolutionTracker struct {
	store  *store.Store
	clock  clock.Clock
	cfg    EvolutionConfig
	logger *logger.ForecastLogger
	audit  *logger.AuditLogger
}

// NewEvolutionTracker creates a tracker persisting to st.
func NewEvolutionTracker(st *store.Store, cfg EvolutionConfig, log *logrus.Logger) *EvolutionTracker {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
	if cfg.SignificantChange <= 0 {
		cfg.SignificantChange = DefaultSignificantChange
	}
	base := logger.OrDiscard(log)
	return &EvolutionTracker{
		store:  st,
		clock:  st.Clock(),
		cfg:    cfg,
		logger: logger.NewForecastLogger(base),
		audit:  logger.NewAuditLogger(base),
	}
}

// today is the current UTC calendar day, the zone every date key is written in.
func (t *EvolutionTracker) today() time.Time {
	return clock.Today(t.clock.Now().UTC())
}

func (t *EvolutionTracker) load() models.EvolutionDocument {
	doc := store.Load[models.EvolutionDocument](t.store, store.ForecastEvolution)
	t.normalize(&doc)
	return doc
}

func (t *EvolutionTracker) normalize(doc *models.EvolutionDocument) {
	if doc.TargetForecasts == nil {
		doc.TargetForecasts = make(map[string]*models.TargetForecastRecord)
	}
	if doc.Metadata.Version == "" {
		doc.Metadata.Version = evolutionVersion
	}
	doc.Metadata.RetentionDays = t.cfg.RetentionDays
}

func (t *EvolutionTracker) update(ctx context.Context, fn func(*models.EvolutionDocument) error) error {
	return store.Update(ctx, t.store, store.ForecastEvolution, func(doc *models.EvolutionDocument) error {
		t.normalize(doc)
		return fn(doc)
	})
}

// RecordSnapshot stores today's view of the prediction for targetDate.
// Past targets are ignored. A second snapshot on the same day replaces the first.
// It returns the stored snapshot, or nil when nothing was recorded.
func (t *EvolutionTracker) RecordSnapshot(ctx context.Context, targetDate string, p models.Prediction, historicalMAE *float64) (*models.ForecastSnapshot, error) {
	today := t.today()
	target, err := clock.ParseDate(targetDate, today.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid target date %q", ErrValidation, targetDate)
	}
	if target.Before(today) {
		t.logger.WithField("target_date", targetDate).Debug("Skipping snapshot for past date")
		return nil, nil
	}

	daysOut := clock.DaysBetween(today, target)
	snap := models.ForecastSnapshot{
		SnapshotDate:        today.Format(clock.DateLayout),
		SnapshotTimestamp:   t.clock.Now(),
		DaysUntilTarget:     daysOut,
		PriceSource:         p.PriceSource,
		PredictedAvgPrice:   p.AvgPrice,
		PredictedCost:       p.Cost,
		PredictedSavingsPct: SavingsPct(p.Cost, p.SavingsVsToday),
		Rating:              p.Rating,
		OptimalWindow:       p.Window,
		ConfidenceScore:     Confidence(daysOut, p.PriceSource, historicalMAE),
	}
	if err := t.store.Validate(&snap); err != nil {
		return nil, err
	}

	var replaced bool
	err = t.update(ctx, func(doc *models.EvolutionDocument) error {
		rec, ok := doc.TargetForecasts[targetDate]
		if !ok {
			rec = &models.TargetForecastRecord{TargetDate: targetDate}
			doc.TargetForecasts[targetDate] = rec
		}
		kept := rec.Snapshots[:0]
		for _, s := range rec.Snapshots {
			if s.SnapshotDate == snap.SnapshotDate {
				replaced = true
				continue
			}
			kept = append(kept, s)
		}
		rec.Snapshots = append(kept, snap)
		sort.SliceStable(rec.Snapshots, func(i, j int) bool {
			return rec.Snapshots[i].SnapshotDate < rec.Snapshots[j].SnapshotDate
		})
		rec.EvolutionSummary = Summarize(rec.Snapshots)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	t.logger.LogSnapshotRecorded(targetDate, daysOut, snap.PredictedSavingsPct, snap.ConfidenceScore, replaced)
	return &snap, nil
}

// SavingsPct expresses savingsVsToday as a percentage of today's implied cost
// (cost + savingsVsToday), rounded to 2dp. It is 0 when that cost is not positive.
func SavingsPct(cost, savingsVsToday float64) float64 {
	todayCost := cost + savingsVsToday
	if todayCost <= 0 {
		return 0
	}
	return stats.Round(savingsVsToday/todayCost*100, 2)
}

// Confidence blends horizon, data source and historical accuracy into a 0-100 score.
func Confidence(daysOut int, source models.DataOrigin, historicalMAE *float64) int {
	blend := timeWeight*timeScore(daysOut) +
		sourceWeight*sourceScore(source) +
		accuracyWeight*accuracyScore(historicalMAE)
	return int(math.Round(blend))
}

func timeScore(daysOut int) float64 {
	switch {
	case daysOut <= 1:
		return 100
	case daysOut == 2:
		return 85
	case daysOut <= 4:
		return 60
	default:
		return math.Max(30, 100-10*float64(daysOut))
	}
}

func sourceScore(source models.DataOrigin) float64 {
	if source.IsSettled() {
		return 100
	}
	return 50
}

func accuracyScore(mae *float64) float64 {
	switch {
	case mae == nil || *mae > 5:
		return 40
	case *mae < 2:
		return 100
	default:
		return math.Max(40, 100-12**mae)
	}
}

// Summarize derives the evolution summary from chronologically sorted snapshots.
func Summarize(snapshots []models.ForecastSnapshot) *models.EvolutionSummary {
	if len(snapshots) == 0 {
		return nil
	}
	first, last := snapshots[0], snapshots[len(snapshots)-1]
	costs := make([]float64, len(snapshots))
	for i, s := range snapshots {
		costs[i] = s.PredictedCost
	}
	drift := last.PredictedSavingsPct - first.PredictedSavingsPct

	return &models.EvolutionSummary{
		InitialSavingsPct:     first.PredictedSavingsPct,
		CurrentSavingsPct:     last.PredictedSavingsPct,
		SavingsDrift:          stats.Round(drift, 2),
		SavingsDriftDirection: models.DirectionOf(drift),
		PriceVolatility:       stats.Round(stats.PopStdDev(costs), 2),
		NumSnapshots:          len(snapshots),
		FirstSnapshot:         first.SnapshotDate,
		LastUpdated:           last.SnapshotTimestamp,
	}
}

// Evolution returns the record for targetDate, or nil if it is not tracked.
func (t *EvolutionTracker) Evolution(targetDate string) *models.TargetForecastRecord {
	return t.load().TargetForecasts[targetDate]
}

// LatestSnapshot returns the newest snapshot for targetDate, or nil.
func (t *EvolutionTracker) LatestSnapshot(targetDate string) *models.ForecastSnapshot {
	rec := t.Evolution(targetDate)
	if rec == nil {
		return nil
	}
	return rec.Latest()
}

// TrackedDates returns all tracked target dates in ascending order.
func (t *EvolutionTracker) TrackedDates() []string {
	doc := t.load()
	dates := make([]string, 0, len(doc.TargetForecasts))
	for d := range doc.TargetForecasts {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// DetectSignificantChange compares the two newest snapshots for targetDate and
// returns a change when their savings differ by at least the configured threshold.
func (t *EvolutionTracker) DetectSignificantChange(targetDate string) *models.SignificantChange {
	rec := t.Evolution(targetDate)
	if rec == nil || len(rec.Snapshots) < 2 {
		return nil
	}
	prev := rec.Snapshots[len(rec.Snapshots)-2]
	cur := rec.Snapshots[len(rec.Snapshots)-1]
	drift := stats.Round(cur.PredictedSavingsPct-prev.PredictedSavingsPct, 2)
	if math.Abs(drift) < t.cfg.SignificantChange {
		return nil
	}

	direction := models.DriftImproved
	if drift < 0 {
		direction = models.DriftWorsened
	}
	t.logger.LogSignificantChange(targetDate, prev.PredictedSavingsPct, cur.PredictedSavingsPct, drift)
	return &models.SignificantChange{
		TargetDate:           targetDate,
		PreviousSavingsPct:   prev.PredictedSavingsPct,
		CurrentSavingsPct:    cur.PredictedSavingsPct,
		SavingsDrift:         drift,
		DriftDirection:       direction,
		PreviousSnapshotDate: prev.SnapshotDate,
		CurrentSnapshotDate:  cur.SnapshotDate,
		ConfidenceScore:      cur.ConfidenceScore,
		PriceSource:          cur.PriceSource,
	}
}

// ForecastsWithDrift returns targets whose first-to-last drift is at least minDrift,
// largest absolute drift first.
func (t *EvolutionTracker) ForecastsWithDrift(minDrift float64) []models.DriftedForecast {
	var out []models.DriftedForecast
	for date, rec := range t.load().TargetForecasts {
		s := rec.EvolutionSummary
		if s == nil || math.Abs(s.SavingsDrift) < minDrift {
			continue
		}
		out = append(out, models.DriftedForecast{
			TargetDate:        date,
			InitialSavingsPct: s.InitialSavingsPct,
			CurrentSavingsPct: s.CurrentSavingsPct,
			SavingsDrift:      s.SavingsDrift,
			NumSnapshots:      len(rec.Snapshots),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := math.Abs(out[i].SavingsDrift), math.Abs(out[j].SavingsDrift)
		if di != dj {
			return di > dj
		}
		return out[i].TargetDate < out[j].TargetDate
	})
	return out
}

// RecordActualResult writes the realized outcome for a tracked target once.
// Untracked targets and repeat writes are logged and ignored. It reports whether a write happened.
func (t *EvolutionTracker) RecordActualResult(ctx context.Context, targetDate string, actualCost, actualAvgPrice float64) (bool, error) {
	var written bool
	err := t.update(ctx, func(doc *models.EvolutionDocument) error {
		rec, ok := doc.TargetForecasts[targetDate]
		if !ok {
			t.logger.WithField("target_date", targetDate).Warn("No forecast evolution data for target date")
			return errSkipWrite
		}
		if rec.ActualResult != nil {
			t.logger.WithField("target_date", targetDate).Warn("Actual result already recorded, ignoring")
			return errSkipWrite
		}
		rec.ActualResult = &models.ActualResult{
			RecordedAt:     t.clock.Now(),
			ActualCost:     actualCost,
			ActualAvgPrice: actualAvgPrice,
		}
		written = true
		return nil
	})
	if err == errSkipWrite {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to save actual result: %w", err)
	}
	t.audit.LogActualResult(targetDate, actualCost, actualAvgPrice)
	return written, nil
}

// CleanupOldData removes targets dated before today minus the retention period.
func (t *EvolutionTracker) CleanupOldData(ctx context.Context) (int, error) {
	cutoff := t.today().AddDate(0, 0, -t.cfg.RetentionDays).Format(clock.DateLayout)
	var removed, remaining int
	err := t.update(ctx, func(doc *models.EvolutionDocument) error {
		for date := range doc.TargetForecasts {
			if date < cutoff {
				delete(doc.TargetForecasts, date)
				removed++
			}
		}
		remaining = len(doc.TargetForecasts)
		if removed == 0 {
			return errSkipWrite
		}
		now := t.clock.Now()
		doc.Metadata.LastCleanup = &now
		return nil
	})
	if err != nil && err != errSkipWrite {
		return 0, fmt.Errorf("failed to clean evolution data: %w", err)
	}
	if removed > 0 {
		t.logger.LogCleanup(removed, remaining)
	}
	return removed, nil
}

// errSkipWrite aborts a store update without it being reported as a failure.
var errSkipWrite = fmt.Errorf("no changes")
