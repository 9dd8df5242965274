// Package costtracker aggregates logged charges into monthly cost summaries
// and compares them against flat-rate baselines.
package costtracker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/smart-charge/internal/clock"
	"github.com/yourusername/smart-charge/internal/logger"
	"github.com/yourusername/smart-charge/internal/models"
	"github.com/yourusername/smart-charge/internal/repository"
	"github.com/yourusername/smart-charge/internal/stats"
	"github.com/yourusername/smart-charge/internal/store"
)

const (
	// StandardRate is a typical flat unit rate in p/kWh.
	StandardRate = 15.0
	// PeakRate is the evening rate charging would otherwise happen at.
	PeakRate = 20.0

	lookbackDays = 90
)

// Baselines compares actual spend with flat-rate charging.
type Baselines struct {
	StandardCost    float64 `json:"standard_baseline_cost"`
	PeakCost        float64 `json:"peak_baseline_cost"`
	StandardSavings float64 `json:"standard_savings"`
	PeakSavings     float64 `json:"peak_savings"`
}

// MonthlySummary is the cost picture for one calendar month.
type MonthlySummary struct {
	Year              int                   `json:"year"`
	Month             int                   `json:"month"`
	TotalCost         float64               `json:"total_cost"`
	TotalSavings      float64               `json:"total_savings"`
	NumCharges        int                   `json:"num_charges"`
	AvgCostPerCharge  float64               `json:"avg_cost_per_charge"`
	AdherenceRate     float64               `json:"adherence_rate"`
	ChargesOnGoodDays int                   `json:"charges_on_good_days"`
	GoodOpportunities int                   `json:"good_opportunities"`
	ChargesByRating   map[models.Rating]int `json:"charges_by_rating"`
	Baselines         Baselines             `json:"baseline_comparisons"`
	KWhPerCharge      float64               `json:"kwh_per_charge"`
	GeneratedAt       time.Time             `json:"generated_at"`
}

// Period returns the month as "2006-01".
func (s MonthlySummary) Period() string {
	return fmt.Sprintf("%04d-%02d", s.Year, s.Month)
}

// Projection extrapolates the year from saved monthly summaries.
type Projection struct {
	Year                   int     `json:"year"`
	YTDCost                float64 `json:"ytd_cost"`
	YTDSavings             float64 `json:"ytd_savings"`
	YTDCharges             int     `json:"ytd_charges"`
	ProjectedAnnualCost    float64 `json:"projected_annual_cost"`
	ProjectedAnnualSavings float64 `json:"projected_annual_savings"`
	ProjectedAnnualCharges int     `json:"projected_annual_charges"`
	MonthsOfData           int     `json:"months_of_data"`
}

type history struct {
	MonthlySummaries []MonthlySummary `json:"monthly_summaries"`
}

// Tracker reads recommendations and logged charges through the repositories.
type Tracker struct {
	recs    repository.RecommendationRepository
	actions repository.UserActionRepository
	store   *store.Store
	clock   clock.Clock
	logger  *logrus.Entry
}

// NewTracker creates a cost tracker. Summaries are kept in st.
func NewTracker(repos *repository.Repositories, st *store.Store, log *logrus.Logger) *Tracker {
	return &Tracker{
		recs:    repos.Recommendations,
		actions: repos.UserActions,
		store:   st,
		clock:   st.Clock(),
		logger:  logger.OrDiscard(log).WithField("component", "cost_tracker"),
	}
}

// AggregateMonth totals the charges logged in a month. A charge is costed
// from the recommendation for the same date; charges without one still count.
func (t *Tracker) AggregateMonth(ctx context.Context, year, month int) (*MonthlySummary, error) {
	allRecs, err := t.recs.Recommendations(ctx, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendations: %w", err)
	}
	allActions, err := t.actions.UserActions(ctx, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load user actions: %w", err)
	}

	byDate := make(map[string]models.Recommendation)
	good := 0
	for _, r := range allRecs {
		if !inMonth(r.Date, year, month) {
			continue
		}
		byDate[r.Date] = r
	}
	for _, r := range byDate {
		if r.IsGoodOpportunity() {
			good++
		}
	}

	summary := &MonthlySummary{
		Year:              year,
		Month:             month,
		GoodOpportunities: good,
		ChargesByRating: map[models.Rating]int{
			models.RatingExcellent: 0,
			models.RatingGood:      0,
			models.RatingAverage:   0,
			models.RatingPoor:      0,
		},
	}
	cost, savings := decimal.Zero, decimal.Zero
	for _, a := range allActions {
		if !inMonth(a.Date, year, month) {
			continue
		}
		summary.NumCharges++
		r, ok := byDate[a.Date]
		if !ok {
			continue
		}
		cost = cost.Add(decimal.NewFromFloat(r.TotalCost))
		savings = savings.Add(decimal.NewFromFloat(r.Savings))
		if r.IsGoodOpportunity() {
			summary.ChargesOnGoodDays++
		}
		summary.ChargesByRating[r.Rating]++
	}

	summary.TotalCost = cost.Round(2).InexactFloat64()
	summary.TotalSavings = savings.Round(2).InexactFloat64()
	if summary.NumCharges > 0 {
		summary.AvgCostPerCharge = cost.Div(decimal.NewFromInt(int64(summary.NumCharges))).Round(2).InexactFloat64()
	}
	if good > 0 {
		summary.AdherenceRate = stats.Round(float64(summary.ChargesOnGoodDays)/float64(good)*100, 1)
	}
	return summary, nil
}

// CompareBaselines prices numCharges of kwhPerCharge at the flat rates.
func CompareBaselines(actualCost float64, numCharges int, kwhPerCharge float64) Baselines {
	kwh := decimal.NewFromFloat(kwhPerCharge).Mul(decimal.NewFromInt(int64(numCharges)))
	actual := decimal.NewFromFloat(actualCost)
	hundred := decimal.NewFromInt(100)
	standard := kwh.Mul(decimal.NewFromFloat(StandardRate)).Div(hundred)
	peak := kwh.Mul(decimal.NewFromFloat(PeakRate)).Div(hundred)
	return Baselines{
		StandardCost:    standard.Round(2).InexactFloat64(),
		PeakCost:        peak.Round(2).InexactFloat64(),
		StandardSavings: standard.Sub(actual).Round(2).InexactFloat64(),
		PeakSavings:     peak.Sub(actual).Round(2).InexactFloat64(),
	}
}

// MonthlySummary aggregates a month and adds baseline comparisons.
func (t *Tracker) MonthlySummary(ctx context.Context, year, month int, kwhPerCharge float64) (*MonthlySummary, error) {
	summary, err := t.AggregateMonth(ctx, year, month)
	if err != nil {
		return nil, err
	}
	if summary.NumCharges > 0 {
		summary.Baselines = CompareBaselines(summary.TotalCost, summary.NumCharges, kwhPerCharge)
	}
	summary.KWhPerCharge = kwhPerCharge
	summary.GeneratedAt = t.clock.Now()

	t.logger.WithFields(logrus.Fields{
		"period":        summary.Period(),
		"charges":       summary.NumCharges,
		"total_cost":    summary.TotalCost,
		"standard_save": summary.Baselines.StandardSavings,
	}).Info("Monthly summary generated")
	return summary, nil
}

// SaveMonthlyAggregate stores the month's summary, replacing any earlier one.
func (t *Tracker) SaveMonthlyAggregate(ctx context.Context, year, month int, kwhPerCharge float64) (*MonthlySummary, error) {
	summary, err := t.MonthlySummary(ctx, year, month, kwhPerCharge)
	if err != nil {
		return nil, err
	}
	err = store.Update(ctx, t.store, store.CostHistory, func(h *history) error {
		kept := h.MonthlySummaries[:0]
		for _, s := range h.MonthlySummaries {
			if s.Year != year || s.Month != month {
				kept = append(kept, s)
			}
		}
		kept = append(kept, *summary)
		sort.Slice(kept, func(i, j int) bool {
			if kept[i].Year != kept[j].Year {
				return kept[i].Year > kept[j].Year
			}
			return kept[i].Month > kept[j].Month
		})
		h.MonthlySummaries = kept
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save cost history: %w", err)
	}
	return summary, nil
}

// History returns up to months saved summaries, newest first.
func (t *Tracker) History(months int) []MonthlySummary {
	h := store.Load[history](t.store, store.CostHistory)
	if months > 0 && len(h.MonthlySummaries) > months {
		return h.MonthlySummaries[:months]
	}
	return h.MonthlySummaries
}

// YearlyProjection scales the year's average month to twelve months.
func (t *Tracker) YearlyProjection(year int) Projection {
	p := Projection{Year: year}
	var cost, savings decimal.Decimal
	for _, s := range t.History(0) {
		if s.Year != year {
			continue
		}
		cost = cost.Add(decimal.NewFromFloat(s.TotalCost))
		savings = savings.Add(decimal.NewFromFloat(s.Baselines.StandardSavings))
		p.YTDCharges += s.NumCharges
		p.MonthsOfData++
	}
	if p.MonthsOfData == 0 {
		t.logger.WithField("year", year).Info("No monthly summaries for year, nothing to project")
		return p
	}

	scale := decimal.NewFromInt(12).Div(decimal.NewFromInt(int64(p.MonthsOfData)))
	p.YTDCost = cost.Round(2).InexactFloat64()
	p.YTDSavings = savings.Round(2).InexactFloat64()
	p.ProjectedAnnualCost = cost.Mul(scale).Round(2).InexactFloat64()
	p.ProjectedAnnualSavings = savings.Mul(scale).Round(2).InexactFloat64()
	p.ProjectedAnnualCharges = int(decimal.NewFromInt(int64(p.YTDCharges)).Mul(scale).IntPart())
	return p
}

func inMonth(date string, year, month int) bool {
	d, err := clock.ParseDate(date, time.UTC)
	if err != nil {
		return false
	}
	return d.Year() == year && int(d.Month()) == month
}
