// Package metrics provides the Prometheus registry for smart-charge.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smart_charge"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RecommendationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recommendations_total",
		Help:      "Charging recommendations produced, by rating and price source",
	}, []string{"rating", "price_source"})
	PlansGeneratedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plans_generated_total",
		Help:      "Multi-day plans generated",
	})
	SourceFallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_fallbacks_total",
		Help:      "Times a price source was unusable and the next one was tried",
	}, []string{"source"})
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification attempts by kind and result",
	}, []string{"kind", "result"})
	CircuitBreakerTripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_trips_total",
		Help:      "Total number of HTTP circuit breaker trips",
	})
	JobRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by job and outcome",
	}, []string{"job", "outcome"})
)

// Gauge metrics
var (
	WindowAvgPrice = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "window_avg_price_pence",
		Help:      "Average unit rate of the latest recommended window in p/kWh",
	})
	WindowAvgCarbon = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "window_avg_carbon_grams",
		Help:      "Average carbon intensity of the latest recommended window in gCO2/kWh",
	})
	WindowTotalCost = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "window_total_cost_pounds",
		Help:      "Cost of the latest recommended charge",
	})
	WindowSavings = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "window_savings_pounds",
		Help:      "Savings of the latest recommended charge against the evening baseline",
	})
	WindowScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "window_opportunity_score",
		Help:      "Opportunity score of the latest recommended window",
	})
	PlanBestDaySavings = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "plan_best_day_savings_pounds",
		Help:      "Savings of the best day in the latest plan against today",
	})
	ScoringThreshold = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scoring_threshold",
		Help:      "Scoring thresholds in use",
	}, []string{"threshold"})
)

// Histogram metrics
var (
	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Duration of scheduled jobs in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"job"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(RecommendationsTotal)
		registry.MustRegister(PlansGeneratedTotal)
		registry.MustRegister(SourceFallbacksTotal)
		registry.MustRegister(NotificationsTotal)
		registry.MustRegister(CircuitBreakerTripsTotal)
		registry.MustRegister(JobRunsTotal)

		registry.MustRegister(WindowAvgPrice)
		registry.MustRegister(WindowAvgCarbon)
		registry.MustRegister(WindowTotalCost)
		registry.MustRegister(WindowSavings)
		registry.MustRegister(WindowScore)
		registry.MustRegister(PlanBestDaySavings)
		registry.MustRegister(ScoringThreshold)

		registry.MustRegister(JobDuration)

		registry.MustRegister(ForecastComparisonsTotal)
		registry.MustRegister(ForecastMAE)
		registry.MustRegister(ForecastBias)
		registry.MustRegister(SignificantChangesTotal)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry in text format for node_exporter's
// textfile collector, so one-shot CLI runs still leave metrics behind.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, GetRegistry())
}

// RecordRecommendation updates the window gauges and counts a recommendation.
func RecordRecommendation(rating, priceSource string, avgPrice float64, avgCarbon int, cost, savings, score float64) {
	RecommendationsTotal.WithLabelValues(rating, priceSource).Inc()
	WindowAvgPrice.Set(avgPrice)
	WindowAvgCarbon.Set(float64(avgCarbon))
	WindowTotalCost.Set(cost)
	WindowSavings.Set(savings)
	WindowScore.Set(score)
}

// RecordPlanGenerated records a completed multi-day plan.
func RecordPlanGenerated(bestDaySavings float64) {
	PlansGeneratedTotal.Inc()
	PlanBestDaySavings.Set(bestDaySavings)
}

// RecordSourceFallback records a price source being skipped.
func RecordSourceFallback(source string) {
	SourceFallbacksTotal.WithLabelValues(source).Inc()
}

// RecordNotification records a notification attempt.
func RecordNotification(kind string, sent bool) {
	result := "sent"
	if !sent {
		result = "not_sent"
	}
	NotificationsTotal.WithLabelValues(kind, result).Inc()
}

// RecordCircuitBreakerTrip records a circuit breaker trip event.
func RecordCircuitBreakerTrip() {
	CircuitBreakerTripsTotal.Inc()
}

// UpdateThresholds publishes the scorer thresholds in use.
func UpdateThresholds(priceExcellent, priceGood, carbonExcellent, carbonGood float64) {
	ScoringThreshold.WithLabelValues("price_excellent").Set(priceExcellent)
	ScoringThreshold.WithLabelValues("price_good").Set(priceGood)
	ScoringThreshold.WithLabelValues("carbon_excellent").Set(carbonExcellent)
	ScoringThreshold.WithLabelValues("carbon_good").Set(carbonGood)
}

// ObserveJob records a job run's duration and outcome.
func ObserveJob(job string, started time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	JobRunsTotal.WithLabelValues(job, outcome).Inc()
	JobDuration.WithLabelValues(job).Observe(time.Since(started).Seconds())
}
