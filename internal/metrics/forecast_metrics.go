package metrics

import "github.com/prometheus/client_golang/prometheus"

// Forecast accuracy and evolution metrics
var (
	ForecastComparisonsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forecast_comparisons_total",
		Help:      "Forecast versus actual comparisons recorded",
	})
	ForecastMAE = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "forecast_mae_pence",
		Help:      "Mean absolute error of the latest forecast comparison in p/kWh",
	})
	ForecastBias = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "forecast_bias_pence",
		Help:      "Mean signed error (actual minus forecast) of the latest comparison in p/kWh",
	})
	SignificantChangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forecast_significant_changes_total",
		Help:      "Significant forecast changes detected, by direction",
	}, []string{"direction"})
)

// RecordComparison records a forecast comparison's error statistics.
func RecordComparison(mae, bias float64) {
	ForecastComparisonsTotal.Inc()
	ForecastMAE.Set(mae)
	ForecastBias.Set(bias)
}

// RecordSignificantChange records a detected forecast drift.
func RecordSignificantChange(direction string) {
	SignificantChangesTotal.WithLabelValues(direction).Inc()
}
