package models

import "time"

// PriceRange summarises the prices a tuning run analysed.
type PriceRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// ThresholdTuningRecord is one auto-tuning result.
type ThresholdTuningRecord struct {
	PriceExcellent  float64    `json:"price_excellent"`
	PriceGood       float64    `json:"price_good" validate:"gtefield=PriceExcellent"`
	CarbonExcellent float64    `json:"carbon_excellent"`
	CarbonGood      float64    `json:"carbon_good" validate:"gtefield=CarbonExcellent"`
	DaysAnalyzed    int        `json:"days_analyzed" validate:"gte=0"`
	PriceRange      PriceRange `json:"price_range"`
	LastUpdated     time.Time  `json:"last_updated" validate:"required"`
	UsingDefaults   bool       `json:"using_defaults,omitempty"`
}
