package models

import "time"

// PriceKind marks whether a price slot was settled by the supplier or predicted.
type PriceKind string

const (
	PriceMeasured  PriceKind = "measured"
	PricePredicted PriceKind = "predicted"
)

// DataOrigin labels the upstream feed a recommendation or snapshot was built from.
type DataOrigin string

const (
	OriginOctopusActual DataOrigin = "octopus_actual"
	OriginForecast      DataOrigin = "forecast"
)

// IsSettled reports whether prices from this origin are published tariff rates.
func (o DataOrigin) IsSettled() bool {
	return o == OriginOctopusActual
}

// PriceSlot is a half-hour unit rate in pence/kWh. Negative values mean the grid pays to consume.
type PriceSlot struct {
	Time   time.Time `json:"time" validate:"required"`
	Price  float64   `json:"price"`
	Source PriceKind `json:"source" validate:"required,oneof=measured predicted"`
}

// CarbonSlot is a half-hour grid carbon intensity in gCO2/kWh.
type CarbonSlot struct {
	Time      time.Time `json:"time" validate:"required"`
	Intensity int       `json:"intensity" validate:"gte=0"`
}

// NeutralCarbonIntensity is substituted when no carbon data is available.
const NeutralCarbonIntensity = 175

// NeutralCarbon builds constant carbon slots matching every price slot time.
func NeutralCarbon(prices []PriceSlot) []CarbonSlot {
	out := make([]CarbonSlot, len(prices))
	for i, p := range prices {
		out[i] = CarbonSlot{Time: p.Time, Intensity: NeutralCarbonIntensity}
	}
	return out
}

// PriceValues extracts the raw prices in slot order.
func PriceValues(slots []PriceSlot) []float64 {
	out := make([]float64, len(slots))
	for i, s := range slots {
		out[i] = s.Price
	}
	return out
}

// FilterPrices keeps slots with from <= time < to.
func FilterPrices(slots []PriceSlot, from, to time.Time) []PriceSlot {
	out := make([]PriceSlot, 0, len(slots))
	for _, s := range slots {
		if !s.Time.Before(from) && s.Time.Before(to) {
			out = append(out, s)
		}
	}
	return out
}

// FilterCarbon keeps slots with from <= time < to.
func FilterCarbon(slots []CarbonSlot, from, to time.Time) []CarbonSlot {
	out := make([]CarbonSlot, 0, len(slots))
	for _, s := range slots {
		if !s.Time.Before(from) && s.Time.Before(to) {
			out = append(out, s)
		}
	}
	return out
}
