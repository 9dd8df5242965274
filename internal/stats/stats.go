// Package stats holds the small numeric helpers shared by the trackers.
package stats

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// PopStdDev returns the population standard deviation, or 0 for fewer than two values.
func PopStdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(data, nil)
	return std
}

// RMSE returns sqrt(mean(e²)).
func RMSE(errs []float64) float64 {
	if len(errs) == 0 {
		return 0
	}
	var sum float64
	for _, e := range errs {
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(errs)))
}

// MeanAbs returns mean(|e|).
func MeanAbs(errs []float64) float64 {
	if len(errs) == 0 {
		return 0
	}
	var sum float64
	for _, e := range errs {
		sum += math.Abs(e)
	}
	return sum / float64(len(errs))
}

// MinMax returns the smallest and largest values. Both are 0 for an empty slice.
func MinMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Sorted returns an ascending copy of data.
func Sorted(data []float64) []float64 {
	out := append([]float64(nil), data...)
	sort.Float64s(out)
	return out
}

// Quantile returns the p-quantile of data using linear interpolation between
// order statistics: h = (n-1)p, q = x[floor(h)] + (h-floor(h))(x[floor(h)+1]-x[floor(h)]).
// data need not be sorted. p is clamped to [0, 1].
func Quantile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	x := Sorted(data)
	p = math.Max(0, math.Min(1, p))
	h := float64(len(x)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(x) {
		return x[len(x)-1]
	}
	return x[i] + (h-lo)*(x[i+1]-x[i])
}

// Median is Quantile(data, 0.5).
func Median(data []float64) float64 {
	return Quantile(data, 0.5)
}

// UpperMedian returns sorted[n/2], the element at the upper middle for even lengths.
func UpperMedian(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return Sorted(data)[len(data)/2]
}

// Round rounds x half away from zero to places decimals using its shortest decimal form.
func Round(x float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(x).Round(places).Float64()
	return f
}
