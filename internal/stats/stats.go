package stats

import (
	"math"
	"sort"
)

// Statistics Kernel
//
// Shared numeric primitives for every detector. All functions are pure
// and total: degenerate input (empty sample, zero spread, zero mean)
// yields a defined zero instead of NaN, Inf, or a panic. Variance is the
// population variance (divide by n, not n-1) so that repeated runs over
// the same snapshot are bit-identical with the upstream scoring model.

// Mean returns the arithmetic mean, 0 for an empty sample.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the population variance (divide by n), 0 for an empty sample.
func Variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := Mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// ZScore returns |x-mean|/std. When std is 0 the sample has no spread
// and no point can be an outlier, so the z-score is defined as 0.
func ZScore(x, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return math.Abs(x-mean) / std
}

// Quartiles returns (Q1, Q3) using floor indexing on the sorted sample:
// Q1 = sorted[floor(0.25n)], Q3 = sorted[floor(0.75n)].
// Returns (0, 0) for an empty sample. The input is not modified.
func Quartiles(xs []float64) (q1, q3 float64) {
	n := len(xs)
	if n == 0 {
		return 0, 0
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)
	q1 = sorted[int(math.Floor(0.25*float64(n)))]
	q3 = sorted[int(math.Floor(0.75*float64(n)))]
	return q1, q3
}

// IQR returns the interquartile range Q3-Q1.
func IQR(xs []float64) float64 {
	q1, q3 := Quartiles(xs)
	return q3 - q1
}

// ExtremeOutlierMultiplier is the IQR fence multiplier for extreme outliers.
const ExtremeOutlierMultiplier = 3.0

// ExtremeBounds returns the extreme-outlier fences
// [Q1 - 3*IQR, Q3 + 3*IQR] for the sample.
func ExtremeBounds(xs []float64) (lower, upper float64) {
	q1, q3 := Quartiles(xs)
	iqr := q3 - q1
	return q1 - ExtremeOutlierMultiplier*iqr, q3 + ExtremeOutlierMultiplier*iqr
}

// CV returns the coefficient of variation std/mean, 0 when the mean is 0.
func CV(xs []float64) float64 {
	mean := Mean(xs)
	if mean == 0 {
		return 0
	}
	return StdDev(xs) / mean
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
