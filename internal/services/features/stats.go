package features

import (
	"math"
	"sort"
	"time"
)

// Median returns the middle value of xs (mean of the two middle values for an
// even count). xs is not modified. Returns 0 for an empty slice.
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// MAD computes the median absolute deviation around center.
func MAD(xs []float64, center float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	dev := make([]float64, len(xs))
	for i, x := range xs {
		dev[i] = math.Abs(x - center)
	}
	return Median(dev)
}

// MeanStd returns the mean and population standard deviation.
func MeanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}

// CoefficientOfVariation is std/mean; 0 when the mean is not positive.
func CoefficientOfVariation(xs []float64) float64 {
	mean, std := MeanStd(xs)
	if mean <= 0 {
		return 0
	}
	return std / mean
}

// Regression is an ordinary least squares fit y = Intercept + Slope*x over
// x = 0..n-1.
type Regression struct {
	Intercept   float64
	Slope       float64
	ResidualStd float64
	N           int
}

// At evaluates the fitted line at index x.
func (r Regression) At(x float64) float64 {
	return r.Intercept + r.Slope*x
}

// LinearRegression fits ys against their index. Needs at least two points.
func LinearRegression(ys []float64) Regression {
	n := len(ys)
	if n == 0 {
		return Regression{}
	}
	if n == 1 {
		return Regression{Intercept: ys[0], N: 1}
	}
	var sx, sy, sxx, sxy float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	fn := float64(n)
	den := fn*sxx - sx*sx
	var slope float64
	if den != 0 {
		slope = (fn*sxy - sx*sy) / den
	}
	r := Regression{Intercept: (sy - slope*sx) / fn, Slope: slope, N: n}

	var ss float64
	for i, y := range ys {
		d := y - r.At(float64(i))
		ss += d * d
	}
	r.ResidualStd = math.Sqrt(ss / fn)
	return r
}

// HHI is the Herfindahl-Hirschman index over counts, in [0,1].
func HHI(counts map[string]int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		s := float64(c) / float64(total)
		h += s * s
	}
	return h
}

// MonthlyMeans groups values by calendar month (ignoring year) and returns the
// mean of each month present.
func MonthlyMeans(dates []time.Time, values []float64) map[time.Month]float64 {
	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	for i := range dates {
		if i >= len(values) {
			break
		}
		m := dates[i].Month()
		sums[m] += values[i]
		counts[m]++
	}
	out := make(map[time.Month]float64, len(sums))
	for m, s := range sums {
		out[m] = s / float64(counts[m])
	}
	return out
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
