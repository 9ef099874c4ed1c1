package analytics

import (
	"math"
	"time"
)

// HourFactor converts a rate per resolution step into an amount per hour
// (e.g. MW over 15 minutes is 0.25 MWh).
func HourFactor(resolution time.Duration) float64 {
	return resolution.Hours()
}

// NanSum sums xs, skipping NaN. The sum of nothing is 0.
func NanSum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		if !math.IsNaN(x) {
			s += x
		}
	}
	return s
}

// NanMean averages xs, skipping NaN. It is NaN when no value remains.
func NanMean(xs []float64) float64 {
	var s float64
	n := 0
	for _, x := range xs {
		if !math.IsNaN(x) {
			s += x
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return s / float64(n)
}

// MeanAbsoluteError is mean(|r - f|). NaN when the inputs are empty or differ in length.
func MeanAbsoluteError(realised, forecast []float64) float64 {
	if len(realised) == 0 || len(realised) != len(forecast) {
		return math.NaN()
	}
	var s float64
	for i := range realised {
		s += math.Abs(realised[i] - forecast[i])
	}
	return s / float64(len(realised))
}

// MeanAbsolutePercentageError is mean(|r - f| / |r|) * 100 over the points
// where r is not zero. NaN when no such point exists.
func MeanAbsolutePercentageError(realised, forecast []float64) float64 {
	if len(realised) == 0 || len(realised) != len(forecast) {
		return math.NaN()
	}
	var s float64
	n := 0
	for i := range realised {
		if realised[i] == 0 {
			continue
		}
		s += math.Abs(realised[i]-forecast[i]) / math.Abs(realised[i])
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return s / float64(n) * 100
}

// WeightedAbsolutePercentageError is sum|r - f| / sum|r| * 100. NaN when sum|r| is zero.
func WeightedAbsolutePercentageError(realised, forecast []float64) float64 {
	if len(realised) == 0 || len(realised) != len(forecast) {
		return math.NaN()
	}
	var errSum, base float64
	for i := range realised {
		errSum += math.Abs(realised[i] - forecast[i])
		base += math.Abs(realised[i])
	}
	if base == 0 {
		return math.NaN()
	}
	return errSum / base * 100
}

// scale multiplies every value by f into a new slice.
func scale(xs []float64, f float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * f
	}
	return out
}

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
