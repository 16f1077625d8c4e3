package dataprocessing

import "math"

// meanStd returns the mean and sample standard deviation (n-1 denominator)
// of the finite values. ok is false when fewer than two finite values exist.
func meanStd(values []float64) (mean, std float64, ok bool) {
	n := 0
	sum := 0.0
	for _, v := range values {
		if isFinite(v) {
			sum += v
			n++
		}
	}
	if n < 2 {
		return 0, 0, false
	}
	mean = sum / float64(n)

	ss := 0.0
	for _, v := range values {
		if isFinite(v) {
			d := v - mean
			ss += d * d
		}
	}
	return mean, math.Sqrt(ss / float64(n-1)), true
}

// withinBand keeps the indexes whose value lies in [mean-k*std, mean+k*std].
// Non-finite values are kept here and removed by the final cleanup.
// A zero or undefined deviation keeps every row.
func withinBand(values []float64, k float64) []bool {
	keep := make([]bool, len(values))
	mean, std, ok := meanStd(values)
	for i, v := range values {
		switch {
		case !ok || std == 0 || !isFinite(v):
			keep[i] = true
		default:
			keep[i] = v >= mean-k*std && v <= mean+k*std
		}
	}
	return keep
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
