// Package indicator provides technical indicator calculations over
// ordered price history.
//
// Every function takes a finite ordered slice of inputs plus a period
// and returns (value, ok). ok=false means "insufficient history" — it
// is not an error, and callers must treat the value as unavailable
// rather than zero. No function ever reports NaN as a valid value.
package indicator

import "math"

// SMA returns the arithmetic mean of the last period values.
// Undefined if fewer than period values exist.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// EMA returns the exponential moving average of values. The seed is
// the SMA of the first period values; later values use the multiplier
// 2/(period+1). Undefined until the seed exists.
func EMA(values []float64, period int) (float64, bool) {
	s := emaSeries(values, period)
	if s == nil {
		return 0, false
	}
	return s[len(s)-1], true
}

// emaSeries computes the full EMA series. The result is aligned to
// values[period-1:]: out[0] is the SMA seed over values[:period].
// Returns nil when fewer than period values exist.
func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, len(values)-period+1)

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	out[0] = seed

	mult := 2.0 / float64(period+1)
	cur := seed
	for i := period; i < len(values); i++ {
		cur = values[i]*mult + cur*(1-mult)
		out[i-period+1] = cur
	}
	return out
}

// stdDevPop returns the population standard deviation of the last
// period values around the given mean.
func stdDevPop(values []float64, period int, mean float64) float64 {
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(period))
}
