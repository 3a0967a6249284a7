package indicator

import "math"

// trueRange returns the true range for step i (i >= 1):
// max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(highs, lows, closes []float64, i int) float64 {
	hl := highs[i] - lows[i]
	hc := math.Abs(highs[i] - closes[i-1])
	lc := math.Abs(lows[i] - closes[i-1])
	return math.Max(hl, math.Max(hc, lc))
}

// ATR computes the Average True Range using Wilder smoothing. The
// first ATR is the simple mean of the first period true ranges;
// subsequent values use atr = (atr*(period-1) + tr) / period.
// Requires at least period+1 candles (true ranges need a previous
// close).
func ATR(highs, lows, closes []float64, period int) (float64, bool) {
	n := len(closes)
	if period <= 0 || n < period+1 || len(highs) != n || len(lows) != n {
		return 0, false
	}

	atr := 0.0
	for i := 1; i <= period; i++ {
		atr += trueRange(highs, lows, closes, i)
	}
	atr /= float64(period)

	p := float64(period)
	for i := period + 1; i < n; i++ {
		atr = (atr*(p-1) + trueRange(highs, lows, closes, i)) / p
	}
	return atr, true
}
