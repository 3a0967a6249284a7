package indicator

import "math"

// ADX computes the Average Directional Index using Wilder's method.
//
// Per step, +DM and -DM are derived from the high/low deltas: the
// larger of the up/down moves wins, ties and negatives are zeroed.
// +DM, -DM, and TR are Wilder-smoothed; DI± = smoothed DM± / smoothed
// TR * 100; DX = |DI+ - DI-| / (DI+ + DI-) * 100, or 0 when both DI
// are 0. ADX itself is the Wilder-smoothed DX, seeded by a simple
// average of the first period DX values. Requires at least 2*period
// candles.
func ADX(highs, lows, closes []float64, period int) (float64, bool) {
	n := len(closes)
	if period <= 0 || n < 2*period || len(highs) != n || len(lows) != n {
		return 0, false
	}

	steps := n - 1
	plusDM := make([]float64, steps)
	minusDM := make([]float64, steps)
	tr := make([]float64, steps)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
		tr[i-1] = trueRange(highs, lows, closes, i)
	}

	// Wilder smoothing: initial value is the sum of the first period
	// steps, then sm = sm - sm/period + x.
	p := float64(period)
	var smPlus, smMinus, smTR float64
	for i := 0; i < period; i++ {
		smPlus += plusDM[i]
		smMinus += minusDM[i]
		smTR += tr[i]
	}

	dx := func() float64 {
		if smTR == 0 {
			return 0
		}
		diPlus := smPlus / smTR * 100
		diMinus := smMinus / smTR * 100
		if diPlus+diMinus == 0 {
			return 0
		}
		return math.Abs(diPlus-diMinus) / (diPlus + diMinus) * 100
	}

	// Seed ADX with the simple average of the first period DX values.
	adx := dx()
	count := 1
	i := period
	for ; i < steps && count < period; i++ {
		smPlus = smPlus - smPlus/p + plusDM[i]
		smMinus = smMinus - smMinus/p + minusDM[i]
		smTR = smTR - smTR/p + tr[i]
		adx += dx()
		count++
	}
	adx /= float64(count)

	for ; i < steps; i++ {
		smPlus = smPlus - smPlus/p + plusDM[i]
		smMinus = smMinus - smMinus/p + minusDM[i]
		smTR = smTR - smTR/p + tr[i]
		adx = (adx*(p-1) + dx()) / p
	}
	return adx, true
}
