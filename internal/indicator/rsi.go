package indicator

// RSI computes the Relative Strength Index from the last period
// one-step price deltas (Wilder's simple-average variant: plain means
// of gains and losses over the window, no recursive smoothing).
//
// With zero average loss and positive gains RS tends to +inf and RSI
// is 100. A completely flat window (no gains and no losses) yields the
// neutral 50 rather than the degenerate 100.
func RSI(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period+1 {
		return 0, false
	}

	gains, losses := 0.0, 0.0
	for i := len(values) - period; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}
