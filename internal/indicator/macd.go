package indicator

// MACD computes the MACD line, signal line, and histogram for the
// latest point of values.
//
// macdLine = EMA(fast) - EMA(slow) over the full history, signalLine =
// EMA(signalPeriod) of the macdLine series, histogram = macdLine -
// signalLine. The triple is atomic: it requires at least
// slow+signalPeriod-1 points, and below that all three are undefined
// together — partial results are never produced.
func MACD(values []float64, fast, slow, signalPeriod int) (macdLine, signalLine, histogram float64, ok bool) {
	if fast <= 0 || slow <= 0 || signalPeriod <= 0 || fast >= slow {
		return 0, 0, 0, false
	}
	if len(values) < slow+signalPeriod-1 {
		return 0, 0, 0, false
	}

	fastS := emaSeries(values, fast) // aligned to values[fast-1:]
	slowS := emaSeries(values, slow) // aligned to values[slow-1:]

	// macd series is defined wherever both EMAs are, i.e. from index
	// slow-1 of the input.
	macdS := make([]float64, len(slowS))
	off := slow - fast
	for i := range slowS {
		macdS[i] = fastS[i+off] - slowS[i]
	}

	signalS := emaSeries(macdS, signalPeriod)
	if signalS == nil {
		return 0, 0, 0, false
	}

	macdLine = macdS[len(macdS)-1]
	signalLine = signalS[len(signalS)-1]
	return macdLine, signalLine, macdLine - signalLine, true
}
