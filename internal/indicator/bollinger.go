package indicator

// Bollinger computes Bollinger Bands for the latest point: middle is
// SMA(period), and the band half-width is k times the population
// standard deviation of the last period values.
func Bollinger(values []float64, period int, k float64) (upper, middle, lower float64, ok bool) {
	middle, ok = SMA(values, period)
	if !ok {
		return 0, 0, 0, false
	}
	half := k * stdDevPop(values, period, middle)
	return middle + half, middle, middle - half, true
}
