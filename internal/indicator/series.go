package indicator

// Series helpers run the incremental indicators over a plain value series.
// The price-index builder uses these to smooth the composite index; values
// before an indicator is ready carry the partial estimate so series lengths
// always match the input.

// SeriesSMA returns the simple moving average of values with the given
// window. Positions before a full window hold the average of what is
// available so far.
func SeriesSMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
			out[i] = sum / float64(window)
		} else {
			out[i] = sum / float64(i+1)
		}
	}
	return out
}

// SeriesEMA returns the exponential moving average of values, seeded with
// the first value.
func SeriesEMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	mult := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*mult + out[i-1]*(1-mult)
	}
	return out
}

// SeriesMACD returns the MACD line, signal line, and histogram for the
// value series.
func SeriesMACD(values []float64, fast, slow, signal int) (macd, sig, hist []float64) {
	fastEMA := SeriesEMA(values, fast)
	slowEMA := SeriesEMA(values, slow)
	macd = make([]float64, len(values))
	for i := range values {
		macd[i] = fastEMA[i] - slowEMA[i]
	}
	sig = SeriesEMA(macd, signal)
	hist = make([]float64, len(values))
	for i := range values {
		hist[i] = macd[i] - sig[i]
	}
	return macd, sig, hist
}

// SeriesROC returns the percent rate of change versus the value n positions
// earlier. The first n positions are zero.
func SeriesROC(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	for i := n; i < len(values); i++ {
		if values[i-n] != 0 {
			out[i] = (values[i] - values[i-n]) / values[i-n] * 100.0
		}
	}
	return out
}
