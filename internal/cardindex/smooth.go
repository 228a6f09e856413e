package cardindex

import "marketlab/internal/indicator"

// SMA returns a smoothed copy of the series using a simple moving average.
func (s *Series) SMA(window int) *Series {
	return &Series{
		Name:   s.Name + "_sma",
		Dates:  s.Dates,
		Values: indicator.SeriesSMA(s.Values, window),
	}
}

// MACDHistogram returns the MACD histogram of the series, a momentum read
// on the index itself.
func (s *Series) MACDHistogram(fast, slow, signal int) *Series {
	_, _, hist := indicator.SeriesMACD(s.Values, fast, slow, signal)
	return &Series{Name: s.Name + "_macd_hist", Dates: s.Dates, Values: hist}
}

// ROC returns the n-day percent rate of change of the series.
func (s *Series) ROC(n int) *Series {
	return &Series{
		Name:   s.Name + "_roc",
		Dates:  s.Dates,
		Values: indicator.SeriesROC(s.Values, n),
	}
}

// Last returns the most recent value, or 0 for an empty series.
func (s *Series) Last() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return s.Values[len(s.Values)-1]
}
