package indicator

import "marketlab/internal/model"

// MACD calculates Moving Average Convergence Divergence: the difference of a
// fast and slow EMA, a signal-line EMA over that difference, and the
// histogram (MACD minus signal).
type MACD struct {
	fast      *EMA
	slow      *EMA
	signal    *EMA
	macd      float64
	histogram float64
}

// NewMACD creates a MACD with the given fast/slow/signal periods
// (typically 12, 26, 9).
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:   NewEMA(fastPeriod),
		slow:   NewEMA(slowPeriod),
		signal: NewEMA(signalPeriod),
	}
}

func (m *MACD) Name() string { return "MACD" }

func (m *MACD) Update(candle model.Candle) {
	m.fast.Update(candle)
	m.slow.Update(candle)
	if !m.slow.Ready() {
		return
	}
	m.macd = m.fast.Value() - m.slow.Value()
	m.signal.update(m.macd)
	if m.signal.Ready() {
		m.histogram = m.macd - m.signal.Value()
	}
}

// Value returns the MACD line (fast EMA - slow EMA).
func (m *MACD) Value() float64 { return m.macd }

// Signal returns the signal line value.
func (m *MACD) Signal() float64 { return m.signal.Value() }

// Histogram returns MACD minus signal. Positive = bullish momentum.
func (m *MACD) Histogram() float64 { return m.histogram }

// Ready reports whether both the slow EMA and the signal line are seeded.
func (m *MACD) Ready() bool { return m.slow.Ready() && m.signal.Ready() }

// Peek computes the next MACD line value for a hypothetical close.
func (m *MACD) Peek(close float64) float64 {
	if !m.slow.Ready() {
		return m.macd
	}
	return m.fast.Peek(close) - m.slow.Peek(close)
}
