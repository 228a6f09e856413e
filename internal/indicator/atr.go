package indicator

import (
	"math"

	"marketlab/internal/model"
)

// ATR calculates Average True Range with Wilder's smoothing.
// Used as the volatility input for regime classification.
type ATR struct {
	period    int
	count     int
	prevClose float64
	current   float64
	seedSum   float64
}

// NewATR creates an ATR indicator with the given period (typically 14).
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return "ATR" }

func (a *ATR) Update(candle model.Candle) {
	a.count++
	if a.count == 1 {
		// First candle: true range is just high-low
		a.seedSum = candle.High - candle.Low
		a.prevClose = candle.Close
		return
	}

	tr := trueRange(candle, a.prevClose)
	a.prevClose = candle.Close

	if a.count <= a.period {
		a.seedSum += tr
		if a.count == a.period {
			a.current = a.seedSum / float64(a.period)
		}
		return
	}

	p := float64(a.period)
	a.current = (a.current*(p-1) + tr) / p
}

func (a *ATR) Value() float64 { return a.current }
func (a *ATR) Ready() bool    { return a.count >= a.period }

// Peek approximates the next ATR for a flat candle at the given close.
func (a *ATR) Peek(close float64) float64 {
	if a.count < a.period {
		return a.current
	}
	tr := math.Abs(close - a.prevClose)
	p := float64(a.period)
	return (a.current*(p-1) + tr) / p
}

func trueRange(c model.Candle, prevClose float64) float64 {
	tr := c.High - c.Low
	if d := math.Abs(c.High - prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(c.Low - prevClose); d > tr {
		tr = d
	}
	return tr
}
