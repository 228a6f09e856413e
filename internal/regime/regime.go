// Package regime classifies market conditions from a trailing candle window.
//
// The classification drives which indicator weight set the signal generator
// uses. Because the backtest walk slides one candle at a time, results are
// cached with a TTL and a stride so a window is classified once per stride
// rather than on every step.
package regime

import (
	"math"

	"marketlab/internal/model"
)

// State labels the directional regime.
type State string

const (
	Bull    State = "BULL"
	Bear    State = "BEAR"
	Neutral State = "NEUTRAL"
)

// Volatility labels the volatility level within a regime.
type Volatility string

const (
	VolLow    Volatility = "LOW"
	VolNormal Volatility = "NORMAL"
	VolHigh   Volatility = "HIGH"
)

// Regime is the classification of a candle window.
type Regime struct {
	State       State      `json:"state"`
	Volatility  Volatility `json:"volatility"`
	Strength    float64    `json:"strength"`     // 0-1, how decisive the classification is
	Return      float64    `json:"return"`       // net % return over the window
	RealizedVol float64    `json:"realized_vol"` // stddev of per-candle returns, %
}

// Thresholds tune the classifier. Zero value is unusable; use
// DefaultThresholds or config-supplied values.
type Thresholds struct {
	TrendPct   float64 // min net % move over the window to call a trend
	LowVolPct  float64 // realized vol below this is LOW
	HighVolPct float64 // realized vol above this is HIGH
}

// DefaultThresholds returns the classifier tuning used when config is silent.
func DefaultThresholds() Thresholds {
	return Thresholds{TrendPct: 3.0, LowVolPct: 0.5, HighVolPct: 2.0}
}

// Classify examines the trailing window of candles and returns its regime.
// Needs at least two candles; fewer yields a zero-strength Neutral.
func Classify(window []model.Candle, th Thresholds) Regime {
	if len(window) < 2 {
		return Regime{State: Neutral, Volatility: VolNormal}
	}

	first := window[0].Close
	last := window[len(window)-1].Close
	netReturn := 0.0
	if first != 0 {
		netReturn = (last - first) / first * 100.0
	}

	vol := realizedVol(window)

	r := Regime{Return: netReturn, RealizedVol: vol}

	switch {
	case netReturn >= th.TrendPct:
		r.State = Bull
	case netReturn <= -th.TrendPct:
		r.State = Bear
	default:
		r.State = Neutral
	}

	switch {
	case vol < th.LowVolPct:
		r.Volatility = VolLow
	case vol > th.HighVolPct:
		r.Volatility = VolHigh
	default:
		r.Volatility = VolNormal
	}

	// Strength: how far past the trend threshold the move went, capped at 1.
	if th.TrendPct > 0 {
		r.Strength = math.Min(math.Abs(netReturn)/(2*th.TrendPct), 1.0)
	}

	return r
}

// realizedVol returns the standard deviation of per-candle close returns, in %.
func realizedVol(window []model.Candle) float64 {
	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		prev := window[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (window[i].Close-prev)/prev*100.0)
	}
	if len(returns) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}
