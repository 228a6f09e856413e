// Package signal implements the adaptive signal generator: indicator scores
// blended with regime-specific weights into a BUY/SELL/HOLD decision plus a
// confidence estimate, and Kelly-criterion position sizing.
package signal

import (
	"fmt"
	"math"
	"time"

	"marketlab/internal/indicator"
	"marketlab/internal/model"
	"marketlab/internal/regime"
	"marketlab/internal/ringbuf"
)

// Signal is one decision for one candle.
type Signal struct {
	Action     model.Action  `json:"action"`
	Score      float64       `json:"score"`      // blended score in [-1,1]
	Confidence float64       `json:"confidence"` // 0-1
	Regime     regime.Regime `json:"regime"`
	Price      float64       `json:"price"`
	TS         time.Time     `json:"ts"`
	Reason     string        `json:"reason"`
}

// Generator produces adaptive signals candle by candle. Single-goroutine
// usage — no locks needed.
type Generator struct {
	cfg StrategyConfig

	rsi     *indicator.RSI
	macd    *indicator.MACD
	emaFast *indicator.EMA
	emaSlow *indicator.EMA
	roc     *indicator.ROC
	atr     *indicator.ATR

	window *ringbuf.Window // trailing candles for regime classification
	cache  *regime.Cache
	th     regime.Thresholds
}

// NewGenerator creates a Generator for the given strategy tuning.
func NewGenerator(cfg StrategyConfig) *Generator {
	return &Generator{
		cfg:     cfg,
		rsi:     indicator.NewRSI(cfg.RSIPeriod),
		macd:    indicator.NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal),
		emaFast: indicator.NewEMA(cfg.EMAFast),
		emaSlow: indicator.NewEMA(cfg.EMASlow),
		roc:     indicator.NewROC(cfg.ROCPeriod),
		atr:     indicator.NewATR(cfg.ATRPeriod),
		window:  ringbuf.NewWindow(cfg.Regime.Lookback),
		cache:   regime.NewCache(cfg.Regime.CacheTTL),
		th: regime.Thresholds{
			TrendPct:   cfg.Regime.TrendPct,
			LowVolPct:  cfg.Regime.LowVolPct,
			HighVolPct: cfg.Regime.HighVolPct,
		},
	}
}

// OnCandle feeds the next candle and returns the decision for it.
func (g *Generator) OnCandle(c model.Candle) Signal {
	g.rsi.Update(c)
	g.macd.Update(c)
	g.emaFast.Update(c)
	g.emaSlow.Update(c)
	g.roc.Update(c)
	g.atr.Update(c)

	g.window.Push(c)

	sig := Signal{Action: model.ActionHold, Price: c.Close, TS: c.TS}

	if !g.ready() {
		sig.Reason = "warmup"
		return sig
	}

	key := regime.Key(c.Symbol, c.TS, g.cfg.Regime.Stride)
	reg, ok := g.cache.Get(key)
	if !ok {
		reg = regime.Classify(g.window.Snapshot(), g.th)
		g.cache.Put(key, reg)
	}
	sig.Regime = reg

	w := g.weightsFor(reg.State)
	scores := [4]float64{
		g.rsiScore(),
		g.macdScore(),
		g.trendScore(),
		g.momentumScore(),
	}
	blended := w.RSI*scores[0] + w.MACD*scores[1] + w.Trend*scores[2] + w.Momentum*scores[3]
	sig.Score = clamp(blended, -1, 1)
	sig.Confidence = g.confidence(sig.Score, scores)

	switch {
	case sig.Score >= g.cfg.BuyThreshold:
		sig.Action = model.ActionBuy
	case sig.Score <= -g.cfg.SellThreshold:
		sig.Action = model.ActionSell
	}

	sig.Reason = fmt.Sprintf("score=%.2f conf=%.2f regime=%s/%s rsi=%.1f",
		sig.Score, sig.Confidence, reg.State, reg.Volatility, g.rsi.Value())
	return sig
}

// Warmup reports whether the generator still lacks indicator history.
func (g *Generator) Warmup() bool { return !g.ready() }

func (g *Generator) ready() bool {
	return g.rsi.Ready() && g.macd.Ready() && g.emaSlow.Ready() &&
		g.roc.Ready() && g.atr.Ready() && g.window.Full()
}

func (g *Generator) weightsFor(s regime.State) Weights {
	switch s {
	case regime.Bull:
		return g.cfg.BullWeights
	case regime.Bear:
		return g.cfg.BearWeights
	default:
		return g.cfg.NeutralWeights
	}
}

// rsiScore maps RSI to a contrarian score: +1 at or below the oversold
// line, -1 at or above the overbought line, 0 at the midpoint. The two
// sides scale independently so asymmetric thresholds work.
func (g *Generator) rsiScore() float64 {
	v := g.rsi.Value()
	if v >= 50 {
		span := g.cfg.RSIOverbought - 50
		if span <= 0 {
			return 0
		}
		return clamp((50-v)/span, -1, 0)
	}
	span := 50 - g.cfg.RSIOversold
	if span <= 0 {
		return 0
	}
	return clamp((50-v)/span, 0, 1)
}

// macdScore normalizes the histogram by ATR so the score is price-scale
// independent.
func (g *Generator) macdScore() float64 {
	atr := g.atr.Value()
	if atr == 0 {
		return 0
	}
	return clamp(g.macd.Histogram()/atr, -1, 1)
}

// trendScore measures fast/slow EMA divergence against the trend threshold.
func (g *Generator) trendScore() float64 {
	slow := g.emaSlow.Value()
	if slow == 0 {
		return 0
	}
	divPct := (g.emaFast.Value() - slow) / slow * 100.0
	return clamp(divPct/g.th.TrendPct, -1, 1)
}

func (g *Generator) momentumScore() float64 {
	return clamp(g.roc.Value()/g.cfg.MomentumNormPct, -1, 1)
}

// confidence shapes |score| by how many indicators agree with its direction.
// Full agreement passes |score| through; a lone dissenting majority halves it.
func (g *Generator) confidence(score float64, scores [4]float64) float64 {
	if score == 0 {
		return 0
	}
	agree := 0
	for _, s := range scores {
		if s == 0 || (s > 0) == (score > 0) {
			agree++
		}
	}
	agreement := 0.5 + 0.5*float64(agree)/4.0
	return clamp(math.Abs(score)*agreement, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
