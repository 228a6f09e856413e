package signal

import (
	"math"
	"testing"
	"time"

	"github.com/creasty/defaults"

	"marketlab/internal/model"
)

func testStrategy(t *testing.T) StrategyConfig {
	t.Helper()
	var cfg StrategyConfig
	if err := defaults.Set(&cfg); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	// Small periods keep the fixtures short.
	cfg.RSIPeriod = 3
	cfg.MACDFast = 3
	cfg.MACDSlow = 5
	cfg.MACDSignal = 2
	cfg.EMAFast = 2
	cfg.EMASlow = 4
	cfg.ROCPeriod = 3
	cfg.ATRPeriod = 3
	cfg.Regime.Lookback = 10
	return cfg
}

func tick(g *Generator, i int, close float64) Signal {
	c := model.Candle{
		Symbol: "BTCUSDT",
		TS:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		Open:   close,
		High:   close + 0.5,
		Low:    close - 0.5,
		Close:  close,
		Volume: 1,
	}
	return g.OnCandle(c)
}

func TestOnCandle_WarmupHolds(t *testing.T) {
	g := NewGenerator(testStrategy(t))
	for i := 0; i < 9; i++ {
		sig := tick(g, i, 100+float64(i))
		if sig.Action != model.ActionHold {
			t.Fatalf("candle %d during warmup: action=%s, want HOLD", i, sig.Action)
		}
		if sig.Reason != "warmup" {
			t.Fatalf("candle %d during warmup: reason=%q", i, sig.Reason)
		}
	}
	if !g.Warmup() {
		t.Error("Warmup()=false after 9 candles, lookback is 10")
	}
}

func TestOnCandle_SustainedRallySellsContrarian(t *testing.T) {
	// A steep unbroken rally pins RSI at 100 and the contrarian RSI score at
	// -1, but the trend and momentum legs score +1. With equal-sided default
	// weights the blend is positive.
	cfg := testStrategy(t)
	g := NewGenerator(cfg)

	var sig Signal
	for i := 0; i < 30; i++ {
		sig = tick(g, i, 100*math.Pow(1.02, float64(i)))
	}

	if sig.Reason == "warmup" {
		t.Fatal("still warming up after 30 candles")
	}
	if sig.Score <= 0 {
		t.Errorf("score=%.3f in a sustained rally, want > 0", sig.Score)
	}
	if sig.Score > 1 {
		t.Errorf("score=%.3f, want clamped to 1", sig.Score)
	}
	if sig.Confidence < 0 || sig.Confidence > 1 {
		t.Errorf("confidence=%.3f out of [0,1]", sig.Confidence)
	}
}

func TestRSIScore_Contrarian(t *testing.T) {
	cfg := testStrategy(t)
	g := NewGenerator(cfg)

	// Monotone gains pin RSI at 100: (50-100)/(70-50) = -2.5 → clamped -1.
	for i := 0; i < 10; i++ {
		tick(g, i, 100+float64(i))
	}
	if got := g.rsiScore(); got != -1 {
		t.Errorf("rsiScore()=%.3f with RSI=100, want -1", got)
	}

	// Monotone losses pin RSI at 0 → score clamped +1.
	g2 := NewGenerator(cfg)
	for i := 0; i < 10; i++ {
		tick(g2, i, 100-float64(i))
	}
	if got := g2.rsiScore(); got != 1 {
		t.Errorf("rsiScore()=%.3f with RSI=0, want 1", got)
	}
}

func TestRSIScore_AsymmetricThresholds(t *testing.T) {
	// Closes 100, 99, 97, 98 seed RSI(3) with avgGain=1/3, avgLoss=1 →
	// RSI=25. With oversold at 10 the bullish span is 40: (50-25)/40 = 0.625.
	cfg := testStrategy(t)
	cfg.RSIOversold = 10
	cfg.RSIOverbought = 70
	g := NewGenerator(cfg)
	for i, close := range []float64{100, 99, 97, 98} {
		tick(g, i, close)
	}
	if got := g.rsiScore(); math.Abs(got-0.625) > 1e-9 {
		t.Errorf("rsiScore()=%.4f with RSI=25 and oversold=10, want 0.625", got)
	}

	// Mirror case: closes 100, 101, 103, 102 → RSI=75. With overbought at 90
	// the bearish span is 40: (50-75)/40 = -0.625.
	cfg2 := testStrategy(t)
	cfg2.RSIOversold = 30
	cfg2.RSIOverbought = 90
	g2 := NewGenerator(cfg2)
	for i, close := range []float64{100, 101, 103, 102} {
		tick(g2, i, close)
	}
	if got := g2.rsiScore(); math.Abs(got-(-0.625)) > 1e-9 {
		t.Errorf("rsiScore()=%.4f with RSI=75 and overbought=90, want -0.625", got)
	}
}

func TestTrendScore_FlatIsZero(t *testing.T) {
	g := NewGenerator(testStrategy(t))
	for i := 0; i < 15; i++ {
		tick(g, i, 100)
	}
	if got := g.trendScore(); math.Abs(got) > 1e-9 {
		t.Errorf("trendScore()=%.6f on a flat series, want 0", got)
	}
	if got := g.macdScore(); math.Abs(got) > 1e-9 {
		t.Errorf("macdScore()=%.6f on a flat series, want 0", got)
	}
	if got := g.momentumScore(); math.Abs(got) > 1e-9 {
		t.Errorf("momentumScore()=%.6f on a flat series, want 0", got)
	}
}

func TestWarmupCandles_CoversLongestLookback(t *testing.T) {
	cfg := testStrategy(t)
	// The regime lookback of 10 dominates the shrunken indicator periods.
	if got := cfg.WarmupCandles(); got != 10 {
		t.Errorf("WarmupCandles()=%d, want 10 from the regime lookback", got)
	}

	// An ATR period longer than everything else must extend the warmup.
	cfg.ATRPeriod = 40
	if got := cfg.WarmupCandles(); got != 41 {
		t.Errorf("WarmupCandles()=%d with ATR period 40, want 41", got)
	}
}

func TestConfidence_AgreementShaping(t *testing.T) {
	g := NewGenerator(testStrategy(t))

	cases := []struct {
		name   string
		score  float64
		scores [4]float64
		want   float64
	}{
		{"full agreement", 0.8, [4]float64{0.5, 0.9, 1, 0.8}, 0.8},
		{"one dissenter", 0.6, [4]float64{-0.2, 0.9, 1, 0.7}, 0.6 * 0.875},
		{"two dissenters", 0.4, [4]float64{-0.2, -0.1, 1, 0.9}, 0.4 * 0.75},
		{"zero counts as agreeing", 0.8, [4]float64{0, 0.9, 1, 0.8}, 0.8},
		{"zero score", 0, [4]float64{0.5, -0.5, 0.5, -0.5}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := g.confidence(tc.score, tc.scores)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("confidence=%.4f, want %.4f", got, tc.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if got := clamp(1.5, -1, 1); got != 1 {
		t.Errorf("clamp(1.5)=%v", got)
	}
	if got := clamp(-1.5, -1, 1); got != -1 {
		t.Errorf("clamp(-1.5)=%v", got)
	}
	if got := clamp(0.3, -1, 1); got != 0.3 {
		t.Errorf("clamp(0.3)=%v", got)
	}
}
