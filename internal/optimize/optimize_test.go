package optimize

import (
	"context"
	"testing"
	"time"

	"github.com/creasty/defaults"

	"marketlab/internal/backtest"
	"marketlab/internal/model"
	"marketlab/internal/signal"
)

func baseStrategy(t *testing.T) signal.StrategyConfig {
	t.Helper()
	var cfg signal.StrategyConfig
	if err := defaults.Set(&cfg); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	cfg.RSIPeriod = 3
	cfg.MACDFast = 3
	cfg.MACDSlow = 5
	cfg.MACDSignal = 2
	cfg.EMAFast = 2
	cfg.EMASlow = 4
	cfg.ROCPeriod = 3
	cfg.ATRPeriod = 3
	cfg.Regime.Lookback = 5
	return cfg
}

func flatSeries(n int) []model.Candle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{
			Symbol: "BTCUSDT",
			TS:     base.Add(time.Duration(i) * time.Hour),
			Open:   100, High: 100.5, Low: 99.5, Close: 100,
			Volume: 1,
		}
	}
	return out
}

func TestExpand_GridSize(t *testing.T) {
	base := baseStrategy(t)

	cases := []struct {
		name   string
		ranges Ranges
		want   int
	}{
		{"empty ranges keep the base", Ranges{}, 1},
		{"one axis", Ranges{BuyThresholds: []float64{0.2, 0.3, 0.4}}, 3},
		{
			"two axes multiply",
			Ranges{BuyThresholds: []float64{0.2, 0.3}, RSIPeriods: []int{7, 14, 21}},
			6,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Expand(base, tc.ranges)
			if len(got) != tc.want {
				t.Errorf("Expand produced %d configs, want %d", len(got), tc.want)
			}
		})
	}
}

func TestExpand_DropsInvertedEMAs(t *testing.T) {
	base := baseStrategy(t)
	r := Ranges{EMAFast: []int{2, 5, 9}, EMASlow: []int{4, 8}}

	// 6 combinations, minus (5,4), (9,4), (9,8) and the equal-or-inverted
	// rest: valid pairs are (2,4), (2,8), (5,8) → 3
	got := Expand(base, r)
	if len(got) != 3 {
		t.Fatalf("Expand produced %d configs, want 3", len(got))
	}
	for _, c := range got {
		if c.EMAFast >= c.EMASlow {
			t.Errorf("kept invalid pair fast=%d slow=%d", c.EMAFast, c.EMASlow)
		}
	}
}

func TestExpand_SetsValues(t *testing.T) {
	base := baseStrategy(t)
	got := Expand(base, Ranges{MinConfidences: []float64{0.5}})
	if len(got) != 1 {
		t.Fatalf("Expand produced %d configs, want 1", len(got))
	}
	if got[0].MinConfidence != 0.5 {
		t.Errorf("MinConfidence=%.2f, want swept 0.5", got[0].MinConfidence)
	}
	if got[0].BuyThreshold != base.BuyThreshold {
		t.Error("unswept parameter changed")
	}
}

func TestScore_PenalizesDrawdown(t *testing.T) {
	calm := &backtest.Result{TotalReturnPct: 10, MaxDrawdownPct: 2}
	wild := &backtest.Result{TotalReturnPct: 10, MaxDrawdownPct: 12}

	if Score(calm) != 9 {
		t.Errorf("Score(calm)=%.2f, want 9", Score(calm))
	}
	if Score(wild) >= Score(calm) {
		t.Errorf("Score did not penalize drawdown: calm=%.2f wild=%.2f", Score(calm), Score(wild))
	}
}

func TestSweep_RanksAndTruncates(t *testing.T) {
	cfg := Config{TrainRatio: 0.7, TopN: 2}
	ranges := Ranges{BuyThresholds: []float64{0.2, 0.3, 0.4}}
	candles := flatSeries(60)

	runs, err := Sweep(context.Background(), cfg, baseStrategy(t), ranges, backtest.Config{InitialBalance: 10000}, candles)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("got %d runs, want TopN=2", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].Score > runs[i-1].Score {
			t.Errorf("runs not sorted best first: %.2f before %.2f", runs[i-1].Score, runs[i].Score)
		}
	}
	for _, r := range runs {
		if r.Train == nil || r.Validate == nil {
			t.Error("run missing a segment result")
		}
	}
}

func TestSweep_TooFewCandles(t *testing.T) {
	_, err := Sweep(context.Background(), Config{TrainRatio: 0.7, TopN: 5},
		baseStrategy(t), Ranges{}, backtest.Config{InitialBalance: 10000}, flatSeries(5))
	if err == nil {
		t.Error("Sweep with 5 candles did not error")
	}
}

func TestSweep_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Sweep(ctx, Config{TrainRatio: 0.7, TopN: 5},
		baseStrategy(t), Ranges{}, backtest.Config{InitialBalance: 10000}, flatSeries(60))
	if err != context.Canceled {
		t.Errorf("err=%v, want context.Canceled", err)
	}
}
