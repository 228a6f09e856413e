// Package optimize sweeps strategy parameters over a grid with a
// walk-forward split: every combination is backtested on the training
// segment, then scored on the held-out validation segment so the ranking
// rewards out-of-sample behavior, not curve fit.
package optimize

import (
	"context"
	"fmt"
	"log"
	"sort"

	"marketlab/internal/backtest"
	"marketlab/internal/model"
	"marketlab/internal/signal"
)

// Ranges lists candidate values per swept parameter. An empty slice keeps
// the base config's value.
type Ranges struct {
	BuyThresholds  []float64 `yaml:"buy_thresholds"`
	SellThresholds []float64 `yaml:"sell_thresholds"`
	MinConfidences []float64 `yaml:"min_confidences"`
	RSIPeriods     []int     `yaml:"rsi_periods"`
	EMAFast        []int     `yaml:"ema_fast"`
	EMASlow        []int     `yaml:"ema_slow"`
}

// Config holds sweep-level parameters.
type Config struct {
	TrainRatio float64 `yaml:"train_ratio" default:"0.7" validate:"gt=0,lt=1"`
	TopN       int     `yaml:"top_n" default:"10" validate:"gt=0"`
}

// Run is one evaluated parameter combination.
type Run struct {
	Strategy signal.StrategyConfig
	Train    *backtest.Result
	Validate *backtest.Result
	Score    float64
}

// Score ranks a validation result: return net of half the drawdown, so two
// configs with equal return sort by risk taken.
func Score(r *backtest.Result) float64 {
	return r.TotalReturnPct - r.MaxDrawdownPct/2
}

// Sweep evaluates the full grid and returns the top cfg.TopN runs by
// validation score, best first.
func Sweep(ctx context.Context, cfg Config, base signal.StrategyConfig, ranges Ranges, btCfg backtest.Config, candles []model.Candle) ([]Run, error) {
	if len(candles) < 10 {
		return nil, fmt.Errorf("optimize: need at least 10 candles, have %d", len(candles))
	}

	split := int(float64(len(candles)) * cfg.TrainRatio)
	train, validate := candles[:split], candles[split:]
	if len(train) == 0 || len(validate) == 0 {
		return nil, fmt.Errorf("optimize: train ratio %.2f leaves an empty segment", cfg.TrainRatio)
	}

	grid := Expand(base, ranges)
	log.Printf("[optimize] sweeping %d combinations (train=%d validate=%d candles)",
		len(grid), len(train), len(validate))

	runs := make([]Run, 0, len(grid))
	for i, strat := range grid {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		trainRes, err := backtest.New(btCfg, strat, train).Run()
		if err != nil {
			return nil, fmt.Errorf("optimize: train run %d: %w", i, err)
		}
		valRes, err := backtest.New(btCfg, strat, validate).Run()
		if err != nil {
			return nil, fmt.Errorf("optimize: validate run %d: %w", i, err)
		}
		runs = append(runs, Run{
			Strategy: strat,
			Train:    trainRes,
			Validate: valRes,
			Score:    Score(valRes),
		})
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Score > runs[j].Score })
	if len(runs) > cfg.TopN {
		runs = runs[:cfg.TopN]
	}
	return runs, nil
}

// Expand materializes the parameter grid. Combinations where the fast EMA is
// not shorter than the slow EMA are skipped.
func Expand(base signal.StrategyConfig, r Ranges) []signal.StrategyConfig {
	out := []signal.StrategyConfig{base}

	out = expandFloat(out, r.BuyThresholds, func(c *signal.StrategyConfig, v float64) { c.BuyThreshold = v })
	out = expandFloat(out, r.SellThresholds, func(c *signal.StrategyConfig, v float64) { c.SellThreshold = v })
	out = expandFloat(out, r.MinConfidences, func(c *signal.StrategyConfig, v float64) { c.MinConfidence = v })
	out = expandInt(out, r.RSIPeriods, func(c *signal.StrategyConfig, v int) { c.RSIPeriod = v })
	out = expandInt(out, r.EMAFast, func(c *signal.StrategyConfig, v int) { c.EMAFast = v })
	out = expandInt(out, r.EMASlow, func(c *signal.StrategyConfig, v int) { c.EMASlow = v })

	valid := out[:0]
	for _, c := range out {
		if c.EMAFast < c.EMASlow {
			valid = append(valid, c)
		}
	}
	return valid
}

func expandFloat(in []signal.StrategyConfig, values []float64, set func(*signal.StrategyConfig, float64)) []signal.StrategyConfig {
	if len(values) == 0 {
		return in
	}
	out := make([]signal.StrategyConfig, 0, len(in)*len(values))
	for _, c := range in {
		for _, v := range values {
			cc := c
			set(&cc, v)
			out = append(out, cc)
		}
	}
	return out
}

func expandInt(in []signal.StrategyConfig, values []int, set func(*signal.StrategyConfig, int)) []signal.StrategyConfig {
	if len(values) == 0 {
		return in
	}
	out := make([]signal.StrategyConfig, 0, len(in)*len(values))
	for _, c := range in {
		for _, v := range values {
			cc := c
			set(&cc, v)
			out = append(out, cc)
		}
	}
	return out
}
