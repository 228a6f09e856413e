// Package backtest replays historical candles through the adaptive signal
// generator and simulates a single-position portfolio: Kelly-sized buys,
// full liquidations on sells, commission on both legs.
package backtest

import (
	"fmt"
	"log"
	"time"

	"marketlab/internal/model"
	"marketlab/internal/signal"
)

// Config holds portfolio-level backtest parameters.
type Config struct {
	InitialBalance float64   `yaml:"initial_balance" default:"10000" validate:"gt=0"`
	CommissionRate float64   `yaml:"commission_rate" default:"0.001" validate:"gte=0,lt=1"`
	From           time.Time `yaml:"-"` // zero = start of data
}

// Backtester walks a candle series once and produces a Result.
type Backtester struct {
	cfg     Config
	strat   signal.StrategyConfig
	candles []model.Candle
}

// New creates a Backtester. Candles must be sorted and deduplicated;
// use model.Merge on raw batches first.
func New(cfg Config, strat signal.StrategyConfig, candles []model.Candle) *Backtester {
	return &Backtester{cfg: cfg, strat: strat, candles: candles}
}

// Run executes the walk and returns aggregate metrics.
func (b *Backtester) Run() (*Result, error) {
	if len(b.candles) == 0 {
		return nil, fmt.Errorf("backtest: no candles")
	}

	start := model.StartIndex(b.candles, b.cfg.From)
	if start >= len(b.candles) {
		return nil, fmt.Errorf("backtest: start time %s is after the last candle", b.cfg.From.Format(time.RFC3339))
	}

	gen := signal.NewGenerator(b.strat)
	kelly := signal.NewKellySizer(b.strat.Kelly)

	// Warm the generator on candles before the trading window when available.
	warmStart := start - b.strat.WarmupCandles()
	if warmStart < 0 {
		warmStart = 0
	}
	for i := warmStart; i < start; i++ {
		gen.OnCandle(b.candles[i])
	}

	cash := b.cfg.InitialBalance
	asset := 0.0
	entryValue := 0.0

	res := &Result{
		Symbol:         b.candles[start].Symbol,
		StartTS:        b.candles[start].TS,
		EndTS:          b.candles[len(b.candles)-1].TS,
		InitialBalance: b.cfg.InitialBalance,
		Equity:         make([]float64, 0, len(b.candles)-start),
	}

	peak := cash
	for i := start; i < len(b.candles); i++ {
		c := b.candles[i]
		sig := gen.OnCandle(c)

		if sig.Confidence >= b.strat.MinConfidence {
			switch sig.Action {
			case model.ActionBuy:
				if asset == 0 && cash > 0 {
					if t, ok := b.executeBuy(&cash, &asset, &entryValue, c, kelly.Fraction(), sig.Reason); ok {
						res.Trades = append(res.Trades, t)
					}
				}
			case model.ActionSell:
				if asset > 0 {
					t := b.executeSell(&cash, &asset, entryValue, c, sig.Reason)
					kelly.Record(t.PnLPct)
					if t.Win() {
						res.Wins++
					} else {
						res.Losses++
					}
					res.Trades = append(res.Trades, t)
				}
			}
		}

		equity := cash + asset*c.Close
		res.Equity = append(res.Equity, equity)
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak * 100.0; dd > res.MaxDrawdownPct {
				res.MaxDrawdownPct = dd
			}
		}
	}

	// Mark the open position to market at the last close.
	last := b.candles[len(b.candles)-1]
	res.FinalEquity = cash + asset*last.Close
	res.OpenPosition = asset
	res.Candles = len(b.candles) - start
	res.TotalTrades = len(res.Trades)
	res.finalize(candleInterval(b.candles))

	log.Printf("[backtest] %s: %d candles, %d trades, return %.2f%%, maxDD %.2f%%",
		res.Symbol, res.Candles, res.TotalTrades, res.TotalReturnPct, res.MaxDrawdownPct)
	return res, nil
}

// executeBuy spends a Kelly-sized fraction of cash. Returns ok=false when
// the fraction rounds to nothing.
func (b *Backtester) executeBuy(cash, asset, entryValue *float64, c model.Candle, fraction float64, reason string) (model.Trade, bool) {
	spend := *cash * fraction
	if spend <= 0 || c.Close <= 0 {
		return model.Trade{}, false
	}
	fee := spend * b.cfg.CommissionRate
	amount := (spend - fee) / c.Close

	*cash -= spend
	*asset += amount
	*entryValue = spend

	return model.Trade{
		Symbol:   c.Symbol,
		Action:   model.ActionBuy,
		Price:    c.Close,
		Amount:   amount,
		Value:    spend,
		Fee:      fee,
		Reason:   reason,
		Executed: c.TS,
	}, true
}

// executeSell liquidates the whole position.
func (b *Backtester) executeSell(cash, asset *float64, entryValue float64, c model.Candle, reason string) model.Trade {
	proceeds := *asset * c.Close
	fee := proceeds * b.cfg.CommissionRate
	net := proceeds - fee

	pnl := net - entryValue
	pnlPct := 0.0
	if entryValue > 0 {
		pnlPct = pnl / entryValue * 100.0
	}

	t := model.Trade{
		Symbol:   c.Symbol,
		Action:   model.ActionSell,
		Price:    c.Close,
		Amount:   *asset,
		Value:    proceeds,
		Fee:      fee,
		PnL:      pnl,
		PnLPct:   pnlPct,
		Reason:   reason,
		Executed: c.TS,
	}

	*cash += net
	*asset = 0
	return t
}

// candleInterval infers the bar interval from the first adjacent pair.
// Falls back to one hour when the series is too short to tell.
func candleInterval(candles []model.Candle) time.Duration {
	if len(candles) >= 2 {
		if d := candles[1].TS.Sub(candles[0].TS); d > 0 {
			return d
		}
	}
	return time.Hour
}
