package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/creasty/defaults"

	"marketlab/internal/model"
	"marketlab/internal/signal"
)

func testStrategy(t *testing.T) signal.StrategyConfig {
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
	cfg.Regime.Lookback = 10
	return cfg
}

func series(closes ...float64) []model.Candle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = model.Candle{
			Symbol: "BTCUSDT",
			TS:     base.Add(time.Duration(i) * time.Hour),
			Open:   c, High: c + 0.5, Low: c - 0.5, Close: c,
			Volume: 1,
		}
	}
	return out
}

func TestExecuteBuy_Arithmetic(t *testing.T) {
	b := &Backtester{cfg: Config{InitialBalance: 10000, CommissionRate: 0.001}}
	cash, asset, entryValue := 10000.0, 0.0, 0.0
	c := series(100)[0]

	tr, ok := b.executeBuy(&cash, &asset, &entryValue, c, 0.1, "test")
	if !ok {
		t.Fatal("executeBuy returned ok=false")
	}

	// spend 1000, fee 1, amount (1000-1)/100 = 9.99
	if math.Abs(tr.Value-1000) > 1e-9 || math.Abs(tr.Fee-1) > 1e-9 {
		t.Errorf("value=%.4f fee=%.4f, want 1000 / 1", tr.Value, tr.Fee)
	}
	if math.Abs(tr.Amount-9.99) > 1e-9 {
		t.Errorf("amount=%.6f, want 9.99", tr.Amount)
	}
	if math.Abs(cash-9000) > 1e-9 {
		t.Errorf("cash=%.4f after buy, want 9000", cash)
	}
	if math.Abs(asset-9.99) > 1e-9 {
		t.Errorf("asset=%.6f after buy, want 9.99", asset)
	}
	if entryValue != 1000 {
		t.Errorf("entryValue=%.4f, want 1000", entryValue)
	}
	if tr.Action != model.ActionBuy {
		t.Errorf("action=%s, want BUY", tr.Action)
	}
}

func TestExecuteBuy_ZeroFraction(t *testing.T) {
	b := &Backtester{cfg: Config{CommissionRate: 0.001}}
	cash, asset, entryValue := 10000.0, 0.0, 0.0

	if _, ok := b.executeBuy(&cash, &asset, &entryValue, series(100)[0], 0, "test"); ok {
		t.Error("executeBuy with fraction 0 executed")
	}
	if cash != 10000 || asset != 0 {
		t.Errorf("state mutated on rejected buy: cash=%.2f asset=%.4f", cash, asset)
	}
}

func TestExecuteSell_Arithmetic(t *testing.T) {
	b := &Backtester{cfg: Config{CommissionRate: 0.001}}
	cash, asset := 9000.0, 9.99
	c := series(110)[0]

	tr := b.executeSell(&cash, &asset, 1000, c, "test")

	// proceeds 9.99*110 = 1098.9, fee 1.0989, net 1097.8011
	// pnl 97.8011 on entry 1000 → 9.78011%
	if math.Abs(tr.Value-1098.9) > 1e-9 {
		t.Errorf("value=%.6f, want 1098.9", tr.Value)
	}
	if math.Abs(tr.Fee-1.0989) > 1e-9 {
		t.Errorf("fee=%.6f, want 1.0989", tr.Fee)
	}
	if math.Abs(tr.PnL-97.8011) > 1e-6 {
		t.Errorf("pnl=%.6f, want 97.8011", tr.PnL)
	}
	if math.Abs(tr.PnLPct-9.78011) > 1e-6 {
		t.Errorf("pnlPct=%.6f, want 9.78011", tr.PnLPct)
	}
	if !tr.Win() {
		t.Error("profitable sell not counted as a win")
	}
	if asset != 0 {
		t.Errorf("asset=%.6f after liquidation, want 0", asset)
	}
	if math.Abs(cash-(9000+1097.8011)) > 1e-6 {
		t.Errorf("cash=%.6f after sell, want 10097.8011", cash)
	}
}

func TestRun_FlatSeriesHolds(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}

	bt := New(Config{InitialBalance: 10000, CommissionRate: 0.001}, testStrategy(t), series(closes...))
	res, err := bt.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.TotalTrades != 0 {
		t.Errorf("flat series produced %d trades, want 0", res.TotalTrades)
	}
	if res.FinalEquity != 10000 {
		t.Errorf("final equity=%.2f, want untouched 10000", res.FinalEquity)
	}
	if res.TotalReturnPct != 0 || res.MaxDrawdownPct != 0 {
		t.Errorf("return=%.2f%% maxDD=%.2f%%, want 0/0", res.TotalReturnPct, res.MaxDrawdownPct)
	}
	if res.Candles != 40 || len(res.Equity) != 40 {
		t.Errorf("candles=%d equity points=%d, want 40/40", res.Candles, len(res.Equity))
	}
}

func TestRun_Errors(t *testing.T) {
	strat := testStrategy(t)

	if _, err := New(Config{InitialBalance: 10000}, strat, nil).Run(); err == nil {
		t.Error("Run with no candles did not error")
	}

	cfg := Config{InitialBalance: 10000, From: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	if _, err := New(cfg, strat, series(100, 101, 102)).Run(); err == nil {
		t.Error("Run with From after the last candle did not error")
	}
}

// ───────────────────────────────────────────────────────────────────────────

func TestSharpe_HandComputed(t *testing.T) {
	// equity 100 → 102 → 101: returns +2%, -0.98039%
	// mean 0.0050980, sample std 0.0210746, ratio 0.241905
	// hourly bars → ×√8760 = 22.641
	got := sharpe([]float64{100, 102, 101}, time.Hour)
	if math.Abs(got-22.641) > 0.01 {
		t.Errorf("sharpe=%.4f, want 22.641", got)
	}
}

func TestSharpe_Degenerate(t *testing.T) {
	if got := sharpe([]float64{100, 110}, time.Hour); got != 0 {
		t.Errorf("sharpe with one return=%.4f, want 0", got)
	}
	// constant growth rate → zero variance
	if got := sharpe([]float64{100, 110, 121}, time.Hour); got != 0 {
		t.Errorf("sharpe with zero variance=%.4f, want 0", got)
	}
	if got := sharpe(nil, time.Hour); got != 0 {
		t.Errorf("sharpe(nil)=%.4f, want 0", got)
	}
}

func TestFinalize_WinRateAndReturn(t *testing.T) {
	r := &Result{
		InitialBalance: 10000,
		FinalEquity:    12000,
		Wins:           3,
		Losses:         1,
		StartTS:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTS:          time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	r.finalize(time.Hour)

	if math.Abs(r.TotalReturnPct-20) > 1e-9 {
		t.Errorf("total return=%.4f%%, want 20%%", r.TotalReturnPct)
	}
	if math.Abs(r.WinRate-0.75) > 1e-9 {
		t.Errorf("win rate=%.4f, want 0.75", r.WinRate)
	}
	if r.AnnualReturnPct <= r.TotalReturnPct {
		t.Errorf("annualized %.2f%% not above total %.2f%% for a one-day run", r.AnnualReturnPct, r.TotalReturnPct)
	}
}

func TestCandleInterval(t *testing.T) {
	if got := candleInterval(series(1, 2, 3)); got != time.Hour {
		t.Errorf("interval=%s, want 1h", got)
	}
	if got := candleInterval(series(1)); got != time.Hour {
		t.Errorf("short-series fallback=%s, want 1h", got)
	}
}
