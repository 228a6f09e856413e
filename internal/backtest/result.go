package backtest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"marketlab/internal/model"
)

// Result aggregates the outcome of one backtest walk.
type Result struct {
	Symbol          string        `json:"symbol"`
	Candles         int           `json:"candles"`
	StartTS         time.Time     `json:"start_ts"`
	EndTS           time.Time     `json:"end_ts"`
	InitialBalance  float64       `json:"initial_balance"`
	FinalEquity     float64       `json:"final_equity"`
	OpenPosition    float64       `json:"open_position"` // unsold asset, marked to market
	TotalReturnPct  float64       `json:"total_return_pct"`
	AnnualReturnPct float64       `json:"annual_return_pct"`
	MaxDrawdownPct  float64       `json:"max_drawdown_pct"`
	Sharpe          float64       `json:"sharpe"`
	TotalTrades     int           `json:"total_trades"`
	Wins            int           `json:"wins"`
	Losses          int           `json:"losses"`
	WinRate         float64       `json:"win_rate"`
	Trades          []model.Trade `json:"trades,omitempty"`
	Equity          []float64     `json:"-"`
}

// finalize derives the ratio metrics once the walk has filled the raw fields.
func (r *Result) finalize(interval time.Duration) {
	if r.InitialBalance > 0 {
		r.TotalReturnPct = (r.FinalEquity - r.InitialBalance) / r.InitialBalance * 100.0
	}

	closed := r.Wins + r.Losses
	if closed > 0 {
		r.WinRate = float64(r.Wins) / float64(closed)
	}

	years := r.EndTS.Sub(r.StartTS).Hours() / (24 * 365)
	if years > 0 && r.InitialBalance > 0 && r.FinalEquity > 0 {
		r.AnnualReturnPct = (math.Pow(r.FinalEquity/r.InitialBalance, 1/years) - 1) * 100.0
	}

	r.Sharpe = sharpe(r.Equity, interval)
}

// sharpe computes the annualized Sharpe ratio (zero risk-free rate) from the
// per-step equity curve.
func sharpe(equity []float64, interval time.Duration) float64 {
	if len(equity) < 2 || interval <= 0 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] != 0 {
			returns = append(returns, (equity[i]-equity[i-1])/equity[i-1])
		}
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range returns {
		mean += v
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, v := range returns {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	periodsPerYear := float64(365*24*time.Hour) / float64(interval)
	return mean / std * math.Sqrt(periodsPerYear)
}

// Summary renders the result as a console box.
func (r *Result) Summary() string {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, "║  %-36s ║\n", fmt.Sprintf(format, args...))
	}
	b.WriteString("╔══════════════════════════════════════╗\n")
	b.WriteString("║        BACKTEST COMPLETE             ║\n")
	b.WriteString("╠══════════════════════════════════════╣\n")
	line("Symbol:         %s", r.Symbol)
	line("Candles:        %d", r.Candles)
	line("Period:         %s → %s", r.StartTS.Format("2006-01-02"), r.EndTS.Format("2006-01-02"))
	line("Final equity:   %.2f", r.FinalEquity)
	line("Total return:   %.2f%%", r.TotalReturnPct)
	line("Annual return:  %.2f%%", r.AnnualReturnPct)
	line("Max drawdown:   %.2f%%", r.MaxDrawdownPct)
	line("Sharpe:         %.2f", r.Sharpe)
	line("Trades:         %d (W%d/L%d, %.0f%%)", r.TotalTrades, r.Wins, r.Losses, r.WinRate*100)
	b.WriteString("╚══════════════════════════════════════╝")
	return b.String()
}
