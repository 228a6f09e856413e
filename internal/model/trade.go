package model

import "time"

// Action is a trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Trade records one executed (simulated) trade.
type Trade struct {
	Symbol   string    `json:"symbol"`
	Action   Action    `json:"action"`
	Price    float64   `json:"price"`
	Amount   float64   `json:"amount"` // asset quantity
	Value    float64   `json:"value"`  // quote value before fee
	Fee      float64   `json:"fee"`
	PnL      float64   `json:"pnl"`     // realized P&L, sells only
	PnLPct   float64   `json:"pnl_pct"` // realized P&L as % of entry value
	Reason   string    `json:"reason"`
	Executed time.Time `json:"executed"`
}

// Win reports whether a closed trade was profitable.
func (t *Trade) Win() bool { return t.PnL > 0 }
