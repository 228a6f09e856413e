package signal

// KellySizer derives a position-size fraction from the rolling history of
// closed trades using the Kelly criterion: f = W - (1-W)/R, where W is the
// win rate and R the average win / average loss ratio.
type KellySizer struct {
	cfg     KellyConfig
	history []float64 // closed-trade P&L %, newest last, capped at cfg.History
}

// NewKellySizer creates a sizer with the given tuning.
func NewKellySizer(cfg KellyConfig) *KellySizer {
	return &KellySizer{
		cfg:     cfg,
		history: make([]float64, 0, cfg.History),
	}
}

// Record adds a closed trade's P&L percentage to the rolling history.
func (k *KellySizer) Record(pnlPct float64) {
	if len(k.history) >= k.cfg.History {
		k.history = k.history[1:]
	}
	k.history = append(k.history, pnlPct)
}

// Trades returns how many closed trades are in the rolling history.
func (k *KellySizer) Trades() int { return len(k.history) }

// Fraction returns the cash fraction to commit to the next buy,
// clamped to [0, MaxFraction]. Before MinTrades history exists the fixed
// BaseFraction applies.
func (k *KellySizer) Fraction() float64 {
	if len(k.history) < k.cfg.MinTrades {
		return k.cfg.BaseFraction
	}

	wins := 0
	winSum, lossSum := 0.0, 0.0
	for _, pnl := range k.history {
		if pnl > 0 {
			wins++
			winSum += pnl
		} else {
			lossSum += -pnl
		}
	}

	n := float64(len(k.history))
	w := float64(wins) / n

	if wins == len(k.history) {
		// Never lost: Kelly says everything, the cap says otherwise.
		return k.cfg.MaxFraction
	}
	if wins == 0 {
		return 0
	}

	avgWin := winSum / float64(wins)
	avgLoss := lossSum / float64(len(k.history)-wins)
	if avgLoss == 0 {
		return k.cfg.MaxFraction
	}

	r := avgWin / avgLoss
	f := w - (1-w)/r
	if f < 0 {
		return 0
	}
	if f > k.cfg.MaxFraction {
		return k.cfg.MaxFraction
	}
	return f
}
