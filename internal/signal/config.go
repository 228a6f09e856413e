package signal

import "time"

// Weights blends the four indicator scores into one. The regime in force
// selects which weight set applies. Weights should sum to ~1.
type Weights struct {
	RSI      float64 `yaml:"rsi" default:"0.25" validate:"gte=0"`
	MACD     float64 `yaml:"macd" default:"0.25" validate:"gte=0"`
	Trend    float64 `yaml:"trend" default:"0.3" validate:"gte=0"`
	Momentum float64 `yaml:"momentum" default:"0.2" validate:"gte=0"`
}

// KellyConfig tunes position sizing.
type KellyConfig struct {
	BaseFraction float64 `yaml:"base_fraction" default:"0.1" validate:"gt=0,lte=1"`  // used before MinTrades history exists
	MaxFraction  float64 `yaml:"max_fraction" default:"0.25" validate:"gt=0,lte=1"` // hard cap on the Kelly output
	MinTrades    int     `yaml:"min_trades" default:"10" validate:"gt=0"`
	History      int     `yaml:"history" default:"50" validate:"gt=0"` // rolling window of closed trades
}

// RegimeConfig tunes regime classification and its cache.
type RegimeConfig struct {
	Lookback   int           `yaml:"lookback" default:"50" validate:"gt=2"` // trailing candles per classification
	Stride     time.Duration `yaml:"stride" default:"1h"`                   // reclassify once per stride bucket
	CacheTTL   time.Duration `yaml:"cache_ttl" default:"15m"`
	TrendPct   float64       `yaml:"trend_pct" default:"3.0" validate:"gt=0"`
	LowVolPct  float64       `yaml:"low_vol_pct" default:"0.5" validate:"gte=0"`
	HighVolPct float64       `yaml:"high_vol_pct" default:"2.0" validate:"gt=0"`
}

// StrategyConfig holds every tunable of the adaptive signal generator.
// Defaults match the reference parameter set; the optimizer sweeps over
// copies of this struct.
type StrategyConfig struct {
	RSIPeriod  int `yaml:"rsi_period" default:"14" validate:"gt=1"`
	MACDFast   int `yaml:"macd_fast" default:"12" validate:"gt=1"`
	MACDSlow   int `yaml:"macd_slow" default:"26" validate:"gt=1"`
	MACDSignal int `yaml:"macd_signal" default:"9" validate:"gt=1"`
	EMAFast    int `yaml:"ema_fast" default:"9" validate:"gt=1"`
	EMASlow    int `yaml:"ema_slow" default:"21" validate:"gt=1"`
	ROCPeriod  int `yaml:"roc_period" default:"10" validate:"gt=1"`
	ATRPeriod  int `yaml:"atr_period" default:"14" validate:"gt=1"`

	RSIOverbought float64 `yaml:"rsi_overbought" default:"70" validate:"gt=50,lte=100"`
	RSIOversold   float64 `yaml:"rsi_oversold" default:"30" validate:"gte=0,lt=50"`

	// MomentumNormPct normalizes the ROC score: a move of this size scores 1.
	MomentumNormPct float64 `yaml:"momentum_norm_pct" default:"5.0" validate:"gt=0"`

	BuyThreshold  float64 `yaml:"buy_threshold" default:"0.3" validate:"gt=0,lte=1"`
	SellThreshold float64 `yaml:"sell_threshold" default:"0.3" validate:"gt=0,lte=1"`
	MinConfidence float64 `yaml:"min_confidence" default:"0.4" validate:"gte=0,lte=1"`

	BullWeights    Weights `yaml:"bull_weights"`
	BearWeights    Weights `yaml:"bear_weights"`
	NeutralWeights Weights `yaml:"neutral_weights"`

	Kelly  KellyConfig  `yaml:"kelly"`
	Regime RegimeConfig `yaml:"regime"`
}

// WarmupCandles returns how many candles the generator needs before every
// indicator is ready. The backtest start index is offset by this.
func (c *StrategyConfig) WarmupCandles() int {
	warmup := c.RSIPeriod + 1
	if n := c.MACDSlow + c.MACDSignal; n > warmup {
		warmup = n
	}
	if c.EMASlow > warmup {
		warmup = c.EMASlow
	}
	if n := c.ROCPeriod + 1; n > warmup {
		warmup = n
	}
	if n := c.ATRPeriod + 1; n > warmup {
		warmup = n
	}
	if c.Regime.Lookback > warmup {
		warmup = c.Regime.Lookback
	}
	return warmup
}
