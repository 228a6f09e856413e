package indicator

import (
	"math"
	"testing"

	"marketlab/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func candle(close float64) model.Candle {
	return model.Candle{
		Symbol: "TEST",
		Open:   close, High: close + 0.5, Low: close - 0.5, Close: close,
	}
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Hand-calculated SMA(3) for a known price series:
	// Prices: 100, 102, 104, 103, 105
	// SMA after candle 3: (100+102+104)/3 = 102.0000
	// SMA after candle 4: (102+104+103)/3 = 103.0000
	// SMA after candle 5: (104+103+105)/3 = 104.0000

	sma := NewSMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Update(candle(p))
		if sma.Ready() != ready[i] {
			t.Errorf("candle %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value(), expected[i], 0.0001)
		}
	}
}

func TestSMA_Peek_DoesNotMutate(t *testing.T) {
	sma := NewSMA(3)
	for _, p := range []float64{100, 102, 104} {
		sma.Update(candle(p))
	}
	valueBefore := sma.Value()

	// Peek with 106 → expected: (102+104+106)/3 = 104
	assertClose(t, "SMA Peek", sma.Peek(106), 104.0, 0.0001)
	assertClose(t, "SMA after Peek", sma.Value(), valueBefore, 0.0001)
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// EMA(3): multiplier = 2/(3+1) = 0.5
	// Prices: 100, 102, 104, 103, 105
	//
	// Candle 3: SMA seed = (100+102+104)/3 = 102.0
	// Candle 4: EMA = 103*0.5 + 102.0*0.5 = 102.5
	// Candle 5: EMA = 105*0.5 + 102.5*0.5 = 103.75

	ema := NewEMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 102.5, 103.75}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		ema.Update(candle(p))
		if ema.Ready() != ready[i] {
			t.Errorf("candle %d: Ready()=%v, want %v", i, ema.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "EMA(3)", ema.Value(), expected[i], 0.0001)
		}
	}
}

func TestEMA_Peek_DoesNotMutate(t *testing.T) {
	ema := NewEMA(3)
	for _, p := range []float64{100, 102, 104} {
		ema.Update(candle(p))
	}
	// Peek with 106: 106*0.5 + 102*0.5 = 104.0
	assertClose(t, "EMA Peek", ema.Peek(106), 104.0, 0.0001)
	assertClose(t, "EMA after Peek", ema.Value(), 102.0, 0.0001)
}

// ────────────────────────────────────────────────────────────
// RSI Correctness (Wilder's smoothing)
// ────────────────────────────────────────────────────────────

func TestRSI_AllGainsIs100(t *testing.T) {
	rsi := NewRSI(3)
	for _, p := range []float64{100, 101, 102, 103, 104} {
		rsi.Update(candle(p))
	}
	if !rsi.Ready() {
		t.Fatal("RSI not ready after period+2 candles")
	}
	assertClose(t, "RSI all gains", rsi.Value(), 100.0, 0.0001)
}

func TestRSI_Correctness_Period3(t *testing.T) {
	// Prices: 100, 101, 103, 102, 104
	// Deltas:     +1,  +2,  -1,  +2
	//
	// Seed after 4 candles (3 deltas): avgGain=(1+2+0)/3=1.0, avgLoss=(0+0+1)/3=0.3333
	//   RS=3.0 → RSI = 100 - 100/4 = 75.0
	// Candle 5 (+2): avgGain=(1.0*2+2)/3=1.3333, avgLoss=(0.3333*2+0)/3=0.2222
	//   RS=6.0 → RSI = 100 - 100/7 = 85.7143

	rsi := NewRSI(3)
	prices := []float64{100, 101, 103, 102, 104}
	for i, p := range prices {
		rsi.Update(candle(p))
		if i == 3 {
			assertClose(t, "RSI seed", rsi.Value(), 75.0, 0.001)
		}
	}
	assertClose(t, "RSI smoothed", rsi.Value(), 85.7143, 0.001)
}

// ────────────────────────────────────────────────────────────
// MACD
// ────────────────────────────────────────────────────────────

func TestMACD_FlatSeriesIsZero(t *testing.T) {
	macd := NewMACD(3, 5, 2)
	for i := 0; i < 20; i++ {
		macd.Update(candle(50))
	}
	if !macd.Ready() {
		t.Fatal("MACD not ready after 20 flat candles")
	}
	assertClose(t, "MACD flat line", macd.Value(), 0, 1e-9)
	assertClose(t, "MACD flat hist", macd.Histogram(), 0, 1e-9)
}

func TestMACD_UptrendPositive(t *testing.T) {
	macd := NewMACD(3, 6, 2)
	price := 100.0
	for i := 0; i < 30; i++ {
		price *= 1.01
		macd.Update(candle(price))
	}
	if macd.Value() <= 0 {
		t.Errorf("MACD line in steady uptrend = %.4f, want > 0", macd.Value())
	}
}

// ────────────────────────────────────────────────────────────
// ROC
// ────────────────────────────────────────────────────────────

func TestROC_Correctness(t *testing.T) {
	// Period 2, prices 100, 110, 121, 133.1:
	// Candle 3: (121-100)/100 = 21%
	// Candle 4: (133.1-110)/110 = 21%
	roc := NewROC(2)
	for _, p := range []float64{100, 110} {
		roc.Update(candle(p))
		if roc.Ready() {
			t.Error("ROC ready before period+1 candles")
		}
	}
	roc.Update(candle(121))
	assertClose(t, "ROC candle 3", roc.Value(), 21.0, 0.0001)
	roc.Update(candle(133.1))
	assertClose(t, "ROC candle 4", roc.Value(), 21.0, 0.0001)

	// Peek with 121 next: vs close 2 back (121) → 0%
	assertClose(t, "ROC peek", roc.Peek(121), 0.0, 0.0001)
	assertClose(t, "ROC after peek", roc.Value(), 21.0, 0.0001)
}

// ────────────────────────────────────────────────────────────
// ATR
// ────────────────────────────────────────────────────────────

func TestATR_ConstantRange(t *testing.T) {
	// Candles with range exactly 1.0 and no gaps: ATR settles at 1.0.
	atr := NewATR(3)
	for i := 0; i < 10; i++ {
		atr.Update(model.Candle{Open: 100, High: 100.5, Low: 99.5, Close: 100})
	}
	if !atr.Ready() {
		t.Fatal("ATR not ready")
	}
	assertClose(t, "ATR constant range", atr.Value(), 1.0, 0.0001)
}

// ────────────────────────────────────────────────────────────
// Series helpers
// ────────────────────────────────────────────────────────────

func TestSeriesSMA(t *testing.T) {
	got := SeriesSMA([]float64{1, 2, 3, 4, 5}, 3)
	// Partial windows first: 1, 1.5, 2; then full: (2+3+4)/3=3, (3+4+5)/3=4
	want := []float64{1, 1.5, 2, 3, 4}
	for i := range want {
		assertClose(t, "SeriesSMA", got[i], want[i], 0.0001)
	}
}

func TestSeriesROC(t *testing.T) {
	got := SeriesROC([]float64{100, 110, 121}, 1)
	want := []float64{0, 10, 10}
	for i := range want {
		assertClose(t, "SeriesROC", got[i], want[i], 0.0001)
	}
}

func TestSeriesMACD_Lengths(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	macd, sig, hist := SeriesMACD(values, 2, 4, 2)
	if len(macd) != len(values) || len(sig) != len(values) || len(hist) != len(values) {
		t.Fatalf("series lengths %d/%d/%d, want all %d", len(macd), len(sig), len(hist), len(values))
	}
	for i := range values {
		assertClose(t, "hist = macd - signal", hist[i], macd[i]-sig[i], 1e-9)
	}
}
