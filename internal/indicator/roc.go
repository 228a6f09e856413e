package indicator

import "marketlab/internal/model"

// ROC calculates Rate of Change: percent change of close price versus the
// close N periods ago. Ring buffer of closes, O(1) per update.
type ROC struct {
	period  int
	buf     []float64
	idx     int
	count   int
	current float64
}

// NewROC creates a ROC indicator with the given lookback period.
func NewROC(period int) *ROC {
	return &ROC{
		period: period,
		buf:    make([]float64, period),
	}
}

func (r *ROC) Name() string { return "ROC" }

func (r *ROC) Update(candle model.Candle) {
	price := candle.Close
	if r.count >= r.period {
		old := r.buf[r.idx]
		if old != 0 {
			r.current = (price - old) / old * 100.0
		}
	}
	r.buf[r.idx] = price
	r.idx = (r.idx + 1) % r.period
	r.count++
}

func (r *ROC) Value() float64 { return r.current }
func (r *ROC) Ready() bool    { return r.count > r.period }

// Peek computes the ROC for a hypothetical next close without mutating state.
func (r *ROC) Peek(close float64) float64 {
	if r.count < r.period {
		return r.current
	}
	old := r.buf[r.idx]
	if old == 0 {
		return r.current
	}
	return (close - old) / old * 100.0
}
