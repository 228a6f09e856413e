// Package ringbuf provides a fixed-capacity trailing window of candles.
// When the window is full the oldest candle is overwritten, so the regime
// classifier always sees the most recent N bars without reslicing.
package ringbuf

import "marketlab/internal/model"

// Window is a trailing candle window. Not safe for concurrent use; the
// signal generator owns it from a single goroutine.
type Window struct {
	buf     []model.Candle
	scratch []model.Candle
	start   int // index of the oldest candle
	count   int
}

// NewWindow creates a window holding the last capacity candles.
// Minimum capacity is 1.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		buf:     make([]model.Candle, capacity),
		scratch: make([]model.Candle, 0, capacity),
	}
}

// Push appends a candle, evicting the oldest when the window is full.
func (w *Window) Push(c model.Candle) {
	if w.count < len(w.buf) {
		w.buf[(w.start+w.count)%len(w.buf)] = c
		w.count++
		return
	}
	w.buf[w.start] = c
	w.start = (w.start + 1) % len(w.buf)
}

// Len returns how many candles the window currently holds.
func (w *Window) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Full reports whether the window holds Cap candles.
func (w *Window) Full() bool { return w.count == len(w.buf) }

// Last returns the most recent candle, or false on an empty window.
func (w *Window) Last() (model.Candle, bool) {
	if w.count == 0 {
		return model.Candle{}, false
	}
	return w.buf[(w.start+w.count-1)%len(w.buf)], true
}

// Snapshot returns the window contents oldest first. The returned slice is
// reused by the next Snapshot call; callers must not retain it.
func (w *Window) Snapshot() []model.Candle {
	w.scratch = w.scratch[:0]
	for i := 0; i < w.count; i++ {
		w.scratch = append(w.scratch, w.buf[(w.start+i)%len(w.buf)])
	}
	return w.scratch
}
