// Package model defines the core value types shared across the pipeline:
// OHLCV candles, trades, and the slice helpers the stores and the backtester
// rely on (sort, dedup, merge, start-index lookup).
package model

import (
	"sort"
	"time"
)

// Candle represents one OHLCV price bar for a fixed interval.
// Prices are float64: crypto assets trade at sub-cent resolution, so the
// usual integer-minor-unit trick doesn't fit here.
type Candle struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bucket start time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// SortByTime sorts candles ascending by timestamp in place.
func SortByTime(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].TS.Before(candles[j].TS)
	})
}

// Dedup collapses candles sharing a timestamp, keeping the one with greater
// volume (treated as the more complete record). Ties keep the earlier entry.
// Input must be sorted by timestamp; the result is too.
func Dedup(candles []Candle) []Candle {
	if len(candles) < 2 {
		return candles
	}
	out := candles[:1]
	for _, c := range candles[1:] {
		last := &out[len(out)-1]
		if c.TS.Equal(last.TS) {
			if c.Volume > last.Volume {
				*last = c
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// Merge combines candle batches into a single sorted, deduplicated series.
func Merge(batches ...[]Candle) []Candle {
	var total int
	for _, b := range batches {
		total += len(b)
	}
	merged := make([]Candle, 0, total)
	for _, b := range batches {
		merged = append(merged, b...)
	}
	SortByTime(merged)
	return Dedup(merged)
}

// StartIndex returns the index of the first candle at or after from.
// Returns len(candles) if every candle is earlier. Candles must be sorted.
func StartIndex(candles []Candle, from time.Time) int {
	return sort.Search(len(candles), func(i int) bool {
		return !candles[i].TS.Before(from)
	})
}
