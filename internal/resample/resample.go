// Package resample aggregates a candle series into a coarser bar interval.
// Buckets are aligned to the interval boundary; within a bucket the OHLCV
// merge is O(1) per candle.
package resample

import (
	"fmt"
	"time"

	"marketlab/internal/model"
)

// Aggregate buckets sorted candles into interval-sized bars. The bar
// timestamp is the bucket start. Candles that land behind the forming
// bucket are dropped; the input should be sorted, use model.Merge first.
func Aggregate(candles []model.Candle, interval time.Duration) ([]model.Candle, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("resample: non-positive interval %s", interval)
	}
	if len(candles) == 0 {
		return nil, nil
	}

	out := make([]model.Candle, 0, len(candles)/2+1)
	var forming model.Candle
	var bucket time.Time
	started := false

	for _, c := range candles {
		b := c.TS.Truncate(interval)

		if !started || b.After(bucket) {
			if started {
				out = append(out, forming)
			}
			forming = c
			forming.TS = b
			bucket = b
			started = true
			continue
		}
		if b.Before(bucket) {
			// Out of order, the bar is already past this bucket.
			continue
		}

		if c.High > forming.High {
			forming.High = c.High
		}
		if c.Low < forming.Low {
			forming.Low = c.Low
		}
		forming.Close = c.Close
		forming.Volume += c.Volume
	}
	out = append(out, forming)
	return out, nil
}
