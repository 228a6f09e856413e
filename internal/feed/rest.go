package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"marketlab/internal/model"
)

const (
	backfillPageLimit = 1000
	maxRetries        = 3
	retryBase         = 2 * time.Second
)

// Backfiller fetches historical candles over REST in pages.
type Backfiller struct {
	cfg    Config
	client *http.Client
}

// NewBackfiller creates a Backfiller with a sane request timeout.
func NewBackfiller(cfg Config) *Backfiller {
	return &Backfiller{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch returns closed candles for symbol between from and to, paging
// through the kline endpoint. Each page gets a bounded retry with linear
// backoff; when a page fails for good the partial result so far is returned
// (most-recent-known fallback) along with the error.
func (b *Backfiller) Fetch(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	var all []model.Candle
	cursor := from

	for cursor.Before(to) {
		page, err := b.fetchPage(ctx, symbol, cursor, to)
		if err != nil {
			log.Printf("[feed] backfill %s stopped at %s: %v (keeping %d candles)",
				symbol, cursor.Format(time.RFC3339), err, len(all))
			return all, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		cursor = page[len(page)-1].TS.Add(time.Millisecond)
	}

	model.SortByTime(all)
	return model.Dedup(all), nil
}

// fetchPage gets one page, retrying transient failures.
func (b *Backfiller) fetchPage(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		page, err := b.fetchOnce(ctx, symbol, from, to)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("[feed] backfill attempt %d/%d failed: %v", attempt, maxRetries, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBase * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("backfill %s after %d attempts: %w", symbol, maxRetries, lastErr)
}

func (b *Backfiller) fetchOnce(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", b.cfg.Interval)
	q.Set("startTime", strconv.FormatInt(from.UnixMilli(), 10))
	q.Set("endTime", strconv.FormatInt(to.UnixMilli(), 10))
	q.Set("limit", strconv.Itoa(backfillPageLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.RESTURL+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("klines status %d: %s", resp.StatusCode, body)
	}

	// Kline rows are positional arrays: [openTime, open, high, low, close,
	// volume, closeTime, ...], numbers encoded as strings.
	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		var openMS int64
		if err := json.Unmarshal(row[0], &openMS); err != nil {
			continue
		}
		c := model.Candle{Symbol: symbol, TS: time.UnixMilli(openMS).UTC()}
		fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
		ok := true
		for i, dst := range fields {
			var s string
			if err := json.Unmarshal(row[i+1], &s); err != nil {
				ok = false
				break
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				ok = false
				break
			}
			*dst = v
		}
		if ok {
			candles = append(candles, c)
		}
	}
	return candles, nil
}
