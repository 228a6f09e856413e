// cmd/ingest is the live candle ingest daemon: it streams closed candles
// from the exchange WebSocket and fans them out to the gzip file store, the
// SQLite archive, and the Redis latest-candle keys, with Prometheus metrics
// on the side.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketlab/internal/candlefile"
	"marketlab/internal/config"
	"marketlab/internal/feed"
	"marketlab/internal/logger"
	"marketlab/internal/metrics"
	"marketlab/internal/model"
	"marketlab/internal/notification"
	redisstore "marketlab/internal/store/redis"
	sqlitestore "marketlab/internal/store/sqlite"
)

const (
	fileFlushInterval = time.Minute

	// Every Nth feed reconnect raises an external alert.
	reconnectAlertEvery = 5
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfgPath := flag.String("config", "marketlab.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[ingest] config: %v", err)
	}
	logger.Init("ingest", logger.ParseLevel(cfg.LogLevel))

	if len(cfg.Feed.Symbols) == 0 {
		log.Fatal("[ingest] no feed symbols configured")
	}

	m := metrics.New()
	metrics.Serve(cfg.MetricsAddr)

	sqlite, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[ingest] sqlite open: %v", err)
	}
	defer sqlite.Close()
	sqlite.OnCommit = func(d time.Duration) { m.SQLiteCommitDur.Observe(d.Seconds()) }

	redis, err := redisstore.New(cfg.Redis)
	if err != nil {
		log.Fatalf("[ingest] redis connect: %v", err)
	}
	defer redis.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	notifier := notification.ForURL(cfg.NotifyWebhook)

	// Fill the gap since the last archived candle before going live.
	backfill(ctx, cfg, sqlite, redis, notifier)

	f := feed.New(cfg.Feed)
	reconnects := 0
	f.OnReconnect = func() {
		m.FeedReconnects.Inc()
		reconnects++
		if reconnects%reconnectAlertEvery == 0 {
			nctx, ncancel := context.WithTimeout(ctx, 10*time.Second)
			if err := notifier.Send(nctx, notification.Alert{
				Level:   notification.AlertWarning,
				Title:   "feed reconnecting",
				Message: fmt.Sprintf("%d reconnects since start", reconnects),
			}); err != nil {
				log.Printf("[ingest] notify: %v", err)
			}
			ncancel()
		}
	}
	go func() {
		if err := f.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[ingest] feed stopped: %v", err)
			cancel()
		}
	}()

	// SQLite archiver consumes its own channel so batching stays off the
	// ingest hot path.
	sqliteCh := make(chan model.Candle, 1024)
	go sqlite.Run(ctx, sqliteCh)

	pending := make(map[string][]model.Candle) // per-symbol buffer for file merges
	flushTicker := time.NewTicker(fileFlushInterval)
	defer flushTicker.Stop()

	flushFiles := func() {
		for symbol, batch := range pending {
			if len(batch) == 0 {
				continue
			}
			path := candlefile.Path(cfg.DataDir, symbol, cfg.Feed.Interval)
			start := time.Now()
			merged, err := candlefile.MergeInto(path, batch)
			if err != nil {
				log.Printf("[ingest] file merge %s: %v", symbol, err)
				continue
			}
			m.FileWriteDur.Observe(time.Since(start).Seconds())
			slog.Info("flushed candle file", "symbol", symbol, "batch", len(batch), "total", len(merged))
			pending[symbol] = pending[symbol][:0]
		}
	}

	slog.Info("ingest running", "symbols", cfg.Feed.Symbols, "interval", cfg.Feed.Interval)

	for {
		select {
		case <-ctx.Done():
			flushFiles()
			slog.Info("ingest stopped")
			return

		case c, ok := <-f.Candles():
			if !ok {
				flushFiles()
				return
			}
			m.CandlesIngested.WithLabelValues(c.Symbol).Inc()
			m.ObserveLag(c.TS)

			// Reconnect replays resend the last closed candle; the merge
			// keeps the higher-volume record either way.
			if buf := pending[c.Symbol]; len(buf) > 0 && buf[len(buf)-1].TS.Equal(c.TS) {
				m.DedupDropped.Inc()
			}
			pending[c.Symbol] = append(pending[c.Symbol], c)

			select {
			case sqliteCh <- c:
			default:
				log.Printf("[ingest] sqlite channel full, dropping %s@%s", c.Symbol, c.TS)
			}

			start := time.Now()
			wctx, wcancel := context.WithTimeout(ctx, 2*time.Second)
			if err := redis.SetLatestCandle(wctx, c); err != nil {
				log.Printf("[ingest] redis latest write: %v", err)
			}
			wcancel()
			m.RedisWriteDur.Observe(time.Since(start).Seconds())

		case <-flushTicker.C:
			flushFiles()
		}
	}
}

// backfill fetches candles from the REST API between each symbol's last
// archived timestamp and now, then stores them. Partial results are kept;
// the live stream covers whatever the fallback missed.
func backfill(ctx context.Context, cfg *config.Config, sqlite *sqlitestore.Store, redis *redisstore.Store, notifier notification.Notifier) {
	bf := feed.NewBackfiller(cfg.Feed)
	now := time.Now().UTC()

	for _, symbol := range cfg.Feed.Symbols {
		last, err := sqlite.LastTimestamp(symbol)
		if err != nil {
			log.Printf("[ingest] backfill %s: last timestamp: %v", symbol, err)
			continue
		}
		from := now.Add(-7 * 24 * time.Hour)
		switch {
		case last > 0:
			from = time.Unix(last, 0).UTC().Add(time.Second)
		default:
			// Fresh archive; a previous ingest may still have a latest
			// candle in Redis to resume from.
			if c, err := redis.LatestCandle(ctx, symbol); err == nil && c != nil && c.TS.After(from) {
				from = c.TS.Add(time.Second)
			}
		}

		candles, err := bf.Fetch(ctx, symbol, from, now)
		if err != nil {
			log.Printf("[ingest] backfill %s incomplete: %v", symbol, err)
			nctx, ncancel := context.WithTimeout(ctx, 10*time.Second)
			if nerr := notifier.Send(nctx, notification.Alert{
				Level:   notification.AlertWarning,
				Title:   "backfill incomplete",
				Message: fmt.Sprintf("%s: kept %d candles, stopped at: %v", symbol, len(candles), err),
			}); nerr != nil {
				log.Printf("[ingest] notify: %v", nerr)
			}
			ncancel()
		}
		if len(candles) == 0 {
			continue
		}
		if err := sqlite.InsertCandles(candles); err != nil {
			log.Printf("[ingest] backfill %s archive: %v", symbol, err)
		}
		path := candlefile.Path(cfg.DataDir, symbol, cfg.Feed.Interval)
		if _, err := candlefile.MergeInto(path, candles); err != nil {
			log.Printf("[ingest] backfill %s file merge: %v", symbol, err)
		}
		slog.Info("backfilled", "symbol", symbol, "candles", len(candles), "from", from)
	}
}
