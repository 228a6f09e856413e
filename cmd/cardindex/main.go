// cmd/cardindex builds the composite card price index from the snapshots
// accumulated in Redis, writes the series (and its smoothed variants) back,
// and prints a summary.
//
// Usage:
//
//	go run ./cmd/cardindex --config=marketlab.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"marketlab/internal/cardindex"
	"marketlab/internal/config"
	"marketlab/internal/logger"
	redisstore "marketlab/internal/store/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfgPath := flag.String("config", "marketlab.yaml", "Path to YAML config")
	importPath := flag.String("import", "", "JSON snapshot file to load into Redis before building")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[cardindex] config: %v", err)
	}
	logger.Init("cardindex", logger.ParseLevel(cfg.LogLevel))

	if len(cfg.Index.Constituents) == 0 {
		log.Fatal("[cardindex] no index constituents configured")
	}

	store, err := redisstore.New(cfg.Redis)
	if err != nil {
		log.Fatalf("[cardindex] redis connect: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if *importPath != "" {
		n, err := importSnapshots(ctx, store, *importPath)
		if err != nil {
			log.Fatalf("[cardindex] import %s: %v", *importPath, err)
		}
		slog.Info("imported snapshots", "file", *importPath, "count", n)
	}

	// Gather raw snapshots for every constituent and merge them so each
	// card contributes one observation per day.
	var batches [][]cardindex.Snapshot
	for _, c := range cfg.Index.Constituents {
		snaps, err := store.LoadSnapshots(ctx, c.CardID)
		if err != nil {
			log.Fatalf("[cardindex] load snapshots %s: %v", c.CardID, err)
		}
		slog.Info("loaded snapshots", "card", c.CardID, "count", len(snaps))
		batches = append(batches, snaps)
	}
	merged := cardindex.Merge(batches...)

	series, err := cardindex.Build(merged, cfg.Index.Constituents)
	if err != nil {
		log.Fatalf("[cardindex] build: %v", err)
	}
	series.Name = cfg.Index.Name

	prev, err := store.LoadSeries(ctx, cfg.Index.Name)
	if err != nil {
		log.Printf("[cardindex] previous series: %v", err)
	} else if prev != nil {
		slog.Info("rebuilding index", "name", cfg.Index.Name,
			"prev_days", len(prev.Dates), "days", len(series.Dates),
			"prev_latest", prev.Last(), "latest", series.Last())
	}

	smoothed := series.SMA(cfg.Index.SMAWindow)
	hist := series.MACDHistogram(cfg.Index.MACDFast, cfg.Index.MACDSlow, cfg.Index.MACDSignal)
	roc := series.ROC(cfg.Index.ROCDays)

	for _, s := range []*cardindex.Series{series, smoothed, hist, roc} {
		if err := store.SaveSeries(ctx, s); err != nil {
			log.Fatalf("[cardindex] save series %s: %v", s.Name, err)
		}
	}

	fmt.Println()
	fmt.Printf("index %q: %d days (%s → %s)\n",
		series.Name, len(series.Dates), series.Dates[0], series.Dates[len(series.Dates)-1])
	fmt.Printf("  latest:        %.2f\n", series.Last())
	fmt.Printf("  %d-day SMA:     %.2f\n", cfg.Index.SMAWindow, smoothed.Last())
	fmt.Printf("  MACD hist:     %+.3f\n", hist.Last())
	fmt.Printf("  %d-day ROC:    %+.2f%%\n", cfg.Index.ROCDays, roc.Last())
}

// importSnapshots loads a JSON array of snapshots from disk into Redis.
// This is how scraped price data enters the pipeline.
func importSnapshots(ctx context.Context, store *redisstore.Store, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var snaps []cardindex.Snapshot
	if err := json.Unmarshal(b, &snaps); err != nil {
		return 0, fmt.Errorf("parse snapshots: %w", err)
	}
	if err := store.SaveSnapshots(ctx, snaps); err != nil {
		return 0, err
	}
	return len(snaps), nil
}
