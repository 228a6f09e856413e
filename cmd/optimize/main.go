// cmd/optimize sweeps strategy parameters over the configured grid with a
// walk-forward split and reports the best combinations by out-of-sample
// score.
//
// Usage:
//
//	go run ./cmd/optimize --config=marketlab.yaml --file=data/BTCUSDT-1h.json.gz
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"marketlab/internal/candlefile"
	"marketlab/internal/config"
	"marketlab/internal/logger"
	"marketlab/internal/model"
	"marketlab/internal/optimize"
	redisstore "marketlab/internal/store/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	filePath := flag.String("file", "", "Gzip candle file to sweep over")
	topN := flag.Int("top", 0, "Top-N override (0=config)")
	saveAs := flag.String("save", "", "Save the winning strategy to Redis under this name")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[optimize] config: %v", err)
	}
	logger.Init("optimize", logger.ParseLevel(cfg.LogLevel))

	if *topN > 0 {
		cfg.Optimize.TopN = *topN
	}
	if *filePath == "" {
		log.Fatal("[optimize] --file is required")
	}

	raw, err := candlefile.Read(*filePath)
	if err != nil {
		log.Fatalf("[optimize] load candles: %v", err)
	}
	candles := model.Merge(raw)
	if len(candles) == 0 {
		log.Fatal("[optimize] no candles loaded")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	runs, err := optimize.Sweep(ctx, cfg.Optimize, cfg.Strategy, cfg.Ranges, cfg.Backtest, candles)
	if err != nil {
		log.Fatalf("[optimize] sweep failed: %v", err)
	}

	fmt.Println()
	fmt.Printf("%-4s %-8s %-8s %-8s %-10s %-10s %-8s %-8s\n",
		"#", "buy", "sell", "minconf", "train%", "val%", "valDD%", "score")
	for i, r := range runs {
		fmt.Printf("%-4d %-8.2f %-8.2f %-8.2f %-10.2f %-10.2f %-8.2f %-8.2f\n",
			i+1,
			r.Strategy.BuyThreshold, r.Strategy.SellThreshold, r.Strategy.MinConfidence,
			r.Train.TotalReturnPct, r.Validate.TotalReturnPct, r.Validate.MaxDrawdownPct, r.Score)
	}

	if *saveAs != "" && len(runs) > 0 {
		store, err := redisstore.New(cfg.Redis)
		if err != nil {
			log.Fatalf("[optimize] redis connect: %v", err)
		}
		defer store.Close()
		if err := store.SaveStrategy(ctx, *saveAs, runs[0].Strategy); err != nil {
			log.Fatalf("[optimize] save strategy: %v", err)
		}
		log.Printf("[optimize] winning strategy saved as %q", *saveAs)
	}
}
