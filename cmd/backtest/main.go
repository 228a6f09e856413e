// cmd/backtest replays historical candles through the adaptive signal
// generator and prints the run's portfolio metrics.
//
// Usage:
//
//	go run ./cmd/backtest --file=data/BTCUSDT-1h.json.gz --from=2024-01-01
//	go run ./cmd/backtest --symbol=BTCUSDT --from=2024-01-01 --record
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"marketlab/internal/backtest"
	"marketlab/internal/candlefile"
	"marketlab/internal/config"
	"marketlab/internal/logger"
	"marketlab/internal/model"
	"marketlab/internal/resample"
	redisstore "marketlab/internal/store/redis"
	sqlitestore "marketlab/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	filePath := flag.String("file", "", "Gzip candle file to load (overrides --symbol)")
	symbol := flag.String("symbol", "", "Symbol to load from the SQLite archive")
	fromStr := flag.String("from", "", "Start date (2006-01-02 or RFC3339, empty=all)")
	balance := flag.Float64("balance", 0, "Initial balance override (0=config)")
	record := flag.Bool("record", false, "Persist the run and its trades to SQLite")
	showTrades := flag.Bool("trades", false, "Print every executed trade")
	interval := flag.Duration("resample", 0, "Aggregate candles to this bar interval before the run (e.g. 4h)")
	stratName := flag.String("strategy", "", "Load a named strategy from Redis instead of the config's")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[backtest] config: %v", err)
	}
	logger.Init("backtest", logger.ParseLevel(cfg.LogLevel))

	if *balance > 0 {
		cfg.Backtest.InitialBalance = *balance
	}
	if *fromStr != "" {
		from, err := parseTime(*fromStr)
		if err != nil {
			log.Fatalf("[backtest] bad --from: %v", err)
		}
		cfg.Backtest.From = from
	}

	if *stratName != "" {
		rs, err := redisstore.New(cfg.Redis)
		if err != nil {
			log.Fatalf("[backtest] redis connect: %v", err)
		}
		strat, err := rs.LoadStrategy(context.Background(), *stratName)
		rs.Close()
		if err != nil {
			log.Fatalf("[backtest] load strategy %q: %v", *stratName, err)
		}
		if strat == nil {
			log.Fatalf("[backtest] no strategy named %q in redis", *stratName)
		}
		cfg.Strategy = *strat
		log.Printf("[backtest] using strategy %q from redis", *stratName)
	}

	candles, store, err := loadCandles(cfg, *filePath, *symbol)
	if err != nil {
		log.Fatalf("[backtest] load candles: %v", err)
	}
	if store != nil {
		defer store.Close()
	}
	if len(candles) == 0 {
		log.Fatal("[backtest] no candles loaded")
	}
	if *interval > 0 {
		candles, err = resample.Aggregate(candles, *interval)
		if err != nil {
			log.Fatalf("[backtest] resample: %v", err)
		}
		log.Printf("[backtest] resampled to %s bars: %d candles", *interval, len(candles))
	}

	res, err := backtest.New(cfg.Backtest, cfg.Strategy, candles).Run()
	if err != nil {
		log.Fatalf("[backtest] run failed: %v", err)
	}

	fmt.Println()
	fmt.Println(res.Summary())

	if *showTrades {
		fmt.Println()
		for _, t := range res.Trades {
			fmt.Printf("  %s %-4s %.6f @ %.2f  pnl=%+.2f  %s\n",
				t.Executed.Format("2006-01-02 15:04"), t.Action, t.Amount, t.Price, t.PnL, t.Reason)
		}
	}

	if *record {
		if store == nil {
			store, err = sqlitestore.Open(cfg.SQLitePath)
			if err != nil {
				log.Fatalf("[backtest] sqlite open: %v", err)
			}
			defer store.Close()
		}
		if err := store.SaveRun(cfg.Strategy, res); err != nil {
			log.Fatalf("[backtest] save run: %v", err)
		}
		if err := store.RecordTrades(res.Trades); err != nil {
			log.Fatalf("[backtest] record trades: %v", err)
		}
		log.Printf("[backtest] run recorded to %s", cfg.SQLitePath)
	}
}

// loadCandles reads from the gzip file when given, otherwise from the
// SQLite archive. The returned store is non-nil only in the SQLite case.
func loadCandles(cfg *config.Config, filePath, symbol string) ([]model.Candle, *sqlitestore.Store, error) {
	if filePath != "" {
		candles, err := candlefile.Read(filePath)
		if err != nil {
			return nil, nil, err
		}
		return model.Merge(candles), nil, nil
	}
	if symbol == "" {
		return nil, nil, fmt.Errorf("need --file or --symbol")
	}
	store, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	candles, err := store.ReadCandles(symbol, 0)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return candles, store, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}
