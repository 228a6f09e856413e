// Package sqlite archives candles and backtest runs, and keeps a trade
// journal. Single-writer discipline with WAL mode, batched transactions for
// the candle hot path.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"marketlab/internal/backtest"
	"marketlab/internal/model"
	"marketlab/internal/signal"
)

const (
	defaultBatchSize  = 200
	defaultFlushDelay = 500 * time.Millisecond
)

// Store is a SQLite-backed archive.
type Store struct {
	db *sql.DB

	// OnCommit is invoked with the duration of each batch commit (metrics
	// hook, optional).
	OnCommit func(time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens (or creates) the database at path with WAL mode and schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", path)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol  TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  REAL    NOT NULL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS backtest_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol      TEXT NOT NULL,
			strategy    TEXT NOT NULL,
			result      TEXT NOT NULL,
			return_pct  REAL NOT NULL,
			drawdown_pct REAL NOT NULL,
			sharpe      REAL NOT NULL,
			trades      INTEGER NOT NULL,
			created_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS trades (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT NOT NULL,
			action     TEXT NOT NULL,
			price      REAL NOT NULL,
			amount     REAL NOT NULL,
			fee        REAL NOT NULL,
			pnl        REAL NOT NULL,
			reason     TEXT,
			executed_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	`)
	return err
}

// InsertCandles writes a batch in a single transaction, replacing existing
// rows on conflict.
func (s *Store) InsertCandles(candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.Exec(c.Symbol, c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Run consumes candles from candleCh and archives them in batched
// transactions. Flushes every batch size OR flush delay, whichever first.
// Blocks until ctx is cancelled or candleCh is closed.
func (s *Store) Run(ctx context.Context, candleCh <-chan model.Candle) {
	batch := make([]model.Candle, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := s.InsertCandles(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else if s.OnCommit != nil {
			s.OnCommit(time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case c, ok := <-candleCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, c)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// ReadCandles returns candles for a symbol after afterTS (Unix seconds),
// ordered ascending for correct walk order.
func (s *Store) ReadCandles(symbol string, afterTS int64) ([]model.Candle, error) {
	rows, err := s.db.Query(`
		SELECT symbol, ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsUnix int64
		if err := rows.Scan(&c.Symbol, &tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		c.TS = time.Unix(tsUnix, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// LastTimestamp returns the newest archived candle timestamp for a symbol,
// or 0 when none exist.
func (s *Store) LastTimestamp(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(ts) FROM candles WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// SaveRun records a completed backtest with its full result and strategy
// config as JSON, plus the headline numbers as columns for querying.
func (s *Store) SaveRun(strat signal.StrategyConfig, res *backtest.Result) error {
	stratJSON, err := json.Marshal(strat)
	if err != nil {
		return fmt.Errorf("marshal strategy: %w", err)
	}
	resJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO backtest_runs (symbol, strategy, result, return_pct, drawdown_pct, sharpe, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, res.Symbol, string(stratJSON), string(resJSON),
		res.TotalReturnPct, res.MaxDrawdownPct, res.Sharpe, res.TotalTrades)
	if err != nil {
		return fmt.Errorf("sqlite insert run: %w", err)
	}
	return nil
}

// RecordTrades journals the trades of a run.
func (s *Store) RecordTrades(trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO trades (symbol, action, price, amount, fee, pnl, reason, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.Exec(t.Symbol, string(t.Action), t.Price, t.Amount, t.Fee, t.PnL, t.Reason, t.Executed.Unix()); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Trades returns the last limit journaled trades, newest first.
func (s *Store) Trades(symbol string, limit int) ([]model.Trade, error) {
	rows, err := s.db.Query(`
		SELECT symbol, action, price, amount, fee, pnl, reason, executed_at
		FROM trades WHERE symbol = ? ORDER BY id DESC LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var action string
		var tsUnix int64
		if err := rows.Scan(&t.Symbol, &action, &t.Price, &t.Amount, &t.Fee, &t.PnL, &t.Reason, &tsUnix); err != nil {
			return nil, fmt.Errorf("sqlite scan trade: %w", err)
		}
		t.Action = model.Action(action)
		t.Executed = time.Unix(tsUnix, 0).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
