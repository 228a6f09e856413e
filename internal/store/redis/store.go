// Package redis persists the JSON blobs the pipeline shares between runs:
// named strategy configs, card price snapshots, built index series, and the
// latest candle per symbol for the ingest daemon.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"marketlab/internal/cardindex"
	"marketlab/internal/model"
	"marketlab/internal/signal"
)

const (
	keyStrategyPrefix = "strategy:"
	keySnapshotPrefix = "cardindex:snap:"
	keyIndexPrefix    = "cardindex:series:"
	keyLatestPrefix   = "candle:latest:"

	latestCandleTTL = 30 * time.Minute
)

// Config configures the Redis store.
type Config struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" default:"0"`
}

// Store wraps a Redis client with the pipeline's key layout.
type Store struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// New connects and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{client: client}, nil
}

// SaveStrategy persists a named strategy config.
func (s *Store) SaveStrategy(ctx context.Context, name string, cfg signal.StrategyConfig) error {
	return s.setJSON(ctx, keyStrategyPrefix+name, cfg, 0)
}

// LoadStrategy fetches a named strategy config. Returns (nil, nil) when the
// name is unknown.
func (s *Store) LoadStrategy(ctx context.Context, name string) (*signal.StrategyConfig, error) {
	var cfg signal.StrategyConfig
	ok, err := s.getJSON(ctx, keyStrategyPrefix+name, &cfg)
	if err != nil || !ok {
		return nil, err
	}
	return &cfg, nil
}

// SaveSnapshots appends price snapshots, one pipelined RPUSH per card.
func (s *Store) SaveSnapshots(ctx context.Context, snapshots []cardindex.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, snap := range snapshots {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("redis marshal snapshot: %w", err)
		}
		pipe.RPush(ctx, keySnapshotPrefix+snap.CardID, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save snapshots: %w", err)
	}
	return nil
}

// LoadSnapshots reads every stored snapshot for a card, unmerged.
func (s *Store) LoadSnapshots(ctx context.Context, cardID string) ([]cardindex.Snapshot, error) {
	raw, err := s.client.LRange(ctx, keySnapshotPrefix+cardID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load snapshots %s: %w", cardID, err)
	}
	out := make([]cardindex.Snapshot, 0, len(raw))
	for _, r := range raw {
		var snap cardindex.Snapshot
		if err := json.Unmarshal([]byte(r), &snap); err != nil {
			log.Printf("[redis] skipping malformed snapshot for %s: %v", cardID, err)
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// SaveSeries persists a built index series under its name.
func (s *Store) SaveSeries(ctx context.Context, series *cardindex.Series) error {
	return s.setJSON(ctx, keyIndexPrefix+series.Name, series, 0)
}

// LoadSeries fetches an index series by name. Returns (nil, nil) if absent.
func (s *Store) LoadSeries(ctx context.Context, name string) (*cardindex.Series, error) {
	var series cardindex.Series
	ok, err := s.getJSON(ctx, keyIndexPrefix+name, &series)
	if err != nil || !ok {
		return nil, err
	}
	return &series, nil
}

// SetLatestCandle records the freshest candle for a symbol with a TTL so
// stale entries age out when ingest stops.
func (s *Store) SetLatestCandle(ctx context.Context, c model.Candle) error {
	return s.setJSON(ctx, keyLatestPrefix+c.Symbol, &c, latestCandleTTL)
}

// LatestCandle fetches the freshest candle for a symbol, if any.
func (s *Store) LatestCandle(ctx context.Context, symbol string) (*model.Candle, error) {
	var c model.Candle
	ok, err := s.getJSON(ctx, keyLatestPrefix+symbol, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// Close closes the client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) setJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// getJSON reads and unmarshals key into v. Returns false when absent.
func (s *Store) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == goredis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, fmt.Errorf("redis unmarshal %s: %w", key, err)
	}
	return true, nil
}
