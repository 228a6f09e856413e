// Package feed sources candles from an exchange: a WebSocket kline stream
// for live ingest and a REST backfill for history. Stream format follows
// Binance's combined-stream kline payloads.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"marketlab/internal/model"
)

const (
	maxReconnectDelay = 30 * time.Second
	pingInterval      = 30 * time.Second
)

// Config configures the candle feed.
type Config struct {
	WSURL    string   `yaml:"ws_url" default:"wss://stream.binance.com:9443/ws" validate:"required"`
	RESTURL  string   `yaml:"rest_url" default:"https://api.binance.com" validate:"required"`
	Symbols  []string `yaml:"symbols"`
	Interval string   `yaml:"interval" default:"1h"`
}

// Feed streams closed candles from the exchange WebSocket.
type Feed struct {
	cfg      Config
	candleCh chan model.Candle

	// OnReconnect is invoked on every reconnection attempt (metrics hook).
	OnReconnect func()
}

// New creates a Feed. Candles arrive on Candles() once Run is started.
func New(cfg Config) *Feed {
	return &Feed{
		cfg:      cfg,
		candleCh: make(chan model.Candle, 1024),
	}
}

// Candles returns the stream of closed candles.
func (f *Feed) Candles() <-chan model.Candle { return f.candleCh }

// Run connects, subscribes, and pumps candles until ctx is cancelled,
// reconnecting with capped linear backoff on any failure. The candle channel
// is closed on return.
func (f *Feed) Run(ctx context.Context) error {
	defer close(f.candleCh)

	delay := time.Second
	for {
		err := f.connectAndPump(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[feed] connection lost: %v (reconnecting in %s)", err, delay)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay += time.Second
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (f *Feed) connectAndPump(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.cfg.WSURL, err)
	}
	defer conn.Close()

	if err := f.subscribe(conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("[feed] connected, subscribed to %d symbols @ %s", len(f.cfg.Symbols), f.cfg.Interval)

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()
	go func() {
		for {
			select {
			case <-pingTicker.C:
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			case <-done:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		candle, ok, err := parseKline(raw)
		if err != nil {
			log.Printf("[feed] parse error: %v", err)
			continue
		}
		if !ok {
			continue // forming candle or unrelated event
		}
		select {
		case f.candleCh <- candle:
		default:
			// channel full, drop
		}
	}
}

func (f *Feed) subscribe(conn *websocket.Conn) error {
	params := make([]string, 0, len(f.cfg.Symbols))
	for _, s := range f.cfg.Symbols {
		params = append(params, strings.ToLower(s)+"@kline_"+f.cfg.Interval)
	}
	payload := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     time.Now().Unix(),
	}
	return conn.WriteJSON(payload)
}

// klineEvent mirrors the exchange's kline stream payload. Prices arrive as
// strings.
type klineEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		StartTS int64  `json:"t"` // ms
		Open    string `json:"o"`
		High    string `json:"h"`
		Low     string `json:"l"`
		Close   string `json:"c"`
		Volume  string `json:"v"`
		Closed  bool   `json:"x"`
	} `json:"k"`
}

// parseKline decodes a stream message. ok is false for forming candles and
// non-kline events.
func parseKline(raw []byte) (model.Candle, bool, error) {
	var ev klineEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return model.Candle{}, false, err
	}
	if ev.EventType != "kline" || !ev.Kline.Closed {
		return model.Candle{}, false, nil
	}

	c := model.Candle{
		Symbol: ev.Symbol,
		TS:     time.UnixMilli(ev.Kline.StartTS).UTC(),
	}
	var err error
	if c.Open, err = strconv.ParseFloat(ev.Kline.Open, 64); err != nil {
		return model.Candle{}, false, fmt.Errorf("open %q: %w", ev.Kline.Open, err)
	}
	if c.High, err = strconv.ParseFloat(ev.Kline.High, 64); err != nil {
		return model.Candle{}, false, fmt.Errorf("high %q: %w", ev.Kline.High, err)
	}
	if c.Low, err = strconv.ParseFloat(ev.Kline.Low, 64); err != nil {
		return model.Candle{}, false, fmt.Errorf("low %q: %w", ev.Kline.Low, err)
	}
	if c.Close, err = strconv.ParseFloat(ev.Kline.Close, 64); err != nil {
		return model.Candle{}, false, fmt.Errorf("close %q: %w", ev.Kline.Close, err)
	}
	if c.Volume, err = strconv.ParseFloat(ev.Kline.Volume, 64); err != nil {
		return model.Candle{}, false, fmt.Errorf("volume %q: %w", ev.Kline.Volume, err)
	}
	return c, true, nil
}
