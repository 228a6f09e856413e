// Package candlefile persists candle series as gzip-compressed JSON arrays
// on the filesystem. Writes go through a temp file and rename so a crashed
// writer never leaves a torn file behind.
package candlefile

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"marketlab/internal/model"
)

// Path returns the conventional file location for a symbol under dir,
// e.g. data/BTCUSDT-1h.json.gz.
func Path(dir, symbol, interval string) string {
	return filepath.Join(dir, symbol+"-"+interval+".json.gz")
}

// Read loads a gzip+JSON candle file. A missing file yields an empty slice,
// not an error, so callers can merge into a fresh path.
func Read(path string) ([]model.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("candlefile open %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("candlefile gzip %s: %w", path, err)
	}
	defer gz.Close()

	var candles []model.Candle
	if err := json.NewDecoder(gz).Decode(&candles); err != nil {
		return nil, fmt.Errorf("candlefile decode %s: %w", path, err)
	}
	return candles, nil
}

// Write stores candles at path atomically. Candles should already be sorted
// and deduplicated.
func Write(path string, candles []model.Candle) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("candlefile mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".candles-*.tmp")
	if err != nil {
		return fmt.Errorf("candlefile temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	gz := gzip.NewWriter(tmp)
	if err := json.NewEncoder(gz).Encode(candles); err != nil {
		tmp.Close()
		return fmt.Errorf("candlefile encode: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("candlefile gzip close: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("candlefile close: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("candlefile rename: %w", err)
	}
	return nil
}

// MergeInto merges a batch into the file at path: existing candles and the
// batch are combined, sorted, deduplicated by timestamp (greater volume
// wins), and written back. Returns the merged series.
func MergeInto(path string, batch []model.Candle) ([]model.Candle, error) {
	existing, err := Read(path)
	if err != nil {
		return nil, err
	}
	merged := model.Merge(existing, batch)
	if err := Write(path, merged); err != nil {
		return nil, err
	}
	return merged, nil
}
