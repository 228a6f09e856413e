// Package cardindex builds a composite price index over collectible-card
// price snapshots: merge raw scrapes into one observation per card per day,
// weight the constituent prices into a single series, and normalize it so
// the earliest date reads 100.
package cardindex

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the day key format used throughout the index.
const DateLayout = "2006-01-02"

// Condition selects which price column of a snapshot feeds the index.
type Condition string

const (
	PSA10    Condition = "psa10"
	Ungraded Condition = "ungraded"
)

// Snapshot is one scraped price observation for a card on a day.
type Snapshot struct {
	CardID    string    `json:"card_id"`
	Name      string    `json:"name,omitempty"`
	Date      string    `json:"date"` // YYYY-MM-DD
	PSA10     float64   `json:"psa10"`
	Ungraded  float64   `json:"ungraded"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Price returns the snapshot's price for a condition. Zero means missing.
func (s *Snapshot) Price(c Condition) float64 {
	if c == PSA10 {
		return s.PSA10
	}
	return s.Ungraded
}

// Constituent is one weighted member of the composite index.
type Constituent struct {
	CardID    string    `yaml:"card_id" json:"card_id" validate:"required"`
	Condition Condition `yaml:"condition" json:"condition" default:"psa10" validate:"oneof=psa10 ungraded"`
	Weight    float64   `yaml:"weight" json:"weight" default:"1" validate:"gt=0"`
}

// Series is a dated value series; Dates and Values are parallel.
type Series struct {
	Name   string    `json:"name"`
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
}

// Merge collapses snapshot batches to one observation per (card, date); when
// a day was scraped more than once, the latest scrape wins. Output is sorted
// by date, then card ID.
func Merge(batches ...[]Snapshot) []Snapshot {
	latest := make(map[string]Snapshot)
	for _, batch := range batches {
		for _, s := range batch {
			key := s.CardID + "|" + s.Date
			if prev, ok := latest[key]; !ok || s.ScrapedAt.After(prev.ScrapedAt) {
				latest[key] = s
			}
		}
	}
	out := make([]Snapshot, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].CardID < out[j].CardID
	})
	return out
}

// Build computes the composite index from merged snapshots.
//
// For every calendar date between the first and last observation the index
// is the weighted sum of constituent prices; a constituent with no datum on
// a date contributes its base (first-seen) price, keeping the series
// continuous. The series is scaled so the earliest date equals 100.
func Build(snapshots []Snapshot, constituents []Constituent) (*Series, error) {
	if len(constituents) == 0 {
		return nil, fmt.Errorf("cardindex: no constituents")
	}

	// Per-constituent date→price lookup, keyed by card and condition so the
	// same card can be tracked under more than one condition.
	type conKey struct {
		card string
		cond Condition
	}
	prices := make(map[conKey]map[string]float64, len(constituents))
	for _, c := range constituents {
		prices[conKey{c.CardID, c.Condition}] = make(map[string]float64)
	}

	var firstDate, lastDate string
	for _, s := range snapshots {
		for _, c := range constituents {
			if c.CardID != s.CardID {
				continue
			}
			if p := s.Price(c.Condition); p > 0 {
				prices[conKey{c.CardID, c.Condition}][s.Date] = p
				if firstDate == "" || s.Date < firstDate {
					firstDate = s.Date
				}
				if s.Date > lastDate {
					lastDate = s.Date
				}
			}
		}
	}
	if firstDate == "" {
		return nil, fmt.Errorf("cardindex: no usable snapshots for any constituent")
	}

	// Base price per constituent: the earliest available observation.
	base := make(map[conKey]float64, len(constituents))
	for _, c := range constituents {
		k := conKey{c.CardID, c.Condition}
		byDate := prices[k]
		if len(byDate) == 0 {
			return nil, fmt.Errorf("cardindex: constituent %s/%s has no data", c.CardID, c.Condition)
		}
		dates := make([]string, 0, len(byDate))
		for d := range byDate {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		base[k] = byDate[dates[0]]
	}

	dates, err := calendarDates(firstDate, lastDate)
	if err != nil {
		return nil, err
	}

	raw := make([]float64, len(dates))
	for i, d := range dates {
		sum := 0.0
		for _, c := range constituents {
			k := conKey{c.CardID, c.Condition}
			p, ok := prices[k][d]
			if !ok {
				p = base[k]
			}
			sum += c.Weight * p
		}
		raw[i] = sum
	}

	// Normalize: earliest date = 100.
	if raw[0] <= 0 {
		return nil, fmt.Errorf("cardindex: non-positive index base %f", raw[0])
	}
	scale := 100.0 / raw[0]
	for i := range raw {
		raw[i] *= scale
	}

	return &Series{Name: "composite", Dates: dates, Values: raw}, nil
}

// calendarDates returns every date from first to last inclusive.
func calendarDates(first, last string) ([]string, error) {
	start, err := time.Parse(DateLayout, first)
	if err != nil {
		return nil, fmt.Errorf("cardindex: bad date %q: %w", first, err)
	}
	end, err := time.Parse(DateLayout, last)
	if err != nil {
		return nil, fmt.Errorf("cardindex: bad date %q: %w", last, err)
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DateLayout))
	}
	return out, nil
}
