package types

import (
	"fmt"
	"sort"
	"time"
)

// PriceSample is a single venue quote for an asset, expressed in a quote asset
// (the numeraire unless Quote says otherwise).
type PriceSample struct {
	Asset      string    `json:"asset"`
	Quote      string    `json:"quote,omitempty"`
	Venue      string    `json:"venue"`
	Price      float64   `json:"price"`
	Liquidity  float64   `json:"liquidity,omitempty"`  // 0 = unknown
	Volume24h  float64   `json:"volume_24h,omitempty"` // 0 = unknown
	CapturedAt time.Time `json:"captured_at"`
}

// Key identifies the (asset, quote, venue) slot a sample supersedes.
func (s PriceSample) Key() string {
	return s.Asset + "/" + s.Quote + "@" + s.Venue
}

// Age returns how old the sample is at now.
func (s PriceSample) Age(now time.Time) time.Duration {
	if now.Before(s.CapturedAt) {
		return 0
	}
	return now.Sub(s.CapturedAt)
}

// Validate rejects samples that cannot be turned into graph edges.
func (s PriceSample) Validate() error {
	if s.Asset == "" || s.Venue == "" {
		return fmt.Errorf("%w: missing asset or venue", ErrMalformedSample)
	}
	if s.Quote == "" {
		return fmt.Errorf("%w: %s has no quote asset", ErrMalformedSample, s.Asset)
	}
	if s.Asset == s.Quote {
		return fmt.Errorf("%w: %s quoted in itself", ErrMalformedSample, s.Asset)
	}
	if !(s.Price > 0) {
		return fmt.Errorf("%w: %s price %v is not positive", ErrMalformedSample, s.Key(), s.Price)
	}
	return nil
}

// WithQuote returns a copy with Quote defaulted to numeraire when empty.
func (s PriceSample) WithQuote(numeraire string) PriceSample {
	if s.Quote == "" {
		s.Quote = numeraire
	}
	return s
}

// Snapshot is a consistent view of the freshest sample per key.
type Snapshot struct {
	TakenAt time.Time
	Samples map[string]PriceSample // key: PriceSample.Key()
	Stale   int                    // samples excluded for age
}

// Sorted returns the samples ordered by key.
func (s Snapshot) Sorted() []PriceSample {
	keys := make([]string, 0, len(s.Samples))
	for k := range s.Samples {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]PriceSample, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.Samples[k])
	}
	return out
}

// MaxVenuesPerAsset returns the largest number of distinct venues quoting any
// single (asset, quote) pair.
func (s Snapshot) MaxVenuesPerAsset() int {
	venues := make(map[string]map[string]struct{})
	for _, sample := range s.Samples {
		pair := sample.Asset + "/" + sample.Quote
		if venues[pair] == nil {
			venues[pair] = make(map[string]struct{})
		}
		venues[pair][sample.Venue] = struct{}{}
	}

	best := 0
	for _, v := range venues {
		if len(v) > best {
			best = len(v)
		}
	}
	return best
}

// NewSnapshot builds a snapshot from a slice of samples. Later samples for the
// same key win.
func NewSnapshot(takenAt time.Time, samples []PriceSample) Snapshot {
	m := make(map[string]PriceSample, len(samples))
	for _, s := range samples {
		m[s.Key()] = s
	}
	return Snapshot{TakenAt: takenAt, Samples: m}
}
