package models

import "time"

// PriceSource identifies which resolution tier produced a snapshot.
type PriceSource string

const (
	// SourceLive means the snapshot came from the live broker feed.
	SourceLive PriceSource = "live"
	// SourceSecondary means the snapshot came from the public quote provider.
	SourceSecondary PriceSource = "secondary"
	// SourceCached means the snapshot was served from the disk cache.
	SourceCached PriceSource = "cached"
	// SourceUnavailable means no tier produced a usable price.
	SourceUnavailable PriceSource = "unavailable"
)

// PriceSnapshot is one observation of a symbol's market prices.
//
// The JSON tags match the on-disk cache format; ObservedAt is persisted as
// an RFC 3339 timestamp. A snapshot with Last <= 0 is never persisted.
type PriceSnapshot struct {
	Symbol     string      `json:"-"`
	Last       float64     `json:"last"`
	Open       float64     `json:"open"`
	Close      float64     `json:"close"`
	High       float64     `json:"high"`
	Low        float64     `json:"low"`
	ChangeAbs  float64     `json:"change"`
	Source     PriceSource `json:"source"`
	ObservedAt time.Time   `json:"timestamp"`
}

// Usable reports whether the snapshot carries a real price. Callers must
// treat unusable snapshots as "no data", never as a zero price.
func (s PriceSnapshot) Usable() bool { return s.Last > 0 }

// UnavailableSnapshot returns the zeroed snapshot emitted when every
// resolution tier failed for a symbol.
func UnavailableSnapshot(symbol string) PriceSnapshot {
	return PriceSnapshot{Symbol: symbol, Source: SourceUnavailable}
}
