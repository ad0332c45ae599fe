// Package pricecache persists last-known price snapshots to disk so the
// report can fall back to recent prices when both live and secondary
// sources are unavailable.
package pricecache

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/ttc_positions/internal/models"
)

// DefaultRetention is the retention window used when none is configured.
const DefaultRetention = 7 * 24 * time.Hour

// Cache is the in-memory form of the persisted price cache file.
type Cache struct {
	LastUpdated time.Time                       `json:"last_updated"`
	Prices      map[string]models.PriceSnapshot `json:"prices"`
}

// Get is a pure lookup into an already-loaded cache; it performs no I/O.
// The returned snapshot carries its symbol even though the file keys it.
func (c *Cache) Get(symbol string) (models.PriceSnapshot, bool) {
	if c == nil || c.Prices == nil {
		return models.PriceSnapshot{}, false
	}
	snapshot, ok := c.Prices[symbol]
	if !ok {
		return models.PriceSnapshot{}, false
	}
	snapshot.Symbol = symbol
	return snapshot, true
}

// Store owns the cache file. All mutation goes through Save, which merges
// a batch over the existing entries and prunes anything outside the
// retention window. Writes are atomic (temp file + rename).
type Store struct {
	mu        sync.RWMutex
	filepath  string
	retention time.Duration
	logger    *logrus.Logger
	now       func() time.Time
}

// NewStore creates a price cache store backed by the given file. The file
// does not need to exist yet; a missing or unreadable file reads as empty.
func NewStore(filepath string, retention time.Duration, logger *logrus.Logger) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		filepath:  filepath,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Retention returns the configured retention window. Readers use it to
// reject entries that outlived the window before the next save prunes them.
func (s *Store) Retention() time.Duration { return s.retention }

// Load reads the persisted cache. It never fails: read or parse errors are
// logged and an empty cache is returned, which is indistinguishable from a
// first run.
func (s *Store) Load() *Cache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() *Cache {
	empty := &Cache{Prices: make(map[string]models.PriceSnapshot)}

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).Warn("price cache unreadable, starting empty")
		}
		return empty
	}

	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil {
		s.logger.WithError(err).Warn("price cache corrupt, starting empty")
		return empty
	}
	if cache.Prices == nil {
		cache.Prices = make(map[string]models.PriceSnapshot)
	}
	return &cache
}

// Save overlays batch onto the existing cache and writes the result back.
//
// Merge rules: only batch entries with a positive last price are taken
// (batch wins on conflict); entries untouched by this batch survive as long
// as they are still within the retention window; anything older is dropped,
// whichever side it came from. This merge-then-prune order is what keeps
// symbols alive across refreshes that did not include them.
func (s *Store) Save(batch map[string]models.PriceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache := s.loadLocked()
	now := s.now()

	for symbol, snapshot := range batch {
		if !snapshot.Usable() {
			continue
		}
		if snapshot.ObservedAt.IsZero() {
			snapshot.ObservedAt = now
		}
		cache.Prices[symbol] = snapshot
	}

	cutoff := now.Add(-s.retention)
	for symbol, snapshot := range cache.Prices {
		if snapshot.ObservedAt.Before(cutoff) {
			delete(cache.Prices, symbol)
		}
	}

	cache.LastUpdated = now

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding price cache: %w", err)
	}

	// Write to temp file first, then atomic rename
	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("writing price cache: %w", err)
	}
	if err := os.Rename(tmpFile, s.filepath); err != nil {
		return fmt.Errorf("replacing price cache: %w", err)
	}
	return nil
}
