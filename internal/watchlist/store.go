// Package watchlist persists the ordered set of symbols tracked even when
// no position is open for them. The set grows automatically as new symbols
// appear in the broker's position list.
package watchlist

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/ttc_positions/internal/models"
)

// fileFormat matches the persisted watchlist file: {"WATCHLIST": [...]}.
type fileFormat struct {
	Watchlist []string `json:"WATCHLIST"`
}

// Store owns the watchlist file. The list is kept alphabetically sorted on
// every save.
type Store struct {
	mu       sync.Mutex
	filepath string
	seed     []string
	logger   *logrus.Logger
}

// NewStore creates a watchlist store backed by the given file. When the
// file is missing (first run), Load returns the seed symbols.
func NewStore(filepath string, seed []string, logger *logrus.Logger) *Store {
	return &Store{filepath: filepath, seed: seed, logger: logger}
}

// Load returns the current watchlist, sorted. A missing or unreadable file
// is treated as a first run and yields the seed list.
func (s *Store) Load() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() []string {
	data, err := os.ReadFile(s.filepath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).Warn("watchlist unreadable, using seed")
		}
		return sortedCopy(s.seed)
	}

	var file fileFormat
	if err := json.Unmarshal(data, &file); err != nil {
		s.logger.WithError(err).Warn("watchlist corrupt, using seed")
		return sortedCopy(s.seed)
	}
	return sortedCopy(file.Watchlist)
}

// Extend adds any new, equity-like symbols to the watchlist and persists
// the result when it changed. CUSIP-shaped symbols are never added.
func (s *Store) Extend(symbols []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.loadLocked()
	seen := make(map[string]bool, len(current))
	for _, symbol := range current {
		seen[symbol] = true
	}

	changed := false
	for _, symbol := range symbols {
		if symbol == "" || seen[symbol] || models.IsCUSIPLike(symbol) {
			continue
		}
		current = append(current, symbol)
		seen[symbol] = true
		changed = true
	}

	if !changed {
		return current, nil
	}

	sort.Strings(current)
	if err := s.saveLocked(current); err != nil {
		return current, err
	}
	return current, nil
}

func (s *Store) saveLocked(symbols []string) error {
	data, err := json.MarshalIndent(fileFormat{Watchlist: symbols}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding watchlist: %w", err)
	}

	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("writing watchlist: %w", err)
	}
	if err := os.Rename(tmpFile, s.filepath); err != nil {
		return fmt.Errorf("replacing watchlist: %w", err)
	}
	return nil
}

func sortedCopy(symbols []string) []string {
	out := make([]string, len(symbols))
	copy(out, symbols)
	sort.Strings(out)
	return out
}
