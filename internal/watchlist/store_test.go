package watchlist

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLoadMissingFileReturnsSeed(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "watchlist.json"), []string{"NVDA", "AAPL"}, testLogger())

	got := store.Load()
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "NVDA" {
		t.Errorf("Load() = %v, want sorted seed [AAPL NVDA]", got)
	}
}

func TestExtendPersistsSorted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watchlist.json")
	store := NewStore(path, []string{"NVDA"}, testLogger())

	got, err := store.Extend([]string{"MSFT", "AAPL"})
	if err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	want := []string{"AAPL", "MSFT", "NVDA"}
	if len(got) != len(want) {
		t.Fatalf("Extend() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Extend() = %v, want %v", got, want)
		}
	}

	// the file holds the same sorted list
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading watchlist file: %v", err)
	}
	var file fileFormat
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("parsing watchlist file: %v", err)
	}
	for i := range want {
		if file.Watchlist[i] != want[i] {
			t.Fatalf("persisted = %v, want %v", file.Watchlist, want)
		}
	}
}

func TestExtendNoChangeDoesNotWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watchlist.json")
	store := NewStore(path, []string{"AAPL"}, testLogger())

	if _, err := store.Extend([]string{"AAPL"}); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Extend with no new symbols should not create the file")
	}
}

func TestExtendRejectsCUSIPShapedSymbols(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "watchlist.json"), nil, testLogger())

	got, err := store.Extend([]string{"912828XG8", "AAPL", ""})
	if err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	if len(got) != 1 || got[0] != "AAPL" {
		t.Errorf("Extend() = %v, want [AAPL]", got)
	}
}

func TestLoadCorruptFileFallsBackToSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watchlist.json")
	if err := os.WriteFile(path, []byte("{{"), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	store := NewStore(path, []string{"AAPL"}, testLogger())
	got := store.Load()
	if len(got) != 1 || got[0] != "AAPL" {
		t.Errorf("Load() = %v, want seed fallback [AAPL]", got)
	}
}
