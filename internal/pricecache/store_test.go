package pricecache

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/ttc_positions/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "cache.json"), DefaultRetention, testLogger())
}

func snap(last float64, observedAt time.Time) models.PriceSnapshot {
	return models.PriceSnapshot{
		Last:       last,
		Open:       last - 1,
		Close:      last - 2,
		Source:     models.SourceLive,
		ObservedAt: observedAt,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	if err := store.Save(map[string]models.PriceSnapshot{"AAPL": snap(150, now)}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cache := store.Load()
	got, ok := cache.Get("AAPL")
	if !ok {
		t.Fatal("AAPL missing after round trip")
	}
	if got.Last != 150 {
		t.Errorf("Last = %v, want 150", got.Last)
	}
	if got.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", got.Symbol)
	}
	if cache.LastUpdated.IsZero() {
		t.Error("LastUpdated not set on save")
	}
}

func TestSaveMergeRetainsUntouchedEntries(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	if err := store.Save(map[string]models.PriceSnapshot{
		"MSFT": snap(300, now),
		"AAPL": snap(140, now),
	}); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	// second save touches only AAPL
	if err := store.Save(map[string]models.PriceSnapshot{"AAPL": snap(155, now)}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	cache := store.Load()
	msft, ok := cache.Get("MSFT")
	if !ok || msft.Last != 300 {
		t.Errorf("MSFT = %+v (ok=%v), want retained at 300", msft, ok)
	}
	aapl, _ := cache.Get("AAPL")
	if aapl.Last != 155 {
		t.Errorf("AAPL = %v, want batch to win with 155", aapl.Last)
	}
}

func TestSavePrunesStaleEntries(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	if err := store.Save(map[string]models.PriceSnapshot{
		"OLD": snap(50, now.Add(-8*24*time.Hour)),
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// the stale entry is dropped on the very save that carries it
	if _, ok := store.Load().Get("OLD"); ok {
		t.Fatal("8-day-old entry survived a save with 7-day retention")
	}

	// and an entry that ages out is dropped by a later save that does not
	// include it
	if err := store.Save(map[string]models.PriceSnapshot{
		"AGING": snap(60, now.Add(-6*24*time.Hour)),
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	store.now = func() time.Time { return now.Add(2 * 24 * time.Hour) }
	if err := store.Save(map[string]models.PriceSnapshot{"FRESH": snap(70, now.Add(2*24*time.Hour))}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cache := store.Load()
	if _, ok := cache.Get("AGING"); ok {
		t.Error("entry outside the retention window survived an unrelated save")
	}
	if _, ok := cache.Get("FRESH"); !ok {
		t.Error("fresh entry missing")
	}
}

func TestSaveSkipsNonPositivePrices(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	if err := store.Save(map[string]models.PriceSnapshot{
		"ZERO": snap(0, now),
		"NEG":  snap(-5, now),
		"GOOD": snap(10, now),
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cache := store.Load()
	if _, ok := cache.Get("ZERO"); ok {
		t.Error("snapshot with last=0 was persisted")
	}
	if _, ok := cache.Get("NEG"); ok {
		t.Error("snapshot with last<0 was persisted")
	}
	if _, ok := cache.Get("GOOD"); !ok {
		t.Error("usable snapshot missing")
	}
}

func TestLoadCorruptFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	store := NewStore(path, DefaultRetention, testLogger())
	cache := store.Load()
	if len(cache.Prices) != 0 {
		t.Errorf("corrupt cache loaded %d entries, want 0", len(cache.Prices))
	}

	// a save over the corrupt file recovers it
	if err := store.Save(map[string]models.PriceSnapshot{"AAPL": snap(1, time.Now().UTC())}); err != nil {
		t.Fatalf("Save over corrupt file failed: %v", err)
	}
	if _, ok := store.Load().Get("AAPL"); !ok {
		t.Error("save over corrupt file did not recover")
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	store := newTestStore(t)
	cache := store.Load()
	if cache == nil || len(cache.Prices) != 0 {
		t.Errorf("first-run load = %+v, want empty cache", cache)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	store := NewStore(path, DefaultRetention, testLogger())

	if err := store.Save(map[string]models.PriceSnapshot{"AAPL": snap(1, time.Now().UTC())}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after atomic rename")
	}
}
