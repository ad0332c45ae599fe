// Package mock provides a scriptable in-memory feed for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/eddiefleurent/ttc_positions/internal/feed"
	"github.com/eddiefleurent/ttc_positions/internal/models"
)

// Feed is a scriptable feed.Feed implementation. Zero value is usable:
// no positions, no quotes, every call succeeds.
type Feed struct {
	mu sync.Mutex

	Positions    []models.Position
	Quotes       map[string]feed.Quote
	ListErr      error
	SubscribeErr map[string]error // per-symbol subscription failures
	SnapshotErr  error

	SubscribeCalls []string
	CancelCalls    []string
	nextID         int
}

var _ feed.Feed = (*Feed)(nil)

// ListPositions returns the scripted position list.
func (f *Feed) ListPositions(ctx context.Context) ([]models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]models.Position, len(f.Positions))
	copy(out, f.Positions)
	return out, nil
}

// SubscribeQuote records the subscription and hands back a handle.
func (f *Feed) SubscribeQuote(ctx context.Context, symbol string) (*feed.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SubscribeErr[symbol]; err != nil {
		return nil, err
	}
	f.nextID++
	f.SubscribeCalls = append(f.SubscribeCalls, symbol)
	return &feed.Subscription{ID: fmt.Sprintf("sub-%d", f.nextID), Symbol: symbol}, nil
}

// SnapshotQuotes returns the scripted quotes for the requested symbols.
func (f *Feed) SnapshotQuotes(ctx context.Context, symbols []string) (map[string]feed.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SnapshotErr != nil {
		return nil, f.SnapshotErr
	}
	out := make(map[string]feed.Quote, len(symbols))
	for _, symbol := range symbols {
		if q, ok := f.Quotes[symbol]; ok {
			out[symbol] = q
		}
	}
	return out, nil
}

// CancelQuote records the cancellation.
func (f *Feed) CancelQuote(ctx context.Context, sub *feed.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub != nil {
		f.CancelCalls = append(f.CancelCalls, sub.Symbol)
	}
	return nil
}
