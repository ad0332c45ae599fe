// Package feed provides the live market data collaborator: the broker
// connection that supplies raw positions and streaming quote snapshots.
package feed

import (
	"context"
	"errors"

	"github.com/eddiefleurent/ttc_positions/internal/models"
)

// ErrFeedUnavailable is returned when the feed cannot be reached at all
// (as opposed to a single symbol failing). Callers use it to switch to the
// degraded watchlist-only report.
var ErrFeedUnavailable = errors.New("live feed unavailable")

// Quote is one live quote reading. Every field is always present; zero
// means the feed has not populated it yet.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	Open      float64 `json:"open"`
	Close     float64 `json:"close"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	ChangeAbs float64 `json:"change"`
}

// Subscription is a handle for an active quote subscription.
type Subscription struct {
	ID     string
	Symbol string
}

// Feed defines the interface to the live broker feed.
//
// The intended flow for a refresh is: ListPositions, SubscribeQuote for
// every symbol in the batch, wait one settle window, SnapshotQuotes once,
// then CancelQuote each handle. Subscriptions are cheap, so callers batch
// them rather than fetching symbols one at a time.
type Feed interface {
	ListPositions(ctx context.Context) ([]models.Position, error)
	SubscribeQuote(ctx context.Context, symbol string) (*Subscription, error)
	SnapshotQuotes(ctx context.Context, symbols []string) (map[string]Quote, error)
	CancelQuote(ctx context.Context, sub *Subscription) error
}
