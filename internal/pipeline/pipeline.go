// Package pipeline runs one refresh end to end: positions from the feed,
// coverage classification, price resolution, and report formatting. At
// most one refresh is in flight at a time.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/ttc_positions/internal/feed"
	"github.com/eddiefleurent/ttc_positions/internal/positions"
	"github.com/eddiefleurent/ttc_positions/internal/report"
	"github.com/eddiefleurent/ttc_positions/internal/resolver"
	"github.com/eddiefleurent/ttc_positions/internal/watchlist"
)

// ErrRefreshInFlight is returned when a refresh is requested while another
// one is still running. Overlapping refreshes are rejected rather than
// interleaved so cache writes stay serialized.
var ErrRefreshInFlight = errors.New("refresh already in progress")

// Pipeline wires the collaborators of one refresh cycle.
type Pipeline struct {
	mu       sync.Mutex
	feed     feed.Feed
	resolver *resolver.Resolver
	watch    *watchlist.Store
	logger   *logrus.Logger
}

// New creates a refresh pipeline.
func New(f feed.Feed, r *resolver.Resolver, w *watchlist.Store, logger *logrus.Logger) *Pipeline {
	return &Pipeline{feed: f, resolver: r, watch: w, logger: logger}
}

// Refresh runs one full cycle and always hands back a well-formed report:
// complete rows, degraded-but-labeled rows, or a structured failure with a
// friendly message and empty row sets. The error return is reserved for
// ErrRefreshInFlight and context cancellation; provider failures never
// surface as errors.
func (p *Pipeline) Refresh(ctx context.Context) (*report.Report, error) {
	if !p.mu.TryLock() {
		return nil, ErrRefreshInFlight
	}
	defer p.mu.Unlock()

	log := p.logger.WithField("run", shortID(uuid.New().String()))
	log.Info("refresh started")

	raw, err := p.feed.ListPositions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithError(err).Warn("position fetch failed, serving degraded report")
		return p.refreshDegraded(ctx, log, err), nil
	}

	// Grow the watchlist with any new equity-like position symbols before
	// classifying, so option-only symbols land in the watchlist rows.
	seen := make(map[string]bool)
	var posSymbols []string
	for _, pos := range raw {
		if (pos.IsStock() || pos.IsOption()) && !seen[pos.Symbol] {
			seen[pos.Symbol] = true
			posSymbols = append(posSymbols, pos.Symbol)
		}
	}
	watch, err := p.watch.Extend(posSymbols)
	if err != nil {
		// a failed watchlist save does not block the report
		log.WithError(err).Warn("watchlist save failed")
	}

	cls := positions.Classify(raw, watch)
	prices := p.resolver.Resolve(ctx, cls.Symbols)

	log.WithFields(logrus.Fields{
		"positions": len(cls.Stocks),
		"symbols":   len(cls.Symbols),
	}).Info("refresh complete")

	return report.BuildReport(cls, prices, false, ""), nil
}

// refreshDegraded serves watchlist-only data from the secondary and cache
// tiers when the feed is unreachable. No fresh position list exists, so the
// whole watchlist is the symbol universe.
func (p *Pipeline) refreshDegraded(ctx context.Context, log *logrus.Entry, cause error) *report.Report {
	watch := p.watch.Load()

	cls := positions.Classify(nil, watch)
	prices := p.resolver.ResolveDegraded(ctx, cls.Symbols)

	anyUsable := false
	for _, res := range prices {
		if res.Snapshot.Usable() {
			anyUsable = true
			break
		}
	}
	if !anyUsable {
		log.WithError(cause).Error("degraded refresh produced no data")
		out := report.Empty()
		out.Error = FriendlyError(cause)
		return out
	}

	out := report.BuildReport(cls, prices, true, FriendlyError(cause))
	log.WithField("symbols", len(cls.Symbols)).Warn("served degraded watchlist-only report")
	return out
}

// shortID trims a UUID to its first segment for log readability.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
