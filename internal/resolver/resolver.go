// Package resolver produces a price snapshot for every symbol in a refresh
// by walking a fixed fallback sequence: live feed, secondary provider,
// disk cache. A symbol that survives no tier is tagged unavailable.
package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/ttc_positions/internal/feed"
	"github.com/eddiefleurent/ttc_positions/internal/models"
	"github.com/eddiefleurent/ttc_positions/internal/pricecache"
	"github.com/eddiefleurent/ttc_positions/internal/quotes"
)

// Resolution is the per-symbol outcome of a resolution pass. Age is a
// human-readable string ("2h ago") set only for cached snapshots.
type Resolution struct {
	Snapshot models.PriceSnapshot
	Age      string
}

// Resolver orchestrates the tier sequence and writes every usable snapshot
// back to the cache at the end of a pass.
type Resolver struct {
	feed         feed.Feed
	secondary    *quotes.Provider
	cache        *pricecache.Store
	logger       *logrus.Logger
	settleWindow time.Duration
	workers      int
	now          func() time.Time
}

// New creates a resolver. workers bounds the Tier-2 fan-out; the secondary
// provider is rate sensitive, so this stays a small pool.
func New(f feed.Feed, secondary *quotes.Provider, cache *pricecache.Store,
	settleWindow time.Duration, workers int, logger *logrus.Logger) *Resolver {
	if settleWindow <= 0 {
		settleWindow = time.Second
	}
	if workers <= 0 {
		workers = 4
	}
	return &Resolver{
		feed:         f,
		secondary:    secondary,
		cache:        cache,
		logger:       logger,
		settleWindow: settleWindow,
		workers:      workers,
		now:          time.Now,
	}
}

// Resolve produces a resolution for every requested symbol, preferring
// live prices and falling through per symbol. It always returns an entry
// per symbol; per-symbol failures never abort the pass.
func (r *Resolver) Resolve(ctx context.Context, symbols []string) map[string]Resolution {
	resolved := make(map[string]Resolution, len(symbols))

	pending := r.resolveLive(ctx, symbols, resolved)
	pending = r.resolveSecondary(ctx, pending, resolved)
	r.resolveCached(pending, resolved)

	r.writeBack(resolved)
	return resolved
}

// ResolveDegraded skips the live tier entirely. It serves the whole-system
// fallback when the feed is unreachable and only the watchlist is known.
func (r *Resolver) ResolveDegraded(ctx context.Context, symbols []string) map[string]Resolution {
	resolved := make(map[string]Resolution, len(symbols))

	pending := r.resolveSecondary(ctx, symbols, resolved)
	r.resolveCached(pending, resolved)

	r.writeBack(resolved)
	return resolved
}

// resolveLive is Tier 1: batch-subscribe every symbol, wait one settle
// window, take a single snapshot, cancel. Returns the symbols that did not
// yield a positive last price.
func (r *Resolver) resolveLive(ctx context.Context, symbols []string, resolved map[string]Resolution) []string {
	if len(symbols) == 0 {
		return nil
	}

	subs := make([]*feed.Subscription, 0, len(symbols))
	subscribed := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		sub, err := r.feed.SubscribeQuote(ctx, symbol)
		if err != nil {
			r.logger.WithError(err).WithField("symbol", symbol).Debug("live subscription failed")
			continue
		}
		subs = append(subs, sub)
		subscribed = append(subscribed, symbol)
	}

	defer func() {
		for _, sub := range subs {
			if err := r.feed.CancelQuote(ctx, sub); err != nil {
				r.logger.WithError(err).WithField("symbol", sub.Symbol).Debug("cancel failed")
			}
		}
	}()

	if len(subscribed) > 0 {
		// one bounded wait for the whole batch, not per symbol
		select {
		case <-time.After(r.settleWindow):
		case <-ctx.Done():
		}

		quotesBySymbol, err := r.feed.SnapshotQuotes(ctx, subscribed)
		if err != nil {
			r.logger.WithError(err).Warn("live quote snapshot failed")
			quotesBySymbol = nil
		}

		now := r.now().UTC()
		for _, symbol := range subscribed {
			quote, ok := quotesBySymbol[symbol]
			if !ok || quote.Last <= 0 {
				continue
			}
			resolved[symbol] = Resolution{Snapshot: models.PriceSnapshot{
				Symbol:     symbol,
				Last:       quote.Last,
				Open:       quote.Open,
				Close:      quote.Close,
				High:       quote.High,
				Low:        quote.Low,
				ChangeAbs:  quote.ChangeAbs,
				Source:     models.SourceLive,
				ObservedAt: now,
			}}
		}
	}

	var pending []string
	for _, symbol := range symbols {
		if _, ok := resolved[symbol]; !ok {
			pending = append(pending, symbol)
		}
	}
	return pending
}

// resolveSecondary is Tier 2: independent per-symbol lookups through a
// bounded worker pool. A failed lookup only leaves that symbol pending.
func (r *Resolver) resolveSecondary(ctx context.Context, symbols []string, resolved map[string]Resolution) []string {
	if len(symbols) == 0 {
		return nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			snapshot, err := r.secondary.Fetch(gctx, symbol)
			if err != nil {
				r.logger.WithError(err).WithField("symbol", symbol).Debug("secondary lookup failed")
				return nil // swallowed: sibling lookups must keep going
			}
			mu.Lock()
			resolved[symbol] = Resolution{Snapshot: snapshot}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	var pending []string
	for _, symbol := range symbols {
		if _, ok := resolved[symbol]; !ok {
			pending = append(pending, symbol)
		}
	}
	return pending
}

// resolveCached is Tier 3: local cache lookups. Only entries still within
// the retention window qualify; anything older is a miss even if Save has
// not pruned it yet (the file may not have been written for days). Symbols
// missing here become unavailable.
func (r *Resolver) resolveCached(symbols []string, resolved map[string]Resolution) {
	if len(symbols) == 0 {
		return
	}

	cache := r.cache.Load()
	now := r.now()
	cutoff := now.Add(-r.cache.Retention())

	for _, symbol := range symbols {
		snapshot, ok := cache.Get(symbol)
		if ok && snapshot.Usable() && !snapshot.ObservedAt.Before(cutoff) {
			snapshot.Source = models.SourceCached
			resolved[symbol] = Resolution{
				Snapshot: snapshot,
				Age:      humanAge(now.Sub(snapshot.ObservedAt)),
			}
			continue
		}
		resolved[symbol] = Resolution{Snapshot: models.UnavailableSnapshot(symbol)}
	}
}

// writeBack merges every usable snapshot from this pass into the cache so
// live and secondary results refresh future cached fallbacks. Cached
// entries re-saving themselves is harmless: their observedAt is preserved,
// so pruning still sees their true age.
func (r *Resolver) writeBack(resolved map[string]Resolution) {
	batch := make(map[string]models.PriceSnapshot, len(resolved))
	for symbol, res := range resolved {
		if res.Snapshot.Usable() {
			batch[symbol] = res.Snapshot
		}
	}
	if len(batch) == 0 {
		return
	}
	if err := r.cache.Save(batch); err != nil {
		r.logger.WithError(err).Warn("price cache save failed")
	}
}
