package feed

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/eddiefleurent/ttc_positions/internal/models"
)

// CircuitBreakerFeed wraps a Feed with circuit breaker functionality so a
// flapping gateway trips quickly into the degraded report path instead of
// stalling every refresh on timeouts.
type CircuitBreakerFeed struct {
	feed    Feed
	breaker *gobreaker.CircuitBreaker
}

// CircuitBreakerSettings configures circuit breaker behavior.
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// execBreaker is a generic helper for circuit breaker wrapper methods.
func execBreaker[T any](breaker *gobreaker.CircuitBreaker, feed Feed, fn func(Feed) (T, error)) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(feed) })
	if err != nil {
		// An open breaker means the gateway is effectively unreachable.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, errors.Join(ErrFeedUnavailable, err)
		}
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// NewCircuitBreakerFeed creates a CircuitBreakerFeed with sensible defaults.
func NewCircuitBreakerFeed(feed Feed, logger *logrus.Logger) *CircuitBreakerFeed {
	return NewCircuitBreakerFeedWithSettings(feed, logger, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerFeedWithSettings creates a CircuitBreakerFeed with custom settings.
func NewCircuitBreakerFeedWithSettings(feed Feed, logger *logrus.Logger, settings CircuitBreakerSettings) *CircuitBreakerFeed {
	gbSettings := gobreaker.Settings{
		Name:        "FeedCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warnf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &CircuitBreakerFeed{
		feed:    feed,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// ListPositions wraps the underlying feed call with circuit breaker.
func (c *CircuitBreakerFeed) ListPositions(ctx context.Context) ([]models.Position, error) {
	return execBreaker(c.breaker, c.feed, func(f Feed) ([]models.Position, error) {
		return f.ListPositions(ctx)
	})
}

// SubscribeQuote wraps the underlying feed call with circuit breaker.
func (c *CircuitBreakerFeed) SubscribeQuote(ctx context.Context, symbol string) (*Subscription, error) {
	return execBreaker(c.breaker, c.feed, func(f Feed) (*Subscription, error) {
		return f.SubscribeQuote(ctx, symbol)
	})
}

// SnapshotQuotes wraps the underlying feed call with circuit breaker.
func (c *CircuitBreakerFeed) SnapshotQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	return execBreaker(c.breaker, c.feed, func(f Feed) (map[string]Quote, error) {
		return f.SnapshotQuotes(ctx, symbols)
	})
}

// CancelQuote wraps the underlying feed call with circuit breaker.
func (c *CircuitBreakerFeed) CancelQuote(ctx context.Context, sub *Subscription) error {
	_, err := execBreaker(c.breaker, c.feed, func(f Feed) (struct{}, error) {
		return struct{}{}, f.CancelQuote(ctx, sub)
	})
	return err
}

// Ensure CircuitBreakerFeed implements Feed at compile time.
var _ Feed = (*CircuitBreakerFeed)(nil)
