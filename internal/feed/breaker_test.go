package feed

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/ttc_positions/internal/models"
)

// flakyFeed fails every call until healed.
type flakyFeed struct {
	healed bool
	calls  int
}

func (f *flakyFeed) ListPositions(ctx context.Context) ([]models.Position, error) {
	f.calls++
	if !f.healed {
		return nil, errors.New("gateway exploded")
	}
	return []models.Position{{Symbol: "AAPL", Kind: models.KindStock, Quantity: 100}}, nil
}

func (f *flakyFeed) SubscribeQuote(ctx context.Context, symbol string) (*Subscription, error) {
	return nil, errors.New("gateway exploded")
}

func (f *flakyFeed) SnapshotQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	return nil, errors.New("gateway exploded")
}

func (f *flakyFeed) CancelQuote(ctx context.Context, sub *Subscription) error {
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	inner := &flakyFeed{}
	wrapped := NewCircuitBreakerFeedWithSettings(inner, quietLogger(), CircuitBreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	})

	for i := 0; i < 3; i++ {
		_, err := wrapped.ListPositions(context.Background())
		require.Error(t, err)
	}

	// breaker is now open: calls fail fast without reaching the gateway
	callsBefore := inner.calls
	_, err := wrapped.ListPositions(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFeedUnavailable, "an open breaker reads as a dead feed")
	assert.Equal(t, callsBefore, inner.calls, "open breaker must not call through")
}

func TestBreakerPassesThroughWhenHealthy(t *testing.T) {
	inner := &flakyFeed{healed: true}
	wrapped := NewCircuitBreakerFeed(inner, quietLogger())

	got, err := wrapped.ListPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Symbol)
}

func TestBreakerPreservesUnderlyingError(t *testing.T) {
	inner := &flakyFeed{}
	wrapped := NewCircuitBreakerFeed(inner, quietLogger())

	_, err := wrapped.ListPositions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway exploded")
	assert.False(t, errors.Is(err, ErrFeedUnavailable), "a single failure is not an open circuit")
}
