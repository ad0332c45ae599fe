package quotes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/ttc_positions/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestFetchMapsFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/real-time/AAPL.US", r.URL.Path)
		assert.Equal(t, "demo", r.URL.Query().Get("api_token"))
		fmt.Fprint(w, `{"code":"AAPL.US","timestamp":1700000000,"open":149.0,"high":152.0,"low":148.5,"close":150.25,"previousClose":148.0,"change":2.25}`)
	}))
	defer server.Close()

	provider := NewProvider(server.URL, "demo", 2*time.Second, 600, testLogger())

	got, err := provider.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, 150.25, got.Last, "provider close is the current price")
	assert.Equal(t, 148.0, got.Close, "previousClose maps to close")
	assert.Equal(t, 149.0, got.Open)
	assert.Equal(t, 2.25, got.ChangeAbs)
	assert.Equal(t, models.SourceSecondary, got.Source)
	assert.False(t, got.ObservedAt.IsZero())
}

func TestFetchRejectsNonPositivePrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"XYZ.US","close":0}`)
	}))
	defer server.Close()

	provider := NewProvider(server.URL, "demo", 2*time.Second, 600, testLogger())

	_, err := provider.Fetch(context.Background(), "XYZ")
	require.Error(t, err)
}

func TestFetchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	provider := NewProvider(server.URL, "bad", 2*time.Second, 600, testLogger())

	_, err := provider.Fetch(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestFetchMemoizesWithinTTL(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"code":"AAPL.US","close":150.0}`)
	}))
	defer server.Close()

	provider := NewProvider(server.URL, "demo", 2*time.Second, 600, testLogger())

	for i := 0; i < 3; i++ {
		_, err := provider.Fetch(context.Background(), "AAPL")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "repeat fetches within the memo TTL must not hit the provider")
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{"close":1}`)
	}))
	defer server.Close()

	provider := NewProvider(server.URL, "demo", 2*time.Second, 600, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := provider.Fetch(ctx, "AAPL")
	require.Error(t, err)
}
