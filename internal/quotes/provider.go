// Package quotes implements the secondary quote provider: a best-effort
// per-symbol OHLC lookup against a public HTTP quote source, used only when
// the live feed could not produce a price for a symbol.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/eddiefleurent/ttc_positions/internal/models"
)

// memoTTL is how long a fetched quote is reused without hitting the
// provider again. The provider is rate limited, so repeated refreshes
// within a minute should not burn quota on the same symbols.
const memoTTL = 1 * time.Minute

// Provider fetches real-time OHLC quotes from a public EOD-style API.
// It is stateless per symbol; every lookup is independent.
type Provider struct {
	client   *http.Client
	baseURL  string
	apiToken string
	timeout  time.Duration
	limiter  *rate.Limiter
	memo     *gocache.Cache
	logger   *logrus.Logger
}

// NewProvider creates a secondary quote provider.
// ratePerMinute bounds outbound requests; the provider is a rate-sensitive
// third party and must never be hammered by a wide refresh.
func NewProvider(endpoint, apiToken string, timeout time.Duration, ratePerMinute int, logger *logrus.Logger) *Provider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 60
	}
	return &Provider{
		client:   &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(endpoint, "/"),
		apiToken: apiToken,
		timeout:  timeout,
		limiter:  rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), ratePerMinute/6+1),
		memo:     gocache.New(memoTTL, 2*memoTTL),
		logger:   logger,
	}
}

// WithHTTPClient allows overriding the HTTP client (tests, custom transport).
func (p *Provider) WithHTTPClient(c *http.Client) *Provider {
	if c != nil {
		p.client = c
	}
	return p
}

// realTimeQuote matches the provider's real-time endpoint payload.
type realTimeQuote struct {
	Code          string  `json:"code"`
	Timestamp     int64   `json:"timestamp"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	PreviousClose float64 `json:"previousClose"`
	Change        float64 `json:"change"`
}

// Fetch looks up one symbol and returns a snapshot tagged SourceSecondary.
// The call honors both the provider rate limit and the configured per-call
// timeout; an error here only means this symbol stays unresolved at this
// tier.
func (p *Provider) Fetch(ctx context.Context, symbol string) (models.PriceSnapshot, error) {
	if cached, ok := p.memo.Get(symbol); ok {
		return cached.(models.PriceSnapshot), nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("rate limit wait for %s: %w", symbol, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Real-time endpoint: /real-time/{SYMBOL}.US?fmt=json&api_token=...
	addr := fmt.Sprintf("%s/real-time/%s.US?fmt=json&api_token=%s",
		p.baseURL, url.PathEscape(symbol), url.QueryEscape(p.apiToken))

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, addr, nil)
	if err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("creating request for %s: %w", symbol, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("fetching %s: %w", symbol, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return models.PriceSnapshot{}, fmt.Errorf("fetching %s: unexpected status %s", symbol, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("reading %s response: %w", symbol, err)
	}

	var quote realTimeQuote
	if err := json.Unmarshal(data, &quote); err != nil {
		return models.PriceSnapshot{}, fmt.Errorf("decoding %s response: %w", symbol, err)
	}

	// The provider reports the current price in "close" and yesterday's
	// close in "previousClose".
	snapshot := models.PriceSnapshot{
		Symbol:     symbol,
		Last:       quote.Close,
		Open:       quote.Open,
		Close:      quote.PreviousClose,
		High:       quote.High,
		Low:        quote.Low,
		ChangeAbs:  quote.Change,
		Source:     models.SourceSecondary,
		ObservedAt: time.Now().UTC(),
	}
	if !snapshot.Usable() {
		return models.PriceSnapshot{}, fmt.Errorf("no usable price for %s", symbol)
	}

	p.memo.Set(symbol, snapshot, gocache.DefaultExpiration)
	p.logger.WithFields(logrus.Fields{"symbol": symbol, "last": snapshot.Last}).
		Debug("secondary quote fetched")
	return snapshot, nil
}
