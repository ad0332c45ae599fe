package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eddiefleurent/ttc_positions/internal/models"
)

// APIError represents a gateway API error with status code and response body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway API error %d: %s", e.Status, e.Body)
}

// GatewayClient talks to the local trading gateway's REST bridge. The
// gateway owns the actual broker session; this client only reads positions
// and manages quote subscriptions.
type GatewayClient struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	accountID string
}

// Ensure GatewayClient implements Feed at compile time.
var _ Feed = (*GatewayClient)(nil)

// NewGatewayClient creates a feed client for the given gateway endpoint.
func NewGatewayClient(endpoint, apiKey, accountID string, timeout time.Duration) *GatewayClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GatewayClient{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(endpoint, "/"),
		apiKey:    apiKey,
		accountID: accountID,
	}
}

// WithHTTPClient allows overriding the HTTP client (tests, custom transport).
func (g *GatewayClient) WithHTTPClient(c *http.Client) *GatewayClient {
	if c != nil {
		g.client = c
	}
	return g
}

// ============ Wire structures ============

type positionsResponse struct {
	Positions []positionItem `json:"positions"`
}

type positionItem struct {
	Symbol   string  `json:"symbol"`
	SecType  string  `json:"sec_type"`
	Right    string  `json:"right"`
	Quantity int64   `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
}

type subscriptionResponse struct {
	Subscription struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
	} `json:"subscription"`
}

type quotesResponse struct {
	Quotes []Quote `json:"quotes"`
}

// ============ API Methods ============

// ListPositions retrieves the raw position list for the configured account.
func (g *GatewayClient) ListPositions(ctx context.Context) ([]models.Position, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/positions", g.baseURL, g.accountID)

	var response positionsResponse
	if err := g.makeRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	positions := make([]models.Position, 0, len(response.Positions))
	for _, item := range response.Positions {
		pos := models.Position{
			Symbol:   item.Symbol,
			Quantity: item.Quantity,
			AvgCost:  item.AvgCost,
		}
		switch item.SecType {
		case "STK":
			pos.Kind = models.KindStock
		case "OPT":
			pos.Kind = models.KindOption
			pos.Right = models.OptionRight(item.Right)
		default:
			// bonds, futures, warrants: carried through with the raw
			// sec type so the classifier can skip them
			pos.Kind = models.InstrumentKind(item.SecType)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// SubscribeQuote registers a streaming quote subscription for a symbol.
func (g *GatewayClient) SubscribeQuote(ctx context.Context, symbol string) (*Subscription, error) {
	endpoint := g.baseURL + "/marketdata/subscriptions"
	body := url.Values{}
	body.Set("symbol", symbol)

	var response subscriptionResponse
	if err := g.makeRequest(ctx, http.MethodPost, endpoint, strings.NewReader(body.Encode()), &response); err != nil {
		return nil, err
	}
	if response.Subscription.ID == "" {
		return nil, fmt.Errorf("no subscription returned for symbol: %s", symbol)
	}
	return &Subscription{ID: response.Subscription.ID, Symbol: response.Subscription.Symbol}, nil
}

// SnapshotQuotes reads the current values for all subscribed symbols in one call.
func (g *GatewayClient) SnapshotQuotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	endpoint := g.baseURL + "/marketdata/quotes?" + params.Encode()

	var response quotesResponse
	if err := g.makeRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	quotes := make(map[string]Quote, len(response.Quotes))
	for _, q := range response.Quotes {
		quotes[q.Symbol] = q
	}
	return quotes, nil
}

// CancelQuote tears down a quote subscription. Cancel failures are not
// fatal to a refresh; the gateway drops idle subscriptions on its own.
func (g *GatewayClient) CancelQuote(ctx context.Context, sub *Subscription) error {
	if sub == nil || sub.ID == "" {
		return nil
	}
	endpoint := fmt.Sprintf("%s/marketdata/subscriptions/%s", g.baseURL, url.PathEscape(sub.ID))
	return g.makeRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

// makeRequest performs an HTTP request against the gateway and decodes the
// JSON response into result. Transport-level failures wrap
// ErrFeedUnavailable so callers can distinguish "gateway down" from a bad
// response for a single request.
func (g *GatewayClient) makeRequest(ctx context.Context, method, endpoint string, body io.Reader, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
