package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jmanzanog/market-sim/internal/domain"
	"github.com/jmanzanog/market-sim/internal/infrastructure/marketdata"
)

const (
	defaultBaseURL = "https://finnhub.io/api/v1"
	candlePath     = "/stock/candle"
)

// Client implements domain.PriceFeed using the Finnhub candle API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Finnhub API client.
func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewClientWithHTTPClient creates a new Finnhub client with a custom HTTP client (for testing).
func NewClientWithHTTPClient(apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// SetBaseURL sets the base URL for the API (useful for testing).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// candleResponse holds parallel arrays of closes and unix timestamps.
type candleResponse struct {
	Close     []float64 `json:"c"`
	Timestamp []int64   `json:"t"`
	Status    string    `json:"s"` // "ok" or "no_data"
}

// History returns daily closes over the trailing window.
func (c *Client) History(ctx context.Context, symbol string, days int) ([]domain.PricePoint, error) {
	from, to := marketdata.Window(days)

	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("resolution", "D")
	params.Add("from", strconv.FormatInt(from.Unix(), 10))
	params.Add("to", strconv.FormatInt(to.Unix(), 10))
	params.Add("token", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, candlePath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "error", closeErr, "symbol", symbol)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var candles candleResponse
	if err := json.NewDecoder(resp.Body).Decode(&candles); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if candles.Status == "no_data" || len(candles.Close) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoMarketData, symbol)
	}
	if len(candles.Close) != len(candles.Timestamp) {
		return nil, fmt.Errorf("mismatched candle arrays for %s: %d closes, %d timestamps",
			symbol, len(candles.Close), len(candles.Timestamp))
	}

	points := make([]domain.PricePoint, 0, len(candles.Close))
	for i, closePrice := range candles.Close {
		price, err := domain.NewDecimalFromFloat(closePrice)
		if err != nil {
			return nil, fmt.Errorf("invalid close for %s: %w", symbol, err)
		}
		points = append(points, domain.PricePoint{
			Date:  time.Unix(candles.Timestamp[i], 0).UTC(),
			Price: price,
		})
	}

	return marketdata.Chronological(points), nil
}
