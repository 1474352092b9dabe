package yfinance

import (
	"bytes"
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
	defaultBaseURL   = "http://localhost:8000"
	historyPath      = "/api/v1/history"
	historyBatchPath = "/api/v1/history/batch"
)

// Client implements marketdata.BatchPriceFeed using the yfinance-based Market Data Service.
// This is a lightweight Python microservice that serves daily closes via REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new yfinance Market Data Service client with default settings.
func NewClient() *Client {
	return NewClientWithBaseURL(defaultBaseURL)
}

// NewClientWithBaseURL creates a new client with a custom base URL (useful for K8s deployments).
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewClientWithHTTPClient creates a new client with a custom HTTP client (for testing).
func NewClientWithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
	}
}

// SetBaseURL sets the base URL for the API (useful for testing).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

type closeResponse struct {
	Date  string `json:"date"`
	Close string `json:"close"`
}

// historyResponse represents the response from the history endpoint.
type historyResponse struct {
	Symbol string          `json:"symbol"`
	Prices []closeResponse `json:"prices"`
}

// errorResponse represents an error response from the API.
type errorResponse struct {
	Detail string `json:"detail"`
}

type historyBatchRequest struct {
	Symbols []string `json:"symbols"`
	Days    int      `json:"days"`
}

type historyBatchResponse struct {
	Results []historyResponse   `json:"results"`
	Errors  []historyBatchError `json:"errors"`
}

// historyBatchError represents an error for a single symbol in a batch request.
type historyBatchError struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// History retrieves the daily closes of symbol over the trailing number of days.
func (c *Client) History(ctx context.Context, symbol string, days int) ([]domain.PricePoint, error) {
	reqURL := fmt.Sprintf("%s%s/%s?days=%s", c.baseURL, historyPath, url.PathEscape(symbol), strconv.Itoa(days))

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
			slog.Warn("failed to close response body", "error", closeErr, "url", reqURL)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: no history for symbol %s", domain.ErrNoMarketData, symbol)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Detail != "" {
			return nil, fmt.Errorf("API error: %s", errResp.Detail)
		}
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var historyResp historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&historyResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return toPoints(historyResp.Prices)
}

// HistoryBatch retrieves histories for multiple symbols in a single request.
// Every requested symbol gets exactly one result.
func (c *Client) HistoryBatch(ctx context.Context, symbols []string, days int) []marketdata.HistoryBatchResult {
	results := make([]marketdata.HistoryBatchResult, 0, len(symbols))

	if len(symbols) == 0 {
		return results
	}

	failAll := func(err error) []marketdata.HistoryBatchResult {
		for _, symbol := range symbols {
			results = append(results, marketdata.HistoryBatchResult{Symbol: symbol, Error: err})
		}
		return results
	}

	jsonBody, err := json.Marshal(historyBatchRequest{Symbols: symbols, Days: days})
	if err != nil {
		return failAll(fmt.Errorf("failed to marshal request: %w", err))
	}

	reqURL := c.baseURL + historyBatchPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(jsonBody))
	if err != nil {
		return failAll(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failAll(fmt.Errorf("failed to execute request: %w", err))
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "error", closeErr, "url", reqURL)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return failAll(fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body)))
	}

	var batchResp historyBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batchResp); err != nil {
		return failAll(fmt.Errorf("failed to decode response: %w", err))
	}

	seen := make(map[string]bool, len(symbols))
	for _, hr := range batchResp.Results {
		points, err := toPoints(hr.Prices)
		results = append(results, marketdata.HistoryBatchResult{Symbol: hr.Symbol, Points: points, Error: err})
		seen[hr.Symbol] = true
	}
	for _, e := range batchResp.Errors {
		results = append(results, marketdata.HistoryBatchResult{Symbol: e.Symbol, Error: fmt.Errorf("%s", e.Error)})
		seen[e.Symbol] = true
	}
	for _, symbol := range symbols {
		if !seen[symbol] {
			results = append(results, marketdata.HistoryBatchResult{
				Symbol: symbol,
				Error:  fmt.Errorf("%w: %s missing from batch response", domain.ErrNoMarketData, symbol),
			})
		}
	}

	return results
}

func toPoints(prices []closeResponse) ([]domain.PricePoint, error) {
	points := make([]domain.PricePoint, 0, len(prices))
	for _, p := range prices {
		point, err := marketdata.ParsePricePoint(p.Date, p.Close)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return marketdata.Chronological(points), nil
}
