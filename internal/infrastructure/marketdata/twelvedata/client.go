package twelvedata

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
	defaultBaseURL = "https://api.twelvedata.com"
	timeSeriesPath = "/time_series"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type timeSeriesResponse struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []struct {
		Datetime string `json:"datetime"`
		Close    string `json:"close"`
	} `json:"values"`
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// History returns daily closes over the trailing window. Twelve Data lists values
// newest first; the result is chronological.
func (c *Client) History(ctx context.Context, symbol string, days int) ([]domain.PricePoint, error) {
	from, to := marketdata.Window(days)

	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("interval", "1day")
	params.Add("outputsize", strconv.Itoa(days+1))
	params.Add("start_date", from.Format(time.DateOnly))
	params.Add("end_date", to.Format(time.DateOnly))
	params.Add("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, timeSeriesPath, params.Encode())

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

	var seriesResp timeSeriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&seriesResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if seriesResp.Status == "error" {
		if seriesResp.Code == http.StatusNotFound || seriesResp.Code == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s: %s", domain.ErrNoMarketData, symbol, seriesResp.Message)
		}
		return nil, fmt.Errorf("time series request failed for symbol %s: %s", symbol, seriesResp.Message)
	}

	points := make([]domain.PricePoint, 0, len(seriesResp.Values))
	for _, v := range seriesResp.Values {
		p, err := marketdata.ParsePricePoint(v.Datetime, v.Close)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", symbol, err)
		}
		points = append(points, p)
	}

	return marketdata.Chronological(points), nil
}
