package finnhub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmanzanog/market-sim/internal/domain"
)

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key")

	assert.NotNil(t, client)
	assert.Equal(t, defaultBaseURL, client.baseURL)
	assert.Equal(t, "test-api-key", client.apiKey)
	assert.NotNil(t, client.httpClient)
}

func TestNewClientWithHTTPClient(t *testing.T) {
	customHTTPClient := &http.Client{Timeout: 30 * time.Second}
	client := NewClientWithHTTPClient("test-api-key", customHTTPClient)

	assert.Equal(t, defaultBaseURL, client.baseURL)
	assert.Equal(t, customHTTPClient, client.httpClient)
}

func TestClient_History_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/stock/candle", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "D", r.URL.Query().Get("resolution"))
		assert.Equal(t, "test-api-key", r.URL.Query().Get("token"))
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		assert.NotEmpty(t, r.URL.Query().Get("to"))

		w.Header().Set("Content-Type", "application/json")
		// 2024-03-04 and 2024-03-01, deliberately out of order.
		_, _ = w.Write([]byte(`{"c": [175.1, 179.66], "t": [1709510400, 1709251200], "s": "ok"}`))
	}))
	defer server.Close()

	client := NewClient("test-api-key")
	client.SetBaseURL(server.URL)

	points, err := client.History(context.Background(), "AAPL", 5)

	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "179.66", points[0].Price.String())
	assert.Equal(t, "175.1", points[1].Price.String())
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), points[1].Date)
}

func TestClient_History_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		expectNoData bool
	}{
		{name: "no data", status: http.StatusOK, body: `{"s": "no_data"}`, expectNoData: true},
		{name: "empty closes", status: http.StatusOK, body: `{"c": [], "t": [], "s": "ok"}`, expectNoData: true},
		{name: "mismatched arrays", status: http.StatusOK, body: `{"c": [1, 2], "t": [1709251200], "s": "ok"}`},
		{name: "forbidden", status: http.StatusForbidden, body: `{"error": "You don't have access to this resource."}`},
		{name: "malformed json", status: http.StatusOK, body: `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient("test-api-key")
			client.SetBaseURL(server.URL)

			_, err := client.History(context.Background(), "NOPE", 1)

			require.Error(t, err)
			assert.Equal(t, tt.expectNoData, errors.Is(err, domain.ErrNoMarketData))
		})
	}
}

func TestClient_History_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"c": [1], "t": [1709251200], "s": "ok"}`))
	}))
	defer server.Close()

	client := NewClient("test-api-key")
	client.SetBaseURL(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.History(ctx, "AAPL", 1)
	assert.Error(t, err)
}
