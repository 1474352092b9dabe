package alpaca

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/jmanzanog/market-sim/internal/domain"
	mdata "github.com/jmanzanog/market-sim/internal/infrastructure/marketdata"
)

// barsClient is the subset of the Alpaca market data client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// Client implements mdata.BatchPriceFeed over Alpaca daily bars from the IEX feed.
type Client struct {
	md barsClient
}

// NewClient creates a client. Empty credentials fall back to the APCA_API_* environment variables.
func NewClient(apiKey, apiSecret string) *Client {
	return &Client{
		md: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
	}
}

func (c *Client) History(ctx context.Context, symbol string, days int) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, err := c.md.GetBars(symbol, barsRequest(days))
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}
	return toPoints(bars)
}

// HistoryBatch fetches every symbol in one multi-bars request.
func (c *Client) HistoryBatch(ctx context.Context, symbols []string, days int) []mdata.HistoryBatchResult {
	results := make([]mdata.HistoryBatchResult, 0, len(symbols))
	if len(symbols) == 0 {
		return results
	}

	bySymbol, err := c.md.GetMultiBars(symbols, barsRequest(days))
	if err == nil {
		err = ctx.Err()
	}
	for _, symbol := range symbols {
		if err != nil {
			results = append(results, mdata.HistoryBatchResult{Symbol: symbol, Error: fmt.Errorf("failed to get bars: %w", err)})
			continue
		}
		points, convErr := toPoints(bySymbol[symbol])
		results = append(results, mdata.HistoryBatchResult{Symbol: symbol, Points: points, Error: convErr})
	}
	return results
}

func barsRequest(days int) marketdata.GetBarsRequest {
	from, to := mdata.Window(days)
	return marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     from,
		End:       to,
		Feed:      marketdata.IEX,
	}
}

func toPoints(bars []marketdata.Bar) ([]domain.PricePoint, error) {
	points := make([]domain.PricePoint, 0, len(bars))
	for _, b := range bars {
		price, err := domain.NewDecimalFromFloat(b.Close)
		if err != nil {
			return nil, err
		}
		points = append(points, domain.PricePoint{Date: b.Timestamp, Price: price})
	}
	return mdata.Chronological(points), nil
}
