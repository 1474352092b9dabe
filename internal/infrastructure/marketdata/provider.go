package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmanzanog/market-sim/internal/domain"
)

// HistoryBatchResult is the outcome of one symbol in a batch history request.
type HistoryBatchResult struct {
	Symbol string
	Points []domain.PricePoint
	Error  error
}

// BatchPriceFeed is implemented by feeds that can serve many symbols in one round trip.
type BatchPriceFeed interface {
	domain.PriceFeed
	HistoryBatch(ctx context.Context, symbols []string, days int) []HistoryBatchResult
}

// ParsePricePoint builds a PricePoint from a provider's date and close strings.
// Dates may be plain days or carry a time component.
func ParsePricePoint(date, closePrice string) (domain.PricePoint, error) {
	var (
		t   time.Time
		err error
	)
	for _, layout := range []string{time.DateOnly, time.DateTime, time.RFC3339} {
		if t, err = time.Parse(layout, date); err == nil {
			break
		}
	}
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("failed to parse date %q: %w", date, err)
	}
	price, err := domain.NewDecimalFromString(closePrice)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("failed to parse close for %s: %w", date, err)
	}
	return domain.PricePoint{Date: t, Price: price}, nil
}

// Chronological sorts points oldest first and keeps the last close of each day.
func Chronological(points []domain.PricePoint) []domain.PricePoint {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	out := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		if n := len(out); n > 0 && sameDay(out[n-1].Date, p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

// Window returns the trailing [from, to] range covering the given number of days up to now.
func Window(days int) (time.Time, time.Time) {
	to := time.Now().UTC()
	return to.AddDate(0, 0, -days), to
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
