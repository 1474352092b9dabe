package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmanzanog/market-sim/internal/domain"
	"github.com/jmanzanog/market-sim/internal/infrastructure/marketdata"
)

// RefreshOutcome is the result of refreshing a single instrument.
type RefreshOutcome struct {
	Symbol  string          `json:"symbol"`
	Price   *domain.Decimal `json:"price,omitempty"`
	Changed bool            `json:"changed"`
	Error   string          `json:"error,omitempty"`
}

// RefreshResult groups the outcomes of a batch refresh.
type RefreshResult struct {
	Refreshed []RefreshOutcome `json:"refreshed"`
	Failed    []RefreshOutcome `json:"failed"`
}

// RefreshRealInstruments pulls the latest close of every real-backed instrument.
// It prefers one batch request when the feed supports it and otherwise fetches
// concurrently, one goroutine per symbol. Prices are applied under the write lock
// after all fetches have completed.
func (s *SimulationService) RefreshRealInstruments(ctx context.Context) *RefreshResult {
	result := &RefreshResult{
		Refreshed: make([]RefreshOutcome, 0),
		Failed:    make([]RefreshOutcome, 0),
	}

	s.mu.RLock()
	var symbols []string
	for _, inst := range s.instruments.All() {
		if inst.Source == domain.InstrumentSourceReal {
			symbols = append(symbols, inst.Symbol)
		}
	}
	s.mu.RUnlock()

	if len(symbols) == 0 {
		return result
	}
	if s.feed == nil {
		for _, symbol := range symbols {
			result.Failed = append(result.Failed, RefreshOutcome{Symbol: symbol, Error: ErrNoPriceFeed.Error()})
		}
		return result
	}

	var (
		points map[string][]domain.PricePoint
		errs   map[string]error
	)
	if batchFeed, ok := s.feed.(marketdata.BatchPriceFeed); ok {
		slog.InfoContext(ctx, "Using batch feed for price refresh", "count", len(symbols))
		points, errs = s.fetchBatch(ctx, batchFeed, symbols)
	} else {
		slog.InfoContext(ctx, "Batch feed not available, using concurrent refresh", "count", len(symbols))
		points, errs = s.fetchConcurrent(ctx, symbols)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, symbol := range symbols {
		if err, failed := errs[symbol]; failed {
			result.Failed = append(result.Failed, RefreshOutcome{Symbol: symbol, Error: err.Error()})
			continue
		}
		inst, err := s.instruments.Lookup(symbol)
		if err != nil {
			result.Failed = append(result.Failed, RefreshOutcome{Symbol: symbol, Error: err.Error()})
			continue
		}

		before := inst.Price()
		if err := inst.ApplyRefresh(points[symbol]); err != nil {
			result.Failed = append(result.Failed, RefreshOutcome{Symbol: symbol, Error: err.Error()})
			continue
		}
		price := inst.Price()
		changed := !price.Equal(before)
		if changed {
			s.saveInstrument(ctx, inst)
		}
		result.Refreshed = append(result.Refreshed, RefreshOutcome{Symbol: symbol, Price: &price, Changed: changed})
	}

	slog.InfoContext(ctx, "Real instruments refreshed",
		"refreshed", len(result.Refreshed),
		"failed", len(result.Failed))
	return result
}

// fetchBatch uses the batch feed to fetch every refresh window in one call.
func (s *SimulationService) fetchBatch(ctx context.Context, feed marketdata.BatchPriceFeed, symbols []string) (map[string][]domain.PricePoint, map[string]error) {
	points := make(map[string][]domain.PricePoint)
	errs := make(map[string]error)

	for _, r := range feed.HistoryBatch(ctx, symbols, domain.RefreshWindowDays) {
		if r.Error != nil {
			errs[r.Symbol] = r.Error
		} else {
			points[r.Symbol] = r.Points
		}
	}
	for _, symbol := range symbols {
		if _, ok := points[symbol]; ok {
			continue
		}
		if _, ok := errs[symbol]; !ok {
			errs[symbol] = domain.ErrNoMarketData
		}
	}
	return points, errs
}

// fetchConcurrent fetches refresh windows concurrently using goroutines and channels.
func (s *SimulationService) fetchConcurrent(ctx context.Context, symbols []string) (map[string][]domain.PricePoint, map[string]error) {
	points := make(map[string][]domain.PricePoint)
	errs := make(map[string]error)

	type fetchResult struct {
		symbol string
		points []domain.PricePoint
		err    error
	}

	resultChan := make(chan fetchResult, len(symbols))
	var wg sync.WaitGroup

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			p, err := s.feed.History(ctx, symbol, domain.RefreshWindowDays)
			resultChan <- fetchResult{symbol: symbol, points: p, err: err}
		}(symbol)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for r := range resultChan {
		if r.err != nil {
			errs[r.symbol] = r.err
		} else {
			points[r.symbol] = r.points
		}
	}

	return points, errs
}
