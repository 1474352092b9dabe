package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmanzanog/market-sim/internal/domain"
	"github.com/jmanzanog/market-sim/internal/infrastructure/marketdata"
	"github.com/jmanzanog/market-sim/internal/infrastructure/persistence/memory"
)

// fixedRand cycles through values.
type fixedRand struct {
	values []float64
	i      int
}

func (r *fixedRand) Float64() float64 {
	v := r.values[r.i%len(r.values)]
	r.i++
	return v
}

// stubFeed serves canned histories. Unknown symbols get ErrNoMarketData.
type stubFeed struct {
	mu     sync.Mutex
	points map[string][]domain.PricePoint
	err    error
	calls  int
}

func (f *stubFeed) History(_ context.Context, symbol string, _ int) ([]domain.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.points[symbol]
	if !ok {
		return nil, domain.ErrNoMarketData
	}
	return p, nil
}

func (f *stubFeed) set(symbol string, points ...domain.PricePoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.points == nil {
		f.points = make(map[string][]domain.PricePoint)
	}
	f.points[symbol] = points
}

// stubBatchFeed adds the batch fast path to stubFeed.
type stubBatchFeed struct {
	*stubFeed
	batchCalls int
}

func (f *stubBatchFeed) HistoryBatch(ctx context.Context, symbols []string, days int) []marketdata.HistoryBatchResult {
	f.batchCalls++
	results := make([]marketdata.HistoryBatchResult, 0, len(symbols))
	for _, symbol := range symbols {
		f.mu.Lock()
		p, ok := f.points[symbol]
		f.mu.Unlock()
		if !ok {
			continue
		}
		results = append(results, marketdata.HistoryBatchResult{Symbol: symbol, Points: p})
	}
	return results
}

var errStorage = errors.New("storage unavailable")

// failingRepo accepts loads but rejects every save.
type failingRepo struct {
	*memory.Repository
}

func (failingRepo) SaveInstrument(context.Context, *domain.Instrument) error {
	return errStorage
}

func (failingRepo) SaveMarket(context.Context, *domain.Market) error {
	return errStorage
}

func (failingRepo) SaveInvestor(context.Context, *domain.Investor) error {
	return errStorage
}

func (failingRepo) SaveTransaction(context.Context, domain.Transaction) error {
	return errStorage
}

func point(daysAgo int, price int64) domain.PricePoint {
	d := time.Now().UTC().AddDate(0, 0, -daysAgo)
	return domain.PricePoint{
		Date:  time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
		Price: domain.NewDecimalFromInt(price),
	}
}

func dec(v int64) domain.Decimal {
	return domain.NewDecimalFromInt(v)
}

// newTestService returns a service over a fresh memory repository whose random
// source always draws 0.75, i.e. +10% at volatility 0.2.
func newTestService(t *testing.T, feed domain.PriceFeed) (*SimulationService, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	svc, err := NewSimulationService(context.Background(), repo, feed, &fixedRand{values: []float64{0.75}}, 0.2)
	require.NoError(t, err)
	return svc, repo
}

// seedInstruments creates simulated instruments priced as given.
func seedInstruments(t *testing.T, svc *SimulationService, prices map[string]int64) {
	t.Helper()
	for symbol, price := range prices {
		_, err := svc.CreateInstrument(context.Background(), symbol, symbol+" Corp", dec(price), nil)
		require.NoError(t, err)
	}
}

func memoryRepo() *memory.Repository {
	return memory.NewRepository()
}
