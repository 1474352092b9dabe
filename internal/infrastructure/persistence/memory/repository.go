package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/jmanzanog/market-sim/internal/domain"
)

// Repository keeps simulation state in process memory. It stores copies so later
// mutations of the live registries are only visible after the next Save call.
type Repository struct {
	mu          sync.RWMutex
	instruments map[string]*domain.Instrument
	markets     map[string]domain.MarketRecord
	investors   map[string]domain.InvestorRecord
	// creation order per kind
	instrumentOrder []string
	marketOrder     []string
	investorOrder   []string
	transactions    map[string][]domain.Transaction
}

func NewRepository() *Repository {
	return &Repository{
		instruments:  make(map[string]*domain.Instrument),
		markets:      make(map[string]domain.MarketRecord),
		investors:    make(map[string]domain.InvestorRecord),
		transactions: make(map[string][]domain.Transaction),
	}
}

func (r *Repository) SaveInstrument(ctx context.Context, inst *domain.Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instruments[inst.Symbol]; !exists {
		r.instrumentOrder = append(r.instrumentOrder, inst.Symbol)
	}
	r.instruments[inst.Symbol] = inst.Clone()
	return nil
}

func (r *Repository) SaveMarket(ctx context.Context, market *domain.Market) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[market.Name]; !exists {
		r.marketOrder = append(r.marketOrder, market.Name)
	}
	r.markets[market.Name] = domain.NewMarketRecord(market)
	return nil
}

// SaveInvestor stores capital and holdings. Transactions are kept from SaveTransaction.
func (r *Repository) SaveInvestor(ctx context.Context, inv *domain.Investor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := domain.NewInvestorRecord(inv)
	rec.Transactions = nil
	if _, exists := r.investors[rec.ID]; !exists {
		r.investorOrder = append(r.investorOrder, rec.ID)
	}
	r.investors[rec.ID] = rec
	return nil
}

func (r *Repository) SaveTransaction(ctx context.Context, tx domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transactions[tx.InvestorID] = append(r.transactions[tx.InvestorID], tx)
	return nil
}

func (r *Repository) Load(ctx context.Context) (*domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &domain.Snapshot{
		Instruments: make([]*domain.Instrument, 0, len(r.instrumentOrder)),
		Markets:     make([]domain.MarketRecord, 0, len(r.marketOrder)),
		Investors:   make([]domain.InvestorRecord, 0, len(r.investorOrder)),
	}
	for _, symbol := range r.instrumentOrder {
		snap.Instruments = append(snap.Instruments, r.instruments[symbol].Clone())
	}
	for _, name := range r.marketOrder {
		rec := r.markets[name]
		rec.Symbols = slices.Clone(rec.Symbols)
		snap.Markets = append(snap.Markets, rec)
	}
	for _, id := range r.investorOrder {
		rec := r.investors[id]
		rec.Holdings = slices.Clone(rec.Holdings)
		rec.Transactions = slices.Clone(r.transactions[id])
		snap.Investors = append(snap.Investors, rec)
	}
	return snap, nil
}
