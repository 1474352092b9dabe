package domain

import (
	"context"
	"time"
)

// Repository persists simulation state. The service calls it after each successful
// mutation and rebuilds its registries from Load on start.
// All methods accept context.Context so callers can bound database round trips.
type Repository interface {
	SaveInstrument(ctx context.Context, inst *Instrument) error
	SaveMarket(ctx context.Context, market *Market) error
	SaveInvestor(ctx context.Context, inv *Investor) error
	SaveTransaction(ctx context.Context, tx Transaction) error
	Load(ctx context.Context) (*Snapshot, error)
}

// Snapshot is the persisted state of one simulation. Markets and holdings refer to
// instruments by symbol.
type Snapshot struct {
	Instruments []*Instrument
	Markets     []MarketRecord
	Investors   []InvestorRecord
}

type MarketRecord struct {
	Name    string
	Symbols []string
}

type HoldingRecord struct {
	Symbol   string
	Quantity int64
}

type InvestorRecord struct {
	ID           string
	Name         string
	Strategy     Strategy
	Capital      Decimal
	CreatedAt    time.Time
	Holdings     []HoldingRecord
	Transactions []Transaction
}

// NewMarketRecord captures the membership of m.
func NewMarketRecord(m *Market) MarketRecord {
	return MarketRecord{Name: m.Name, Symbols: m.Symbols()}
}

// NewInvestorRecord captures the ledger state of inv.
func NewInvestorRecord(inv *Investor) InvestorRecord {
	holdings := inv.Holdings()
	records := make([]HoldingRecord, len(holdings))
	for i, h := range holdings {
		records[i] = HoldingRecord{Symbol: h.Instrument.Symbol, Quantity: h.Quantity}
	}
	return InvestorRecord{
		ID:           inv.ID,
		Name:         inv.Name,
		Strategy:     inv.Strategy,
		Capital:      inv.Capital,
		CreatedAt:    inv.CreatedAt,
		Holdings:     records,
		Transactions: inv.Transactions(),
	}
}
