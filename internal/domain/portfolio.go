package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Strategy selects how the recommendation heuristic ranks instruments for an investor.
type Strategy string

const (
	StrategyAggressive   Strategy = "aggressive"
	StrategyConservative Strategy = "conservative"
)

// ParseStrategy accepts the strategy names case-insensitively, including the legacy
// "agresivo" and "pasivo"/"passive" spellings.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aggressive", "agresivo":
		return StrategyAggressive, nil
	case "conservative", "passive", "pasivo":
		return StrategyConservative, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Investor is the portfolio ledger: capital, holdings and an append-only transaction history.
// Capital is never negative and every holding quantity is strictly positive.
type Investor struct {
	ID        string
	Name      string
	Strategy  Strategy
	Capital   Decimal
	CreatedAt time.Time

	// holdings is keyed by symbol. A holding is deleted when its quantity reaches zero.
	holdings map[string]*Holding
	// transactions only grows; records are never edited after append.
	transactions []Transaction
}

// NewInvestor opens a ledger with capital and no holdings.
func NewInvestor(name string, capital Decimal, strategy Strategy) (*Investor, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidInvestor)
	}
	if !capital.IsAmount() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCapital, capital)
	}
	capital = capital.Canonical()
	if strategy != StrategyAggressive && strategy != StrategyConservative {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	return &Investor{
		ID:        uuid.New().String(),
		Name:      name,
		Strategy:  strategy,
		Capital:   capital,
		CreatedAt: time.Now(),
		holdings:  make(map[string]*Holding),
	}, nil
}

// RestoreInvestor rebuilds a persisted investor. The stored state is validated against
// the same invariants a live investor keeps.
func RestoreInvestor(id, name string, strategy Strategy, capital Decimal, createdAt time.Time, holdings []Holding, transactions []Transaction) (*Investor, error) {
	inv, err := NewInvestor(name, capital, strategy)
	if err != nil {
		return nil, err
	}
	if id != "" {
		inv.ID = id
	}
	if !createdAt.IsZero() {
		inv.CreatedAt = createdAt
	}
	for _, h := range holdings {
		if h.Instrument == nil || h.Quantity <= 0 {
			return nil, fmt.Errorf("%w: holding of %s", ErrInvalidQuantity, name)
		}
		if _, ok := inv.holdings[h.Instrument.Symbol]; ok {
			return nil, fmt.Errorf("%w: %s held twice by %s", ErrInvalidInvestor, h.Instrument.Symbol, name)
		}
		inv.holdings[h.Instrument.Symbol] = &Holding{Instrument: h.Instrument, Quantity: h.Quantity}
	}
	inv.transactions = append(inv.transactions, transactions...)
	return inv, nil
}

// Buy purchases quantity units of inst at its current price.
func (inv *Investor) Buy(inst *Instrument, quantity int64) (Transaction, error) {
	if quantity <= 0 {
		return Transaction{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	price := inst.Price()
	cost, err := price.MulInt(quantity)
	if err != nil {
		return Transaction{}, err
	}
	if inv.Capital.Cmp(cost) < 0 {
		return Transaction{}, fmt.Errorf("%w: %s costs %s, capital is %s", ErrInsufficientFunds, inst.Symbol, cost, inv.Capital)
	}
	remaining, err := inv.Capital.Sub(cost)
	if err != nil {
		return Transaction{}, err
	}

	inv.Capital = remaining
	if h, ok := inv.holdings[inst.Symbol]; ok {
		h.Quantity += quantity
	} else {
		inv.holdings[inst.Symbol] = &Holding{Instrument: inst, Quantity: quantity}
	}
	return inv.record(TradeBuy, inst, quantity, price), nil
}

// Sell disposes of quantity held units of inst at its current price.
func (inv *Investor) Sell(inst *Instrument, quantity int64) (Transaction, error) {
	if quantity <= 0 {
		return Transaction{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	h, ok := inv.holdings[inst.Symbol]
	if !ok {
		return Transaction{}, fmt.Errorf("%w: %s by %s", ErrNotOwned, inst.Symbol, inv.Name)
	}
	if h.Quantity < quantity {
		return Transaction{}, fmt.Errorf("%w: %s holds %d of %s, requested %d", ErrInsufficientHoldings, inv.Name, h.Quantity, inst.Symbol, quantity)
	}
	price := inst.Price()
	proceeds, err := price.MulInt(quantity)
	if err != nil {
		return Transaction{}, err
	}
	capital, err := inv.Capital.Add(proceeds)
	if err != nil {
		return Transaction{}, err
	}

	inv.Capital = capital
	h.Quantity -= quantity
	if h.Quantity == 0 {
		delete(inv.holdings, inst.Symbol)
	}
	return inv.record(TradeSell, inst, quantity, price), nil
}

// Trade dispatches to Buy or Sell by kind.
func (inv *Investor) Trade(kind TradeKind, inst *Instrument, quantity int64) (Transaction, error) {
	switch kind {
	case TradeBuy:
		return inv.Buy(inst, quantity)
	case TradeSell:
		return inv.Sell(inst, quantity)
	default:
		return Transaction{}, fmt.Errorf("%w: %q", ErrUnknownTradeKind, kind)
	}
}

// record appends a transaction at price and returns it.
func (inv *Investor) record(kind TradeKind, inst *Instrument, quantity int64, price Decimal) Transaction {
	tx := Transaction{
		ID:             uuid.New().String(),
		InvestorID:     inv.ID,
		InvestorName:   inv.Name,
		Symbol:         inst.Symbol,
		InstrumentName: inst.Name,
		Kind:           kind,
		Quantity:       quantity,
		UnitPrice:      price,
		Timestamp:      time.Now(),
	}
	inv.transactions = append(inv.transactions, tx)
	return tx
}

// Holding returns the holding for symbol, if any.
func (inv *Investor) Holding(symbol string) (Holding, bool) {
	h, ok := inv.holdings[symbol]
	if !ok {
		return Holding{}, false
	}
	return *h, true
}

// Holdings returns the holdings sorted by symbol.
func (inv *Investor) Holdings() []Holding {
	out := make([]Holding, 0, len(inv.holdings))
	for _, h := range inv.holdings {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Instrument.Symbol < out[j].Instrument.Symbol
	})
	return out
}

func (inv *Investor) Contains(symbol string) bool {
	_, ok := inv.holdings[symbol]
	return ok
}

// Equal reports whether both investors hold exactly the same set of symbols.
// Quantities and capital are ignored.
func (inv *Investor) Equal(other *Investor) bool {
	if len(inv.holdings) != len(other.holdings) {
		return false
	}
	for symbol := range inv.holdings {
		if !other.Contains(symbol) {
			return false
		}
	}
	return true
}

// Transactions returns a copy of the transaction history, oldest first.
func (inv *Investor) Transactions() []Transaction {
	return append([]Transaction(nil), inv.transactions...)
}

// TotalInvested sums unit price times quantity over every transaction, buys and sells alike.
// It returns ErrNoTransactions for an investor that never traded.
func (inv *Investor) TotalInvested() (Decimal, error) {
	if len(inv.transactions) == 0 {
		return Zero, fmt.Errorf("%w: %s", ErrNoTransactions, inv.Name)
	}
	total := Zero
	for _, tx := range inv.transactions {
		amount, err := tx.Total()
		if err != nil {
			return Zero, err
		}
		if total, err = total.Add(amount); err != nil {
			return Zero, err
		}
	}
	return total, nil
}

// Summary returns a read-only view of holdings and remaining capital.
func (inv *Investor) Summary() HoldingsSummary {
	holdings := inv.Holdings()
	lines := make([]HoldingLine, len(holdings))
	for i, h := range holdings {
		lines[i] = HoldingLine{Symbol: h.Instrument.Symbol, Name: h.Instrument.Name, Quantity: h.Quantity}
	}
	return HoldingsSummary{Investor: inv.Name, Capital: inv.Capital, Holdings: lines}
}

// InvestorRegistry holds the investors of one simulation keyed by name.
type InvestorRegistry struct {
	byName map[string]*Investor
	order  []*Investor
}

func NewInvestorRegistry() *InvestorRegistry {
	return &InvestorRegistry{byName: make(map[string]*Investor)}
}

func (r *InvestorRegistry) Create(name string, capital Decimal, strategy Strategy) (*Investor, error) {
	if r.Contains(name) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateInvestor, name)
	}
	inv, err := NewInvestor(name, capital, strategy)
	if err != nil {
		return nil, err
	}
	r.add(inv)
	return inv, nil
}

func (r *InvestorRegistry) Add(inv *Investor) error {
	if r.Contains(inv.Name) {
		return fmt.Errorf("%w: %s", ErrDuplicateInvestor, inv.Name)
	}
	r.add(inv)
	return nil
}

func (r *InvestorRegistry) Contains(name string) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *InvestorRegistry) Lookup(name string) (*Investor, error) {
	inv, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInvestor, name)
	}
	return inv, nil
}

func (r *InvestorRegistry) All() []*Investor {
	return append([]*Investor(nil), r.order...)
}

func (r *InvestorRegistry) add(inv *Investor) {
	r.byName[inv.Name] = inv
	r.order = append(r.order, inv)
}
