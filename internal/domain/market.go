package domain

import (
	"fmt"
	"time"
)

// RandSource is the random source of the price walk. *rand.Rand from math/rand/v2 satisfies it.
type RandSource interface {
	Float64() float64
}

// PriceChange describes one instrument moved by a simulation step.
type PriceChange struct {
	Symbol   string  `json:"symbol"`
	Previous Decimal `json:"previous"`
	Current  Decimal `json:"current"`
}

// Market is a named collection of instruments without duplicate symbols.
// Membership order is kept for ItemAt and for the order of random draws.
type Market struct {
	Name string

	// instruments is shared with the InstrumentRegistry, so price changes made
	// through a market are visible everywhere the instrument is referenced.
	instruments []*Instrument
}

// NewMarket creates a market from an initial instrument set.
func NewMarket(name string, instruments []*Instrument) (*Market, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty market name", ErrInvalidInstrument)
	}
	m := &Market{Name: name, instruments: make([]*Instrument, 0, len(instruments))}
	for _, inst := range instruments {
		if m.Contains(inst.Symbol) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInstrument, inst.Symbol)
		}
		m.instruments = append(m.instruments, inst)
	}
	return m, nil
}

// Register adds inst as a member.
func (m *Market) Register(inst *Instrument) error {
	if m.Contains(inst.Symbol) {
		return fmt.Errorf("%w: %s in %s", ErrAlreadyRegistered, inst.Symbol, m.Name)
	}
	m.instruments = append(m.instruments, inst)
	return nil
}

// Lookup returns the member with symbol, or ErrNotFound.
func (m *Market) Lookup(symbol string) (*Instrument, error) {
	idx := m.indexOf(symbol)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, symbol, m.Name)
	}
	return m.instruments[idx], nil
}

// PriceOf returns the current price of the member with symbol.
func (m *Market) PriceOf(symbol string) (Decimal, error) {
	inst, err := m.Lookup(symbol)
	if err != nil {
		return Zero, err
	}
	return inst.Price(), nil
}

// Remove drops the member with symbol, keeping the order of the rest.
func (m *Market) Remove(symbol string) error {
	idx := m.indexOf(symbol)
	if idx < 0 {
		return fmt.Errorf("%w: %s in %s", ErrNotFound, symbol, m.Name)
	}
	m.instruments = append(m.instruments[:idx], m.instruments[idx+1:]...)
	return nil
}

// DeclareBankrupt removes the instrument from the market and pins its price to zero.
func (m *Market) DeclareBankrupt(symbol string) error {
	inst, err := m.Lookup(symbol)
	if err != nil {
		return err
	}
	if inst.Price().IsZero() {
		return fmt.Errorf("%w: %s", ErrAlreadyBankrupt, symbol)
	}
	if err := m.Remove(symbol); err != nil {
		return err
	}
	return inst.UpdatePrice(Zero)
}

// SimulateStep moves every member by a relative change drawn uniformly from
// [-volatility, volatility), rounded to 3 decimal places. One draw is made per member
// in membership order, so a seeded source reproduces the walk. Members whose rounded
// price does not move are left untouched.
func (m *Market) SimulateStep(rng RandSource, volatility float64) ([]PriceChange, error) {
	if volatility <= 0 || volatility >= 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVolatility, volatility)
	}

	type pending struct {
		inst  *Instrument
		price Decimal
	}
	updates := make([]pending, 0, len(m.instruments))
	for _, inst := range m.instruments {
		delta := (rng.Float64()*2 - 1) * volatility
		next, err := walk(inst.Price(), delta)
		if err != nil {
			return nil, fmt.Errorf("failed to move %s: %w", inst.Symbol, err)
		}
		if next.Equal(inst.Price()) {
			continue
		}
		updates = append(updates, pending{inst: inst, price: next})
	}

	now := time.Now()
	changes := make([]PriceChange, 0, len(updates))
	for _, u := range updates {
		previous := u.inst.Price()
		if err := u.inst.UpdatePriceAt(now, u.price); err != nil {
			return changes, err
		}
		changes = append(changes, PriceChange{Symbol: u.inst.Symbol, Previous: previous, Current: u.price})
	}
	return changes, nil
}

func walk(price Decimal, delta float64) (Decimal, error) {
	factor, err := NewDecimalFromFloat(1 + delta)
	if err != nil {
		return Zero, err
	}
	next, err := price.Mul(factor)
	if err != nil {
		return Zero, err
	}
	return next.Round(3)
}

func (m *Market) Contains(symbol string) bool {
	return m.indexOf(symbol) >= 0
}

func (m *Market) Size() int {
	return len(m.instruments)
}

// ItemAt returns the member at a zero-based position in membership order.
func (m *Market) ItemAt(index int) (*Instrument, error) {
	if index < 0 || index >= len(m.instruments) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(m.instruments))
	}
	return m.instruments[index], nil
}

// Instruments returns the members in membership order.
func (m *Market) Instruments() []*Instrument {
	return append([]*Instrument(nil), m.instruments...)
}

// Symbols returns a fresh slice of member symbols in membership order.
func (m *Market) Symbols() []string {
	symbols := make([]string, len(m.instruments))
	for i, inst := range m.instruments {
		symbols[i] = inst.Symbol
	}
	return symbols
}

// Equal reports set equality of members; order does not matter.
func (m *Market) Equal(other *Market) bool {
	if m.Size() != other.Size() {
		return false
	}
	for _, inst := range m.instruments {
		if !other.Contains(inst.Symbol) {
			return false
		}
	}
	return true
}

// Union returns a new market named after both markets holding the members of each.
// Name uniqueness is enforced by the MarketRegistry.
func (m *Market) Union(other *Market) *Market {
	u := &Market{
		Name:        m.Name + other.Name,
		instruments: append([]*Instrument(nil), m.instruments...),
	}
	u.Merge(other)
	return u
}

// Merge adds the members of other that are not already present. Repeating it is a no-op.
func (m *Market) Merge(other *Market) {
	for _, inst := range other.instruments {
		if !m.Contains(inst.Symbol) {
			m.instruments = append(m.instruments, inst)
		}
	}
}

// indexOf returns the position of symbol, or -1.
func (m *Market) indexOf(symbol string) int {
	for i, inst := range m.instruments {
		if inst.Symbol == symbol {
			return i
		}
	}
	return -1
}

// MarketRegistry holds every market of one simulation keyed by unique name.
type MarketRegistry struct {
	byName map[string]*Market
	order  []*Market
}

func NewMarketRegistry() *MarketRegistry {
	return &MarketRegistry{byName: make(map[string]*Market)}
}

// Create resolves symbols against instruments and registers a new market.
func (r *MarketRegistry) Create(name string, symbols []string, instruments *InstrumentRegistry) (*Market, error) {
	if r.Contains(name) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateMarketName, name)
	}
	members := make([]*Instrument, 0, len(symbols))
	for _, symbol := range symbols {
		inst, err := instruments.Lookup(symbol)
		if err != nil {
			return nil, err
		}
		members = append(members, inst)
	}
	m, err := NewMarket(name, members)
	if err != nil {
		return nil, err
	}
	r.add(m)
	return m, nil
}

// Add registers an existing market.
func (r *MarketRegistry) Add(m *Market) error {
	if r.Contains(m.Name) {
		return fmt.Errorf("%w: %s", ErrDuplicateMarketName, m.Name)
	}
	r.add(m)
	return nil
}

// Union combines two registered markets into a new registered one.
func (r *MarketRegistry) Union(left, right string) (*Market, error) {
	l, err := r.Lookup(left)
	if err != nil {
		return nil, err
	}
	rm, err := r.Lookup(right)
	if err != nil {
		return nil, err
	}
	u := l.Union(rm)
	if err := r.Add(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *MarketRegistry) Contains(name string) bool {
	_, ok := r.byName[name]
	return ok
}

func (r *MarketRegistry) Lookup(name string) (*Market, error) {
	m, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, name)
	}
	return m, nil
}

func (r *MarketRegistry) All() []*Market {
	return append([]*Market(nil), r.order...)
}

func (r *MarketRegistry) add(m *Market) {
	r.byName[m.Name] = m
	r.order = append(r.order, m)
}
