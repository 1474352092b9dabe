package domain

import "fmt"

// InstrumentRegistry is the table of every live instrument of one simulation, keyed by symbol.
// Iteration follows registration order.
type InstrumentRegistry struct {
	bySymbol map[string]*Instrument
	order    []*Instrument
}

func NewInstrumentRegistry() *InstrumentRegistry {
	return &InstrumentRegistry{
		bySymbol: make(map[string]*Instrument),
	}
}

// Create builds a simulated instrument and registers it.
func (r *InstrumentRegistry) Create(symbol, name string, price Decimal, seed []PricePoint) (*Instrument, error) {
	if r.Contains(symbol) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSymbol, symbol)
	}
	inst, err := NewInstrument(symbol, name, price, seed)
	if err != nil {
		return nil, err
	}
	r.add(inst)
	return inst, nil
}

// Register adds an already built instrument, e.g. a real-backed one or one restored from storage.
func (r *InstrumentRegistry) Register(inst *Instrument) error {
	if !inst.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidInstrument, inst.Symbol)
	}
	if r.Contains(inst.Symbol) {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, inst.Symbol)
	}
	r.add(inst)
	return nil
}

func (r *InstrumentRegistry) Contains(symbol string) bool {
	_, ok := r.bySymbol[symbol]
	return ok
}

func (r *InstrumentRegistry) Lookup(symbol string) (*Instrument, error) {
	inst, ok := r.bySymbol[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return inst, nil
}

// All returns the instruments in registration order.
func (r *InstrumentRegistry) All() []*Instrument {
	return append([]*Instrument(nil), r.order...)
}

func (r *InstrumentRegistry) Len() int {
	return len(r.order)
}

func (r *InstrumentRegistry) add(inst *Instrument) {
	r.bySymbol[inst.Symbol] = inst
	r.order = append(r.order, inst)
}
