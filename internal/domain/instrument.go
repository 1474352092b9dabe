package domain

import (
	"context"
	"fmt"
	"time"
)

type InstrumentSource string

const (
	InstrumentSourceSimulated InstrumentSource = "simulated"
	InstrumentSourceReal      InstrumentSource = "real"
)

// Trailing windows requested from a PriceFeed.
const (
	CreationWindowDays = 365
	RefreshWindowDays  = 1
)

// PricePoint is one entry of an instrument's price history: the price that was
// in effect from Date on. Dates are normalized to UTC midnight.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price Decimal   `json:"price"`
}

// PriceFeed supplies chronological daily closing prices for a symbol over a trailing window.
type PriceFeed interface {
	History(ctx context.Context, symbol string, days int) ([]PricePoint, error)
}

// Instrument is a tradable symbol with its current price and price history.
// CurrentPrice always equals the price of the last History entry.
type Instrument struct {
	Symbol       string           `json:"symbol"`
	Name         string           `json:"name"`
	CurrentPrice Decimal          `json:"current_price"`
	History      []PricePoint     `json:"price_history"`
	Source       InstrumentSource `json:"source"`
}

// NewInstrument creates a simulated instrument priced at price today. The optional seed
// history must be strictly chronological and must not extend past today.
func NewInstrument(symbol, name string, price Decimal, seed []PricePoint) (*Instrument, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrInvalidInstrument)
	}
	if !price.IsAmount() {
		return nil, fmt.Errorf("%w: %s is not a non-negative number", ErrInvalidPrice, price)
	}
	price = price.Canonical()

	history, err := normalizeHistory(seed)
	if err != nil {
		return nil, err
	}
	today := day(time.Now())
	if len(history) > 0 && history[len(history)-1].Date.After(today) {
		return nil, fmt.Errorf("%w: seed history extends past today", ErrInvalidPriceHistory)
	}

	if name == "" {
		name = symbol
	}
	inst := &Instrument{
		Symbol:  symbol,
		Name:    name,
		History: history,
		Source:  InstrumentSourceSimulated,
	}
	inst.record(today, price)
	return inst, nil
}

// NewRealInstrument builds an instrument from the last year of market data.
func NewRealInstrument(ctx context.Context, feed PriceFeed, symbol, name string) (*Instrument, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrInvalidInstrument)
	}
	points, err := feed.History(ctx, symbol, CreationWindowDays)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch history for %s: %w", ErrFeedUnavailable, symbol, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s over the last %d days", ErrNoMarketData, symbol, CreationWindowDays)
	}

	history, err := normalizeHistory(points)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = symbol
	}
	return &Instrument{
		Symbol:       symbol,
		Name:         name,
		CurrentPrice: history[len(history)-1].Price,
		History:      history,
		Source:       InstrumentSourceReal,
	}, nil
}

// IsValid reports whether the instrument has a symbol and at least one recorded price.
func (i *Instrument) IsValid() bool {
	return i.Symbol != "" && len(i.History) > 0
}

// Price returns the current price. It always equals the price of the newest
// history entry and is never negative.
func (i *Instrument) Price() Decimal {
	return i.CurrentPrice
}

// UpdatePrice records newPrice as today's price.
func (i *Instrument) UpdatePrice(newPrice Decimal) error {
	return i.UpdatePriceAt(time.Now(), newPrice)
}

// UpdatePriceAt records newPrice for the day of at. Negative prices and prices equal
// to the current one are rejected, as is a date before the last recorded day.
func (i *Instrument) UpdatePriceAt(at time.Time, newPrice Decimal) error {
	if !newPrice.IsAmount() {
		return fmt.Errorf("%w: %s is not a non-negative number", ErrInvalidPrice, newPrice)
	}
	newPrice = newPrice.Canonical()
	if newPrice.Equal(i.CurrentPrice) {
		return fmt.Errorf("%w: %s already priced at %s", ErrInvalidPrice, i.Symbol, newPrice)
	}
	d := day(at)
	if n := len(i.History); n > 0 && d.Before(i.History[n-1].Date) {
		return fmt.Errorf("%w: %s is before %s", ErrInvalidPriceHistory, d.Format(time.DateOnly), i.History[n-1].Date.Format(time.DateOnly))
	}
	i.record(d, newPrice)
	return nil
}

// Refresh pulls the latest close from feed. Only real-backed instruments can be refreshed.
func (i *Instrument) Refresh(ctx context.Context, feed PriceFeed) error {
	if i.Source != InstrumentSourceReal {
		return fmt.Errorf("%w: %s", ErrNotRealBacked, i.Symbol)
	}
	points, err := feed.History(ctx, i.Symbol, RefreshWindowDays)
	if err != nil {
		return fmt.Errorf("failed to fetch latest price for %s: %w", i.Symbol, err)
	}
	return i.ApplyRefresh(points)
}

// ApplyRefresh applies the latest point of an already fetched refresh window.
// A latest close equal to the current price leaves the instrument unchanged.
func (i *Instrument) ApplyRefresh(points []PricePoint) error {
	if i.Source != InstrumentSourceReal {
		return fmt.Errorf("%w: %s", ErrNotRealBacked, i.Symbol)
	}
	if len(points) == 0 {
		return fmt.Errorf("%w: %s over the last %d days", ErrNoMarketData, i.Symbol, RefreshWindowDays)
	}
	latest := points[len(points)-1]
	if latest.Price.Equal(i.CurrentPrice) {
		return nil
	}
	at := day(latest.Date)
	if n := len(i.History); n > 0 && at.Before(i.History[n-1].Date) {
		at = i.History[n-1].Date
	}
	return i.UpdatePriceAt(at, latest.Price)
}

// Compare orders instruments by current price.
func (i *Instrument) Compare(other *Instrument) int {
	return i.CurrentPrice.Cmp(other.CurrentPrice)
}

func (i *Instrument) Less(other *Instrument) bool {
	return i.Compare(other) < 0
}

func (i *Instrument) Greater(other *Instrument) bool {
	return i.Compare(other) > 0
}

// Clone returns a deep copy that shares no history with i.
func (i *Instrument) Clone() *Instrument {
	c := *i
	c.History = append([]PricePoint(nil), i.History...)
	return &c
}

// record sets the price for d, overwriting the last entry when it is the same day.
func (i *Instrument) record(d time.Time, price Decimal) {
	if n := len(i.History); n > 0 && i.History[n-1].Date.Equal(d) {
		i.History[n-1].Price = price
	} else {
		i.History = append(i.History, PricePoint{Date: d, Price: price})
	}
	i.CurrentPrice = price
}

func normalizeHistory(points []PricePoint) ([]PricePoint, error) {
	history := make([]PricePoint, 0, len(points))
	for _, p := range points {
		if !p.Price.IsAmount() {
			return nil, fmt.Errorf("%w: invalid price %s", ErrInvalidPriceHistory, p.Price)
		}
		d := day(p.Date)
		if n := len(history); n > 0 && !d.After(history[n-1].Date) {
			return nil, fmt.Errorf("%w: %s is not after %s", ErrInvalidPriceHistory, d.Format(time.DateOnly), history[n-1].Date.Format(time.DateOnly))
		}
		history = append(history, PricePoint{Date: d, Price: p.Price.Canonical()})
	}
	return history, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
