package domain

import (
	"fmt"
	"strings"
)

// Holding is a quantity of one instrument owned by an investor.
type Holding struct {
	Instrument *Instrument
	Quantity   int64
}

// MarketValue is the holding valued at the instrument's current price.
func (h Holding) MarketValue() (Decimal, error) {
	return h.Instrument.Price().MulInt(h.Quantity)
}

type HoldingLine struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// HoldingsSummary is the formatted portfolio view of an investor.
type HoldingsSummary struct {
	Investor string        `json:"investor"`
	Capital  Decimal       `json:"capital"`
	Holdings []HoldingLine `json:"holdings"`
}

func (s HoldingsSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Portfolio of %s\n", s.Investor)
	if len(s.Holdings) == 0 {
		b.WriteString("  (no holdings)\n")
	}
	for _, l := range s.Holdings {
		fmt.Fprintf(&b, "  %s (%s): %d\n", l.Symbol, l.Name, l.Quantity)
	}
	fmt.Fprintf(&b, "Capital: %s", s.Capital)
	return b.String()
}
