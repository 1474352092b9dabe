package domain

import (
	"fmt"
	"time"
)

type TradeKind string

const (
	TradeBuy  TradeKind = "buy"
	TradeSell TradeKind = "sell"
)

// ParseTradeKind accepts "buy"/"sell" and their "acquire"/"release" aliases.
func ParseTradeKind(s string) (TradeKind, error) {
	switch s {
	case "buy", "acquire":
		return TradeBuy, nil
	case "sell", "release":
		return TradeSell, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTradeKind, s)
	}
}

// Transaction is the immutable record of one executed trade. UnitPrice is the
// instrument's price at execution and does not follow later price changes.
type Transaction struct {
	ID             string    `json:"id"`
	InvestorID     string    `json:"investor_id"`
	InvestorName   string    `json:"investor"`
	Symbol         string    `json:"symbol"`
	InstrumentName string    `json:"instrument"`
	Kind           TradeKind `json:"kind"`
	Quantity       int64     `json:"quantity"`
	UnitPrice      Decimal   `json:"unit_price"`
	Timestamp      time.Time `json:"timestamp"`
}

// Total is UnitPrice times Quantity.
func (t Transaction) Total() (Decimal, error) {
	return t.UnitPrice.MulInt(t.Quantity)
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s %s %d %s @ %s on %s",
		t.InvestorName, t.Kind, t.Quantity, t.Symbol, t.UnitPrice, t.Timestamp.Format(time.DateTime))
}
