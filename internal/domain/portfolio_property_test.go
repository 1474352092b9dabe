package domain

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// Capital and holdings stay non-negative under any sequence of trades, and a failed
// trade changes nothing.
func TestProperty_LedgerInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capital := rapid.Int64Range(0, 10_000).Draw(t, "capital")
		inv, err := NewInvestor("p", NewDecimalFromInt(capital), StrategyAggressive)
		if err != nil {
			t.Fatalf("NewInvestor: %v", err)
		}

		n := rapid.IntRange(1, 4).Draw(t, "instruments")
		insts := make([]*Instrument, n)
		for i := range insts {
			price := rapid.Int64Range(1, 500).Draw(t, fmt.Sprintf("price%d", i))
			insts[i], err = NewInstrument(fmt.Sprintf("S%d", i), "", NewDecimalFromInt(price), nil)
			if err != nil {
				t.Fatalf("NewInstrument: %v", err)
			}
		}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for s := 0; s < steps; s++ {
			inst := insts[rapid.IntRange(0, n-1).Draw(t, "which")]
			qty := rapid.Int64Range(1, 30).Draw(t, "qty")
			buy := rapid.Bool().Draw(t, "buy")

			before := inv.Capital
			held, _ := inv.Holding(inst.Symbol)
			txCount := len(inv.Transactions())

			if buy {
				_, err = inv.Buy(inst, qty)
			} else {
				_, err = inv.Sell(inst, qty)
			}

			if err != nil {
				after, _ := inv.Holding(inst.Symbol)
				if !inv.Capital.Equal(before) || after.Quantity != held.Quantity || len(inv.Transactions()) != txCount {
					t.Fatalf("failed trade mutated the ledger: %v", err)
				}
			}
			if inv.Capital.IsNegative() {
				t.Fatalf("capital went negative: %s", inv.Capital)
			}
			for _, h := range inv.Holdings() {
				if h.Quantity <= 0 {
					t.Fatalf("non-positive holding %s: %d", h.Instrument.Symbol, h.Quantity)
				}
			}
		}
	})
}

// Buying q then selling q at an unchanged price restores capital and clears the holding.
func TestProperty_RoundTripAccounting(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		price := rapid.Int64Range(1, 1_000).Draw(t, "price")
		qty := rapid.Int64Range(1, 100).Draw(t, "qty")
		capital := price*qty + rapid.Int64Range(0, 1_000).Draw(t, "slack")

		inv, _ := NewInvestor("p", NewDecimalFromInt(capital), StrategyConservative)
		inst, _ := NewInstrument("X", "", NewDecimalFromInt(price), nil)

		if _, err := inv.Buy(inst, qty); err != nil {
			t.Fatalf("Buy: %v", err)
		}
		if _, err := inv.Sell(inst, qty); err != nil {
			t.Fatalf("Sell: %v", err)
		}
		if !inv.Capital.Equal(NewDecimalFromInt(capital)) {
			t.Fatalf("capital %s, want %d", inv.Capital, capital)
		}
		if inv.Contains("X") {
			t.Fatal("holding survived a full sell")
		}
	})
}

// Every recommended symbol is affordable and new opportunities are never already held.
func TestProperty_RecommendationAffordability(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		strategy := rapid.SampledFrom([]Strategy{StrategyAggressive, StrategyConservative}).Draw(t, "strategy")
		capital := rapid.Int64Range(1, 2_000).Draw(t, "capital")
		inv, _ := NewInvestor("p", NewDecimalFromInt(capital), strategy)

		n := rapid.IntRange(1, 15).Draw(t, "instruments")
		insts := make([]*Instrument, n)
		for i := range insts {
			price := rapid.Int64Range(0, 1_000).Draw(t, fmt.Sprintf("price%d", i))
			insts[i], _ = NewInstrument(fmt.Sprintf("S%d", i), "", NewDecimalFromInt(price), nil)
			if rapid.Bool().Draw(t, fmt.Sprintf("hold%d", i)) && price > 0 && float64(price) <= inv.Capital.Float64()/2 {
				_, _ = inv.Buy(insts[i], 1)
			}
		}

		rec, err := Recommend(inv, insts)
		if err != nil {
			return
		}
		if len(rec.General) > RecommendationLimit || len(rec.NewOpportunities) > RecommendationLimit {
			t.Fatalf("sets exceed the limit: %d/%d", len(rec.General), len(rec.NewOpportunities))
		}
		for _, c := range append(rec.General, rec.NewOpportunities...) {
			if c.Price.Cmp(inv.Capital) > 0 {
				t.Fatalf("%s at %s exceeds capital %s", c.Symbol, c.Price, inv.Capital)
			}
		}
		for _, c := range rec.NewOpportunities {
			if inv.Contains(c.Symbol) {
				t.Fatalf("new opportunity %s is already held", c.Symbol)
			}
		}
	})
}
