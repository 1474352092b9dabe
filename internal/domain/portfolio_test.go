package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInvestor(t *testing.T, capital string, strategy Strategy) *Investor {
	t.Helper()
	inv, err := NewInvestor("alice", mustDecimalFromString(capital), strategy)
	require.NoError(t, err)
	return inv
}

func newTestInstrument(t *testing.T, symbol, price string) *Instrument {
	t.Helper()
	inst, err := NewInstrument(symbol, symbol+" Inc.", mustDecimalFromString(price), nil)
	require.NoError(t, err)
	return inst
}

func TestParseStrategy(t *testing.T) {
	testCases := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"aggressive", StrategyAggressive, false},
		{"Agresivo", StrategyAggressive, false},
		{"conservative", StrategyConservative, false},
		{"PASIVO", StrategyConservative, false},
		{" passive ", StrategyConservative, false},
		{"yolo", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseStrategy(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewInvestor_Invalid(t *testing.T) {
	_, err := NewInvestor("", NewDecimalFromInt(1), StrategyAggressive)
	assert.ErrorIs(t, err, ErrInvalidInvestor)

	_, err = NewInvestor("bob", NewDecimalFromInt(-1), StrategyAggressive)
	assert.ErrorIs(t, err, ErrInvalidCapital)

	_, err = NewInvestor("bob", NewDecimalFromInt(1), Strategy("greedy"))
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestNewInvestor_NonFiniteCapital(t *testing.T) {
	for _, v := range []string{"NaN", "Infinity", "-Infinity"} {
		t.Run(v, func(t *testing.T) {
			_, err := NewInvestor("bob", rawDecimal(t, v), StrategyAggressive)
			assert.ErrorIs(t, err, ErrInvalidCapital)
		})
	}

	inv, err := NewInvestor("bob", rawDecimal(t, "-0"), StrategyAggressive)
	require.NoError(t, err)
	assert.False(t, inv.Capital.Negative)
}

func TestInvestor_Buy_CannotReachNaNPrice(t *testing.T) {
	inv := newTestInvestor(t, "1000", StrategyAggressive)
	inst := newTestInstrument(t, "X", "10")

	require.ErrorIs(t, inst.UpdatePrice(rawDecimal(t, "NaN")), ErrInvalidPrice)

	_, err := inv.Buy(inst, 1)
	require.NoError(t, err)
	assert.True(t, inv.Capital.IsFinite())
	assert.Equal(t, "990", inv.Capital.String())
}

func TestInvestor_BuyThenSell(t *testing.T) {
	inv := newTestInvestor(t, "1000.0", StrategyAggressive)
	aapl := newTestInstrument(t, "AAPL", "180.0")

	tx, err := inv.Buy(aapl, 3)
	require.NoError(t, err)

	assert.True(t, inv.Capital.Equal(mustDecimalFromString("460")))
	h, ok := inv.Holding("AAPL")
	require.True(t, ok)
	assert.Equal(t, int64(3), h.Quantity)
	assert.Equal(t, TradeBuy, tx.Kind)
	assert.True(t, tx.UnitPrice.Equal(mustDecimalFromString("180")))
	assert.Equal(t, inv.ID, tx.InvestorID)

	require.NoError(t, aapl.UpdatePrice(mustDecimalFromString("200")))
	tx, err = inv.Sell(aapl, 1)
	require.NoError(t, err)

	assert.True(t, inv.Capital.Equal(mustDecimalFromString("660")))
	h, _ = inv.Holding("AAPL")
	assert.Equal(t, int64(2), h.Quantity)
	assert.Equal(t, TradeSell, tx.Kind)
	require.Len(t, inv.Transactions(), 2)
	assert.True(t, inv.Transactions()[0].UnitPrice.Equal(mustDecimalFromString("180")), "unit price is a snapshot")
}

func TestInvestor_Buy_Rejected(t *testing.T) {
	inv := newTestInvestor(t, "100", StrategyConservative)
	inst := newTestInstrument(t, "X", "40")

	testCases := []struct {
		name     string
		quantity int64
		wantErr  error
	}{
		{"zero quantity", 0, ErrInvalidQuantity},
		{"negative quantity", -2, ErrInvalidQuantity},
		{"over budget", 3, ErrInsufficientFunds},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := inv.Buy(inst, tc.quantity)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.True(t, inv.Capital.Equal(NewDecimalFromInt(100)))
			assert.False(t, inv.Contains("X"))
			assert.Empty(t, inv.Transactions())
		})
	}

	_, err := inv.Buy(inst, 2)
	require.NoError(t, err, "exactly affordable is allowed")
	_, err = inv.Buy(inst, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestInvestor_Sell_Rejected(t *testing.T) {
	inv := newTestInvestor(t, "100", StrategyAggressive)
	inst := newTestInstrument(t, "X", "10")
	other := newTestInstrument(t, "Y", "10")
	_, err := inv.Buy(inst, 2)
	require.NoError(t, err)

	_, err = inv.Sell(other, 1)
	assert.ErrorIs(t, err, ErrNotOwned)

	_, err = inv.Sell(inst, 3)
	assert.ErrorIs(t, err, ErrInsufficientHoldings)

	_, err = inv.Sell(inst, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	h, _ := inv.Holding("X")
	assert.Equal(t, int64(2), h.Quantity)
	assert.True(t, inv.Capital.Equal(NewDecimalFromInt(80)))
}

func TestInvestor_SellAllRemovesHolding(t *testing.T) {
	inv := newTestInvestor(t, "100", StrategyAggressive)
	inst := newTestInstrument(t, "X", "10")

	_, err := inv.Buy(inst, 4)
	require.NoError(t, err)
	_, err = inv.Buy(inst, 1)
	require.NoError(t, err)
	h, _ := inv.Holding("X")
	assert.Equal(t, int64(5), h.Quantity, "repeat purchases accumulate")

	_, err = inv.Sell(inst, 5)
	require.NoError(t, err)
	assert.False(t, inv.Contains("X"))
	assert.Empty(t, inv.Holdings())
	assert.True(t, inv.Capital.Equal(NewDecimalFromInt(100)))
}

func TestInvestor_Trade(t *testing.T) {
	inv := newTestInvestor(t, "100", StrategyAggressive)
	inst := newTestInstrument(t, "X", "10")

	_, err := inv.Trade(TradeBuy, inst, 2)
	require.NoError(t, err)
	_, err = inv.Trade(TradeSell, inst, 3)
	assert.ErrorIs(t, err, ErrInsufficientHoldings)
	_, err = inv.Trade(TradeKind("short"), inst, 1)
	assert.ErrorIs(t, err, ErrUnknownTradeKind)

	kind, err := ParseTradeKind("release")
	require.NoError(t, err)
	_, err = inv.Trade(kind, inst, 2)
	require.NoError(t, err)
	assert.False(t, inv.Contains("X"))
}

func TestInvestor_Equal(t *testing.T) {
	a := newTestInstrument(t, "A", "1")
	b := newTestInstrument(t, "B", "1")

	alice := newTestInvestor(t, "100", StrategyAggressive)
	bob, err := NewInvestor("bob", NewDecimalFromInt(50), StrategyConservative)
	require.NoError(t, err)

	assert.True(t, alice.Equal(bob), "no holdings on either side")

	_, _ = alice.Buy(a, 1)
	_, _ = alice.Buy(b, 10)
	_, _ = bob.Buy(b, 1)
	assert.False(t, alice.Equal(bob))

	_, _ = bob.Buy(a, 5)
	assert.True(t, alice.Equal(bob), "quantities are ignored")
}

func TestInvestor_TotalInvested(t *testing.T) {
	inv := newTestInvestor(t, "1000", StrategyAggressive)
	inst := newTestInstrument(t, "X", "10")

	_, err := inv.TotalInvested()
	assert.ErrorIs(t, err, ErrNoTransactions)

	_, err = inv.Buy(inst, 3)
	require.NoError(t, err)
	_, err = inv.Sell(inst, 3)
	require.NoError(t, err)

	total, err := inv.TotalInvested()
	require.NoError(t, err)
	assert.True(t, total.Equal(NewDecimalFromInt(60)), "buys and sells both count, got %s", total)
}

func TestInvestor_Summary(t *testing.T) {
	inv := newTestInvestor(t, "1000", StrategyAggressive)
	_, err := inv.Buy(newTestInstrument(t, "MSFT", "10"), 2)
	require.NoError(t, err)
	_, err = inv.Buy(newTestInstrument(t, "AAPL", "10"), 1)
	require.NoError(t, err)

	s := inv.Summary()
	require.Len(t, s.Holdings, 2)
	assert.Equal(t, "AAPL", s.Holdings[0].Symbol)
	assert.Equal(t, "AAPL Inc.", s.Holdings[0].Name)
	assert.True(t, s.Capital.Equal(NewDecimalFromInt(970)))

	text := s.String()
	assert.True(t, strings.Contains(text, "MSFT (MSFT Inc.): 2"), text)
	assert.True(t, strings.HasSuffix(text, "Capital: 970"), text)
}

func TestRestoreInvestor(t *testing.T) {
	inst := newTestInstrument(t, "X", "10")
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	txs := []Transaction{{ID: "t1", Symbol: "X", Kind: TradeBuy, Quantity: 2, UnitPrice: NewDecimalFromInt(10)}}

	inv, err := RestoreInvestor("id-1", "alice", StrategyAggressive, NewDecimalFromInt(80), created,
		[]Holding{{Instrument: inst, Quantity: 2}}, txs)
	require.NoError(t, err)

	assert.Equal(t, "id-1", inv.ID)
	assert.Equal(t, created, inv.CreatedAt)
	assert.True(t, inv.Contains("X"))
	assert.Len(t, inv.Transactions(), 1)

	_, err = RestoreInvestor("id-2", "bob", StrategyAggressive, NewDecimalFromInt(1), created,
		[]Holding{{Instrument: inst, Quantity: 0}}, nil)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestInvestorRegistry(t *testing.T) {
	reg := NewInvestorRegistry()
	_, err := reg.Create("alice", NewDecimalFromInt(10), StrategyAggressive)
	require.NoError(t, err)

	_, err = reg.Create("alice", NewDecimalFromInt(10), StrategyConservative)
	assert.ErrorIs(t, err, ErrDuplicateInvestor)

	_, err = reg.Lookup("bob")
	assert.ErrorIs(t, err, ErrUnknownInvestor)

	assert.Len(t, reg.All(), 1)
}
