package domain

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRand replays a fixed sequence of draws.
type fixedRand struct {
	values []float64
	next   int
}

func (r *fixedRand) Float64() float64 {
	v := r.values[r.next%len(r.values)]
	r.next++
	return v
}

func newTestInstruments(t *testing.T, prices map[string]int64, order ...string) *InstrumentRegistry {
	t.Helper()
	reg := NewInstrumentRegistry()
	for _, symbol := range order {
		_, err := reg.Create(symbol, symbol+" Corp", NewDecimalFromInt(prices[symbol]), nil)
		require.NoError(t, err)
	}
	return reg
}

func TestMarketRegistry_Create(t *testing.T) {
	instruments := newTestInstruments(t, map[string]int64{"AAPL": 180, "MSFT": 400}, "AAPL", "MSFT")
	markets := NewMarketRegistry()

	m, err := markets.Create("NYSE", []string{"AAPL", "MSFT"}, instruments)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Size())

	testCases := []struct {
		name    string
		market  string
		symbols []string
		wantErr error
	}{
		{"duplicate name", "NYSE", []string{"AAPL"}, ErrDuplicateMarketName},
		{"unknown symbol", "LSE", []string{"AAPL", "GOOG"}, ErrUnknownSymbol},
		{"repeated symbol", "LSE", []string{"AAPL", "AAPL"}, ErrDuplicateInstrument},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := markets.Create(tc.market, tc.symbols, instruments)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.False(t, markets.Contains("LSE"), "failed creation must not register the market")
}

func TestMarket_RegisterAndRemove(t *testing.T) {
	instruments := newTestInstruments(t, map[string]int64{"AAPL": 180, "MSFT": 400}, "AAPL", "MSFT")
	aapl, _ := instruments.Lookup("AAPL")
	msft, _ := instruments.Lookup("MSFT")

	m, err := NewMarket("NYSE", []*Instrument{aapl})
	require.NoError(t, err)

	require.NoError(t, m.Register(msft))
	assert.ErrorIs(t, m.Register(msft), ErrAlreadyRegistered)
	assert.True(t, m.Contains("MSFT"))

	price, err := m.PriceOf("MSFT")
	require.NoError(t, err)
	assert.True(t, price.Equal(NewDecimalFromInt(400)))

	_, err = m.PriceOf("GOOG")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Remove("MSFT"))
	assert.False(t, m.Contains("MSFT"))
	assert.ErrorIs(t, m.Remove("MSFT"), ErrNotFound)
}

func TestMarket_DeclareBankrupt(t *testing.T) {
	instruments := newTestInstruments(t, map[string]int64{"AAPL": 180, "MSFT": 400}, "AAPL", "MSFT")
	markets := NewMarketRegistry()
	nyse, err := markets.Create("NYSE", []string{"AAPL", "MSFT"}, instruments)
	require.NoError(t, err)

	require.NoError(t, nyse.DeclareBankrupt("AAPL"))

	aapl, _ := instruments.Lookup("AAPL")
	assert.False(t, nyse.Contains("AAPL"))
	assert.True(t, aapl.Price().IsZero())
	assert.True(t, instruments.Contains("AAPL"), "bankruptcy is a state, not a deletion")

	assert.ErrorIs(t, nyse.DeclareBankrupt("AAPL"), ErrNotFound)
}

func TestMarket_DeclareBankrupt_AlreadyZero(t *testing.T) {
	instruments := newTestInstruments(t, map[string]int64{"AAPL": 180}, "AAPL")
	aapl, _ := instruments.Lookup("AAPL")
	nyse, _ := NewMarket("NYSE", []*Instrument{aapl})
	lse, _ := NewMarket("LSE", []*Instrument{aapl})

	require.NoError(t, nyse.DeclareBankrupt("AAPL"))
	assert.ErrorIs(t, lse.DeclareBankrupt("AAPL"), ErrAlreadyBankrupt)
	assert.True(t, lse.Contains("AAPL"), "failed bankruptcy leaves membership untouched")
}

func TestMarket_SimulateStep(t *testing.T) {
	instruments := newTestInstruments(t, map[string]int64{"A": 100, "B": 100, "C": 100}, "A", "B", "C")
	markets := NewMarketRegistry()
	m, err := markets.Create("SIM", []string{"A", "B", "C"}, instruments)
	require.NoError(t, err)

	rng := &fixedRand{values: []float64{0.75, 0.5, 0.25}}
	changes, err := m.SimulateStep(rng, 0.2)
	require.NoError(t, err)

	require.Len(t, changes, 2, "a zero move is skipped")
	assert.Equal(t, "A", changes[0].Symbol)
	assert.True(t, changes[0].Current.Equal(NewDecimalFromInt(110)))
	assert.Equal(t, "C", changes[1].Symbol)
	assert.True(t, changes[1].Current.Equal(NewDecimalFromInt(90)))

	b, _ := instruments.Lookup("B")
	assert.True(t, b.Price().Equal(NewDecimalFromInt(100)))
	assert.Equal(t, 3, rng.next, "one draw per member")
}

func TestMarket_SimulateStep_Reproducible(t *testing.T) {
	run := func() []PriceChange {
		instruments := newTestInstruments(t, map[string]int64{"A": 50, "B": 75}, "A", "B")
		m, err := NewMarketRegistry().Create("SIM", []string{"A", "B"}, instruments)
		require.NoError(t, err)
		changes, err := m.SimulateStep(rand.New(rand.NewPCG(42, 7)), 0.3)
		require.NoError(t, err)
		return changes
	}

	first, second := run(), run()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].Current.Equal(second[i].Current))
	}
}

func TestMarket_SimulateStep_Bounds(t *testing.T) {
	instruments := newTestInstruments(t, map[string]int64{"A": 100}, "A")
	m, _ := NewMarketRegistry().Create("SIM", []string{"A"}, instruments)

	for _, v := range []float64{0, -0.1, 1, 1.5} {
		_, err := m.SimulateStep(&fixedRand{values: []float64{0.9}}, v)
		assert.ErrorIs(t, err, ErrInvalidVolatility)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		a, _ := instruments.Lookup("A")
		before := a.Price().Float64()
		_, err := m.SimulateStep(rng, 0.3)
		require.NoError(t, err)
		after := a.Price().Float64()
		assert.LessOrEqual(t, after, before*1.3+0.001)
		assert.GreaterOrEqual(t, after, before*0.7-0.001)
	}
}

func TestMarket_SetSemantics(t *testing.T) {
	instruments := newTestInstruments(t,
		map[string]int64{"AAPL": 180, "MSFT": 400, "GOOG": 150}, "AAPL", "MSFT", "GOOG")
	markets := NewMarketRegistry()

	left, err := markets.Create("NYSE", []string{"AAPL", "MSFT"}, instruments)
	require.NoError(t, err)
	same, err := markets.Create("NYSE2", []string{"MSFT", "AAPL"}, instruments)
	require.NoError(t, err)
	right, err := markets.Create("NASDAQ", []string{"MSFT", "GOOG"}, instruments)
	require.NoError(t, err)

	t.Run("equality ignores order", func(t *testing.T) {
		assert.True(t, left.Equal(same))
		goog, _ := instruments.Lookup("GOOG")
		require.NoError(t, same.Register(goog))
		assert.False(t, left.Equal(same))
	})

	t.Run("item at", func(t *testing.T) {
		first, err := left.ItemAt(0)
		require.NoError(t, err)
		assert.Equal(t, "AAPL", first.Symbol)
		_, err = left.ItemAt(2)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		_, err = left.ItemAt(-1)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	})

	t.Run("union", func(t *testing.T) {
		u, err := markets.Union("NYSE", "NASDAQ")
		require.NoError(t, err)
		assert.Equal(t, "NYSENASDAQ", u.Name)
		assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, u.Symbols())
		assert.Equal(t, 2, left.Size(), "union leaves operands untouched")

		_, err = markets.Union("NYSE", "NASDAQ")
		assert.ErrorIs(t, err, ErrDuplicateMarketName)

		_, err = markets.Union("NYSE", "TSX")
		assert.ErrorIs(t, err, ErrUnknownMarket)
	})

	t.Run("merge is idempotent", func(t *testing.T) {
		left.Merge(right)
		assert.Equal(t, 3, left.Size())
		left.Merge(right)
		assert.Equal(t, 3, left.Size())
	})
}
