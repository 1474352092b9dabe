package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrument_Stats(t *testing.T) {
	seed := []PricePoint{
		{Date: daysAgo(3), Price: NewDecimalFromInt(10)},
		{Date: daysAgo(2), Price: NewDecimalFromInt(11)},
		{Date: daysAgo(1), Price: NewDecimalFromInt(9)},
	}
	inst, err := NewInstrument("X", "", NewDecimalFromInt(10), seed)
	require.NoError(t, err)

	s := inst.Stats()
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 9.0, s.Min)
	assert.Equal(t, 11.0, s.Max)
	assert.InDelta(t, 10.0, s.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(2.0/3.0), s.StdDev, 1e-9)
	assert.Greater(t, s.Volatility, 0.0)
}

func TestInstrument_Stats_SinglePoint(t *testing.T) {
	inst, err := NewInstrument("X", "", NewDecimalFromInt(10), nil)
	require.NoError(t, err)

	s := inst.Stats()
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 10.0, s.Mean)
	assert.Zero(t, s.StdDev)
	assert.Zero(t, s.Volatility)
}

func TestDailyReturns_SkipsZeroBase(t *testing.T) {
	returns := dailyReturns([]float64{10, 0, 5, 10})
	assert.Equal(t, []float64{-1, 1}, returns)
}
