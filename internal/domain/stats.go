package domain

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

// PriceStats summarizes an instrument's price history.
type PriceStats struct {
	Count      int     `json:"count"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	Volatility float64 `json:"annualized_volatility"`
}

// Stats computes descriptive statistics over the price history.
// StdDev and Volatility stay zero until there are enough points to define them.
func (i *Instrument) Stats() PriceStats {
	prices := make([]float64, len(i.History))
	for n, p := range i.History {
		prices[n] = p.Price.Float64()
	}
	if len(prices) == 0 {
		return PriceStats{}
	}

	s := PriceStats{
		Count: len(prices),
		Min:   floats.Min(prices),
		Max:   floats.Max(prices),
		Mean:  stat.Mean(prices, nil),
	}
	if len(prices) > 1 {
		s.StdDev = stat.StdDev(prices, nil)
	}

	returns := dailyReturns(prices)
	if len(returns) > 1 {
		s.Volatility = stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear)
	}
	return s
}

// dailyReturns skips steps starting from a zero price, where a return is undefined.
func dailyReturns(prices []float64) []float64 {
	returns := make([]float64, 0, len(prices))
	for n := 1; n < len(prices); n++ {
		if prices[n-1] == 0 {
			continue
		}
		returns = append(returns, (prices[n]-prices[n-1])/prices[n-1])
	}
	return returns
}
