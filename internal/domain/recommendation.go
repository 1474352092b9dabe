package domain

import (
	"fmt"

	"github.com/google/btree"
)

// RecommendationLimit caps each recommendation set.
const RecommendationLimit = 5

// Candidate is one recommended instrument with its price at ranking time.
type Candidate struct {
	Symbol string  `json:"symbol"`
	Price  Decimal `json:"price"`
}

// Recommendation holds both ranked sets. NewOpportunities never contains a held symbol.
type Recommendation struct {
	Investor         string      `json:"investor"`
	Strategy         Strategy    `json:"strategy"`
	General          []Candidate `json:"general"`
	NewOpportunities []Candidate `json:"new_opportunities"`
}

// ranked is a candidate plus its position in the input, which breaks price ties.
type ranked struct {
	Candidate
	seq int
}

// descendingLess ranks the most expensive candidate first.
func descendingLess(a, b ranked) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	return a.seq < b.seq
}

// ascendingLess ranks the cheapest candidate first.
func ascendingLess(a, b ranked) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

// Recommend ranks instruments for inv according to its strategy. Aggressive investors get
// the most expensive affordable instruments first, conservative ones the cheapest.
// Capital must be strictly greater than the cheapest price, otherwise
// ErrNoAffordableInstrument is returned.
func Recommend(inv *Investor, instruments []*Instrument) (*Recommendation, error) {
	less := ascendingLess
	if inv.Strategy == StrategyAggressive {
		less = descendingLess
	}

	const degree = 8
	index := btree.NewG[ranked](degree, less)
	var cheapest *Decimal
	for seq, inst := range instruments {
		price := inst.Price()
		index.ReplaceOrInsert(ranked{Candidate: Candidate{Symbol: inst.Symbol, Price: price}, seq: seq})
		if cheapest == nil || price.Cmp(*cheapest) < 0 {
			cheapest = &price
		}
	}
	if cheapest == nil {
		return nil, fmt.Errorf("%w: no instruments registered", ErrNoAffordableInstrument)
	}
	if inv.Capital.Cmp(*cheapest) <= 0 {
		return nil, fmt.Errorf("%w: capital %s does not exceed cheapest price %s", ErrNoAffordableInstrument, inv.Capital, *cheapest)
	}

	rec := &Recommendation{
		Investor:         inv.Name,
		Strategy:         inv.Strategy,
		General:          make([]Candidate, 0, RecommendationLimit),
		NewOpportunities: make([]Candidate, 0, RecommendationLimit),
	}
	index.Ascend(func(r ranked) bool {
		if r.Price.Cmp(inv.Capital) > 0 {
			// Ascending order has nothing affordable left; descending order may.
			return inv.Strategy == StrategyAggressive
		}
		if len(rec.General) < RecommendationLimit {
			rec.General = append(rec.General, r.Candidate)
		}
		if len(rec.NewOpportunities) < RecommendationLimit && !inv.Contains(r.Symbol) {
			rec.NewOpportunities = append(rec.NewOpportunities, r.Candidate)
		}
		return len(rec.General) < RecommendationLimit || len(rec.NewOpportunities) < RecommendationLimit
	})
	return rec, nil
}
