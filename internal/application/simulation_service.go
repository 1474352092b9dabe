package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmanzanog/market-sim/internal/domain"
)

var ErrNoPriceFeed = errors.New("no price feed configured")

// SimulationService is the single entry point to one simulation. It owns the
// instrument, market and investor registries and serializes mutations behind one lock.
// Successful mutations are persisted; a persistence failure is logged and does not
// undo the in-memory change.
type SimulationService struct {
	mu          sync.RWMutex
	instruments *domain.InstrumentRegistry
	markets     *domain.MarketRegistry
	investors   *domain.InvestorRegistry

	repo       domain.Repository
	feed       domain.PriceFeed
	rng        domain.RandSource
	volatility float64
}

// NewSimulationService restores the persisted simulation from repo. feed may be nil,
// in which case real-backed instruments cannot be created or refreshed.
func NewSimulationService(ctx context.Context, repo domain.Repository, feed domain.PriceFeed, rng domain.RandSource, volatility float64) (*SimulationService, error) {
	if volatility <= 0 || volatility >= 1 {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidVolatility, volatility)
	}
	s := &SimulationService{
		instruments: domain.NewInstrumentRegistry(),
		markets:     domain.NewMarketRegistry(),
		investors:   domain.NewInvestorRegistry(),
		repo:        repo,
		feed:        feed,
		rng:         rng,
		volatility:  volatility,
	}
	if err := s.restore(ctx); err != nil {
		return nil, fmt.Errorf("failed to restore simulation: %w", err)
	}
	return s, nil
}

func (s *SimulationService) restore(ctx context.Context) error {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}

	for _, inst := range snap.Instruments {
		if err := s.instruments.Register(inst); err != nil {
			return err
		}
	}
	for _, rec := range snap.Markets {
		if _, err := s.markets.Create(rec.Name, rec.Symbols, s.instruments); err != nil {
			return err
		}
	}
	for _, rec := range snap.Investors {
		holdings := make([]domain.Holding, 0, len(rec.Holdings))
		for _, h := range rec.Holdings {
			inst, err := s.instruments.Lookup(h.Symbol)
			if err != nil {
				return err
			}
			holdings = append(holdings, domain.Holding{Instrument: inst, Quantity: h.Quantity})
		}
		inv, err := domain.RestoreInvestor(rec.ID, rec.Name, rec.Strategy, rec.Capital, rec.CreatedAt, holdings, rec.Transactions)
		if err != nil {
			return err
		}
		if err := s.investors.Add(inv); err != nil {
			return err
		}
	}

	slog.InfoContext(ctx, "Simulation restored",
		"instruments", s.instruments.Len(),
		"markets", len(snap.Markets),
		"investors", len(snap.Investors))
	return nil
}

// Instruments

func (s *SimulationService) CreateInstrument(ctx context.Context, symbol, name string, price domain.Decimal, seed []domain.PricePoint) (*domain.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.instruments.Create(symbol, name, price, seed)
	if err != nil {
		return nil, err
	}
	s.saveInstrument(ctx, inst)
	return inst.Clone(), nil
}

// CreateRealInstrument builds an instrument from the last year of market data.
// The feed is queried without holding the lock.
func (s *SimulationService) CreateRealInstrument(ctx context.Context, symbol, name string) (*domain.Instrument, error) {
	if s.feed == nil {
		return nil, ErrNoPriceFeed
	}

	s.mu.RLock()
	exists := s.instruments.Contains(symbol)
	s.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateSymbol, symbol)
	}

	inst, err := domain.NewRealInstrument(ctx, s.feed, symbol, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.instruments.Register(inst); err != nil {
		return nil, err
	}
	s.saveInstrument(ctx, inst)
	slog.InfoContext(ctx, "Real instrument created", "symbol", symbol, "points", len(inst.History))
	return inst.Clone(), nil
}

func (s *SimulationService) UpdatePrice(ctx context.Context, symbol string, price domain.Decimal) (*domain.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := s.instruments.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	if err := inst.UpdatePrice(price); err != nil {
		return nil, err
	}
	s.saveInstrument(ctx, inst)
	return inst.Clone(), nil
}

// RefreshInstrument pulls the latest close for a real-backed instrument.
func (s *SimulationService) RefreshInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	if s.feed == nil {
		return nil, ErrNoPriceFeed
	}

	s.mu.RLock()
	inst, err := s.instruments.Lookup(symbol)
	var source domain.InstrumentSource
	if err == nil {
		source = inst.Source
	}
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if source != domain.InstrumentSourceReal {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotRealBacked, symbol)
	}

	points, err := s.feed.History(ctx, symbol, domain.RefreshWindowDays)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch latest price for %s: %w", domain.ErrFeedUnavailable, symbol, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := inst.Price()
	if err := inst.ApplyRefresh(points); err != nil {
		return nil, err
	}
	if !inst.Price().Equal(before) {
		s.saveInstrument(ctx, inst)
	}
	return inst.Clone(), nil
}

func (s *SimulationService) Instrument(symbol string) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, err := s.instruments.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	return inst.Clone(), nil
}

// Instruments returns copies of every instrument in creation order.
func (s *SimulationService) Instruments() []*domain.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.instruments.All()
	out := make([]*domain.Instrument, len(all))
	for i, inst := range all {
		out[i] = inst.Clone()
	}
	return out
}

// Investors

func (s *SimulationService) CreateInvestor(ctx context.Context, name string, capital domain.Decimal, strategy string) (domain.InvestorRecord, error) {
	st, err := domain.ParseStrategy(strategy)
	if err != nil {
		return domain.InvestorRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.investors.Create(name, capital, st)
	if err != nil {
		return domain.InvestorRecord{}, err
	}
	s.saveInvestor(ctx, inv)
	return domain.NewInvestorRecord(inv), nil
}

// Investor returns a snapshot of the investor's ledger.
func (s *SimulationService) Investor(name string) (domain.InvestorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, err := s.investors.Lookup(name)
	if err != nil {
		return domain.InvestorRecord{}, err
	}
	return domain.NewInvestorRecord(inv), nil
}

func (s *SimulationService) Buy(ctx context.Context, investor, symbol string, quantity int64) (domain.Transaction, error) {
	return s.Trade(ctx, investor, string(domain.TradeBuy), symbol, quantity)
}

func (s *SimulationService) Sell(ctx context.Context, investor, symbol string, quantity int64) (domain.Transaction, error) {
	return s.Trade(ctx, investor, string(domain.TradeSell), symbol, quantity)
}

// Trade executes a buy or sell. side also accepts "acquire" and "release".
func (s *SimulationService) Trade(ctx context.Context, investor, side, symbol string, quantity int64) (domain.Transaction, error) {
	kind, err := domain.ParseTradeKind(side)
	if err != nil {
		return domain.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.investors.Lookup(investor)
	if err != nil {
		return domain.Transaction{}, err
	}
	inst, err := s.instruments.Lookup(symbol)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx, err := inv.Trade(kind, inst, quantity)
	if err != nil {
		return domain.Transaction{}, err
	}
	s.saveInvestor(ctx, inv)
	s.saveTransaction(ctx, tx)
	slog.InfoContext(ctx, "Trade executed",
		"investor", investor,
		"kind", string(kind),
		"symbol", symbol,
		"quantity", quantity,
		"unit_price", tx.UnitPrice.String())
	return tx, nil
}

func (s *SimulationService) Holdings(name string) (domain.HoldingsSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, err := s.investors.Lookup(name)
	if err != nil {
		return domain.HoldingsSummary{}, err
	}
	return inv.Summary(), nil
}

func (s *SimulationService) Transactions(name string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, err := s.investors.Lookup(name)
	if err != nil {
		return nil, err
	}
	return inv.Transactions(), nil
}

func (s *SimulationService) TotalInvested(name string) (domain.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, err := s.investors.Lookup(name)
	if err != nil {
		return domain.Zero, err
	}
	return inv.TotalInvested()
}

// Recommend ranks every registered instrument for the investor's strategy.
func (s *SimulationService) Recommend(name string) (*domain.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, err := s.investors.Lookup(name)
	if err != nil {
		return nil, err
	}
	return domain.Recommend(inv, s.instruments.All())
}

// InvestorsEqual reports whether both investors hold the same set of symbols.
func (s *SimulationService) InvestorsEqual(left, right string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.investors.Lookup(left)
	if err != nil {
		return false, err
	}
	r, err := s.investors.Lookup(right)
	if err != nil {
		return false, err
	}
	return l.Equal(r), nil
}

// Markets

func (s *SimulationService) CreateMarket(ctx context.Context, name string, symbols []string) (domain.MarketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.markets.Create(name, symbols, s.instruments)
	if err != nil {
		return domain.MarketRecord{}, err
	}
	s.saveMarket(ctx, m)
	return domain.NewMarketRecord(m), nil
}

func (s *SimulationService) RegisterInstrument(ctx context.Context, market, symbol string) (domain.MarketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.markets.Lookup(market)
	if err != nil {
		return domain.MarketRecord{}, err
	}
	inst, err := s.instruments.Lookup(symbol)
	if err != nil {
		return domain.MarketRecord{}, err
	}
	if err := m.Register(inst); err != nil {
		return domain.MarketRecord{}, err
	}
	s.saveMarket(ctx, m)
	return domain.NewMarketRecord(m), nil
}

func (s *SimulationService) MarketPrice(market, symbol string) (domain.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := s.markets.Lookup(market)
	if err != nil {
		return domain.Zero, err
	}
	return m.PriceOf(symbol)
}

func (s *SimulationService) RemoveInstrument(ctx context.Context, market, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.markets.Lookup(market)
	if err != nil {
		return err
	}
	if err := m.Remove(symbol); err != nil {
		return err
	}
	s.saveMarket(ctx, m)
	return nil
}

// DeclareBankrupt removes the instrument from the market and pins its price to zero.
func (s *SimulationService) DeclareBankrupt(ctx context.Context, market, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.markets.Lookup(market)
	if err != nil {
		return err
	}
	inst, err := m.Lookup(symbol)
	if err != nil {
		return err
	}
	if err := m.DeclareBankrupt(symbol); err != nil {
		return err
	}
	s.saveMarket(ctx, m)
	s.saveInstrument(ctx, inst)
	slog.InfoContext(ctx, "Instrument declared bankrupt", "market", market, "symbol", symbol)
	return nil
}

// SimulateMarket runs one price-walk step over the market's members.
func (s *SimulationService) SimulateMarket(ctx context.Context, name string) ([]domain.PriceChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.markets.Lookup(name)
	if err != nil {
		return nil, err
	}
	return s.simulate(ctx, m)
}

// SimulateAll runs one step over every market in creation order. A failing market
// does not stop the others; the failures are joined into the returned error.
func (s *SimulationService) SimulateAll(ctx context.Context) ([]domain.PriceChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		changes []domain.PriceChange
		errs    []error
	)
	for _, m := range s.markets.All() {
		c, err := s.simulate(ctx, m)
		changes = append(changes, c...)
		if err != nil {
			errs = append(errs, fmt.Errorf("market %s: %w", m.Name, err))
		}
	}
	return changes, errors.Join(errs...)
}

func (s *SimulationService) simulate(ctx context.Context, m *domain.Market) ([]domain.PriceChange, error) {
	changes, err := m.SimulateStep(s.rng, s.volatility)
	for _, c := range changes {
		if inst, lookupErr := s.instruments.Lookup(c.Symbol); lookupErr == nil {
			s.saveInstrument(ctx, inst)
		}
	}
	if err != nil {
		return changes, err
	}
	slog.DebugContext(ctx, "Market simulated", "market", m.Name, "changed", len(changes))
	return changes, nil
}

// UnionMarkets registers a new market holding the members of both.
func (s *SimulationService) UnionMarkets(ctx context.Context, left, right string) (domain.MarketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.markets.Union(left, right)
	if err != nil {
		return domain.MarketRecord{}, err
	}
	s.saveMarket(ctx, u)
	return domain.NewMarketRecord(u), nil
}

// MergeMarkets adds the members of source to target.
func (s *SimulationService) MergeMarkets(ctx context.Context, target, source string) (domain.MarketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.markets.Lookup(target)
	if err != nil {
		return domain.MarketRecord{}, err
	}
	src, err := s.markets.Lookup(source)
	if err != nil {
		return domain.MarketRecord{}, err
	}
	t.Merge(src)
	s.saveMarket(ctx, t)
	return domain.NewMarketRecord(t), nil
}

// MarketsEqual reports whether both markets have the same members.
func (s *SimulationService) MarketsEqual(left, right string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.markets.Lookup(left)
	if err != nil {
		return false, err
	}
	r, err := s.markets.Lookup(right)
	if err != nil {
		return false, err
	}
	return l.Equal(r), nil
}

func (s *SimulationService) Market(name string) (domain.MarketRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := s.markets.Lookup(name)
	if err != nil {
		return domain.MarketRecord{}, err
	}
	return domain.NewMarketRecord(m), nil
}

func (s *SimulationService) Markets() []domain.MarketRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.markets.All()
	out := make([]domain.MarketRecord, len(all))
	for i, m := range all {
		out[i] = domain.NewMarketRecord(m)
	}
	return out
}

// MarketItem returns the member at index in membership order.
func (s *SimulationService) MarketItem(name string, index int) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := s.markets.Lookup(name)
	if err != nil {
		return nil, err
	}
	inst, err := m.ItemAt(index)
	if err != nil {
		return nil, err
	}
	return inst.Clone(), nil
}

// Snapshot copies the current state of every registry, in creation order.
func (s *SimulationService) Snapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &domain.Snapshot{}
	for _, inst := range s.instruments.All() {
		snap.Instruments = append(snap.Instruments, inst.Clone())
	}
	for _, m := range s.markets.All() {
		snap.Markets = append(snap.Markets, domain.NewMarketRecord(m))
	}
	for _, inv := range s.investors.All() {
		snap.Investors = append(snap.Investors, domain.NewInvestorRecord(inv))
	}
	return snap
}

// Persistence. Callers hold the write lock.

func (s *SimulationService) saveInstrument(ctx context.Context, inst *domain.Instrument) {
	if err := s.repo.SaveInstrument(context.WithoutCancel(ctx), inst); err != nil {
		slog.ErrorContext(ctx, "Failed to persist instrument", "symbol", inst.Symbol, "error", err)
	}
}

func (s *SimulationService) saveMarket(ctx context.Context, m *domain.Market) {
	if err := s.repo.SaveMarket(context.WithoutCancel(ctx), m); err != nil {
		slog.ErrorContext(ctx, "Failed to persist market", "market", m.Name, "error", err)
	}
}

func (s *SimulationService) saveInvestor(ctx context.Context, inv *domain.Investor) {
	if err := s.repo.SaveInvestor(context.WithoutCancel(ctx), inv); err != nil {
		slog.ErrorContext(ctx, "Failed to persist investor", "investor", inv.Name, "error", err)
	}
}

func (s *SimulationService) saveTransaction(ctx context.Context, tx domain.Transaction) {
	if err := s.repo.SaveTransaction(context.WithoutCancel(ctx), tx); err != nil {
		slog.ErrorContext(ctx, "Failed to persist transaction", "transaction_id", tx.ID, "error", err)
	}
}
