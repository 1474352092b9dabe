package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/jmanzanog/market-sim/internal/domain"
)

// Repository implements domain.Repository over database/sql.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// AutoMigrate runs the dialect's migrations.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	return r.db.Dialect.Migrate(ctx, r.db.DB)
}

// SaveInstrument upserts the instrument and replaces its price history.
func (r *Repository) SaveInstrument(ctx context.Context, inst *domain.Instrument) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.db.Dialect.UpsertInstrument(ctx, tx, inst, time.Now().UTC()); err != nil {
			slog.Error("Failed to save instrument", "symbol", inst.Symbol, "error", err)
			return fmt.Errorf("upsert instrument: %w", err)
		}

		if _, err := tx.ExecContext(ctx, r.rebind("DELETE FROM price_history WHERE symbol = $1"), inst.Symbol); err != nil {
			return fmt.Errorf("clear price history: %w", err)
		}
		insert := r.rebind("INSERT INTO price_history (symbol, day, price) VALUES ($1, $2, $3)")
		for _, p := range inst.History {
			if _, err := tx.ExecContext(ctx, insert, inst.Symbol, p.Date, p.Price); err != nil {
				return fmt.Errorf("insert price point %s: %w", p.Date.Format(time.DateOnly), err)
			}
		}
		return nil
	})
}

// SaveMarket registers the market and replaces its membership, keeping member order.
func (r *Repository) SaveMarket(ctx context.Context, market *domain.Market) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.db.Dialect.UpsertMarket(ctx, tx, market.Name, time.Now().UTC()); err != nil {
			slog.Error("Failed to save market", "market", market.Name, "error", err)
			return fmt.Errorf("upsert market: %w", err)
		}

		if _, err := tx.ExecContext(ctx, r.rebind("DELETE FROM market_members WHERE market_name = $1"), market.Name); err != nil {
			return fmt.Errorf("clear market members: %w", err)
		}
		insert := r.rebind("INSERT INTO market_members (market_name, symbol, position) VALUES ($1, $2, $3)")
		for i, symbol := range market.Symbols() {
			if _, err := tx.ExecContext(ctx, insert, market.Name, symbol, i); err != nil {
				return fmt.Errorf("insert market member %s: %w", symbol, err)
			}
		}
		return nil
	})
}

// SaveInvestor upserts the investor's capital and replaces its holdings.
// Transactions are stored separately by SaveTransaction.
func (r *Repository) SaveInvestor(ctx context.Context, inv *domain.Investor) error {
	rec := domain.NewInvestorRecord(inv)
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.db.Dialect.UpsertInvestor(ctx, tx, rec); err != nil {
			slog.Error("Failed to save investor", "investor", rec.Name, "error", err)
			return fmt.Errorf("upsert investor: %w", err)
		}

		if _, err := tx.ExecContext(ctx, r.rebind("DELETE FROM holdings WHERE investor_id = $1"), rec.ID); err != nil {
			return fmt.Errorf("clear holdings: %w", err)
		}
		insert := r.rebind("INSERT INTO holdings (investor_id, symbol, quantity) VALUES ($1, $2, $3)")
		for _, h := range rec.Holdings {
			if _, err := tx.ExecContext(ctx, insert, rec.ID, h.Symbol, h.Quantity); err != nil {
				return fmt.Errorf("insert holding %s: %w", h.Symbol, err)
			}
		}
		return nil
	})
}

func (r *Repository) SaveTransaction(ctx context.Context, t domain.Transaction) error {
	query := r.rebind(`
		INSERT INTO transactions (id, investor_id, symbol, instrument_name, kind, quantity, unit_price, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.InvestorID, t.Symbol, t.InstrumentName, string(t.Kind), t.Quantity, t.UnitPrice, t.Timestamp.UTC())
	if err != nil {
		slog.Error("Failed to save transaction", "transaction_id", t.ID, "error", err)
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// Load reads the whole simulation state. Instruments and markets come back in
// creation order, market members in membership order.
func (r *Repository) Load(ctx context.Context) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{}

	instruments, err := r.loadInstruments(ctx)
	if err != nil {
		return nil, err
	}
	snap.Instruments = instruments

	if snap.Markets, err = r.loadMarkets(ctx); err != nil {
		return nil, err
	}
	if snap.Investors, err = r.loadInvestors(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Repository) loadInstruments(ctx context.Context) ([]*domain.Instrument, error) {
	var instruments []*domain.Instrument
	bySymbol := make(map[string]*domain.Instrument)

	err := r.query(ctx, "SELECT symbol, name, current_price, source FROM instruments ORDER BY created_at, symbol",
		func(rows *sql.Rows) error {
			var (
				inst   domain.Instrument
				source string
			)
			if err := rows.Scan(&inst.Symbol, &inst.Name, &inst.CurrentPrice, &source); err != nil {
				return err
			}
			inst.Source = domain.InstrumentSource(source)
			instruments = append(instruments, &inst)
			bySymbol[inst.Symbol] = &inst
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("querying instruments: %w", err)
	}

	err = r.query(ctx, "SELECT symbol, day, price FROM price_history ORDER BY symbol, day",
		func(rows *sql.Rows) error {
			var (
				symbol string
				p      domain.PricePoint
			)
			if err := rows.Scan(&symbol, &p.Date, &p.Price); err != nil {
				return err
			}
			if inst, ok := bySymbol[symbol]; ok {
				p.Date = p.Date.UTC()
				inst.History = append(inst.History, p)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("querying price history: %w", err)
	}
	return instruments, nil
}

func (r *Repository) loadMarkets(ctx context.Context) ([]domain.MarketRecord, error) {
	var markets []domain.MarketRecord
	index := make(map[string]int)

	err := r.query(ctx, "SELECT name FROM markets ORDER BY created_at, name", func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		index[name] = len(markets)
		markets = append(markets, domain.MarketRecord{Name: name})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("querying markets: %w", err)
	}

	err = r.query(ctx, "SELECT market_name, symbol FROM market_members ORDER BY market_name, position",
		func(rows *sql.Rows) error {
			var name, symbol string
			if err := rows.Scan(&name, &symbol); err != nil {
				return err
			}
			if i, ok := index[name]; ok {
				markets[i].Symbols = append(markets[i].Symbols, symbol)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("querying market members: %w", err)
	}
	return markets, nil
}

func (r *Repository) loadInvestors(ctx context.Context) ([]domain.InvestorRecord, error) {
	var investors []domain.InvestorRecord
	index := make(map[string]int)

	err := r.query(ctx, "SELECT id, name, strategy, capital, created_at FROM investors ORDER BY created_at, name",
		func(rows *sql.Rows) error {
			var (
				rec      domain.InvestorRecord
				strategy string
			)
			if err := rows.Scan(&rec.ID, &rec.Name, &strategy, &rec.Capital, &rec.CreatedAt); err != nil {
				return err
			}
			rec.Strategy = domain.Strategy(strategy)
			index[rec.ID] = len(investors)
			investors = append(investors, rec)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("querying investors: %w", err)
	}

	err = r.query(ctx, "SELECT investor_id, symbol, quantity FROM holdings ORDER BY investor_id, symbol",
		func(rows *sql.Rows) error {
			var (
				id string
				h  domain.HoldingRecord
			)
			if err := rows.Scan(&id, &h.Symbol, &h.Quantity); err != nil {
				return err
			}
			if i, ok := index[id]; ok {
				investors[i].Holdings = append(investors[i].Holdings, h)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("querying holdings: %w", err)
	}

	err = r.query(ctx, `
		SELECT id, investor_id, symbol, instrument_name, kind, quantity, unit_price, executed_at
		FROM transactions ORDER BY executed_at, id`,
		func(rows *sql.Rows) error {
			var (
				t    domain.Transaction
				kind string
			)
			if err := rows.Scan(&t.ID, &t.InvestorID, &t.Symbol, &t.InstrumentName, &kind, &t.Quantity, &t.UnitPrice, &t.Timestamp); err != nil {
				return err
			}
			t.Kind = domain.TradeKind(kind)
			if i, ok := index[t.InvestorID]; ok {
				t.InvestorName = investors[i].Name
				investors[i].Transactions = append(investors[i].Transactions, t)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	return investors, nil
}

// query runs a select and hands every row to scan.
func (r *Repository) query(ctx context.Context, query string, scan func(rows *sql.Rows) error, args ...any) error {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return err
	}
	defer func(rows *sql.Rows) {
		err := rows.Close()
		if err != nil {
			slog.Error("Failed to close rows", "error", err)
		}
	}(rows)

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}
	}
	return rows.Err()
}

func (r *Repository) rebind(query string) string {
	return rebind(r.db.Dialect.Name(), query)
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $n placeholders to the dialect's numbered form.
func rebind(dialect, query string) string {
	switch dialect {
	case "oracle":
		return placeholder.ReplaceAllString(query, ":$1")
	case "sqlite":
		return placeholder.ReplaceAllString(query, "?$1")
	default:
		return query
	}
}
