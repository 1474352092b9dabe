package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/jmanzanog/market-sim/internal/domain"
	"github.com/jmanzanog/market-sim/internal/infrastructure/persistence/sqldb/migrations"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.PostgresFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "postgres"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

func (d *PostgresDialect) UpsertInstrument(ctx context.Context, tx *sql.Tx, i *domain.Instrument, createdAt time.Time) error {
	_, err := tx.ExecContext(ctx, upsertInstrumentSQL, i.Symbol, i.Name, i.CurrentPrice, string(i.Source), createdAt)
	return err
}

func (d *PostgresDialect) UpsertMarket(ctx context.Context, tx *sql.Tx, name string, createdAt time.Time) error {
	_, err := tx.ExecContext(ctx, upsertMarketSQL, name, createdAt)
	return err
}

func (d *PostgresDialect) UpsertInvestor(ctx context.Context, tx *sql.Tx, inv domain.InvestorRecord) error {
	_, err := tx.ExecContext(ctx, upsertInvestorSQL, inv.ID, inv.Name, string(inv.Strategy), inv.Capital, inv.CreatedAt)
	return err
}

// ON CONFLICT upserts understood by both PostgreSQL and SQLite (3.24+).
// created_at is kept from the first insert.
const (
	upsertInstrumentSQL = `
		INSERT INTO instruments (symbol, name, current_price, source, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol) DO UPDATE SET
			name = excluded.name,
			current_price = excluded.current_price,
			source = excluded.source
	`
	upsertMarketSQL = `
		INSERT INTO markets (name, created_at)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`
	upsertInvestorSQL = `
		INSERT INTO investors (id, name, strategy, capital, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			strategy = excluded.strategy,
			capital = excluded.capital
	`
)
