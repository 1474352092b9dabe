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

// SQLiteDialect targets the pure-Go modernc.org/sqlite driver, registered as "sqlite".
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.SQLiteFS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "sqlite"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

func (d *SQLiteDialect) UpsertInstrument(ctx context.Context, tx *sql.Tx, i *domain.Instrument, createdAt time.Time) error {
	_, err := tx.ExecContext(ctx, rebind(d.Name(), upsertInstrumentSQL), i.Symbol, i.Name, i.CurrentPrice, string(i.Source), createdAt)
	return err
}

func (d *SQLiteDialect) UpsertMarket(ctx context.Context, tx *sql.Tx, name string, createdAt time.Time) error {
	_, err := tx.ExecContext(ctx, rebind(d.Name(), upsertMarketSQL), name, createdAt)
	return err
}

func (d *SQLiteDialect) UpsertInvestor(ctx context.Context, tx *sql.Tx, inv domain.InvestorRecord) error {
	_, err := tx.ExecContext(ctx, rebind(d.Name(), upsertInvestorSQL), inv.ID, inv.Name, string(inv.Strategy), inv.Capital, inv.CreatedAt)
	return err
}
