package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmanzanog/market-sim/internal/domain"
)

// Dialect holds the statements that differ between database engines. Plain inserts,
// deletes and selects are shared and rebound to the dialect's placeholder style.
type Dialect interface {
	Name() string
	Migrate(ctx context.Context, db *sql.DB) error
	UpsertInstrument(ctx context.Context, tx *sql.Tx, i *domain.Instrument, createdAt time.Time) error
	UpsertMarket(ctx context.Context, tx *sql.Tx, name string, createdAt time.Time) error
	UpsertInvestor(ctx context.Context, tx *sql.Tx, inv domain.InvestorRecord) error
}
