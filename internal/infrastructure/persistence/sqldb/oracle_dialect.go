package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmanzanog/market-sim/internal/domain"
	"github.com/jmanzanog/market-sim/internal/infrastructure/persistence/sqldb/migrations"
)

type OracleDialect struct{}

func (d *OracleDialect) Name() string { return "oracle" }

func (d *OracleDialect) Migrate(ctx context.Context, db *sql.DB) error {
	// Goose does not support Oracle natively in a way that is easy to cross-compile with go-ora.
	// Read the SQL file and execute it statement by statement.
	content, err := migrations.OracleFS.ReadFile("oracle/20240101000000_init.sql")
	if err != nil {
		return fmt.Errorf("reading migration file: %w", err)
	}

	// Split statements by '/' which is standard in Oracle scripts
	statements := strings.Split(string(content), "/")

	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err := db.ExecContext(ctx, stmt); err != nil {
			// ORA-00955: name is already used by an existing object
			if !strings.Contains(err.Error(), "ORA-00955") {
				return fmt.Errorf("migrating: %s: %w", stmt, err)
			}
		}
	}
	return nil
}

func (d *OracleDialect) UpsertInstrument(ctx context.Context, tx *sql.Tx, i *domain.Instrument, createdAt time.Time) error {
	query := `MERGE INTO instruments t
             USING (SELECT :1 as symbol_val FROM dual) s
             ON (t.symbol = s.symbol_val)
             WHEN MATCHED THEN
               UPDATE SET name = :2, current_price = :3, source = :4
             WHEN NOT MATCHED THEN
               INSERT (symbol, name, current_price, source, created_at)
               VALUES (:5, :6, :7, :8, :9)`

	_, err := tx.ExecContext(ctx, query,
		i.Symbol,         // 1 (s.symbol_val)
		i.Name,           // 2 (UPDATE)
		i.CurrentPrice,   // 3
		string(i.Source), // 4
		i.Symbol,         // 5 (INSERT)
		i.Name,           // 6
		i.CurrentPrice,   // 7
		string(i.Source), // 8
		createdAt,        // 9
	)
	return err
}

func (d *OracleDialect) UpsertMarket(ctx context.Context, tx *sql.Tx, name string, createdAt time.Time) error {
	// Insert-only MERGE: an existing market keeps its creation time.
	query := `MERGE INTO markets m
             USING (SELECT :1 as name_val FROM dual) s
             ON (m.name = s.name_val)
             WHEN NOT MATCHED THEN
               INSERT (name, created_at)
               VALUES (:2, :3)`

	_, err := tx.ExecContext(ctx, query, name, name, createdAt)
	return err
}

func (d *OracleDialect) UpsertInvestor(ctx context.Context, tx *sql.Tx, inv domain.InvestorRecord) error {
	query := `MERGE INTO investors t
             USING (SELECT :1 as id_val FROM dual) s
             ON (t.id = s.id_val)
             WHEN MATCHED THEN
               UPDATE SET
                 name = :2,
                 strategy = :3,
                 capital = :4
             WHEN NOT MATCHED THEN
               INSERT (id, name, strategy, capital, created_at)
               VALUES (:5, :6, :7, :8, :9)`

	_, err := tx.ExecContext(ctx, query,
		inv.ID,               // 1
		inv.Name,             // 2 (UPDATE)
		string(inv.Strategy), // 3
		inv.Capital,          // 4
		inv.ID,               // 5 (INSERT)
		inv.Name,             // 6
		string(inv.Strategy), // 7
		inv.Capital,          // 8
		inv.CreatedAt,        // 9
	)
	return err
}
