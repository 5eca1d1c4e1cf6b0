package portfolio

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"folio/internal/domain"
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS holdings (
	symbol       TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	quantity     REAL NOT NULL DEFAULT 0,
	buy_price    REAL NOT NULL DEFAULT 0,
	position     INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore implements Store backed by a SQLite database. Rows keep their
// user-defined order via the position column.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema, and returns a ready-to-use store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating holdings table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// List returns the stored holdings in declared order, normalized on the way
// out so rows written by older versions still satisfy the invariants.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.Holding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, display_name, quantity, buy_price FROM holdings ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.Symbol, &h.DisplayName, &h.Quantity, &h.BuyPrice); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return Normalize(out), nil
}

// Replace swaps the whole holdings list inside one transaction: either the
// new normalized rows are all present and the old ones gone, or nothing
// changed.
func (s *SQLiteStore) Replace(ctx context.Context, rows []domain.Holding) error {
	normalized := Normalize(rows)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings`); err != nil {
		return fmt.Errorf("clearing holdings: %w", err)
	}
	for i, h := range normalized {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO holdings (symbol, display_name, quantity, buy_price, position)
			VALUES (?, ?, ?, ?, ?)`,
			h.Symbol, h.DisplayName, h.Quantity, h.BuyPrice, i,
		)
		if err != nil {
			return fmt.Errorf("inserting %s: %w", h.Symbol, err)
		}
	}
	return tx.Commit()
}

// Remove deletes a single holding by symbol.
func (s *SQLiteStore) Remove(ctx context.Context, symbol string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM holdings WHERE symbol = ?`, symbol)
	return err
}

// Reset deletes all holdings.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM holdings`)
	return err
}
