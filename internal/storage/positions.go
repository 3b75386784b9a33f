// Package storage persists per-user positions in sqlite. Writes for a user
// run inside a single transaction so a merge or replace is never partially
// applied.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"portfolioapi/internal/portfolio"
)

// OpenSQLite opens (or creates) the database at dsn.
func OpenSQLite(dsn string) (*sql.DB, error) {
	return sql.Open("sqlite3", dsn)
}

// InitSchema ensures the positions table exists.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS positions(
		user_id    TEXT NOT NULL,
		ticker     TEXT NOT NULL,
		shares     REAL NOT NULL,
		cost_basis REAL NOT NULL,
		PRIMARY KEY(user_id, ticker)
	)`)
	return err
}

// PositionStore is the durable user -> positions mapping.
type PositionStore struct {
	db *sql.DB
}

func NewPositionStore(db *sql.DB) *PositionStore { return &PositionStore{db: db} }

// List returns the user's positions ordered by ticker. An unknown user
// returns an empty slice, not an error.
func (s *PositionStore) List(ctx context.Context, userID string) ([]portfolio.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, shares, cost_basis FROM positions WHERE user_id=? ORDER BY ticker`, userID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()
	var out []portfolio.Position
	for rows.Next() {
		var p portfolio.Position
		if err := rows.Scan(&p.Ticker, &p.Shares, &p.CostBasis); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Replace atomically swaps the user's portfolio for the given positions.
// Duplicate tickers inside the input merge by the share-weighted rule first.
func (s *PositionStore) Replace(ctx context.Context, userID string, positions []portfolio.Position) error {
	merged := portfolio.MergePositions(nil, positions)
	return s.writeAll(ctx, userID, merged)
}

// Merge atomically folds added positions into the user's stored portfolio
// using the share-weighted average cost rule.
func (s *PositionStore) Merge(ctx context.Context, userID string, added []portfolio.Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT ticker, shares, cost_basis FROM positions WHERE user_id=?`, userID)
	if err != nil {
		return fmt.Errorf("load existing positions: %w", err)
	}
	var existing []portfolio.Position
	for rows.Next() {
		var p portfolio.Position
		if err := rows.Scan(&p.Ticker, &p.Shares, &p.CostBasis); err != nil {
			rows.Close()
			return err
		}
		existing = append(existing, p)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	merged := portfolio.MergePositions(existing, added)
	if err := replaceInTx(ctx, tx, userID, merged); err != nil {
		return err
	}
	return tx.Commit()
}

// Remove deletes one position.
func (s *PositionStore) Remove(ctx context.Context, userID, ticker string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM positions WHERE user_id=? AND ticker=?`, userID, portfolio.NormalizeTicker(ticker))
	return err
}

func (s *PositionStore) writeAll(ctx context.Context, userID string, positions []portfolio.Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := replaceInTx(ctx, tx, userID, positions); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceInTx(ctx context.Context, tx *sql.Tx, userID string, positions []portfolio.Position) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE user_id=?`, userID); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	for _, p := range positions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO positions(user_id, ticker, shares, cost_basis) VALUES(?,?,?,?)`,
			userID, portfolio.NormalizeTicker(p.Ticker), p.Shares, p.CostBasis); err != nil {
			return fmt.Errorf("insert %s: %w", p.Ticker, err)
		}
	}
	return nil
}
