// Package sqlite persists position records for crash recovery and
// audit. Records are append-only: closing a position marks it CLOSED
// with its exit price and realized P&L, it is never deleted.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"spot-traderv1/internal/model"
)

// Store is a single-writer SQLite position store.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	log *slog.Logger
}

// New opens (or creates) the position database with WAL mode and the
// schema in place.
func New(dbPath string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Info("opened position store", slog.String("path", dbPath))
	return &Store{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS positions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			market       TEXT NOT NULL,
			side         TEXT NOT NULL,
			entry_price  REAL NOT NULL,
			quantity     REAL NOT NULL,
			opened_at    TEXT NOT NULL,
			strategy     TEXT,
			take_profit  REAL,
			stop_loss    REAL,
			status       TEXT NOT NULL DEFAULT 'OPEN',
			exit_price   REAL,
			realized_pnl REAL,
			closed_at    TEXT,
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_positions_market_status ON positions(market, status);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// FindOpen returns the OPEN position for market, or nil if none exists.
func (s *Store) FindOpen(ctx context.Context, market string) (*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT market, side, entry_price, quantity, opened_at, strategy, take_profit, stop_loss
		FROM positions
		WHERE market = ? AND status = 'OPEN'
		ORDER BY id DESC LIMIT 1
	`, market)

	var (
		pos      model.Position
		side     string
		openedAt string
		strategy sql.NullString
		tp, sl   sql.NullFloat64
	)
	err := row.Scan(&pos.Market, &side, &pos.EntryPrice, &pos.Quantity, &openedAt, &strategy, &tp, &sl)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite find open: %w", err)
	}

	pos.Side = model.OrderSide(side)
	if t, perr := time.Parse(time.RFC3339, openedAt); perr == nil {
		pos.OpenedAt = t
	}
	pos.StrategyTag = strategy.String
	if tp.Valid {
		pos.TakeProfitPrice = model.Some(tp.Float64)
	}
	if sl.Valid {
		pos.StopLossPrice = model.Some(sl.Float64)
	}
	return &pos, nil
}

// InsertOpen persists a new OPEN position. The at-most-one-OPEN-per-
// market invariant is enforced here at the application level.
func (s *Store) InsertOpen(ctx context.Context, pos model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM positions WHERE market = ? AND status = 'OPEN'`, pos.Market,
	).Scan(&count); err != nil {
		return fmt.Errorf("sqlite count open: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("open position already exists for %s", pos.Market)
	}

	tp := sql.NullFloat64{Float64: pos.TakeProfitPrice.Value, Valid: pos.TakeProfitPrice.Valid}
	sl := sql.NullFloat64{Float64: pos.StopLossPrice.Value, Valid: pos.StopLossPrice.Valid}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO positions (market, side, entry_price, quantity, opened_at, strategy, take_profit, stop_loss, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'OPEN')
	`, pos.Market, string(pos.Side), pos.EntryPrice, pos.Quantity,
		pos.OpenedAt.UTC().Format(time.RFC3339), pos.StrategyTag, tp, sl)
	if err != nil {
		return fmt.Errorf("sqlite insert open: %w", err)
	}
	return tx.Commit()
}

// MarkClosed transitions the OPEN position for market to CLOSED.
func (s *Store) MarkClosed(ctx context.Context, market string, exitPrice, realizedPnL float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE positions
		SET status = 'CLOSED', exit_price = ?, realized_pnl = ?, closed_at = ?
		WHERE market = ? AND status = 'OPEN'
	`, exitPrice, realizedPnL, time.Now().UTC().Format(time.RFC3339), market)
	if err != nil {
		return fmt.Errorf("sqlite mark closed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no open position for %s", market)
	}
	return nil
}

// Record is one row of the positions audit table.
type Record struct {
	ID          int64                `json:"id"`
	Market      string               `json:"market"`
	Side        string               `json:"side"`
	EntryPrice  float64              `json:"entry_price"`
	Quantity    float64              `json:"quantity"`
	OpenedAt    string               `json:"opened_at"`
	Strategy    string               `json:"strategy"`
	Status      model.PositionStatus `json:"status"`
	ExitPrice   float64              `json:"exit_price"`
	RealizedPnL float64              `json:"realized_pnl"`
	ClosedAt    string               `json:"closed_at"`
}

// History returns the last limit position records for market, newest
// first, including CLOSED rows.
func (s *Store) History(ctx context.Context, market string, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market, side, entry_price, quantity, opened_at, strategy, status,
		       COALESCE(exit_price, 0), COALESCE(realized_pnl, 0), COALESCE(closed_at, '')
		FROM positions WHERE market = ? ORDER BY id DESC LIMIT ?
	`, market, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r        Record
			strategy sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Market, &r.Side, &r.EntryPrice, &r.Quantity,
			&r.OpenedAt, &strategy, &r.Status, &r.ExitPrice, &r.RealizedPnL, &r.ClosedAt); err != nil {
			return nil, fmt.Errorf("sqlite scan history: %w", err)
		}
		r.Strategy = strategy.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
