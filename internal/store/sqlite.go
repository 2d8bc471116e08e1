// Package store provides persistence for downloaded market data.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "dividend-recovery/internal/errors"
	"dividend-recovery/internal/models"
)

// SQLiteStore implements HistoryStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based history store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- One row per cached download
	CREATE TABLE IF NOT EXISTS history_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		symbol TEXT NOT NULL,
		range_from TEXT NOT NULL,
		range_to TEXT NOT NULL,
		currency TEXT,
		fetched_at DATETIME NOT NULL,
		UNIQUE(source, symbol, range_from, range_to)
	);

	-- Daily closes of a download
	CREATE TABLE IF NOT EXISTS prices (
		entry_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		close REAL NOT NULL,
		PRIMARY KEY (entry_id, date),
		FOREIGN KEY (entry_id) REFERENCES history_entries(id) ON DELETE CASCADE
	);

	-- Dividends of a download
	CREATE TABLE IF NOT EXISTS dividends (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entry_id INTEGER NOT NULL,
		ex_date TEXT NOT NULL,
		amount REAL NOT NULL,
		FOREIGN KEY (entry_id) REFERENCES history_entries(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_entries_symbol ON history_entries(symbol);
	CREATE INDEX IF NOT EXISTS idx_dividends_entry ON dividends(entry_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveHistory replaces the cached download for key.
func (s *SQLiteStore) SaveHistory(ctx context.Context, key CacheKey, hist *models.History) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	from, to := key.From.Format(models.DateLayout), key.To.Format(models.DateLayout)
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM history_entries WHERE source = ? AND symbol = ? AND range_from = ? AND range_to = ?
	`, key.Source, key.Symbol, from, to); err != nil {
		return fmt.Errorf("failed to delete previous entry: %w", err)
	}

	fetchedAt := hist.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO history_entries (source, symbol, range_from, range_to, currency, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, key.Source, key.Symbol, from, to, hist.Currency, fetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	entryID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read entry id: %w", err)
	}

	priceStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO prices (entry_id, date, close) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer priceStmt.Close()
	for _, p := range hist.Prices {
		if _, err := priceStmt.ExecContext(ctx, entryID, p.Date.Format(models.DateLayout), p.Close); err != nil {
			return fmt.Errorf("failed to insert price: %w", err)
		}
	}

	divStmt, err := tx.PrepareContext(ctx, `INSERT INTO dividends (entry_id, ex_date, amount) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer divStmt.Close()
	for _, d := range hist.Dividends {
		if _, err := divStmt.ExecContext(ctx, entryID, d.ExDate.Format(models.DateLayout), d.Amount); err != nil {
			return fmt.Errorf("failed to insert dividend: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetHistory loads the cached download for key.
func (s *SQLiteStore) GetHistory(ctx context.Context, key CacheKey) (*models.History, error) {
	var (
		entryID   int64
		currency  sql.NullString
		fetchedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, currency, fetched_at FROM history_entries
		WHERE source = ? AND symbol = ? AND range_from = ? AND range_to = ?
	`, key.Source, key.Symbol, key.From.Format(models.DateLayout), key.To.Format(models.DateLayout)).
		Scan(&entryID, &currency, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}

	hist := &models.History{
		Symbol:    key.Symbol,
		Currency:  currency.String,
		FetchedAt: fetchedAt,
		Source:    key.Source,
	}

	if hist.Prices, err = s.loadPrices(ctx, entryID); err != nil {
		return nil, err
	}
	if hist.Dividends, err = s.loadDividends(ctx, entryID); err != nil {
		return nil, err
	}
	return hist, nil
}

func (s *SQLiteStore) loadPrices(ctx context.Context, entryID int64) ([]models.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, close FROM prices WHERE entry_id = ? ORDER BY date ASC`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var prices []models.PricePoint
	for rows.Next() {
		var date string
		var p models.PricePoint
		if err := rows.Scan(&date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		if p.Date, err = models.ParseDate(date); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}
	return prices, nil
}

func (s *SQLiteStore) loadDividends(ctx context.Context, entryID int64) ([]models.DividendEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ex_date, amount FROM dividends WHERE entry_id = ? ORDER BY ex_date ASC, id ASC`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividends: %w", err)
	}
	defer rows.Close()

	var dividends []models.DividendEvent
	for rows.Next() {
		var date string
		var d models.DividendEvent
		if err := rows.Scan(&date, &d.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan dividend: %w", err)
		}
		if d.ExDate, err = models.ParseDate(date); err != nil {
			return nil, err
		}
		dividends = append(dividends, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dividends: %w", err)
	}
	return dividends, nil
}

// ListEntries returns every cached download, newest first.
func (s *SQLiteStore) ListEntries(ctx context.Context) ([]CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.source, e.symbol, e.range_from, e.range_to, e.currency, e.fetched_at,
			(SELECT COUNT(*) FROM prices p WHERE p.entry_id = e.id),
			(SELECT COUNT(*) FROM dividends d WHERE d.entry_id = e.id)
		FROM history_entries e
		ORDER BY e.fetched_at DESC, e.symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		var from, to string
		var currency sql.NullString
		if err := rows.Scan(&e.Key.Source, &e.Key.Symbol, &from, &to, &currency, &e.FetchedAt, &e.Prices, &e.Dividends); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if e.Key.From, err = models.ParseDate(from); err != nil {
			return nil, err
		}
		if e.Key.To, err = models.ParseDate(to); err != nil {
			return nil, err
		}
		e.Currency = currency.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

// DeleteSymbol removes every cached download of symbol.
func (s *SQLiteStore) DeleteSymbol(ctx context.Context, symbol string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history_entries WHERE symbol = ?`, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every cached download.
func (s *SQLiteStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history_entries`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear entries: %w", err)
	}
	return res.RowsAffected()
}
