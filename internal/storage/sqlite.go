package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"stockingest/internal/models"
)

const createStockPricesSQL = `
CREATE TABLE IF NOT EXISTS stock_prices (
	ticker     VARCHAR NOT NULL,
	date       DATE NOT NULL,
	open       DOUBLE,
	high       DOUBLE,
	low        DOUBLE,
	close      DOUBLE,
	volume     BIGINT,
	adj_close  DOUBLE,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (ticker, date)
)`

// SQLiteStore persists price data in an embedded SQLite database file.
// A single RWMutex serializes writers; reads may proceed concurrently.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if needed) the database at path and ensures
// the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.Exec(createStockPricesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stock_prices table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_stock_prices_date ON stock_prices(date)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create date index: %w", err)
	}

	log.Infof("sqlite store ready at %s", path)
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetWatermark returns the maximum stored date for ticker.
func (s *SQLiteStore) GetWatermark(ctx context.Context, ticker string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM stock_prices WHERE ticker = ?`, ticker,
	).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read watermark for %s: %w", ticker, err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}

	wm, err := time.ParseInLocation(models.DateFormat, last.String, time.UTC)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse watermark %q for %s: %w", last.String, ticker, err)
	}
	return wm, true, nil
}

// Upsert writes the batch inside one transaction. Existing (ticker, date) rows
// get their measurement columns overwritten; created_at keeps its first value.
func (s *SQLiteStore) Upsert(ctx context.Context, rows []models.RawRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stock_prices (ticker, date, open, high, low, close, volume, adj_close, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			adj_close = excluded.adj_close`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.Ticker, r.Date.Format(models.DateFormat),
			r.Open, r.High, r.Low, r.Close, r.Volume, r.AdjClose, now,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert %s %s: %w", r.Ticker, r.Date.Format(models.DateFormat), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}

	log.Infof("upserted %d rows for %s", len(rows), rows[0].Ticker)
	return len(rows), nil
}

// Query returns stored records for ticker ordered by date ascending.
func (s *SQLiteStore) Query(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ticker, date, open, high, low, close, volume, adj_close, created_at
		FROM stock_prices WHERE ticker = ?`
	args := []any{ticker}

	if !start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, start.Format(models.DateFormat))
	}
	if !end.IsZero() {
		query += ` AND date <= ?`
		args = append(args, end.Format(models.DateFormat))
	}
	query += ` ORDER BY date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", ticker, err)
	}
	defer rows.Close()

	var records []models.PriceRecord
	for rows.Next() {
		var rec models.PriceRecord
		if err := rows.Scan(&rec.Ticker, &rec.Date, &rec.Open, &rec.High, &rec.Low,
			&rec.Close, &rec.Volume, &rec.AdjClose, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Tickers returns all distinct tickers present in the store.
func (s *SQLiteStore) Tickers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM stock_prices ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// Summary returns per-ticker date coverage and row counts.
func (s *SQLiteStore) Summary(ctx context.Context) ([]models.TickerSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, MIN(date), MAX(date), COUNT(*), MAX(created_at)
		FROM stock_prices
		GROUP BY ticker
		ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.TickerSummary
	for rows.Next() {
		var ts models.TickerSummary
		var minDate, maxDate, updated string
		if err := rows.Scan(&ts.Ticker, &minDate, &maxDate, &ts.RowCount, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		if ts.StartDate, err = time.ParseInLocation(models.DateFormat, minDate, time.UTC); err != nil {
			return nil, fmt.Errorf("failed to parse summary start date %q: %w", minDate, err)
		}
		if ts.EndDate, err = time.ParseInLocation(models.DateFormat, maxDate, time.UTC); err != nil {
			return nil, fmt.Errorf("failed to parse summary end date %q: %w", maxDate, err)
		}
		if ts.LastUpdated, err = parseSQLiteTimestamp(updated); err != nil {
			return nil, err
		}
		summaries = append(summaries, ts)
	}
	return summaries, rows.Err()
}

// parseSQLiteTimestamp parses a timestamp coming back from an aggregate
// expression, where the driver returns raw text instead of time.Time.
func parseSQLiteTimestamp(s string) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q", s)
}
