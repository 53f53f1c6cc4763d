package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"stockingest/internal/models"
)

const createStockPricesPGSQL = `
CREATE TABLE IF NOT EXISTS stock_prices (
	ticker     VARCHAR NOT NULL,
	date       DATE NOT NULL,
	open       DOUBLE PRECISION,
	high       DOUBLE PRECISION,
	low        DOUBLE PRECISION,
	close      DOUBLE PRECISION,
	volume     BIGINT,
	adj_close  DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (ticker, date)
)`

// PostgresStore persists price data in PostgreSQL. The pool allows concurrent
// reads; upserts are serialized through a mutex to keep the single-writer
// discipline identical across backends.
type PostgresStore struct {
	pool    *pgxpool.Pool
	writeMu sync.Mutex
}

// NewPostgresStore connects to the database at url and ensures the schema
// exists.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, createStockPricesPGSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create stock_prices table: %w", err)
	}

	log.Info("postgres store ready")
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// GetWatermark returns the maximum stored date for ticker.
func (s *PostgresStore) GetWatermark(ctx context.Context, ticker string) (time.Time, bool, error) {
	var wm time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT date FROM stock_prices WHERE ticker = $1 ORDER BY date DESC LIMIT 1`, ticker,
	).Scan(&wm)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read watermark for %s: %w", ticker, err)
	}
	return wm.UTC(), true, nil
}

// Upsert writes the batch inside one transaction using a pgx batch. Existing
// (ticker, date) rows get their measurement columns overwritten; created_at
// keeps its first value.
func (s *PostgresStore) Upsert(ctx context.Context, rows []models.RawRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO stock_prices (ticker, date, open, high, low, close, volume, adj_close, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ticker, date) DO UPDATE
		SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
		    close = EXCLUDED.close, volume = EXCLUDED.volume, adj_close = EXCLUDED.adj_close`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query, r.Ticker, r.Date, r.Open, r.High, r.Low, r.Close, r.Volume, r.AdjClose, now)
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("failed to upsert price row: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}

	log.Infof("upserted %d rows for %s", len(rows), rows[0].Ticker)
	return len(rows), nil
}

// Query returns stored records for ticker ordered by date ascending.
func (s *PostgresStore) Query(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceRecord, error) {
	query := `SELECT ticker, date, open, high, low, close, volume, adj_close, created_at
		FROM stock_prices WHERE ticker = $1`
	args := []any{ticker}

	if !start.IsZero() {
		args = append(args, start)
		query += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if !end.IsZero() {
		args = append(args, end)
		query += fmt.Sprintf(` AND date <= $%d`, len(args))
	}
	query += ` ORDER BY date ASC`

	rows, err := s.pool.Query(ctx, query, args...)
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
		rec.Date = rec.Date.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Tickers returns all distinct tickers present in the store.
func (s *PostgresStore) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT ticker FROM stock_prices ORDER BY ticker`)
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
func (s *PostgresStore) Summary(ctx context.Context) ([]models.TickerSummary, error) {
	rows, err := s.pool.Query(ctx, `
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
		if err := rows.Scan(&ts.Ticker, &ts.StartDate, &ts.EndDate, &ts.RowCount, &ts.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summaries = append(summaries, ts)
	}
	return summaries, rows.Err()
}
