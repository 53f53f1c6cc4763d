// Package storage owns the stock_prices table: watermark reads, set-based
// upserts keyed on (ticker, date), and range scans. Two backends implement the
// same contract: an embedded SQLite file (the default) and PostgreSQL.
package storage

import (
	"context"
	"fmt"
	"time"

	"stockingest/config"
	"stockingest/internal/models"
)

// Store is the persistence contract the pipeline writes through.
//
// Upsert is atomic per call: either the whole batch commits or none of it
// does. Re-upserting an existing (ticker, date) overwrites the measurement
// columns but leaves created_at at its original value, so re-ingestion never
// falsifies ingestion history. Writes are serialized: one writer at a time.
type Store interface {
	// GetWatermark returns the maximum stored date for ticker. ok is false
	// when the ticker has never been ingested.
	GetWatermark(ctx context.Context, ticker string) (watermark time.Time, ok bool, err error)

	// Upsert writes a batch of cleaned rows and returns the number written.
	Upsert(ctx context.Context, rows []models.RawRow) (int, error)

	// Query returns stored records for ticker ordered by date ascending.
	// Zero start/end values leave that bound open.
	Query(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceRecord, error)

	// Tickers returns all distinct tickers present in the store.
	Tickers(ctx context.Context) ([]string, error)

	// Summary returns per-ticker date coverage and row counts.
	Summary(ctx context.Context) ([]models.TickerSummary, error)

	Close() error
}

// Open creates the store selected by cfg.DBDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		return NewSQLiteStore(cfg.DBPath)
	case "postgres":
		return NewPostgresStore(ctx, cfg.PGURL)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
