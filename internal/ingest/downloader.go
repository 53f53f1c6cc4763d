package ingest

import (
	"context"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"stockingest/internal/models"
	"stockingest/internal/provider"
)

// Downloader wraps a provider.Fetcher with bounded retry and exponential
// backoff. Only transient failures are retried; permanent failures and empty
// ranges surface immediately.
type Downloader struct {
	fetcher    provider.Fetcher
	maxRetries int
	baseDelay  time.Duration
	sleep      func(time.Duration)
}

// NewDownloader creates a Downloader. maxRetries is the total attempt count,
// baseDelay the first backoff interval; each subsequent interval doubles.
func NewDownloader(fetcher provider.Fetcher, maxRetries int, baseDelay time.Duration) *Downloader {
	return &Downloader{
		fetcher:    fetcher,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		sleep:      time.Sleep,
	}
}

// Download fetches daily bars for ticker over [start, end] and returns them
// sorted by date ascending.
func (d *Downloader) Download(ctx context.Context, ticker string, start, end time.Time) ([]models.RawRow, error) {
	log.Infof("downloading %s from %s to %s", ticker, start.Format(models.DateFormat), end.Format(models.DateFormat))

	var lastErr error
	delay := d.baseDelay

	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		rows, err := d.fetcher.Fetch(ctx, ticker, start, end)
		if err == nil {
			sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
			log.Infof("downloaded %d rows for %s", len(rows), ticker)
			return rows, nil
		}

		if !provider.IsTransient(err) {
			return nil, err
		}

		lastErr = err
		log.Warnf("attempt %d/%d failed for %s: %v", attempt, d.maxRetries, ticker, err)

		if attempt < d.maxRetries {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.sleep(delay)
			delay *= 2
		}
	}

	log.Errorf("giving up on %s after %d attempts", ticker, d.maxRetries)
	return nil, lastErr
}
