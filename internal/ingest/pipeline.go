// Package ingest implements the incremental ingestion pipeline: per-ticker
// range resolution against the store's watermark, retried downloads, two-stage
// validation, and idempotent upserts.
package ingest

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"stockingest/internal/models"
	"stockingest/internal/storage"
	"stockingest/internal/util"
)

// tickerState tracks one ticker's progress through the pipeline. Failure is
// terminal and reachable from any non-terminal state.
type tickerState string

const (
	statePending       tickerState = "pending"
	stateRangeResolved tickerState = "range_resolved"
	stateFetched       tickerState = "fetched"
	stateValidated     tickerState = "validated"
	stateStored        tickerState = "stored"
	stateFailed        tickerState = "failed"
)

// Options parameterizes one pipeline run.
type Options struct {
	Tickers      []string
	StartDate    time.Time // zero means resolve from watermark / default lookback
	EndDate      time.Time // zero means today
	Incremental  bool
	ValidateOnly bool // validate and report without writing
}

// Pipeline orchestrates ingestion for a set of tickers. Tickers are processed
// sequentially in caller order; one ticker's failure never aborts the run.
type Pipeline struct {
	store        storage.Store
	downloader   *Downloader
	validator    *Validator
	historyYears int
	now          func() time.Time
}

// NewPipeline creates a Pipeline. historyYears is the lookback used for a
// ticker's first load.
func NewPipeline(store storage.Store, downloader *Downloader, validator *Validator, historyYears int) *Pipeline {
	return &Pipeline{
		store:        store,
		downloader:   downloader,
		validator:    validator,
		historyYears: historyYears,
		now:          time.Now,
	}
}

// Run processes every requested ticker and returns the aggregate summary.
// It never returns an error: per-ticker failures are recorded in the summary.
func (p *Pipeline) Run(ctx context.Context, opts Options) *models.RunSummary {
	started := p.now()
	log.Infof("starting pipeline for %d tickers (incremental=%t validate_only=%t)",
		len(opts.Tickers), opts.Incremental, opts.ValidateOnly)

	summary := &models.RunSummary{TickersRequested: len(opts.Tickers)}

	for _, ticker := range opts.Tickers {
		res := p.processTicker(ctx, ticker, opts)

		summary.TotalRowsInserted += res.inserted
		summary.TotalRowsRejected += res.rejected
		summary.Warnings = append(summary.Warnings, res.warnings...)

		if res.err != nil {
			log.Errorf("ticker %s failed in state %s: %v", ticker, res.state, res.err)
			summary.TickersFailed++
			summary.Errors = append(summary.Errors, models.TickerError{
				Ticker: ticker,
				Cause:  res.err.Error(),
			})
			continue
		}
		summary.TickersProcessed++
	}

	summary.Duration = p.now().Sub(started)
	logSummary(summary)
	return summary
}

// tickerResult is the outcome of one ticker's pass through the state machine.
type tickerResult struct {
	state    tickerState
	inserted int
	rejected int
	warnings []models.Warning
	err      error
}

func (p *Pipeline) processTicker(ctx context.Context, ticker string, opts Options) tickerResult {
	res := tickerResult{state: statePending}

	start, end, err := p.resolveRange(ctx, ticker, opts)
	if err != nil {
		res.state = stateFailed
		res.err = err
		return res
	}
	res.state = stateRangeResolved

	// An empty effective range means the ticker is already up to date.
	if start.After(end) {
		log.Infof("%s is already up to date", ticker)
		res.state = stateStored
		return res
	}

	rows, err := p.downloader.Download(ctx, ticker, start, end)
	if err != nil {
		res.state = stateFailed
		res.err = err
		return res
	}
	res.state = stateFetched

	cleaned, report, err := p.validator.Validate(ticker, rows)
	if err != nil {
		res.state = stateFailed
		res.err = err
		return res
	}
	res.state = stateValidated
	res.rejected = len(report.Rejections)
	res.warnings = report.Warnings

	if opts.ValidateOnly {
		log.Infof("validate-only mode: skipped storage for %s (%d rows would be written)", ticker, len(cleaned))
		return res
	}

	inserted, err := p.store.Upsert(ctx, cleaned)
	if err != nil {
		res.state = stateFailed
		res.err = fmt.Errorf("storage failure: %w", err)
		return res
	}
	res.state = stateStored
	res.inserted = inserted
	return res
}

// resolveRange computes the effective [start, end] for one ticker. Incremental
// mode consults the watermark only when the caller did not supply a start; a
// full refresh uses the caller's range verbatim.
func (p *Pipeline) resolveRange(ctx context.Context, ticker string, opts Options) (time.Time, time.Time, error) {
	end := opts.EndDate
	if end.IsZero() {
		end = util.TruncateToDay(p.now())
	}

	if !opts.StartDate.IsZero() {
		return opts.StartDate, end, nil
	}
	if !opts.Incremental {
		return util.DefaultHistoricalStart(p.now(), p.historyYears), end, nil
	}

	watermark, ok, err := p.store.GetWatermark(ctx, ticker)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to resolve range: %w", err)
	}
	if !ok {
		log.Infof("no existing data for %s, performing full historical load", ticker)
		return util.DefaultHistoricalStart(p.now(), p.historyYears), end, nil
	}

	start := util.TruncateToDay(watermark).AddDate(0, 0, 1)
	log.Infof("incremental load for %s from %s", ticker, start.Format(models.DateFormat))
	return start, end, nil
}

func logSummary(s *models.RunSummary) {
	log.WithFields(log.Fields{
		"requested":     s.TickersRequested,
		"processed":     s.TickersProcessed,
		"failed":        s.TickersFailed,
		"rows_inserted": s.TotalRowsInserted,
		"rows_rejected": s.TotalRowsRejected,
		"duration":      s.Duration.Round(time.Millisecond).String(),
	}).Info("pipeline run complete")
}
