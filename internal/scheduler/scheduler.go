// Package scheduler runs the daily incremental ingestion job for the
// configured ticker set.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"

	"stockingest/internal/ingest"
	"stockingest/internal/models"
)

// Runner is the pipeline surface the scheduler needs; satisfied by
// *ingest.Pipeline.
type Runner interface {
	Run(ctx context.Context, opts ingest.Options) *models.RunSummary
}

// Scheduler manages the daily ingestion job
type Scheduler struct {
	cron     *gocron.Scheduler
	pipeline Runner
	tickers  []string
	at       string // "HH:MM"
}

// New creates a scheduler that ingests tickers incrementally every day at the
// given wall-clock time.
func New(pipeline Runner, tickers []string, at string) *Scheduler {
	return &Scheduler{
		cron:     gocron.NewScheduler(time.UTC),
		pipeline: pipeline,
		tickers:  tickers,
		at:       at,
	}
}

// Start registers the daily job and begins running it asynchronously.
func (s *Scheduler) Start() error {
	_, err := s.cron.Every(1).Day().At(s.at).Do(s.runIncremental)
	if err != nil {
		return err
	}
	s.cron.StartAsync()
	log.Infof("scheduler started: daily incremental ingestion of %d tickers at %s", len(s.tickers), s.at)
	return nil
}

// Stop stops the scheduler, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info("scheduler stopped")
}

func (s *Scheduler) runIncremental() {
	summary := s.pipeline.Run(context.Background(), ingest.Options{
		Tickers:     s.tickers,
		Incremental: true,
	})
	if summary.TickersFailed > 0 {
		log.Warnf("scheduled run finished with %d failed tickers", summary.TickersFailed)
	}
}
