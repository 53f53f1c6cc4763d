package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"stockingest/config"
	"stockingest/internal/handlers"
	"stockingest/internal/ingest"
	"stockingest/internal/provider/yahoo"
	"stockingest/internal/scheduler"
	"stockingest/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	// Open the price store. This is the only unrecoverable failure: a run can
	// survive any single ticker, but not a store that will not open.
	ctx := context.Background()
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Wire the pipeline
	client := yahoo.NewClient()
	if cfg.ProviderURL != "" {
		client = yahoo.NewClientWithBaseURL(cfg.ProviderURL)
	}
	downloader := ingest.NewDownloader(client, cfg.MaxRetries, cfg.RetryDelay)
	validator := ingest.NewValidator(cfg.MinRows)
	pipeline := ingest.NewPipeline(store, downloader, validator, cfg.HistoryYears)

	// Start the daily job when a ticker set is configured
	if len(cfg.IngestTickers) > 0 {
		sched := scheduler.New(pipeline, cfg.IngestTickers, cfg.ScheduleAt)
		if err := sched.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		defer sched.Stop()
	}

	// Setup Gin router
	ingestHandler := handlers.NewIngestHandler(pipeline, store)
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/ingest/run", ingestHandler.Run)
	router.GET("/prices/:ticker", ingestHandler.GetPrices)
	router.GET("/tickers", ingestHandler.GetTickers)
	router.GET("/summary", ingestHandler.GetSummary)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Give outstanding requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
