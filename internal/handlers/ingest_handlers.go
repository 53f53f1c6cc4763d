package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"stockingest/internal/ingest"
	"stockingest/internal/models"
	"stockingest/internal/storage"
)

// Runner is the pipeline surface the handler needs; satisfied by
// *ingest.Pipeline.
type Runner interface {
	Run(ctx context.Context, opts ingest.Options) *models.RunSummary
}

// IngestHandler handles ingestion and query endpoints
type IngestHandler struct {
	pipeline Runner
	store    storage.Store
	// runGate admits one pipeline run at a time; the store is single-writer
	// and overlapping runs would only queue on its mutex anyway.
	runGate *semaphore.Weighted
}

// NewIngestHandler creates a new IngestHandler
func NewIngestHandler(pipeline Runner, store storage.Store) *IngestHandler {
	return &IngestHandler{
		pipeline: pipeline,
		store:    store,
		runGate:  semaphore.NewWeighted(1),
	}
}

// Run handles POST /ingest/run
// @Summary Run the ingestion pipeline for a set of tickers
// @Router /ingest/run [post]
func (h *IngestHandler) Run(c *gin.Context) {
	var req models.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	opts := ingest.Options{
		Tickers:      req.Tickers,
		Incremental:  true,
		ValidateOnly: req.ValidateOnly,
	}
	if req.Incremental != nil {
		opts.Incremental = *req.Incremental
	}

	var err error
	if opts.StartDate, err = parseDate(req.StartDate); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "start_date must be YYYY-MM-DD",
		})
		return
	}
	if opts.EndDate, err = parseDate(req.EndDate); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "end_date must be YYYY-MM-DD",
		})
		return
	}

	if !h.runGate.TryAcquire(1) {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "run_in_progress",
			Message: "another ingestion run is already in progress",
		})
		return
	}
	defer h.runGate.Release(1)

	summary := h.pipeline.Run(c.Request.Context(), opts)
	c.JSON(http.StatusOK, summary)
}

// GetPrices handles GET /prices/:ticker
// @Summary Query stored daily prices for a ticker
// @Router /prices/{ticker} [get]
func (h *IngestHandler) GetPrices(c *gin.Context) {
	ticker := c.Param("ticker")

	start, err := parseDate(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "start must be YYYY-MM-DD",
		})
		return
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "end must be YYYY-MM-DD",
		})
		return
	}

	prices, err := h.store.Query(c.Request.Context(), ticker, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.PricesResponse{
		Ticker: ticker,
		Count:  len(prices),
		Prices: prices,
	})
}

// GetTickers handles GET /tickers
// @Summary List all tickers present in the store
// @Router /tickers [get]
func (h *IngestHandler) GetTickers(c *gin.Context) {
	tickers, err := h.store.Tickers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickers": tickers})
}

// GetSummary handles GET /summary
// @Summary Per-ticker date coverage and row counts
// @Router /summary [get]
func (h *IngestHandler) GetSummary(c *gin.Context) {
	summaries, err := h.store.Summary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, models.SummaryResponse{Tickers: summaries})
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(models.DateFormat, s, time.UTC)
}
