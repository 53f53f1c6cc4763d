package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"stockingest/internal/ingest"
	"stockingest/internal/models"
)

// fakeRunner records the options it was called with and optionally blocks
// until released, to exercise the run gate.
type fakeRunner struct {
	mu      sync.Mutex
	lastOpt ingest.Options
	block   chan struct{}
	summary *models.RunSummary
}

func (r *fakeRunner) Run(ctx context.Context, opts ingest.Options) *models.RunSummary {
	r.mu.Lock()
	r.lastOpt = opts
	r.mu.Unlock()
	if r.block != nil {
		<-r.block
	}
	if r.summary != nil {
		return r.summary
	}
	return &models.RunSummary{TickersRequested: len(opts.Tickers), TickersProcessed: len(opts.Tickers)}
}

// fakeQueryStore stubs the read surface the handler uses.
type fakeQueryStore struct {
	prices    []models.PriceRecord
	tickers   []string
	summaries []models.TickerSummary
}

func (s *fakeQueryStore) GetWatermark(ctx context.Context, ticker string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (s *fakeQueryStore) Upsert(ctx context.Context, rows []models.RawRow) (int, error) {
	return 0, nil
}

func (s *fakeQueryStore) Query(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceRecord, error) {
	return s.prices, nil
}

func (s *fakeQueryStore) Tickers(ctx context.Context) ([]string, error) { return s.tickers, nil }

func (s *fakeQueryStore) Summary(ctx context.Context) ([]models.TickerSummary, error) {
	return s.summaries, nil
}

func (s *fakeQueryStore) Close() error { return nil }

func setupRouter(runner *fakeRunner, store *fakeQueryStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewIngestHandler(runner, store)

	router := gin.New()
	router.POST("/ingest/run", h.Run)
	router.GET("/prices/:ticker", h.GetPrices)
	router.GET("/tickers", h.GetTickers)
	router.GET("/summary", h.GetSummary)
	return router
}

func TestRunEndpointDefaults(t *testing.T) {
	runner := &fakeRunner{}
	router := setupRouter(runner, &fakeQueryStore{})

	body := `{"tickers": ["AAPL", "MSFT"]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ingest/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !runner.lastOpt.Incremental {
		t.Error("incremental must default to true")
	}
	if runner.lastOpt.ValidateOnly {
		t.Error("validate_only must default to false")
	}
	if len(runner.lastOpt.Tickers) != 2 {
		t.Errorf("unexpected tickers: %v", runner.lastOpt.Tickers)
	}

	var summary models.RunSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("response is not a RunSummary: %v", err)
	}
	if summary.TickersProcessed != 2 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestRunEndpointParsesDatesAndFlags(t *testing.T) {
	runner := &fakeRunner{}
	router := setupRouter(runner, &fakeQueryStore{})

	body := `{"tickers": ["NVDA"], "start_date": "2023-01-01", "end_date": "2023-12-31",
		"incremental": false, "validate_only": true}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ingest/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if runner.lastOpt.Incremental {
		t.Error("incremental=false not honored")
	}
	if !runner.lastOpt.ValidateOnly {
		t.Error("validate_only=true not honored")
	}
	if runner.lastOpt.StartDate.Format(models.DateFormat) != "2023-01-01" {
		t.Errorf("unexpected start: %v", runner.lastOpt.StartDate)
	}
	if runner.lastOpt.EndDate.Format(models.DateFormat) != "2023-12-31" {
		t.Errorf("unexpected end: %v", runner.lastOpt.EndDate)
	}
}

func TestRunEndpointValidation(t *testing.T) {
	router := setupRouter(&fakeRunner{}, &fakeQueryStore{})

	tests := []struct {
		name string
		body string
	}{
		{"missing tickers", `{}`},
		{"empty tickers", `{"tickers": []}`},
		{"bad start date", `{"tickers": ["AAPL"], "start_date": "01/02/2024"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/ingest/run", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestRunEndpointRejectsConcurrentRuns(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	router := setupRouter(runner, &fakeQueryStore{})

	body := `{"tickers": ["AAPL"]}`
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ingest/run", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
	}()

	// wait for the first run to take the gate
	deadline := time.After(time.Second)
	for {
		runner.mu.Lock()
		started := len(runner.lastOpt.Tickers) > 0
		runner.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first run never started")
		case <-time.After(time.Millisecond):
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ingest/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 while a run is in progress, got %d", w.Code)
	}

	close(runner.block)
	<-firstDone
}

func TestGetPrices(t *testing.T) {
	store := &fakeQueryStore{prices: []models.PriceRecord{
		{Ticker: "AAPL", Close: 185},
		{Ticker: "AAPL", Close: 186},
	}}
	router := setupRouter(&fakeRunner{}, store)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/prices/AAPL?start=2024-01-01", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp models.PricesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Ticker != "AAPL" || resp.Count != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestGetPricesRejectsBadDates(t *testing.T) {
	router := setupRouter(&fakeRunner{}, &fakeQueryStore{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/prices/AAPL?start=yesterday", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestGetTickersAndSummary(t *testing.T) {
	store := &fakeQueryStore{
		tickers:   []string{"AAPL", "MSFT"},
		summaries: []models.TickerSummary{{Ticker: "AAPL", RowCount: 10}},
	}
	router := setupRouter(&fakeRunner{}, store)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tickers", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "MSFT") {
		t.Errorf("unexpected tickers response: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/summary", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp models.SummaryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(resp.Tickers) != 1 || resp.Tickers[0].RowCount != 10 {
		t.Errorf("unexpected summary: %+v", resp)
	}
}
