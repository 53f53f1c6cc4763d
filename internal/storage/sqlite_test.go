package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"stockingest/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRow(ticker, date string, close float64) models.RawRow {
	d, _ := time.ParseInLocation(models.DateFormat, date, time.UTC)
	return models.RawRow{
		Ticker: ticker, Date: d,
		Open: close - 1, High: close + 1, Low: close - 2, Close: close,
		Volume: 1000, AdjClose: close,
	}
}

func TestUpsertThenQueryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows := []models.RawRow{
		testRow("AAPL", "2024-01-02", 185),
		testRow("AAPL", "2024-01-03", 186),
		testRow("AAPL", "2024-01-04", 184),
	}
	n, err := store.Upsert(ctx, rows)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows written, got %d", n)
	}

	got, err := store.Query(ctx, "AAPL", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Date.Before(got[i].Date) {
			t.Errorf("records not ordered by date ascending")
		}
	}
	if got[0].Close != 185 || got[0].Ticker != "AAPL" {
		t.Errorf("unexpected first record: %+v", got[0])
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("created_at must be stamped by the store")
	}
}

func TestUpsertIsIdempotentOnPrimaryKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, []models.RawRow{testRow("AAPL", "2024-01-02", 185)}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if _, err := store.Upsert(ctx, []models.RawRow{testRow("AAPL", "2024-01-02", 185)}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := store.Query(ctx, "AAPL", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected no duplicate on (ticker, date), got %d rows", len(got))
	}
}

func TestReUpsertOverwritesPricesButPreservesCreatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, []models.RawRow{testRow("AAPL", "2024-01-02", 185)}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	first, err := store.Query(ctx, "AAPL", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := store.Upsert(ctx, []models.RawRow{testRow("AAPL", "2024-01-02", 190)}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	second, err := store.Query(ctx, "AAPL", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if second[0].Close != 190 {
		t.Errorf("expected close overwritten to 190, got %v", second[0].Close)
	}
	if !second[0].CreatedAt.Equal(first[0].CreatedAt) {
		t.Errorf("created_at changed on re-ingestion: %v -> %v", first[0].CreatedAt, second[0].CreatedAt)
	}
}

func TestGetWatermark(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.GetWatermark(ctx, "AAPL"); err != nil || ok {
		t.Fatalf("expected absent watermark for empty store, got ok=%t err=%v", ok, err)
	}

	if _, err := store.Upsert(ctx, []models.RawRow{
		testRow("AAPL", "2024-01-02", 185),
		testRow("AAPL", "2024-01-10", 187),
		testRow("MSFT", "2024-02-20", 410),
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	wm, ok, err := store.GetWatermark(ctx, "AAPL")
	if err != nil || !ok {
		t.Fatalf("expected watermark, got ok=%t err=%v", ok, err)
	}
	want, _ := time.ParseInLocation(models.DateFormat, "2024-01-10", time.UTC)
	if !wm.Equal(want) {
		t.Errorf("expected watermark 2024-01-10, got %s", wm.Format(models.DateFormat))
	}
}

func TestQueryRangeBounds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, []models.RawRow{
		testRow("AAPL", "2024-01-02", 185),
		testRow("AAPL", "2024-01-03", 186),
		testRow("AAPL", "2024-01-04", 184),
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	start, _ := time.ParseInLocation(models.DateFormat, "2024-01-03", time.UTC)
	end, _ := time.ParseInLocation(models.DateFormat, "2024-01-03", time.UTC)
	got, err := store.Query(ctx, "AAPL", start, end)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 || got[0].Close != 186 {
		t.Errorf("expected single 2024-01-03 record, got %+v", got)
	}
}

func TestTickersAndSummary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, []models.RawRow{
		testRow("AAPL", "2024-01-02", 185),
		testRow("AAPL", "2024-01-03", 186),
		testRow("MSFT", "2024-02-20", 410),
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	tickers, err := store.Tickers(ctx)
	if err != nil {
		t.Fatalf("tickers failed: %v", err)
	}
	if len(tickers) != 2 || tickers[0] != "AAPL" || tickers[1] != "MSFT" {
		t.Errorf("unexpected tickers: %v", tickers)
	}

	summaries, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	aapl := summaries[0]
	if aapl.Ticker != "AAPL" || aapl.RowCount != 2 {
		t.Errorf("unexpected AAPL summary: %+v", aapl)
	}
	if aapl.StartDate.Format(models.DateFormat) != "2024-01-02" ||
		aapl.EndDate.Format(models.DateFormat) != "2024-01-03" {
		t.Errorf("unexpected AAPL coverage: %s..%s",
			aapl.StartDate.Format(models.DateFormat), aapl.EndDate.Format(models.DateFormat))
	}
	if aapl.LastUpdated.IsZero() {
		t.Error("expected last_updated to be set")
	}
}
