package models

import (
	"time"
)

// DateFormat is the calendar-date layout used throughout the ingestion path.
// Prices are daily bars; no time component is ever stored.
const DateFormat = "2006-01-02"

// RawRow is one provider bar after mapping at the downloader boundary.
// Provider-specific response shapes never travel past that boundary; the
// validator and the store only ever see this form.
type RawRow struct {
	Ticker   string
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   int64
	AdjClose float64
}

// PriceRecord is one stored trading day for one ticker. (Ticker, Date) is the
// primary key; CreatedAt is stamped by the store on first insert and preserved
// across re-ingestion of the same day.
type PriceRecord struct {
	Ticker    string    `json:"ticker"`
	Date      time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	AdjClose  float64   `json:"adj_close"`
	CreatedAt time.Time `json:"created_at"`
}

// TickerSummary describes the stored date coverage for one ticker.
type TickerSummary struct {
	Ticker      string    `json:"ticker"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	RowCount    int64     `json:"row_count"`
	LastUpdated time.Time `json:"last_updated"`
}
