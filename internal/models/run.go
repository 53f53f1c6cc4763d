package models

import "time"

// TickerError records a failed ticker and the cause that stopped it. Failures
// are per-ticker; they never abort the surrounding run.
type TickerError struct {
	Ticker string `json:"ticker"`
	Cause  string `json:"cause"`
}

// RunSummary is the aggregate result of one pipeline invocation. It is built
// incrementally by the orchestrator and immutable once returned.
type RunSummary struct {
	TickersRequested  int           `json:"tickers_requested"`
	TickersProcessed  int           `json:"tickers_processed"`
	TickersFailed     int           `json:"tickers_failed"`
	TotalRowsInserted int           `json:"total_rows_inserted"`
	TotalRowsRejected int           `json:"total_rows_rejected"`
	Errors            []TickerError `json:"errors"`
	Warnings          []Warning     `json:"warnings"`
	Duration          time.Duration `json:"duration_ns"`
}
