package models

// ErrorResponse is the standard error payload for API responses
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RunRequest is the body of POST /ingest/run
type RunRequest struct {
	Tickers      []string `json:"tickers" binding:"required,min=1"`
	StartDate    string   `json:"start_date"` // YYYY-MM-DD, optional
	EndDate      string   `json:"end_date"`   // YYYY-MM-DD, optional
	Incremental  *bool    `json:"incremental"`   // default true
	ValidateOnly bool     `json:"validate_only"` // default false
}

// PricesResponse is the payload of GET /prices/:ticker
type PricesResponse struct {
	Ticker string        `json:"ticker"`
	Count  int           `json:"count"`
	Prices []PriceRecord `json:"prices"`
}

// SummaryResponse is the payload of GET /summary
type SummaryResponse struct {
	Tickers []TickerSummary `json:"tickers"`
}
