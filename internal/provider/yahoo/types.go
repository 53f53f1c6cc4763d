package yahoo

// ChartResponse represents the Yahoo Finance v8 chart response envelope
type ChartResponse struct {
	Chart Chart `json:"chart"`
}

// Chart holds either a result or an error, never both
type Chart struct {
	Result []ChartResult `json:"result"`
	Error  *ChartError   `json:"error"`
}

// ChartError is the in-band error Yahoo returns with a 200 or 404 status
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartResult is one symbol's chart data
type ChartResult struct {
	Meta       ChartMeta  `json:"meta"`
	Timestamps []int64    `json:"timestamp"`
	Indicators Indicators `json:"indicators"`
}

// ChartMeta carries symbol-level metadata; only the fields we read
type ChartMeta struct {
	Symbol           string `json:"symbol"`
	ExchangeTimezone string `json:"exchangeTimezoneName"`
}

// Indicators holds the parallel OHLCV arrays
type Indicators struct {
	Quote    []Quote    `json:"quote"`
	AdjClose []AdjClose `json:"adjclose"`
}

// Quote holds per-day arrays parallel to ChartResult.Timestamps
type Quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// AdjClose holds the split/dividend adjusted close array
type AdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}
