package models

// WarningCode categorizes validation warnings.
type WarningCode string

const (
	WarnLowRowCount  WarningCode = "W2001" // batch retained fewer rows than the configured minimum
	WarnDateGap      WarningCode = "W2002" // consecutive retained dates more than 7 calendar days apart
	WarnRowsRejected WarningCode = "W2003" // quality cleaning dropped one or more rows
)

// Warning represents a non-fatal issue encountered during processing.
type Warning struct {
	Code    WarningCode `json:"code"`
	Ticker  string      `json:"ticker,omitempty"`
	Message string      `json:"message"`
}
