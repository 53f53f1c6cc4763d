package ingest

import (
	"fmt"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"stockingest/internal/models"
)

// gapThreshold is the calendar-day spacing between consecutive retained rows
// beyond which a gap warning is emitted. A week absorbs weekends and single
// holidays; anything longer is worth flagging.
const gapThreshold = 7 * 24 * time.Hour

// SchemaError reports a batch that failed structural validation. The whole
// batch is rejected; there is no partial acceptance at this stage.
type SchemaError struct {
	Ticker string
	Issues []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed for %s: %s", e.Ticker, strings.Join(e.Issues, "; "))
}

// RowRejection identifies one row dropped by quality cleaning.
type RowRejection struct {
	Index  int       `json:"index"`
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// ValidationReport summarizes one batch's trip through validation. It is
// ephemeral: folded into the run summary and discarded, never persisted.
type ValidationReport struct {
	InputRows  int
	PassedRows int
	Rejections []RowRejection
	Warnings   []models.Warning
}

// Validator enforces schema conformance and quality rules on one ticker's
// batch. Both stages are pure functions over their input; a Validator holds
// configuration only.
type Validator struct {
	minRows int
}

// NewValidator creates a Validator. minRows is the retained-row count below
// which a batch gets a low-row-count warning.
func NewValidator(minRows int) *Validator {
	return &Validator{minRows: minRows}
}

// Validate runs the schema gate and then quality cleaning. On a schema error
// the returned rows and report are nil and the whole batch is rejected.
func (v *Validator) Validate(ticker string, rows []models.RawRow) ([]models.RawRow, *ValidationReport, error) {
	if err := v.validateSchema(ticker, rows); err != nil {
		log.Errorf("schema validation failed for %s: %v", ticker, err)
		return nil, nil, err
	}
	cleaned, report := v.clean(ticker, rows)
	return cleaned, report, nil
}

// validateSchema is the hard structural gate: every row must carry the batch's
// ticker, a real calendar date, and finite numeric fields.
func (v *Validator) validateSchema(ticker string, rows []models.RawRow) error {
	var issues []string
	for i, row := range rows {
		if row.Ticker == "" {
			issues = append(issues, fmt.Sprintf("row %d: missing ticker", i))
		} else if row.Ticker != ticker {
			issues = append(issues, fmt.Sprintf("row %d: ticker %q does not match batch ticker %q", i, row.Ticker, ticker))
		}
		if row.Date.IsZero() {
			issues = append(issues, fmt.Sprintf("row %d: missing date", i))
		}
		for _, f := range []struct {
			name  string
			value float64
		}{
			{"open", row.Open}, {"high", row.High}, {"low", row.Low},
			{"close", row.Close}, {"adj_close", row.AdjClose},
		} {
			if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
				issues = append(issues, fmt.Sprintf("row %d: non-numeric %s", i, f.name))
			}
		}
	}
	if len(issues) > 0 {
		return &SchemaError{Ticker: ticker, Issues: issues}
	}
	return nil
}

// clean applies row-level quality rules in arrival order: drop negative prices
// or volume, drop high < low, drop in-batch duplicate dates keeping the first
// occurrence. Warnings never remove rows.
func (v *Validator) clean(ticker string, rows []models.RawRow) ([]models.RawRow, *ValidationReport) {
	report := &ValidationReport{InputRows: len(rows)}
	seen := make(map[string]bool, len(rows))
	cleaned := make([]models.RawRow, 0, len(rows))

	for i, row := range rows {
		if reason := rejectReason(row, seen); reason != "" {
			report.Rejections = append(report.Rejections, RowRejection{Index: i, Date: row.Date, Reason: reason})
			continue
		}
		seen[row.Date.Format(models.DateFormat)] = true
		cleaned = append(cleaned, row)
	}
	report.PassedRows = len(cleaned)

	if n := len(report.Rejections); n > 0 {
		log.Warnf("dropped %d invalid rows for %s", n, ticker)
		report.Warnings = append(report.Warnings, models.Warning{
			Code:    models.WarnRowsRejected,
			Ticker:  ticker,
			Message: fmt.Sprintf("dropped %d of %d rows", n, len(rows)),
		})
	}
	if len(cleaned) < v.minRows {
		report.Warnings = append(report.Warnings, models.Warning{
			Code:    models.WarnLowRowCount,
			Ticker:  ticker,
			Message: fmt.Sprintf("only %d rows retained (minimum %d)", len(cleaned), v.minRows),
		})
	}
	if gaps := countGaps(cleaned); gaps > 0 {
		report.Warnings = append(report.Warnings, models.Warning{
			Code:    models.WarnDateGap,
			Ticker:  ticker,
			Message: fmt.Sprintf("found %d date gaps larger than 7 days", gaps),
		})
	}

	return cleaned, report
}

func rejectReason(row models.RawRow, seen map[string]bool) string {
	if row.Open < 0 || row.High < 0 || row.Low < 0 || row.Close < 0 || row.AdjClose < 0 {
		return "negative price"
	}
	if row.Volume < 0 {
		return "negative volume"
	}
	if row.High < row.Low {
		return "high < low"
	}
	if seen[row.Date.Format(models.DateFormat)] {
		return "duplicate date"
	}
	return ""
}

func countGaps(rows []models.RawRow) int {
	gaps := 0
	for i := 1; i < len(rows); i++ {
		if rows[i].Date.Sub(rows[i-1].Date) > gapThreshold {
			gaps++
		}
	}
	return gaps
}
