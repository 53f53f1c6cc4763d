// Package provider defines the market data boundary: the Fetcher contract and
// the error taxonomy the rest of the pipeline keys retry and failure handling on.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockingest/internal/models"
)

// ErrDataUnavailable signals that the provider returned no rows for the
// requested range. It is never retried; the ticker fails with this cause.
var ErrDataUnavailable = errors.New("no data available for requested range")

// TransientError wraps a failure worth retrying: network faults, rate limits,
// provider 5xx responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient fetch error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure that retrying cannot fix: unknown ticker,
// malformed response. It fails the ticker immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent fetch error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Fetcher retrieves daily bars for one ticker over [start, end] inclusive.
// Implementations map their response shape into models.RawRow before returning;
// nothing downstream ever sees a provider-specific type.
type Fetcher interface {
	Fetch(ctx context.Context, ticker string, start, end time.Time) ([]models.RawRow, error)
}
