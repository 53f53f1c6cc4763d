// Package yahoo implements the provider.Fetcher contract against the Yahoo
// Finance v8 chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"stockingest/internal/models"
	"stockingest/internal/provider"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Yahoo rejects requests with no User-Agent.
const userAgent = "stockingest/1.0"

// Client is an HTTP client for the Yahoo Finance chart API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Yahoo Finance client
func NewClient() *Client {
	return NewClientWithBaseURL(defaultBaseURL)
}

// NewClientWithBaseURL creates a new client with a custom base URL (for testing)
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch retrieves daily bars for ticker over [start, end] inclusive and maps
// them into the raw-row shape. The chart API takes an exclusive end bound, so
// one day is added to the requested end.
func (c *Client) Fetch(ctx context.Context, ticker string, start, end time.Time) ([]models.RawRow, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", start.Unix()))
	params.Set("period2", fmt.Sprintf("%d", end.AddDate(0, 0, 1).Unix()))
	params.Set("interval", "1d")
	params.Set("events", "div,split")

	reqURL := c.baseURL + "/" + url.PathEscape(ticker) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &provider.PermanentError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &provider.TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.TransientError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, &provider.PermanentError{Err: fmt.Errorf("unknown ticker %q: %s", ticker, chartErrorDetail(body))}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &provider.TransientError{Err: fmt.Errorf("provider returned status %d", resp.StatusCode)}
	default:
		return nil, &provider.PermanentError{Err: fmt.Errorf("provider returned status %d", resp.StatusCode)}
	}

	var chartResp ChartResponse
	if err := json.Unmarshal(body, &chartResp); err != nil {
		return nil, &provider.PermanentError{Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	if chartResp.Chart.Error != nil {
		return nil, &provider.PermanentError{Err: fmt.Errorf("provider error %s: %s",
			chartResp.Chart.Error.Code, chartResp.Chart.Error.Description)}
	}
	if len(chartResp.Chart.Result) == 0 {
		return nil, provider.ErrDataUnavailable
	}

	result := chartResp.Chart.Result[0]
	if len(result.Timestamps) == 0 {
		return nil, provider.ErrDataUnavailable
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, &provider.PermanentError{Err: fmt.Errorf("malformed response: missing quote indicators")}
	}

	rows := mapRows(ticker, result)
	if len(rows) == 0 {
		return nil, provider.ErrDataUnavailable
	}
	return rows, nil
}

// mapRows converts the chart API's parallel arrays into raw rows. Entries with
// a null in any OHLCV position (half-days, pre-listing padding) are skipped.
func mapRows(ticker string, result ChartResult) []models.RawRow {
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	var rows []models.RawRow
	for i, ts := range result.Timestamps {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			break
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil ||
			quote.Close[i] == nil || quote.Volume[i] == nil {
			continue
		}

		day := time.Unix(ts, 0).UTC()
		row := models.RawRow{
			Ticker:   ticker,
			Date:     time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			Open:     *quote.Open[i],
			High:     *quote.High[i],
			Low:      *quote.Low[i],
			Close:    *quote.Close[i],
			Volume:   *quote.Volume[i],
			AdjClose: *quote.Close[i],
		}
		if i < len(adj) && adj[i] != nil {
			row.AdjClose = *adj[i]
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows
}

func chartErrorDetail(body []byte) string {
	var chartResp ChartResponse
	if err := json.Unmarshal(body, &chartResp); err == nil && chartResp.Chart.Error != nil {
		return chartResp.Chart.Error.Description
	}
	return "not found"
}
