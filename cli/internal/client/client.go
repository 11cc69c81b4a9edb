// Package client talks to the LineHawk ingest HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/telhawk-systems/linehawk/common/linestats"
)

// Event is one machine report in the wire format the ingest service accepts.
type Event struct {
	EventID     string    `json:"eventId" yaml:"eventId"`
	EventTime   time.Time `json:"eventTime" yaml:"eventTime"`
	MachineID   string    `json:"machineId" yaml:"machineId"`
	FactoryID   string    `json:"factoryId" yaml:"factoryId"`
	LineID      string    `json:"lineId" yaml:"lineId"`
	DurationMs  int64     `json:"durationMs" yaml:"durationMs"`
	DefectCount int       `json:"defectCount" yaml:"defectCount"`
}

type Rejection struct {
	EventID string `json:"eventId" yaml:"eventId"`
	Reason  string `json:"reason" yaml:"reason"`
}

type BatchResult struct {
	Accepted   int         `json:"accepted" yaml:"accepted"`
	Updated    int         `json:"updated" yaml:"updated"`
	Deduped    int         `json:"deduped" yaml:"deduped"`
	Rejected   int         `json:"rejected" yaml:"rejected"`
	Rejections []Rejection `json:"rejections" yaml:"rejections"`
}

// Add folds o into r.
func (r *BatchResult) Add(o BatchResult) {
	r.Accepted += o.Accepted
	r.Updated += o.Updated
	r.Deduped += o.Deduped
	r.Rejected += o.Rejected
	r.Rejections = append(r.Rejections, o.Rejections...)
}

type MachineStats struct {
	MachineID     string    `json:"machineId" yaml:"machineId"`
	Start         time.Time `json:"start" yaml:"start"`
	End           time.Time `json:"end" yaml:"end"`
	EventsCount   int64     `json:"eventsCount" yaml:"eventsCount"`
	DefectsCount  int64     `json:"defectsCount" yaml:"defectsCount"`
	AvgDefectRate float64   `json:"avgDefectRate" yaml:"avgDefectRate"`
	Status        string    `json:"status" yaml:"status"`
}

type LineDefectStats struct {
	LineID         string  `json:"lineId" yaml:"lineId"`
	TotalDefects   int64   `json:"totalDefects" yaml:"totalDefects"`
	EventCount     int64   `json:"eventCount" yaml:"eventCount"`
	DefectsPercent float64 `json:"defectsPercent" yaml:"defectsPercent"`
}

type FailedEvent struct {
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
	Event       Event     `json:"event" yaml:"event"`
	Error       string    `json:"error" yaml:"error"`
	Reason      string    `json:"reason" yaml:"reason"`
	Attempts    int       `json:"attempts" yaml:"attempts"`
	LastAttempt time.Time `json:"last_attempt" yaml:"last_attempt"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int    `json:"-"`
	Title      string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Title, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

type Client struct {
	http *resty.Client
}

// New returns a client for the ingest service at baseURL. Batches are safe to
// retry because ingestion is idempotent per eventId.
func New(baseURL string) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: rc}
}

// BaseURL returns the configured server.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, query map[string]string) error {
	apiErr := &APIError{}
	req := c.http.R().SetContext(ctx).SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		return apiErr
	}
	return nil
}

// SendBatch posts events to /events/batch.
func (c *Client) SendBatch(ctx context.Context, events []Event) (*BatchResult, error) {
	var result BatchResult
	if err := c.do(ctx, http.MethodPost, "/events/batch", events, &result, nil); err != nil {
		return nil, err
	}
	return &result, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (c *Client) MachineStats(ctx context.Context, machineID string, start, end time.Time) (*MachineStats, error) {
	var result MachineStats
	query := map[string]string{
		"machineId": machineID,
		"start":     formatTime(start),
		"end":       formatTime(end),
	}
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &result, query); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) TopDefectLines(ctx context.Context, factoryID string, from, to time.Time, limit int) ([]LineDefectStats, error) {
	var result []LineDefectStats
	query := map[string]string{
		"factoryId": factoryID,
		"from":      formatTime(from),
		"to":        formatTime(to),
	}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, "/stats/top-defect-lines", nil, &result, query); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) IngestStats(ctx context.Context, factoryID string) (*linestats.Stats, error) {
	var result linestats.Stats
	query := map[string]string{"factoryId": factoryID}
	if err := c.do(ctx, http.MethodGet, "/stats/ingest", nil, &result, query); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DLQStats(ctx context.Context) (map[string]any, error) {
	result := map[string]any{}
	if err := c.do(ctx, http.MethodGet, "/dlq", nil, &result, nil); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) DLQList(ctx context.Context, limit int) ([]FailedEvent, error) {
	var result []FailedEvent
	query := map[string]string{}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, "/dlq/events", nil, &result, query); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) DLQPurge(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/dlq/events", nil, nil, nil)
}

// Ready reports the readiness body and whether the service is ready.
func (c *Client) Ready(ctx context.Context) (map[string]any, bool, error) {
	result := map[string]any{}
	resp, err := c.http.R().SetContext(ctx).SetResult(&result).SetError(&result).Get("/readyz")
	if err != nil {
		return nil, false, fmt.Errorf("GET /readyz: %w", err)
	}
	return result, resp.StatusCode() == http.StatusOK, nil
}
