package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew(t *testing.T) {
	c := New("http://localhost:8080")
	assert.Equal(t, "http://localhost:8080", c.BaseURL())
}

func TestSendBatch_Success(t *testing.T) {
	eventTime := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events/batch", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var events []Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&events))
		require.Len(t, events, 2)
		assert.Equal(t, "E-1", events[0].EventID)
		assert.True(t, eventTime.Equal(events[0].EventTime))

		writeJSON(w, http.StatusOK, map[string]any{
			"accepted": 1, "updated": 0, "deduped": 0, "rejected": 1,
			"rejections": []map[string]string{{"eventId": "E-2", "reason": "INVALID_DURATION"}},
		})
	}))
	defer server.Close()

	result, err := New(server.URL).SendBatch(context.Background(), []Event{
		{EventID: "E-1", EventTime: eventTime, MachineID: "M-1", DurationMs: 1000},
		{EventID: "E-2", EventTime: eventTime, MachineID: "M-1", DurationMs: -1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.Rejections, 1)
	assert.Equal(t, "INVALID_DURATION", result.Rejections[0].Reason)
}

func TestSendBatch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Bad Request", "message": "malformed JSON",
		})
	}))
	defer server.Close()

	_, err := New(server.URL).SendBatch(context.Background(), []Event{{EventID: "E-1"}})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "malformed JSON", apiErr.Message)
	assert.Contains(t, err.Error(), "400")
}

func TestSendBatch_ConnectionError(t *testing.T) {
	c := New("http://127.0.0.1:1")
	c.http.SetRetryCount(0)
	_, err := c.SendBatch(context.Background(), []Event{{EventID: "E-1"}})
	assert.Error(t, err)
}

func TestMachineStats(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	end := start.Add(6 * time.Hour)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "M-001", q.Get("machineId"))
		assert.Equal(t, "2026-01-15T00:00:00Z", q.Get("start"))
		assert.Equal(t, "2026-01-15T06:00:00Z", q.Get("end"))

		writeJSON(w, http.StatusOK, map[string]any{
			"machineId": "M-001", "start": start, "end": end,
			"eventsCount": 12, "defectsCount": 18, "avgDefectRate": 3, "status": "Warning",
		})
	}))
	defer server.Close()

	stats, err := New(server.URL).MachineStats(context.Background(), "M-001", start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.EventsCount)
	assert.Equal(t, 3.0, stats.AvgDefectRate)
	assert.Equal(t, "Warning", stats.Status)
}

func TestTopDefectLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats/top-defect-lines", r.URL.Path)
		assert.Equal(t, "F01", r.URL.Query().Get("factoryId"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		writeJSON(w, http.StatusOK, []map[string]any{
			{"lineId": "L-2", "totalDefects": 40, "eventCount": 10, "defectsPercent": 400},
			{"lineId": "L-1", "totalDefects": 4, "eventCount": 8, "defectsPercent": 50},
		})
	}))
	defer server.Close()

	now := time.Now()
	lines, err := New(server.URL).TopDefectLines(context.Background(), "F01", now.Add(-time.Hour), now, 5)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "L-2", lines[0].LineID)
	assert.Equal(t, 400.0, lines[0].DefectsPercent)
}

func TestIngestStats_NotEnabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "Not Found", "message": "ingest stats are not enabled",
		})
	}))
	defer server.Close()

	_, err := New(server.URL).IngestStats(context.Background(), "F01")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestIngestStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats/ingest", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"factoryId": "F01",
			"total":     map[string]int{"accepted": 10, "deduped": 2},
		})
	}))
	defer server.Close()

	stats, err := New(server.URL).IngestStats(context.Background(), "F01")
	require.NoError(t, err)
	assert.Equal(t, "F01", stats.FactoryID)
	assert.Equal(t, int64(10), stats.Total.Accepted)
	assert.Equal(t, int64(2), stats.Total.Deduped)
}

func TestDLQ(t *testing.T) {
	purged := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/dlq":
			writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "pending_files": 2})
		case r.Method == http.MethodGet && r.URL.Path == "/dlq/events":
			assert.Equal(t, "10", r.URL.Query().Get("limit"))
			writeJSON(w, http.StatusOK, []map[string]any{
				{"event": map[string]any{"eventId": "E-7"}, "error": "timeout", "reason": "STORAGE_FAILURE", "attempts": 1},
			})
		case r.Method == http.MethodDelete && r.URL.Path == "/dlq/events":
			purged = true
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := New(server.URL)
	ctx := context.Background()

	stats, err := c.DLQStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, stats["enabled"])

	events, err := c.DLQList(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "E-7", events[0].Event.EventID)
	assert.Equal(t, "STORAGE_FAILURE", events[0].Reason)

	require.NoError(t, c.DLQPurge(ctx))
	assert.True(t, purged)
}

func TestReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "store": "connection refused"})
	}))
	defer server.Close()

	body, ready, err := New(server.URL).Ready(context.Background())
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Equal(t, "not ready", body["status"])
}

func TestBatchResultAdd(t *testing.T) {
	total := BatchResult{Accepted: 1}
	total.Add(BatchResult{Updated: 2, Rejected: 1, Rejections: []Rejection{{EventID: "E", Reason: "STALE"}}})
	assert.Equal(t, 1, total.Accepted)
	assert.Equal(t, 2, total.Updated)
	assert.Equal(t, 1, total.Rejected)
	assert.Len(t, total.Rejections, 1)
}
