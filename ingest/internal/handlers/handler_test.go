package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/linehawk/common/httputil"
	"github.com/telhawk-systems/linehawk/common/linestats"
	"github.com/telhawk-systems/linehawk/ingest/internal/dlq"
	"github.com/telhawk-systems/linehawk/ingest/internal/models"
	"github.com/telhawk-systems/linehawk/ingest/internal/stats"
)

type mockIngestService struct {
	received []models.InboundEvent
	result   models.BatchResult
}

func (m *mockIngestService) Ingest(_ context.Context, events []models.InboundEvent) models.BatchResult {
	m.received = events
	return m.result
}

type mockStatsService struct {
	machine *models.MachineStats
	lines   []models.LineDefectStats
	err     error

	gotLimit int
	gotStart time.Time
	gotEnd   time.Time
}

func (m *mockStatsService) MachineStats(_ context.Context, _ string, start, end time.Time) (*models.MachineStats, error) {
	m.gotStart, m.gotEnd = start, end
	return m.machine, m.err
}

func (m *mockStatsService) TopDefectLines(_ context.Context, _ string, _, _ time.Time, limit int) ([]models.LineDefectStats, error) {
	m.gotLimit = limit
	return m.lines, m.err
}

type mockLineStats struct{ stats *linestats.Stats }

func (m mockLineStats) GetStats(_ context.Context, factoryID string) (*linestats.Stats, error) {
	s := *m.stats
	s.FactoryID = factoryID
	return &s, nil
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(context.Context) error { return m.err }

func TestIngestBatch(t *testing.T) {
	svc := &mockIngestService{result: models.BatchResult{
		Accepted:   1,
		Rejected:   1,
		Rejections: []models.Rejection{{EventID: "E-2", Reason: models.ReasonInvalidDuration}},
	}}
	h := NewHandler(Dependencies{Ingest: svc})

	body := `[{"eventId":"E-1","eventTime":"2026-01-15T10:00:00Z","machineId":"M-001","factoryId":"F01","lineId":"L01","durationMs":100,"defectCount":0},
	          {"eventId":"E-2","eventTime":"2026-01-15T10:00:00Z","machineId":"M-001","factoryId":"F01","lineId":"L01","durationMs":-1,"defectCount":0}]`
	req := httptest.NewRequest(http.MethodPost, "/events/batch", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.IngestBatch(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, svc.received, 2)

	var got models.BatchResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, svc.result, got)
}

func TestIngestBatch_MalformedJSON(t *testing.T) {
	svc := &mockIngestService{}
	h := NewHandler(Dependencies{Ingest: svc})

	req := httptest.NewRequest(http.MethodPost, "/events/batch", strings.NewReader(`[{"eventId":`))
	w := httptest.NewRecorder()
	h.IngestBatch(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.received)

	var errResp httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
	assert.Equal(t, "Bad Request", errResp.Error)
}

func TestIngestBatch_TooManyEvents(t *testing.T) {
	h := NewHandler(Dependencies{Ingest: &mockIngestService{}, MaxBatchSize: 1})

	req := httptest.NewRequest(http.MethodPost, "/events/batch", strings.NewReader(`[{"eventId":"a"},{"eventId":"b"}]`))
	w := httptest.NewRecorder()
	h.IngestBatch(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestIngestBatch_BodyTooLarge(t *testing.T) {
	h := NewHandler(Dependencies{Ingest: &mockIngestService{}, MaxBodyBytes: 16})

	req := httptest.NewRequest(http.MethodPost, "/events/batch", strings.NewReader(`[{"eventId":"0123456789abcdef"}]`))
	w := httptest.NewRecorder()
	h.IngestBatch(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMachineStats(t *testing.T) {
	svc := &mockStatsService{machine: &models.MachineStats{MachineID: "M-001", EventsCount: 4, Status: models.StatusHealthy}}
	h := NewHandler(Dependencies{Stats: svc})

	req := httptest.NewRequest(http.MethodGet, "/stats?machineId=M-001&start=2026-01-15T00:00:00Z&end=2026-01-15T06:00:00%2B01:00", nil)
	w := httptest.NewRecorder()
	h.MachineStats(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2026, 1, 15, 5, 0, 0, 0, time.UTC), svc.gotEnd)

	var got models.MachineStats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, int64(4), got.EventsCount)
	assert.Equal(t, "Healthy", got.Status)
}

func TestMachineStats_BadParams(t *testing.T) {
	h := NewHandler(Dependencies{Stats: &mockStatsService{}})

	for _, target := range []string{
		"/stats?start=2026-01-15T00:00:00Z&end=2026-01-15T01:00:00Z",
		"/stats?machineId=M-001&end=2026-01-15T01:00:00Z",
		"/stats?machineId=M-001&start=yesterday&end=2026-01-15T01:00:00Z",
	} {
		w := httptest.NewRecorder()
		h.MachineStats(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestMachineStats_InvalidWindow(t *testing.T) {
	h := NewHandler(Dependencies{Stats: &mockStatsService{err: stats.ErrInvalidWindow}})

	w := httptest.NewRecorder()
	h.MachineStats(w, httptest.NewRequest(http.MethodGet, "/stats?machineId=M&start=2026-01-15T02:00:00Z&end=2026-01-15T01:00:00Z", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMachineStats_StoreError(t *testing.T) {
	h := NewHandler(Dependencies{Stats: &mockStatsService{err: errors.New("db down")}})

	w := httptest.NewRecorder()
	h.MachineStats(w, httptest.NewRequest(http.MethodGet, "/stats?machineId=M&start=2026-01-15T00:00:00Z&end=2026-01-15T01:00:00Z", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestTopDefectLines(t *testing.T) {
	svc := &mockStatsService{lines: []models.LineDefectStats{{LineID: "L01", TotalDefects: 3, EventCount: 4, DefectsPercent: 75}}}
	h := NewHandler(Dependencies{Stats: svc})

	w := httptest.NewRecorder()
	h.TopDefectLines(w, httptest.NewRequest(http.MethodGet, "/stats/top-defect-lines?factoryId=F01&from=2026-01-15T00:00:00Z&to=2026-01-16T00:00:00Z", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, stats.DefaultTopLinesLimit, svc.gotLimit)

	var got []models.LineDefectStats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, svc.lines, got)

	w = httptest.NewRecorder()
	h.TopDefectLines(w, httptest.NewRequest(http.MethodGet, "/stats/top-defect-lines?factoryId=F01&from=2026-01-15T00:00:00Z&to=2026-01-16T00:00:00Z&limit=3", nil))
	assert.Equal(t, 3, svc.gotLimit)
}

func TestIngestStats(t *testing.T) {
	w := httptest.NewRecorder()
	NewHandler(Dependencies{}).IngestStats(w, httptest.NewRequest(http.MethodGet, "/stats/ingest?factoryId=F01", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	h := NewHandler(Dependencies{LineStats: mockLineStats{stats: &linestats.Stats{Total: linestats.Counts{Accepted: 5}}}})
	w = httptest.NewRecorder()
	h.IngestStats(w, httptest.NewRequest(http.MethodGet, "/stats/ingest?factoryId=F01", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got linestats.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "F01", got.FactoryID)
	assert.Equal(t, int64(5), got.Total.Accepted)
}

func TestDLQEndpoints(t *testing.T) {
	queue, err := dlq.NewQueue(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, queue.Write(context.Background(), models.InboundEvent{EventID: "E-1"}, errors.New("x"), models.ReasonStorageFailure))

	h := NewHandler(Dependencies{DLQ: queue})

	w := httptest.NewRecorder()
	h.DLQStats(w, httptest.NewRequest(http.MethodGet, "/dlq", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pending_files":1`)

	w = httptest.NewRecorder()
	h.DLQList(w, httptest.NewRequest(http.MethodGet, "/dlq/events", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var events []dlq.FailedEvent
	require.NoError(t, json.NewDecoder(w.Body).Decode(&events))
	require.Len(t, events, 1)
	assert.Equal(t, "E-1", events[0].Event.EventID)

	w = httptest.NewRecorder()
	h.DLQPurge(w, httptest.NewRequest(http.MethodDelete, "/dlq/events", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDLQEndpoints_Disabled(t *testing.T) {
	h := NewHandler(Dependencies{})

	w := httptest.NewRecorder()
	h.DLQStats(w, httptest.NewRequest(http.MethodGet, "/dlq", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":false`)

	w = httptest.NewRecorder()
	h.DLQList(w, httptest.NewRequest(http.MethodGet, "/dlq/events", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndReady(t *testing.T) {
	h := NewHandler(Dependencies{Store: mockPinger{}})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"ok"`)

	h = NewHandler(Dependencies{Store: mockPinger{err: errors.New("refused")}})
	w = httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
