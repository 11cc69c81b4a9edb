package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBatch(t *testing.T) {
	events, err := DecodeBatch([]byte(`[
		{"eventId":"E-1","eventTime":"2026-01-15T10:00:00.123456789+02:00","machineId":"M-001",
		 "factoryId":"F01","lineId":"L01","durationMs":1500,"defectCount":-1}
	]`))
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "E-1", e.EventID)
	assert.Equal(t, int64(1500), e.DurationMs)
	assert.Equal(t, UnknownDefects, e.DefectCount)
	assert.True(t, e.EventTime.Equal(time.Date(2026, 1, 15, 8, 0, 0, 123456789, time.UTC)))
}

func TestDecodeBatch_SingleObject(t *testing.T) {
	events, err := DecodeBatch([]byte(` {"eventId":"E-2","durationMs":10}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "E-2", events[0].EventID)
}

func TestDecodeBatch_Errors(t *testing.T) {
	_, err := DecodeBatch([]byte("   "))
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = DecodeBatch([]byte(`[{"eventId":`))
	assert.Error(t, err)

	_, err = DecodeBatch([]byte(`"nope"`))
	assert.Error(t, err)
}

func TestDecodeBatch_EmptyArray(t *testing.T) {
	events, err := DecodeBatch([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = DecodeBatch([]byte(`null`))
	require.NoError(t, err)
	assert.NotNil(t, events)
}

func TestNormalized(t *testing.T) {
	e := InboundEvent{EventTime: time.Date(2026, 1, 15, 10, 0, 0, 1999, time.FixedZone("X", 3600))}
	n := e.Normalized()
	assert.Equal(t, time.Date(2026, 1, 15, 9, 0, 0, 1000, time.UTC), n.EventTime)
}

func TestBatchResultTotal(t *testing.T) {
	r := BatchResult{Accepted: 1, Updated: 2, Deduped: 3, Rejected: 4}
	assert.Equal(t, 10, r.Total())
}
