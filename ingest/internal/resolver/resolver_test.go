package resolver

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

var t0 = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func stored(hash string, received time.Time) *models.StoredRecord {
	return &models.StoredRecord{EventID: "E-1", PayloadHash: hash, ReceivedTime: received}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		existing   *models.StoredRecord
		hash       string
		receivedAt time.Time
		want       Decision
	}{
		{"new key inserts", nil, "h1", t0, Decision{Action: Insert}},
		{"same hash later is unchanged", stored("h1", t0), "h1", t0.Add(time.Second), Decision{Discard, models.ReasonUnchanged}},
		{"same hash earlier is unchanged", stored("h1", t0), "h1", t0.Add(-time.Second), Decision{Discard, models.ReasonUnchanged}},
		{"different hash later updates", stored("h1", t0), "h2", t0.Add(time.Microsecond), Decision{Action: Update}},
		{"different hash equal time is stale", stored("h1", t0), "h2", t0, Decision{Discard, models.ReasonStale}},
		{"different hash earlier is stale", stored("h1", t0), "h2", t0.Add(-time.Hour), Decision{Discard, models.ReasonStale}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.existing, tt.hash, tt.receivedAt))
		})
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "insert", Insert.String())
	assert.Equal(t, "update", Update.String())
	assert.Equal(t, "discard", Discard.String())
	assert.Equal(t, "unknown", Action(42).String())
}

func TestResolveProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("update only when hash differs and receipt is strictly later", prop.ForAll(
		func(storedHash, hash string, offsetUs int64) bool {
			received := t0.Add(time.Duration(offsetUs) * time.Microsecond)
			d := Resolve(stored(storedHash, t0), hash, received)
			switch {
			case storedHash == hash:
				return d == Decision{Action: Discard, Reason: models.ReasonUnchanged}
			case offsetUs <= 0:
				return d == Decision{Action: Discard, Reason: models.ReasonStale}
			default:
				return d == Decision{Action: Update}
			}
		},
		gen.OneConstOf("a", "b", "c"),
		gen.OneConstOf("a", "b", "c"),
		gen.Int64Range(-1_000_000, 1_000_000),
	))

	properties.Property("resolve is deterministic", prop.ForAll(
		func(hash string, offsetUs int64) bool {
			received := t0.Add(time.Duration(offsetUs) * time.Microsecond)
			existing := stored("x", t0)
			return Resolve(existing, hash, received) == Resolve(existing, hash, received)
		},
		gen.AlphaString(),
		gen.Int64Range(-1_000_000, 1_000_000),
	))

	properties.TestingRun(t)
}
