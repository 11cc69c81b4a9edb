// Package resolver decides how an admitted event relates to the stored record
// for its business key.
package resolver

import (
	"time"

	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

// Action is the write the orchestrator should attempt.
type Action int

const (
	Insert Action = iota
	Update
	Discard
)

func (a Action) String() string {
	switch a {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Discard:
		return "discard"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Resolve. Reason is set only for Discard.
type Decision struct {
	Action Action
	Reason models.Reason
}

// Resolve compares an incoming fingerprint and receipt time against the
// current record. Identical content is UNCHANGED regardless of timing; a
// receipt not strictly later than the stored one is STALE.
func Resolve(existing *models.StoredRecord, fingerprint string, receivedAt time.Time) Decision {
	if existing == nil {
		return Decision{Action: Insert}
	}
	if fingerprint == existing.PayloadHash {
		return Decision{Action: Discard, Reason: models.ReasonUnchanged}
	}
	if !receivedAt.After(existing.ReceivedTime) {
		return Decision{Action: Discard, Reason: models.ReasonStale}
	}
	return Decision{Action: Update}
}
