package validator

import (
	"time"

	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

const (
	DefaultMaxDuration     = 6 * time.Hour
	DefaultFutureTolerance = 15 * time.Minute
)

// Policy holds the configured admission limits.
type Policy struct {
	MaxDuration     time.Duration
	FutureTolerance time.Duration
}

// DefaultPolicy returns the standard limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxDuration:     DefaultMaxDuration,
		FutureTolerance: DefaultFutureTolerance,
	}
}

// NewPolicyChain builds the standard chain: duration bounds, then event time
// tolerance, then business key presence.
func NewPolicyChain(p Policy) *Chain {
	return NewChain(
		DurationRule{Max: p.MaxDuration},
		FutureTimeRule{Tolerance: p.FutureTolerance},
		EventIDRule{},
	)
}

// DurationRule admits 0 <= durationMs <= Max.
type DurationRule struct {
	Max time.Duration
}

func (r DurationRule) Check(event models.InboundEvent, _ time.Time) models.Reason {
	if event.DurationMs < 0 || event.DurationMs > r.Max.Milliseconds() {
		return models.ReasonInvalidDuration
	}
	return ""
}

// FutureTimeRule rejects events stamped later than now + Tolerance.
type FutureTimeRule struct {
	Tolerance time.Duration
}

func (r FutureTimeRule) Check(event models.InboundEvent, now time.Time) models.Reason {
	if event.EventTime.After(now.Add(r.Tolerance)) {
		return models.ReasonFutureEventTime
	}
	return ""
}

// EventIDRule rejects events without a business key.
type EventIDRule struct{}

func (EventIDRule) Check(event models.InboundEvent, _ time.Time) models.Reason {
	if event.EventID == "" {
		return models.ReasonMissingEventID
	}
	return ""
}
