package models

// Reason explains why an event was rejected or deduplicated.
type Reason string

const (
	// Validation rejections.
	ReasonInvalidDuration = Reason("INVALID_DURATION")
	ReasonFutureEventTime = Reason("FUTURE_EVENT_TIME")
	ReasonMissingEventID  = Reason("MISSING_EVENT_ID")

	// The store could not be read or written for this event.
	ReasonStorageFailure = Reason("STORAGE_FAILURE")

	// Dedup outcomes. These never appear in BatchResult.Rejections.
	ReasonUnchanged = Reason("UNCHANGED")
	ReasonStale     = Reason("STALE")
	ReasonRaceLost  = Reason("RACE_LOST")
)

// Rejection is one event that was not admitted.
type Rejection struct {
	EventID string `json:"eventId"`
	Reason  Reason `json:"reason"`
}

// BatchResult tallies the outcome of one batch. Accepted+Updated+Deduped+Rejected
// equals the batch size; Rejections follow input order.
type BatchResult struct {
	Accepted   int         `json:"accepted"`
	Updated    int         `json:"updated"`
	Deduped    int         `json:"deduped"`
	Rejected   int         `json:"rejected"`
	Rejections []Rejection `json:"rejections"`
}

// Total is the number of events the result covers.
func (r BatchResult) Total() int {
	return r.Accepted + r.Updated + r.Deduped + r.Rejected
}

// Outcome is the per-event result of ingestion.
type Outcome string

const (
	OutcomeAccepted = Outcome("accepted")
	OutcomeUpdated  = Outcome("updated")
	OutcomeDeduped  = Outcome("deduped")
	OutcomeRejected = Outcome("rejected")
)

// Change is the kind of write a RecordChanged notification announces.
type Change string

const (
	ChangeInserted = Change("inserted")
	ChangeUpdated  = Change("updated")
)

// RecordChanged is published after an insert or update is applied.
type RecordChanged struct {
	EventID      string `json:"eventId"`
	FactoryID    string `json:"factoryId"`
	LineID       string `json:"lineId"`
	MachineID    string `json:"machineId"`
	Change       Change `json:"change"`
	ReceivedTime string `json:"receivedTime"`
	PayloadHash  string `json:"payloadHash"`
}
