// Package models holds the ingest domain types shared by transports, the
// orchestrator and the record stores.
package models

import "time"

// UnknownDefects marks a defect count the machine could not report.
// Aggregations skip it.
const UnknownDefects = -1

// TimePrecision is the resolution all stored timestamps are truncated to.
// It matches Postgres timestamptz so compare-and-swap on received_time is exact.
const TimePrecision = time.Microsecond

// InboundEvent is one machine report as submitted by a reporter.
type InboundEvent struct {
	EventID     string    `json:"eventId"`
	EventTime   time.Time `json:"eventTime"`
	MachineID   string    `json:"machineId"`
	FactoryID   string    `json:"factoryId"`
	LineID      string    `json:"lineId"`
	DurationMs  int64     `json:"durationMs"`
	DefectCount int       `json:"defectCount"`
}

// Normalized returns the event with EventTime in UTC at TimePrecision.
func (e InboundEvent) Normalized() InboundEvent {
	e.EventTime = NormalizeTime(e.EventTime)
	return e
}

// NormalizeTime converts t to UTC truncated to TimePrecision.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(TimePrecision)
}

// StoredRecord is the single persisted record for a business key.
type StoredRecord struct {
	ID           int64     `json:"id"`
	EventID      string    `json:"eventId"`
	EventTime    time.Time `json:"eventTime"`
	MachineID    string    `json:"machineId"`
	FactoryID    string    `json:"factoryId"`
	LineID       string    `json:"lineId"`
	DurationMs   int64     `json:"durationMs"`
	DefectCount  int       `json:"defectCount"`
	ReceivedTime time.Time `json:"receivedTime"`
	PayloadHash  string    `json:"payloadHash"`
}

// NewStoredRecord builds the record that would represent e once written.
func NewStoredRecord(e InboundEvent, receivedAt time.Time, hash string) *StoredRecord {
	return &StoredRecord{
		EventID:      e.EventID,
		EventTime:    e.EventTime,
		MachineID:    e.MachineID,
		FactoryID:    e.FactoryID,
		LineID:       e.LineID,
		DurationMs:   e.DurationMs,
		DefectCount:  e.DefectCount,
		ReceivedTime: receivedAt,
		PayloadHash:  hash,
	}
}
