// Package repository persists one record per business key and serves the
// read-side aggregates.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("record already exists for event id")
)

// Store is the write side used by the ingest orchestrator.
type Store interface {
	// Find returns ErrNotFound when no record exists for eventID.
	Find(ctx context.Context, eventID string) (*models.StoredRecord, error)

	// Insert creates rec and sets rec.ID. It returns ErrDuplicateKey when a
	// record for rec.EventID already exists.
	Insert(ctx context.Context, rec *models.StoredRecord) error

	// Update overwrites the record for rec.EventID only if the stored
	// received_time is strictly earlier than rec.ReceivedTime and the stored
	// payload hash differs. It reports whether the write was applied.
	Update(ctx context.Context, rec *models.StoredRecord) (bool, error)
}

// StatsReader is the read side. Windows are half-open [start, end) on event time.
type StatsReader interface {
	CountEvents(ctx context.Context, machineID string, start, end time.Time) (int64, error)

	// SumDefects ignores records with an unknown defect count.
	SumDefects(ctx context.Context, machineID string, start, end time.Time) (int64, error)

	// TopDefectLines groups a factory's records by line, ordered by defect sum
	// descending then line id ascending.
	TopDefectLines(ctx context.Context, factoryID string, start, end time.Time) ([]models.LineDefects, error)
}

// Repository is implemented by every backend.
type Repository interface {
	Store
	StatsReader

	Ping(ctx context.Context) error
	Close() error
}
