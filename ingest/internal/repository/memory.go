package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

// MemoryRepository keeps records in a map. Used for development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*models.StoredRecord
	nextID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*models.StoredRecord)}
}

func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) Find(ctx context.Context, eventID string) (*models.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, rec *models.StoredRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.EventID]; exists {
		return ErrDuplicateKey
	}
	r.nextID++
	rec.ID = r.nextID
	cp := *rec
	r.records[rec.EventID] = &cp
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, rec *models.StoredRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.records[rec.EventID]
	if !ok || !cur.ReceivedTime.Before(rec.ReceivedTime) || cur.PayloadHash == rec.PayloadHash {
		return false, nil
	}
	cp := *rec
	cp.ID = cur.ID
	r.records[rec.EventID] = &cp
	return true, nil
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func (r *MemoryRepository) CountEvents(_ context.Context, machineID string, start, end time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, rec := range r.records {
		if rec.MachineID == machineID && inWindow(rec.EventTime, start, end) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) SumDefects(_ context.Context, machineID string, start, end time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum int64
	for _, rec := range r.records {
		if rec.MachineID == machineID && rec.DefectCount != models.UnknownDefects && inWindow(rec.EventTime, start, end) {
			sum += int64(rec.DefectCount)
		}
	}
	return sum, nil
}

func (r *MemoryRepository) TopDefectLines(_ context.Context, factoryID string, start, end time.Time) ([]models.LineDefects, error) {
	r.mu.RLock()
	byLine := make(map[string]*models.LineDefects)
	for _, rec := range r.records {
		if rec.FactoryID != factoryID || !inWindow(rec.EventTime, start, end) {
			continue
		}
		l, ok := byLine[rec.LineID]
		if !ok {
			l = &models.LineDefects{LineID: rec.LineID}
			byLine[rec.LineID] = l
		}
		l.EventCount++
		if rec.DefectCount != models.UnknownDefects {
			l.TotalDefects += int64(rec.DefectCount)
		}
	}
	r.mu.RUnlock()

	lines := make([]models.LineDefects, 0, len(byLine))
	for _, l := range byLine {
		lines = append(lines, *l)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].TotalDefects != lines[j].TotalDefects {
			return lines[i].TotalDefects > lines[j].TotalDefects
		}
		return lines[i].LineID < lines[j].LineID
	})
	return lines, nil
}
