// Package stats computes read-side aggregates over stored records.
package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/telhawk-systems/linehawk/ingest/internal/models"
	"github.com/telhawk-systems/linehawk/ingest/internal/repository"
)

const (
	DefaultTopLinesLimit = 10

	// A machine averaging this many defects per hour or more is flagged.
	WarningDefectRate = 2.0
)

var ErrInvalidWindow = errors.New("window end must not be before start")

type Service struct {
	reader repository.StatsReader
}

func NewService(reader repository.StatsReader) *Service {
	return &Service{reader: reader}
}

func checkWindow(start, end time.Time) error {
	if end.Before(start) {
		return ErrInvalidWindow
	}
	return nil
}

// MachineStats aggregates a machine over [start, end).
func (s *Service) MachineStats(ctx context.Context, machineID string, start, end time.Time) (*models.MachineStats, error) {
	if err := checkWindow(start, end); err != nil {
		return nil, err
	}
	start, end = models.NormalizeTime(start), models.NormalizeTime(end)

	count, err := s.reader.CountEvents(ctx, machineID, start, end)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defects, err := s.reader.SumDefects(ctx, machineID, start, end)
	if err != nil {
		return nil, fmt.Errorf("sum defects: %w", err)
	}

	rate := 0.0
	if hours := end.Sub(start).Hours(); hours > 0 {
		rate = float64(defects) / hours
	}

	status := models.StatusHealthy
	if rate >= WarningDefectRate {
		status = models.StatusWarning
	}

	return &models.MachineStats{
		MachineID:     machineID,
		Start:         start,
		End:           end,
		EventsCount:   count,
		DefectsCount:  defects,
		AvgDefectRate: rate,
		Status:        status,
	}, nil
}

// TopDefectLines ranks a factory's lines by defects over [start, end).
// A limit <= 0 uses DefaultTopLinesLimit.
func (s *Service) TopDefectLines(ctx context.Context, factoryID string, start, end time.Time, limit int) ([]models.LineDefectStats, error) {
	if err := checkWindow(start, end); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTopLinesLimit
	}

	lines, err := s.reader.TopDefectLines(ctx, factoryID, models.NormalizeTime(start), models.NormalizeTime(end))
	if err != nil {
		return nil, fmt.Errorf("top defect lines: %w", err)
	}

	if len(lines) > limit {
		lines = lines[:limit]
	}

	out := make([]models.LineDefectStats, 0, len(lines))
	for _, l := range lines {
		pct := 0.0
		if l.EventCount > 0 {
			pct = round2(float64(l.TotalDefects) * 100 / float64(l.EventCount))
		}
		out = append(out, models.LineDefectStats{
			LineID:         l.LineID,
			TotalDefects:   l.TotalDefects,
			EventCount:     l.EventCount,
			DefectsPercent: pct,
		})
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
