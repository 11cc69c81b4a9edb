package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/linehawk/common/database"
	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresRepository, error) {
	pool, err := database.NewPool(ctx, connString, maxConns, minConns)
	if err != nil {
		return nil, err
	}
	return &PostgresRepository{pool: pool}, nil
}

// NewPostgresRepositoryFromPool wraps an existing pool.
func NewPostgresRepositoryFromPool(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Find(ctx context.Context, eventID string) (*models.StoredRecord, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT id, event_id, event_time, machine_id, factory_id, line_id,
		       duration_ms, defect_count, received_time, payload_hash
		FROM machine_events
		WHERE event_id = $1
	`

	var rec models.StoredRecord
	err := r.pool.QueryRow(ctx, query, eventID).Scan(
		&rec.ID, &rec.EventID, &rec.EventTime, &rec.MachineID, &rec.FactoryID, &rec.LineID,
		&rec.DurationMs, &rec.DefectCount, &rec.ReceivedTime, &rec.PayloadHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find record: %w", err)
	}

	rec.EventTime = rec.EventTime.UTC()
	rec.ReceivedTime = rec.ReceivedTime.UTC()
	return &rec, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *models.StoredRecord) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO machine_events (event_id, event_time, machine_id, factory_id, line_id,
		                            duration_ms, defect_count, received_time, payload_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		rec.EventID, rec.EventTime, rec.MachineID, rec.FactoryID, rec.LineID,
		rec.DurationMs, rec.DefectCount, rec.ReceivedTime, rec.PayloadHash,
	).Scan(&rec.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec *models.StoredRecord) (bool, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		UPDATE machine_events
		SET event_time = $2, machine_id = $3, factory_id = $4, line_id = $5,
		    duration_ms = $6, defect_count = $7, received_time = $8, payload_hash = $9
		WHERE event_id = $1
		  AND received_time < $8
		  AND payload_hash <> $9
	`

	tag, err := r.pool.Exec(ctx, query,
		rec.EventID, rec.EventTime, rec.MachineID, rec.FactoryID, rec.LineID,
		rec.DurationMs, rec.DefectCount, rec.ReceivedTime, rec.PayloadHash,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update record: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) CountEvents(ctx context.Context, machineID string, start, end time.Time) (int64, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM machine_events
		WHERE machine_id = $1 AND event_time >= $2 AND event_time < $3
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, machineID, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) SumDefects(ctx context.Context, machineID string, start, end time.Time) (int64, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT COALESCE(SUM(defect_count), 0)
		FROM machine_events
		WHERE machine_id = $1 AND defect_count <> $4
		  AND event_time >= $2 AND event_time < $3
	`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, machineID, start, end, models.UnknownDefects).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum defects: %w", err)
	}
	return sum, nil
}

func (r *PostgresRepository) TopDefectLines(ctx context.Context, factoryID string, start, end time.Time) ([]models.LineDefects, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT line_id,
		       COALESCE(SUM(CASE WHEN defect_count <> $4 THEN defect_count ELSE 0 END), 0) AS total_defects,
		       COUNT(*) AS event_count
		FROM machine_events
		WHERE factory_id = $1 AND event_time >= $2 AND event_time < $3
		GROUP BY line_id
		ORDER BY total_defects DESC, line_id ASC
	`

	rows, err := r.pool.Query(ctx, query, factoryID, start, end, models.UnknownDefects)
	if err != nil {
		return nil, fmt.Errorf("failed to query top defect lines: %w", err)
	}
	defer rows.Close()

	lines := []models.LineDefects{}
	for rows.Next() {
		var l models.LineDefects
		if err := rows.Scan(&l.LineID, &l.TotalDefects, &l.EventCount); err != nil {
			return nil, fmt.Errorf("failed to scan line defects: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate line defects: %w", err)
	}

	return lines, nil
}
