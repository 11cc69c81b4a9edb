package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/telhawk-systems/linehawk/common/database"
	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

// Timestamps are stored as unix microseconds so range predicates and the
// received_time comparison are numeric.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS machine_events (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id         TEXT    NOT NULL UNIQUE,
    event_time_us    INTEGER NOT NULL,
    machine_id       TEXT    NOT NULL,
    factory_id       TEXT    NOT NULL,
    line_id          TEXT    NOT NULL,
    duration_ms      INTEGER NOT NULL,
    defect_count     INTEGER NOT NULL,
    received_time_us INTEGER NOT NULL,
    payload_hash     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_machine_events_machine_time ON machine_events (machine_id, event_time_us);
CREATE INDEX IF NOT EXISTS idx_machine_events_factory_time ON machine_events (factory_id, event_time_us, line_id);
`

// SQLiteRepository is the single-node "lite mode" backend.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) the database at path and applies the schema.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// one writer; serializes the conditional update with inserts
	db.SetMaxOpenConns(1)

	r := &SQLiteRepository{db: db}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func toMicros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(us int64) time.Time { return time.UnixMicro(us).UTC() }

func (r *SQLiteRepository) Find(ctx context.Context, eventID string) (*models.StoredRecord, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT id, event_id, event_time_us, machine_id, factory_id, line_id,
		       duration_ms, defect_count, received_time_us, payload_hash
		FROM machine_events
		WHERE event_id = ?
	`

	var rec models.StoredRecord
	var eventUs, receivedUs int64
	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&rec.ID, &rec.EventID, &eventUs, &rec.MachineID, &rec.FactoryID, &rec.LineID,
		&rec.DurationMs, &rec.DefectCount, &receivedUs, &rec.PayloadHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find record: %w", err)
	}

	rec.EventTime = fromMicros(eventUs)
	rec.ReceivedTime = fromMicros(receivedUs)
	return &rec, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, rec *models.StoredRecord) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO machine_events (event_id, event_time_us, machine_id, factory_id, line_id,
		                            duration_ms, defect_count, received_time_us, payload_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := r.db.ExecContext(ctx, query,
		rec.EventID, toMicros(rec.EventTime), rec.MachineID, rec.FactoryID, rec.LineID,
		rec.DurationMs, rec.DefectCount, toMicros(rec.ReceivedTime), rec.PayloadHash,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read record id: %w", err)
	}
	rec.ID = id
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// extended codes disabled
		return strings.Contains(sqlErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

func (r *SQLiteRepository) Update(ctx context.Context, rec *models.StoredRecord) (bool, error) {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		UPDATE machine_events
		SET event_time_us = ?, machine_id = ?, factory_id = ?, line_id = ?,
		    duration_ms = ?, defect_count = ?, received_time_us = ?, payload_hash = ?
		WHERE event_id = ?
		  AND received_time_us < ?
		  AND payload_hash <> ?
	`

	received := toMicros(rec.ReceivedTime)
	res, err := r.db.ExecContext(ctx, query,
		toMicros(rec.EventTime), rec.MachineID, rec.FactoryID, rec.LineID,
		rec.DurationMs, rec.DefectCount, received, rec.PayloadHash,
		rec.EventID, received, rec.PayloadHash,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) CountEvents(ctx context.Context, machineID string, start, end time.Time) (int64, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM machine_events
		WHERE machine_id = ? AND event_time_us >= ? AND event_time_us < ?
	`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, machineID, toMicros(start), toMicros(end)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (r *SQLiteRepository) SumDefects(ctx context.Context, machineID string, start, end time.Time) (int64, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT COALESCE(SUM(defect_count), 0)
		FROM machine_events
		WHERE machine_id = ? AND defect_count <> ?
		  AND event_time_us >= ? AND event_time_us < ?
	`

	var sum int64
	err := r.db.QueryRowContext(ctx, query, machineID, models.UnknownDefects, toMicros(start), toMicros(end)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum defects: %w", err)
	}
	return sum, nil
}

func (r *SQLiteRepository) TopDefectLines(ctx context.Context, factoryID string, start, end time.Time) ([]models.LineDefects, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT line_id,
		       COALESCE(SUM(CASE WHEN defect_count <> ? THEN defect_count ELSE 0 END), 0) AS total_defects,
		       COUNT(*) AS event_count
		FROM machine_events
		WHERE factory_id = ? AND event_time_us >= ? AND event_time_us < ?
		GROUP BY line_id
		ORDER BY total_defects DESC, line_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, models.UnknownDefects, factoryID, toMicros(start), toMicros(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query top defect lines: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
