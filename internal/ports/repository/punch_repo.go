package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"punch.service/internal/core/model"
	"punch.service/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

// Migrate creates the tables used by the Postgres stores.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

const punchColumns = `r.id, r.subdomain, r.rfid, r.worker_id, r.worker_name, r.username, r.photo,
	r.department_id, r.department_name, r.punch_date, r.time_of_day, r.presence,
	r.is_missed_out_punch, r.created_at`

// PunchRepository is the PostgreSQL PunchHistoryStore. The head of every
// history lives in punch_heads so the next punch reads one row.
type PunchRepository struct {
	DB *sql.DB
}

// NewPunchRepository create new instance
func NewPunchRepository(db *sql.DB) *PunchRepository {
	return &PunchRepository{DB: db}
}

// Head returns the last record and version for key.
func (r *PunchRepository) Head(ctx context.Context, key model.Key) (Head, error) {
	setKeyAttributes(ctx, key)

	query := `SELECT h.version, ` + punchColumns + `
              FROM punch_heads h
              JOIN punch_records r ON r.id = h.last_id
              WHERE h.subdomain = $1 AND h.rfid = $2`

	var (
		version int64
		rec     model.PunchRecord
	)
	dest := append([]any{&version}, scanTargets(&rec)...)
	err := r.DB.QueryRowContext(ctx, query, key.Tenant, key.Badge).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return Head{}, nil
	}
	if err != nil {
		return Head{}, fmt.Errorf("read punch head: %w", err)
	}
	return Head{Last: &rec, Version: version}, nil
}

// Append inserts records and moves the head in one transaction.
func (r *PunchRepository) Append(ctx context.Context, key model.Key, expectedVersion int64, records ...model.PunchRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	setKeyAttributes(ctx, key)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insert := `INSERT INTO punch_records (id, subdomain, rfid, worker_id, worker_name, username, photo,
                   department_id, department_name, punch_date, time_of_day, seconds_of_day,
                   presence, is_missed_out_punch, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	for _, rec := range records {
		if rec.Key() != key {
			return fmt.Errorf("record %s belongs to %s, not %s", rec.ID, rec.Key(), key)
		}
		_, err = tx.ExecContext(ctx, insert,
			rec.ID, rec.Tenant, rec.Badge, rec.WorkerID, rec.WorkerName, rec.Username, rec.Photo,
			rec.DepartmentID, rec.DepartmentName, string(rec.Date), string(rec.Time), rec.Time.Seconds(),
			rec.Presence, rec.IsMissedOutPunch, rec.CreatedAt)
		if err != nil {
			return classify(fmt.Errorf("insert punch record: %w", err))
		}
	}

	lastID := records[len(records)-1].ID
	var res sql.Result
	if expectedVersion == 0 {
		res, err = tx.ExecContext(ctx,
			`INSERT INTO punch_heads (subdomain, rfid, last_id, version) VALUES ($1, $2, $3, 1)
             ON CONFLICT (subdomain, rfid) DO NOTHING`,
			key.Tenant, key.Badge, lastID)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE punch_heads SET last_id = $3, version = version + 1
             WHERE subdomain = $1 AND rfid = $2 AND version = $4`,
			key.Tenant, key.Badge, lastID, expectedVersion)
	}
	if err != nil {
		return classify(fmt.Errorf("move punch head: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("move punch head: %w", err)
	}
	if n == 0 {
		err = fmt.Errorf("head of %s moved past version %d: %w", key, expectedVersion, sentinel.ErrConflict)
		return err
	}

	if err = tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit append: %w", err))
	}
	return nil
}

// ListOrdered streams the history of key.
func (r *PunchRepository) ListOrdered(ctx context.Context, key model.Key) iter.Seq2[model.PunchRecord, error] {
	query := `SELECT ` + punchColumns + `
              FROM punch_records r
              WHERE r.subdomain = $1 AND r.rfid = $2
              ORDER BY r.punch_date, r.seconds_of_day, r.created_at`
	return r.stream(ctx, query, key.Tenant, key.Badge)
}

// ListTenant streams every record of tenant.
func (r *PunchRepository) ListTenant(ctx context.Context, tenant string) iter.Seq2[model.PunchRecord, error] {
	query := `SELECT ` + punchColumns + `
              FROM punch_records r
              WHERE r.subdomain = $1
              ORDER BY r.rfid, r.punch_date, r.seconds_of_day, r.created_at`
	return r.stream(ctx, query, tenant)
}

func (r *PunchRepository) stream(ctx context.Context, query string, args ...any) iter.Seq2[model.PunchRecord, error] {
	return func(yield func(model.PunchRecord, error) bool) {
		rows, err := r.DB.QueryContext(ctx, query, args...)
		if err != nil {
			yield(model.PunchRecord{}, fmt.Errorf("query punch records: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var rec model.PunchRecord
			if err := rows.Scan(scanTargets(&rec)...); err != nil {
				yield(model.PunchRecord{}, fmt.Errorf("scan punch record: %w", err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.PunchRecord{}, fmt.Errorf("iterate punch records: %w", err))
		}
	}
}

func scanTargets(rec *model.PunchRecord) []any {
	return []any{
		&rec.ID, &rec.Tenant, &rec.Badge, &rec.WorkerID, &rec.WorkerName, &rec.Username, &rec.Photo,
		&rec.DepartmentID, &rec.DepartmentName, (*string)(&rec.Date), (*string)(&rec.Time), &rec.Presence,
		&rec.IsMissedOutPunch, &rec.CreatedAt,
	}
}

// classify maps constraint and serialization failures to sentinel.ErrConflict.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		}
	}
	return err
}

func setKeyAttributes(ctx context.Context, key model.Key) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("app.subdomain", key.Tenant),
		attribute.String("app.rfid", key.Badge),
	)
}
