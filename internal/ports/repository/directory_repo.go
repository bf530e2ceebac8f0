package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"punch.service/internal/core/model"
	"punch.service/pkg/platform/sentinel"
)

const workerColumns = `id, subdomain, rfid, name, username, email, photo, department_id, per_day_salary`

// DirectoryRepository is the PostgreSQL WorkerDirectory.
type DirectoryRepository struct {
	DB *sql.DB
}

func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{DB: db}
}

// FindByBadge get the worker holding badge inside tenant.
func (r *DirectoryRepository) FindByBadge(ctx context.Context, tenant, badge string) (*model.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE subdomain = $1 AND rfid = $2`
	return r.findOne(ctx, query, tenant, badge)
}

// FindByBadgeAnyTenant get the worker holding badge in whichever tenant issued it.
func (r *DirectoryRepository) FindByBadgeAnyTenant(ctx context.Context, badge string) (*model.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE rfid = $1 ORDER BY subdomain LIMIT 2`

	rows, err := r.DB.QueryContext(ctx, query, badge)
	if err != nil {
		return nil, fmt.Errorf("query worker by badge: %w", err)
	}
	defer rows.Close()

	var found []*model.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workers: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("worker with badge %q: %w", badge, sentinel.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("badge %q is issued by several tenants: %w", badge, sentinel.ErrConflict)
	}
}

func (r *DirectoryRepository) FindByID(ctx context.Context, workerID string) (*model.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE id = $1`
	return r.findOne(ctx, query, workerID)
}

func (r *DirectoryRepository) FindDepartment(ctx context.Context, departmentID string) (*model.Department, error) {
	d := &model.Department{}
	query := `SELECT id, subdomain, name FROM departments WHERE id = $1`

	err := r.DB.QueryRowContext(ctx, query, departmentID).Scan(&d.ID, &d.Tenant, &d.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("department %q: %w", departmentID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query department: %w", err)
	}
	return d, nil
}

// SaveDepartment upserts a department. Used by seeding tools and tests.
func (r *DirectoryRepository) SaveDepartment(ctx context.Context, d model.Department) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO departments (id, subdomain, name) VALUES ($1, $2, $3)
         ON CONFLICT (id) DO UPDATE SET subdomain = EXCLUDED.subdomain, name = EXCLUDED.name`,
		d.ID, d.Tenant, d.Name)
	return err
}

// SaveWorker upserts a worker. Used by seeding tools and tests.
func (r *DirectoryRepository) SaveWorker(ctx context.Context, w model.Worker) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO workers (`+workerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
         ON CONFLICT (id) DO UPDATE SET subdomain = EXCLUDED.subdomain, rfid = EXCLUDED.rfid,
             name = EXCLUDED.name, username = EXCLUDED.username, email = EXCLUDED.email,
             photo = EXCLUDED.photo, department_id = EXCLUDED.department_id,
             per_day_salary = EXCLUDED.per_day_salary`,
		w.ID, w.Tenant, w.Badge, w.Name, w.Username, w.Email, w.Photo, w.DepartmentID, w.DailySalary)
	return err
}

func (r *DirectoryRepository) findOne(ctx context.Context, query string, args ...any) (*model.Worker, error) {
	w, err := scanWorker(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("worker: %w", sentinel.ErrNotFound)
	}
	return w, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorker(row rowScanner) (*model.Worker, error) {
	w := &model.Worker{}
	err := row.Scan(&w.ID, &w.Tenant, &w.Badge, &w.Name, &w.Username, &w.Email, &w.Photo, &w.DepartmentID, &w.DailySalary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan worker: %w", err)
	}
	return w, nil
}
