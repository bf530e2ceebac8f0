package repository

import (
	"context"
	"iter"

	"punch.service/internal/core/model"
)

// Head is the cached tail of one punch history. Version increases by one with
// every successful Append; an empty history has Version 0 and no Last record.
type Head struct {
	Last    *model.PunchRecord
	Version int64
}

// PunchHistoryStore contract. Records are append-only.
type PunchHistoryStore interface {
	Head(ctx context.Context, key model.Key) (Head, error)
	// Append persists records in order, all or nothing, only if the head of key is
	// still at expectedVersion. Lost races and uniqueness violations return
	// sentinel.ErrConflict.
	Append(ctx context.Context, key model.Key, expectedVersion int64, records ...model.PunchRecord) error
	// ListOrdered yields the history of key ordered by (date, time, creation).
	// Each range over the sequence reads the store again.
	ListOrdered(ctx context.Context, key model.Key) iter.Seq2[model.PunchRecord, error]
	// ListTenant yields every record of tenant grouped by badge, each badge in
	// history order.
	ListTenant(ctx context.Context, tenant string) iter.Seq2[model.PunchRecord, error]
}

// WorkerDirectory resolves badges to workers. Lookups that match nothing
// return sentinel.ErrNotFound.
type WorkerDirectory interface {
	FindByBadge(ctx context.Context, tenant, badge string) (*model.Worker, error)
	// FindByBadgeAnyTenant returns sentinel.ErrConflict when more than one
	// tenant uses the badge.
	FindByBadgeAnyTenant(ctx context.Context, badge string) (*model.Worker, error)
	FindByID(ctx context.Context, workerID string) (*model.Worker, error)
	FindDepartment(ctx context.Context, departmentID string) (*model.Department, error)
}

// SettingsStore holds per-tenant punch settings.
type SettingsStore interface {
	// DefaultEndOfShift returns the tenant's configured end of shift, or the
	// store's fallback when the tenant has none.
	DefaultEndOfShift(ctx context.Context, tenant string) (model.TimeOfDay, error)
	SetDefaultEndOfShift(ctx context.Context, tenant string, t model.TimeOfDay) error
}

// Collect drains a record sequence.
func Collect(seq iter.Seq2[model.PunchRecord, error]) ([]model.PunchRecord, error) {
	var out []model.PunchRecord
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
