package memory

import (
	"context"
	"fmt"
	"sync"

	"punch.service/internal/core/model"
	"punch.service/pkg/platform/sentinel"
)

// Directory implements repository.WorkerDirectory.
type Directory struct {
	mu          sync.RWMutex
	workers     map[string]model.Worker
	departments map[string]model.Department
}

func NewDirectory() *Directory {
	return &Directory{
		workers:     make(map[string]model.Worker),
		departments: make(map[string]model.Department),
	}
}

func (d *Directory) SaveWorker(ctx context.Context, w model.Worker) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.workers[w.ID] = w
	return nil
}

func (d *Directory) SaveDepartment(ctx context.Context, dep model.Department) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.departments[dep.ID] = dep
	return nil
}

func (d *Directory) FindByBadge(ctx context.Context, tenant, badge string) (*model.Worker, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, w := range d.workers {
		if w.Tenant == tenant && w.Badge == badge {
			return &w, nil
		}
	}
	return nil, fmt.Errorf("worker %s/%s: %w", tenant, badge, sentinel.ErrNotFound)
}

func (d *Directory) FindByBadgeAnyTenant(ctx context.Context, badge string) (*model.Worker, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var found *model.Worker
	for _, w := range d.workers {
		if w.Badge != badge {
			continue
		}
		if found != nil && found.Tenant != w.Tenant {
			return nil, fmt.Errorf("badge %q is issued by several tenants: %w", badge, sentinel.ErrConflict)
		}
		found = &w
	}
	if found == nil {
		return nil, fmt.Errorf("worker with badge %q: %w", badge, sentinel.ErrNotFound)
	}
	return found, nil
}

func (d *Directory) FindByID(ctx context.Context, workerID string) (*model.Worker, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	w, ok := d.workers[workerID]
	if !ok {
		return nil, fmt.Errorf("worker %q: %w", workerID, sentinel.ErrNotFound)
	}
	return &w, nil
}

func (d *Directory) FindDepartment(ctx context.Context, departmentID string) (*model.Department, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dep, ok := d.departments[departmentID]
	if !ok {
		return nil, fmt.Errorf("department %q: %w", departmentID, sentinel.ErrNotFound)
	}
	return &dep, nil
}
