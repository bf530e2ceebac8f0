// Package memory holds in-process implementations of the repository ports.
// They back local development and unit tests; state is lost on restart.
package memory

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"sync"

	"punch.service/internal/core/model"
	"punch.service/internal/ports/repository"
	"punch.service/pkg/platform/sentinel"
)

type history struct {
	records []model.PunchRecord // append order
	version int64
}

type missedDay struct {
	key  model.Key
	date model.Date
}

// PunchStore implements repository.PunchHistoryStore.
type PunchStore struct {
	mu        sync.RWMutex
	histories map[model.Key]*history
	missed    map[missedDay]struct{}
}

func NewPunchStore() *PunchStore {
	return &PunchStore{
		histories: make(map[model.Key]*history),
		missed:    make(map[missedDay]struct{}),
	}
}

func (s *PunchStore) Head(ctx context.Context, key model.Key) (repository.Head, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.histories[key]
	if h == nil || len(h.records) == 0 {
		return repository.Head{}, nil
	}
	last := h.records[len(h.records)-1]
	return repository.Head{Last: &last, Version: h.version}, nil
}

func (s *PunchStore) Append(ctx context.Context, key model.Key, expectedVersion int64, records ...model.PunchRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.histories[key]
	current := int64(0)
	if h != nil {
		current = h.version
	}
	if current != expectedVersion {
		return fmt.Errorf("head of %s is at version %d, expected %d: %w", key, current, expectedVersion, sentinel.ErrConflict)
	}

	for _, rec := range records {
		if rec.Key() != key {
			return fmt.Errorf("record %s belongs to %s, not %s", rec.ID, rec.Key(), key)
		}
		if rec.IsMissedOutPunch {
			if _, dup := s.missed[missedDay{key, rec.Date}]; dup {
				return fmt.Errorf("missed out punch for %s on %s already recorded: %w", key, rec.Date, sentinel.ErrConflict)
			}
		}
	}

	if h == nil {
		h = &history{}
		s.histories[key] = h
	}
	for _, rec := range records {
		if rec.IsMissedOutPunch {
			s.missed[missedDay{key, rec.Date}] = struct{}{}
		}
		h.records = append(h.records, rec)
	}
	h.version++
	return nil
}

func (s *PunchStore) ListOrdered(ctx context.Context, key model.Key) iter.Seq2[model.PunchRecord, error] {
	return func(yield func(model.PunchRecord, error) bool) {
		for _, rec := range s.snapshot(func(k model.Key) bool { return k == key }) {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (s *PunchStore) ListTenant(ctx context.Context, tenant string) iter.Seq2[model.PunchRecord, error] {
	return func(yield func(model.PunchRecord, error) bool) {
		for _, rec := range s.snapshot(func(k model.Key) bool { return k.Tenant == tenant }) {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// snapshot copies matching histories ordered by badge, then history order.
func (s *PunchStore) snapshot(match func(model.Key) bool) []model.PunchRecord {
	s.mu.RLock()
	keys := make([]model.Key, 0, len(s.histories))
	for k := range s.histories {
		if match(k) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Badge < keys[j].Badge })

	var out []model.PunchRecord
	for _, k := range keys {
		recs := slices.Clone(s.histories[k].records)
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Less(recs[j]) })
		out = append(out, recs...)
	}
	s.mu.RUnlock()
	return out
}
