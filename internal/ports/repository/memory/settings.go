package memory

import (
	"context"
	"sync"

	"punch.service/internal/core/model"
)

// Settings implements repository.SettingsStore.
type Settings struct {
	mu         sync.RWMutex
	fallback   model.TimeOfDay
	endOfShift map[string]model.TimeOfDay
}

func NewSettings(fallback model.TimeOfDay) *Settings {
	return &Settings{fallback: fallback, endOfShift: make(map[string]model.TimeOfDay)}
}

func (s *Settings) DefaultEndOfShift(ctx context.Context, tenant string) (model.TimeOfDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.endOfShift[tenant]; ok {
		return t, nil
	}
	return s.fallback, nil
}

func (s *Settings) SetDefaultEndOfShift(ctx context.Context, tenant string, t model.TimeOfDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endOfShift[tenant] = t
	return nil
}
