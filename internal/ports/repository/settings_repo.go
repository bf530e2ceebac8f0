package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"punch.service/internal/core/model"
)

// SettingsRepository is the PostgreSQL SettingsStore.
type SettingsRepository struct {
	DB       *sql.DB
	fallback model.TimeOfDay
}

// NewSettingsRepository returns fallback for tenants without a configured end of shift.
func NewSettingsRepository(db *sql.DB, fallback model.TimeOfDay) *SettingsRepository {
	return &SettingsRepository{DB: db, fallback: fallback}
}

func (r *SettingsRepository) DefaultEndOfShift(ctx context.Context, tenant string) (model.TimeOfDay, error) {
	var raw string
	query := `SELECT default_end_of_shift FROM tenant_settings WHERE subdomain = $1`

	err := r.DB.QueryRowContext(ctx, query, tenant).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return r.fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("query tenant settings: %w", err)
	}

	t, err := model.ParseTimeOfDay(raw)
	if err != nil {
		// a bad row must not block punching
		log.Ctx(ctx).Warn().Err(err).Str("subdomain", tenant).Msg("Ignoring invalid end of shift setting")
		return r.fallback, nil
	}
	return t, nil
}

func (r *SettingsRepository) SetDefaultEndOfShift(ctx context.Context, tenant string, t model.TimeOfDay) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO tenant_settings (subdomain, default_end_of_shift) VALUES ($1, $2)
         ON CONFLICT (subdomain) DO UPDATE SET default_end_of_shift = EXCLUDED.default_end_of_shift`,
		tenant, string(t))
	if err != nil {
		return fmt.Errorf("save tenant settings: %w", err)
	}
	return nil
}
