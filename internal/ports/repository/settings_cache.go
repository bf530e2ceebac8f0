package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"punch.service/internal/core/model"
)

const settingsKeyPrefix = "punch:settings:eos:"

// CachedSettings is a read-through Redis cache in front of a SettingsStore.
// Redis failures fall through to the inner store.
type CachedSettings struct {
	inner  SettingsStore
	client redis.Cmdable
	ttl    time.Duration
}

func NewCachedSettings(inner SettingsStore, client redis.Cmdable, ttl time.Duration) *CachedSettings {
	return &CachedSettings{inner: inner, client: client, ttl: ttl}
}

func (c *CachedSettings) DefaultEndOfShift(ctx context.Context, tenant string) (model.TimeOfDay, error) {
	key := settingsKeyPrefix + tenant

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if t, perr := model.ParseTimeOfDay(cached); perr == nil {
			return t, nil
		}
	case !errors.Is(err, redis.Nil):
		log.Ctx(ctx).Warn().Err(err).Msg("Settings cache read failed")
	}

	t, err := c.inner.DefaultEndOfShift(ctx, tenant)
	if err != nil {
		return "", err
	}
	if err := c.client.Set(ctx, key, string(t), c.ttl).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Settings cache write failed")
	}
	return t, nil
}

func (c *CachedSettings) SetDefaultEndOfShift(ctx context.Context, tenant string, t model.TimeOfDay) error {
	if err := c.inner.SetDefaultEndOfShift(ctx, tenant, t); err != nil {
		return err
	}
	if err := c.client.Del(ctx, settingsKeyPrefix+tenant).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Settings cache invalidation failed")
	}
	return nil
}
