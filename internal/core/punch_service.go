package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"punch.service/internal/core/clock"
	"punch.service/internal/core/model"
	"punch.service/internal/core/presence"
	"punch.service/internal/metrics"
	"punch.service/internal/ports/messaging"
	"punch.service/internal/ports/repository"
	"punch.service/pkg/apperr"
	"punch.service/pkg/keylock"
	"punch.service/pkg/platform/sentinel"
)

// User-facing messages.
const (
	msgTenantMissing     = "Company name is missing, login again"
	msgBadgeMissing      = "RFID is required"
	msgWorkerNotFound    = "Worker not found"
	msgDepartmentMissing = "Department not found"
	msgBadgeAmbiguous    = "RFID is registered in more than one company"
	msgInvalidEndOfShift = "End of shift must be a time of day such as 19:00 or 7:00 PM"
	msgConcurrentPunch   = "Attendance is being recorded by another scan, try again"
	msgRecordFailed      = "Failed to record attendance"
	msgListFailed        = "Failed to load attendance"
	msgSettingsFailed    = "Failed to load settings"
)

// Locker serializes work on one key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// RetryPolicy bounds how often a punch is recomputed after a lost race or a
// store failure.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, Base: 25 * time.Millisecond, Max: time.Second}
}

// backoff returns the wait before attempt+1, with jitter in [d/2, d).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.Base << (attempt - 1)
	if d <= 0 || d > p.Max {
		d = p.Max
	}
	if half := d / 2; half > 0 {
		return half + rand.N(half)
	}
	return d
}

type PunchService struct {
	history   repository.PunchHistoryStore
	directory repository.WorkerDirectory
	settings  repository.SettingsStore
	clock     *clock.Local
	locker    Locker
	producer  messaging.EventProducer
	metrics   *metrics.Metrics
	retry     RetryPolicy
}

type Option func(*PunchService)

// WithLocker replaces the in-process per-key lock, e.g. with a Redis lock
// shared by several replicas.
func WithLocker(l Locker) Option {
	return func(s *PunchService) { s.locker = l }
}

// WithProducer publishes an event for every stored record.
func WithProducer(p messaging.EventProducer) Option {
	return func(s *PunchService) { s.producer = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *PunchService) { s.metrics = m }
}

func WithRetry(p RetryPolicy) Option {
	return func(s *PunchService) {
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		if p.Max <= 0 {
			p.Max = DefaultRetryPolicy().Max
		}
		s.retry = p
	}
}

// NewPunchService wires the punch recorder. Without options it serializes
// scans with an in-process lock and publishes nothing.
func NewPunchService(
	history repository.PunchHistoryStore,
	directory repository.WorkerDirectory,
	settings repository.SettingsStore,
	clk *clock.Local,
	opts ...Option,
) *PunchService {
	s := &PunchService{
		history:   history,
		directory: directory,
		settings:  settings,
		clock:     clk,
		locker:    keylock.New(),
		retry:     DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RecordPunch records a scan of badge for tenant and reports whether it was an
// arrival or a departure. A forgotten departure on an earlier day is closed
// first and returned as MissedOut.
func (s *PunchService) RecordPunch(ctx context.Context, tenant, badge string) (*model.PunchOutcome, error) {
	ctx, span := otel.Tracer("punch-service").Start(ctx, "RecordPunch")
	defer span.End()

	start := time.Now()
	out, err := s.recordPunch(ctx, tenant, badge)
	s.finish(ctx, span, start, err)
	return out, err
}

// RecordBadgeScan records a scan from a reader that does not know the company.
// The tenant is taken from the worker that owns the badge.
func (s *PunchService) RecordBadgeScan(ctx context.Context, badge string) (*model.PunchOutcome, error) {
	ctx, span := otel.Tracer("punch-service").Start(ctx, "RecordBadgeScan")
	defer span.End()

	start := time.Now()
	out, err := s.recordBadgeScan(ctx, badge)
	s.finish(ctx, span, start, err)
	return out, err
}

func (s *PunchService) recordPunch(ctx context.Context, tenant, badge string) (*model.PunchOutcome, error) {
	tenant, badge = strings.TrimSpace(tenant), strings.TrimSpace(badge)
	if err := validateTenant(tenant); err != nil {
		return nil, err
	}
	if badge == "" {
		return nil, apperr.New(apperr.CodeValidation, msgBadgeMissing)
	}

	var worker *model.Worker
	_, reason, err := s.withRetry(ctx, tenant+"/"+badge, func() error {
		w, err := s.directory.FindByBadge(ctx, tenant, badge)
		if errors.Is(err, sentinel.ErrNotFound) {
			return apperr.Wrap(err, apperr.CodeNotFound, msgWorkerNotFound)
		}
		worker = w
		return err
	})
	if err != nil {
		return nil, finalError(err, reason, msgRecordFailed)
	}
	return s.record(ctx, worker)
}

func (s *PunchService) recordBadgeScan(ctx context.Context, badge string) (*model.PunchOutcome, error) {
	badge = strings.TrimSpace(badge)
	if badge == "" {
		return nil, apperr.New(apperr.CodeValidation, msgBadgeMissing)
	}

	var worker *model.Worker
	_, reason, err := s.withRetry(ctx, badge, func() error {
		w, err := s.directory.FindByBadgeAnyTenant(ctx, badge)
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return apperr.Wrap(err, apperr.CodeValidation, msgBadgeAmbiguous)
		case errors.Is(err, sentinel.ErrNotFound):
			return apperr.Wrap(err, apperr.CodeNotFound, msgWorkerNotFound)
		}
		worker = w
		return err
	})
	if err != nil {
		return nil, finalError(err, reason, msgRecordFailed)
	}
	if err := validateTenant(worker.Tenant); err != nil {
		return nil, err
	}
	return s.record(ctx, worker)
}

// record runs read-resolve-append for worker's history under the key lock.
// Every step is retried: a lost race or a store, settings or lock failure
// starts over from a fresh head.
func (s *PunchService) record(ctx context.Context, worker *model.Worker) (*model.PunchOutcome, error) {
	key := model.Key{Tenant: worker.Tenant, Badge: worker.Badge}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("app.subdomain", key.Tenant),
		attribute.String("app.rfid", key.Badge),
		attribute.String("app.workerId", worker.ID),
	)

	var (
		dept       *model.Department
		endOfShift model.TimeOfDay
		records    []model.PunchRecord
		failMsg    = msgRecordFailed
	)
	attempts, reason, err := s.withRetry(ctx, key.String(), func() error {
		if dept == nil {
			d, err := s.directory.FindDepartment(ctx, worker.DepartmentID)
			if errors.Is(err, sentinel.ErrNotFound) {
				return apperr.Wrap(err, apperr.CodeNotFound, msgDepartmentMissing)
			}
			if err != nil {
				return fmt.Errorf("find department %s: %w", worker.DepartmentID, err)
			}
			dept = d
		}
		if endOfShift == "" {
			t, err := s.settings.DefaultEndOfShift(ctx, key.Tenant)
			if err != nil {
				failMsg = msgSettingsFailed
				return fmt.Errorf("load end of shift: %w", err)
			}
			endOfShift = t
		}
		failMsg = msgRecordFailed

		unlock, err := s.locker.Lock(ctx, key.String())
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		defer unlock()

		recs, err := s.attempt(ctx, key, worker, dept, endOfShift)
		if err != nil {
			return err
		}
		records = recs
		return nil
	})
	if err != nil {
		return nil, finalError(err, reason, failMsg)
	}

	out := outcomeOf(records)
	s.metrics.IncrementRecorded(out.Label, key.Tenant)
	if out.MissedOut != nil {
		s.metrics.IncrementMissedOut(key.Tenant)
	}
	log.Ctx(ctx).Info().
		Str("key", key.String()).
		Str("outcome", out.Label).
		Bool("missed_out", out.MissedOut != nil).
		Int("attempt", attempts).
		Msg("Punch recorded")

	s.publish(ctx, records)
	return out, nil
}

// withRetry runs op until it succeeds, fails for good or runs out of attempts.
// It returns the attempts made, and with the last error the reason it was
// being retried.
func (s *PunchService) withRetry(ctx context.Context, key string, op func() error) (int, string, error) {
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return attempt, "", nil
		}

		reason, retryable := retryReason(ctx, err)
		if !retryable || attempt >= s.retry.MaxAttempts {
			return attempt, reason, err
		}

		s.metrics.IncrementRetry(reason)
		wait := s.retry.backoff(attempt)
		log.Ctx(ctx).Warn().Err(err).
			Str("key", key).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Punch step failed, retrying")

		select {
		case <-ctx.Done():
			return attempt, "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

// attempt reads the head, resolves and appends. It returns the stored records,
// the real punch last.
func (s *PunchService) attempt(ctx context.Context, key model.Key, worker *model.Worker, dept *model.Department, endOfShift model.TimeOfDay) ([]model.PunchRecord, error) {
	head, err := s.history.Head(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read head of %s: %w", key, err)
	}

	now := s.clock.Now(key.Tenant)
	created := now.Instant.UTC().Truncate(time.Microsecond)
	if last := head.Last; last != nil {
		// A clock that stepped back must not reorder the history.
		if now.Date < last.Date || (now.Date == last.Date && now.Time.Seconds() < last.Time.Seconds()) {
			now.Date, now.Time = last.Date, last.Time
		}
		if !created.After(last.CreatedAt) {
			created = last.CreatedAt.Add(time.Microsecond)
		}
	}

	resolved := presence.Resolve(head.Last, now.Date, now.Time, endOfShift)
	records := make([]model.PunchRecord, 0, len(resolved.Entries))
	for i, e := range resolved.Entries {
		records = append(records, model.PunchRecord{
			ID:               uuid.New(),
			Tenant:           key.Tenant,
			Badge:            key.Badge,
			WorkerID:         worker.ID,
			WorkerName:       worker.Name,
			Username:         worker.Username,
			Photo:            worker.Photo,
			DepartmentID:     dept.ID,
			DepartmentName:   dept.Name,
			Date:             e.Date,
			Time:             e.Time,
			Presence:         e.Presence,
			IsMissedOutPunch: e.IsMissedOutPunch,
			CreatedAt:        created.Add(time.Duration(i) * time.Microsecond),
		})
	}

	if err := s.history.Append(ctx, key, head.Version, records...); err != nil {
		return nil, fmt.Errorf("append to %s at version %d: %w", key, head.Version, err)
	}
	return records, nil
}

// publish announces stored records. The punch already happened, so failures
// are only logged and counted.
func (s *PunchService) publish(ctx context.Context, records []model.PunchRecord) {
	if s.producer == nil {
		return
	}
	for _, rec := range records {
		occurredAt := rec.CreatedAt
		if err := s.producer.PublishExport(ctx, messaging.EventPunchRecorded, messaging.PunchRecordedEvent{
			RecordID:         rec.ID.String(),
			Subdomain:        rec.Tenant,
			RFID:             rec.Badge,
			WorkerID:         rec.WorkerID,
			WorkerName:       rec.WorkerName,
			DepartmentName:   rec.DepartmentName,
			Date:             rec.Date.String(),
			Time:             rec.Time.String(),
			Presence:         rec.Presence,
			IsMissedOutPunch: rec.IsMissedOutPunch,
			OccurredAt:       occurredAt,
		}); err != nil {
			s.metrics.IncrementPublishFailure(messaging.EventPunchRecorded)
			log.Ctx(ctx).Error().Err(err).Str("record_id", rec.ID.String()).Msg("Failed to publish punch event")
		}

		if !rec.IsMissedOutPunch {
			continue
		}
		if err := s.producer.PublishNotify(ctx, messaging.EventMissedPunch, messaging.MissedPunchEvent{
			RecordID:   rec.ID.String(),
			Subdomain:  rec.Tenant,
			RFID:       rec.Badge,
			WorkerID:   rec.WorkerID,
			Date:       rec.Date.String(),
			Time:       rec.Time.String(),
			OccurredAt: occurredAt,
		}); err != nil {
			s.metrics.IncrementPublishFailure(messaging.EventMissedPunch)
			log.Ctx(ctx).Error().Err(err).Str("record_id", rec.ID.String()).Msg("Failed to publish missed punch event")
		}
	}
}

func (s *PunchService) finish(ctx context.Context, span trace.Span, start time.Time, err error) {
	s.metrics.ObservePunchLatency(time.Since(start))
	if err != nil {
		code := apperr.CodeOf(err)
		s.metrics.IncrementFailure(string(code))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		if code == apperr.CodeInternal || code == apperr.CodeConflict {
			log.Ctx(ctx).Error().Err(err).Msg("Punch failed")
		}
		return
	}
	span.SetStatus(codes.Ok, "")
}

// ListHistory returns the ordered history of one badge.
func (s *PunchService) ListHistory(ctx context.Context, tenant, badge string) ([]model.PunchRecord, error) {
	tenant, badge = strings.TrimSpace(tenant), strings.TrimSpace(badge)
	if err := validateTenant(tenant); err != nil {
		return nil, err
	}
	if badge == "" {
		return nil, apperr.New(apperr.CodeValidation, msgBadgeMissing)
	}

	records, err := repository.Collect(s.history.ListOrdered(ctx, model.Key{Tenant: tenant, Badge: badge}))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, msgListFailed)
	}
	return records, nil
}

// ListTenantHistory returns every record of tenant, grouped by badge.
func (s *PunchService) ListTenantHistory(ctx context.Context, tenant string) ([]model.PunchRecord, error) {
	tenant = strings.TrimSpace(tenant)
	if err := validateTenant(tenant); err != nil {
		return nil, err
	}

	records, err := repository.Collect(s.history.ListTenant(ctx, tenant))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, msgListFailed)
	}
	return records, nil
}

func (s *PunchService) EndOfShift(ctx context.Context, tenant string) (model.TimeOfDay, error) {
	tenant = strings.TrimSpace(tenant)
	if err := validateTenant(tenant); err != nil {
		return "", err
	}
	t, err := s.settings.DefaultEndOfShift(ctx, tenant)
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeInternal, msgSettingsFailed)
	}
	return t, nil
}

// SetEndOfShift stores the time used to close a forgotten departure.
// value accepts 12 or 24 hour clock forms.
func (s *PunchService) SetEndOfShift(ctx context.Context, tenant, value string) (model.TimeOfDay, error) {
	tenant = strings.TrimSpace(tenant)
	if err := validateTenant(tenant); err != nil {
		return "", err
	}
	t, err := model.ParseTimeOfDay(value)
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeValidation, msgInvalidEndOfShift)
	}
	if err := s.settings.SetDefaultEndOfShift(ctx, tenant, t); err != nil {
		return "", apperr.Wrap(err, apperr.CodeInternal, msgSettingsFailed)
	}
	log.Ctx(ctx).Info().Str("subdomain", tenant).Str("end_of_shift", t.String()).Msg("End of shift updated")
	return t, nil
}

func validateTenant(tenant string) error {
	if tenant == "" || tenant == model.PlaceholderTenant {
		return apperr.New(apperr.CodeValidation, msgTenantMissing)
	}
	return nil
}

// finalError turns the last error of withRetry into the caller's answer.
// Coded errors pass through, exhausted conflicts become conflicts and
// everything else is an internal failure reported as msg.
func finalError(err error, reason, msg string) error {
	var coded *apperr.Error
	switch {
	case errors.As(err, &coded):
		return err
	case reason == "conflict":
		return apperr.Wrap(err, apperr.CodeConflict, msgConcurrentPunch)
	default:
		return apperr.Wrap(err, apperr.CodeInternal, msg)
	}
}

// retryReason classifies an attempt error. Coded errors, missing rows and
// cancellation are final; any other I/O failure is treated as transient.
func retryReason(ctx context.Context, err error) (string, bool) {
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "", false
	case errors.Is(err, sentinel.ErrNotFound):
		return "", false
	case errors.Is(err, sentinel.ErrConflict):
		return "conflict", true
	}
	var coded *apperr.Error
	if errors.As(err, &coded) {
		return "", false
	}
	return "transient", true
}

func outcomeOf(records []model.PunchRecord) *model.PunchOutcome {
	punch := records[len(records)-1]
	out := &model.PunchOutcome{
		Label:   punch.Label(),
		Message: "Attendance marked as " + punch.Label(),
		Record:  punch,
	}
	if len(records) > 1 {
		missed := records[0]
		out.MissedOut = &missed
	}
	return out
}
