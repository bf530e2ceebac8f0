package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"punch.service/internal/core/model"
	"punch.service/internal/ports/repository"
	"punch.service/pkg/platform/sentinel"
)

type PunchStoreSuite struct {
	suite.Suite
	store *PunchStore
	ctx   context.Context
	key   model.Key
	t0    time.Time
}

func TestPunchStoreSuite(t *testing.T) {
	suite.Run(t, new(PunchStoreSuite))
}

func (s *PunchStoreSuite) SetupTest() {
	s.store = NewPunchStore()
	s.ctx = context.Background()
	s.key = model.Key{Tenant: "techvaseegrah", Badge: "LF3643"}
	s.t0 = time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
}

func (s *PunchStoreSuite) newRecord(date model.Date, tod string, presence bool) model.PunchRecord {
	s.t0 = s.t0.Add(time.Second)
	return model.PunchRecord{
		ID:        uuid.New(),
		Tenant:    s.key.Tenant,
		Badge:     s.key.Badge,
		Date:      date,
		Time:      model.MustParseTimeOfDay(tod),
		Presence:  presence,
		CreatedAt: s.t0,
	}
}

func (s *PunchStoreSuite) TestHeadTracksLastAppend() {
	s.Run("empty history has version zero", func() {
		head, err := s.store.Head(s.ctx, s.key)
		s.Require().NoError(err)
		s.Nil(head.Last)
		s.Zero(head.Version)
	})

	s.Run("append moves head", func() {
		in := s.newRecord("2024-01-01", "9:15 AM", true)
		s.Require().NoError(s.store.Append(s.ctx, s.key, 0, in))

		head, err := s.store.Head(s.ctx, s.key)
		s.Require().NoError(err)
		s.Equal(int64(1), head.Version)
		s.Equal(in.ID, head.Last.ID)
	})

	s.Run("multi-record append counts as one version", func() {
		missed := s.newRecord("2024-01-01", "7:00 PM", false)
		missed.IsMissedOutPunch = true
		in := s.newRecord("2024-01-02", "9:00 AM", true)
		s.Require().NoError(s.store.Append(s.ctx, s.key, 1, missed, in))

		head, err := s.store.Head(s.ctx, s.key)
		s.Require().NoError(err)
		s.Equal(int64(2), head.Version)
		s.Equal(in.ID, head.Last.ID)
	})
}

func (s *PunchStoreSuite) TestAppendRejectsStaleVersion() {
	s.Require().NoError(s.store.Append(s.ctx, s.key, 0, s.newRecord("2024-01-01", "9:00 AM", true)))

	err := s.store.Append(s.ctx, s.key, 0, s.newRecord("2024-01-01", "9:00 AM", true))
	s.ErrorIs(err, sentinel.ErrConflict)

	recs, err := repository.Collect(s.store.ListOrdered(s.ctx, s.key))
	s.Require().NoError(err)
	s.Len(recs, 1, "rejected append must not leave records behind")
}

func (s *PunchStoreSuite) TestOneMissedOutPerDay() {
	in := s.newRecord("2024-01-01", "9:00 AM", true)
	s.Require().NoError(s.store.Append(s.ctx, s.key, 0, in))

	missed := s.newRecord("2024-01-01", "7:00 PM", false)
	missed.IsMissedOutPunch = true
	s.Require().NoError(s.store.Append(s.ctx, s.key, 1, missed))

	again := s.newRecord("2024-01-01", "7:00 PM", false)
	again.IsMissedOutPunch = true
	err := s.store.Append(s.ctx, s.key, 2, again)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PunchStoreSuite) TestAppendRejectsForeignKey() {
	rec := s.newRecord("2024-01-01", "9:00 AM", true)
	rec.Badge = "OTHER"

	err := s.store.Append(s.ctx, s.key, 0, rec)
	s.Error(err)
	s.NotErrorIs(err, sentinel.ErrConflict)
}

func (s *PunchStoreSuite) TestListOrderedIsChronologicalAndRestartable() {
	// appended out of order on purpose: 10 AM sorts after 9 AM despite string order
	late := s.newRecord("2024-01-01", "10:12 AM", false)
	early := s.newRecord("2024-01-01", "9:15 AM", true)
	next := s.newRecord("2024-01-02", "8:00 AM", true)
	s.Require().NoError(s.store.Append(s.ctx, s.key, 0, late, early, next))

	seq := s.store.ListOrdered(s.ctx, s.key)
	first, err := repository.Collect(seq)
	s.Require().NoError(err)
	second, err := repository.Collect(seq)
	s.Require().NoError(err)

	s.Equal(first, second)
	s.Require().Len(first, 3)
	s.Equal(early.ID, first[0].ID)
	s.Equal(late.ID, first[1].ID)
	s.Equal(next.ID, first[2].ID)

	var taken int
	for range seq {
		taken++
		break
	}
	s.Equal(1, taken)
}

func (s *PunchStoreSuite) TestListTenantSpansBadges() {
	other := model.Key{Tenant: s.key.Tenant, Badge: "AA0001"}
	foreign := model.Key{Tenant: "acme", Badge: s.key.Badge}

	s.Require().NoError(s.store.Append(s.ctx, s.key, 0, s.newRecord("2024-01-01", "9:00 AM", true)))
	rec := s.newRecord("2024-01-01", "9:30 AM", true)
	rec.Badge = other.Badge
	s.Require().NoError(s.store.Append(s.ctx, other, 0, rec))
	rec = s.newRecord("2024-01-01", "9:30 AM", true)
	rec.Tenant = foreign.Tenant
	s.Require().NoError(s.store.Append(s.ctx, foreign, 0, rec))

	recs, err := repository.Collect(s.store.ListTenant(s.ctx, s.key.Tenant))
	s.Require().NoError(err)
	s.Require().Len(recs, 2)
	s.Equal("AA0001", recs[0].Badge)
	s.Equal(s.key.Badge, recs[1].Badge)

	empty, err := repository.Collect(s.store.ListTenant(s.ctx, "nobody"))
	s.Require().NoError(err)
	s.Empty(empty)
}

// TestConcurrentAppendsSameVersion verifies that exactly one writer wins a version.
func (s *PunchStoreSuite) TestConcurrentAppendsSameVersion() {
	const writers = 32
	var wg sync.WaitGroup
	var wins atomic.Int32

	records := make([]model.PunchRecord, writers)
	for i := range records {
		records[i] = s.newRecord("2024-01-01", "9:00 AM", true)
	}

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(rec model.PunchRecord) {
			defer wg.Done()
			if err := s.store.Append(s.ctx, s.key, 0, rec); err == nil {
				wins.Add(1)
			}
		}(records[i])
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	head, err := s.store.Head(s.ctx, s.key)
	s.Require().NoError(err)
	s.Equal(int64(1), head.Version)
}
