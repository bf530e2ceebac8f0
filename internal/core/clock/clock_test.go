package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"punch.service/internal/core/model"
)

func TestVirtualClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC)
	c := NewVirtualClock(start)

	assert.True(t, c.Now().Equal(start))

	time.Sleep(5 * time.Millisecond)
	assert.True(t, c.Now().Equal(start), "virtual time must not advance on its own")

	c.AdvanceBy(time.Hour)
	assert.True(t, c.Now().Equal(start.Add(time.Hour)))

	c.Set(start)
	assert.True(t, c.Now().Equal(start))
}

func TestVirtualClockConcurrentAccess(t *testing.T) {
	c := NewVirtualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.AdvanceBy(time.Second)
		}()
		go func() {
			defer wg.Done()
			_ = c.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 20, 0, time.UTC), c.Now())
}

func TestLocalRendersOrganizationalZone(t *testing.T) {
	// 20:00 UTC is 01:30 the next day in Asia/Kolkata
	vc := NewVirtualClock(time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC))
	local, err := NewLocal(vc, "Asia/Kolkata")
	require.NoError(t, err)

	r := local.Now("techvaseegrah")
	assert.Equal(t, model.Date("2024-01-02"), r.Date)
	assert.Equal(t, model.TimeOfDay("1:30:00 AM"), r.Time)
	assert.True(t, r.Instant.Equal(vc.Now()))

	other := local.Now("acme")
	assert.Equal(t, r.Date, other.Date)
	assert.Equal(t, r.Time, other.Time)
}

func TestLocalIgnoresHostZone(t *testing.T) {
	vc := NewVirtualClock(time.Date(2024, 6, 1, 3, 45, 10, 0, time.FixedZone("host", -7*3600)))
	local := NewLocalIn(vc, time.UTC)

	r := local.Now("acme")
	assert.Equal(t, model.Date("2024-06-01"), r.Date)
	assert.Equal(t, model.TimeOfDay("10:45:10 AM"), r.Time)
}

func TestNewLocalRejectsUnknownZone(t *testing.T) {
	_, err := NewLocal(NewRealTimeClock(), "Mars/Olympus")
	assert.Error(t, err)
}
