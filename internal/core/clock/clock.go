// Package clock isolates the current time from punch decisions.
//
// Clock is the raw time source. Local renders a Clock reading in the single
// organizational zone, so results never depend on the host's locale or TZ.
// Production wires RealTimeClock; tests wire VirtualClock.
package clock

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // zone data must not depend on the host image

	"punch.service/internal/core/model"
)

// Clock abstracts the current time. Implementations must be safe for
// concurrent use.
type Clock interface {
	Now() time.Time
}

// RealTimeClock delegates to time.Now.
type RealTimeClock struct{}

func NewRealTimeClock() *RealTimeClock {
	return &RealTimeClock{}
}

func (RealTimeClock) Now() time.Time {
	return time.Now()
}

// VirtualClock only moves when told to.
type VirtualClock struct {
	mu      sync.RWMutex
	current time.Time
}

func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{current: start}
}

func (v *VirtualClock) Now() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set moves the clock to t, backwards included.
func (v *VirtualClock) Set(t time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = t
}

func (v *VirtualClock) AdvanceBy(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = v.current.Add(d)
}

// Reading is one clock observation rendered for a tenant.
type Reading struct {
	Instant time.Time
	Date    model.Date
	Time    model.TimeOfDay
}

// Local renders Clock readings in the organizational zone.
type Local struct {
	clock Clock
	loc   *time.Location
}

// NewLocal loads zone (an IANA name such as "Asia/Kolkata").
func NewLocal(c Clock, zone string) (*Local, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return NewLocalIn(c, loc), nil
}

func NewLocalIn(c Clock, loc *time.Location) *Local {
	if c == nil {
		c = NewRealTimeClock()
	}
	return &Local{clock: c, loc: loc}
}

// Now reads the clock for a tenant. Every tenant shares the organizational
// zone, so the tenant does not change the reading.
func (l *Local) Now(_ string) Reading {
	instant := l.clock.Now()
	local := instant.In(l.loc)
	return Reading{
		Instant: instant,
		Date:    model.DateOf(local),
		Time:    model.TimeOf(local),
	}
}

func (l *Local) Location() *time.Location {
	return l.loc
}
