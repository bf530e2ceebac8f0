// Package presence decides whether a badge scan is an arrival or a departure.
//
// The rule toggles on the last recorded presence and ignores dates, with one
// exception: a scan on a new day while the last record is still an arrival means
// the worker never scanned out. That day is closed with a synthesized departure
// at the tenant's default end of shift before the new arrival is recorded.
//
// Resolution is pure. Callers supply the clock reading and the tenant setting.
package presence

import (
	"punch.service/internal/core/model"
)

// Entry is one record the caller must append, in order.
type Entry struct {
	Date             model.Date
	Time             model.TimeOfDay
	Presence         bool
	IsMissedOutPunch bool
}

// Outcome holds zero or one synthesized departure followed by the real punch.
type Outcome struct {
	Entries []Entry
}

// Punch returns the real (scanned) entry.
func (o Outcome) Punch() Entry {
	return o.Entries[len(o.Entries)-1]
}

// MissedOut returns the synthesized departure, if any.
func (o Outcome) MissedOut() (Entry, bool) {
	if len(o.Entries) < 2 {
		return Entry{}, false
	}
	return o.Entries[0], true
}

// Label is "in" or "out" for the real punch.
func (o Outcome) Label() string {
	if o.Punch().Presence {
		return model.LabelIn
	}
	return model.LabelOut
}

// Resolve computes the records produced by a scan at (today, now) given the last
// record of the history, or nil when the history is empty.
// A synthesized OUT is placed at defaultEndOfShift, or at the IN it closes when
// the end of shift comes earlier in the day.
func Resolve(last *model.PunchRecord, today model.Date, now, defaultEndOfShift model.TimeOfDay) Outcome {
	if last == nil {
		return Outcome{Entries: []Entry{{Date: today, Time: now, Presence: true}}}
	}

	presence := !last.Presence
	if presence || last.Date == today {
		return Outcome{Entries: []Entry{{Date: today, Time: now, Presence: presence}}}
	}

	// Still IN from an earlier day: close it, then arrive.
	closeAt := defaultEndOfShift
	if closeAt.Seconds() < last.Time.Seconds() {
		closeAt = last.Time
	}
	return Outcome{Entries: []Entry{
		{Date: last.Date, Time: closeAt, Presence: false, IsMissedOutPunch: true},
		{Date: today, Time: now, Presence: true},
	}}
}

// ResolveHistory is Resolve over a history ordered by (date, time, creation).
func ResolveHistory(history []model.PunchRecord, today model.Date, now, defaultEndOfShift model.TimeOfDay) Outcome {
	if len(history) == 0 {
		return Resolve(nil, today, now, defaultEndOfShift)
	}
	last := history[len(history)-1]
	return Resolve(&last, today, now, defaultEndOfShift)
}
