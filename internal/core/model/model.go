package model

import (
	"time"

	"github.com/google/uuid"
)

// PlaceholderTenant is the subdomain a session carries before a company is chosen.
// It never owns workers or punches.
const PlaceholderTenant = "main"

// Outcome labels returned to callers.
const (
	LabelIn  = "in"
	LabelOut = "out"
)

// Key identifies one punch history.
type Key struct {
	Tenant string
	Badge  string
}

func (k Key) String() string {
	return k.Tenant + "/" + k.Badge
}

type Department struct {
	ID     string `json:"id"`
	Tenant string `json:"subdomain"`
	Name   string `json:"name"`
}

// Worker is read-only for the punch flow. DailySalary belongs to the leave workflow.
type Worker struct {
	ID           string  `json:"id"`
	Tenant       string  `json:"subdomain"`
	Badge        string  `json:"rfid"`
	Name         string  `json:"name"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	Photo        string  `json:"photo,omitempty"`
	DepartmentID string  `json:"department"`
	DailySalary  float64 `json:"perDaySalary"`
}

// PunchRecord is one entry of a worker's attendance history. Department and worker
// fields are snapshots taken when the punch was recorded.
type PunchRecord struct {
	ID               uuid.UUID `json:"id"`
	Tenant           string    `json:"subdomain"`
	Badge            string    `json:"rfid"`
	WorkerID         string    `json:"worker"`
	WorkerName       string    `json:"name"`
	Username         string    `json:"username"`
	Photo            string    `json:"photo,omitempty"`
	DepartmentID     string    `json:"department"`
	DepartmentName   string    `json:"departmentName"`
	Date             Date      `json:"date"`
	Time             TimeOfDay `json:"time"`
	Presence         bool      `json:"presence"`
	IsMissedOutPunch bool      `json:"isMissedOutPunch"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (r PunchRecord) Key() Key {
	return Key{Tenant: r.Tenant, Badge: r.Badge}
}

// Label renders presence as "in" or "out".
func (r PunchRecord) Label() string {
	if r.Presence {
		return LabelIn
	}
	return LabelOut
}

// Less orders records by date, time of day and creation time.
func (r PunchRecord) Less(o PunchRecord) bool {
	if r.Date != o.Date {
		return r.Date < o.Date
	}
	if rs, ss := r.Time.Seconds(), o.Time.Seconds(); rs != ss {
		return rs < ss
	}
	return r.CreatedAt.Before(o.CreatedAt)
}

// PunchOutcome is the result of recording one scan.
type PunchOutcome struct {
	Label     string       `json:"outcome"`
	Message   string       `json:"message"`
	Record    PunchRecord  `json:"attendance"`
	MissedOut *PunchRecord `json:"missedOutPunch,omitempty"`
}
