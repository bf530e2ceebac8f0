package messaging

import "time"

// Event types carried in the EventType message attribute.
const (
	EventPunchRecorded = "PUNCH_RECORDED"
	EventMissedPunch   = "MISSED_OUT_PUNCH"
)

// PunchRecordedEvent is the JSON payload sent via SQS for the export queue,
// one per persisted punch record.
type PunchRecordedEvent struct {
	RecordID         string    `json:"recordId"`
	Subdomain        string    `json:"subdomain"`
	RFID             string    `json:"rfid"`
	WorkerID         string    `json:"workerId"`
	WorkerName       string    `json:"name"`
	DepartmentName   string    `json:"departmentName"`
	Date             string    `json:"date"`
	Time             string    `json:"time"`
	Presence         bool      `json:"presence"`
	IsMissedOutPunch bool      `json:"isMissedOutPunch"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// MissedPunchEvent is the JSON payload sent via SQS for the notification queue
// whenever a departure had to be synthesized.
type MissedPunchEvent struct {
	RecordID   string    `json:"recordId"`
	Subdomain  string    `json:"subdomain"`
	RFID       string    `json:"rfid"`
	WorkerID   string    `json:"workerId"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	OccurredAt time.Time `json:"occurredAt"`
}
