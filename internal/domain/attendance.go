package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceStatus classifies an accepted check-in by arrival time.
type AttendanceStatus string

const (
	StatusOnTime  AttendanceStatus = "on_time"
	StatusLate    AttendanceStatus = "late"
	StatusHalfDay AttendanceStatus = "half_day"
)

// AttendanceMethod tags which pipeline produced the record.
type AttendanceMethod string

const (
	MethodCameraEvent AttendanceMethod = "camera_event"
	MethodCameraPoll  AttendanceMethod = "camera_poll"
)

// AttendanceRecord is append-only: created through the AttendanceWriter
// contract and never mutated by the monitoring core.
type AttendanceRecord struct {
	ID         uuid.UUID        `json:"id"`
	PersonID   string           `json:"person_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Confidence float64          `json:"confidence"`
	Method     AttendanceMethod `json:"method"`
	EventID    *uuid.UUID       `json:"event_id,omitempty"`
	CameraID   *uuid.UUID       `json:"camera_id,omitempty"`
	Status     AttendanceStatus `json:"status"`
	Notes      string           `json:"notes,omitempty"`
}
