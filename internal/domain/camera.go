package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transport identifies how frames are pulled from a camera.
type Transport string

const (
	TransportRTSP   Transport = "rtsp"
	TransportHTTP   Transport = "http"
	TransportWebcam Transport = "webcam"
)

// MonitorMode selects how a camera monitor obtains recognition triggers.
type MonitorMode string

const (
	// ModeEvent waits for the camera's own face-detection push events and
	// grabs a snapshot per event.
	ModeEvent MonitorMode = "event"
	// ModePolling pulls snapshots on a fixed interval while at least one
	// scheduled event is active.
	ModePolling MonitorMode = "polling"
)

// Camera is created and soft-deleted by the external CRUD layer. The
// monitoring pipeline only mutates Status and LastSeen.
type Camera struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Transport Transport   `json:"transport"`
	StreamURL string      `json:"stream_url"`
	Username  string      `json:"-"`
	Password  string      `json:"-"`
	Mode      MonitorMode `json:"mode"`
	Active    bool        `json:"active"`
	Status    string      `json:"status"`
	LastSeen  *time.Time  `json:"last_seen,omitempty"`
}

// EventRef is a scheduled business event that gates polling-mode
// recognition. An empty Participants list means the event is open to any
// enrolled identity.
type EventRef struct {
	ID           uuid.UUID
	Name         string
	Participants []string
}

// Admits reports whether the identity may be recorded against this event.
func (e EventRef) Admits(personID string) bool {
	if len(e.Participants) == 0 {
		return true
	}
	for _, p := range e.Participants {
		if p == personID {
			return true
		}
	}
	return false
}
