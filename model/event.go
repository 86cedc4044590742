package model

import "time"

// RoamEventType tags entries in the roam event log.
type RoamEventType string

const (
	// RoamEventInit marks the first observed association of the session.
	RoamEventInit RoamEventType = "INIT"
	// RoamEventRoam marks every subsequent change of serving access point.
	RoamEventRoam RoamEventType = "ROAM"
)

// RoamEvent is one append-only entry in the handover history.
// Events are created by the recorder and never mutated or deleted.
type RoamEvent struct {
	Time   time.Time
	Type   RoamEventType
	LinkID string
}
