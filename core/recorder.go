package core

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jafarizadeh/wifi-ter-sim/model"
)

// RoamEventRecorder keeps the append-only handover history of one
// session. It is a passive observer: nothing it stores feeds back into
// decisions.
type RoamEventRecorder struct {
	mu     sync.Mutex
	events []model.RoamEvent
}

// NewRoamEventRecorder returns an empty recorder.
func NewRoamEventRecorder() *RoamEventRecorder {
	return &RoamEventRecorder{}
}

// Record appends one event. The first observation of a session is
// tagged RoamEventInit by the caller; every later distinct serving
// identifier is tagged RoamEventRoam.
func (r *RoamEventRecorder) Record(t time.Time, typ model.RoamEventType, id LinkIdentifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, model.RoamEvent{Time: t, Type: typ, LinkID: string(id)})
}

// Events returns a copy of the history in record order.
func (r *RoamEventRecorder) Events() []model.RoamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.RoamEvent, len(r.events))
	copy(out, r.events)
	return out
}

// FirstRoamTime returns the timestamp of the earliest RoamEventRoam
// entry. ok is false when no roam has occurred.
func (r *RoamEventRecorder) FirstRoamTime() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == model.RoamEventRoam {
			return ev.Time, true
		}
	}
	return time.Time{}, false
}

// WriteTo emits the history as the reporting layer's line format,
// one event per line: time_s,event_type,link_identifier. Times are
// seconds relative to epoch so the log lines up with the other
// per-run series.
func (r *RoamEventRecorder) WriteTo(w io.Writer, epoch time.Time) error {
	for _, ev := range r.Events() {
		t := ev.Time.Sub(epoch).Seconds()
		if _, err := fmt.Fprintf(w, "%.6f,%s,%s\n", t, ev.Type, ev.LinkID); err != nil {
			return err
		}
	}
	return nil
}
