// internal/sim/state/state.go
package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jafarizadeh/wifi-ter-sim/internal/logging"
	"github.com/jafarizadeh/wifi-ter-sim/model"
)

var (
	// ErrParticipantExists indicates a participant already exists.
	ErrParticipantExists = errors.New("participant already exists")
	// ErrParticipantNotFound indicates a requested participant was not found.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrParticipantInvalid indicates a participant failed validation.
	ErrParticipantInvalid = errors.New("invalid participant")
	// ErrRouteInvalid indicates a route entry failed validation.
	ErrRouteInvalid = errors.New("invalid route")
)

// SessionState holds the forwarding-plane view of one roaming session:
// the participants (client, server, access points) and each
// participant's route table. It is the RouteProgrammer the routing
// synchronizer writes through.
//
// mu is the coarse session-level lock; every exported method takes it.
type SessionState struct {
	mu sync.RWMutex

	participants map[string]*model.Participant
	routes       map[string][]model.RouteEntry

	// log is an optional structured logger for state-level events.
	log logging.Logger

	// metrics is an optional recorder for Prometheus-friendly gauges.
	metrics SessionMetricsRecorder
}

// SessionSnapshot captures a consistent view of all in-memory state
// managed by SessionState. The route slices are copies; the
// participant pointers are owned by the state and MUST be treated as
// read-only.
type SessionSnapshot struct {
	Participants        []*model.Participant
	RoutesByParticipant map[string][]model.RouteEntry
}

// SessionMetricsRecorder receives count updates for session entities.
type SessionMetricsRecorder interface {
	SetSessionCounts(participants, routes int)
}

// SessionStateOption customises SessionState construction.
type SessionStateOption func(*SessionState)

// WithMetricsRecorder attaches an optional metrics recorder for entity counts.
func WithMetricsRecorder(m SessionMetricsRecorder) SessionStateOption {
	return func(s *SessionState) {
		s.metrics = m
	}
}

// NewSessionState prepares an empty session.
func NewSessionState(log logging.Logger, opts ...SessionStateOption) *SessionState {
	if log == nil {
		log = logging.Noop()
	}
	state := &SessionState{
		participants: make(map[string]*model.Participant),
		routes:       make(map[string][]model.RouteEntry),
		log:          log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(state)
		}
	}
	state.updateMetricsLocked()
	return state
}

// AddParticipant registers a participant. Participants are added once
// at scenario setup.
func (s *SessionState) AddParticipant(p *model.Participant) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: empty participant", ErrParticipantInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.participants[p.ID]; exists {
		return fmt.Errorf("%w: %q", ErrParticipantExists, p.ID)
	}
	s.participants[p.ID] = p

	s.updateMetricsLocked()
	return nil
}

// GetParticipant retrieves a participant by ID.
func (s *SessionState) GetParticipant(id string) (*model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrParticipantNotFound, id)
	}
	return p, nil
}

// HasParticipant reports whether a participant is registered. Satisfies
// the routing layer's existence check during session setup.
func (s *SessionState) HasParticipant(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.participants[id]
	return ok
}

// ListParticipants returns all participants in a stable order.
func (s *SessionState) ListParticipants() []*model.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ParticipantsByRole returns the participants holding the given role,
// in a stable order.
func (s *SessionState) ParticipantsByRole(role model.ParticipantRole) []*model.Participant {
	all := s.ListParticipants()
	out := make([]*model.Participant, 0, len(all))
	for _, p := range all {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

// AddRoute installs a route on a participant. An existing route with
// the same destination is replaced in place, so repeated installs
// converge on one entry per destination.
func (s *SessionState) AddRoute(ctx context.Context, participantID string, route model.RouteEntry) error {
	if route.DestinationCIDR == "" {
		return fmt.Errorf("%w: empty destination", ErrRouteInvalid)
	}
	if route.NextHopAddr == "" {
		return fmt.Errorf("%w: %s has no next hop", ErrRouteInvalid, route.DestinationCIDR)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[participantID]; !ok {
		return fmt.Errorf("%w: %q", ErrParticipantNotFound, participantID)
	}

	table := s.routes[participantID]
	replaced := false
	for i, r := range table {
		if r.DestinationCIDR == route.DestinationCIDR {
			table[i] = route
			replaced = true
			break
		}
	}
	if !replaced {
		table = append(table, route)
	}
	s.routes[participantID] = table

	s.log.Debug(ctx, "route installed",
		logging.String("participant", participantID),
		logging.String("destination", route.DestinationCIDR),
		logging.String("next_hop", route.NextHopAddr),
	)
	s.updateMetricsLocked()
	return nil
}

// RemoveRoutesMatching deletes every route on the participant whose
// destination equals destinationCIDR and returns how many were
// removed. Removing a destination that has no routes is not an error.
func (s *SessionState) RemoveRoutesMatching(ctx context.Context, participantID string, destinationCIDR string) (int, error) {
	if destinationCIDR == "" {
		return 0, fmt.Errorf("%w: empty destination", ErrRouteInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[participantID]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrParticipantNotFound, participantID)
	}

	table := s.routes[participantID]
	kept := table[:0]
	removed := 0
	for _, r := range table {
		if r.DestinationCIDR == destinationCIDR {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.routes[participantID] = kept

	if removed > 0 {
		s.log.Debug(ctx, "routes removed",
			logging.String("participant", participantID),
			logging.String("destination", destinationCIDR),
			logging.Int("count", removed),
		)
		s.updateMetricsLocked()
	}
	return removed, nil
}

// Routes returns a copy of a participant's route table.
func (s *SessionState) Routes(participantID string) ([]model.RouteEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.participants[participantID]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrParticipantNotFound, participantID)
	}

	table := s.routes[participantID]
	out := make([]model.RouteEntry, len(table))
	copy(out, table)
	return out, nil
}

// Route returns the route on participantID whose destination exactly
// matches destinationCIDR. The returned entry is a copy. The second
// return is false when the participant or route is absent.
func (s *SessionState) Route(participantID, destinationCIDR string) (model.RouteEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.routes[participantID] {
		if r.DestinationCIDR == destinationCIDR {
			return r, true
		}
	}
	return model.RouteEntry{}, false
}

// RouteCount returns the total number of installed routes across all
// participants.
func (s *SessionState) RouteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routeCountLocked()
}

// Snapshot returns a coherent view of the current session state.
func (s *SessionState) Snapshot() *SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participants := make([]*model.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		participants = append(participants, p)
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].ID < participants[j].ID })

	byParticipant := make(map[string][]model.RouteEntry, len(s.routes))
	for id, table := range s.routes {
		cp := make([]model.RouteEntry, len(table))
		copy(cp, table)
		byParticipant[id] = cp
	}

	return &SessionSnapshot{
		Participants:        participants,
		RoutesByParticipant: byParticipant,
	}
}

// ClearSession wipes all in-memory session data so a fresh scenario
// can be loaded without dangling references.
func (s *SessionState) ClearSession(ctx context.Context) error {
	ctx, sesLog := logging.WithSessionLogger(ctx, s.log)

	s.mu.Lock()
	defer s.mu.Unlock()

	participants := len(s.participants)
	routes := s.routeCountLocked()
	sesLog.Debug(ctx, "clearing session",
		logging.String("operation", "clear"),
		logging.Int("participants", participants),
		logging.Int("routes", routes),
	)

	s.participants = make(map[string]*model.Participant)
	s.routes = make(map[string][]model.RouteEntry)

	s.updateMetricsLocked()

	sesLog.Debug(ctx, "session cleared",
		logging.String("operation", "clear"),
		logging.Int("participants", participants),
		logging.Int("routes", routes),
	)
	return nil
}

// routeCountLocked sums route table sizes. Caller must hold s.mu.
func (s *SessionState) routeCountLocked() int {
	total := 0
	for _, table := range s.routes {
		total += len(table)
	}
	return total
}

// updateMetricsLocked pushes current entity counts into the metrics recorder.
// Caller must hold s.mu when invoking this helper.
func (s *SessionState) updateMetricsLocked() {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.SetSessionCounts(len(s.participants), s.routeCountLocked())
}
