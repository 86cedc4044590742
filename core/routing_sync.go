package core

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
	ErrPlanIncomplete     = errors.New("routing plan incomplete")
	ErrUnknownServing     = errors.New("serving link not in routing plan")
	ErrUnknownParticipant = errors.New("participant not registered with route programmer")
)

// RouteProgrammer programs forwarding state on a participant. The
// session state layer implements it for the simulated topology.
type RouteProgrammer interface {
	// HasParticipant reports whether the participant can hold routes.
	// The synchronizer resolves every plan reference through it before
	// the session starts.
	HasParticipant(participantID string) bool
	AddRoute(ctx context.Context, participantID string, route model.RouteEntry) error
	// RemoveRoutesMatching deletes every route whose destination equals
	// destinationCIDR and returns how many were removed.
	RemoveRoutesMatching(ctx context.Context, participantID string, destinationCIDR string) (int, error)
}

// APEndpoint names the addresses through which one access point can
// carry client traffic.
type APEndpoint struct {
	ParticipantID string
	// WifiAddr is the AP's address on the wireless network; the client's
	// default path points at it.
	WifiAddr string
	// BackboneAddr is the AP's address on the wired distribution
	// network; server and peer-AP host routes point at it.
	BackboneAddr string
}

// RoutingPlan is the static description of the topology the
// synchronizer keeps consistent: one client, one server, and the
// access points between them. It is built once at scenario setup.
type RoutingPlan struct {
	ClientID string
	ServerID string

	// ClientAddr is the client's wireless address, without a prefix.
	ClientAddr string
	// InfrastructureCIDR is the wireless network the client reaches the
	// access points on.
	InfrastructureCIDR string

	ClientOutInterfaceID string
	ServerOutInterfaceID string

	APs map[LinkIdentifier]APEndpoint
}

// ClientHostCIDR returns the client's address as a host destination.
func (p RoutingPlan) ClientHostCIDR() string {
	return p.ClientAddr + "/32"
}

func (p RoutingPlan) validate() error {
	switch {
	case p.ClientID == "":
		return fmt.Errorf("%w: missing client participant", ErrPlanIncomplete)
	case p.ServerID == "":
		return fmt.Errorf("%w: missing server participant", ErrPlanIncomplete)
	case p.ClientAddr == "":
		return fmt.Errorf("%w: missing client address", ErrPlanIncomplete)
	case p.InfrastructureCIDR == "":
		return fmt.Errorf("%w: missing infrastructure network", ErrPlanIncomplete)
	case len(p.APs) == 0:
		return fmt.Errorf("%w: no access points", ErrPlanIncomplete)
	}
	for id, ep := range p.APs {
		if ep.ParticipantID == "" || ep.WifiAddr == "" || ep.BackboneAddr == "" {
			return fmt.Errorf("%w: access point %q missing endpoint addresses", ErrPlanIncomplete, id)
		}
	}
	return nil
}

// RoutingSynchronizer rewrites the forwarding state of every
// participant when the serving access point changes, so traffic in
// both directions flows through the new AP. Each participant's update
// is remove-then-add for the affected destination, which makes a full
// pass idempotent.
type RoutingSynchronizer struct {
	plan RoutingPlan
	prog RouteProgrammer
	log  logging.Logger

	mu          sync.Mutex
	lastServing LinkIdentifier
}

// NewRoutingSynchronizer validates the plan and wires the programmer.
// Every participant the plan names must already be known to the
// programmer; a dangling reference fails construction so the session
// never starts with unprogrammable route scaffolding.
func NewRoutingSynchronizer(plan RoutingPlan, prog RouteProgrammer, log logging.Logger) (*RoutingSynchronizer, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}
	if prog == nil {
		return nil, fmt.Errorf("%w: nil route programmer", ErrPlanIncomplete)
	}
	if err := resolveParticipants(plan, prog); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Noop()
	}
	return &RoutingSynchronizer{plan: plan, prog: prog, log: log}, nil
}

// resolveParticipants checks client, server and every access point
// against the programmer, in a fixed order so the first failure is
// deterministic.
func resolveParticipants(plan RoutingPlan, prog RouteProgrammer) error {
	ids := []string{plan.ClientID, plan.ServerID}

	apIDs := make([]LinkIdentifier, 0, len(plan.APs))
	for id := range plan.APs {
		apIDs = append(apIDs, id)
	}
	sort.Slice(apIDs, func(i, j int) bool { return apIDs[i] < apIDs[j] })
	for _, id := range apIDs {
		ids = append(ids, plan.APs[id].ParticipantID)
	}

	for _, id := range ids {
		if !prog.HasParticipant(id) {
			return fmt.Errorf("%w: %q", ErrUnknownParticipant, id)
		}
	}
	return nil
}

// OnServingChanged synchronizes every participant with the new serving
// access point, in the fixed order client, server, then the remaining
// access points. A failed participant does not stop the pass and
// nothing is rolled back; the accumulated errors are joined and
// returned so the caller can log them. The next serving change
// overwrites whatever a partial pass left behind.
func (s *RoutingSynchronizer) OnServingChanged(ctx context.Context, serving LinkIdentifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.plan.APs[serving]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownServing, serving)
	}
	if serving == s.lastServing {
		return nil
	}

	var errs []error

	// Client: default path into the wireless network via the new AP.
	errs = append(errs, s.replaceRoute(ctx, s.plan.ClientID, model.RouteEntry{
		DestinationCIDR: s.plan.InfrastructureCIDR,
		NextHopAddr:     ep.WifiAddr,
		OutInterfaceID:  s.plan.ClientOutInterfaceID,
	}))

	// Server: host route back to the client via the new AP's backbone
	// address.
	errs = append(errs, s.replaceRoute(ctx, s.plan.ServerID, model.RouteEntry{
		DestinationCIDR: s.plan.ClientHostCIDR(),
		NextHopAddr:     ep.BackboneAddr,
		OutInterfaceID:  s.plan.ServerOutInterfaceID,
	}))

	// Non-serving access points: forward stale downlink traffic for the
	// client across the backbone to the serving AP.
	for _, id := range s.sortedAPIDs() {
		if id == serving {
			continue
		}
		peer := s.plan.APs[id]
		errs = append(errs, s.replaceRoute(ctx, peer.ParticipantID, model.RouteEntry{
			DestinationCIDR: s.plan.ClientHostCIDR(),
			NextHopAddr:     ep.BackboneAddr,
		}))
	}

	s.lastServing = serving
	s.log.Debug(ctx, "routing synchronized",
		logging.String("serving", string(serving)),
		logging.String("next_hop_wifi", ep.WifiAddr),
		logging.String("next_hop_backbone", ep.BackboneAddr),
	)
	return errors.Join(errs...)
}

// replaceRoute removes every route for the entry's destination on the
// participant and installs the replacement.
func (s *RoutingSynchronizer) replaceRoute(ctx context.Context, participantID string, route model.RouteEntry) error {
	if _, err := s.prog.RemoveRoutesMatching(ctx, participantID, route.DestinationCIDR); err != nil {
		return fmt.Errorf("remove %s routes on %s: %w", route.DestinationCIDR, participantID, err)
	}
	if err := s.prog.AddRoute(ctx, participantID, route); err != nil {
		return fmt.Errorf("add %s route on %s: %w", route.DestinationCIDR, participantID, err)
	}
	return nil
}

func (s *RoutingSynchronizer) sortedAPIDs() []LinkIdentifier {
	ids := make([]LinkIdentifier, 0, len(s.plan.APs))
	for id := range s.plan.APs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
