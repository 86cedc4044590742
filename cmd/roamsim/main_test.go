package main

import (
	"context"
	"testing"
	"time"

	"github.com/jafarizadeh/wifi-ter-sim/core"
	"github.com/jafarizadeh/wifi-ter-sim/internal/logging"
	"github.com/jafarizadeh/wifi-ter-sim/internal/radio"
	"github.com/jafarizadeh/wifi-ter-sim/internal/sim/state"
	"github.com/jafarizadeh/wifi-ter-sim/model"
	"github.com/jafarizadeh/wifi-ter-sim/timectrl"
)

// TestIntegration_CorridorWalk runs a tiny end-to-end-style session: the
// client walks from ap-1 towards ap-2 and must roam exactly once, with
// every participant's routes converged on ap-2 afterwards.
func TestIntegration_CorridorWalk(t *testing.T) {
	log := logging.Noop()
	session := state.NewSessionState(log)
	for _, p := range []*model.Participant{
		{ID: "sta-1", Role: model.RoleClient, OutInterfaceID: "sta-1/wlan0"},
		{ID: "srv-1", Role: model.RoleServer, OutInterfaceID: "srv-1/eth0"},
		{ID: "ap-node-1", Role: model.RolePeerAccessPoint},
		{ID: "ap-node-2", Role: model.RolePeerAccessPoint},
	} {
		if err := session.AddParticipant(p); err != nil {
			t.Fatalf("AddParticipant %s: %v", p.ID, err)
		}
	}

	plan := core.RoutingPlan{
		ClientID:             "sta-1",
		ServerID:             "srv-1",
		ClientAddr:           "10.2.0.10",
		InfrastructureCIDR:   "10.2.0.0/24",
		ClientOutInterfaceID: "sta-1/wlan0",
		ServerOutInterfaceID: "srv-1/eth0",
		APs: map[core.LinkIdentifier]core.APEndpoint{
			"ap-1": {ParticipantID: "ap-node-1", WifiAddr: "10.2.0.1", BackboneAddr: "10.1.1.1"},
			"ap-2": {ParticipantID: "ap-node-2", WifiAddr: "10.2.0.2", BackboneAddr: "10.1.1.2"},
		},
	}
	synchronizer, err := core.NewRoutingSynchronizer(plan, session, log)
	if err != nil {
		t.Fatalf("NewRoutingSynchronizer: %v", err)
	}

	kb := core.NewKnowledgeBase()
	for _, ap := range []*core.CandidateAccessPoint{
		{LinkID: "ap-1", NodeID: "ap-node-1", TxPowerDbm: 20},
		{LinkID: "ap-2", NodeID: "ap-node-2", TxPowerDbm: 16},
	} {
		if err := kb.AddCandidate(ap); err != nil {
			t.Fatalf("AddCandidate %s: %v", ap.LinkID, err)
		}
	}

	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	motions := map[string]core.MotionModel{
		"ap-node-1": &core.StaticMotionModel{Pos: core.Vec3{X: 0, Y: 0, Z: 2}},
		"ap-node-2": &core.StaticMotionModel{Pos: core.Vec3{X: 40, Y: 0, Z: 2}},
		"sta-1": &core.ConstantVelocityMotionModel{
			Start:     core.Vec3{X: 2, Y: 3, Z: 1.5},
			Velocity:  core.Vec3{X: 1.25},
			MoveStart: start.Add(2 * time.Second),
		},
	}
	for nodeID, motion := range motions {
		kb.SetNodePosition(nodeID, motion.Position(start))
	}

	estimator := core.NewLinkQualityEstimator()
	stack := radio.NewSimulatedStack(kb, estimator, radio.Config{
		ClientNodeID: "sta-1",
		ScanLatency:  50 * time.Millisecond,
	})
	recorder := core.NewRoamEventRecorder()
	engine := core.NewHandoverDecisionEngine(
		kb, estimator, core.NewAssociationObserver(stack), stack,
		"sta-1", core.DefaultDecisionConfig(),
		core.WithServingSync(synchronizer),
		core.WithRecorder(recorder),
	)

	ctx := context.Background()
	stack.Advance(ctx, start)
	stack.TriggerScan(core.UnassociatedLink)

	tc := timectrl.NewTimeController(start, 200*time.Millisecond, timectrl.Accelerated)
	tc.AddListener(func(simTime time.Time) {
		for nodeID, motion := range motions {
			kb.SetNodePosition(nodeID, motion.Position(simTime))
		}
		stack.Advance(ctx, simTime)
		engine.Tick(ctx, simTime)
	})

	done := tc.Start(ctx, 40*time.Second)
	<-done

	events := recorder.Events()
	if len(events) < 2 {
		t.Fatalf("got %d events, want INIT plus at least one ROAM: %+v", len(events), events)
	}
	if events[0].Type != model.RoamEventInit || events[0].LinkID != "ap-1" {
		t.Fatalf("first event = %+v, want INIT on ap-1", events[0])
	}

	roams := 0
	for _, ev := range events[1:] {
		if ev.Type != model.RoamEventRoam {
			t.Fatalf("unexpected later event type %q", ev.Type)
		}
		roams++
	}
	if roams != 1 {
		t.Fatalf("roamed %d times, want exactly 1", roams)
	}
	if events[1].LinkID != "ap-2" {
		t.Fatalf("roamed to %q, want ap-2", events[1].LinkID)
	}

	first, ok := recorder.FirstRoamTime()
	if !ok {
		t.Fatal("FirstRoamTime reported no roam")
	}
	offset := first.Sub(start)
	if offset < 15*time.Second || offset > 35*time.Second {
		t.Fatalf("first roam at %s, want inside the corridor crossing window", offset)
	}

	// Every participant's forwarding state must point at ap-2 afterwards.
	if route, ok := session.Route("sta-1", "10.2.0.0/24"); !ok || route.NextHopAddr != "10.2.0.2" {
		t.Fatalf("client network route = %+v, want next hop 10.2.0.2", route)
	}
	if route, ok := session.Route("srv-1", "10.2.0.10/32"); !ok || route.NextHopAddr != "10.1.1.2" {
		t.Fatalf("server host route = %+v, want next hop 10.1.1.2", route)
	}
	if route, ok := session.Route("ap-node-1", "10.2.0.10/32"); !ok || route.NextHopAddr != "10.1.1.2" {
		t.Fatalf("peer AP host route = %+v, want next hop 10.1.1.2", route)
	}
}
