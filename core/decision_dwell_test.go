package core

import (
	"context"
	"testing"
	"time"
)

func TestScanTriggersOnlyAfterDwell(t *testing.T) {
	f := newEngineFixture(t, DefaultDecisionConfig())
	ctx := context.Background()

	f.engine.Tick(ctx, t0)

	f.moveClient(60)
	f.engine.Tick(ctx, t0.Add(200*time.Millisecond))

	// Half-way through the dwell: still nothing.
	f.engine.Tick(ctx, t0.Add(700*time.Millisecond))
	if len(f.stack.scans) != 0 {
		t.Fatalf("scans = %v, want none before the dwell elapses", f.stack.scans)
	}

	// One full dwell after candidacy began.
	triggerAt := t0.Add(1200 * time.Millisecond)
	f.engine.Tick(ctx, triggerAt)

	if len(f.stack.scans) != 1 || f.stack.scans[0] != "ap-2" {
		t.Fatalf("scans = %v, want one scan hinting ap-2", f.stack.scans)
	}
	state := f.engine.State()
	if state.CandidateFlag {
		t.Fatal("candidate flag not cleared after the trigger")
	}
	if !state.Triggered || !state.LastTrigger.Equal(triggerAt) {
		t.Fatalf("state = %+v, want LastTrigger %v", state, triggerAt)
	}
}

func TestScanHintIsStrongestCandidate(t *testing.T) {
	f := newEngineFixture(t, DefaultDecisionConfig())
	if err := f.kb.AddCandidate(&CandidateAccessPoint{LinkID: "ap-3", NodeID: "n-ap3", TxPowerDbm: 20}); err != nil {
		t.Fatalf("AddCandidate ap-3: %v", err)
	}
	// ap-3 sits right next to the client's eventual position, so it must
	// win over ap-2.
	f.kb.SetNodePosition("n-ap3", Vec3{X: 62})

	ctx := context.Background()
	f.engine.Tick(ctx, t0)

	f.moveClient(60)
	f.engine.Tick(ctx, t0.Add(200*time.Millisecond))
	f.engine.Tick(ctx, t0.Add(1200*time.Millisecond))

	if len(f.stack.scans) != 1 || f.stack.scans[0] != "ap-3" {
		t.Fatalf("scans = %v, want one scan hinting ap-3", f.stack.scans)
	}
}
