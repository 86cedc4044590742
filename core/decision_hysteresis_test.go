package core

import (
	"context"
	"testing"
	"time"
)

func TestNoCandidateBelowHysteresisMargin(t *testing.T) {
	f := newEngineFixture(t, DefaultDecisionConfig())
	ctx := context.Background()

	f.engine.Tick(ctx, t0)

	// At x=55 ap-2 is better by only ~2.6 dB, inside the 4 dB margin.
	f.moveClient(55)
	f.engine.Tick(ctx, t0.Add(200*time.Millisecond))

	if f.engine.State().CandidateFlag {
		t.Fatal("candidate flag set below the hysteresis margin")
	}
	if len(f.stack.scans) != 0 {
		t.Fatalf("scans = %v, want none below the margin", f.stack.scans)
	}
}

func TestCandidateAboveMarginStartsDwell(t *testing.T) {
	f := newEngineFixture(t, DefaultDecisionConfig())
	ctx := context.Background()

	f.engine.Tick(ctx, t0)

	// At x=60 ap-2 is better by ~5.3 dB, above the 4 dB margin.
	f.moveClient(60)
	dwellStart := t0.Add(200 * time.Millisecond)
	f.engine.Tick(ctx, dwellStart)

	state := f.engine.State()
	if !state.CandidateFlag {
		t.Fatal("candidate flag not set above the hysteresis margin")
	}
	if !state.CandidateSince.Equal(dwellStart) {
		t.Fatalf("CandidateSince = %v, want %v", state.CandidateSince, dwellStart)
	}
	if len(f.stack.scans) != 0 {
		t.Fatalf("scans = %v, want none before the dwell elapses", f.stack.scans)
	}
}

func TestConditionLossDiscardsPartialDwell(t *testing.T) {
	f := newEngineFixture(t, DefaultDecisionConfig())
	ctx := context.Background()

	f.engine.Tick(ctx, t0)

	f.moveClient(60)
	f.engine.Tick(ctx, t0.Add(200*time.Millisecond))
	if !f.engine.State().CandidateFlag {
		t.Fatal("candidate flag not set above the margin")
	}

	// Signal dips back inside the margin: the dwell restarts from zero.
	f.moveClient(50)
	f.engine.Tick(ctx, t0.Add(400*time.Millisecond))
	if f.engine.State().CandidateFlag {
		t.Fatal("candidate flag survived a condition loss")
	}

	f.moveClient(60)
	restart := t0.Add(600 * time.Millisecond)
	f.engine.Tick(ctx, restart)
	state := f.engine.State()
	if !state.CandidateFlag || !state.CandidateSince.Equal(restart) {
		t.Fatalf("state = %+v, want fresh dwell from %v", state, restart)
	}
	if len(f.stack.scans) != 0 {
		t.Fatalf("scans = %v, want none across the flap", f.stack.scans)
	}
}
