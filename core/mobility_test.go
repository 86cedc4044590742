package core

import (
	"testing"
	"time"
)

func TestStaticMotionModel(t *testing.T) {
	m := &StaticMotionModel{Pos: Vec3{X: 40, Z: 2}}
	for _, offset := range []time.Duration{0, time.Second, time.Hour} {
		if got := m.Position(time.Unix(0, 0).Add(offset)); got != (Vec3{X: 40, Z: 2}) {
			t.Fatalf("Position(+%v) = %+v, want {40 0 2}", offset, got)
		}
	}
}

func TestConstantVelocityHoldsBeforeMoveStart(t *testing.T) {
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	m := &ConstantVelocityMotionModel{
		Start:     Vec3{X: 2, Y: 3, Z: 1.5},
		Velocity:  Vec3{X: 1.25},
		MoveStart: start.Add(2 * time.Second),
	}

	if got := m.Position(start); got != (Vec3{X: 2, Y: 3, Z: 1.5}) {
		t.Fatalf("Position(start) = %+v, want starting point", got)
	}
	if got := m.Position(start.Add(2 * time.Second)); got != (Vec3{X: 2, Y: 3, Z: 1.5}) {
		t.Fatalf("Position(move start) = %+v, want starting point", got)
	}
}

func TestConstantVelocityIntegratesDuringWindow(t *testing.T) {
	start := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	m := &ConstantVelocityMotionModel{
		Start:     Vec3{X: 2},
		Velocity:  Vec3{X: 1.25},
		MoveStart: start,
		MoveStop:  start.Add(10 * time.Second),
	}

	if got := m.Position(start.Add(4 * time.Second)); !approxEqual(got.X, 7, 1e-9) {
		t.Fatalf("Position(+4s).X = %v, want 7", got.X)
	}

	// After MoveStop the node freezes where it stopped.
	stopPos := m.Position(start.Add(10 * time.Second))
	if got := m.Position(start.Add(time.Hour)); got != stopPos {
		t.Fatalf("Position(+1h) = %+v, want frozen stop position %+v", got, stopPos)
	}
	if !approxEqual(stopPos.X, 14.5, 1e-9) {
		t.Fatalf("stop position X = %v, want 14.5", stopPos.X)
	}
}
