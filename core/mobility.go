package core

import "time"

// MotionModel computes a node's position for a given simulation time.
type MotionModel interface {
	Position(simTime time.Time) Vec3
}

// StaticMotionModel pins a node at a fixed position.
type StaticMotionModel struct {
	Pos Vec3
}

// Position returns the fixed position regardless of time.
func (m *StaticMotionModel) Position(time.Time) Vec3 {
	return m.Pos
}

// ConstantVelocityMotionModel moves a node at a constant velocity
// during [MoveStart, MoveStop) and holds it still outside that window.
// This is the walk-down-the-corridor motion of the roaming scenario.
type ConstantVelocityMotionModel struct {
	Start     Vec3
	Velocity  Vec3 // metres per second
	MoveStart time.Time
	MoveStop  time.Time
}

// Position integrates the velocity over the elapsed portion of the
// movement window.
func (m *ConstantVelocityMotionModel) Position(simTime time.Time) Vec3 {
	if !simTime.After(m.MoveStart) {
		return m.Start
	}
	end := simTime
	if !m.MoveStop.IsZero() && end.After(m.MoveStop) {
		end = m.MoveStop
	}
	elapsed := end.Sub(m.MoveStart).Seconds()
	return m.Start.Add(m.Velocity.Scale(elapsed))
}
