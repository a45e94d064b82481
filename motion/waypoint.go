package motion

import (
	"fmt"
	"time"
)

// WaypointPlan parameterizes piecewise-linear motion through an ordered
// waypoint list. The arm moves from each waypoint to the next over Hold,
// looping from the last waypoint back to the first.
type WaypointPlan struct {
	Points [][]float64   `yaml:"points" json:"points"`
	Hold   time.Duration `yaml:"hold"   json:"hold"`
}

func (w WaypointPlan) validate(joints int) error {
	if len(w.Points) == 0 {
		return fmt.Errorf("waypoint list is empty")
	}
	if w.Hold <= 0 {
		return fmt.Errorf("hold must be positive, got %v", w.Hold)
	}
	for i, p := range w.Points {
		if len(p) != joints {
			return fmt.Errorf("waypoint %d has %d joints, arm has %d", i, len(p), joints)
		}
	}
	return nil
}

type waypointProfile struct {
	points [][]float64
	hold   time.Duration
}

func newWaypointProfile(plan WaypointPlan) waypointProfile {
	points := make([][]float64, len(plan.Points))
	for i, p := range plan.Points {
		points[i] = append([]float64(nil), p...)
	}
	return waypointProfile{points: points, hold: plan.Hold}
}

func (p waypointProfile) Joints() int {
	return len(p.points[0])
}

func (p waypointProfile) Angles(elapsed time.Duration) []float64 {
	n := len(p.points)
	if n == 1 {
		return append([]float64(nil), p.points[0]...)
	}

	cycle := time.Duration(n) * p.hold
	t := elapsed % cycle
	if t < 0 {
		t += cycle
	}

	seg := int(t / p.hold)
	offset := t - time.Duration(seg)*p.hold

	// Exactly on a waypoint: return it verbatim, no interpolation artifact.
	if offset == 0 {
		return append([]float64(nil), p.points[seg]...)
	}

	from := p.points[seg]
	to := p.points[(seg+1)%n]
	frac := float64(offset) / float64(p.hold)

	angles := make([]float64, len(from))
	for i := range from {
		angles[i] = from[i] + (to[i]-from[i])*frac
	}
	return angles
}
