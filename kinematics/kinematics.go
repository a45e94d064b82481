// Package kinematics computes forward kinematics for planar N-link arms.
//
// All functions are pure: given the same link lengths and joint angles they
// always produce the same pose. Angles are radians, positions are in the
// same length unit as the link lengths, and the base is fixed at the
// origin. Angles are not clamped or normalized; the geometry is periodic
// and arbitrary real angles are valid.
package kinematics

import (
	"fmt"
	"math"
)

// Pose is the end-effector position and cumulative orientation of an arm.
// Theta is the sum of all joint angles, not normalized to any range.
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Finite reports whether all pose fields are finite numbers. A non-finite
// pose indicates a computation fault upstream.
func (p Pose) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Theta) && !math.IsInf(p.Theta, 0)
}

// Forward computes the end-effector pose for the given link lengths and
// joint angles by composing rotation and translation link by link from the
// base. The two slices must have equal length; a mismatch is a
// configuration error.
func Forward(links, angles []float64) (Pose, error) {
	if len(links) != len(angles) {
		return Pose{}, fmt.Errorf("link count %d does not match joint count %d", len(links), len(angles))
	}

	var x, y, theta float64
	for i, l := range links {
		theta += angles[i]
		x += l * math.Cos(theta)
		y += l * math.Sin(theta)
	}

	return Pose{X: x, Y: y, Theta: theta}, nil
}

// Chain computes the position of every joint along the arm, base first.
// The result has len(links)+1 entries; the last entry equals the
// end-effector position. Used for publishing full arm geometry alongside
// the end-effector pose.
func Chain(links, angles []float64) ([][2]float64, error) {
	if len(links) != len(angles) {
		return nil, fmt.Errorf("link count %d does not match joint count %d", len(links), len(angles))
	}

	points := make([][2]float64, len(links)+1)
	var x, y, theta float64
	for i, l := range links {
		theta += angles[i]
		x += l * math.Cos(theta)
		y += l * math.Sin(theta)
		points[i+1] = [2]float64{x, y}
	}

	return points, nil
}

// Reach returns the maximum distance from the base the end effector can
// attain: the sum of all link lengths.
func Reach(links []float64) float64 {
	var sum float64
	for _, l := range links {
		sum += l
	}
	return sum
}
