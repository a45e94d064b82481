// Package motion generates joint-angle trajectories for simulated arms.
//
// Profiles form a closed set of variants (oscillatory, sweep, waypoint)
// behind a single Profile capability. Every profile is a pure function of
// elapsed time: replaying the same elapsed-time sequence reproduces the
// identical angle sequence.
package motion

import (
	"fmt"
	"time"

	"github.com/virtual-origami/pyrobomogen/errors"
)

// Profile produces the joint-angle vector for a point in elapsed time.
// Implementations hold no mutable state; the returned slice is freshly
// allocated on every call and safe for the caller to own.
type Profile interface {
	// Angles returns the joint-angle vector (radians) at the given
	// elapsed time since the profile's origin.
	Angles(elapsed time.Duration) []float64

	// Joints returns the length of the vector Angles produces.
	Joints() int
}

// Profile kind tags recognized in configuration.
const (
	KindOscillatory = "oscillatory"
	KindSweep       = "sweep"
	KindWaypoint    = "waypoint"
)

// Config selects and parameterizes one profile variant. Exactly the
// section matching Kind is consulted; the others are ignored.
type Config struct {
	Kind        string        `yaml:"kind"        json:"kind"`
	Oscillatory []Oscillator  `yaml:"oscillatory" json:"oscillatory,omitempty"`
	Sweep       []Sweep       `yaml:"sweep"       json:"sweep,omitempty"`
	Waypoint    *WaypointPlan `yaml:"waypoint"    json:"waypoint,omitempty"`
}

// Validate checks the configuration against the arm's joint count.
func (c Config) Validate(joints int) error {
	switch c.Kind {
	case KindOscillatory:
		if len(c.Oscillatory) != joints {
			return errors.WrapInvalid(
				fmt.Errorf("oscillatory profile has %d joints, arm has %d", len(c.Oscillatory), joints),
				"motion", "Validate", "joint count check")
		}
		for i, osc := range c.Oscillatory {
			if err := osc.validate(); err != nil {
				return errors.WrapInvalid(fmt.Errorf("joint %d: %w", i, err),
					"motion", "Validate", "oscillator check")
			}
		}
	case KindSweep:
		if len(c.Sweep) != joints {
			return errors.WrapInvalid(
				fmt.Errorf("sweep profile has %d joints, arm has %d", len(c.Sweep), joints),
				"motion", "Validate", "joint count check")
		}
		for i, sw := range c.Sweep {
			if err := sw.validate(); err != nil {
				return errors.WrapInvalid(fmt.Errorf("joint %d: %w", i, err),
					"motion", "Validate", "sweep check")
			}
		}
	case KindWaypoint:
		if c.Waypoint == nil {
			return errors.WrapInvalid(errors.ErrMissingConfig,
				"motion", "Validate", "waypoint section check")
		}
		if err := c.Waypoint.validate(joints); err != nil {
			return errors.WrapInvalid(err, "motion", "Validate", "waypoint check")
		}
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown profile kind %q", c.Kind),
			"motion", "Validate", "kind check")
	}

	return nil
}

// Build validates the configuration and constructs the profile.
func (c Config) Build(joints int) (Profile, error) {
	if err := c.Validate(joints); err != nil {
		return nil, err
	}

	switch c.Kind {
	case KindOscillatory:
		return oscillatoryProfile{joints: append([]Oscillator(nil), c.Oscillatory...)}, nil
	case KindSweep:
		return sweepProfile{joints: append([]Sweep(nil), c.Sweep...)}, nil
	case KindWaypoint:
		return newWaypointProfile(*c.Waypoint), nil
	default:
		// Unreachable after Validate
		return nil, errors.WrapInvalid(fmt.Errorf("unknown profile kind %q", c.Kind),
			"motion", "Build", "kind check")
	}
}
