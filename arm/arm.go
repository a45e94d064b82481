// Package arm holds the configuration, runtime state, and registry for
// simulated robotic arms.
package arm

import (
	"fmt"
	"time"

	"github.com/virtual-origami/pyrobomogen/errors"
	"github.com/virtual-origami/pyrobomogen/motion"
)

// Bound limits one joint's angle range. Used by configuration validation;
// the kinematic model itself never clamps.
type Bound struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Config is the immutable description of one arm.
type Config struct {
	// ID identifies the arm in outbound messages and control subjects.
	ID string `yaml:"id" json:"id"`

	// Links are the link lengths from base to end effector. All must be
	// positive and the count must equal the joint count.
	Links []float64 `yaml:"links" json:"links"`

	// Bounds are the per-joint angle bounds, one per link.
	Bounds []Bound `yaml:"bounds" json:"bounds"`

	// Profile selects and parameterizes the motion profile.
	Profile motion.Config `yaml:"profile" json:"profile"`

	// SampleInterval is the cadence at which this arm produces samples.
	SampleInterval time.Duration `yaml:"sample_interval" json:"sample_interval"`

	// Subject is the broker subject samples are published to.
	Subject string `yaml:"subject" json:"subject"`
}

// Validate checks all configuration invariants, failing fast with a
// descriptive error. A config that passes Validate never faults during
// profile construction.
func (c Config) Validate() error {
	if c.ID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "arm", "Validate", "id check")
	}
	if len(c.Links) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("arm %q has no links", c.ID),
			"arm", "Validate", "link check")
	}
	for i, l := range c.Links {
		if l <= 0 {
			return errors.WrapInvalid(
				fmt.Errorf("arm %q link %d length %v is not positive", c.ID, i, l),
				"arm", "Validate", "link check")
		}
	}
	if len(c.Bounds) != len(c.Links) {
		return errors.WrapInvalid(
			fmt.Errorf("arm %q has %d links but %d joint bounds", c.ID, len(c.Links), len(c.Bounds)),
			"arm", "Validate", "bounds check")
	}
	for i, b := range c.Bounds {
		if b.Min > b.Max {
			return errors.WrapInvalid(
				fmt.Errorf("arm %q joint %d bound min %v exceeds max %v", c.ID, i, b.Min, b.Max),
				"arm", "Validate", "bounds check")
		}
	}
	if c.SampleInterval <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("arm %q sample interval %v is not positive", c.ID, c.SampleInterval),
			"arm", "Validate", "interval check")
	}
	if c.Subject == "" {
		return errors.WrapInvalid(
			fmt.Errorf("arm %q has no subject", c.ID),
			"arm", "Validate", "subject check")
	}

	if err := c.Profile.Validate(len(c.Links)); err != nil {
		return errors.Wrap(err, "arm", "Validate", fmt.Sprintf("arm %q profile", c.ID))
	}

	return nil
}

// State is the mutable per-arm runtime state. It is exclusively owned by
// one scheduler slot and never shared across goroutines.
type State struct {
	elapsed time.Duration
	angles  []float64
	tick    uint64
}

// Arm binds an immutable Config, its built motion profile, and the
// mutable State advanced on every tick.
type Arm struct {
	cfg     Config
	profile motion.Profile
	state   State
}

// New validates the config, builds the motion profile, and returns the
// arm with zeroed state.
func New(cfg Config) (*Arm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	profile, err := cfg.Profile.Build(len(cfg.Links))
	if err != nil {
		return nil, err
	}

	return &Arm{
		cfg:     cfg,
		profile: profile,
		state: State{
			angles: make([]float64, len(cfg.Links)),
		},
	}, nil
}

// Config returns the arm's immutable configuration.
func (a *Arm) Config() Config {
	return a.cfg
}

// ID returns the arm identifier.
func (a *Arm) ID() string {
	return a.cfg.ID
}

// Tick returns the current tick counter.
func (a *Arm) Tick() uint64 {
	return a.state.tick
}

// Elapsed returns the arm's simulated elapsed time.
func (a *Arm) Elapsed() time.Duration {
	return a.state.elapsed
}

// Angles returns a copy of the current joint-angle vector.
func (a *Arm) Angles() []float64 {
	return append([]float64(nil), a.state.angles...)
}

// Advance moves simulated time forward by dt, increments the tick
// counter, and computes the next joint-angle vector from the motion
// profile. Only the owning scheduler slot may call Advance.
func (a *Arm) Advance(dt time.Duration) []float64 {
	a.state.elapsed += dt
	a.state.tick++
	a.state.angles = a.profile.Angles(a.state.elapsed)
	return append([]float64(nil), a.state.angles...)
}
