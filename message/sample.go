// Package message defines the wire types published by the motion generator.
//
// Field names and presence are a compatibility contract with downstream
// consumers and must stay stable across releases. Timestamps are Unix
// milliseconds (see pkg/timestamp).
package message

import (
	"encoding/json"

	"github.com/virtual-origami/pyrobomogen/errors"
	"github.com/virtual-origami/pyrobomogen/kinematics"
)

// Sample is one motion sample for one arm, produced once per tick and
// consumed exactly once by the emitter.
type Sample struct {
	// ArmID identifies the arm this sample belongs to.
	ArmID string `json:"id"`

	// Timestamp is the sample time in Unix milliseconds. Depending on
	// configuration this is wall-clock time or simulated time.
	Timestamp int64 `json:"timestamp"`

	// Tick is the arm's monotonically non-decreasing tick counter.
	Tick uint64 `json:"tick"`

	// Angles is the joint-angle vector in radians.
	Angles []float64 `json:"joints"`

	// Pose is the end-effector position and cumulative orientation.
	Pose kinematics.Pose `json:"pose"`

	// JointPositions holds the 2D position of every joint along the arm,
	// base first, end effector last.
	JointPositions [][2]float64 `json:"joint_positions,omitempty"`

	// Generator is the UUID of the generator process instance, letting
	// consumers distinguish restarts and parallel generators.
	Generator string `json:"generator,omitempty"`
}

// Marshal serializes the sample to its wire form.
func (s *Sample) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "Sample", "Marshal", "json encoding")
	}
	return data, nil
}

// UnmarshalSample parses a wire-form sample. Used by consumers and tests.
func UnmarshalSample(data []byte) (*Sample, error) {
	var s Sample
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.WrapInvalid(err, "Sample", "UnmarshalSample", "json decoding")
	}
	return &s, nil
}

// Geometry is the static description of one arm, written to the broker's
// KV store at startup so consumers can resolve arm dimensions without
// carrying them in every sample.
type Geometry struct {
	ArmID string    `json:"id"`
	Links []float64 `json:"links"`
	Reach float64   `json:"reach"`
}

// Marshal serializes the geometry record.
func (g *Geometry) Marshal() ([]byte, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, errors.Wrap(err, "Geometry", "Marshal", "json encoding")
	}
	return data, nil
}

// Control is a runtime command addressed to one arm.
type Control struct {
	Command string `json:"command"` // "start" or "stop"
}

// Recognized control commands.
const (
	CommandStart = "start"
	CommandStop  = "stop"
)

// UnmarshalControl parses a control command payload.
func UnmarshalControl(data []byte) (*Control, error) {
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.WrapInvalid(err, "Control", "UnmarshalControl", "json decoding")
	}
	if c.Command != CommandStart && c.Command != CommandStop {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"Control", "UnmarshalControl", "command validation")
	}
	return &c, nil
}
