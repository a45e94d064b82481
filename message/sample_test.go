package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-origami/pyrobomogen/kinematics"
)

func TestSample_WireFieldNames(t *testing.T) {
	// Field names are a compatibility contract; this test pins them.
	s := &Sample{
		ArmID:          "arm-1",
		Timestamp:      1672574400000,
		Tick:           7,
		Angles:         []float64{0.5, -0.25},
		Pose:           kinematics.Pose{X: 1.0, Y: 0.5, Theta: 0.25},
		JointPositions: [][2]float64{{0, 0}, {1, 0}, {1.5, 0.5}},
		Generator:      "8e5b3c1a-0000-0000-0000-000000000000",
	}

	data, err := s.Marshal()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, field := range []string{"id", "timestamp", "tick", "joints", "pose", "joint_positions", "generator"} {
		assert.Contains(t, raw, field)
	}

	pose, ok := raw["pose"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, pose, "x")
	assert.Contains(t, pose, "y")
	assert.Contains(t, pose, "theta")
}

func TestSample_RoundTrip(t *testing.T) {
	s := &Sample{
		ArmID:     "arm-2",
		Timestamp: 1700000000000,
		Tick:      42,
		Angles:    []float64{1.5707963267948966},
		Pose:      kinematics.Pose{X: 0, Y: 1, Theta: 1.5707963267948966},
	}

	data, err := s.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalSample(data)
	require.NoError(t, err)
	assert.Equal(t, s, out)
}

func TestGeometry_Marshal(t *testing.T) {
	g := &Geometry{ArmID: "arm-1", Links: []float64{0.35, 0.25}, Reach: 0.6}

	data, err := g.Marshal()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "arm-1", raw["id"])
	assert.Contains(t, raw, "links")
	assert.Contains(t, raw, "reach")
}

func TestUnmarshalControl(t *testing.T) {
	c, err := UnmarshalControl([]byte(`{"command":"stop"}`))
	require.NoError(t, err)
	assert.Equal(t, CommandStop, c.Command)

	_, err = UnmarshalControl([]byte(`{"command":"explode"}`))
	assert.Error(t, err)

	_, err = UnmarshalControl([]byte(`not json`))
	assert.Error(t, err)
}
