package motion

import (
	"fmt"
	"math"
	"time"
)

// Sweep parameterizes linear bouncing motion for one joint: the angle
// ramps from Min to Max over half a Period, then reflects back, forming a
// continuous triangle wave that never leaves [Min, Max].
type Sweep struct {
	Min    float64       `yaml:"min"    json:"min"`
	Max    float64       `yaml:"max"    json:"max"`
	Period time.Duration `yaml:"period" json:"period"`
}

func (s Sweep) validate() error {
	if s.Min > s.Max {
		return fmt.Errorf("min %v exceeds max %v", s.Min, s.Max)
	}
	// Min == Max degenerates to a constant and needs no period.
	if s.Min != s.Max && s.Period <= 0 {
		return fmt.Errorf("period must be positive, got %v", s.Period)
	}
	return nil
}

// angleAt evaluates the triangle wave at elapsed time t.
func (s Sweep) angleAt(t time.Duration) float64 {
	if s.Min == s.Max || s.Period <= 0 {
		return s.Min
	}

	cycle := math.Mod(t.Seconds()/s.Period.Seconds(), 1)
	if cycle < 0 {
		cycle += 1
	}

	// Rising half then falling half
	span := s.Max - s.Min
	if cycle <= 0.5 {
		return s.Min + span*(cycle*2)
	}
	return s.Max - span*((cycle-0.5)*2)
}

type sweepProfile struct {
	joints []Sweep
}

func (p sweepProfile) Joints() int {
	return len(p.joints)
}

func (p sweepProfile) Angles(elapsed time.Duration) []float64 {
	angles := make([]float64, len(p.joints))
	for i, s := range p.joints {
		angles[i] = s.angleAt(elapsed)
	}
	return angles
}
