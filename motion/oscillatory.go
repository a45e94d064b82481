package motion

import (
	"fmt"
	"math"
	"time"
)

// Oscillator parameterizes sinusoidal motion for one joint:
// angle(t) = Center + Amplitude * sin(2*pi*t/Period + Phase).
type Oscillator struct {
	Center    float64       `yaml:"center"    json:"center"`
	Amplitude float64       `yaml:"amplitude" json:"amplitude"`
	Period    time.Duration `yaml:"period"    json:"period"`
	Phase     float64       `yaml:"phase"     json:"phase"`
}

func (o Oscillator) validate() error {
	// A zero amplitude degenerates to a constant and needs no period.
	if o.Amplitude != 0 && o.Period <= 0 {
		return fmt.Errorf("period must be positive, got %v", o.Period)
	}
	return nil
}

// angleAt evaluates the oscillator at elapsed time t.
func (o Oscillator) angleAt(t time.Duration) float64 {
	if o.Amplitude == 0 || o.Period <= 0 {
		return o.Center
	}
	cycle := t.Seconds() / o.Period.Seconds()
	return o.Center + o.Amplitude*math.Sin(2*math.Pi*cycle+o.Phase)
}

type oscillatoryProfile struct {
	joints []Oscillator
}

func (p oscillatoryProfile) Joints() int {
	return len(p.joints)
}

func (p oscillatoryProfile) Angles(elapsed time.Duration) []float64 {
	angles := make([]float64, len(p.joints))
	for i, o := range p.joints {
		angles[i] = o.angleAt(elapsed)
	}
	return angles
}
