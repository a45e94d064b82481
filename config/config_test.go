package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/virtual-origami/pyrobomogen/emitter"
	"github.com/virtual-origami/pyrobomogen/motion"
	"github.com/virtual-origami/pyrobomogen/scheduler"
)

const validYAML = `
version: "1.0.0"
broker:
  url: nats://broker:4222
  username: robot
  password: secret
  jetstream: true
metrics:
  enabled: true
  port: 9102
publish:
  mode: retry
  retry:
    max_attempts: 5
    initial_delay: 50ms
    max_delay: 1s
    multiplier: 2.0
geometry:
  enabled: true
  bucket: robot-geometry
arms:
  - id: arm-1
    links: [1.0, 0.5]
    bounds:
      - {min: -3.1416, max: 3.1416}
      - {min: -3.1416, max: 3.1416}
    profile:
      kind: oscillatory
      oscillatory:
        - {center: 0.0, amplitude: 1.0, period: 10s}
        - {center: 0.5, amplitude: 0.25, period: 5s, phase: 1.57}
    interval: 100ms
    subject: robot.telemetry.arm-1
  - id: arm-2
    links: [0.8]
    bounds:
      - {min: 0, max: 1.5}
    profile:
      kind: sweep
      sweep:
        - {min: 0.0, max: 1.5, period: 4s}
    interval: 2
    subject: robot.telemetry.arm-2
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "robot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_Valid(t *testing.T) {
	cfg, err := NewLoader().LoadFile(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, "nats://broker:4222", cfg.Broker.URL)
	assert.True(t, cfg.Broker.JetStream)
	assert.Equal(t, 9102, cfg.Metrics.Port)
	assert.Equal(t, "robot-geometry", cfg.Geometry.Bucket)

	// Defaults survive partial documents
	assert.Equal(t, scheduler.TimestampWall, cfg.Timestamps)
	assert.Equal(t, "robot.control", cfg.Control.Prefix)
	assert.Equal(t, 5*time.Second, cfg.Watchdog.Threshold.Std())

	require.Len(t, cfg.Arms, 2)
	assert.Equal(t, 100*time.Millisecond, cfg.Arms[0].Interval.Std())
	// Bare numbers parse as seconds
	assert.Equal(t, 2*time.Second, cfg.Arms[1].Interval.Std())
}

func TestLoadFile_ArmConversion(t *testing.T) {
	cfg, err := NewLoader().LoadFile(writeConfig(t, validYAML))
	require.NoError(t, err)

	arms := cfg.ArmConfigs()
	require.Len(t, arms, 2)

	a := arms[0]
	assert.Equal(t, "arm-1", a.ID)
	assert.Equal(t, []float64{1.0, 0.5}, a.Links)
	require.Len(t, a.Bounds, 2)
	assert.Equal(t, motion.KindOscillatory, a.Profile.Kind)
	require.Len(t, a.Profile.Oscillatory, 2)
	assert.Equal(t, 10*time.Second, a.Profile.Oscillatory[0].Period)
	assert.Equal(t, 1.57, a.Profile.Oscillatory[1].Phase)
	assert.Equal(t, "robot.telemetry.arm-1", a.Subject)

	b := arms[1]
	assert.Equal(t, motion.KindSweep, b.Profile.Kind)
	require.Len(t, b.Profile.Sweep, 1)
	assert.Equal(t, 4*time.Second, b.Profile.Sweep[0].Period)
}

func TestLoadFile_PublishPolicy(t *testing.T) {
	cfg, err := NewLoader().LoadFile(writeConfig(t, validYAML))
	require.NoError(t, err)

	policy := cfg.PublishPolicy()
	assert.Equal(t, emitter.ModeRetry, policy.Mode)
	assert.Equal(t, 5, policy.Retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, policy.Retry.InitialDelay)
	assert.Equal(t, time.Second, policy.Retry.MaxDelay)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("ROBOGEN_BROKER_URL", "nats://override:4222")
	t.Setenv("ROBOGEN_BROKER_PASSWORD", "from-env")
	t.Setenv("ROBOGEN_METRICS_PORT", "9999")

	cfg, err := NewLoader().LoadFile(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "nats://override:4222", cfg.Broker.URL)
	assert.Equal(t, "from-env", cfg.Broker.Password)
	assert.Equal(t, 9999, cfg.Metrics.Port)
	// File values not named in the environment stay put
	assert.Equal(t, "robot", cfg.Broker.Username)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := NewLoader().LoadFile("/nonexistent/robot.yaml")
	assert.Error(t, err)
}

func TestLoadFile_MalformedYAML(t *testing.T) {
	_, err := NewLoader().LoadFile(writeConfig(t, "arms: ["))
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	base := func() *Config {
		cfg, err := NewLoader().LoadFile(writeConfig(t, validYAML))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty broker url", func(c *Config) { c.Broker.URL = "" }},
		{"bad broker scheme", func(c *Config) { c.Broker.URL = "amqp://broker:5672" }},
		{"tls without cert", func(c *Config) { c.Broker.TLS.Enabled = true }},
		{"metrics port out of range", func(c *Config) { c.Metrics.Port = 70000 }},
		{"unknown publish mode", func(c *Config) { c.Publish.Mode = "buffer" }},
		{"retry without attempts", func(c *Config) { c.Publish.Retry.MaxAttempts = 0 }},
		{"unknown timestamp mode", func(c *Config) { c.Timestamps = "vector" }},
		{"geometry without jetstream", func(c *Config) { c.Broker.JetStream = false }},
		{"geometry without bucket", func(c *Config) { c.Geometry.Bucket = "" }},
		{"no arms", func(c *Config) { c.Arms = nil }},
		{"invalid arm", func(c *Config) { c.Arms[0].Links = nil }},
		{"negative interval", func(c *Config) { c.Arms[0].Interval = Duration(-time.Second) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDuration_UnmarshalForms(t *testing.T) {
	var doc struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
		C Duration `yaml:"c"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 250ms\nb: 1.5\nc: 3"), &doc))

	assert.Equal(t, 250*time.Millisecond, doc.A.Std())
	assert.Equal(t, 1500*time.Millisecond, doc.B.Std())
	assert.Equal(t, 3*time.Second, doc.C.Std())
}

func TestDuration_Invalid(t *testing.T) {
	var doc struct {
		A Duration `yaml:"a"`
	}
	assert.Error(t, yaml.Unmarshal([]byte("a: soon"), &doc))
}
