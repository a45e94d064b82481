// Package config loads and validates the generator's YAML configuration.
//
// The document describes the broker connection, the metrics endpoint,
// the publish failure policy, and every arm with its motion profile.
// Environment variables with the ROBOGEN_ prefix override the file for
// deployment-sensitive values (broker URL, credentials, metrics port).
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/virtual-origami/pyrobomogen/arm"
	"github.com/virtual-origami/pyrobomogen/emitter"
	"github.com/virtual-origami/pyrobomogen/errors"
	"github.com/virtual-origami/pyrobomogen/motion"
	"github.com/virtual-origami/pyrobomogen/pkg/retry"
	"github.com/virtual-origami/pyrobomogen/scheduler"
)

// Config is the complete application configuration.
type Config struct {
	Version    string         `yaml:"version"`
	Broker     BrokerConfig   `yaml:"broker"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Publish    PublishConfig  `yaml:"publish"`
	Timestamps string         `yaml:"timestamps"` // "wall" (default) or "simulated"
	Control    ControlConfig  `yaml:"control"`
	Geometry   GeometryConfig `yaml:"geometry"`
	Watchdog   WatchdogConfig `yaml:"watchdog"`
	Arms       []ArmConfig    `yaml:"arms"`
}

// BrokerConfig defines the NATS connection settings. Credentials and TLS
// material pass through opaquely to the NATS client.
type BrokerConfig struct {
	URL           string    `yaml:"url"`
	MaxReconnects int       `yaml:"max_reconnects"`
	ReconnectWait Duration  `yaml:"reconnect_wait"`
	Username      string    `yaml:"username"`
	Password      string    `yaml:"password"`
	Token         string    `yaml:"token"`
	TLS           TLSConfig `yaml:"tls"`
	JetStream     bool      `yaml:"jetstream"`
}

// TLSConfig for secure broker connections.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// MetricsConfig defines the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// PublishConfig selects the publish failure policy.
type PublishConfig struct {
	Mode  string      `yaml:"mode"` // "drop" (default) or "retry"
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig bounds the retry policy when publish mode is "retry".
type RetryConfig struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	Multiplier   float64  `yaml:"multiplier"`
}

// ControlConfig enables per-arm start/stop control messages. An arm's
// control subject is <prefix>.<armID>; an empty prefix disables control.
type ControlConfig struct {
	Prefix string `yaml:"prefix"`
}

// GeometryConfig enables the static-geometry snapshot written to a
// JetStream KV bucket at startup. Requires broker.jetstream: true.
type GeometryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
}

// WatchdogConfig bounds per-arm sample staleness before the health
// endpoint reports the arm degraded.
type WatchdogConfig struct {
	Threshold Duration `yaml:"threshold"`
	Interval  Duration `yaml:"interval"`
}

// ArmConfig describes one arm in the document. Converted to arm.Config
// via ToArm.
type ArmConfig struct {
	ID       string    `yaml:"id"`
	Links    []float64 `yaml:"links"`
	Bounds   []Bound   `yaml:"bounds"`
	Profile  Profile   `yaml:"profile"`
	Interval Duration  `yaml:"interval"`
	Subject  string    `yaml:"subject"`
}

// Bound is a joint's angular range in radians.
type Bound struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Profile is the YAML form of a motion profile, a tagged union on Kind.
type Profile struct {
	Kind        string       `yaml:"kind"`
	Oscillatory []Oscillator `yaml:"oscillatory"`
	Sweep       []Sweep      `yaml:"sweep"`
	Waypoint    *Waypoint    `yaml:"waypoint"`
}

// Oscillator is the YAML form of motion.Oscillator.
type Oscillator struct {
	Center    float64  `yaml:"center"`
	Amplitude float64  `yaml:"amplitude"`
	Period    Duration `yaml:"period"`
	Phase     float64  `yaml:"phase"`
}

// Sweep is the YAML form of motion.Sweep.
type Sweep struct {
	Min    float64  `yaml:"min"`
	Max    float64  `yaml:"max"`
	Period Duration `yaml:"period"`
}

// Waypoint is the YAML form of motion.WaypointPlan.
type Waypoint struct {
	Points [][]float64 `yaml:"points"`
	Hold   Duration    `yaml:"hold"`
}

// toMotion converts the YAML profile to the domain form.
func (p Profile) toMotion() motion.Config {
	cfg := motion.Config{Kind: p.Kind}

	for _, o := range p.Oscillatory {
		cfg.Oscillatory = append(cfg.Oscillatory, motion.Oscillator{
			Center:    o.Center,
			Amplitude: o.Amplitude,
			Period:    o.Period.Std(),
			Phase:     o.Phase,
		})
	}
	for _, s := range p.Sweep {
		cfg.Sweep = append(cfg.Sweep, motion.Sweep{
			Min:    s.Min,
			Max:    s.Max,
			Period: s.Period.Std(),
		})
	}
	if p.Waypoint != nil {
		cfg.Waypoint = &motion.WaypointPlan{
			Points: p.Waypoint.Points,
			Hold:   p.Waypoint.Hold.Std(),
		}
	}

	return cfg
}

// ToArm converts the YAML arm description to a validated-shape arm.Config.
// Validation itself happens in arm.NewRegistry.
func (a ArmConfig) ToArm() arm.Config {
	bounds := make([]arm.Bound, len(a.Bounds))
	for i, b := range a.Bounds {
		bounds[i] = arm.Bound{Min: b.Min, Max: b.Max}
	}

	return arm.Config{
		ID:             a.ID,
		Links:          append([]float64(nil), a.Links...),
		Bounds:         bounds,
		Profile:        a.Profile.toMotion(),
		SampleInterval: a.Interval.Std(),
		Subject:        a.Subject,
	}
}

// ArmConfigs converts every configured arm.
func (c *Config) ArmConfigs() []arm.Config {
	configs := make([]arm.Config, len(c.Arms))
	for i, a := range c.Arms {
		configs[i] = a.ToArm()
	}
	return configs
}

// PublishPolicy converts the publish section to the emitter's policy.
func (c *Config) PublishPolicy() emitter.Policy {
	policy := emitter.Policy{Mode: c.Publish.Mode}
	if policy.Mode == emitter.ModeRetry {
		policy.Retry = retry.Config{
			MaxAttempts:  c.Publish.Retry.MaxAttempts,
			InitialDelay: c.Publish.Retry.InitialDelay.Std(),
			MaxDelay:     c.Publish.Retry.MaxDelay.Std(),
			Multiplier:   c.Publish.Retry.Multiplier,
		}
	}
	return policy
}

// Validate checks the whole document, fail-fast with a descriptive error.
func (c *Config) Validate() error {
	if c.Broker.URL == "" {
		return stderrors.New("broker.url is required")
	}
	if !strings.HasPrefix(c.Broker.URL, "nats://") && !strings.HasPrefix(c.Broker.URL, "tls://") {
		return fmt.Errorf("broker.url %q must use the nats:// or tls:// scheme", c.Broker.URL)
	}
	if c.Broker.TLS.Enabled {
		if c.Broker.TLS.CertFile == "" || c.Broker.TLS.KeyFile == "" {
			return stderrors.New("broker.tls.cert_file and broker.tls.key_file are required when TLS is enabled")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
		}
	}

	switch c.Publish.Mode {
	case emitter.ModeDrop:
	case emitter.ModeRetry:
		if c.Publish.Retry.MaxAttempts < 1 {
			return stderrors.New("publish.retry.max_attempts must be at least 1")
		}
	default:
		return fmt.Errorf("publish.mode %q must be %q or %q", c.Publish.Mode, emitter.ModeDrop, emitter.ModeRetry)
	}

	switch c.Timestamps {
	case scheduler.TimestampWall, scheduler.TimestampSimulated:
	default:
		return fmt.Errorf("timestamps %q must be %q or %q",
			c.Timestamps, scheduler.TimestampWall, scheduler.TimestampSimulated)
	}

	if c.Geometry.Enabled {
		if !c.Broker.JetStream {
			return stderrors.New("geometry snapshot requires broker.jetstream: true")
		}
		if c.Geometry.Bucket == "" {
			return stderrors.New("geometry.bucket is required when the snapshot is enabled")
		}
	}

	if len(c.Arms) == 0 {
		return stderrors.New("at least one arm is required")
	}
	for i, a := range c.Arms {
		if err := a.ToArm().Validate(); err != nil {
			return errors.WrapInvalid(err, "Config", "Validate", fmt.Sprintf("arms[%d]", i))
		}
	}

	return nil
}

// Loader loads a configuration file and applies environment overrides.
type Loader struct {
	envPrefix string
}

// NewLoader creates a loader with the ROBOGEN_ env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "ROBOGEN"}
}

// LoadFile reads, parses, overrides, and validates a configuration file.
func (l *Loader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "LoadFile", fmt.Sprintf("read %s", path))
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "LoadFile", fmt.Sprintf("parse %s", path))
	}

	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns the configuration before the file is applied.
func defaults() *Config {
	return &Config{
		Broker: BrokerConfig{
			URL:           "nats://localhost:4222",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Publish: PublishConfig{
			Mode: emitter.ModeDrop,
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: Duration(100 * time.Millisecond),
				MaxDelay:     Duration(2 * time.Second),
				Multiplier:   2.0,
			},
		},
		Timestamps: scheduler.TimestampWall,
		Control: ControlConfig{
			Prefix: "robot.control",
		},
		Watchdog: WatchdogConfig{
			Threshold: Duration(5 * time.Second),
			Interval:  Duration(time.Second),
		},
	}
}

// applyEnvOverrides applies ROBOGEN_* environment variables on top of the
// file. Only deployment-sensitive values are overridable.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_BROKER_URL"); val != "" {
		cfg.Broker.URL = val
	}
	if val := os.Getenv(l.envPrefix + "_BROKER_USERNAME"); val != "" {
		cfg.Broker.Username = val
	}
	if val := os.Getenv(l.envPrefix + "_BROKER_PASSWORD"); val != "" {
		cfg.Broker.Password = val
	}
	if val := os.Getenv(l.envPrefix + "_BROKER_TOKEN"); val != "" {
		cfg.Broker.Token = val
	}
	if val := os.Getenv(l.envPrefix + "_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
