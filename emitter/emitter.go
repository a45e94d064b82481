// Package emitter serializes pose samples and publishes them to the
// broker, applying the configured publish failure policy.
package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/virtual-origami/pyrobomogen/errors"
	"github.com/virtual-origami/pyrobomogen/message"
	"github.com/virtual-origami/pyrobomogen/metric"
	"github.com/virtual-origami/pyrobomogen/pkg/retry"
)

// Publisher is the transport capability the emitter depends on. The NATS
// client satisfies it; tests use an in-memory fake.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// Publish failure policy modes.
const (
	ModeDrop  = "drop"
	ModeRetry = "retry"
)

// Policy controls what happens when a publish attempt fails. Drop mode
// records the failure and moves on; retry mode makes a bounded number of
// attempts with backoff before dropping.
type Policy struct {
	Mode  string
	Retry retry.Config
}

// Validate checks the policy mode.
func (p Policy) Validate() error {
	switch p.Mode {
	case ModeDrop, ModeRetry:
		return nil
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown publish policy mode %q", p.Mode),
			"Policy", "Validate", "mode must be drop or retry")
	}
}

// Deps carries the emitter's dependencies.
type Deps struct {
	Publisher Publisher
	Policy    Policy
	Metrics   *metric.Registry
	Logger    *slog.Logger
}

// Emitter publishes samples for all arms. Safe for concurrent use: every
// arm's scheduling goroutine calls Emit on the shared instance.
type Emitter struct {
	publisher Publisher
	policy    Policy
	metrics   *metric.Metrics
	logger    *slog.Logger
	generator string

	publishLatency *prometheus.HistogramVec
}

// New creates an emitter. Every sample it publishes is stamped with a
// generator instance UUID minted here.
func New(deps Deps) (*Emitter, error) {
	if deps.Publisher == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil publisher"), "Emitter", "New", "publisher is required")
	}
	if err := deps.Policy.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Emitter{
		publisher: deps.Publisher,
		policy:    deps.Policy,
		logger:    logger,
		generator: uuid.NewString(),
	}

	if deps.Metrics != nil {
		e.metrics = deps.Metrics.CoreMetrics()

		e.publishLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "robogen",
				Subsystem: "emitter",
				Name:      "publish_latency_seconds",
				Help:      "Broker publish latency per arm",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"arm"},
		)
		if err := deps.Metrics.Register("emitter", "publish_latency_seconds", e.publishLatency); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Generator returns the instance UUID stamped into outbound samples.
func (e *Emitter) Generator() string {
	return e.generator
}

// Emit serializes the sample and publishes it to subject. The sample is
// consumed: Emit stamps the generator ID before marshalling. A failed
// publish is handled per the policy; the returned error reports the final
// outcome after any retries.
func (e *Emitter) Emit(ctx context.Context, subject string, sample message.Sample) error {
	sample.Generator = e.generator

	payload, err := sample.Marshal()
	if err != nil {
		return errors.WrapInvalid(err, "Emitter", "Emit",
			fmt.Sprintf("marshal sample for arm %s", sample.ArmID))
	}

	start := time.Now()
	err = e.publish(ctx, subject, payload)
	if e.publishLatency != nil {
		e.publishLatency.WithLabelValues(sample.ArmID).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordPublishFailure(sample.ArmID)
		}
		return errors.WrapTransient(err, "Emitter", "Emit",
			fmt.Sprintf("publish sample tick %d for arm %s", sample.Tick, sample.ArmID))
	}

	if e.metrics != nil {
		e.metrics.RecordSampleEmitted(sample.ArmID)
	}
	return nil
}

func (e *Emitter) publish(ctx context.Context, subject string, payload []byte) error {
	if e.policy.Mode == ModeDrop {
		return e.publisher.Publish(ctx, subject, payload)
	}

	return retry.Do(ctx, e.policy.Retry, func() error {
		return e.publisher.Publish(ctx, subject, payload)
	})
}
