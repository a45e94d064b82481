package scheduler

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-origami/pyrobomogen/arm"
	"github.com/virtual-origami/pyrobomogen/emitter"
	"github.com/virtual-origami/pyrobomogen/health"
	"github.com/virtual-origami/pyrobomogen/message"
	"github.com/virtual-origami/pyrobomogen/motion"
)

type capturePublisher struct {
	mu       sync.Mutex
	samples  []*message.Sample
	subjects []string
}

func (p *capturePublisher) Publish(_ context.Context, subject string, payload []byte) error {
	s, err := message.UnmarshalSample(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.samples = append(p.samples, s)
	return nil
}

func (p *capturePublisher) snapshot() []*message.Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*message.Sample, len(p.samples))
	copy(out, p.samples)
	return out
}

// selectivePublisher refuses every publish on one subject and records
// all attempts, successful or not.
type selectivePublisher struct {
	failSubject string

	mu       sync.Mutex
	attempts map[string]int
	samples  []*message.Sample
}

func (p *selectivePublisher) Publish(_ context.Context, subject string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attempts == nil {
		p.attempts = map[string]int{}
	}
	p.attempts[subject]++
	if subject == p.failSubject {
		return errors.New("publish refused")
	}
	s, err := message.UnmarshalSample(payload)
	if err != nil {
		return err
	}
	p.samples = append(p.samples, s)
	return nil
}

func (p *selectivePublisher) attemptCount(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[subject]
}

func (p *selectivePublisher) snapshot() []*message.Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*message.Sample, len(p.samples))
	copy(out, p.samples)
	return out
}

// slowPublisher delays every publish to simulate per-tick work.
type slowPublisher struct {
	capturePublisher
	delay time.Duration
}

func (p *slowPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	time.Sleep(p.delay)
	return p.capturePublisher.Publish(ctx, subject, payload)
}

func armConfig(id string, interval time.Duration, center float64) arm.Config {
	return arm.Config{
		ID:    id,
		Links: []float64{1.0, 0.5},
		Bounds: []arm.Bound{
			{Min: -math.Pi, Max: math.Pi},
			{Min: -math.Pi, Max: math.Pi},
		},
		Profile: motion.Config{
			Kind: motion.KindOscillatory,
			Oscillatory: []motion.Oscillator{
				{Center: center, Amplitude: 0.5, Period: time.Second},
				{Center: 0, Amplitude: 0.25, Period: time.Second},
			},
		},
		SampleInterval: interval,
		Subject:        "robot.telemetry." + id,
	}
}

func newScheduler(t *testing.T, pub emitter.Publisher, configs ...arm.Config) (*Scheduler, *arm.Registry) {
	t.Helper()

	registry, err := arm.NewRegistry(configs)
	require.NoError(t, err)

	em, err := emitter.New(emitter.Deps{
		Publisher: pub,
		Policy:    emitter.Policy{Mode: emitter.ModeDrop},
	})
	require.NoError(t, err)

	s, err := New(Deps{Registry: registry, Emitter: em})
	require.NoError(t, err)
	return s, registry
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)

	registry, err := arm.NewRegistry([]arm.Config{armConfig("a", 10*time.Millisecond, 0)})
	require.NoError(t, err)
	_, err = New(Deps{Registry: registry})
	assert.Error(t, err)
}

func TestNew_RejectsUnknownTimestampMode(t *testing.T) {
	pub := &capturePublisher{}
	registry, err := arm.NewRegistry([]arm.Config{armConfig("a", 10*time.Millisecond, 0)})
	require.NoError(t, err)
	em, err := emitter.New(emitter.Deps{Publisher: pub, Policy: emitter.Policy{Mode: emitter.ModeDrop}})
	require.NoError(t, err)

	_, err = New(Deps{Registry: registry, Emitter: em, TimestampMode: "lamport"})
	assert.Error(t, err)
}

func TestScheduler_EmitsSamplesInTickOrder(t *testing.T) {
	pub := &capturePublisher{}
	s, _ := newScheduler(t, pub, armConfig("arm-1", 5*time.Millisecond, 0))

	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StatusRunning, s.Status())

	time.Sleep(80 * time.Millisecond)
	require.NoError(t, s.Stop(time.Second))
	assert.Equal(t, StatusStopped, s.Status())

	samples := pub.snapshot()
	require.GreaterOrEqual(t, len(samples), 3)

	for i, sample := range samples {
		assert.Equal(t, "arm-1", sample.ArmID)
		assert.NotZero(t, sample.Timestamp)
		require.Len(t, sample.Angles, 2)
		require.Len(t, sample.JointPositions, 3)
		if i > 0 {
			assert.Greater(t, sample.Tick, samples[i-1].Tick, "ticks must be strictly increasing")
		}
	}
}

func TestScheduler_NoSamplesAfterStop(t *testing.T) {
	pub := &capturePublisher{}
	s, _ := newScheduler(t, pub, armConfig("arm-1", 5*time.Millisecond, 0))

	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, s.Stop(time.Second))

	count := len(pub.snapshot())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, count, len(pub.snapshot()))
}

func TestScheduler_MultipleArmsIndependent(t *testing.T) {
	pub := &capturePublisher{}
	s, _ := newScheduler(t, pub,
		armConfig("arm-1", 5*time.Millisecond, 0),
		armConfig("arm-2", 5*time.Millisecond, 1),
	)

	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, s.Stop(time.Second))

	byArm := map[string][]uint64{}
	for _, sample := range pub.snapshot() {
		byArm[sample.ArmID] = append(byArm[sample.ArmID], sample.Tick)
	}
	require.Len(t, byArm, 2)

	// Per-arm tick order holds even though arms interleave freely.
	for armID, ticks := range byArm {
		require.NotEmpty(t, ticks, armID)
		for i := 1; i < len(ticks); i++ {
			assert.Greater(t, ticks[i], ticks[i-1], armID)
		}
	}
}

func TestScheduler_PublishFailureDoesNotStallOtherArms(t *testing.T) {
	pub := &selectivePublisher{failSubject: "robot.telemetry.arm-1"}
	s, registry := newScheduler(t, pub,
		armConfig("arm-1", 5*time.Millisecond, 0),
		armConfig("arm-2", 5*time.Millisecond, 1),
	)

	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, s.Stop(time.Second))

	// arm-1 never lands a sample, yet its loop keeps attempting the
	// next ticks and the arm stays registered.
	assert.GreaterOrEqual(t, pub.attemptCount("robot.telemetry.arm-1"), 3)
	_, ok := registry.Get("arm-1")
	assert.True(t, ok, "publish failures must not deregister an arm")

	// arm-2 keeps emitting in order throughout.
	var ticks []uint64
	for _, sample := range pub.snapshot() {
		require.Equal(t, "arm-2", sample.ArmID)
		ticks = append(ticks, sample.Tick)
	}
	require.GreaterOrEqual(t, len(ticks), 3)
	for i := 1; i < len(ticks); i++ {
		assert.Greater(t, ticks[i], ticks[i-1])
	}
}

func TestScheduler_SlowPublishKeepsConfiguredCadence(t *testing.T) {
	interval := 10 * time.Millisecond
	pub := &slowPublisher{delay: 3 * time.Millisecond}
	s, _ := newScheduler(t, pub, armConfig("arm-1", interval, 0))

	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, s.Stop(time.Second))

	samples := pub.snapshot()
	require.GreaterOrEqual(t, len(samples), 8)

	// Per-tick work shorter than the interval must not stretch the
	// cadence: deadlines are anchored to the start instant, so the mean
	// spacing converges on the configured interval.
	first := samples[0].Timestamp
	last := samples[len(samples)-1].Timestamp
	mean := time.Duration(last-first) * time.Millisecond / time.Duration(len(samples)-1)
	assert.InDelta(t, float64(interval), float64(mean), float64(4*time.Millisecond))

	// With work well under the interval, no ticks are dropped.
	for i := 1; i < len(samples); i++ {
		assert.Equal(t, samples[i-1].Tick+1, samples[i].Tick)
	}
}

func TestScheduler_ComputationFaultDeregistersOnlyFaultyArm(t *testing.T) {
	faulty := armConfig("faulty", 5*time.Millisecond, math.NaN())
	healthy := armConfig("healthy", 5*time.Millisecond, 0)

	pub := &capturePublisher{}
	s, registry := newScheduler(t, pub, faulty, healthy)

	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, s.Stop(time.Second))

	_, ok := registry.Get("faulty")
	assert.False(t, ok, "faulty arm must be deregistered")
	_, ok = registry.Get("healthy")
	assert.True(t, ok)

	for _, sample := range pub.snapshot() {
		assert.Equal(t, "healthy", sample.ArmID, "faulty arm must never emit")
	}
	assert.NotEmpty(t, pub.snapshot())
}

func TestScheduler_PauseResume(t *testing.T) {
	pub := &capturePublisher{}
	s, _ := newScheduler(t, pub, armConfig("arm-1", 5*time.Millisecond, 0))

	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))

	time.Sleep(30 * time.Millisecond)
	require.True(t, s.Pause("arm-1"))
	time.Sleep(10 * time.Millisecond) // let in-flight ticks settle
	paused := len(pub.snapshot())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, paused, len(pub.snapshot()), "paused arm must not emit")

	require.True(t, s.Resume("arm-1"))
	time.Sleep(30 * time.Millisecond)
	assert.Greater(t, len(pub.snapshot()), paused)

	require.NoError(t, s.Stop(time.Second))
}

func TestScheduler_PauseUnknownArm(t *testing.T) {
	pub := &capturePublisher{}
	s, _ := newScheduler(t, pub, armConfig("arm-1", 10*time.Millisecond, 0))
	require.NoError(t, s.Initialize())

	assert.False(t, s.Pause("nope"))
	assert.False(t, s.Resume("nope"))
}

func TestScheduler_HandleControl(t *testing.T) {
	pub := &capturePublisher{}
	s, _ := newScheduler(t, pub, armConfig("arm-1", time.Hour, 0))
	require.NoError(t, s.Initialize())

	s.handleControl("arm-1", []byte(`{"command":"stop"}`))
	assert.True(t, s.runners["arm-1"].paused.Load())

	s.handleControl("arm-1", []byte(`{"command":"start"}`))
	assert.False(t, s.runners["arm-1"].paused.Load())

	// Malformed and unknown commands are ignored
	s.handleControl("arm-1", []byte(`not json`))
	s.handleControl("arm-1", []byte(`{"command":"reverse"}`))
	assert.False(t, s.runners["arm-1"].paused.Load())
}

func TestScheduler_WatchdogSeesActivity(t *testing.T) {
	monitor := health.NewMonitor()
	watchdog := health.NewWatchdog(monitor, time.Second, time.Second)

	pub := &capturePublisher{}
	registry, err := arm.NewRegistry([]arm.Config{armConfig("arm-1", 5*time.Millisecond, 0)})
	require.NoError(t, err)
	em, err := emitter.New(emitter.Deps{Publisher: pub, Policy: emitter.Policy{Mode: emitter.ModeDrop}})
	require.NoError(t, err)

	s, err := New(Deps{
		Registry: registry,
		Emitter:  em,
		Monitor:  monitor,
		Watchdog: watchdog,
	})
	require.NoError(t, err)

	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, s.Stop(time.Second))

	status, ok := monitor.Get("scheduler")
	require.True(t, ok)
	assert.True(t, status.IsUnhealthy(), "stopped scheduler reports unhealthy")
}

func TestNextDeadline_OnTime(t *testing.T) {
	base := time.Now()
	interval := 10 * time.Millisecond

	next, dropped, dt := nextDeadline(base, base.Add(time.Millisecond), interval)
	assert.Equal(t, base.Add(interval), next)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, interval, dt)
}

func TestNextDeadline_OverrunFiresImmediately(t *testing.T) {
	base := time.Now()
	interval := 10 * time.Millisecond

	// Woke 1ms past the +10ms deadline: that tick is overdue and must
	// fire at once, with nothing dropped.
	next, dropped, dt := nextDeadline(base, base.Add(11*time.Millisecond), interval)
	assert.Equal(t, base.Add(10*time.Millisecond), next)
	assert.False(t, next.After(base.Add(11*time.Millisecond)))
	assert.Equal(t, 0, dropped)
	assert.Equal(t, interval, dt)
}

func TestNextDeadline_DropsBacklog(t *testing.T) {
	base := time.Now()
	interval := 10 * time.Millisecond

	// Woke 35ms late: the deadlines at +10 and +20 are dropped; the most
	// recent missed deadline at +30 fires immediately.
	next, dropped, dt := nextDeadline(base, base.Add(35*time.Millisecond), interval)
	assert.Equal(t, base.Add(30*time.Millisecond), next)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 30*time.Millisecond, dt)
}

func TestNextDeadline_ExactBoundary(t *testing.T) {
	base := time.Now()
	interval := 10 * time.Millisecond

	// now exactly at the next deadline: that deadline fires immediately,
	// exactly once, with nothing dropped.
	next, dropped, dt := nextDeadline(base, base.Add(10*time.Millisecond), interval)
	assert.Equal(t, base.Add(10*time.Millisecond), next)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, 10*time.Millisecond, dt)
}

func TestScheduler_SimulatedTimestamps(t *testing.T) {
	pub := &capturePublisher{}
	registry, err := arm.NewRegistry([]arm.Config{armConfig("arm-1", 5*time.Millisecond, 0)})
	require.NoError(t, err)
	em, err := emitter.New(emitter.Deps{Publisher: pub, Policy: emitter.Policy{Mode: emitter.ModeDrop}})
	require.NoError(t, err)

	s, err := New(Deps{Registry: registry, Emitter: em, TimestampMode: TimestampSimulated})
	require.NoError(t, err)

	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, s.Stop(time.Second))

	samples := pub.snapshot()
	require.GreaterOrEqual(t, len(samples), 2)

	// Simulated timestamps advance in exact interval multiples from the base.
	for i := 1; i < len(samples); i++ {
		delta := samples[i].Timestamp - samples[i-1].Timestamp
		assert.Zero(t, delta%5, "simulated timestamps move in whole intervals")
		assert.Positive(t, delta)
	}
}

func TestScheduler_StartWithoutInitialize(t *testing.T) {
	pub := &capturePublisher{}
	s, _ := newScheduler(t, pub, armConfig("arm-1", 10*time.Millisecond, 0))
	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_StopWhenIdle(t *testing.T) {
	pub := &capturePublisher{}
	s, _ := newScheduler(t, pub, armConfig("arm-1", 10*time.Millisecond, 0))
	assert.NoError(t, s.Stop(time.Second))
}
