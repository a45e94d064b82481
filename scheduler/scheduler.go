// Package scheduler drives every registered arm on its own goroutine,
// pacing samples drift-free and isolating per-arm failures.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/virtual-origami/pyrobomogen/arm"
	"github.com/virtual-origami/pyrobomogen/emitter"
	"github.com/virtual-origami/pyrobomogen/errors"
	"github.com/virtual-origami/pyrobomogen/health"
	"github.com/virtual-origami/pyrobomogen/kinematics"
	"github.com/virtual-origami/pyrobomogen/message"
	"github.com/virtual-origami/pyrobomogen/metric"
	"github.com/virtual-origami/pyrobomogen/pkg/timestamp"
)

// Status represents the scheduler lifecycle state.
type Status int

// Possible scheduler statuses
const (
	StatusIdle Status = iota
	StatusRunning
	StatusStopped
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Timestamp modes for outbound samples.
const (
	TimestampWall      = "wall"
	TimestampSimulated = "simulated"
)

// Subscriber is the capability the scheduler uses to receive per-arm
// control messages. The NATS client satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// Deps carries the scheduler's dependencies. Registry and Emitter are
// required; the rest are optional.
type Deps struct {
	Registry *arm.Registry
	Emitter  *emitter.Emitter
	Metrics  *metric.Registry
	Monitor  *health.Monitor
	Watchdog *health.Watchdog
	Logger   *slog.Logger

	// Subscriber and ControlPrefix enable per-arm pause/resume via
	// control messages on <ControlPrefix>.<armID>. Leave either unset
	// to disable control handling.
	Subscriber    Subscriber
	ControlPrefix string

	// TimestampMode selects wall-clock (default) or simulated sample
	// timestamps.
	TimestampMode string
}

// runner is the per-arm scheduling slot. The arm's State is owned
// exclusively by the runner's goroutine; paused is the only field other
// goroutines touch.
type runner struct {
	arm    *arm.Arm
	paused atomic.Bool
}

// Scheduler paces all arms. One goroutine per arm; arms never block each
// other, and a fault in one arm deregisters only that arm.
type Scheduler struct {
	registry *arm.Registry
	emitter  *emitter.Emitter
	metrics  *metric.Metrics
	monitor  *health.Monitor
	watchdog *health.Watchdog
	logger   *slog.Logger

	subscriber    Subscriber
	controlPrefix string
	simulated     bool

	runners map[string]*runner
	baseMs  int64 // wall time at Start, used for simulated timestamps

	status atomic.Value // Status
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New creates a scheduler from its dependencies. Call Initialize before
// Start.
func New(deps Deps) (*Scheduler, error) {
	if deps.Registry == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil registry"), "Scheduler", "New", "registry is required")
	}
	if deps.Emitter == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil emitter"), "Scheduler", "New", "emitter is required")
	}

	mode := deps.TimestampMode
	if mode == "" {
		mode = TimestampWall
	}
	if mode != TimestampWall && mode != TimestampSimulated {
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown timestamp mode %q", mode),
			"Scheduler", "New", "timestamp mode must be wall or simulated")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		registry:      deps.Registry,
		emitter:       deps.Emitter,
		monitor:       deps.Monitor,
		watchdog:      deps.Watchdog,
		logger:        logger.With("component", "scheduler"),
		subscriber:    deps.Subscriber,
		controlPrefix: deps.ControlPrefix,
		simulated:     mode == TimestampSimulated,
	}
	if deps.Metrics != nil {
		s.metrics = deps.Metrics.CoreMetrics()
	}
	s.status.Store(StatusIdle)

	return s, nil
}

// Status returns the current lifecycle state.
func (s *Scheduler) Status() Status {
	return s.status.Load().(Status)
}

// Initialize builds the per-arm runners. The registry must hold at least
// one arm.
func (s *Scheduler) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() != StatusIdle {
		return errors.ErrAlreadyStarted
	}

	arms := s.registry.Arms()
	if len(arms) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("registry holds no arms"),
			"Scheduler", "Initialize", "nothing to schedule")
	}

	s.runners = make(map[string]*runner, len(arms))
	for _, a := range arms {
		s.runners[a.ID()] = &runner{arm: a}
	}

	return nil
}

// Start launches one scheduling goroutine per arm and, when a subscriber
// is configured, subscribes to each arm's control subject. Returns once
// everything is launched.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() == StatusRunning {
		return errors.ErrAlreadyStarted
	}
	if s.runners == nil {
		return errors.ErrNotStarted
	}

	s.done = make(chan struct{})
	s.baseMs = timestamp.Now()

	if s.subscriber != nil && s.controlPrefix != "" {
		for id := range s.runners {
			subject := fmt.Sprintf("%s.%s", s.controlPrefix, id)
			armID := id
			err := s.subscriber.Subscribe(ctx, subject, func(_ context.Context, data []byte) {
				s.handleControl(armID, data)
			})
			if err != nil {
				return errors.Wrap(err, "Scheduler", "Start",
					fmt.Sprintf("subscribe control subject %s", subject))
			}
		}
	}

	for _, r := range s.runners {
		s.wg.Add(1)
		go s.run(ctx, r)
	}

	if s.watchdog != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			watchCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				<-s.done
				cancel()
			}()
			s.watchdog.Run(watchCtx)
		}()
	}

	s.status.Store(StatusRunning)
	if s.metrics != nil {
		s.metrics.RecordArmsActive(s.registry.Len())
	}
	if s.monitor != nil {
		s.monitor.UpdateHealthy("scheduler", fmt.Sprintf("scheduling %d arms", s.registry.Len()))
	}
	s.logger.Info("scheduler started", "arms", s.registry.Len())

	return nil
}

// Stop halts scheduling. No new tick begins after Stop; in-flight work may
// drain until the timeout.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status() != StatusRunning {
		return nil
	}

	close(s.done)

	if timeout == 0 {
		timeout = 5 * time.Second
	}

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	var err error
	select {
	case <-finished:
	case <-time.After(timeout):
		err = errors.WrapTransient(
			fmt.Errorf("timed out after %v", timeout),
			"Scheduler", "Stop", "arm goroutines still draining")
	}

	s.status.Store(StatusStopped)
	if s.metrics != nil {
		s.metrics.RecordArmsActive(0)
	}
	if s.monitor != nil {
		s.monitor.UpdateUnhealthy("scheduler", "stopped")
	}
	s.logger.Info("scheduler stopped")

	return err
}

// Pause suspends compute and emit for one arm; its timer keeps running.
func (s *Scheduler) Pause(armID string) bool {
	r, ok := s.runners[armID]
	if !ok {
		return false
	}
	r.paused.Store(true)
	if s.watchdog != nil {
		s.watchdog.Forget(armID)
	}
	s.logger.Info("arm paused", "arm", armID)
	return true
}

// Resume re-enables compute and emit for a paused arm.
func (s *Scheduler) Resume(armID string) bool {
	r, ok := s.runners[armID]
	if !ok {
		return false
	}
	r.paused.Store(false)
	s.logger.Info("arm resumed", "arm", armID)
	return true
}

// handleControl applies a control message to an arm. Malformed payloads
// are logged and ignored.
func (s *Scheduler) handleControl(armID string, data []byte) {
	ctl, err := message.UnmarshalControl(data)
	if err != nil {
		s.logger.Warn("invalid control message", "arm", armID, "error", err)
		return
	}

	switch ctl.Command {
	case message.CommandStart:
		s.Resume(armID)
	case message.CommandStop:
		s.Pause(armID)
	}
}

// nextDeadline advances next by whole intervals, returning the new
// deadline, the number of deadlines dropped, and the simulated time the
// following tick must cover. When the loop has fallen behind, next lands
// on the most recent missed deadline so that tick fires immediately;
// only the backlog before it is dropped.
func nextDeadline(next, now time.Time, interval time.Duration) (time.Time, int, time.Duration) {
	next = next.Add(interval)
	dt := interval
	if !now.Before(next) {
		n := int(now.Sub(next) / interval)
		next = next.Add(time.Duration(n) * interval)
		dt += time.Duration(n) * interval
		return next, n, dt
	}
	return next, 0, dt
}

// run is the per-arm scheduling loop. Deadlines are anchored to the start
// instant, so wake-up latency never accumulates. When a tick overruns its
// interval the overdue tick fires immediately; any backlog beyond it is
// dropped, not replayed.
func (s *Scheduler) run(ctx context.Context, r *runner) {
	defer s.wg.Done()

	cfg := r.arm.Config()
	interval := cfg.SampleInterval
	id := r.arm.ID()
	logger := s.logger.With("arm", id)

	next := time.Now().Add(interval)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	dt := interval
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			if !r.paused.Load() {
				if fault := s.tick(ctx, r, cfg, dt, logger); fault {
					return
				}
			}

			var dropped int
			next, dropped, dt = nextDeadline(next, time.Now(), interval)
			if dropped > 0 {
				logger.Warn("schedule fell behind, dropping ticks", "dropped", dropped)
				if s.metrics != nil {
					s.metrics.RecordTicksDropped(id, dropped)
				}
			}
			timer.Reset(time.Until(next))
		}
	}
}

// tick computes and publishes one sample. Returns true on a computation
// fault, which deregisters the arm and ends its loop; everything else is
// contained within the tick.
func (s *Scheduler) tick(ctx context.Context, r *runner, cfg arm.Config, dt time.Duration, logger *slog.Logger) bool {
	start := time.Now()
	id := r.arm.ID()

	angles := r.arm.Advance(dt)

	pose, err := kinematics.Forward(cfg.Links, angles)
	if err == nil && !pose.Finite() {
		err = errors.ErrComputationFault
	}
	if err != nil {
		logger.Error("computation fault, deregistering arm", "tick", r.arm.Tick(), "error", err)
		if s.metrics != nil {
			s.metrics.RecordComputationFault(id)
		}
		s.registry.Deregister(id)
		if s.watchdog != nil {
			s.watchdog.Forget(id)
		}
		if s.monitor != nil {
			s.monitor.UpdateDegraded("scheduler",
				fmt.Sprintf("arm %s deregistered after computation fault", id))
		}
		if s.metrics != nil {
			s.metrics.RecordArmsActive(s.registry.Len())
		}
		return true
	}

	joints, _ := kinematics.Chain(cfg.Links, angles)

	ts := timestamp.Now()
	if s.simulated {
		ts = timestamp.Add(s.baseMs, r.arm.Elapsed())
	}

	sample := message.Sample{
		ArmID:          id,
		Timestamp:      ts,
		Tick:           r.arm.Tick(),
		Angles:         angles,
		Pose:           pose,
		JointPositions: joints,
	}

	if err := s.emitter.Emit(ctx, cfg.Subject, sample); err != nil {
		// Publish failures are isolated to this tick; the emitter has
		// already applied the retry policy and counted the failure.
		logger.Warn("sample dropped", "tick", sample.Tick, "error", err)
	} else if s.watchdog != nil {
		s.watchdog.RecordActivity(id)
	}

	if s.metrics != nil {
		s.metrics.RecordCycleDuration(id, time.Since(start))
	}
	return false
}
