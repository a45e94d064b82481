package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Watchdog marks arms degraded in the monitor when no sample activity has
// been recorded within the staleness threshold. An arm that was paused or
// deregistered should be Forget()-ten so it stops being watched.
type Watchdog struct {
	monitor   *Monitor
	threshold time.Duration
	interval  time.Duration

	mu       sync.Mutex
	activity map[string]time.Time
}

// NewWatchdog creates a watchdog that checks activity every interval and
// reports an arm degraded once it has been silent for threshold.
func NewWatchdog(monitor *Monitor, threshold, interval time.Duration) *Watchdog {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watchdog{
		monitor:   monitor,
		threshold: threshold,
		interval:  interval,
		activity:  make(map[string]time.Time),
	}
}

// RecordActivity notes that an arm produced a sample just now.
func (w *Watchdog) RecordActivity(arm string) {
	w.mu.Lock()
	w.activity[arm] = time.Now()
	w.mu.Unlock()
}

// Forget stops watching an arm and removes it from the monitor.
func (w *Watchdog) Forget(arm string) {
	w.mu.Lock()
	delete(w.activity, arm)
	w.mu.Unlock()
	w.monitor.Remove("arm:" + arm)
}

// Run checks activity periodically until the context is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(time.Now())
		}
	}
}

func (w *Watchdog) check(now time.Time) {
	w.mu.Lock()
	seen := make(map[string]time.Time, len(w.activity))
	for arm, last := range w.activity {
		seen[arm] = last
	}
	w.mu.Unlock()

	for arm, last := range seen {
		name := "arm:" + arm
		var status Status
		if age := now.Sub(last); age > w.threshold {
			status = NewDegraded(name,
				fmt.Sprintf("no sample for %v (threshold %v)", age.Round(time.Millisecond), w.threshold))
		} else {
			status = NewHealthy(name, "emitting samples")
		}
		status.LastSample = last
		w.monitor.Update(name, status)
	}
}
