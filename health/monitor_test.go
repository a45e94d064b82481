package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_UpdateAndGet(t *testing.T) {
	m := NewMonitor()

	m.UpdateHealthy("emitter", "connected")

	status, ok := m.Get("emitter")
	require.True(t, ok)
	assert.Equal(t, "emitter", status.Component)
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "connected", status.Message)
	assert.False(t, status.Timestamp.IsZero())
}

func TestMonitor_GetMissing(t *testing.T) {
	m := NewMonitor()
	_, ok := m.Get("unknown")
	assert.False(t, ok)
}

func TestMonitor_UpdateOverridesComponentName(t *testing.T) {
	m := NewMonitor()
	m.Update("scheduler", NewHealthy("wrong-name", "running"))

	status, ok := m.Get("scheduler")
	require.True(t, ok)
	assert.Equal(t, "scheduler", status.Component)
}

func TestMonitor_RemoveAndCount(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("a", "")
	m.UpdateHealthy("b", "")
	assert.Equal(t, 2, m.Count())

	m.Remove("a")
	assert.Equal(t, 1, m.Count())
	_, ok := m.Get("a")
	assert.False(t, ok)
}

func TestMonitor_AggregateHealth(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("emitter", "")
	m.UpdateHealthy("scheduler", "")

	agg := m.AggregateHealth("robogen")
	assert.True(t, agg.IsHealthy())
	assert.Len(t, agg.SubStatuses, 2)

	m.UpdateDegraded("arm:arm-1", "stale")
	agg = m.AggregateHealth("robogen")
	assert.True(t, agg.IsDegraded())

	m.UpdateUnhealthy("emitter", "disconnected")
	agg = m.AggregateHealth("robogen")
	assert.True(t, agg.IsUnhealthy())
}

func TestAggregate_Empty(t *testing.T) {
	agg := Aggregate("robogen", nil)
	assert.True(t, agg.IsHealthy())
}

func TestAggregate_CopiesSubStatuses(t *testing.T) {
	subs := []Status{NewHealthy("x", ""), NewDegraded("y", "stale")}
	agg := Aggregate("robogen", subs)

	subs[0].Component = "mutated"
	require.Len(t, agg.SubStatuses, 2)
	assert.Equal(t, "x", agg.SubStatuses[0].Component)
}

func TestWatchdog_StaleArmDegraded(t *testing.T) {
	m := NewMonitor()
	w := NewWatchdog(m, 50*time.Millisecond, time.Second)

	w.RecordActivity("arm-1")
	w.check(time.Now().Add(100 * time.Millisecond))

	status, ok := m.Get("arm:arm-1")
	require.True(t, ok)
	assert.True(t, status.IsDegraded())
}

func TestWatchdog_FreshArmHealthy(t *testing.T) {
	m := NewMonitor()
	w := NewWatchdog(m, time.Second, time.Second)

	w.RecordActivity("arm-1")
	w.check(time.Now())

	status, ok := m.Get("arm:arm-1")
	require.True(t, ok)
	assert.True(t, status.IsHealthy())
	assert.False(t, status.LastSample.IsZero(), "arm status carries its last sample time")
}

func TestWatchdog_RecoveryAfterStaleness(t *testing.T) {
	m := NewMonitor()
	w := NewWatchdog(m, 50*time.Millisecond, time.Second)

	w.RecordActivity("arm-1")
	w.check(time.Now().Add(100 * time.Millisecond))
	status, _ := m.Get("arm:arm-1")
	require.True(t, status.IsDegraded())

	w.RecordActivity("arm-1")
	w.check(time.Now())
	status, _ = m.Get("arm:arm-1")
	assert.True(t, status.IsHealthy())
}

func TestWatchdog_Forget(t *testing.T) {
	m := NewMonitor()
	w := NewWatchdog(m, time.Second, time.Second)

	w.RecordActivity("arm-1")
	w.check(time.Now())
	_, ok := m.Get("arm:arm-1")
	require.True(t, ok)

	w.Forget("arm-1")
	_, ok = m.Get("arm:arm-1")
	assert.False(t, ok)

	// No resurrection on the next check
	w.check(time.Now())
	_, ok = m.Get("arm:arm-1")
	assert.False(t, ok)
}
