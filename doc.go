// Package pyrobomogen generates synthetic 2D robotic-arm motion and
// publishes it as timestamped telemetry to a NATS broker.
//
// # Architecture
//
// The generator is a pipeline of small packages:
//
//	┌──────────────────────────────────────┐
//	│            Scheduler                 │  one goroutine per arm,
//	│  (drift-free pacing, isolation)      │  pause/resume, faults
//	└──────────────────┬───────────────────┘
//	                   │ advances
//	┌──────────────────▼───────────────────┐
//	│       Arm Registry + Motion          │  validated configs,
//	│   (profiles: oscillatory/sweep/      │  deterministic angle
//	│            waypoint)                 │  trajectories
//	└──────────────────┬───────────────────┘
//	                   │ angles
//	┌──────────────────▼───────────────────┐
//	│           Kinematics                 │  pure forward kinematics,
//	│    (pose + joint-chain positions)    │  N planar links
//	└──────────────────┬───────────────────┘
//	                   │ samples
//	┌──────────────────▼───────────────────┐
//	│        Emitter → NATS                │  JSON wire format,
//	│  (publish policy: drop or retry)     │  per-arm subjects
//	└──────────────────────────────────────┘
//
// Every arm runs on its own goroutine with exclusive ownership of its
// state. Sample deadlines are anchored to the start instant, so wake-up
// latency never accumulates; a backlog is dropped, not replayed. A
// failing arm (non-finite pose) is deregistered while the rest keep
// emitting.
//
// # Packages
//
// Domain:
//   - kinematics: pure forward kinematics for N-link planar arms
//   - motion: deterministic motion profiles behind one interface
//   - arm: validated arm configuration, state, and registry
//   - scheduler: per-arm pacing, lifecycle, failure isolation
//   - emitter: sample serialization and publish policy
//   - message: stable wire types (samples, geometry, control)
//
// Infrastructure:
//   - natsclient: NATS connection management with a circuit breaker
//     and a JetStream KV store for geometry snapshots
//   - config: YAML configuration with ROBOGEN_ env overrides
//   - metric: Prometheus metrics and the /health endpoint
//   - health: component health monitor and per-arm staleness watchdog
//   - errors: classified errors (transient/invalid/fatal)
//   - pkg/retry, pkg/timestamp: retry backoff and canonical timestamps
//
// # Binary
//
//	# Run with a config file
//	./bin/robogen --config configs/robot.yaml
//
//	# Validate configuration only
//	./bin/robogen --config configs/robot.yaml --validate
//
// SIGINT/SIGTERM shut down gracefully; SIGHUP reloads the configuration
// and restarts the scheduler.
package pyrobomogen
