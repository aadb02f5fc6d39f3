// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Bootstrap metrics
	IncAdminSeeded()
	IncAdminSeedSkipped()
	ObserveBootstrapDuration(duration time.Duration)

	// Account metrics
	IncSignup(status string) // status: "success", "invalid", "conflict", "error"
	IncLogin(status string)  // status: "success", "failed", "disabled", "throttled", "error"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
