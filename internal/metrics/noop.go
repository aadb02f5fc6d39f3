package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncAdminSeeded is a no-op.
func (n *NoopRecorder) IncAdminSeeded() {}

// IncAdminSeedSkipped is a no-op.
func (n *NoopRecorder) IncAdminSeedSkipped() {}

// ObserveBootstrapDuration is a no-op.
func (n *NoopRecorder) ObserveBootstrapDuration(duration time.Duration) {}

// IncSignup is a no-op.
func (n *NoopRecorder) IncSignup(status string) {}

// IncLogin is a no-op.
func (n *NoopRecorder) IncLogin(status string) {}
