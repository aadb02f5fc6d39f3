package metrics

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AdminSeeded              uint64
	AdminSeedSkipped         uint64
	BootstrapDurationCount   uint64
	BootstrapDurationTotalNs int64
	Signups                  map[string]uint64
	Logins                   map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	adminSeeded              uint64
	adminSeedSkipped         uint64
	bootstrapDurationCount   uint64
	bootstrapDurationTotalNs int64

	mu      sync.Mutex
	signups map[string]uint64
	logins  map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		signups: make(map[string]uint64),
		logins:  make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		AdminSeeded:              atomic.LoadUint64(&m.adminSeeded),
		AdminSeedSkipped:         atomic.LoadUint64(&m.adminSeedSkipped),
		BootstrapDurationCount:   atomic.LoadUint64(&m.bootstrapDurationCount),
		BootstrapDurationTotalNs: atomic.LoadInt64(&m.bootstrapDurationTotalNs),
		Signups:                  maps.Clone(m.signups),
		Logins:                   maps.Clone(m.logins),
	}
}

// IncAdminSeeded increments the admin created counter.
func (m *InMemoryRecorder) IncAdminSeeded() {
	atomic.AddUint64(&m.adminSeeded, 1)
}

// IncAdminSeedSkipped increments the admin already present counter.
func (m *InMemoryRecorder) IncAdminSeedSkipped() {
	atomic.AddUint64(&m.adminSeedSkipped, 1)
}

// ObserveBootstrapDuration records bootstrap duration.
func (m *InMemoryRecorder) ObserveBootstrapDuration(duration time.Duration) {
	atomic.AddUint64(&m.bootstrapDurationCount, 1)
	atomic.AddInt64(&m.bootstrapDurationTotalNs, duration.Nanoseconds())
}

// IncSignup counts a signup attempt by outcome.
func (m *InMemoryRecorder) IncSignup(status string) {
	m.mu.Lock()
	m.signups[status]++
	m.mu.Unlock()
}

// IncLogin counts a login attempt by outcome.
func (m *InMemoryRecorder) IncLogin(status string) {
	m.mu.Lock()
	m.logins[status]++
	m.mu.Unlock()
}
