// Package health tracks component degradation and renders the health report.
package health

import (
	"sync"
	"time"
)

// Level is how degraded a single component is.
type Level string

const (
	LevelNone          Level = "none"
	LevelPartial       Level = "partial"
	LevelFullyDegraded Level = "fully_degraded"
)

// Status is the overall service health.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Components reported by the accounts service.
const (
	ComponentDatabase = "database"
	ComponentService  = "service"
	ComponentCache    = "cache"
)

type component struct {
	level  Level
	detail string
}

// State is the process-wide record of component health. Safe for concurrent use.
type State struct {
	mu         sync.RWMutex
	components map[string]component
	version    string
	startedAt  time.Time
}

// NewState returns a State with the database and service components healthy.
func NewState(version string, startedAt time.Time) *State {
	return &State{
		components: map[string]component{
			ComponentDatabase: {level: LevelNone},
			ComponentService:  {level: LevelNone},
		},
		version:   version,
		startedAt: startedAt,
	}
}

// Set records the level of a component. An empty detail is allowed.
func (s *State) Set(name string, level Level, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components[name] = component{level: level, detail: detail}
}

// MarkHealthy resets a component to LevelNone.
func (s *State) MarkHealthy(name string) {
	s.Set(name, LevelNone, "")
}

// Level returns the current level of a component, LevelNone if unknown.
func (s *State) Level(name string) Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.components[name]; ok {
		return c.level
	}
	return LevelNone
}

// Version returns the version the State was created with.
func (s *State) Version() string {
	return s.version
}

// StartedAt returns the process start time.
func (s *State) StartedAt() time.Time {
	return s.startedAt
}

func (s *State) snapshot() map[string]component {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]component, len(s.components))
	for k, v := range s.components {
		out[k] = v
	}
	return out
}
