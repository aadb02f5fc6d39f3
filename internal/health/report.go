package health

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Checker probes one dependency.
type Checker interface {
	Ping(ctx context.Context) error
}

// Probe binds a Checker to the component it reports on and the level a
// failed ping means for that component.
type Probe struct {
	Component string
	Checker   Checker
	OnFailure Level
}

// Issue is a degraded component in a Report.
type Issue struct {
	Component string `json:"component"`
	Status    Level  `json:"status"`
	Details   string `json:"details"`
}

// Report is the rendered health of the service.
type Report struct {
	Status        Status           `json:"status"`
	Dependencies  map[string]Level `json:"dependencies"`
	Issues        []Issue          `json:"issues"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Version       string           `json:"version"`
}

// Reporter pings registered probes and renders a Report from the State.
type Reporter struct {
	state  *State
	probes []Probe
	logger *slog.Logger
	now    func() time.Time
}

// NewReporter returns a Reporter over state.
func NewReporter(state *State, logger *slog.Logger, probes ...Probe) *Reporter {
	return &Reporter{
		state:  state,
		probes: probes,
		logger: logger,
		now:    time.Now,
	}
}

// Report pings every probe, records the outcome on the State and renders it.
// The status is critical when any component is fully degraded, degraded when
// any component is partially degraded, and healthy otherwise.
func (r *Reporter) Report(ctx context.Context) Report {
	for _, p := range r.probes {
		if err := p.Checker.Ping(ctx); err != nil {
			r.logger.Warn("health probe failed",
				slog.String("component", p.Component),
				slog.String("error", err.Error()),
			)
			r.state.Set(p.Component, p.OnFailure, err.Error())
			continue
		}
		r.state.MarkHealthy(p.Component)
	}

	return Render(r.state, r.now())
}

// Render builds a Report from state as of now without probing anything.
func Render(state *State, now time.Time) Report {
	components := state.snapshot()

	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)

	report := Report{
		Status:        StatusHealthy,
		Dependencies:  make(map[string]Level, len(components)),
		UptimeSeconds: int64(now.Sub(state.StartedAt()).Seconds()),
		Version:       state.Version(),
	}

	for _, name := range names {
		c := components[name]
		report.Dependencies[name] = c.level
		if c.level == LevelNone {
			continue
		}
		report.Issues = append(report.Issues, Issue{Component: name, Status: c.level, Details: c.detail})
		switch {
		case c.level == LevelFullyDegraded:
			report.Status = StatusCritical
		case report.Status == StatusHealthy:
			report.Status = StatusDegraded
		}
	}

	return report
}
