// Package health reports per-component status for liveness and readiness
// endpoints.
//
// Components that degrade gracefully (cache, rate limiter) distinguish being
// administratively disabled from being unreachable, so each check reports one
// of three states: connected, disconnected, or disabled. A disabled component
// is healthy; a disconnected one is not.
package health

import (
	"context"
	"time"
)

// State is the tri-state condition of one component.
type State string

const (
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateDisabled     State = "disabled"
)

// Status describes one component's condition at a point in time.
type Status struct {
	Component string    `json:"component"`
	State     State     `json:"state"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Healthy reports whether this status counts toward overall readiness.
// Disabled components are healthy: they were turned off on purpose.
func (s Status) Healthy() bool {
	return s.State != StateDisconnected
}

// Check probes one component.
type Check func(ctx context.Context) Status

// Report aggregates component statuses into an overall verdict.
type Report struct {
	Status     string   `json:"status"` // "ok" or "degraded"
	Components []Status `json:"components"`
}

// Monitor runs a fixed set of component checks.
type Monitor struct {
	checks []Check
}

// NewMonitor creates a monitor over the given checks.
func NewMonitor(checks ...Check) *Monitor {
	return &Monitor{checks: checks}
}

// Report runs every check and aggregates the results. The overall status is
// "ok" when every component is healthy, "degraded" otherwise. Degraded is
// still a serving state: the components that fail here are the ones the
// system tolerates losing.
func (m *Monitor) Report(ctx context.Context) Report {
	report := Report{
		Status:     "ok",
		Components: make([]Status, 0, len(m.checks)),
	}
	for _, check := range m.checks {
		status := check(ctx)
		if status.CheckedAt.IsZero() {
			status.CheckedAt = time.Now().UTC()
		}
		if !status.Healthy() {
			report.Status = "degraded"
		}
		report.Components = append(report.Components, status)
	}
	return report
}

// NewStatus is a convenience constructor stamping the check time.
func NewStatus(component string, state State, message string) Status {
	return Status{
		Component: component,
		State:     state,
		Message:   message,
		CheckedAt: time.Now().UTC(),
	}
}
