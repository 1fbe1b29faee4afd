// Package resilience isolates failing external services behind
// per-service circuit breakers so a degraded dependency cannot starve
// the rest of the pipeline or absorb a thundering herd of retries.
package resilience

import (
	"fmt"
	"time"
)

// State is the breaker state for one service.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen short-circuits every call until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets exactly one probe through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitOpenError is returned when a call is short-circuited. The
// caller decides the fallback; the breaker only refuses the call.
type CircuitOpenError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker for %s is open (retry after %s)", e.Service, e.RetryAfter)
}

// Settings configures one service's breaker.
type Settings struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// Snapshot is a read-only view of one breaker for stats reporting.
type Snapshot struct {
	Service             string     `json:"service"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
	ProbeInFlight       bool       `json:"probe_in_flight"`
}

// breaker is the state machine for one service. All methods are called
// under the manager's lock.
type breaker struct {
	settings Settings

	state               State
	consecutiveFailures int
	openedAt            time.Time
	probeInFlight       bool
}

func newBreaker(settings Settings) *breaker {
	return &breaker{settings: settings, state: StateClosed}
}

// allow decides whether a call may proceed at now. probe is true when
// the admitted call is the single half-open trial.
func (b *breaker) allow(now time.Time) (probe bool, retryAfter time.Duration, ok bool) {
	switch b.state {
	case StateClosed:
		return false, 0, true
	case StateOpen:
		elapsed := now.Sub(b.openedAt)
		if elapsed < b.settings.Cooldown {
			return false, b.settings.Cooldown - elapsed, false
		}
		b.state = StateHalfOpen
		b.probeInFlight = false
		fallthrough
	case StateHalfOpen:
		if b.probeInFlight {
			return false, b.settings.Cooldown, false
		}
		b.probeInFlight = true
		return true, 0, true
	default:
		return false, 0, true
	}
}

// success records a successful call. A half-open probe success closes
// the breaker and resets the failure count.
func (b *breaker) success() {
	b.consecutiveFailures = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.probeInFlight = false
	}
}

// failure records a failed call at now. In half-open the breaker
// reopens and the cooldown restarts; in closed it opens once the
// threshold is reached.
func (b *breaker) failure(now time.Time) {
	b.consecutiveFailures++
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = now
		b.probeInFlight = false
	case StateClosed:
		if b.consecutiveFailures >= b.settings.FailureThreshold {
			b.state = StateOpen
			b.openedAt = now
		}
	}
}

func (b *breaker) snapshot(service string) Snapshot {
	s := Snapshot{
		Service:             service,
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		ProbeInFlight:       b.probeInFlight,
	}
	if b.state != StateClosed && !b.openedAt.IsZero() {
		opened := b.openedAt
		s.OpenedAt = &opened
	}
	return s
}
