package resilience

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/drossen/ticketsmith/internal/clock"
)

// Well-known service names used across the pipeline.
const (
	ServiceTracker    = "tracker"
	ServiceGeneration = "generation"
	ServiceSourceHost = "source-host"
)

// DefaultSettings carries the per-service thresholds and cooldowns used
// when the configuration does not override them.
var DefaultSettings = map[string]Settings{
	ServiceGeneration: {FailureThreshold: 3, Cooldown: 120 * time.Second},
	ServiceSourceHost: {FailureThreshold: 5, Cooldown: 60 * time.Second},
	ServiceTracker:    {FailureThreshold: 3, Cooldown: 90 * time.Second},
}

// fallbackSettings guards services no configuration knows about.
var fallbackSettings = Settings{FailureThreshold: 5, Cooldown: 60 * time.Second}

// Manager owns one circuit breaker per external service name, created
// lazily on first report. Breakers live for the process lifetime; they
// are not persisted.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*breaker
	settings map[string]Settings
	clock    clock.Clock
	logger   *zap.Logger
}

// NewManager builds a Manager. settings overrides DefaultSettings per
// service name; unknown services get fallback values.
func NewManager(settings map[string]Settings, clk clock.Clock, logger *zap.Logger) *Manager {
	merged := make(map[string]Settings, len(DefaultSettings)+len(settings))
	for name, s := range DefaultSettings {
		merged[name] = s
	}
	for name, s := range settings {
		merged[name] = s
	}
	return &Manager{
		breakers: make(map[string]*breaker),
		settings: merged,
		clock:    clk,
		logger:   logger,
	}
}

// Allow reports whether a call to service may proceed. When the breaker
// is open it returns a *CircuitOpenError and the caller must take its
// fallback path. probe is true when the call is the single half-open
// trial; its outcome decides whether the breaker closes or reopens.
func (m *Manager) Allow(service string) (probe bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.get(service)
	before := b.state
	probe, retryAfter, ok := b.allow(m.clock.Now())
	if before != b.state {
		m.logger.Info("circuit state changed",
			zap.String("service", service),
			zap.String("from", before.String()),
			zap.String("to", b.state.String()),
		)
	}
	if !ok {
		return false, &CircuitOpenError{Service: service, RetryAfter: retryAfter}
	}
	return probe, nil
}

// ReportSuccess records a successful call to service.
func (m *Manager) ReportSuccess(service string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.get(service)
	before := b.state
	b.success()
	if before != b.state {
		m.logger.Info("circuit closed", zap.String("service", service))
	}
}

// ReportFailure records a failed call to service. Short-circuited calls
// must not be reported; the breaker is already open.
func (m *Manager) ReportFailure(service string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.get(service)
	before := b.state
	b.failure(m.clock.Now())
	if before != b.state {
		m.logger.Warn("circuit opened",
			zap.String("service", service),
			zap.Int("consecutive_failures", b.consecutiveFailures),
		)
	}
}

// State returns the current state for service, creating the breaker if
// needed.
func (m *Manager) State(service string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(service).state
}

// Snapshot returns a stable, sorted view of all known breakers.
func (m *Manager) Snapshot() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.breakers))
	for name := range m.breakers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Snapshot, 0, len(names))
	for _, name := range names {
		out = append(out, m.breakers[name].snapshot(name))
	}
	return out
}

func (m *Manager) get(service string) *breaker {
	b, ok := m.breakers[service]
	if !ok {
		settings, known := m.settings[service]
		if !known {
			settings = fallbackSettings
		}
		b = newBreaker(settings)
		m.breakers[service] = b
	}
	return b
}
