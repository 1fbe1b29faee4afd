package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drossen/ticketsmith/internal/clock"
)

func newTestManager(t *testing.T, settings Settings) (*Manager, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewManager(map[string]Settings{"svc": settings}, clk, zap.NewNop())
	return m, clk
}

func TestOpensAfterThreshold(t *testing.T) {
	m, _ := newTestManager(t, Settings{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := m.Allow("svc")
		require.NoError(t, err)
		m.ReportFailure("svc")
		assert.Equal(t, StateClosed, m.State("svc"), "failure %d", i+1)
	}

	_, err := m.Allow("svc")
	require.NoError(t, err)
	m.ReportFailure("svc")
	assert.Equal(t, StateOpen, m.State("svc"))

	// Fourth call is short-circuited without reaching the service.
	_, err = m.Allow("svc")
	var open *CircuitOpenError
	require.ErrorAs(t, err, &open)
	assert.Equal(t, "svc", open.Service)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	m, _ := newTestManager(t, Settings{FailureThreshold: 2, Cooldown: time.Minute})

	m.ReportFailure("svc")
	m.ReportSuccess("svc")
	m.ReportFailure("svc")
	assert.Equal(t, StateClosed, m.State("svc"))
}

func TestHalfOpenAfterCooldown(t *testing.T) {
	m, clk := newTestManager(t, Settings{FailureThreshold: 1, Cooldown: 120 * time.Second})

	m.ReportFailure("svc")
	require.Equal(t, StateOpen, m.State("svc"))

	clk.Advance(119 * time.Second)
	_, err := m.Allow("svc")
	require.Error(t, err)

	clk.Advance(time.Second)
	probe, err := m.Allow("svc")
	require.NoError(t, err)
	assert.True(t, probe)
}

func TestSingleHalfOpenProbe(t *testing.T) {
	m, clk := newTestManager(t, Settings{FailureThreshold: 1, Cooldown: time.Minute})

	m.ReportFailure("svc")
	clk.Advance(time.Minute)

	probe, err := m.Allow("svc")
	require.NoError(t, err)
	require.True(t, probe)

	// While the probe is in flight, everything else is short-circuited.
	_, err = m.Allow("svc")
	var open *CircuitOpenError
	assert.ErrorAs(t, err, &open)
}

func TestProbeSuccessCloses(t *testing.T) {
	m, clk := newTestManager(t, Settings{FailureThreshold: 1, Cooldown: time.Minute})

	m.ReportFailure("svc")
	clk.Advance(time.Minute)

	probe, err := m.Allow("svc")
	require.NoError(t, err)
	require.True(t, probe)
	m.ReportSuccess("svc")

	assert.Equal(t, StateClosed, m.State("svc"))
	_, err = m.Allow("svc")
	assert.NoError(t, err)
}

func TestProbeFailureReopensAndRestartsCooldown(t *testing.T) {
	m, clk := newTestManager(t, Settings{FailureThreshold: 1, Cooldown: time.Minute})

	m.ReportFailure("svc")
	clk.Advance(time.Minute)

	probe, err := m.Allow("svc")
	require.NoError(t, err)
	require.True(t, probe)

	clk.Advance(30 * time.Second)
	m.ReportFailure("svc")
	require.Equal(t, StateOpen, m.State("svc"))

	// Cooldown restarted at the probe failure, not at the original open.
	clk.Advance(45 * time.Second)
	_, err = m.Allow("svc")
	require.Error(t, err)

	clk.Advance(15 * time.Second)
	probe, err = m.Allow("svc")
	require.NoError(t, err)
	assert.True(t, probe)
}

func TestPerServiceIsolation(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewManager(nil, clk, zap.NewNop())

	m.ReportFailure(ServiceGeneration)
	m.ReportFailure(ServiceGeneration)
	m.ReportFailure(ServiceGeneration)
	assert.Equal(t, StateOpen, m.State(ServiceGeneration))

	_, err := m.Allow(ServiceSourceHost)
	assert.NoError(t, err, "source-host breaker is independent")
	_, err = m.Allow(ServiceTracker)
	assert.NoError(t, err)
}

func TestSnapshot(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewManager(nil, clk, zap.NewNop())

	m.ReportFailure(ServiceTracker)
	m.ReportSuccess(ServiceGeneration)

	snaps := m.Snapshot()
	require.Len(t, snaps, 2)
	assert.Equal(t, ServiceGeneration, snaps[0].Service)
	assert.Equal(t, ServiceTracker, snaps[1].Service)
	assert.Equal(t, 1, snaps[1].ConsecutiveFailures)
}

func TestCircuitOpenErrorMessage(t *testing.T) {
	err := &CircuitOpenError{Service: "generation", RetryAfter: 30 * time.Second}
	assert.Contains(t, err.Error(), "generation")
	assert.True(t, errors.As(error(err), new(*CircuitOpenError)))
}
