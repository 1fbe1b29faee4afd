package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drossen/ticketsmith/internal/clock"
	"github.com/drossen/ticketsmith/internal/resilience"
	"github.com/drossen/ticketsmith/internal/retry"
	"github.com/drossen/ticketsmith/internal/track"
	"github.com/drossen/ticketsmith/pkg/types"
)

type memStore struct {
	records map[string]*track.Record
}

func (s *memStore) Load(ctx context.Context) (map[string]*track.Record, error) {
	if s.records == nil {
		return map[string]*track.Record{}, nil
	}
	return s.records, nil
}

func (s *memStore) Save(ctx context.Context, records map[string]*track.Record) error {
	s.records = records
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *track.Tracker, *resilience.Manager) {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	schedule, err := retry.NewSchedule(retry.DefaultBackoff, 3)
	require.NoError(t, err)
	tracker, err := track.NewTracker(context.Background(), &memStore{}, schedule, clk, track.DefaultOptions, zap.NewNop())
	require.NoError(t, err)
	breakers := resilience.NewManager(nil, clk, zap.NewNop())
	return NewHandler(tracker, breakers, zap.NewNop()), tracker, breakers
}

func seedTicket(t *testing.T, tracker *track.Tracker, id string) {
	t.Helper()
	_, err := tracker.Observe(context.Background(), types.Ticket{
		ID:          id,
		Title:       "Build a Flask API",
		Description: "Python backend work",
		Status:      "To Do",
	})
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetStats(t *testing.T) {
	h, tracker, _ := newTestHandler(t)
	seedTicket(t, tracker, "PIPE-1")
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats track.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByState[track.StateNew])
}

func TestGetCircuits(t *testing.T) {
	h, _, breakers := newTestHandler(t)
	breakers.ReportFailure(resilience.ServiceGeneration)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/circuits")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snaps []resilience.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, resilience.ServiceGeneration, snaps[0].Service)
	assert.Equal(t, 1, snaps[0].ConsecutiveFailures)
}

func TestGetTicket(t *testing.T) {
	h, tracker, _ := newTestHandler(t)
	seedTicket(t, tracker, "PIPE-2")
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/tickets/PIPE-2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec track.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "PIPE-2", rec.TicketID)
	assert.Equal(t, "python", rec.Language)
}

func TestGetTicketNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/tickets/PIPE-404")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequeueTicket(t *testing.T) {
	h, tracker, _ := newTestHandler(t)
	seedTicket(t, tracker, "PIPE-3")
	require.NoError(t, tracker.Begin(context.Background(), "PIPE-3"))
	require.NoError(t, tracker.Complete(context.Background(), "PIPE-3", types.OutcomePermanent, "bad ticket"))

	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/tickets/PIPE-3/requeue", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	rec, ok := tracker.Get("PIPE-3")
	require.True(t, ok)
	assert.Equal(t, track.StateNew, rec.State)
}

func TestForgetTicket(t *testing.T) {
	h, tracker, _ := newTestHandler(t)
	seedTicket(t, tracker, "PIPE-4")
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/tickets/PIPE-4", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, ok := tracker.Get("PIPE-4")
	assert.False(t, ok)
}
