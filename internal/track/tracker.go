package track

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/drossen/ticketsmith/internal/classify"
	"github.com/drossen/ticketsmith/internal/clock"
	"github.com/drossen/ticketsmith/internal/retry"
	"github.com/drossen/ticketsmith/pkg/types"
)

// Store is the persistence port for the record table. The table is
// loaded and saved as a whole; implementations must make Save atomic
// enough that a reload never sees a partial table.
type Store interface {
	Load(ctx context.Context) (map[string]*Record, error)
	Save(ctx context.Context, records map[string]*Record) error
}

// Decision is the tracker's answer for one observed ticket.
type Decision struct {
	Dispatch bool
	Reason   string
}

var (
	skip       = func(reason string) Decision { return Decision{Dispatch: false, Reason: reason} }
	processNow = func(reason string) Decision { return Decision{Dispatch: true, Reason: reason} }
)

// Options tunes tracker behavior beyond the retry schedule.
type Options struct {
	// OverrideLabels requeue a terminal ticket when present on it.
	OverrideLabels []string
	// TriggerComments requeue a terminal ticket when a comment contains
	// one of them.
	TriggerComments []string
	// StaleAfter demotes Processing records older than this at load time,
	// so a crash mid-attempt cannot wedge a ticket. Zero disables it.
	StaleAfter time.Duration
}

// DefaultOptions mirror the reprocess markers recognized on tickets.
var DefaultOptions = Options{
	OverrideLabels:  []string{"reprocess", "update"},
	TriggerComments: []string{"reprocess", "retry"},
	StaleAfter:      time.Hour,
}

// Tracker maps ticket ids to processing state and decides what the
// orchestrator may dispatch. It is safe for concurrent readers; all
// mutations serialize on an internal lock.
type Tracker struct {
	mu       sync.Mutex
	records  map[string]*Record
	store    Store
	schedule *retry.Schedule
	clock    clock.Clock
	opts     Options
	logger   *zap.Logger
}

// NewTracker loads the record table from store and demotes stale
// Processing records left behind by a crashed run.
func NewTracker(ctx context.Context, store Store, schedule *retry.Schedule, clk clock.Clock, opts Options, logger *zap.Logger) (*Tracker, error) {
	records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracking records: %w", err)
	}
	if records == nil {
		records = make(map[string]*Record)
	}

	t := &Tracker{
		records:  records,
		store:    store,
		schedule: schedule,
		clock:    clk,
		opts:     opts,
		logger:   logger,
	}

	if opts.StaleAfter > 0 {
		now := clk.Now()
		demoted := 0
		for _, rec := range records {
			if rec.State != StateProcessing {
				continue
			}
			if rec.LastAttempt == nil || now.Sub(*rec.LastAttempt) >= opts.StaleAfter {
				rec.State = StateRetryPending
				rec.LastError = "attempt abandoned by restart"
				rec.UpdatedAt = now
				demoted++
			}
		}
		if demoted > 0 {
			logger.Warn("demoted stale in-flight records", zap.Int("count", demoted))
			if err := store.Save(ctx, records); err != nil {
				return nil, fmt.Errorf("failed to persist demoted records: %w", err)
			}
		}
	}

	return t, nil
}

// Observe evaluates one ticket against its record, creating or
// requeueing the record as needed, and returns whether the orchestrator
// should dispatch it now.
func (t *Tracker) Observe(ctx context.Context, ticket types.Ticket) (Decision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	hash := ContentHash(ticket.Title, ticket.Description)

	rec, exists := t.records[ticket.ID]
	if !exists {
		c := classify.Detect(ticket.Text())
		rec = &Record{
			TicketID:    ticket.ID,
			State:       StateNew,
			ContentHash: hash,
			Language:    c.Language,
			Domain:      c.Domain,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		t.records[ticket.ID] = rec
		if err := t.persist(ctx); err != nil {
			return Decision{}, err
		}
		return processNow("new ticket"), nil
	}

	mutated := false

	// Content change requeues anything except in-flight work.
	if hash != rec.ContentHash && rec.State != StateProcessing {
		c := classify.Detect(ticket.Text())
		rec.State = StateNew
		rec.AttemptCount = 0
		rec.ContentHash = hash
		rec.Language = c.Language
		rec.Domain = c.Domain
		rec.LastError = ""
		rec.UpdatedAt = now
		mutated = true
		t.logger.Info("ticket content changed, requeued",
			zap.String("ticket_id", ticket.ID),
		)
	}

	// Manual override pulls a terminal ticket back to New.
	if rec.State.terminal() && t.hasOverride(ticket) {
		rec.State = StateNew
		rec.AttemptCount = 0
		rec.LastError = ""
		rec.UpdatedAt = now
		mutated = true
		t.logger.Info("manual override, requeued",
			zap.String("ticket_id", ticket.ID),
		)
	}

	if mutated {
		if err := t.persist(ctx); err != nil {
			return Decision{}, err
		}
	}

	switch rec.State {
	case StateNew:
		return processNow("ready"), nil
	case StateProcessing:
		return skip("attempt in flight"), nil
	case StateRetryPending:
		var last time.Time
		if rec.LastAttempt != nil {
			last = *rec.LastAttempt
		}
		if t.schedule.Due(now, rec.AttemptCount, last) {
			return processNow("retry due"), nil
		}
		return skip("retry not due"), nil
	case StateExhausted:
		return skip("attempts exhausted"), nil
	case StateDone:
		return skip("already done"), nil
	case StateFailed:
		return skip("permanently failed"), nil
	default:
		return skip("unknown state " + string(rec.State)), nil
	}
}

// Begin transitions a ticket to Processing and charges one attempt.
// It must be called exactly once per dispatched attempt and refuses to
// start a second in-flight attempt for the same id.
func (t *Tracker) Begin(ctx context.Context, ticketID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[ticketID]
	if !ok {
		return fmt.Errorf("no tracking record for ticket %s", ticketID)
	}
	if rec.State == StateProcessing {
		return fmt.Errorf("ticket %s already has an attempt in flight", ticketID)
	}

	now := t.clock.Now()
	rec.State = StateProcessing
	rec.AttemptCount++
	rec.LastAttempt = &now
	rec.UpdatedAt = now
	return t.persist(ctx)
}

// Complete records the outcome of an attempt started with Begin.
func (t *Tracker) Complete(ctx context.Context, ticketID string, outcome types.Outcome, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[ticketID]
	if !ok {
		return fmt.Errorf("no tracking record for ticket %s", ticketID)
	}
	if rec.State != StateProcessing {
		return fmt.Errorf("ticket %s is not processing (state %s)", ticketID, rec.State)
	}

	now := t.clock.Now()
	switch outcome {
	case types.OutcomeSuccess:
		rec.State = StateDone
		rec.LastError = ""
	case types.OutcomeTransient:
		if rec.AttemptCount >= t.schedule.MaxAttempts() {
			rec.State = StateExhausted
		} else {
			rec.State = StateRetryPending
		}
		rec.LastError = truncate(errMsg, 500)
	case types.OutcomePermanent:
		rec.State = StateFailed
		rec.LastError = truncate(errMsg, 500)
	default:
		return fmt.Errorf("unknown outcome %d for ticket %s", outcome, ticketID)
	}
	rec.UpdatedAt = now
	return t.persist(ctx)
}

// Get returns a copy of the record for ticketID.
func (t *Tracker) Get(ticketID string) (*Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[ticketID]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// DueForRetry returns the ids of RetryPending tickets whose backoff has
// elapsed, in ascending order.
func (t *Tracker) DueForRetry() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var ids []string
	for id, rec := range t.records {
		if rec.State != StateRetryPending {
			continue
		}
		var last time.Time
		if rec.LastAttempt != nil {
			last = *rec.LastAttempt
		}
		if t.schedule.Due(now, rec.AttemptCount, last) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Requeue resets a terminal ticket to New without waiting for a content
// change or an on-ticket override marker. Management operation.
func (t *Tracker) Requeue(ctx context.Context, ticketID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[ticketID]
	if !ok {
		return fmt.Errorf("no tracking record for ticket %s", ticketID)
	}
	if rec.State == StateProcessing {
		return fmt.Errorf("ticket %s has an attempt in flight", ticketID)
	}

	rec.State = StateNew
	rec.AttemptCount = 0
	rec.LastError = ""
	rec.UpdatedAt = t.clock.Now()
	return t.persist(ctx)
}

// Forget deletes the record for ticketID. Management operation; records
// are never deleted automatically.
func (t *Tracker) Forget(ctx context.Context, ticketID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.records[ticketID]; !ok {
		return fmt.Errorf("no tracking record for ticket %s", ticketID)
	}
	delete(t.records, ticketID)
	return t.persist(ctx)
}

func (t *Tracker) hasOverride(ticket types.Ticket) bool {
	for _, label := range ticket.Labels {
		for _, want := range t.opts.OverrideLabels {
			if strings.EqualFold(label, want) {
				return true
			}
		}
	}
	for _, comment := range ticket.Comments {
		lower := strings.ToLower(comment)
		for _, want := range t.opts.TriggerComments {
			if strings.Contains(lower, want) {
				return true
			}
		}
	}
	return false
}

// persist saves the whole table. Called under the lock.
func (t *Tracker) persist(ctx context.Context) error {
	if err := t.store.Save(ctx, t.records); err != nil {
		return fmt.Errorf("failed to persist tracking records: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
