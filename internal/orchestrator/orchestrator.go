// Package orchestrator runs the poll cycle: fetch candidates, consult
// the tracker, dispatch eligible tickets through the resilience layer,
// and summarize. One cycle runs to completion before the next begins;
// there is no intra-cycle parallelism.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/drossen/ticketsmith/internal/generate"
	"github.com/drossen/ticketsmith/internal/jira"
	"github.com/drossen/ticketsmith/internal/notify"
	"github.com/drossen/ticketsmith/internal/observability"
	"github.com/drossen/ticketsmith/internal/resilience"
	"github.com/drossen/ticketsmith/internal/track"
	"github.com/drossen/ticketsmith/pkg/types"
)

// TicketService is the tracker-side transport: candidate search,
// point lookups, and outcome write-back.
type TicketService interface {
	Search(ctx context.Context, q jira.Query) ([]types.Ticket, error)
	Get(ctx context.Context, ticketID string) (types.Ticket, error)
	AddComment(ctx context.Context, ticketID, comment string) error
	TransitionStatus(ctx context.Context, ticketID, status string) error
}

// SourceHost publishes artifacts and returns a PR URL.
type SourceHost interface {
	Publish(ctx context.Context, artifact *types.Artifact, target types.Repository) (string, error)
}

// Config tunes the poll cycle. DoneStatus, when set, is the workflow
// status successfully processed tickets are transitioned to.
type Config struct {
	Query             jira.Query
	Target            types.Repository
	DoneStatus        string
	PollInterval      time.Duration
	TrackerTimeout    time.Duration
	GenerationTimeout time.Duration
	PublishTimeout    time.Duration
}

// Summary reports what one cycle did.
type Summary struct {
	Cycle      int                   `json:"cycle"`
	Candidates int                   `json:"candidates"`
	Dispatched int                   `json:"dispatched"`
	Succeeded  int                   `json:"succeeded"`
	Transient  int                   `json:"transient_failed"`
	Permanent  int                   `json:"permanent_failed"`
	Skipped    int                   `json:"skipped"`
	Circuits   []resilience.Snapshot `json:"circuits"`
}

// Orchestrator composes the tracker, the resilience layer, and the
// external adapters into the processing loop.
type Orchestrator struct {
	tracker   *track.Tracker
	breakers  *resilience.Manager
	tickets   TicketService
	generator generate.Generator
	host      SourceHost
	notifier  notify.Notifier
	cfg       Config
	logger    *zap.Logger

	cycle int
}

// New wires an Orchestrator.
func New(
	tracker *track.Tracker,
	breakers *resilience.Manager,
	tickets TicketService,
	generator generate.Generator,
	host SourceHost,
	notifier notify.Notifier,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		tracker:   tracker,
		breakers:  breakers,
		tickets:   tickets,
		generator: generator,
		host:      host,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes poll cycles until ctx is canceled. Cancellation is
// honored between candidates: the in-flight ticket finishes and its
// outcome is recorded before the loop exits.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator started",
		zap.Duration("poll_interval", o.cfg.PollInterval),
	)

	for {
		summary := o.RunCycle(ctx)
		o.logger.Info("cycle complete",
			zap.Int("cycle", summary.Cycle),
			zap.Int("candidates", summary.Candidates),
			zap.Int("dispatched", summary.Dispatched),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("transient_failed", summary.Transient),
			zap.Int("permanent_failed", summary.Permanent),
			zap.Int("skipped", summary.Skipped),
		)

		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopping")
			return ctx.Err()
		case <-time.After(o.cfg.PollInterval):
		}
	}
}

// RunCycle executes one full cycle and returns its summary. A single
// ticket's failure never aborts the cycle.
func (o *Orchestrator) RunCycle(ctx context.Context) Summary {
	started := time.Now()
	o.cycle++
	summary := Summary{Cycle: o.cycle}

	candidates := o.fetchCandidates(ctx)
	summary.Candidates = len(candidates)

	for _, ticket := range candidates {
		if ctx.Err() != nil {
			o.logger.Info("stop requested, ending cycle early",
				zap.Int("cycle", o.cycle),
			)
			break
		}

		decision, err := o.tracker.Observe(ctx, ticket)
		if err != nil {
			o.logger.Error("failed to observe ticket",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err),
			)
			continue
		}
		if !decision.Dispatch {
			observability.TicketsObserved.WithLabelValues("skip").Inc()
			summary.Skipped++
			continue
		}
		observability.TicketsObserved.WithLabelValues("dispatch").Inc()

		outcome := o.processTicket(ctx, ticket)
		summary.Dispatched++
		switch outcome {
		case types.OutcomeSuccess:
			summary.Succeeded++
		case types.OutcomeTransient:
			summary.Transient++
		case types.OutcomePermanent:
			summary.Permanent++
		}
		observability.TicketsCompleted.WithLabelValues(outcome.String()).Inc()
	}

	summary.Circuits = o.breakers.Snapshot()
	for _, snap := range summary.Circuits {
		observability.CircuitState.WithLabelValues(snap.Service).Set(observability.CircuitStateValue(snap.State))
	}
	observability.CycleDuration.Observe(time.Since(started).Seconds())

	if summary.Dispatched > 0 {
		o.notifier.Notify(ctx, notify.Summary(
			summary.Cycle, summary.Dispatched, summary.Succeeded,
			summary.Transient, summary.Permanent, summary.Skipped,
		))
	}
	return summary
}

// fetchCandidates combines the polled query with locally known
// retry-due tickets, deduplicated and sorted ascending by id so cycles
// are deterministic.
func (o *Orchestrator) fetchCandidates(ctx context.Context) []types.Ticket {
	byID := make(map[string]types.Ticket)

	var found []types.Ticket
	err := o.call(ctx, resilience.ServiceTracker, o.cfg.TrackerTimeout, func(ctx context.Context) error {
		var err error
		found, err = o.tickets.Search(ctx, o.cfg.Query)
		return err
	})
	if err != nil {
		o.logger.Warn("candidate search failed", zap.Error(err))
	}
	for _, t := range found {
		byID[t.ID] = t
	}

	// Retry-due tickets may have left the polled statuses; refresh them
	// individually.
	for _, id := range o.tracker.DueForRetry() {
		if _, ok := byID[id]; ok {
			continue
		}
		var ticket types.Ticket
		err := o.call(ctx, resilience.ServiceTracker, o.cfg.TrackerTimeout, func(ctx context.Context) error {
			var err error
			ticket, err = o.tickets.Get(ctx, id)
			return err
		})
		if err != nil {
			o.logger.Warn("failed to refresh retry candidate",
				zap.String("ticket_id", id),
				zap.Error(err),
			)
			continue
		}
		byID[ticket.ID] = ticket
	}

	candidates := make([]types.Ticket, 0, len(byID))
	for _, t := range byID {
		candidates = append(candidates, t)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates
}

// processTicket runs one attempt end to end and records its outcome.
// The dispatch uses a context detached from the loop's cancellation so
// a graceful stop never abandons in-flight work.
func (o *Orchestrator) processTicket(ctx context.Context, ticket types.Ticket) types.Outcome {
	if err := o.tracker.Begin(ctx, ticket.ID); err != nil {
		o.logger.Error("failed to begin attempt",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
		return types.OutcomeTransient
	}

	workCtx := context.WithoutCancel(ctx)
	outcome, errMsg := o.dispatch(workCtx, ticket)

	if err := o.tracker.Complete(workCtx, ticket.ID, outcome, errMsg); err != nil {
		o.logger.Error("failed to record outcome",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
	}

	o.writeBack(workCtx, ticket.ID, outcome, errMsg)
	return outcome
}

// dispatch calls generation and publication behind their breakers and
// maps whatever goes wrong into the outcome taxonomy.
func (o *Orchestrator) dispatch(ctx context.Context, ticket types.Ticket) (types.Outcome, string) {
	req := generate.Request{
		TicketID:    ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
	}
	if rec, ok := o.tracker.Get(ticket.ID); ok {
		req.Language = rec.Language
		req.Domain = rec.Domain
	}

	var artifact *types.Artifact
	err := o.call(ctx, resilience.ServiceGeneration, o.cfg.GenerationTimeout, func(ctx context.Context) error {
		var err error
		artifact, err = o.generator.Generate(ctx, req)
		return err
	})
	if err != nil {
		return classifyError(err)
	}

	var prURL string
	err = o.call(ctx, resilience.ServiceSourceHost, o.cfg.PublishTimeout, func(ctx context.Context) error {
		var err error
		prURL, err = o.host.Publish(ctx, artifact, o.cfg.Target)
		return err
	})
	if err != nil {
		return classifyError(err)
	}

	o.logger.Info("ticket processed",
		zap.String("ticket_id", ticket.ID),
		zap.String("pr_url", prURL),
	)
	return types.OutcomeSuccess, prURL
}

// call runs fn behind the named breaker with a timeout. Transient
// failures are charged to the breaker; permanent (validation) failures
// say nothing about service health and count as breaker successes, so
// an admitted half-open probe is always resolved.
func (o *Orchestrator) call(ctx context.Context, service string, timeout time.Duration, fn func(ctx context.Context) error) error {
	if _, err := o.breakers.Allow(service); err != nil {
		return err
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := fn(callCtx); err != nil {
		var perm *generate.PermanentError
		if errors.As(err, &perm) {
			o.breakers.ReportSuccess(service)
		} else {
			o.breakers.ReportFailure(service)
			observability.ExternalCallFailures.WithLabelValues(service).Inc()
		}
		return err
	}

	o.breakers.ReportSuccess(service)
	return nil
}

// classifyError maps a dispatch error to the outcome taxonomy. A
// short-circuited call behaves like a transient failure for the ticket;
// the breaker itself was not charged.
func classifyError(err error) (types.Outcome, string) {
	var perm *generate.PermanentError
	if errors.As(err, &perm) {
		return types.OutcomePermanent, perm.Reason
	}
	var open *resilience.CircuitOpenError
	if errors.As(err, &open) {
		return types.OutcomeTransient, open.Error()
	}
	return types.OutcomeTransient, err.Error()
}

// writeBack reports the outcome on the ticket. Best effort: a failed
// comment never changes the recorded outcome.
func (o *Orchestrator) writeBack(ctx context.Context, ticketID string, outcome types.Outcome, detail string) {
	var comment string
	switch outcome {
	case types.OutcomeSuccess:
		comment = fmt.Sprintf("Automated processing complete. Pull request: %s", detail)
	case types.OutcomeTransient:
		comment = fmt.Sprintf("Automated processing failed, will retry: %s", detail)
	case types.OutcomePermanent:
		comment = fmt.Sprintf("Automated processing failed permanently: %s", detail)
	}

	err := o.call(ctx, resilience.ServiceTracker, o.cfg.TrackerTimeout, func(ctx context.Context) error {
		return o.tickets.AddComment(ctx, ticketID, comment)
	})
	if err != nil {
		o.logger.Warn("failed to write outcome back to tracker",
			zap.String("ticket_id", ticketID),
			zap.Error(err),
		)
	}

	if outcome != types.OutcomeSuccess || o.cfg.DoneStatus == "" {
		return
	}
	err = o.call(ctx, resilience.ServiceTracker, o.cfg.TrackerTimeout, func(ctx context.Context) error {
		return o.tickets.TransitionStatus(ctx, ticketID, o.cfg.DoneStatus)
	})
	if err != nil {
		o.logger.Warn("failed to transition ticket status",
			zap.String("ticket_id", ticketID),
			zap.String("status", o.cfg.DoneStatus),
			zap.Error(err),
		)
	}
}
