package types

import (
	"time"
)

// Ticket represents a Jira work item as seen by the pipeline.
// Identity is owned by the tracker service; everything else is a
// point-in-time snapshot from the last poll.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Labels      []string
	Comments    []string
	Status      string
	UpdatedAt   time.Time
}

// Text returns the free-text content used for classification and
// change detection.
func (t Ticket) Text() string {
	return t.Title + "\n" + t.Description
}

// Classification is the result of keyword scoring over ticket text.
// Confidence is informational only and never affects routing.
type Classification struct {
	Language   string
	Domain     string
	Confidence float64
}

// Outcome is the terminal result of one dispatched attempt.
type Outcome int

const (
	// OutcomeSuccess means the artifact was generated and published.
	OutcomeSuccess Outcome = iota
	// OutcomeTransient means an external service failed in a retryable way.
	OutcomeTransient
	// OutcomePermanent means the ticket itself is unprocessable.
	OutcomePermanent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient-failure"
	case OutcomePermanent:
		return "permanent-failure"
	default:
		return "unknown"
	}
}
