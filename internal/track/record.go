// Package track owns the per-ticket processing state: which tickets
// have been seen, how many attempts they have consumed, and whether
// they are eligible for another dispatch. Every mutation persists the
// whole record table before returning, so a restart resumes from the
// last completed transition.
package track

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// State is the lifecycle state of a tracked ticket.
type State string

const (
	// StateNew means the ticket has never been attempted (or its content
	// changed and it was requeued).
	StateNew State = "new"
	// StateProcessing means an attempt is in flight.
	StateProcessing State = "processing"
	// StateRetryPending means the last attempt failed transiently and the
	// ticket is waiting out its backoff.
	StateRetryPending State = "retry-pending"
	// StateExhausted means the attempt ceiling was reached.
	StateExhausted State = "exhausted"
	// StateDone means the ticket was processed successfully.
	StateDone State = "done"
	// StateFailed means a permanent failure; the ticket is not retried.
	StateFailed State = "failed"
)

// terminal reports whether s is left only by content change or manual
// override.
func (s State) terminal() bool {
	return s == StateExhausted || s == StateDone || s == StateFailed
}

// Record is the tracked state for one ticket id.
type Record struct {
	TicketID     string     `json:"ticket_id"`
	State        State      `json:"lifecycle_state"`
	AttemptCount int        `json:"attempt_count"`
	LastAttempt  *time.Time `json:"last_attempt_at"`
	LastError    string     `json:"last_error,omitempty"`
	ContentHash  string     `json:"content_hash"`
	Language     string     `json:"detected_language"`
	Domain       string     `json:"detected_domain"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// clone returns a copy safe to hand outside the tracker's lock.
func (r *Record) clone() *Record {
	c := *r
	if r.LastAttempt != nil {
		t := *r.LastAttempt
		c.LastAttempt = &t
	}
	return &c
}

// ContentHash digests the mutable text fields of a ticket for change
// detection.
func ContentHash(title, description string) string {
	sum := sha256.Sum256([]byte(title + "\n" + description))
	return hex.EncodeToString(sum[:])
}
