// Package retry computes when a failed ticket becomes eligible for its
// next attempt. The schedule is a pure function of the attempt count and
// the last attempt time; callers supply the current time explicitly.
package retry

import (
	"fmt"
	"time"
)

// DefaultBackoff is the delay table applied between successive attempts:
// 5 minutes, 15 minutes, 1 hour, 2 hours. Attempts beyond the table
// reuse the last entry.
var DefaultBackoff = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	2 * time.Hour,
}

// Schedule holds an ordered backoff table and an attempt ceiling.
type Schedule struct {
	backoff     []time.Duration
	maxAttempts int
}

// NewSchedule validates and builds a Schedule. maxAttempts must be at
// least 1 and the backoff table non-empty and non-decreasing.
func NewSchedule(backoff []time.Duration, maxAttempts int) (*Schedule, error) {
	if maxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be >= 1, got %d", maxAttempts)
	}
	if len(backoff) == 0 {
		return nil, fmt.Errorf("backoff table must not be empty")
	}
	for i := 1; i < len(backoff); i++ {
		if backoff[i] < backoff[i-1] {
			return nil, fmt.Errorf("backoff table must be non-decreasing at index %d", i)
		}
	}
	table := make([]time.Duration, len(backoff))
	copy(table, backoff)
	return &Schedule{backoff: table, maxAttempts: maxAttempts}, nil
}

// MaxAttempts returns the attempt ceiling.
func (s *Schedule) MaxAttempts() int { return s.maxAttempts }

// NextEligible returns the earliest time another attempt may run.
// ok is false when the ceiling is reached (the ticket is exhausted).
// A ticket that has never been attempted is eligible immediately.
func (s *Schedule) NextEligible(attempts int, lastAttempt time.Time) (next time.Time, ok bool) {
	if attempts >= s.maxAttempts {
		return time.Time{}, false
	}
	if attempts <= 0 || lastAttempt.IsZero() {
		return lastAttempt, true
	}
	// attempts counts attempts already made, so the first failure waits
	// out the first table entry.
	idx := attempts - 1
	if idx > len(s.backoff)-1 {
		idx = len(s.backoff) - 1
	}
	return lastAttempt.Add(s.backoff[idx]), true
}

// Due reports whether an attempt may run at now. Exhausted tickets are
// never due.
func (s *Schedule) Due(now time.Time, attempts int, lastAttempt time.Time) bool {
	next, ok := s.NextEligible(attempts, lastAttempt)
	if !ok {
		return false
	}
	return !now.Before(next)
}
