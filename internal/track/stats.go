package track

import "time"

// Stats is a read-only aggregate snapshot of the record table.
type Stats struct {
	Total           int            `json:"total"`
	ByState         map[State]int  `json:"by_state"`
	ByLanguage      map[string]int `json:"by_language"`
	ByDomain        map[string]int `json:"by_domain"`
	RetryCandidates int            `json:"retry_candidates"`
}

// Stats aggregates the current table. RetryCandidates counts
// RetryPending tickets whose backoff has already elapsed.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	stats := Stats{
		ByState:    make(map[State]int),
		ByLanguage: make(map[string]int),
		ByDomain:   make(map[string]int),
	}

	for _, rec := range t.records {
		stats.Total++
		stats.ByState[rec.State]++
		if rec.Language != "" {
			stats.ByLanguage[rec.Language]++
		}
		if rec.Domain != "" {
			stats.ByDomain[rec.Domain]++
		}
		if rec.State == StateRetryPending {
			var last time.Time
			if rec.LastAttempt != nil {
				last = *rec.LastAttempt
			}
			if t.schedule.Due(now, rec.AttemptCount, last) {
				stats.RetryCandidates++
			}
		}
	}
	return stats
}
