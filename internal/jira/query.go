package jira

import (
	"fmt"
	"strings"
)

// Query is the candidate predicate owned by the orchestrator: tickets
// in one of the base workflow statuses, plus recently updated tickets
// carrying a reprocess label or trigger comment. Retry-due and
// hash-mismatch candidates are tracked locally and re-fetched by id.
type Query struct {
	Project         string
	Statuses        []string
	ReprocessLabels []string
	TriggerComments []string
	LookbackDays    int
}

// BuildJQL renders the predicate as a JQL string with a deterministic
// ordering so cycles are reproducible.
func BuildJQL(q Query) string {
	conditions := []string{fmt.Sprintf("project = %s", q.Project)}

	var branches []string
	if len(q.Statuses) > 0 {
		quoted := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		branches = append(branches, fmt.Sprintf("status IN (%s)", strings.Join(quoted, ",")))
	}

	lookback := q.LookbackDays
	if lookback <= 0 {
		lookback = 7
	}
	if len(q.ReprocessLabels) > 0 {
		var labels []string
		for _, l := range q.ReprocessLabels {
			labels = append(labels, fmt.Sprintf("labels = %q", l))
		}
		branches = append(branches, fmt.Sprintf("updated >= -%dd AND (%s)", lookback, strings.Join(labels, " OR ")))
	}
	if len(q.TriggerComments) > 0 {
		var comments []string
		for _, c := range q.TriggerComments {
			comments = append(comments, fmt.Sprintf("comment ~ %q", c))
		}
		branches = append(branches, fmt.Sprintf("updated >= -%dd AND (%s)", lookback, strings.Join(comments, " OR ")))
	}

	if len(branches) > 0 {
		conditions = append(conditions, "("+strings.Join(branches, " OR ")+")")
	}

	return strings.Join(conditions, " AND ") + " ORDER BY key ASC"
}
