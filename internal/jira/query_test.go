package jira

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildJQL(t *testing.T) {
	q := Query{
		Project:         "PIPE",
		Statuses:        []string{"To Do", "Selected for Development"},
		ReprocessLabels: []string{"reprocess", "update"},
		TriggerComments: []string{"reprocess", "retry"},
		LookbackDays:    7,
	}

	jql := BuildJQL(q)
	assert.Equal(t,
		`project = PIPE AND (status IN ("To Do","Selected for Development") `+
			`OR updated >= -7d AND (labels = "reprocess" OR labels = "update") `+
			`OR updated >= -7d AND (comment ~ "reprocess" OR comment ~ "retry")) `+
			`ORDER BY key ASC`,
		jql,
	)
}

func TestBuildJQLStatusesOnly(t *testing.T) {
	jql := BuildJQL(Query{Project: "PIPE", Statuses: []string{"To Do"}})
	assert.Equal(t, `project = PIPE AND (status IN ("To Do")) ORDER BY key ASC`, jql)
}

func TestBuildJQLDefaultLookback(t *testing.T) {
	jql := BuildJQL(Query{Project: "PIPE", ReprocessLabels: []string{"reprocess"}})
	assert.Contains(t, jql, "updated >= -7d")
}

func TestBuildJQLDeterministic(t *testing.T) {
	q := Query{Project: "PIPE", Statuses: []string{"To Do"}, ReprocessLabels: []string{"update"}}
	first := BuildJQL(q)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildJQL(q))
	}
}
