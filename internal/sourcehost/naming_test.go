package sourcehost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drossen/ticketsmith/pkg/types"
)

func TestBranchName(t *testing.T) {
	got := BranchName("PIPE-7", "Add a health endpoint")
	assert.Equal(t, "ticketsmith/PIPE-7-Add-a-health-endpoint", got)
}

func TestBranchNameSanitizesAndTruncates(t *testing.T) {
	got := BranchName("PIPE-8", "Fix crash when payload > 1MB (urgent!) and other very long words")
	assert.NotContains(t, got, ">")
	assert.NotContains(t, got, "(")
	assert.NotContains(t, got, "!")
	assert.LessOrEqual(t, len(got), len("ticketsmith/PIPE-8-")+30)
}

func TestPRDescriptionListsFiles(t *testing.T) {
	artifact := &types.Artifact{
		TicketID: "PIPE-9",
		Summary:  "Add retry handling",
		Language: "go",
		Domain:   "web-backend",
		Files: []types.ArtifactFile{
			{Path: "internal/retry/retry.go"},
			{Path: "internal/retry/retry_test.go"},
		},
	}

	body := PRDescription(artifact)
	assert.Contains(t, body, "PIPE-9")
	assert.Contains(t, body, "`internal/retry/retry.go`")
	assert.Contains(t, body, "`internal/retry/retry_test.go`")
}
