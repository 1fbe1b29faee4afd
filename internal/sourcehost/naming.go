package sourcehost

import (
	"fmt"
	"strings"

	"github.com/drossen/ticketsmith/pkg/types"
)

// BranchName derives a feature branch name from the ticket id and the
// artifact summary.
func BranchName(ticketID, summary string) string {
	short := truncate(summary, 30)
	return "ticketsmith/" + ticketID + "-" + sanitizeBranchName(short)
}

// PRTitle derives a pull request title.
func PRTitle(ticketID, summary string) string {
	return ticketID + ": " + summary
}

// PRDescription renders the pull request body for an artifact.
func PRDescription(artifact *types.Artifact) string {
	var sb strings.Builder

	sb.WriteString("## Implementation for " + artifact.TicketID + "\n\n")
	sb.WriteString(artifact.Summary + "\n\n")
	sb.WriteString("**Language:** " + artifact.Language + "\n")
	sb.WriteString("**Domain:** " + artifact.Domain + "\n\n")
	sb.WriteString("## Files\n\n")
	for i, file := range artifact.Files {
		sb.WriteString(fmt.Sprintf("%d. `%s`\n", i+1, file.Path))
	}

	return sb.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

func sanitizeBranchName(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		} else if r == ' ' {
			result.WriteRune('-')
		}
	}
	return result.String()
}
