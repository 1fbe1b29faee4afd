package generate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseResponse(t *testing.T) {
	response := `SUMMARY: Add a health endpoint
FILE: internal/health/handler.go
package health

func Ping() string { return "pong" }
ENDFILE
FILE: internal/health/handler_test.go
package health
ENDFILE`

	artifact, err := parseResponse(response, Request{TicketID: "PIPE-1", Language: "go", Domain: "web-backend"})
	require.NoError(t, err)

	assert.Equal(t, "Add a health endpoint", artifact.Summary)
	assert.Equal(t, "PIPE-1", artifact.TicketID)
	assert.NotEmpty(t, artifact.ID)
	require.Len(t, artifact.Files, 2)
	assert.Equal(t, "internal/health/handler.go", artifact.Files[0].Path)
	assert.Contains(t, artifact.Files[0].Content, "func Ping()")
	assert.Equal(t, "internal/health/handler_test.go", artifact.Files[1].Path)
}

func TestParseResponseUnterminatedFile(t *testing.T) {
	response := `SUMMARY: partial
FILE: main.go
package main`

	artifact, err := parseResponse(response, Request{TicketID: "PIPE-2"})
	require.NoError(t, err)
	require.Len(t, artifact.Files, 1)
	assert.Contains(t, artifact.Files[0].Content, "package main")
}

func TestParseResponseNoFiles(t *testing.T) {
	_, err := parseResponse("SUMMARY: nothing useful", Request{TicketID: "PIPE-3"})
	assert.Error(t, err)
}

func TestParseResponseDefaultSummary(t *testing.T) {
	response := "FILE: a.txt\nhello\nENDFILE"
	artifact, err := parseResponse(response, Request{TicketID: "PIPE-4"})
	require.NoError(t, err)
	assert.Equal(t, "Implementation for PIPE-4", artifact.Summary)
}

func TestGenerateRejectsEmptyTicket(t *testing.T) {
	g := NewOpenAIGenerator("test-key", "", zap.NewNop())
	_, err := g.Generate(context.Background(), Request{TicketID: "PIPE-5"})

	var perm *PermanentError
	require.ErrorAs(t, err, &perm)
}
