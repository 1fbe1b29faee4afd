// Package generate adapts the code-generation service. The pipeline
// hands it ticket text plus the detected language and domain and gets
// back an opaque artifact; it never inspects the generated code.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/drossen/ticketsmith/pkg/types"
)

// Request carries everything the generation service needs for one
// ticket.
type Request struct {
	TicketID    string
	Title       string
	Description string
	Language    string
	Domain      string
}

// Generator produces an artifact for a ticket. Implementations return
// *TransientError or *PermanentError so the orchestrator can classify
// the outcome.
type Generator interface {
	Generate(ctx context.Context, req Request) (*types.Artifact, error)
}

// OpenAIGenerator calls the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIGenerator creates a generator. An empty model falls back to
// GPT-4 Turbo.
func NewOpenAIGenerator(apiKey, model string, logger *zap.Logger) *OpenAIGenerator {
	client := openai.NewClient(apiKey)

	if model == "" {
		model = openai.GPT4TurboPreview
	}

	return &OpenAIGenerator{
		client: client,
		model:  model,
		logger: logger,
	}
}

// Generate produces an artifact for the request. Empty ticket text is a
// permanent failure; every service or transport error is transient.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (*types.Artifact, error) {
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Description) == "" {
		return nil, &PermanentError{Reason: "ticket has no content to implement"}
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert software engineer that implements work items as complete, reviewable source files.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(req),
			},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("chat completion failed: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return nil, &TransientError{Err: fmt.Errorf("no choices in completion response")}
	}

	artifact, err := parseResponse(resp.Choices[0].Message.Content, req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	g.logger.Info("generated artifact",
		zap.String("ticket_id", req.TicketID),
		zap.String("artifact_id", artifact.ID),
		zap.Int("files", len(artifact.Files)),
	)
	return artifact, nil
}

func buildPrompt(req Request) string {
	var sb strings.Builder

	sb.WriteString("Implement the following work item:\n\n")
	sb.WriteString("**Ticket:** " + req.TicketID + "\n")
	sb.WriteString("**Title:** " + req.Title + "\n")
	sb.WriteString("**Description:** " + req.Description + "\n")
	sb.WriteString("**Language:** " + req.Language + "\n")
	sb.WriteString("**Domain:** " + req.Domain + "\n\n")

	sb.WriteString("Respond with a one-line summary followed by complete files:\n")
	sb.WriteString("SUMMARY: <summary>\n")
	sb.WriteString("FILE: <relative/path>\n")
	sb.WriteString("<file contents>\n")
	sb.WriteString("ENDFILE\n")
	sb.WriteString("Repeat the FILE/ENDFILE block for every file. No other text.\n")

	return sb.String()
}

// parseResponse splits the line-oriented completion into artifact
// files. A response without a single complete file is an error the
// caller treats as transient.
func parseResponse(response string, req Request) (*types.Artifact, error) {
	artifact := &types.Artifact{
		ID:       uuid.NewString(),
		TicketID: req.TicketID,
		Language: req.Language,
		Domain:   req.Domain,
	}

	var (
		current  *types.ArtifactFile
		contents strings.Builder
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimRight(contents.String(), "\n") + "\n"
		artifact.Files = append(artifact.Files, *current)
		current = nil
		contents.Reset()
	}

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "SUMMARY:") && current == nil:
			artifact.Summary = strings.TrimSpace(strings.TrimPrefix(trimmed, "SUMMARY:"))
		case strings.HasPrefix(trimmed, "FILE:"):
			flush()
			path := strings.TrimSpace(strings.TrimPrefix(trimmed, "FILE:"))
			if path != "" {
				current = &types.ArtifactFile{Path: path}
			}
		case trimmed == "ENDFILE":
			flush()
		case current != nil:
			contents.WriteString(line)
			contents.WriteString("\n")
		}
	}
	flush()

	if len(artifact.Files) == 0 {
		return nil, fmt.Errorf("completion contained no files")
	}
	if artifact.Summary == "" {
		artifact.Summary = "Implementation for " + req.TicketID
	}
	return artifact, nil
}
