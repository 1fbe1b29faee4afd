// Package jira adapts the Jira API to the pipeline's ticket model.
// The client is a thin transport: the decision of which tickets
// qualify for processing lives in the orchestrator's query predicate
// and the tracker, not here.
package jira

import (
	"context"
	"fmt"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"

	"github.com/drossen/ticketsmith/pkg/types"
)

// searchFields are the issue fields the pipeline consumes.
var searchFields = []string{"summary", "description", "status", "labels", "comment", "updated"}

// Client wraps Jira API access.
type Client struct {
	client *jira.Client
	logger *zap.Logger
}

// NewClient creates a Jira client with basic-auth token credentials.
func NewClient(baseURL, username, apiToken string, logger *zap.Logger) (*Client, error) {
	tp := jira.BasicAuthTransport{
		Username: username,
		Password: apiToken,
	}

	client, err := jira.NewClient(tp.Client(), baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	return &Client{client: client, logger: logger}, nil
}

// Search runs the candidate query and returns matching tickets.
func (c *Client) Search(ctx context.Context, q Query) ([]types.Ticket, error) {
	jql := BuildJQL(q)
	c.logger.Debug("searching tickets", zap.String("jql", jql))

	issues, _, err := c.client.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
		MaxResults: 50,
		Fields:     searchFields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}

	tickets := make([]types.Ticket, 0, len(issues))
	for i := range issues {
		tickets = append(tickets, issueToTicket(&issues[i]))
	}
	return tickets, nil
}

// Get fetches a single ticket by id. Used to refresh retry candidates
// that no longer match the polled statuses.
func (c *Client) Get(ctx context.Context, ticketID string) (types.Ticket, error) {
	issue, _, err := c.client.Issue.GetWithContext(ctx, ticketID, nil)
	if err != nil {
		return types.Ticket{}, fmt.Errorf("failed to get issue %s: %w", ticketID, err)
	}
	return issueToTicket(issue), nil
}

// AddComment posts a comment on a ticket.
func (c *Client) AddComment(ctx context.Context, ticketID, comment string) error {
	_, _, err := c.client.Issue.AddCommentWithContext(ctx, ticketID, &jira.Comment{
		Body: comment,
	})
	if err != nil {
		return fmt.Errorf("failed to add comment to %s: %w", ticketID, err)
	}
	return nil
}

// TransitionStatus moves a ticket to the named workflow status.
func (c *Client) TransitionStatus(ctx context.Context, ticketID, status string) error {
	transitions, _, err := c.client.Issue.GetTransitionsWithContext(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("failed to get transitions for %s: %w", ticketID, err)
	}

	var transitionID string
	for _, transition := range transitions {
		if strings.EqualFold(transition.To.Name, status) {
			transitionID = transition.ID
			break
		}
	}
	if transitionID == "" {
		return fmt.Errorf("transition to status %s not found for %s", status, ticketID)
	}

	if _, err := c.client.Issue.DoTransitionWithContext(ctx, ticketID, transitionID); err != nil {
		return fmt.Errorf("failed to transition %s: %w", ticketID, err)
	}
	return nil
}

// issueToTicket flattens a Jira issue into the pipeline's ticket shape.
func issueToTicket(issue *jira.Issue) types.Ticket {
	t := types.Ticket{
		ID:          issue.Key,
		Title:       issue.Fields.Summary,
		Description: issue.Fields.Description,
	}
	if issue.Fields.Status != nil {
		t.Status = issue.Fields.Status.Name
	}
	t.Labels = append(t.Labels, issue.Fields.Labels...)
	if issue.Fields.Comments != nil {
		for _, comment := range issue.Fields.Comments.Comments {
			if comment != nil {
				t.Comments = append(t.Comments, comment.Body)
			}
		}
	}
	t.UpdatedAt = time.Time(issue.Fields.Updated)
	return t
}
