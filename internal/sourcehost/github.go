// Package sourcehost publishes generated artifacts to GitHub: clone,
// feature branch, artifact files committed, branch pushed, pull request
// opened. The pipeline treats the whole sequence as one external call.
package sourcehost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/drossen/ticketsmith/pkg/types"
)

// Client wraps GitHub API and local git operations.
type Client struct {
	apiClient    *github.Client
	logger       *zap.Logger
	accessToken  string
	workspaceDir string
	authorName   string
	authorEmail  string
}

// NewClient creates a GitHub-backed source host client. workspaceDir
// holds the local clones.
func NewClient(accessToken, workspaceDir string, logger *zap.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: accessToken},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		apiClient:    github.NewClient(tc),
		logger:       logger,
		accessToken:  accessToken,
		workspaceDir: workspaceDir,
		authorName:   "ticketsmith",
		authorEmail:  "ticketsmith@noreply.local",
	}
}

// Publish pushes the artifact to a feature branch of target and opens a
// pull request. It returns the PR URL.
func (c *Client) Publish(ctx context.Context, artifact *types.Artifact, target types.Repository) (string, error) {
	repoPath, err := c.clone(ctx, target)
	if err != nil {
		return "", err
	}

	branch := BranchName(artifact.TicketID, artifact.Summary)
	repo, worktree, err := c.checkoutBranch(repoPath, target.BaseBranch, branch)
	if err != nil {
		return "", err
	}

	if err := c.writeFiles(repoPath, worktree, artifact); err != nil {
		return "", err
	}

	if err := c.commit(worktree, fmt.Sprintf("%s: %s", artifact.TicketID, artifact.Summary)); err != nil {
		return "", err
	}

	if err := c.push(ctx, repo, branch); err != nil {
		return "", err
	}

	prURL, err := c.openPullRequest(ctx, artifact, target, branch)
	if err != nil {
		return "", err
	}

	c.logger.Info("published artifact",
		zap.String("ticket_id", artifact.TicketID),
		zap.String("branch", branch),
		zap.String("pr_url", prURL),
	)
	return prURL, nil
}

func (c *Client) clone(ctx context.Context, target types.Repository) (string, error) {
	repoPath := filepath.Join(c.workspaceDir, target.Owner, target.Name)

	// Fresh clone every time; stale worktrees cause silent conflicts.
	if _, err := os.Stat(repoPath); err == nil {
		os.RemoveAll(repoPath)
	}
	if err := os.MkdirAll(repoPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace directory: %w", err)
	}

	cloneURL := fmt.Sprintf("https://%s@github.com/%s/%s.git", c.accessToken, target.Owner, target.Name)
	_, err := git.PlainCloneContext(ctx, repoPath, false, &git.CloneOptions{
		URL:           cloneURL,
		ReferenceName: plumbing.NewBranchReferenceName(target.BaseBranch),
		SingleBranch:  true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to clone %s/%s: %w", target.Owner, target.Name, err)
	}
	return repoPath, nil
}

func (c *Client) checkoutBranch(repoPath, baseBranch, newBranch string) (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	err = worktree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(newBranch),
		Create: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create branch %s: %w", newBranch, err)
	}
	return repo, worktree, nil
}

func (c *Client) writeFiles(repoPath string, worktree *git.Worktree, artifact *types.Artifact) error {
	for _, file := range artifact.Files {
		fullPath := filepath.Join(repoPath, filepath.Clean(file.Path))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", file.Path, err)
		}
		if err := os.WriteFile(fullPath, []byte(file.Content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		if _, err := worktree.Add(filepath.Clean(file.Path)); err != nil {
			return fmt.Errorf("failed to stage %s: %w", file.Path, err)
		}
	}
	return nil
}

func (c *Client) commit(worktree *git.Worktree, message string) error {
	_, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.authorName,
			Email: c.authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (c *Client) push(ctx context.Context, repo *git.Repository, branch string) error {
	remote, err := repo.Remote("origin")
	if err != nil {
		return fmt.Errorf("failed to get remote: %w", err)
	}

	err = remote.PushContext(ctx, &git.PushOptions{
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to push branch %s: %w", branch, err)
	}
	return nil
}

func (c *Client) openPullRequest(ctx context.Context, artifact *types.Artifact, target types.Repository, branch string) (string, error) {
	newPR := &github.NewPullRequest{
		Title: github.String(PRTitle(artifact.TicketID, artifact.Summary)),
		Head:  github.String(branch),
		Base:  github.String(target.BaseBranch),
		Body:  github.String(PRDescription(artifact)),
	}

	pr, _, err := c.apiClient.PullRequests.Create(ctx, target.Owner, target.Name, newPR)
	if err != nil {
		return "", fmt.Errorf("failed to create pull request: %w", err)
	}
	return pr.GetHTMLURL(), nil
}
