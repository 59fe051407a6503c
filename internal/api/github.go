// Package api exposes the repository-scoped GitHub operations the
// bridge performs. Every call obtains a freshly validated client and
// runs under the single-retry-after-refresh policy in retry.go.
package api

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	"github.com/shurcooL/githubv4"

	"github.com/gitcord/gitcord/internal/models"
)

// tokenSource is the credential surface the client consumes. Satisfied
// by auth.TokenManager.
type tokenSource interface {
	Rest(ctx context.Context) (*github.Client, error)
	GraphQL(ctx context.Context) (*githubv4.Client, error)
	Refresh(ctx context.Context) error
}

// Client performs issue and comment operations against one repository.
type Client struct {
	owner  string
	repo   string
	tokens tokenSource
}

// New creates a client for owner/repo backed by the given token
// manager.
func New(owner, repo string, tokens tokenSource) *Client {
	return &Client{owner: owner, repo: repo, tokens: tokens}
}

// CreateIssue opens a new issue and returns its number and node ID.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (*models.IssueRecord, error) {
	var created *github.Issue
	err := c.withRetry(ctx, func(ctx context.Context) error {
		gh, err := c.tokens.Rest(ctx)
		if err != nil {
			return err
		}
		issue, _, err := gh.Issues.Create(ctx, c.owner, c.repo, &github.IssueRequest{
			Title:  &title,
			Body:   &body,
			Labels: &labels,
		})
		if err != nil {
			return fmt.Errorf("failed to create issue: %w", err)
		}
		created = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return convertIssue(created), nil
}

// UpdateIssueState sets an issue open or closed.
func (c *Client) UpdateIssueState(ctx context.Context, number int, state string) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		gh, err := c.tokens.Rest(ctx)
		if err != nil {
			return err
		}
		_, _, err = gh.Issues.Edit(ctx, c.owner, c.repo, number, &github.IssueRequest{
			State: &state,
		})
		if err != nil {
			return fmt.Errorf("failed to update issue #%d: %w", number, err)
		}
		return nil
	})
}

// LockIssue locks an issue's conversation.
func (c *Client) LockIssue(ctx context.Context, number int) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		gh, err := c.tokens.Rest(ctx)
		if err != nil {
			return err
		}
		if _, err := gh.Issues.Lock(ctx, c.owner, c.repo, number, nil); err != nil {
			return fmt.Errorf("failed to lock issue #%d: %w", number, err)
		}
		return nil
	})
}

// UnlockIssue unlocks an issue's conversation.
func (c *Client) UnlockIssue(ctx context.Context, number int) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		gh, err := c.tokens.Rest(ctx)
		if err != nil {
			return err
		}
		if _, err := gh.Issues.Unlock(ctx, c.owner, c.repo, number); err != nil {
			return fmt.Errorf("failed to unlock issue #%d: %w", number, err)
		}
		return nil
	})
}

// CreateComment adds a comment to an issue and returns the comment ID.
func (c *Client) CreateComment(ctx context.Context, number int, body string) (int64, error) {
	var id int64
	err := c.withRetry(ctx, func(ctx context.Context) error {
		gh, err := c.tokens.Rest(ctx)
		if err != nil {
			return err
		}
		comment, _, err := gh.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{
			Body: &body,
		})
		if err != nil {
			return fmt.Errorf("failed to create comment on issue #%d: %w", number, err)
		}
		id = comment.GetID()
		return nil
	})
	return id, err
}

// DeleteComment removes an issue comment by its GitHub ID.
func (c *Client) DeleteComment(ctx context.Context, commentID int64) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		gh, err := c.tokens.Rest(ctx)
		if err != nil {
			return err
		}
		if _, err := gh.Issues.DeleteComment(ctx, c.owner, c.repo, commentID); err != nil {
			return fmt.Errorf("failed to delete comment %d: %w", commentID, err)
		}
		return nil
	})
}

// ListIssues fetches all issues in the repository, any state. Pull
// requests come back through the same endpoint and are skipped.
func (c *Client) ListIssues(ctx context.Context) ([]models.IssueRecord, error) {
	var all []models.IssueRecord
	err := c.withRetry(ctx, func(ctx context.Context) error {
		gh, err := c.tokens.Rest(ctx)
		if err != nil {
			return err
		}

		all = all[:0]
		opts := &github.IssueListByRepoOptions{
			State: "all",
			ListOptions: github.ListOptions{
				PerPage: 100,
			},
		}
		for {
			issues, resp, err := gh.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
			if err != nil {
				return fmt.Errorf("failed to list issues: %w", err)
			}
			for _, issue := range issues {
				if issue.IsPullRequest() {
					continue
				}
				all = append(all, *convertIssue(issue))
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	})
	return all, err
}

// ListComments fetches every issue comment in the repository. go-github
// treats issue number 0 as "all issues".
func (c *Client) ListComments(ctx context.Context) ([]models.CommentRecord, error) {
	var all []models.CommentRecord
	err := c.withRetry(ctx, func(ctx context.Context) error {
		gh, err := c.tokens.Rest(ctx)
		if err != nil {
			return err
		}

		all = all[:0]
		opts := &github.IssueListCommentsOptions{
			ListOptions: github.ListOptions{
				PerPage: 100,
			},
		}
		for {
			comments, resp, err := gh.Issues.ListComments(ctx, c.owner, c.repo, 0, opts)
			if err != nil {
				return fmt.Errorf("failed to list comments: %w", err)
			}
			for _, comment := range comments {
				all = append(all, models.CommentRecord{
					ID:   comment.GetID(),
					Body: comment.GetBody(),
				})
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	})
	return all, err
}

// convertIssue reduces a GitHub issue to the bridge's record.
func convertIssue(issue *github.Issue) *models.IssueRecord {
	return &models.IssueRecord{
		Number: issue.GetNumber(),
		NodeID: issue.GetNodeID(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		Locked: issue.GetLocked(),
		State:  issue.GetState(),
	}
}
