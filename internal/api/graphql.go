package api

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"
)

// DeleteIssue permanently deletes an issue by its node ID. The REST
// API has no delete endpoint, so this goes through GraphQL.
func (c *Client) DeleteIssue(ctx context.Context, nodeID string) error {
	return c.withRetry(ctx, func(ctx context.Context) error {
		graph, err := c.tokens.GraphQL(ctx)
		if err != nil {
			return err
		}

		var mutation struct {
			DeleteIssue struct {
				ClientMutationID githubv4.String
			} `graphql:"deleteIssue(input: $input)"`
		}
		input := githubv4.DeleteIssueInput{
			IssueID: githubv4.ID(nodeID),
		}
		if err := graph.Mutate(ctx, &mutation, input, nil); err != nil {
			return fmt.Errorf("failed to delete issue %s: %w", nodeID, err)
		}
		return nil
	})
}
