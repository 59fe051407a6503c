package bridge

import (
	"context"
	"fmt"

	"github.com/gitcord/gitcord/internal/body"
	"github.com/gitcord/gitcord/internal/models"
)

// LoadState rebuilds the correlation store from the repository. Bodies
// are the only persistence: an issue whose body decodes to a Discord
// identity was created by this bridge, and the decoded message ID is
// the thread ID (a Discord thread shares its ID with its root
// message). Issues that don't decode were authored on GitHub and have
// no thread yet; they are skipped, not errored.
func (b *Bridge) LoadState(ctx context.Context) error {
	issues, err := b.tracker.ListIssues(ctx)
	if err != nil {
		return fmt.Errorf("failed to load issues: %w", err)
	}

	loaded := 0
	for _, issue := range issues {
		_, messageID, ok := body.Decode(issue.Body)
		if !ok {
			continue
		}
		b.store.Put(&models.Thread{
			ID:       messageID,
			Number:   issue.Number,
			NodeID:   issue.NodeID,
			Title:    issue.Title,
			Body:     issue.Body,
			Locked:   issue.Locked,
			Archived: issue.State == "closed",
		})
		loaded++
	}

	comments, err := b.tracker.ListComments(ctx)
	if err != nil {
		return fmt.Errorf("failed to load comments: %w", err)
	}

	attached := 0
	for _, comment := range comments {
		// Messages inside a thread carry the thread's ID as their
		// channel ID, so the decoded channel ID names the thread.
		channelID, messageID, ok := body.Decode(comment.Body)
		if !ok {
			continue
		}
		if b.store.ThreadByID(channelID) == nil {
			continue
		}
		b.store.AppendComment(channelID, models.Comment{ID: messageID, GitID: comment.ID})
		attached++
	}

	b.logger.Info("correlation store rebuilt",
		"issues_seen", len(issues),
		"threads_loaded", loaded,
		"comments_attached", attached,
	)
	return nil
}
