package bridge

import (
	"context"

	"github.com/gitcord/gitcord/internal/body"
	"github.com/gitcord/gitcord/internal/models"
)

// CreateIssue mirrors the first message of a Discord thread as a new
// GitHub issue. It is not re-entrant: a thread that already holds an
// issue number is a precondition failure, which is what stops a
// duplicate-create race from opening two issues.
func (b *Bridge) CreateIssue(ctx context.Context, threadID, title string, tagIDs []string, msg models.ChatMessage) error {
	if t := b.store.ThreadByID(threadID); t != nil && t.Number != 0 {
		return b.fail(sourceDiscord, actionIssueCreated, threadID, ErrIssueExists)
	}

	labels := make([]string, 0, len(tagIDs)+len(provenanceLabels))
	for _, id := range tagIDs {
		if name, ok := b.store.TagName(id); ok {
			labels = append(labels, name)
		}
	}
	labels = append(labels, provenanceLabels...)

	rec, err := b.tracker.CreateIssue(ctx, title, body.Encode(msg), labels)
	if err != nil {
		return b.fail(sourceDiscord, actionIssueCreated, threadID, err)
	}

	b.store.Put(&models.Thread{
		ID:          threadID,
		Number:      rec.Number,
		NodeID:      rec.NodeID,
		Title:       title,
		Body:        rec.Body,
		AppliedTags: tagIDs,
	})
	b.info(sourceDiscord, actionIssueCreated, threadID)
	return nil
}

// CreateComment mirrors a follow-up Discord message as an issue
// comment on the thread's issue. The message's channel ID is the
// thread ID.
func (b *Bridge) CreateComment(ctx context.Context, msg models.ChatMessage) error {
	threadID := msg.ChannelID
	t := b.store.ThreadByID(threadID)
	if t == nil {
		return b.fail(sourceDiscord, actionCommentCreated, threadID, ErrUnknownThread)
	}
	if t.Number == 0 {
		return b.fail(sourceDiscord, actionCommentCreated, threadID, ErrNoIssueNumber)
	}

	gitID, err := b.tracker.CreateComment(ctx, t.Number, body.Encode(msg))
	if err != nil {
		return b.fail(sourceDiscord, actionCommentCreated, threadID, err)
	}

	b.store.AppendComment(threadID, models.Comment{ID: msg.ID, GitID: gitID})
	b.info(sourceDiscord, actionCommentCreated, threadID)
	return nil
}

// CloseIssue mirrors a thread archive as closing the issue.
func (b *Bridge) CloseIssue(ctx context.Context, threadID string) error {
	return b.setIssueState(ctx, threadID, "closed", actionIssueClosed)
}

// ReopenIssue mirrors a thread unarchive as reopening the issue.
func (b *Bridge) ReopenIssue(ctx context.Context, threadID string) error {
	return b.setIssueState(ctx, threadID, "open", actionIssueReopened)
}

func (b *Bridge) setIssueState(ctx context.Context, threadID, state, action string) error {
	t := b.store.ThreadByID(threadID)
	if t == nil {
		return b.fail(sourceDiscord, action, threadID, ErrUnknownThread)
	}
	if t.Number == 0 {
		return b.fail(sourceDiscord, action, threadID, ErrNoIssueNumber)
	}
	if err := b.tracker.UpdateIssueState(ctx, t.Number, state); err != nil {
		return b.fail(sourceDiscord, action, threadID, err)
	}
	b.store.SetArchived(threadID, state == "closed")
	b.info(sourceDiscord, action, threadID)
	return nil
}

// LockIssue mirrors a thread lock.
func (b *Bridge) LockIssue(ctx context.Context, threadID string) error {
	t := b.store.ThreadByID(threadID)
	if t == nil {
		return b.fail(sourceDiscord, actionIssueLocked, threadID, ErrUnknownThread)
	}
	if t.Number == 0 {
		return b.fail(sourceDiscord, actionIssueLocked, threadID, ErrNoIssueNumber)
	}
	if err := b.tracker.LockIssue(ctx, t.Number); err != nil {
		return b.fail(sourceDiscord, actionIssueLocked, threadID, err)
	}
	b.store.SetLocked(threadID, true)
	b.info(sourceDiscord, actionIssueLocked, threadID)
	return nil
}

// UnlockIssue mirrors a thread unlock.
func (b *Bridge) UnlockIssue(ctx context.Context, threadID string) error {
	t := b.store.ThreadByID(threadID)
	if t == nil {
		return b.fail(sourceDiscord, actionIssueUnlocked, threadID, ErrUnknownThread)
	}
	if t.Number == 0 {
		return b.fail(sourceDiscord, actionIssueUnlocked, threadID, ErrNoIssueNumber)
	}
	if err := b.tracker.UnlockIssue(ctx, t.Number); err != nil {
		return b.fail(sourceDiscord, actionIssueUnlocked, threadID, err)
	}
	b.store.SetLocked(threadID, false)
	b.info(sourceDiscord, actionIssueUnlocked, threadID)
	return nil
}

// DeleteIssue mirrors a thread deletion. Deletion goes through GraphQL
// and needs the issue's node ID; a thread without one is a
// precondition failure.
func (b *Bridge) DeleteIssue(ctx context.Context, threadID string) error {
	t := b.store.ThreadByID(threadID)
	if t == nil {
		return b.fail(sourceDiscord, actionIssueDeleted, threadID, ErrUnknownThread)
	}
	if t.NodeID == "" {
		return b.fail(sourceDiscord, actionIssueDeleted, threadID, ErrNoNodeID)
	}
	if err := b.tracker.DeleteIssue(ctx, t.NodeID); err != nil {
		return b.fail(sourceDiscord, actionIssueDeleted, threadID, err)
	}
	b.store.Delete(threadID)
	b.info(sourceDiscord, actionIssueDeleted, threadID)
	return nil
}

// DeleteComment mirrors a Discord message deletion by removing the
// GitHub comment that mirrors it. Messages with no recorded
// correlation were never mirrored and are ignored.
func (b *Bridge) DeleteComment(ctx context.Context, threadID, messageID string) error {
	gitID, ok := b.store.CommentGitID(threadID, messageID)
	if !ok {
		return nil
	}
	if err := b.tracker.DeleteComment(ctx, gitID); err != nil {
		return b.fail(sourceDiscord, actionCommentDeleted, threadID, err)
	}
	b.info(sourceDiscord, actionCommentDeleted, threadID)
	return nil
}
