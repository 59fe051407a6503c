package bridge

import (
	"context"
	"fmt"

	"github.com/gitcord/gitcord/internal/body"
	"github.com/gitcord/gitcord/internal/models"
)

// IssueEvent is the slice of a webhook "issues" payload the inbound
// path consumes.
type IssueEvent struct {
	NodeID string
	Number int
	Title  string
	Body   string
	Login  string
	Labels []string
}

// CommentEvent is the slice of a webhook "issue_comment" payload the
// inbound path consumes.
type CommentEvent struct {
	ID          int64
	Body        string
	Login       string
	AvatarURL   string
	IssueNodeID string
}

// unknownNode wraps ErrUnknownThread with the issue node ID, so a
// failure reported before any thread is resolved still names the
// event's subject in the log and the journal.
func unknownNode(nodeID string) error {
	return fmt.Errorf("%w: issue node %s", ErrUnknownThread, nodeID)
}

// HandleIssueOpened mirrors a newly opened issue as a Discord forum
// thread. An issue whose node ID is already correlated is a webhook
// replay and is ignored. Labels with no matching forum tag are
// dropped, not errored.
func (b *Bridge) HandleIssueOpened(ctx context.Context, ev IssueEvent) error {
	if b.store.ThreadByNodeID(ev.NodeID) != nil {
		return nil
	}

	var tagIDs []string
	for _, label := range ev.Labels {
		if id, ok := b.store.TagID(label); ok {
			tagIDs = append(tagIDs, id)
		}
	}

	content := fmt.Sprintf("**%s** opened issue #%d\n\n%s", ev.Login, ev.Number, ev.Body)
	threadID, err := b.chat.CreateThread(ctx, ThreadParams{
		Title:       ev.Title,
		Content:     content,
		AppliedTags: tagIDs,
	})
	if err != nil {
		return b.fail(sourceGitHub, actionThreadCreated, "", err)
	}

	b.store.Put(&models.Thread{
		ID:          threadID,
		Number:      ev.Number,
		NodeID:      ev.NodeID,
		Title:       ev.Title,
		Body:        ev.Body,
		AppliedTags: tagIDs,
	})
	b.info(sourceGitHub, actionThreadCreated, threadID)
	return nil
}

// HandleCommentCreated mirrors a new issue comment into the correlated
// Discord thread. A comment whose body decodes to a Discord identity
// is an echo of a message this bridge already mirrored outward and is
// skipped; that check is what breaks the loop.
func (b *Bridge) HandleCommentCreated(ctx context.Context, ev CommentEvent) error {
	if ev.ID == 0 || ev.Login == "" || ev.Body == "" {
		return b.fail(sourceGitHub, actionMessageCreated, "",
			fmt.Errorf("comment event missing user, id, or body"))
	}

	if _, _, ok := body.Decode(ev.Body); ok {
		return nil
	}

	t := b.store.ThreadByNodeID(ev.IssueNodeID)
	if t == nil {
		return b.fail(sourceGitHub, actionMessageCreated, "", unknownNode(ev.IssueNodeID))
	}

	content := fmt.Sprintf("**%s** commented:\n\n%s", ev.Login, ev.Body)
	if err := b.chat.CreateMessage(ctx, t.ID, content); err != nil {
		return b.fail(sourceGitHub, actionMessageCreated, t.ID, err)
	}
	b.info(sourceGitHub, actionMessageCreated, t.ID)
	return nil
}

// HandleIssueClosed archives the correlated Discord thread.
func (b *Bridge) HandleIssueClosed(ctx context.Context, nodeID string) error {
	t := b.store.ThreadByNodeID(nodeID)
	if t == nil {
		return b.fail(sourceGitHub, actionThreadArchived, "", unknownNode(nodeID))
	}
	if err := b.chat.ArchiveThread(ctx, t.ID); err != nil {
		return b.fail(sourceGitHub, actionThreadArchived, t.ID, err)
	}
	b.store.SetArchived(t.ID, true)
	b.info(sourceGitHub, actionThreadArchived, t.ID)
	return nil
}

// HandleIssueReopened unarchives the correlated Discord thread.
func (b *Bridge) HandleIssueReopened(ctx context.Context, nodeID string) error {
	t := b.store.ThreadByNodeID(nodeID)
	if t == nil {
		return b.fail(sourceGitHub, actionThreadUnarchived, "", unknownNode(nodeID))
	}
	if err := b.chat.UnarchiveThread(ctx, t.ID); err != nil {
		return b.fail(sourceGitHub, actionThreadUnarchived, t.ID, err)
	}
	b.store.SetArchived(t.ID, false)
	b.info(sourceGitHub, actionThreadUnarchived, t.ID)
	return nil
}

// HandleIssueLocked locks the correlated Discord thread.
func (b *Bridge) HandleIssueLocked(ctx context.Context, nodeID string) error {
	t := b.store.ThreadByNodeID(nodeID)
	if t == nil {
		return b.fail(sourceGitHub, actionThreadLocked, "", unknownNode(nodeID))
	}
	if err := b.chat.LockThread(ctx, t.ID); err != nil {
		return b.fail(sourceGitHub, actionThreadLocked, t.ID, err)
	}
	b.store.SetLocked(t.ID, true)
	b.info(sourceGitHub, actionThreadLocked, t.ID)
	return nil
}

// HandleIssueUnlocked unlocks the correlated Discord thread.
func (b *Bridge) HandleIssueUnlocked(ctx context.Context, nodeID string) error {
	t := b.store.ThreadByNodeID(nodeID)
	if t == nil {
		return b.fail(sourceGitHub, actionThreadUnlocked, "", unknownNode(nodeID))
	}
	if err := b.chat.UnlockThread(ctx, t.ID); err != nil {
		return b.fail(sourceGitHub, actionThreadUnlocked, t.ID, err)
	}
	b.store.SetLocked(t.ID, false)
	b.info(sourceGitHub, actionThreadUnlocked, t.ID)
	return nil
}

// HandleIssueDeleted deletes the correlated Discord thread and drops
// the correlation.
func (b *Bridge) HandleIssueDeleted(ctx context.Context, nodeID string) error {
	t := b.store.ThreadByNodeID(nodeID)
	if t == nil {
		return b.fail(sourceGitHub, actionThreadDeleted, "", unknownNode(nodeID))
	}
	if err := b.chat.DeleteThread(ctx, t.ID); err != nil {
		return b.fail(sourceGitHub, actionThreadDeleted, t.ID, err)
	}
	b.store.Delete(t.ID)
	b.info(sourceGitHub, actionThreadDeleted, t.ID)
	return nil
}
