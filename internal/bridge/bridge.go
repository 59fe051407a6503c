// Package bridge is the synchronization core: it turns Discord events
// into GitHub mutations and GitHub webhook events into Discord
// actions, keeping the correlation store current and suppressing
// echoes of its own writes.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gitcord/gitcord/internal/models"
	"github.com/gitcord/gitcord/internal/store"
)

// Sentinel errors for operations invoked on a thread that is missing a
// required field. These are never retried; the triggering event is
// dropped after being reported.
var (
	ErrIssueExists   = errors.New("thread already has an issue number")
	ErrNoIssueNumber = errors.New("thread does not have an issue number")
	ErrNoNodeID      = errors.New("thread does not have a node ID")
	ErrUnknownThread = errors.New("no thread correlated with this identifier")
)

// Fixed labels applied to every issue the bridge opens, marking its
// provenance alongside any translated forum tags.
var provenanceLabels = []string{"triage", "discord"}

// Tracker is the GitHub surface the bridge mutates and queries.
// Satisfied by api.Client.
type Tracker interface {
	CreateIssue(ctx context.Context, title, body string, labels []string) (*models.IssueRecord, error)
	UpdateIssueState(ctx context.Context, number int, state string) error
	LockIssue(ctx context.Context, number int) error
	UnlockIssue(ctx context.Context, number int) error
	CreateComment(ctx context.Context, number int, body string) (int64, error)
	DeleteComment(ctx context.Context, commentID int64) error
	DeleteIssue(ctx context.Context, nodeID string) error
	ListIssues(ctx context.Context) ([]models.IssueRecord, error)
	ListComments(ctx context.Context) ([]models.CommentRecord, error)
}

// ThreadParams carries everything the chat side needs to open a forum
// thread mirroring an issue.
type ThreadParams struct {
	Title       string
	Content     string
	AppliedTags []string
}

// Chat is the Discord surface the bridge calls back into. Satisfied by
// discord.Service.
type Chat interface {
	CreateThread(ctx context.Context, params ThreadParams) (threadID string, err error)
	CreateMessage(ctx context.Context, threadID, content string) error
	ArchiveThread(ctx context.Context, threadID string) error
	UnarchiveThread(ctx context.Context, threadID string) error
	LockThread(ctx context.Context, threadID string) error
	UnlockThread(ctx context.Context, threadID string) error
	DeleteThread(ctx context.Context, threadID string) error
}

// Journal receives terminal mirror failures for manual reconciliation.
type Journal interface {
	Record(source, action, threadURL, detail string)
}

// Bridge orchestrates both mirror directions over one repository and
// one guild.
type Bridge struct {
	store   *store.Store
	tracker Tracker
	chat    Chat
	journal Journal
	logger  *slog.Logger
	guildID string
}

// New assembles a bridge. journal may be nil; failures are then only
// logged.
func New(st *store.Store, tracker Tracker, chat Chat, journal Journal, logger *slog.Logger, guildID string) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		store:   st,
		tracker: tracker,
		chat:    chat,
		journal: journal,
		logger:  logger,
		guildID: guildID,
	}
}

// Store exposes the correlation registry, mainly for the Discord
// adapter's thread-membership checks.
func (b *Bridge) Store() *store.Store {
	return b.store
}

const (
	sourceDiscord = "Discord"
	sourceGitHub  = "GitHub"
)

// Mirror action names used in log lines and the journal.
const (
	actionIssueCreated     = "issue created"
	actionIssueClosed      = "issue closed"
	actionIssueReopened    = "issue reopened"
	actionIssueLocked      = "issue locked"
	actionIssueUnlocked    = "issue unlocked"
	actionIssueDeleted     = "issue deleted"
	actionCommentCreated   = "comment created"
	actionCommentDeleted   = "comment deleted"
	actionThreadCreated    = "thread created"
	actionThreadArchived   = "thread archived"
	actionThreadUnarchived = "thread unarchived"
	actionThreadLocked     = "thread locked"
	actionThreadUnlocked   = "thread unlocked"
	actionThreadDeleted    = "thread deleted"
	actionMessageCreated   = "message created"
)

// threadURL is the canonical Discord URL for a thread, used as the
// correlation key in every log line. Failures reported before a thread
// is resolved have no URL; those get an explicit marker instead of a
// truncated link.
func (b *Bridge) threadURL(threadID string) string {
	if threadID == "" {
		return "unknown thread"
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s", b.guildID, threadID)
}

func (b *Bridge) info(source, action, threadID string) {
	url := b.threadURL(threadID)
	b.logger.Info(fmt.Sprintf("%s | %s | %s", source, action, url),
		"source", source,
		"action", action,
		"thread_url", url,
	)
}

// fail reports a terminal mirror failure: structured error log plus a
// journal entry, then hands the error back so tests and callers can
// classify it. The process never dies over a missed mirror.
func (b *Bridge) fail(source, action, threadID string, err error) error {
	url := b.threadURL(threadID)
	b.logger.Error(fmt.Sprintf("%s | %s | %s", source, action, url),
		"source", source,
		"action", action,
		"thread_url", url,
		"error", err,
	)
	if b.journal != nil {
		b.journal.Record(source, action, url, err.Error())
	}
	return err
}
