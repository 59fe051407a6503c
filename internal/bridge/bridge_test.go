package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/gitcord/gitcord/internal/models"
	"github.com/gitcord/gitcord/internal/store"
)

// fakeTracker records mutations and serves canned list responses. A
// non-nil err makes every mutation fail with it.
type fakeTracker struct {
	err error

	createIssueCalls int
	lastIssueTitle   string
	lastIssueBody    string
	lastIssueLabels  []string
	nextIssueNumber  int
	nextIssueNodeID  string

	createCommentCalls int
	lastCommentNumber  int
	lastCommentBody    string
	nextCommentID      int64

	stateChanges    []string
	lockedIssues    []int
	unlockedIssues  []int
	deletedIssues   []string
	deletedComments []int64

	issues   []models.IssueRecord
	comments []models.CommentRecord
}

func (f *fakeTracker) CreateIssue(ctx context.Context, title, body string, labels []string) (*models.IssueRecord, error) {
	f.createIssueCalls++
	if f.err != nil {
		return nil, f.err
	}
	f.lastIssueTitle = title
	f.lastIssueBody = body
	f.lastIssueLabels = labels
	return &models.IssueRecord{
		Number: f.nextIssueNumber,
		NodeID: f.nextIssueNodeID,
		Title:  title,
		Body:   body,
	}, nil
}

func (f *fakeTracker) UpdateIssueState(ctx context.Context, number int, state string) error {
	if f.err != nil {
		return f.err
	}
	f.stateChanges = append(f.stateChanges, fmt.Sprintf("%d:%s", number, state))
	return nil
}

func (f *fakeTracker) LockIssue(ctx context.Context, number int) error {
	if f.err != nil {
		return f.err
	}
	f.lockedIssues = append(f.lockedIssues, number)
	return nil
}

func (f *fakeTracker) UnlockIssue(ctx context.Context, number int) error {
	if f.err != nil {
		return f.err
	}
	f.unlockedIssues = append(f.unlockedIssues, number)
	return nil
}

func (f *fakeTracker) CreateComment(ctx context.Context, number int, body string) (int64, error) {
	f.createCommentCalls++
	if f.err != nil {
		return 0, f.err
	}
	f.lastCommentNumber = number
	f.lastCommentBody = body
	return f.nextCommentID, nil
}

func (f *fakeTracker) DeleteComment(ctx context.Context, commentID int64) error {
	if f.err != nil {
		return f.err
	}
	f.deletedComments = append(f.deletedComments, commentID)
	return nil
}

func (f *fakeTracker) DeleteIssue(ctx context.Context, nodeID string) error {
	if f.err != nil {
		return f.err
	}
	f.deletedIssues = append(f.deletedIssues, nodeID)
	return nil
}

func (f *fakeTracker) ListIssues(ctx context.Context) ([]models.IssueRecord, error) {
	return f.issues, f.err
}

func (f *fakeTracker) ListComments(ctx context.Context) ([]models.CommentRecord, error) {
	return f.comments, f.err
}

// fakeChat records chat-side actions. A non-nil err makes every call
// fail with it. The lock allows tests that drive the bridge from
// several goroutines at once.
type fakeChat struct {
	mu  sync.Mutex
	err error

	createThreadCalls int
	lastThreadParams  ThreadParams
	nextThreadID      string

	messages   []string
	archived   []string
	unarchived []string
	locked     []string
	unlocked   []string
	deleted    []string
}

func (f *fakeChat) CreateThread(ctx context.Context, params ThreadParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createThreadCalls++
	if f.err != nil {
		return "", f.err
	}
	f.lastThreadParams = params
	return f.nextThreadID, nil
}

func (f *fakeChat) CreateMessage(ctx context.Context, threadID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, threadID+"|"+content)
	return nil
}

func (f *fakeChat) ArchiveThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, threadID)
	return nil
}

func (f *fakeChat) UnarchiveThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.unarchived = append(f.unarchived, threadID)
	return nil
}

func (f *fakeChat) LockThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.locked = append(f.locked, threadID)
	return nil
}

func (f *fakeChat) UnlockThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.unlocked = append(f.unlocked, threadID)
	return nil
}

func (f *fakeChat) DeleteThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, threadID)
	return nil
}

// fakeJournal records failure entries as "source|action" plus the
// reported thread URL.
type fakeJournal struct {
	mu      sync.Mutex
	entries []string
	urls    []string
}

func (f *fakeJournal) Record(source, action, threadURL, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, source+"|"+action)
	f.urls = append(f.urls, threadURL)
}

func newTestBridge(t *testing.T) (*Bridge, *fakeTracker, *fakeChat, *fakeJournal) {
	t.Helper()
	tracker := &fakeTracker{nextIssueNumber: 7, nextIssueNodeID: "I_1", nextCommentID: 500}
	chat := &fakeChat{nextThreadID: "T1"}
	jnl := &fakeJournal{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := New(store.New(), tracker, chat, jnl, logger, "G1")
	return b, tracker, chat, jnl
}
