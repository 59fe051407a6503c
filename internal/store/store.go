// Package store holds the in-memory correlation registry. There is no
// durable persistence on purpose: the registry is rebuilt from the
// identity footers embedded in issue and comment bodies at startup.
package store

import (
	"sync"

	"github.com/gitcord/gitcord/internal/models"
)

// Store is the process-wide registry of thread correlations and the
// forum tag catalog. Webhook deliveries and gateway events arrive on
// independent goroutines, so all access goes through the lock and
// lookups hand out snapshots rather than the stored thread itself.
type Store struct {
	mu      sync.RWMutex
	threads map[string]*models.Thread
	tags    []models.Tag
}

func New() *Store {
	return &Store{
		threads: make(map[string]*models.Thread),
	}
}

// ThreadByID returns the thread correlated with the given Discord
// thread ID, or nil. The result is a snapshot: callers read it freely,
// and state changes go back through SetArchived, SetLocked, or Put.
func (s *Store) ThreadByID(id string) *models.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneThread(s.threads[id])
}

// ThreadByNumber returns the thread correlated with the given issue
// number, or nil.
func (s *Store) ThreadByNumber(number int) *models.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.threads {
		if t.Number == number && number != 0 {
			return cloneThread(t)
		}
	}
	return nil
}

// ThreadByNodeID returns the thread correlated with the given issue
// node ID, or nil. Inbound webhook handlers resolve threads this way.
func (s *Store) ThreadByNodeID(nodeID string) *models.Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.threads {
		if t.NodeID == nodeID && nodeID != "" {
			return cloneThread(t)
		}
	}
	return nil
}

// Put inserts or replaces a thread, keyed by its Discord thread ID.
// The store keeps its own copy; later writes through the caller's
// pointer do not reach the registry.
func (s *Store) Put(t *models.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[t.ID] = cloneThread(t)
}

// SetArchived records a thread's archived state. Unknown IDs are
// ignored.
func (s *Store) SetArchived(id string, archived bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.threads[id]; ok {
		t.Archived = archived
	}
}

// SetLocked records a thread's locked state. Unknown IDs are ignored.
func (s *Store) SetLocked(id string, locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.threads[id]; ok {
		t.Locked = locked
	}
}

// Delete removes a thread from the registry.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, id)
}

// AppendComment records a message↔comment correlation on a thread.
// A message ID already present in the thread's comment list is left
// untouched, keeping the list unique per message.
func (s *Store) AppendComment(threadID string, c models.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return
	}
	for _, existing := range t.Comments {
		if existing.ID == c.ID {
			return
		}
	}
	t.Comments = append(t.Comments, c)
}

// CommentGitID looks up the GitHub comment mirroring the given Discord
// message within a thread.
func (s *Store) CommentGitID(threadID, messageID string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadID]
	if !ok {
		return 0, false
	}
	for _, c := range t.Comments {
		if c.ID == messageID {
			return c.GitID, true
		}
	}
	return 0, false
}

// Tags returns the current tag catalog.
func (s *Store) Tags() []models.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

// SetTags replaces the tag catalog. Called once at startup with the
// forum channel's available tags.
func (s *Store) SetTags(tags []models.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = make([]models.Tag, len(tags))
	copy(s.tags, tags)
}

// TagName resolves a Discord tag ID to its GitHub label name.
func (s *Store) TagName(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tag := range s.tags {
		if tag.ID == id {
			return tag.Name, true
		}
	}
	return "", false
}

// TagID resolves a GitHub label name to its Discord tag ID.
func (s *Store) TagID(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tag := range s.tags {
		if tag.Name == name {
			return tag.ID, true
		}
	}
	return "", false
}

// Len reports the number of correlated threads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

// cloneThread copies a thread deeply enough that the caller and the
// registry never share mutable state.
func cloneThread(t *models.Thread) *models.Thread {
	if t == nil {
		return nil
	}
	c := *t
	c.AppliedTags = append([]string(nil), t.AppliedTags...)
	c.Comments = append([]models.Comment(nil), t.Comments...)
	return &c
}
