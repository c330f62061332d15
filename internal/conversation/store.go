package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"hopper/internal/models"
)

// ErrNotFound is returned by mutations targeting a thread or message that
// is not in the store.
var ErrNotFound = errors.New("not found")

// ErrTerminal is returned when a finalize targets a message that already
// reached a terminal state. A superseded generation that races its commit
// hits this instead of overwriting newer state.
var ErrTerminal = errors.New("message already terminal")

// Store holds the in-memory thread collection. Every mutation copies the
// affected thread and installs a new snapshot; readers always see a
// consistent, immutable view. The canonical order is most-recently-updated
// first.
//
// Subscribers are invoked after each committed mutation; persistence hangs
// off a subscription rather than being an implicit side effect of
// rendering.
type Store struct {
	mu          sync.Mutex
	threads     []models.Thread
	subscribers []func([]models.Thread)
}

func NewStore() *Store {
	return &Store{}
}

// Subscribe registers fn to run after every committed mutation with the
// new snapshot. Not safe to call concurrently with mutations.
func (s *Store) Subscribe(fn func([]models.Thread)) {
	s.subscribers = append(s.subscribers, fn)
}

// Snapshot returns the current thread list, most-recently-updated first.
// The returned slice and its contents must not be mutated.
func (s *Store) Snapshot() []models.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threads
}

// Get returns a thread by id from the current snapshot.
func (s *Store) Get(id string) (models.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.threads {
		if t.ID == id {
			return t, true
		}
	}
	return models.Thread{}, false
}

// Len returns the number of threads.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads)
}

// Replace swaps the whole collection, used when loading durable state.
// Does not notify subscribers; the durable layer is where the data just
// came from.
func (s *Store) Replace(threads []models.Thread) {
	cloned := make([]models.Thread, len(threads))
	for i, t := range threads {
		cloned[i] = t.Clone()
	}
	sortThreads(cloned)

	s.mu.Lock()
	s.threads = cloned
	s.mu.Unlock()
}

// CreateThread inserts a fresh empty thread and returns its id.
func (s *Store) CreateThread(now time.Time) string {
	t := models.Thread{
		ID:        uuid.NewString(),
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	next := make([]models.Thread, 0, len(s.threads)+1)
	next = append(next, t)
	next = append(next, s.threads...)
	sortThreads(next)
	s.threads = next
	s.mu.Unlock()

	s.notify()
	return t.ID
}

// AppendLoading appends a new LOADING message with the given user prompt
// to the thread and returns the message id.
func (s *Store) AppendLoading(threadID, userMessage string, now time.Time) (string, error) {
	msg := models.Message{
		ID:          uuid.NewString(),
		UserMessage: userMessage,
		State:       models.StateLoading,
	}

	err := s.mutateThread(threadID, now, func(t *models.Thread) error {
		t.Messages = append(t.Messages, msg)
		return nil
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// FinalizeMessage applies fn to the identified message, which must still
// be in StateLoading. Terminal messages are immutable; a stale commit gets
// ErrTerminal and the snapshot is left untouched.
func (s *Store) FinalizeMessage(threadID, messageID string, now time.Time, fn func(*models.Message)) error {
	return s.mutateThread(threadID, now, func(t *models.Thread) error {
		for i := range t.Messages {
			if t.Messages[i].ID != messageID {
				continue
			}
			if t.Messages[i].State.Terminal() {
				return ErrTerminal
			}
			fn(&t.Messages[i])
			return nil
		}
		return errors.Wrapf(ErrNotFound, "message %s", messageID)
	})
}

// Delete removes a thread. Returns the id of the most-recently-updated
// remaining thread, or "" if the store is now empty.
func (s *Store) Delete(id string) (string, error) {
	s.mu.Lock()
	next := make([]models.Thread, 0, len(s.threads))
	found := false
	for _, t := range s.threads {
		if t.ID == id {
			found = true
			continue
		}
		next = append(next, t)
	}
	if !found {
		s.mu.Unlock()
		return "", errors.Wrapf(ErrNotFound, "thread %s", id)
	}
	s.threads = next
	var nextActive string
	if len(next) > 0 {
		nextActive = next[0].ID
	}
	s.mu.Unlock()

	s.notify()
	return nextActive, nil
}

// PriorContext projects the thread's LOADED messages into alternating
// user/assistant turn pairs, in original order. Failed and interrupted
// turns are excluded so incomplete exchanges never poison future context.
func (s *Store) PriorContext(threadID string) []models.ChatMessage {
	t, ok := s.Get(threadID)
	if !ok {
		return nil
	}
	out := []models.ChatMessage{}
	for _, m := range t.Messages {
		if m.State != models.StateLoaded {
			continue
		}
		out = append(out,
			models.ChatMessage{Role: models.RoleUser, Content: m.UserMessage},
			models.ChatMessage{Role: models.RoleAssistant, Content: m.AIResponse},
		)
	}
	return out
}

// mutateThread clones the target thread, applies fn, bumps UpdatedAt,
// installs the new snapshot and notifies subscribers.
func (s *Store) mutateThread(threadID string, now time.Time, fn func(*models.Thread) error) error {
	s.mu.Lock()
	idx := -1
	for i, t := range s.threads {
		if t.ID == threadID {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return errors.Wrapf(ErrNotFound, "thread %s", threadID)
	}

	next := make([]models.Thread, len(s.threads))
	copy(next, s.threads)
	t := next[idx].Clone()
	if err := fn(&t); err != nil {
		s.mu.Unlock()
		return err
	}
	t.UpdatedAt = now
	next[idx] = t
	sortThreads(next)
	s.threads = next
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *Store) notify() {
	snapshot := s.Snapshot()
	for _, fn := range s.subscribers {
		fn(snapshot)
	}
}

func sortThreads(threads []models.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
}
