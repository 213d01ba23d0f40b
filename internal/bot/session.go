package bot

import (
	"sync"
	"time"
)

// session holds the conversation state of a registration awaiting its
// repository URL. Keyed by chat id, so concurrent registrations in different
// discussion groups never interfere.
type session struct {
	projectID        int64
	promptMessageID  int // the bot's "Reply GitHub/Project URL" message
	triggerMessageID int // the /start message that opened the conversation
	createdAt        time.Time
}

// sessionTable is an in-memory map of chat id to registration state. Entries
// expire after ttl so abandoned registrations do not accumulate.
type sessionTable struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[int64]session
}

func newSessionTable(ttl time.Duration) *sessionTable {
	return &sessionTable{
		ttl:     ttl,
		entries: make(map[int64]session),
	}
}

func (t *sessionTable) put(chatID int64, s session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked()
	s.createdAt = time.Now()
	t.entries[chatID] = s
}

func (t *sessionTable) get(chatID int64) (session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.entries[chatID]
	if !ok {
		return session{}, false
	}
	if t.expired(s) {
		delete(t.entries, chatID)
		return session{}, false
	}
	return s, true
}

func (t *sessionTable) delete(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, chatID)
}

func (t *sessionTable) expired(s session) bool {
	return t.ttl > 0 && time.Since(s.createdAt) > t.ttl
}

func (t *sessionTable) sweepLocked() {
	for id, s := range t.entries {
		if t.expired(s) {
			delete(t.entries, id)
		}
	}
}
