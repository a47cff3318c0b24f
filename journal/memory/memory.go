package memory

import (
	"sort"
	"sync"

	"github.com/vipnode/qwebchannel/journal"
)

// New implements an ephemeral in-memory journal store.
func New() *memoryStore {
	return &memoryStore{
		sessions: map[string]*memSession{},
	}
}

type memSession struct {
	journal.Session

	entries []journal.Entry
}

// Assert Store implementation
var _ journal.Store = &memoryStore{}

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memSession
}

func (s *memoryStore) Append(entry journal.Entry) error {
	if entry.Session == "" {
		return journal.ErrMalformedEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[entry.Session]
	if !ok {
		session = &memSession{Session: journal.Session{
			ID:      entry.Session,
			Started: entry.Time,
		}}
		s.sessions[entry.Session] = session
	}
	entry.Data = append([]byte(nil), entry.Data...)
	session.entries = append(session.entries, entry)
	session.Entries++
	return nil
}

func (s *memoryStore) Sessions() ([]journal.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := make([]journal.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session.Session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Started.Equal(sessions[j].Started) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].Started.Before(sessions[j].Started)
	})
	return sessions, nil
}

func (s *memoryStore) Entries(id string) ([]journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, journal.ErrUnknownSession
	}
	entries := append([]journal.Entry(nil), session.entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Seq < entries[j].Seq
	})
	return entries, nil
}

func (s *memoryStore) Close() error {
	return nil
}
