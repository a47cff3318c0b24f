// Package badger is a journal store persisted with Badger.
package badger

import (
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v2"
	"github.com/vipnode/qwebchannel/journal"
)

// Open returns a journal.Store implementation using Badger as the storage
// driver. The store should be .Close()'d after use.
func Open(opts badger.Options) (*badgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := migrate(db, migrations, opts.Dir); err != nil {
		db.Close()
		return nil, err
	}
	return &badgerStore{db: db}, nil
}

// OpenDir opens the store kept in dir, with Badger's own logging silenced.
func OpenDir(dir string) (*badgerStore, error) {
	return Open(badger.DefaultOptions(dir).WithLogger(nil))
}

var _ journal.Store = &badgerStore{}

type badgerStore struct {
	db *badger.DB
}

func sessionKey(id string) []byte {
	return []byte("qwc:session:" + id)
}

func entryPrefix(session string) []byte {
	return []byte("qwc:entry:" + session + ":")
}

// entryKey pads seq so key order is sequence order.
func entryKey(session string, seq uint64) []byte {
	return []byte(fmt.Sprintf("qwc:entry:%s:%020d", session, seq))
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

func (s *badgerStore) Append(entry journal.Entry) error {
	if entry.Session == "" {
		return journal.ErrMalformedEntry
	}
	return s.db.Update(func(txn *badger.Txn) error {
		session := journal.Session{
			ID:      entry.Session,
			Started: entry.Time,
		}
		key := sessionKey(entry.Session)
		if hasKey(txn, key) {
			if err := getItem(txn, key, &session); err != nil {
				return err
			}
		}
		session.Entries++
		if err := setItem(txn, key, &session); err != nil {
			return err
		}
		return setItem(txn, entryKey(entry.Session, entry.Seq), &entry)
	})
}

func (s *badgerStore) Sessions() ([]journal.Session, error) {
	var sessions []journal.Session
	err := s.db.View(func(txn *badger.Txn) error {
		var session journal.Session
		return loopItem(txn, []byte("qwc:session:"), &session, func() error {
			sessions = append(sessions, session)
			session = journal.Session{}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Started.Before(sessions[j].Started)
	})
	return sessions, nil
}

func (s *badgerStore) Entries(id string) ([]journal.Entry, error) {
	var entries []journal.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		if !hasKey(txn, sessionKey(id)) {
			return journal.ErrUnknownSession
		}
		var entry journal.Entry
		return loopItem(txn, entryPrefix(id), &entry, func() error {
			entries = append(entries, entry)
			entry = journal.Entry{}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
