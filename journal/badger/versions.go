package badger

import (
	"github.com/dgraph-io/badger/v2"
	"github.com/vipnode/qwebchannel/journal"
)

// migrations is indexed by the version each step upgrades from.
var migrations = []migrationStep{
	// 0 -> 1: empty journal, nothing to convert.
	{Name: "create", Apply: func(txn *badger.Txn) error { return nil }},
	// 1 -> 2: session records gained an entry count.
	{Name: "count session entries", Apply: countSessionEntries},
}

var dbVersion = len(migrations)

func countSessionEntries(txn *badger.Txn) error {
	var sessions []journal.Session
	var session journal.Session
	if err := loopItem(txn, []byte("qwc:session:"), &session, func() error {
		sessions = append(sessions, session)
		session = journal.Session{}
		return nil
	}); err != nil {
		return err
	}

	for _, s := range sessions {
		s.Entries = countKeys(txn, entryPrefix(s.ID))
		if err := setItem(txn, sessionKey(s.ID), &s); err != nil {
			return err
		}
	}
	return nil
}

func countKeys(txn *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n
}
