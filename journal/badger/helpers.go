package badger

import (
	"bytes"
	"encoding/gob"

	"github.com/dgraph-io/badger/v2"
)

func hasKey(txn *badger.Txn, key []byte) bool {
	_, err := txn.Get(key)
	return err == nil
}

func getItem(txn *badger.Txn, key []byte, into interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return gob.NewDecoder(bytes.NewReader(val)).Decode(into)
	})
}

func setItem(txn *badger.Txn, key []byte, val interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(val); err != nil {
		return err
	}
	return txn.Set(key, buf.Bytes())
}

// loopItem decodes every value under prefix into the same target, in key
// order, calling fn after each one.
func loopItem(txn *badger.Txn, prefix []byte, into interface{}, fn func() error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(into)
		}); err != nil {
			return err
		}
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
