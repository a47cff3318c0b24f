package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
)

var versionKey = []byte("qwc:version")

// migrationStep upgrades the journal by exactly one version.
type migrationStep struct {
	Name  string
	Apply func(txn *badger.Txn) error
}

// migrate brings db to len(steps), running steps[v] to go from version v to
// v+1. Everything happens in one transaction so a failed step leaves the
// journal untouched.
func migrate(db *badger.DB, steps []migrationStep, path string) error {
	latest := len(steps)
	return db.Update(func(txn *badger.Txn) error {
		version, err := getVersion(txn)
		if err != nil {
			return MigrationError{From: version, To: latest, Path: path, Cause: err}
		}
		if version > latest {
			return MigrationError{From: version, To: latest, Path: path, Cause: errors.New("journal was written by a newer release")}
		}
		if version == latest {
			return nil
		}

		for v := version; v < latest; v++ {
			if err := steps[v].Apply(txn); err != nil {
				return MigrationError{From: v, To: v + 1, Step: steps[v].Name, Path: path, Cause: err}
			}
		}
		return setVersion(txn, latest)
	})
}

func getVersion(txn *badger.Txn) (int, error) {
	var version int
	if err := getItem(txn, versionKey, &version); err != nil && err != badger.ErrKeyNotFound {
		return version, err
	}
	return version, nil
}

func setVersion(txn *badger.Txn, version int) error {
	return setItem(txn, versionKey, &version)
}

// MigrationError is returned by Open when the journal on disk cannot be
// brought to the current version.
type MigrationError struct {
	From  int
	To    int
	Step  string
	Path  string
	Cause error
}

func (err MigrationError) Error() string {
	if err.Step != "" {
		return fmt.Sprintf("journal migration %d -> %d (%s) at %q failed: %s", err.From, err.To, err.Step, err.Path, err.Cause)
	}
	return fmt.Sprintf("journal migration %d -> %d at %q failed: %s", err.From, err.To, err.Path, err.Cause)
}

func (err MigrationError) Unwrap() error {
	return err.Cause
}
