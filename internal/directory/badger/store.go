// Package badger provides a BadgerDB-backed RecordStore. It is the
// persistence used in production: records survive restarts and transactional
// updates keep concurrent mutations of one client record lose-free.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/filemesh/filemesh/internal/directory"
)

// maxConflictRetries bounds the retry loop for serialization conflicts.
// Conflicts only arise when two requests mutate the same client record at
// the same instant, so a handful of retries is plenty.
const maxConflictRetries = 10

// Store implements directory.RecordStore on BadgerDB.
//
// Records are JSON-encoded under prefixed keys (see keys.go). Updates run
// inside a Badger transaction: the read and the write of a client record are
// one serializable unit, and a concurrent commit touching the same key fails
// the transaction with ErrConflict instead of silently clobbering it. Update
// retries on conflict, re-reading the fresh record each attempt.
type Store struct {
	db *badger.DB
}

// NewStore opens (or creates) a record store in dir.
func NewStore(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Get returns the record for clientID.
func (s *Store) Get(ctx context.Context, clientID string) (*directory.ClientRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var client *directory.ClientRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyClient(clientID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return directory.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get client record: %w", err)
		}
		return item.Value(func(val []byte) error {
			client, err = decodeClient(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Update applies fn to the record for clientID inside one transaction.
func (s *Store) Update(ctx context.Context, clientID string, upsert bool, fn func(*directory.ClientRecord) error) error {
	key := keyClient(clientID)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			client := &directory.ClientRecord{ClientID: clientID}

			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				if !upsert {
					return directory.ErrNotFound
				}
			case err != nil:
				return fmt.Errorf("get client record: %w", err)
			default:
				if err := item.Value(func(val []byte) error {
					client, err = decodeClient(val)
					return err
				}); err != nil {
					return err
				}
			}

			if err := fn(client); err != nil {
				return err
			}

			encoded, err := encodeClient(client)
			if err != nil {
				return err
			}
			return txn.Set(key, encoded)
		})

		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			continue
		}
		return err
	}
}

// Scan visits all client records in key order.
func (s *Store) Scan(ctx context.Context, fn func(*directory.ClientRecord) (bool, error)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = clientPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(clientPrefix); it.ValidForPrefix(clientPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var client *directory.ClientRecord
			err := it.Item().Value(func(val []byte) error {
				var derr error
				client, derr = decodeClient(val)
				return derr
			})
			if err != nil {
				return err
			}

			cont, err := fn(client)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeClient(client *directory.ClientRecord) ([]byte, error) {
	data, err := json.Marshal(client)
	if err != nil {
		return nil, fmt.Errorf("encode client record: %w", err)
	}
	return data, nil
}

func decodeClient(data []byte) (*directory.ClientRecord, error) {
	client := &directory.ClientRecord{}
	if err := json.Unmarshal(data, client); err != nil {
		return nil, fmt.Errorf("decode client record: %w", err)
	}
	return client, nil
}
