// Package memory provides an in-memory RecordStore for tests and
// single-process development runs. Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/filemesh/filemesh/internal/directory"
)

// Store implements directory.RecordStore with a mutex-guarded map.
//
// Update holds the write lock for the whole read-modify-write, which makes
// concurrent appends to the same client trivially lose-free. Get and Scan
// return deep copies so callers can never alias live records.
type Store struct {
	mu      sync.RWMutex
	clients map[string]*directory.ClientRecord
}

// NewStore creates an empty in-memory record store.
func NewStore() *Store {
	return &Store{clients: make(map[string]*directory.ClientRecord)}
}

// Get returns a deep copy of the record for clientID.
func (s *Store) Get(ctx context.Context, clientID string) (*directory.ClientRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return client.Clone(), nil
}

// Update applies fn to the record for clientID under the write lock.
func (s *Store) Update(ctx context.Context, clientID string, upsert bool, fn func(*directory.ClientRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients[clientID]
	if !ok {
		if !upsert {
			return directory.ErrNotFound
		}
		client = &directory.ClientRecord{ClientID: clientID}
	}

	// Mutate a copy so a failing fn leaves the stored record untouched
	updated := client.Clone()
	if err := fn(updated); err != nil {
		return err
	}

	s.clients[clientID] = updated
	return nil
}

// Scan visits records in client-id order.
func (s *Store) Scan(ctx context.Context, fn func(*directory.ClientRecord) (bool, error)) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	clones := make(map[string]*directory.ClientRecord, len(ids))
	for _, id := range ids {
		clones[id] = s.clients[id].Clone()
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		cont, err := fn(clones[id])
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
