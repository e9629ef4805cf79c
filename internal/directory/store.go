package directory

import (
	"context"
	"fmt"
)

// RecordStore is the keyed persistence interface the directory runs on.
//
// Implementations must be safe for concurrent use. The critical contract is
// on Update: two concurrent updates for the same client id must both be
// applied, in some order, against the persisted record. A read-modify-write
// of a stale snapshot that silently drops the other writer's change is a
// correctness bug, not a performance one.
type RecordStore interface {
	// Get returns the record for clientID, or ErrNotFound.
	Get(ctx context.Context, clientID string) (*ClientRecord, error)

	// Update atomically applies fn to the record for clientID and persists
	// the result. When the record is absent: with upsert true fn receives a
	// fresh empty record, with upsert false Update fails with ErrNotFound.
	// An error from fn aborts the update without persisting anything.
	Update(ctx context.Context, clientID string, upsert bool, fn func(*ClientRecord) error) error

	// Scan calls fn for every client record in key order. Returning false
	// from fn stops the scan early.
	Scan(ctx context.Context, fn func(*ClientRecord) (bool, error)) error

	// Close releases the underlying storage.
	Close() error
}

// FileField names a FileRecord field usable for exact-match lookup.
type FileField int

const (
	// ByName matches on the client-visible file name.
	ByName FileField = iota
	// ByID matches on the storage-assigned file id.
	ByID
)

// Store implements the directory's metadata operations on top of a
// RecordStore. It holds no state of its own.
type Store struct {
	records RecordStore
}

// NewStore creates a directory store over the given persistence.
func NewStore(records RecordStore) *Store {
	return &Store{records: records}
}

// Close releases the underlying persistence.
func (s *Store) Close() error {
	return s.records.Close()
}

// FindClient returns the record for clientID, or ErrNotFound.
func (s *Store) FindClient(ctx context.Context, clientID string) (*ClientRecord, error) {
	return s.records.Get(ctx, clientID)
}

// FindFile returns the client's first file whose field matches value, in
// storage order. Per-client uniqueness of names and ids means ties should not
// occur; if they do, the first record wins.
func (s *Store) FindFile(ctx context.Context, clientID string, field FileField, value string) (*FileRecord, error) {
	client, err := s.records.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}

	for i := range client.Files {
		f := &client.Files[i]
		if fileFieldValue(f, field) == value {
			return f, nil
		}
	}
	return nil, ErrNotFound
}

func fileFieldValue(f *FileRecord, field FileField) string {
	switch field {
	case ByID:
		return f.FileID
	default:
		return f.FileName
	}
}

// AppendFile adds a file to the client's collection, creating the client
// record if this is the first file the directory sees for that id. The file
// id doubles as the idempotency key: appending an id the client already holds
// fails with ErrFileExists and changes nothing.
func (s *Store) AppendFile(ctx context.Context, clientID string, file FileRecord) error {
	if file.FileID == "" {
		return fmt.Errorf("file id is required")
	}

	return s.records.Update(ctx, clientID, true, func(client *ClientRecord) error {
		for i := range client.Files {
			if client.Files[i].FileID == file.FileID {
				return ErrFileExists
			}
		}
		client.Files = append(client.Files, file)
		return nil
	})
}

// RenameFile updates the client-visible name of a file in place. Renaming to
// the current name succeeds and changes nothing, so retries are safe.
func (s *Store) RenameFile(ctx context.Context, clientID, fileID, newName string) error {
	return s.records.Update(ctx, clientID, false, func(client *ClientRecord) error {
		for i := range client.Files {
			if client.Files[i].FileID == fileID {
				client.Files[i].FileName = newName
				return nil
			}
		}
		return ErrNotFound
	})
}

// RemoveFile deletes a file record by id and returns the replica set it
// occupied so the caller can tell those nodes to reclaim capacity. Removal
// matches on identity, not index position, so a concurrent removal of a
// different file cannot shift the target.
func (s *Store) RemoveFile(ctx context.Context, clientID, fileID string) ([]string, error) {
	var replicas []string
	err := s.records.Update(ctx, clientID, false, func(client *ClientRecord) error {
		for i := range client.Files {
			if client.Files[i].FileID == fileID {
				replicas = client.Files[i].Replicas
				client.Files = append(client.Files[:i], client.Files[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return replicas, nil
}

// ListPublicFiles scans all client records and returns the public files of
// the given owner, paginated by offset and limit. An empty ownerID lists
// public files across all clients. Low-frequency discovery path, not a hot
// one; the scan streams records instead of materializing every client.
func (s *Store) ListPublicFiles(ctx context.Context, ownerID string, limit, offset int) ([]PublicFile, error) {
	if limit <= 0 {
		limit = DefaultPublicListLimit
	}

	files := make([]PublicFile, 0, limit)
	skipped := 0

	err := s.records.Scan(ctx, func(client *ClientRecord) (bool, error) {
		if ownerID != "" && client.ClientID != ownerID {
			return true, nil
		}
		for i := range client.Files {
			f := &client.Files[i]
			if f.Private {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			files = append(files, PublicFile{
				OwnerID:  f.OwnerID,
				FileID:   f.FileID,
				FileName: f.FileName,
			})
			if len(files) >= limit {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// DefaultPublicListLimit caps a public-file listing page when the caller
// does not ask for a specific size.
const DefaultPublicListLimit = 100
