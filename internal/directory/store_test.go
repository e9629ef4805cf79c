package directory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemesh/filemesh/internal/directory"
	badgerstore "github.com/filemesh/filemesh/internal/directory/badger"
	memorystore "github.com/filemesh/filemesh/internal/directory/memory"
)

// runStoreTests runs the same suite against every RecordStore implementation.
func runStoreTests(t *testing.T, open func(t *testing.T) directory.RecordStore) {
	newStore := func(t *testing.T) *directory.Store {
		records := open(t)
		t.Cleanup(func() { _ = records.Close() })
		return directory.NewStore(records)
	}

	file := func(id, name string) directory.FileRecord {
		return directory.FileRecord{
			FileID:   id,
			FileName: name,
			OwnerID:  "c1",
			Replicas: []string{"http://node1:3000", "http://node2:3000"},
		}
	}

	t.Run("AppendThenFindByID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		want := file("f1", "notes.txt")
		require.NoError(t, s.AppendFile(ctx, "c1", want))

		got, err := s.FindFile(ctx, "c1", directory.ByID, "f1")
		require.NoError(t, err)
		assert.Equal(t, want, *got)

		byName, err := s.FindFile(ctx, "c1", directory.ByName, "notes.txt")
		require.NoError(t, err)
		assert.Equal(t, want, *byName)
	})

	t.Run("FindClient_Unknown", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindClient(context.Background(), "nobody")
		assert.ErrorIs(t, err, directory.ErrNotFound)
	})

	t.Run("FindFile_NoMatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.AppendFile(ctx, "c1", file("f1", "notes.txt")))

		_, err := s.FindFile(ctx, "c1", directory.ByName, "other.txt")
		assert.ErrorIs(t, err, directory.ErrNotFound)
	})

	t.Run("Append_DuplicateID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.AppendFile(ctx, "c1", file("f1", "notes.txt")))
		err := s.AppendFile(ctx, "c1", file("f1", "retry.txt"))
		assert.ErrorIs(t, err, directory.ErrFileExists)

		// The retry changed nothing
		client, err := s.FindClient(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, client.Files, 1)
		assert.Equal(t, "notes.txt", client.Files[0].FileName)
	})

	t.Run("Rename", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.AppendFile(ctx, "c1", file("f1", "notes.txt")))

		require.NoError(t, s.RenameFile(ctx, "c1", "f1", "renamed.txt"))

		got, err := s.FindFile(ctx, "c1", directory.ByID, "f1")
		require.NoError(t, err)
		assert.Equal(t, "renamed.txt", got.FileName)

		// Renaming to the same name twice is idempotent
		require.NoError(t, s.RenameFile(ctx, "c1", "f1", "renamed.txt"))
		got, err = s.FindFile(ctx, "c1", directory.ByID, "f1")
		require.NoError(t, err)
		assert.Equal(t, "renamed.txt", got.FileName)
	})

	t.Run("Rename_Missing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		assert.ErrorIs(t, s.RenameFile(ctx, "c1", "f1", "x"), directory.ErrNotFound)

		require.NoError(t, s.AppendFile(ctx, "c1", file("f1", "notes.txt")))
		assert.ErrorIs(t, s.RenameFile(ctx, "c1", "f2", "x"), directory.ErrNotFound)
	})

	t.Run("Remove", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.AppendFile(ctx, "c1", file("f1", "notes.txt")))
		require.NoError(t, s.AppendFile(ctx, "c1", file("f2", "other.txt")))

		replicas, err := s.RemoveFile(ctx, "c1", "f1")
		require.NoError(t, err)
		assert.Equal(t, []string{"http://node1:3000", "http://node2:3000"}, replicas)

		_, err = s.FindFile(ctx, "c1", directory.ByID, "f1")
		assert.ErrorIs(t, err, directory.ErrNotFound)
		_, err = s.FindFile(ctx, "c1", directory.ByName, "notes.txt")
		assert.ErrorIs(t, err, directory.ErrNotFound)

		// The other file is untouched
		got, err := s.FindFile(ctx, "c1", directory.ByID, "f2")
		require.NoError(t, err)
		assert.Equal(t, "other.txt", got.FileName)
	})

	t.Run("Remove_Missing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.AppendFile(ctx, "c1", file("f1", "notes.txt")))

		_, err := s.RemoveFile(ctx, "c1", "f9")
		assert.ErrorIs(t, err, directory.ErrNotFound)

		// Nothing else was mutated
		client, err := s.FindClient(ctx, "c1")
		require.NoError(t, err)
		assert.Len(t, client.Files, 1)
	})

	t.Run("ConcurrentAppends_NoLostUpdate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const writers = 10
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				f := file(fmt.Sprintf("f%d", i), fmt.Sprintf("file-%d.txt", i))
				assert.NoError(t, s.AppendFile(ctx, "c1", f))
			}(i)
		}
		wg.Wait()

		client, err := s.FindClient(ctx, "c1")
		require.NoError(t, err)
		assert.Len(t, client.Files, writers)

		seen := make(map[string]bool)
		for _, f := range client.Files {
			seen[f.FileID] = true
		}
		assert.Len(t, seen, writers)
	})

	t.Run("ListPublicFiles", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.AppendFile(ctx, "c1", directory.FileRecord{
			FileID: "f1", FileName: "public.txt", OwnerID: "c1",
		}))
		require.NoError(t, s.AppendFile(ctx, "c1", directory.FileRecord{
			FileID: "f2", FileName: "secret.txt", OwnerID: "c1", Private: true,
		}))
		require.NoError(t, s.AppendFile(ctx, "c2", directory.FileRecord{
			FileID: "f3", FileName: "also-public.txt", OwnerID: "c2",
		}))

		// Scoped to one owner
		files, err := s.ListPublicFiles(ctx, "c1", 0, 0)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "f1", files[0].FileID)
		assert.Equal(t, "public.txt", files[0].FileName)

		// Across all clients
		files, err = s.ListPublicFiles(ctx, "", 0, 0)
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("ListPublicFiles_Pagination", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			require.NoError(t, s.AppendFile(ctx, "c1", directory.FileRecord{
				FileID: fmt.Sprintf("f%d", i), FileName: fmt.Sprintf("file-%d", i), OwnerID: "c1",
			}))
		}

		page1, err := s.ListPublicFiles(ctx, "c1", 2, 0)
		require.NoError(t, err)
		require.Len(t, page1, 2)

		page2, err := s.ListPublicFiles(ctx, "c1", 2, 2)
		require.NoError(t, err)
		require.Len(t, page2, 2)

		page3, err := s.ListPublicFiles(ctx, "c1", 2, 4)
		require.NoError(t, err)
		require.Len(t, page3, 1)

		assert.NotEqual(t, page1[0].FileID, page2[0].FileID)
	})

	t.Run("SharedCopy_KeepsOwnerAndReplicas", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		owned := file("f1", "notes.txt")
		require.NoError(t, s.AppendFile(ctx, "c1", owned))

		ownerFile, err := s.FindFile(ctx, "c1", directory.ByID, "f1")
		require.NoError(t, err)

		shared := ownerFile.SharedCopy("my-copy.txt")
		require.NoError(t, s.AppendFile(ctx, "c2", shared))

		got, err := s.FindFile(ctx, "c2", directory.ByID, "f1")
		require.NoError(t, err)
		assert.Equal(t, "my-copy.txt", got.FileName)
		assert.Equal(t, "c1", got.OwnerID)
		assert.Equal(t, ownerFile.Replicas, got.Replicas)

		// The owner's record is unchanged
		ownerAfter, err := s.FindFile(ctx, "c1", directory.ByID, "f1")
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", ownerAfter.FileName)
	})
}

func TestStore_Memory(t *testing.T) {
	runStoreTests(t, func(t *testing.T) directory.RecordStore {
		return memorystore.NewStore()
	})
}

func TestStore_Badger(t *testing.T) {
	runStoreTests(t, func(t *testing.T) directory.RecordStore {
		s, err := badgerstore.NewStore(t.TempDir())
		require.NoError(t, err)
		return s
	})
}
