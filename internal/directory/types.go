// Package directory owns the authoritative mapping from client identities to
// the files they hold and, for each file, the storage nodes carrying a
// replica. It stores metadata only; file bytes never pass through here.
package directory

// FileRecord is one directory entry in a client's file collection.
//
// FileID is assigned by the storage layer and immutable once set; it is never
// reused across files within the lifetime of one directory instance, even
// after deletion. The replica set is assigned exactly once, at creation.
type FileRecord struct {
	FileID   string   `json:"file_id"`
	FileName string   `json:"file_name"` // unique within one client's files, mutable
	OwnerID  string   `json:"owner_id"`  // client owning the underlying bytes
	Private  bool     `json:"private"`
	Replicas []string `json:"replicas"`
}

// SharedCopy returns the record a referencing client stores when the owner
// grants it access: same file id, owner and replica set, but the referencing
// client's own name for the file.
func (f FileRecord) SharedCopy(fileName string) FileRecord {
	replicas := make([]string, len(f.Replicas))
	copy(replicas, f.Replicas)
	return FileRecord{
		FileID:   f.FileID,
		FileName: fileName,
		OwnerID:  f.OwnerID,
		Private:  f.Private,
		Replicas: replicas,
	}
}

// ClientRecord holds everything the directory knows about one client.
// Records are created lazily on the first file-owning event for a previously
// unseen client id and are never deleted.
type ClientRecord struct {
	ClientID string       `json:"client_id"`
	Files    []FileRecord `json:"files"`
}

// Clone returns a deep copy of the record.
func (c *ClientRecord) Clone() *ClientRecord {
	clone := &ClientRecord{ClientID: c.ClientID}
	if c.Files != nil {
		clone.Files = make([]FileRecord, len(c.Files))
		for i, f := range c.Files {
			replicas := make([]string, len(f.Replicas))
			copy(replicas, f.Replicas)
			f.Replicas = replicas
			clone.Files[i] = f
		}
	}
	return clone
}

// PublicFile is one entry in a public-file listing.
type PublicFile struct {
	OwnerID  string
	FileID   string
	FileName string
}
