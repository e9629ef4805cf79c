// Package proto defines shared protocol messages for filemesh.
package proto

// FileRecord is the client-visible view of a directory entry.
type FileRecord struct {
	FileID   string   `json:"file_id"`   // remote file id assigned by the storage layer
	FileName string   `json:"file_name"` // name the owning client uses
	OwnerID  string   `json:"owner_id"`  // client that owns the underlying bytes
	Private  bool     `json:"private"`
	Replicas []string `json:"replicas"` // storage node addresses holding a copy
}

// ResolveResponse is returned when a file name or id is resolved to an endpoint.
type ResolveResponse struct {
	Endpoint string `json:"endpoint"` // node address plus file path, e.g. "http://node:3000/file/<id>"
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// CoordinatorResponse is returned when a client asks where to start an upload.
type CoordinatorResponse struct {
	Endpoint string `json:"endpoint"`
}

// FileListResponse contains a client's directory entries.
type FileListResponse struct {
	Files []FileRecord `json:"files"`
}

// PublicFile is one entry in a public-file listing.
type PublicFile struct {
	OwnerID  string `json:"owner_id"`
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// PublicFileListResponse contains a page of public files.
type PublicFileListResponse struct {
	Files  []PublicFile `json:"files"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// SharedFileRequest registers a pointer to a file owned by another client.
// It arrives encrypted under the caller's session key.
type SharedFileRequest struct {
	OwnerID  string `json:"owner_id"`
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// NotifyFileRequest is sent by a storage node when a client stores a new file.
type NotifyFileRequest struct {
	ClientID string `json:"client_id"`
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	Private  *bool  `json:"private,omitempty"` // nil means use the server default
}

// NotifyFileResponse acknowledges a new-file notification.
type NotifyFileResponse struct {
	Replicas []string `json:"replicas"` // replica set assigned to the file
}

// RenameFileRequest is sent by a storage node when a client renames a file.
type RenameFileRequest struct {
	ClientID string `json:"client_id"`
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// DeleteFileResponse returns the replica set the deleted file occupied so the
// caller can reclaim capacity on those nodes.
type DeleteFileResponse struct {
	Replicas []string `json:"replicas"`
}

// StatusResponse is a generic acknowledgement.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
