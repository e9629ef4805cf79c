package dirsvc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/filemesh/filemesh/internal/directory"
	"github.com/filemesh/filemesh/pkg/proto"
)

// handleNotifyFile receives new-file (POST) and renamed-file (PUT)
// notifications from storage nodes.
func (s *Server) handleNotifyFile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleNewFile(w, r)
	case http.MethodPut:
		s.handleRenameFile(w, r)
	default:
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleNewFile assigns the replica set for a freshly stored file and appends
// its record, creating the client record on first sight. The file id is the
// idempotency key: a node retrying after a timeout gets 409, not a duplicate.
func (s *Server) handleNewFile(w http.ResponseWriter, r *http.Request) {
	var req proto.NotifyFileRequest
	if err := decodeBody(r, &req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ClientID == "" || req.FileID == "" || req.FileName == "" {
		s.jsonError(w, "client id, file id and file name required", http.StatusBadRequest)
		return
	}

	private := s.cfg.DefaultPrivate
	if req.Private != nil {
		private = *req.Private
	}

	replicas := s.balancer.AssignReplicas()

	ctx, cancel := s.storeCtx(r)
	defer cancel()

	err := s.store.AppendFile(ctx, req.ClientID, directory.FileRecord{
		FileID:   req.FileID,
		FileName: req.FileName,
		OwnerID:  req.ClientID,
		Private:  private,
		Replicas: replicas,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.Notifications.WithLabelValues("new").Inc()

	log.Info().
		Str("client", req.ClientID).
		Str("file_id", req.FileID).
		Int("replicas", len(replicas)).
		Msg("file registered")

	s.writeJSON(w, proto.NotifyFileResponse{Replicas: replicas})
}

// handleRenameFile updates the client-visible name for a file id.
func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	var req proto.RenameFileRequest
	if err := decodeBody(r, &req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ClientID == "" || req.FileID == "" || req.FileName == "" {
		s.jsonError(w, "client id, file id and file name required", http.StatusBadRequest)
		return
	}

	ctx, cancel := s.storeCtx(r)
	defer cancel()

	if err := s.store.RenameFile(ctx, req.ClientID, req.FileID, req.FileName); err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.Notifications.WithLabelValues("rename").Inc()

	log.Info().
		Str("client", req.ClientID).
		Str("file_id", req.FileID).
		Str("file_name", req.FileName).
		Msg("file renamed")

	s.writeJSON(w, proto.StatusResponse{Status: "ok"})
}

// handleDeleteFile removes a file record and returns the replica set it
// occupied so the caller can reclaim capacity on those nodes.
// Path: /api/v1/notify/file/{clientID}/{fileID}
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientID, fileID, err := splitNotifyPath(r.URL.Path)
	if err != nil {
		s.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := s.storeCtx(r)
	defer cancel()

	replicas, err := s.store.RemoveFile(ctx, clientID, fileID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.Notifications.WithLabelValues("delete").Inc()

	log.Info().
		Str("client", clientID).
		Str("file_id", fileID).
		Msg("file deleted")

	s.writeJSON(w, proto.DeleteFileResponse{Replicas: replicas})
}

func splitNotifyPath(path string) (clientID, fileID string, err error) {
	rest := strings.TrimPrefix(path, "/api/v1/notify/file/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected /api/v1/notify/file/{clientId}/{fileId}")
	}
	return parts[0], parts[1], nil
}

func decodeBody(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}
