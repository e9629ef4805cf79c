package dirsvc

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/filemesh/filemesh/internal/directory"
	"github.com/filemesh/filemesh/internal/ticket"
	"github.com/filemesh/filemesh/pkg/proto"
)

// fileEndpoint builds the URL a client uses to fetch a file from a node.
func fileEndpoint(node, fileID string) string {
	return strings.TrimSuffix(node, "/") + "/file/" + fileID
}

// handleResolveByName resolves a client's file name to a read endpoint on the
// least-loaded replica.
func (s *Server) handleResolveByName(w http.ResponseWriter, r *http.Request, tk *ticket.Ticket) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		s.jsonError(w, "file name required", http.StatusBadRequest)
		return
	}

	ctx, cancel := s.storeCtx(r)
	defer cancel()

	file, err := s.store.FindFile(ctx, tk.ClientID, directory.ByName, name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.resolveFile(w, file)
}

// handleFileByID resolves a file id back to an endpoint and the client's name
// for it (reverse lookup).
func (s *Server) handleFileByID(w http.ResponseWriter, r *http.Request, tk *ticket.Ticket) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	fileID := strings.TrimPrefix(r.URL.Path, "/api/v1/files/")
	if fileID == "" || strings.Contains(fileID, "/") {
		s.jsonError(w, "file id required", http.StatusBadRequest)
		return
	}

	ctx, cancel := s.storeCtx(r)
	defer cancel()

	file, err := s.store.FindFile(ctx, tk.ClientID, directory.ByID, fileID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.resolveFile(w, file)
}

// resolveFile picks a replica for the record and writes the endpoint response.
func (s *Server) resolveFile(w http.ResponseWriter, file *directory.FileRecord) {
	node, err := s.balancer.PickReplica(file.Replicas)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.ReplicaSelections.WithLabelValues(node).Inc()

	s.writeJSON(w, proto.ResolveResponse{
		Endpoint: fileEndpoint(node, file.FileID),
		FileID:   file.FileID,
		FileName: file.FileName,
	})
}

// handleCoordinator returns the storage node a client should contact to
// begin an upload.
func (s *Server) handleCoordinator(w http.ResponseWriter, r *http.Request, _ *ticket.Ticket) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	addr, err := s.balancer.NextCoordinator()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.CoordinatorAssignments.WithLabelValues(addr).Inc()

	s.writeJSON(w, proto.CoordinatorResponse{Endpoint: addr})
}

// handleListFiles returns the caller's own directory entries. An identity
// the directory has never seen is an authentication-level failure here, not
// a not-found: the ticket names a client with no record.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request, tk *ticket.Ticket) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := s.storeCtx(r)
	defer cancel()

	client, err := s.store.FindClient(ctx, tk.ClientID)
	if errors.Is(err, directory.ErrNotFound) {
		s.jsonError(w, "unknown client", http.StatusUnauthorized)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	files := make([]proto.FileRecord, 0, len(client.Files))
	for _, f := range client.Files {
		files = append(files, proto.FileRecord{
			FileID:   f.FileID,
			FileName: f.FileName,
			OwnerID:  f.OwnerID,
			Private:  f.Private,
			Replicas: f.Replicas,
		})
	}

	s.writeJSON(w, proto.FileListResponse{Files: files})
}

// handlePublicFiles lists an owner's public files, the owner named by email
// and resolved through the identity service.
func (s *Server) handlePublicFiles(w http.ResponseWriter, r *http.Request, _ *ticket.Ticket) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	email := r.URL.Query().Get("owner")
	if email == "" {
		s.jsonError(w, "owner email required", http.StatusBadRequest)
		return
	}
	if s.identity == nil {
		s.jsonError(w, "identity lookup not configured", http.StatusServiceUnavailable)
		return
	}

	limit := queryInt(r, "limit", directory.DefaultPublicListLimit)
	offset := queryInt(r, "offset", 0)

	ownerID, err := s.identity.Resolve(r.Context(), email)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := s.storeCtx(r)
	defer cancel()

	files, err := s.store.ListPublicFiles(ctx, ownerID, limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(files) == 0 && offset == 0 {
		s.jsonError(w, "owner has no public files", http.StatusNotFound)
		return
	}

	resp := proto.PublicFileListResponse{
		Files:  make([]proto.PublicFile, 0, len(files)),
		Limit:  limit,
		Offset: offset,
	}
	for _, f := range files {
		resp.Files = append(resp.Files, proto.PublicFile{
			OwnerID:  f.OwnerID,
			FileID:   f.FileID,
			FileName: f.FileName,
		})
	}

	s.writeJSON(w, resp)
}

// sharedFileBody is the outer request carrying the encrypted payload.
type sharedFileBody struct {
	Encrypted string `json:"encrypted"`
}

// handleRegisterShared registers a pointer to a file another client owns.
// The share details travel encrypted under the caller's session key.
func (s *Server) handleRegisterShared(w http.ResponseWriter, r *http.Request, tk *ticket.Ticket) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body sharedFileBody
	if err := decodeBody(r, &body); err != nil || body.Encrypted == "" {
		s.jsonError(w, "encrypted payload required", http.StatusBadRequest)
		return
	}

	var req proto.SharedFileRequest
	if err := s.auth.OpenPayload(tk, body.Encrypted, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.OwnerID == "" || req.FileID == "" {
		s.jsonError(w, "owner id and file id required", http.StatusBadRequest)
		return
	}

	ctx, cancel := s.storeCtx(r)
	defer cancel()

	ownerFile, err := s.store.FindFile(ctx, req.OwnerID, directory.ByID, req.FileID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = ownerFile.FileName
	}

	if err := s.store.AppendFile(ctx, tk.ClientID, ownerFile.SharedCopy(fileName)); err != nil {
		s.writeError(w, err)
		return
	}

	log.Info().
		Str("client", tk.ClientID).
		Str("owner", req.OwnerID).
		Str("file_id", req.FileID).
		Msg("shared file registered")

	s.writeJSON(w, proto.StatusResponse{Status: "ok"})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
