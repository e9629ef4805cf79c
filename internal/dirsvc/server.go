// Package dirsvc implements the directory service API: it composes the
// ticket authenticator, the directory store and the replica balancer into
// the HTTP surface clients and storage nodes talk to.
package dirsvc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/filemesh/filemesh/internal/balancer"
	"github.com/filemesh/filemesh/internal/config"
	"github.com/filemesh/filemesh/internal/directory"
	"github.com/filemesh/filemesh/internal/identity"
	"github.com/filemesh/filemesh/internal/ticket"
	"github.com/filemesh/filemesh/pkg/proto"
)

// IdentityResolver resolves an owner email address to a client id.
type IdentityResolver interface {
	Resolve(ctx context.Context, email string) (string, error)
}

// Server is the directory service. All durable state lives in the store;
// the balancer carries the only process-wide ephemeral state.
type Server struct {
	cfg          *config.ServerConfig
	mux          *http.ServeMux
	store        *directory.Store
	balancer     *balancer.Balancer
	auth         *ticket.Authenticator
	identity     IdentityResolver
	metrics      *Metrics
	storeTimeout time.Duration
}

// NewServer creates a directory service over the given store. The identity
// resolver may be nil when no identity service is configured; the public
// listing endpoint then rejects email lookups.
func NewServer(cfg *config.ServerConfig, store *directory.Store, resolver IdentityResolver) (*Server, error) {
	serverKey, err := config.DecodeServerKey(cfg.ServerKey)
	if err != nil {
		return nil, err
	}
	auth, err := ticket.NewAuthenticator(serverKey)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:          cfg,
		mux:          http.NewServeMux(),
		store:        store,
		balancer:     balancer.New(cfg.Coordinators, cfg.StorageNodes),
		auth:         auth,
		identity:     resolver,
		metrics:      InitMetrics(nil),
		storeTimeout: cfg.StoreTimeoutDuration(),
	}

	srv.setupRoutes()
	return srv, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	// Inter-service notification paths, reached by storage nodes over the
	// private network. Bearer token, not ticket.
	s.mux.HandleFunc("/api/v1/notify/file", s.withNodeAuth(s.handleNotifyFile))
	s.mux.HandleFunc("/api/v1/notify/file/", s.withNodeAuth(s.handleDeleteFile))

	// Client-facing paths, every one behind the ticket authenticator
	s.mux.HandleFunc("/api/v1/files", s.withTicket(s.handleListFiles))
	s.mux.HandleFunc("/api/v1/files/resolve", s.withTicket(s.handleResolveByName))
	s.mux.HandleFunc("/api/v1/files/", s.withTicket(s.handleFileByID))
	s.mux.HandleFunc("/api/v1/coordinator", s.withTicket(s.handleCoordinator))
	s.mux.HandleFunc("/api/v1/public", s.withTicket(s.handlePublicFiles))
	s.mux.HandleFunc("/api/v1/shared", s.withTicket(s.handleRegisterShared))

	if s.cfg.Metrics.Enabled {
		s.mux.Handle("/metrics", promhttp.Handler())
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// withTicket verifies the session ticket on the Authorization header and
// hands the verified identity to the handler. The header carries the
// encrypted ticket blob directly.
func (s *Server) withTicket(next func(http.ResponseWriter, *http.Request, *ticket.Ticket)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tk, err := s.auth.Open(r.Header.Get("Authorization"))
		if err != nil {
			s.metrics.AuthFailures.WithLabelValues(authFailureReason(err)).Inc()
			s.writeError(w, err)
			return
		}
		next(w, r, tk)
	}
}

// withNodeAuth guards the storage-node notification endpoints with the
// shared node token. Nodes sit inside the service trust boundary and do not
// carry client tickets.
func (s *Server) withNodeAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+s.cfg.NodeToken {
			s.metrics.AuthFailures.WithLabelValues("node_token").Inc()
			s.jsonError(w, "invalid node token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func authFailureReason(err error) string {
	if errors.Is(err, ticket.ErrExpired) {
		return "expired"
	}
	return "invalid"
}

// storeCtx bounds a persistence call so a wedged store fails the request
// instead of pinning it.
func (s *Server) storeCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.storeTimeout)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, proto.StatusResponse{Status: "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var upstream *identity.UpstreamError

	switch {
	case errors.Is(err, ticket.ErrUnauthenticated), errors.Is(err, ticket.ErrExpired):
		s.jsonError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, directory.ErrNotFound):
		s.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, directory.ErrFileExists):
		s.jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, balancer.ErrNoReplicaAvailable), errors.Is(err, balancer.ErrNoCoordinator):
		s.jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		// Retryable: the caller must not assume the write happened
		s.jsonError(w, "store timeout", http.StatusServiceUnavailable)
	case errors.As(err, &upstream):
		code := http.StatusBadGateway
		if upstream.StatusCode == http.StatusNotFound {
			code = http.StatusNotFound
		}
		s.jsonError(w, upstream.Message, code)
	default:
		log.Error().Err(err).Msg("internal error")
		s.jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(proto.ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// ListenAndServe starts the directory service.
func (s *Server) ListenAndServe() error {
	log.Info().Str("listen", s.cfg.Listen).Msg("starting directory service")
	return http.ListenAndServe(s.cfg.Listen, s.logRequests(s))
}

// logRequests logs one line per request with a generated request id.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()

		next.ServeHTTP(w, r)

		log.Debug().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}
