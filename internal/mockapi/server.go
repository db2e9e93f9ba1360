// ABOUTME: Mock backend HTTP server for local toolbench development
// ABOUTME: Routes, bearer auth middleware and envelope response helpers

package mockapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/calderhq/toolbench/internal/api"
	"github.com/calderhq/toolbench/internal/auth"
	"github.com/calderhq/toolbench/internal/store"
)

// Server implements the toolbench backend API against a local SQLite store.
// Every response body is wrapped in the uniform envelope.
type Server struct {
	store     *store.SQLiteStore
	authority *auth.Authority
	logger    *slog.Logger

	// execDelay paces the streamed execution events so the UI has
	// something to render. Tests set it to zero.
	execDelay time.Duration
}

// New creates a mock API server.
func New(st *store.SQLiteStore, authority *auth.Authority, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     st,
		authority: authority,
		logger:    logger.With("component", "mockapi"),
		execDelay: 150 * time.Millisecond,
	}
}

// Handler returns the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/auth/register", s.handleRegister)
	mux.HandleFunc("/auth/refresh", s.handleRefresh)
	mux.HandleFunc("/auth/logout", s.handleLogout)
	mux.HandleFunc("/auth/me", s.requireAuth(s.handleMe))

	mux.HandleFunc("/tools", s.requireAuth(s.handleTools))
	mux.HandleFunc("/tools/active", s.requireAuth(s.handleToggle))
	mux.HandleFunc("/tools/import", s.requireAuth(s.handleImport))
	mux.HandleFunc("/tools/export", s.requireAuth(s.handleExport))
	mux.HandleFunc("/tools/inheritable", s.requireAuth(s.handleInheritable))
	mux.HandleFunc("/tools/execute", s.requireAuth(s.handleExecute))
	mux.HandleFunc("/tools/execute/stream", s.requireAuth(s.handleExecuteStream))

	return mux
}

type contextKey string

const userContextKey contextKey = "mockapi_user"

// requireAuth verifies the bearer token and loads the account into the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := s.authority.VerifyAccess(token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		user, err := s.store.GetUserByID(r.Context(), userID)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "unknown account")
			return
		}
		if !user.IsActive {
			s.writeError(w, http.StatusForbidden, "account disabled")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// currentUser returns the authenticated account placed by requireAuth.
func currentUser(r *http.Request) *store.User {
	u, _ := r.Context().Value(userContextKey).(*store.User)
	return u
}

// idParam parses the ?id= query parameter.
func idParam(r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeJSON writes an envelope with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, env api.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// writeData writes a successful envelope around payload.
func (s *Server) writeData(w http.ResponseWriter, payload any) {
	s.writeDataMessage(w, payload, "")
}

// writeDataMessage writes a successful envelope with an explicit message.
func (s *Server) writeDataMessage(w http.ResponseWriter, payload any, message string) {
	env := api.Envelope{Success: true, Message: message}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "encoding payload")
			return
		}
		env.Data = data
	}
	s.writeJSON(w, http.StatusOK, env)
}

// writeError writes a failed envelope with the given status and error text.
func (s *Server) writeError(w http.ResponseWriter, status int, errText string) {
	s.writeJSON(w, status, api.Envelope{Success: false, Error: errText})
}

// decodeBody decodes a JSON request body into out.
func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}
