package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tably-labs/tably/events"
)

// ServerConfig configures a Server instance.
type ServerConfig struct {
	Store      Store
	AuthStore  AuthStore
	Hub        *events.Hub
	CORSOrigin string
	MaxBody    int64
	Logger     *slog.Logger
}

// Server is the Tably HTTP API server. Domain mutation handlers publish
// their events into the hub after their own persistence succeeds.
type Server struct {
	store      Store
	authStore  AuthStore
	hub        *events.Hub
	corsOrigin string
	maxBody    int64
	logger     *slog.Logger
}

// NewServer creates a new Server with the given configuration.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1 MB default
	}
	hub := cfg.Hub
	if hub == nil {
		hub = events.NewHub(events.HubConfig{Logger: logger})
	}
	return &Server{
		store:      cfg.Store,
		authStore:  cfg.AuthStore,
		hub:        hub,
		corsOrigin: corsOrigin,
		maxBody:    maxBody,
		logger:     logger,
	}
}

// Hub exposes the event hub so connection adapters and the reconciler can
// share it.
func (s *Server) Hub() *events.Hub {
	return s.hub
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)

	return handler
}

// RegisterRoutes mounts API routes onto an existing mux. Use this when
// composing with other handlers (e.g. the event stream endpoints).
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	// Restaurant routes
	mux.HandleFunc("GET /api/restaurants", s.handleListRestaurants)
	mux.HandleFunc("GET /api/restaurants/{id}", s.handleGetRestaurant)
	mux.HandleFunc("POST /api/restaurants", s.handleCreateRestaurant)
	mux.HandleFunc("POST /api/restaurants/{id}/toggle", s.handleToggleRestaurant)
	mux.HandleFunc("PUT /api/restaurants/{id}/hours", s.handleUpdateHours)

	// Reservation routes
	mux.HandleFunc("POST /api/restaurants/{id}/reservations", s.handleCreateReservation)
	mux.HandleFunc("PUT /api/reservations/{id}", s.handleUpdateReservation)

	// Sale routes
	mux.HandleFunc("POST /api/restaurants/{id}/sales", s.handleCreateSale)
	mux.HandleFunc("PUT /api/sales/{id}", s.handleUpdateSale)

	// Announcement routes
	mux.HandleFunc("GET /api/announcements", s.handleListAnnouncements)
	mux.HandleFunc("POST /api/announcements", s.handleCreateAnnouncement)

	// Auth routes
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"subscriptions": s.hub.Registry().Len(),
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the standard error envelope.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...string) {
	body := apiError{
		Error: apiErrorBody{
			Code:    code,
			Message: message,
		},
	}
	if len(details) > 0 {
		body.Error.Details = details
	}
	writeJSON(w, status, body)
}

// extractSessionToken pulls the session token from the Authorization
// header, the session cookie, or the token query parameter, in that order.
func extractSessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(AuthCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// identity resolves the request's session to a subscriber identity. The
// boolean is false for unauthenticated requests.
func (s *Server) identity(r *http.Request) (events.Identity, bool) {
	token := extractSessionToken(r)
	if token == "" || s.authStore == nil {
		return events.Identity{}, false
	}

	id, ok, err := NewTokenVerifier(s.authStore).Verify(r.Context(), token)
	if err != nil {
		s.logger.Warn("resolve request identity", "error", err)
		return events.Identity{}, false
	}
	return id, ok
}
