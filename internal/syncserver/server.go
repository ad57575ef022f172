// Package syncserver serves the reading position sync API.
package syncserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/yuanying/epub-reader/internal/domain"
	"github.com/yuanying/epub-reader/internal/logger"
	"github.com/yuanying/epub-reader/internal/validation"
)

const maxBodyBytes = 4 << 20

// Config tunes the server.
type Config struct {
	// RequestsPerSecond and Burst bound each client address.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the limits used by the serve command.
func DefaultConfig() Config {
	return Config{RequestsPerSecond: 5, Burst: 20}
}

// Server holds the HTTP handlers.
type Server struct {
	db        *DB
	router    *chi.Mux
	limiter   *keyedLimiter
	validator *validation.Validator
	logger    *slog.Logger
}

// NewServer returns a server backed by db with all routes configured.
func NewServer(db *DB, cfg Config, l *slog.Logger) *Server {
	s := &Server{
		db:        db,
		router:    chi.NewRouter(),
		limiter:   newKeyedLimiter(cfg.RequestsPerSecond, cfg.Burst),
		validator: validation.New(),
		logger:    logger.OrDiscard(l),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(s.rateLimit)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"success": true}, s.logger)
	})
	s.router.Route("/user", func(r chi.Router) {
		r.Get("/generate", s.handleGenerate)
		r.Post("/sync", s.handleSync)
		r.Get("/{uuid}/books", s.handleBooks)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter.allow(ip) {
			s.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			writeJSON(w, http.StatusTooManyRequests, domain.SyncResponse{Error: "too many requests"}, s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleGenerate registers a new user id.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	if err := s.db.CreateUser(r.Context(), id); err != nil {
		s.logger.Error("failed to create user", "error", err)
		writeJSON(w, http.StatusInternalServerError, domain.GenerateResponse{Error: "error creating resource"}, s.logger)
		return
	}
	s.logger.Info("user registered", "uuid", id)
	writeJSON(w, http.StatusOK, domain.GenerateResponse{Success: true, Data: id}, s.logger)
}

// handleSync merges the client's books with the stored ones.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req domain.SyncRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.SyncResponse{Error: "invalid request body"}, s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		var verr *validation.Error
		msg := "invalid request"
		if errors.As(err, &verr) {
			msg = verr.Error()
		}
		writeJSON(w, http.StatusBadRequest, domain.SyncResponse{Error: msg}, s.logger)
		return
	}

	updated, accepted, err := s.db.Sync(r.Context(), req)
	if err != nil {
		s.logger.Error("sync failed", "uuid", req.UserUUID, "error", err)
		writeJSON(w, http.StatusInternalServerError, domain.SyncResponse{Error: "error syncing books"}, s.logger)
		return
	}

	s.logger.Info("sync",
		"uuid", req.UserUUID,
		"received", len(req.Data),
		"returned", len(updated),
		"accepted", len(accepted))
	writeJSON(w, http.StatusOK, domain.SyncResponse{
		Success:       true,
		UpdatedBooks:  updated,
		ServerUpdates: accepted,
	}, s.logger)
}

// handleBooks lists the positions stored for a registered user.
func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	if err := s.validator.Var(id, "uuid"); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.SyncResponse{Error: "invalid user id"}, s.logger)
		return
	}
	ok, err := s.db.UserExists(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to look up user", "uuid", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, domain.SyncResponse{Error: "error listing books"}, s.logger)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, domain.SyncResponse{Error: "unknown user"}, s.logger)
		return
	}
	books, err := s.db.Books(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to list books", "uuid", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, domain.SyncResponse{Error: "error listing books"}, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, domain.SyncResponse{Success: true, UpdatedBooks: books}, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, l *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		l.Error("failed to encode JSON response", "error", err)
	}
}
