// Package devserver is a self-contained application host for local
// development: it serves the content API the SDK saves to, the login and
// media-picker popup pages the handshakes open, and issues the access keys
// the SDK stores. It is a development collaborator, not a production
// backend.
package devserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultKeyTTL is the lifetime of issued access keys.
const DefaultKeyTTL = 14 * 24 * time.Hour

// Config configures a Server.
type Config struct {
	// Secret signs the access keys. At least 32 bytes.
	Secret []byte
	// KeyTTL is the issued key lifetime. Default: 14 days.
	KeyTTL time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.KeyTTL <= 0 {
		c.KeyTTL = DefaultKeyTTL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server hosts the dev application endpoints.
type Server struct {
	cfg    Config
	store  *Store
	logger *slog.Logger
	router chi.Router
}

// New creates a Server over an open store.
func New(store *Store, cfg Config) (*Server, error) {
	cfg.defaults()
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("devserver: secret shorter than %d bytes", minSecretLen)
	}

	s := &Server{cfg: cfg, store: store, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/login", s.servePage(loginPage))
	r.Get("/media", s.servePage(mediaPage))

	r.Route("/apps/{appID}", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Get("/content", s.handleListContent)
		r.Get("/media", s.handleListMedia)
		r.With(s.requireKey).Put("/content/{elementID}", s.handlePutContent)
	})

	s.router = r
	return s, nil
}

// Handler returns the HTTP handler, for mounting or for httptest.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) servePage(page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	if err := s.store.Authenticate(r.Context(), appID, body.Email, body.Password); err != nil {
		s.logger.Warn("devserver: login refused", "app_id", appID, "email", body.Email)
		http.Error(w, "bad credentials", http.StatusUnauthorized)
		return
	}

	key, err := issueKey(s.cfg.Secret, appID, body.Email, s.cfg.KeyTTL)
	if err != nil {
		s.logger.Error("devserver: issue key failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("devserver: key issued", "app_id", appID, "email", body.Email)
	s.writeJSON(w, map[string]string{"key": key})
}

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.Records(r.Context(), chi.URLParam(r, "appID"))
	if err != nil {
		s.logger.Error("devserver: list content failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, records)
}

func (s *Server) handlePutContent(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	elementID := chi.URLParam(r, "elementID")

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	rec, err := s.store.PutRecord(r.Context(), appID, elementID, body.Content)
	if err != nil {
		s.logger.Error("devserver: put content failed", "element_id", elementID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, rec)
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.Media(r.Context(), chi.URLParam(r, "appID"))
	if err != nil {
		s.logger.Error("devserver: list media failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, items)
}

// requireKey guards the write endpoints with a bearer key check.
func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		appID := chi.URLParam(r, "appID")

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		if _, err := validateKey(s.cfg.Secret, appID, raw); err != nil {
			s.logger.Warn("devserver: key rejected", "app_id", appID, "error", err)
			http.Error(w, "invalid key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("devserver: encode response failed", "error", err)
	}
}
