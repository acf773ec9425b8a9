// Package web exposes the engine over a JSON HTTP API. Owner identity is
// supplied by the upstream auth layer via the X-Owner-ID header; this
// package never derives it itself.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/quizforge/srs/internal/domain"
	"github.com/quizforge/srs/internal/review"
	"github.com/quizforge/srs/internal/storage"
)

const ownerHeader = "X-Owner-ID"

// Server holds the dependencies for the HTTP server.
type Server struct {
	svc      *review.Service
	router   *http.ServeMux
	validate *validator.Validate
}

// NewServer creates and configures a new server.
func NewServer(svc *review.Service) *Server {
	s := &Server{
		svc:      svc,
		router:   http.NewServeMux(),
		validate: validator.New(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("POST /cards/{id}/review", s.withOwner(s.handleReviewCard))
	s.router.HandleFunc("GET /cards/due", s.withOwner(s.handleDueCards))
	s.router.HandleFunc("GET /cards/{id}/history", s.withOwner(s.handleHistory))
	s.router.HandleFunc("PUT /cards/{id}/bookmark", s.withOwner(s.handleBookmark))
	s.router.HandleFunc("GET /stats", s.withOwner(s.handleStats))
	s.router.HandleFunc("POST /sessions", s.withOwner(s.handleCreateSession))
	s.router.HandleFunc("DELETE /sessions/{id}", s.withOwner(s.handleDeleteSession))
}

// withOwner rejects requests that arrive without an owner identity.
func (s *Server) withOwner(next func(w http.ResponseWriter, r *http.Request, ownerID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := r.Header.Get(ownerHeader)
		if ownerID == "" {
			http.Error(w, "missing "+ownerHeader+" header", http.StatusUnauthorized)
			return
		}
		next(w, r, ownerID)
	}
}

type reviewRequest struct {
	Rating string `json:"rating" validate:"required"`
}

func (s *Server) handleReviewCard(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req reviewRequest
	if !s.decode(w, r, &req) {
		return
	}
	rating, err := domain.ParseRating(req.Rating)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.svc.ReviewCard(ownerID, r.PathValue("id"), rating)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDueCards(w http.ResponseWriter, r *http.Request, ownerID string) {
	q := storage.DueQuery{SessionID: r.URL.Query().Get("session")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		q.Limit = limit
	}

	cards, err := s.svc.DueCards(ownerID, q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if cards == nil {
		cards = []domain.Card{}
	}
	s.writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, ownerID string) {
	logs, err := s.svc.History(ownerID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if logs == nil {
		logs = []domain.ReviewLog{}
	}
	s.writeJSON(w, http.StatusOK, logs)
}

type bookmarkRequest struct {
	Bookmarked *bool `json:"bookmarked" validate:"required"`
}

func (s *Server) handleBookmark(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req bookmarkRequest
	if !s.decode(w, r, &req) {
		return
	}
	card, err := s.svc.SetBookmark(ownerID, r.PathValue("id"), *req.Bookmarked)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, ownerID string) {
	stats, err := s.svc.Stats(ownerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

type createSessionRequest struct {
	Name  string            `json:"name" validate:"required"`
	Cards []review.CardSpec `json:"cards" validate:"required,min=1,dive"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req createSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	session, err := s.svc.CreateSession(ownerID, req.Name, req.Cards)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request, ownerID string) {
	deleted, err := s.svc.DeleteSession(ownerID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"deletedCount": deleted})
}

// decode unmarshals and validates a JSON request body, writing a 400 and
// returning false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, err)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps the engine's error taxonomy to HTTP statuses. Invariant
// violations and storage failures are server-side problems and are logged;
// clients get no internal detail.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidRating):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvariantViolation):
		slog.Error("card state corrupt", "error", err)
		http.Error(w, "corrupt card state", http.StatusInternalServerError)
	case errors.Is(err, domain.ErrStorage):
		slog.Error("storage failure", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	default:
		http.Error(w, "bad request", http.StatusBadRequest)
	}
}
