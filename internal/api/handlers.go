package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pathlearn/roadmap-engine/internal/completion"
	"github.com/pathlearn/roadmap-engine/internal/graph"
	"github.com/pathlearn/roadmap-engine/internal/models"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondStoreError maps completion errors to HTTP status codes
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case completion.IsNotFound(err):
		respondError(w, http.StatusNotFound, "not_found", "user, exercise, or roadmap not found")
	case completion.IsUnavailable(err):
		respondError(w, http.StatusBadGateway, "store_unavailable", "completion store unavailable, retry the request")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Roadmap handlers

func (s *Server) handleListRoadmaps(w http.ResponseWriter, r *http.Request) {
	roadmaps, err := s.repo.ListRoadmaps(r.Context())
	if err != nil {
		slog.Error("failed to list roadmaps", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list roadmaps")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"roadmaps": roadmaps,
		"total":    len(roadmaps),
	})
}

func (s *Server) handleGetRoadmap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "roadmap id is required")
		return
	}

	g, err := s.repo.GetRoadmap(r.Context(), id)
	if err != nil {
		slog.Error("failed to get roadmap", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get roadmap")
		return
	}
	if g == nil {
		respondError(w, http.StatusNotFound, "not_found", "roadmap not found")
		return
	}

	// When a user id is supplied the graph carries per-exercise completed flags
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		annotated, err := s.manager.Annotate(r.Context(), userID, g)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		g = annotated
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"roadmap":       g,
		"by_difficulty": graph.CountByDifficulty(g),
	})
}

// Progress handlers

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	if id == "" || userID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "roadmap id and user_id are required")
		return
	}

	report, err := s.manager.Report(r.Context(), userID, id)
	if err != nil {
		slog.Error("failed to build progress report", "error", err, "roadmap", id, "user", userID)
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "roadmap id is required")
		return
	}

	var req models.ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}
	if req.ExerciseID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "exercise_id is required")
		return
	}

	if err := s.manager.Toggle(r.Context(), req.UserID, id, req.ExerciseID, req.Completed); err != nil {
		// The manager already rolled the optimistic state back
		slog.Error("toggle failed", "error", err, "roadmap", id, "user", req.UserID, "exercise", req.ExerciseID)
		respondStoreError(w, err)
		return
	}

	report, err := s.manager.Report(r.Context(), req.UserID, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// handleRefreshUser drops the user's cached completion state so the next
// read refetches from the store
func (s *Server) handleRefreshUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "user id is required")
		return
	}

	if err := s.manager.InvalidateUser(r.Context(), userID); err != nil {
		slog.Error("failed to invalidate user cache", "error", err, "user", userID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to invalidate cache")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "cache invalidated",
	})
}
