package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prepstack/pack-engine/internal/models"
	"github.com/prepstack/pack-engine/internal/storage"
)

// Uploads above this size are rejected before parsing
const maxUploadBytes = 10 << 20 // 10 MiB

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

// respondStorageError maps repository sentinels to API errors
func respondStorageError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, storage.ErrPackNotFound):
		respondError(w, http.StatusNotFound, "not_found", "pack not found")
	case errors.Is(err, storage.ErrPackNotValid):
		respondError(w, http.StatusBadRequest, "pack_not_valid", "pack is not in a valid state for activation")
	case errors.Is(err, storage.ErrInconsistentState):
		slog.Error("active pack state is inconsistent", "op", op, "error", err)
		respondError(w, http.StatusInternalServerError, "inconsistent_state", "active pack state is inconsistent")
	default:
		slog.Error("request failed", "op", op, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+op)
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
	results := s.healthRegistry.CheckAll(r.Context())

	deps := make(map[string]string, len(results))
	ready := true
	for name, err := range results {
		if err != nil {
			deps[name] = err.Error()
			ready = false
		} else {
			deps[name] = "ok"
		}
	}

	if !ready {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ready",
		"dependencies": deps,
	})
}

// Content pack handlers

func (s *Server) handleUploadPack(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "file field is required")
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		respondError(w, http.StatusBadRequest, "invalid_request", "file must be application/json")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "failed to read file")
		return
	}
	if len(raw) > maxUploadBytes {
		respondError(w, http.StatusBadRequest, "invalid_request", "file too large")
		return
	}

	if !json.Valid(raw) {
		respondError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON file")
		return
	}

	pack, result, err := s.packManager.Upload(r.Context(), raw)
	if err != nil {
		slog.Error("failed to upload pack", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to store pack")
		return
	}

	if !result.IsValid {
		respondError(w, http.StatusBadRequest, "validation_failed", strings.Join(result.ErrorMessages(), ", "))
		return
	}

	respondJSON(w, http.StatusCreated, models.UploadResponse{
		Valid:       true,
		PackID:      pack.ID,
		Name:        pack.Name,
		Version:     pack.Version,
		Warnings:    result.Warnings,
		Performance: result.Performance,
	})
}

func (s *Server) handleGetPack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "pack id is required")
		return
	}

	pack, err := s.packManager.Get(r.Context(), id)
	if err != nil {
		respondStorageError(w, err, "get pack")
		return
	}

	respondJSON(w, http.StatusOK, pack)
}

func (s *Server) handleValidatePack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "pack id is required")
		return
	}

	result, err := s.packManager.Revalidate(r.Context(), id)
	if err != nil {
		respondStorageError(w, err, "validate pack")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleActivatePack(w http.ResponseWriter, r *http.Request) {
	var req models.ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.PackID) == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "pack_id is required")
		return
	}

	pack, err := s.packManager.Activate(r.Context(), req.PackID, req.RequestID)
	if err != nil {
		respondStorageError(w, err, "activate pack")
		return
	}

	respondJSON(w, http.StatusOK, pack)
}

func (s *Server) handleRollbackPack(w http.ResponseWriter, r *http.Request) {
	var req models.RollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.BackupID) == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "backup_id is required")
		return
	}

	pack, err := s.packManager.Restore(r.Context(), req.BackupID, req.RequestID)
	if err != nil {
		respondStorageError(w, err, "restore pack")
		return
	}

	respondJSON(w, http.StatusOK, pack)
}

func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	filters := models.ListFilters{
		Status: models.PackStatus(r.URL.Query().Get("status")),
		Limit:  50, // default
		Offset: 0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	packs, err := s.packManager.List(r.Context(), filters)
	if err != nil {
		respondStorageError(w, err, "list packs")
		return
	}

	active, err := s.packManager.GetActive(r.Context())
	if err != nil {
		respondStorageError(w, err, "get active pack")
		return
	}

	// Content bodies are heavy; the list view carries metadata only
	summaries := make([]*models.ContentPack, 0, len(packs))
	for _, pack := range packs {
		summary := *pack
		summary.Content = nil
		summaries = append(summaries, &summary)
	}

	activeID := ""
	if active != nil {
		activeID = active.ID
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"active_id": activeID,
		"packs":     summaries,
		"total":     len(summaries),
	})
}
