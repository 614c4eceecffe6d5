package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/checkstream/internal/usecase"
)

// AdminHandler handles HTTP requests for stream administration.
type AdminHandler struct {
	uc     *usecase.AdminStreamUseCase
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(uc *usecase.AdminStreamUseCase, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{uc: uc, logger: logger}
}

// HealthCheck is a simple health check endpoint.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStreamInfo reports the stored length and remaining TTL of a stream.
// GET /admin/streams/{streamID}
func (h *AdminHandler) GetStreamInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.uc.Info(r.Context(), chi.URLParam(r, "streamID"))
	if err != nil {
		respondWithDomainError(w, h.logger, err, "failed to get stream info")
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, info)
}

// TrimStream handles requests to trim a stream.
// POST /admin/streams/{streamID}/trim
func (h *AdminHandler) TrimStream(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")

	var payload struct {
		MaxLen int64 `json:"max_len"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.MaxLen <= 0 {
		respondWithError(w, h.logger, http.StatusBadRequest, "max_len must be a positive integer")
		return
	}

	if err := h.uc.Trim(r.Context(), streamID, payload.MaxLen); err != nil {
		respondWithDomainError(w, h.logger, err, "failed to trim stream")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{"stream_id": streamID, "max_len": payload.MaxLen})
}
