package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/checkstream/internal/domain"
	"github.com/V4T54L/checkstream/internal/usecase"
)

// CheckHandler handles HTTP requests for fact-check jobs.
type CheckHandler struct {
	uc     *usecase.CheckUseCase
	logger *slog.Logger
}

// NewCheckHandler creates a new CheckHandler.
func NewCheckHandler(uc *usecase.CheckUseCase, logger *slog.Logger) *CheckHandler {
	return &CheckHandler{uc: uc, logger: logger.With("component", "check_handler")}
}

type checkResultRequest struct {
	Result json.RawMessage `json:"result"`
}

type checkStatusRequest struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Submit creates a pending check and opens its progress stream.
// POST /checks
func (h *CheckHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req usecase.SubmitCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	check, err := h.uc.SubmitCheck(r.Context(), req)
	if err != nil {
		respondWithDomainError(w, h.logger, err, "failed to submit check")
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, check)
}

// Get returns a single check.
// GET /checks/{slug}
func (h *CheckHandler) Get(w http.ResponseWriter, r *http.Request) {
	check, err := h.uc.GetCheck(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondWithDomainError(w, h.logger, err, "failed to get check")
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, check)
}

// PutResult stores the check result and completes its stream.
// PUT /checks/{slug}/result
func (h *CheckHandler) PutResult(w http.ResponseWriter, r *http.Request) {
	var req checkResultRequest
	if err := decodeJSON(w, r, &req); err != nil || len(req.Result) == 0 {
		respondWithError(w, h.logger, http.StatusBadRequest, "result is required")
		return
	}

	if err := h.uc.CompleteCheck(r.Context(), chi.URLParam(r, "slug"), req.Result); err != nil {
		respondWithDomainError(w, h.logger, err, "failed to store check result")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutStatus sets a final status and closes the check's stream.
// PUT /checks/{slug}/status
func (h *CheckHandler) PutStatus(w http.ResponseWriter, r *http.Request) {
	var req checkStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := domain.ParseCheckStatus(req.Status)
	if err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.uc.FinishCheck(r.Context(), chi.URLParam(r, "slug"), status, req.Error); err != nil {
		respondWithDomainError(w, h.logger, err, "failed to update check status")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
