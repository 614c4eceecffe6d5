package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/checkstream/internal/domain"
	"github.com/V4T54L/checkstream/internal/usecase"
)

// StreamHandler handles HTTP requests against progress event streams.
type StreamHandler struct {
	uc     *usecase.EventStreamUseCase
	logger *slog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(uc *usecase.EventStreamUseCase, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{uc: uc, logger: logger.With("component", "stream_handler")}
}

type addEventRequest struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type failStreamRequest struct {
	Error string `json:"error"`
}

type eventsResponse struct {
	StreamID    string               `json:"stream_id"`
	Events      []domain.StreamEvent `json:"events"`
	LastEventID string               `json:"last_event_id,omitempty"`
}

// Create opens a stream by writing its start event.
// POST /streams/{streamID}
func (h *StreamHandler) Create(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	if err := h.uc.CreateStream(r.Context(), streamID); err != nil {
		respondWithDomainError(w, h.logger, err, "failed to create stream")
		return
	}
	respondWithJSON(w, h.logger, http.StatusCreated, map[string]string{"stream_id": streamID})
}

// Get reports whether a stream exists and its newest event id.
// GET /streams/{streamID}
func (h *StreamHandler) Get(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	exists, err := h.uc.StreamExists(r.Context(), streamID)
	if err != nil {
		respondWithDomainError(w, h.logger, err, "failed to check stream")
		return
	}
	if !exists {
		respondWithError(w, h.logger, http.StatusNotFound, "stream not found")
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]any{
		"stream_id":     streamID,
		"exists":        true,
		"last_event_id": h.uc.GetLastEventID(r.Context(), streamID),
	})
}

// AddEvent appends one event and fans it out to live subscribers.
// POST /streams/{streamID}/events
func (h *StreamHandler) AddEvent(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")

	var req addEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	var payload any
	if len(req.Data) > 0 {
		payload = req.Data
	}

	event, err := h.uc.AddEvent(r.Context(), streamID, req.Event, payload)
	if err != nil {
		respondWithDomainError(w, h.logger, err, "failed to add event")
		return
	}
	respondWithJSON(w, h.logger, http.StatusAccepted, event)
}

// Complete appends the terminal complete event.
// POST /streams/{streamID}/complete
func (h *StreamHandler) Complete(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	if err := h.uc.CompleteStream(r.Context(), streamID); err != nil {
		respondWithDomainError(w, h.logger, err, "failed to complete stream")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Fail appends the terminal error event. The body is optional.
// POST /streams/{streamID}/fail
func (h *StreamHandler) Fail(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")

	var req failStreamRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Error == "" {
		req.Error = "stream failed"
	}

	if err := h.uc.FailStream(r.Context(), streamID, req.Error); err != nil {
		respondWithDomainError(w, h.logger, err, "failed to fail stream")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Events returns the snapshot after last_event_id, or the whole history.
// GET /streams/{streamID}/events?last_event_id={id}
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	cursor := r.URL.Query().Get("last_event_id")

	events := h.uc.WaitForEvents(r.Context(), streamID, cursor)
	resp := eventsResponse{StreamID: streamID, Events: events}
	if n := len(events); n > 0 {
		resp.LastEventID = events[n-1].ID
	}
	respondWithJSON(w, h.logger, http.StatusOK, resp)
}
