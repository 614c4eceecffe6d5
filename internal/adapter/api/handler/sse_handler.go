package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/checkstream/internal/adapter/metrics"
	"github.com/V4T54L/checkstream/internal/domain"
	"github.com/V4T54L/checkstream/internal/usecase"
)

const defaultHeartbeatInterval = 15 * time.Second

// SSEHandler tails a stream to a browser as server-sent events.
type SSEHandler struct {
	uc        *usecase.EventStreamUseCase
	logger    *slog.Logger
	metrics   *metrics.StreamMetrics
	heartbeat time.Duration
}

// NewSSEHandler creates a new SSEHandler.
func NewSSEHandler(uc *usecase.EventStreamUseCase, logger *slog.Logger, m *metrics.StreamMetrics, heartbeat time.Duration) *SSEHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	return &SSEHandler{
		uc:        uc,
		logger:    logger.With("component", "sse"),
		metrics:   m,
		heartbeat: heartbeat,
	}
}

// ServeHTTP replays the history after the client's cursor, then forwards
// live events until a terminal event is sent or the client goes away.
// GET /streams/{streamID}/sse
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	streamID := chi.URLParam(r, "streamID")
	cursor := r.Header.Get("Last-Event-ID")
	if cursor == "" {
		cursor = r.URL.Query().Get("last_event_id")
	}

	ctx := r.Context()

	// Subscribing before the replay read closes the gap in which an event
	// could be appended between the two.
	live, err := h.uc.Subscribe(ctx, streamID)
	if err != nil {
		h.logger.Error("failed to subscribe", "stream_id", streamID, "error", err)
		http.Error(w, "Live updates unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if h.metrics != nil {
		h.metrics.SSEClients.Inc()
		defer h.metrics.SSEClients.Dec()
	}
	h.logger.Info("SSE client connected", "stream_id", streamID, "cursor", cursor)
	defer h.logger.Info("SSE client disconnected", "stream_id", streamID)

	// Live events that were already covered by the replay are skipped by
	// id. Ids are not compared: concurrent writers can store an older id
	// after a newer one.
	sent := make(map[string]struct{})
	for _, ev := range h.uc.WaitForEvents(ctx, streamID, cursor) {
		if err := h.writeEvent(w, ev); err != nil {
			return
		}
		sent[ev.ID] = struct{}{}
		if ev.IsTerminal() {
			flusher.Flush()
			return
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-live:
			if !ok {
				return
			}
			if _, dup := sent[ev.ID]; dup {
				continue
			}
			if err := h.writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
			sent[ev.ID] = struct{}{}
			if ev.IsTerminal() {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) writeEvent(w http.ResponseWriter, ev domain.StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal SSE event", "event_id", ev.ID, "error", err)
		return nil
	}
	_, err = fmt.Fprintf(w, "id: %s\ndata: %s\n\n", ev.ID, payload)
	return err
}
