package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/V4T54L/checkstream/internal/adapter/api/handler"
	"github.com/V4T54L/checkstream/internal/adapter/api/middleware"
	"github.com/V4T54L/checkstream/internal/adapter/metrics"
	"github.com/V4T54L/checkstream/internal/pkg/config"
	"github.com/V4T54L/checkstream/internal/usecase"
)

// NewRouter creates and configures the public HTTP router for streams and checks.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	m *metrics.StreamMetrics,
	streams *usecase.EventStreamUseCase,
	checks *usecase.CheckUseCase,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
		MaxAge:         300,
	}))

	streamHandler := handler.NewStreamHandler(streams, logger)
	sseHandler := handler.NewSSEHandler(streams, logger, m, cfg.SSEHeartbeatInterval)
	checkHandler := handler.NewCheckHandler(checks, logger)

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Reads
	r.Get("/streams/{streamID}", streamHandler.Get)
	r.Get("/streams/{streamID}/events", streamHandler.Events)
	r.Method(http.MethodGet, "/streams/{streamID}/sse", sseHandler)
	r.Get("/checks/{slug}", checkHandler.Get)

	// Writes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter, logger))

		r.Post("/streams/{streamID}", streamHandler.Create)
		r.Post("/streams/{streamID}/events", streamHandler.AddEvent)
		r.Post("/streams/{streamID}/complete", streamHandler.Complete)
		r.Post("/streams/{streamID}/fail", streamHandler.Fail)

		r.Post("/checks", checkHandler.Submit)
		r.Put("/checks/{slug}/result", checkHandler.PutResult)
		r.Put("/checks/{slug}/status", checkHandler.PutStatus)
	})

	return r
}
