package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/checkstream/internal/adapter/api/handler"
	"github.com/V4T54L/checkstream/internal/usecase"
)

// NewAdminRouter creates and configures the HTTP router for admin operations.
func NewAdminRouter(adminUseCase *usecase.AdminStreamUseCase, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	adminHandler := handler.NewAdminHandler(adminUseCase, logger)

	r.Get("/health", adminHandler.HealthCheck)

	r.Get("/admin/streams/{streamID}", adminHandler.GetStreamInfo)
	r.Post("/admin/streams/{streamID}/trim", adminHandler.TrimStream)

	return r
}
