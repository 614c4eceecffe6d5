package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/V4T54L/checkstream/internal/domain"
	"github.com/V4T54L/checkstream/internal/usecase"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, logger *slog.Logger, code int, message string) {
	respondWithJSON(w, logger, code, map[string]string{"error": message})
}

// respondWithDomainError maps a use case error onto a status code. Server
// side failures are logged and their detail is not exposed.
func respondWithDomainError(w http.ResponseWriter, logger *slog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, logger, http.StatusNotFound, "not found")
	case usecase.IsValidationError(err):
		respondWithError(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUserExists), errors.Is(err, domain.ErrConflict):
		respondWithError(w, logger, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrDatabaseConnection):
		logger.Error(msg, "error", err)
		respondWithError(w, logger, http.StatusServiceUnavailable, "Service unavailable")
	default:
		logger.Error(msg, "error", err)
		respondWithError(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
