package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"atamind/internal/logger"
	"atamind/internal/orchestrator"
	"atamind/internal/service"
	"atamind/internal/validation"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		logger.Log.Error(logMsg, zap.Int("status", status), zap.Error(err))
	}

	writeJSON(w, status, errorResponse{Error: userMsg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.Warn("failed to encode response", zap.Error(err))
	}
}

// decodeJSON reads a JSON body into dst. Malformed input and wrong field types both fail.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// handleServiceError maps service sentinel errors onto HTTP responses.
// Anything unrecognised is logged and reported as a 500.
func handleServiceError(w http.ResponseWriter, err error, logMsg string) {
	var vErr validation.ValidationError
	switch {
	case errors.As(err, &vErr):
		respondWithError(w, http.StatusBadRequest, vErr.Message, "", nil)
	case errors.Is(err, orchestrator.ErrGenerationUnavailable):
		respondWithError(w, http.StatusServiceUnavailable, ErrGenerationUnavailable, logMsg, err)
	case errors.Is(err, service.ErrVoiceAnalysisUnavailable):
		respondWithError(w, http.StatusServiceUnavailable, ErrAnalysisUnavailable, logMsg, err)
	case errors.Is(err, service.ErrChildNotFound), errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusNotFound, ErrChildNotFound, "", nil)
	case errors.Is(err, service.ErrStoryNotFound):
		respondWithError(w, http.StatusNotFound, ErrStoryNotFound, "", nil)
	case errors.Is(err, service.ErrRecordingNotFound):
		respondWithError(w, http.StatusNotFound, ErrRecordingNotFound, "", nil)
	case errors.Is(err, service.ErrSessionNotFound):
		respondWithError(w, http.StatusNotFound, ErrSessionNotFound, "", nil)
	case errors.Is(err, service.ErrSessionClosed):
		respondWithError(w, http.StatusConflict, ErrSessionClosed, "", nil)
	case errors.Is(err, service.ErrStoryNotReviewable):
		respondWithError(w, http.StatusConflict, ErrStoryNotReviewable, "", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, ErrInvalidCredentials, "", nil)
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
	case errors.Is(err, service.ErrEmailTaken):
		respondWithError(w, http.StatusConflict, ErrEmailTaken, "", nil)
	case errors.Is(err, service.ErrEmptyAudio):
		respondWithError(w, http.StatusBadRequest, ErrEmptyAudio, "", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, logMsg, err)
	}
}
