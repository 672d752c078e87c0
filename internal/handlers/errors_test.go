package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"atamind/internal/logger"
	"atamind/internal/orchestrator"
	"atamind/internal/service"
	"atamind/internal/validation"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	original := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = original })
	return logs
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not a JSON error: %q", rec.Body.String())
	}
	return body.Error
}

func TestRespondWithErrorWritesStatusAndBody(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondWithError(recorder, 418, "Teapot", "", nil)

	if recorder.Code != 418 {
		t.Fatalf("expected status 418, got %d", recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if msg := decodeError(t, recorder); msg != "Teapot" {
		t.Fatalf("expected error 'Teapot', got %q", msg)
	}
}

func TestRespondWithErrorLogsMessage(t *testing.T) {
	logs := observeLogs(t)

	recorder := httptest.NewRecorder()
	respondWithError(recorder, 500, "Internal server error", "", errors.New("boom"))

	entries := logs.FilterMessage("Internal server error").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", logs.Len())
	}
	if got := entries[0].ContextMap()["error"]; got != "boom" {
		t.Fatalf("expected log to include error, got %v", got)
	}
}

func TestRespondWithErrorSkipsLogWithoutError(t *testing.T) {
	logs := observeLogs(t)

	respondWithError(httptest.NewRecorder(), 404, "Not found", "", nil)

	if logs.Len() != 0 {
		t.Errorf("expected no log entries, got %d", logs.Len())
	}
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", validation.ValidationError{Field: "age", Message: "age must be between 3 and 12"}, http.StatusBadRequest, "age must be between 3 and 12"},
		{"child not found", service.ErrChildNotFound, http.StatusNotFound, ErrChildNotFound},
		{"forbidden hides ownership", service.ErrForbidden, http.StatusNotFound, ErrChildNotFound},
		{"story not found", service.ErrStoryNotFound, http.StatusNotFound, ErrStoryNotFound},
		{"bad credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, ErrInvalidCredentials},
		{"email taken", service.ErrEmailTaken, http.StatusConflict, ErrEmailTaken},
		{"session closed", fmt.Errorf("wrapped: %w", service.ErrSessionClosed), http.StatusConflict, ErrSessionClosed},
		{"not reviewable", service.ErrStoryNotReviewable, http.StatusConflict, ErrStoryNotReviewable},
		{"empty audio", service.ErrEmptyAudio, http.StatusBadRequest, ErrEmptyAudio},
		{"recording not found", service.ErrRecordingNotFound, http.StatusNotFound, ErrRecordingNotFound},
		{"voice analysis down", fmt.Errorf("%w: %w", service.ErrVoiceAnalysisUnavailable, errors.New("quota")), http.StatusServiceUnavailable, ErrAnalysisUnavailable},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, ErrInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(rec, tt.err, "test")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if msg := decodeError(t, rec); msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestHandleServiceErrorHidesGenerationDetail(t *testing.T) {
	logs := observeLogs(t)

	cause := errors.New("composer: upstream quota exceeded for key sk-123")
	err := fmt.Errorf("%w: %w", orchestrator.ErrGenerationUnavailable, cause)

	rec := httptest.NewRecorder()
	handleServiceError(rec, err, "Story generation failed")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "story generation temporarily unavailable" {
		t.Errorf("unexpected message %q", msg)
	}
	if strings.Contains(rec.Body.String(), "quota") {
		t.Error("response leaked the underlying error")
	}
	if logs.FilterMessage("Story generation failed").Len() != 1 {
		t.Error("expected the detail to be logged server-side")
	}
}

func TestDecodeJSONRejectsWrongTypes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"rating":`},
		{"wrong type", `{"rating":"five"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var in service.RatingInput
			if err := decodeJSON(req, &in); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}
