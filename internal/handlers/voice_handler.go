package handlers

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"atamind/internal/service"
)

const audioFormField = "audio"

// VoiceHandler accepts guardian voice messages
type VoiceHandler struct {
	voiceService  *service.VoiceService
	uploadMaxSize int64
}

// NewVoiceHandler creates a new voice handler. uploadMaxSize bounds the multipart body.
func NewVoiceHandler(voiceService *service.VoiceService, uploadMaxSize int64) *VoiceHandler {
	return &VoiceHandler{voiceService: voiceService, uploadMaxSize: uploadMaxSize}
}

// Analyze returns the analysis of an uploaded recording without storing it
func (h *VoiceHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	audio, mimeType, _, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	analysis, err := h.voiceService.Analyze(r.Context(), audio, mimeType)
	if err != nil {
		handleServiceError(w, err, "Voice analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// Record analyses and stores an uploaded recording
func (h *VoiceHandler) Record(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	audio, mimeType, childID, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	rec, err := h.voiceService.Record(r.Context(), guardian.ID, childID, audio, mimeType)
	if err != nil {
		handleServiceError(w, err, "Voice recording failed")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// List returns the guardian's stored recordings
func (h *VoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	recs, err := h.voiceService.List(r.Context(), guardian.ID)
	if err != nil {
		handleServiceError(w, err, "Error listing recordings")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// Audio streams one of the guardian's own recordings
func (h *VoiceHandler) Audio(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	rec, file, err := h.voiceService.Open(r.Context(), guardian.ID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err, "Error opening recording")
		return
	}
	defer file.Close()

	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeContent(w, r, path.Base(rec.FileURI), rec.CreatedAt, file)
}

// readUpload pulls the audio part and optional child_id out of a multipart form.
// It writes the error response itself and reports false when the request is unusable.
func (h *VoiceHandler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, *string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxSize)
	if err := r.ParseMultipartForm(h.uploadMaxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "Audio file is too large", "", nil)
			return nil, "", nil, false
		}
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form", "", nil)
		return nil, "", nil, false
	}

	file, header, err := r.FormFile(audioFormField)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMissingAudio, "", nil)
		return nil, "", nil, false
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read audio file", "Error reading upload", err)
		return nil, "", nil, false
	}
	if len(audio) == 0 {
		respondWithError(w, http.StatusBadRequest, ErrEmptyAudio, "", nil)
		return nil, "", nil, false
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(audio)
	}

	var childID *string
	if id := strings.TrimSpace(r.FormValue("child_id")); id != "" {
		childID = &id
	}
	return audio, mimeType, childID, true
}
