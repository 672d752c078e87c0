package handlers

import (
	"net/http"

	"atamind/internal/models"
	"atamind/internal/service"
)

// StoryHandler serves story generation, review and listening history
type StoryHandler struct {
	storyService *service.StoryService
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(storyService *service.StoryService) *StoryHandler {
	return &StoryHandler{storyService: storyService}
}

type generateStoryRequest struct {
	ChildID string `json:"child_id"`
	Message string `json:"message"`
}

type generateStoryResponse struct {
	Story    *models.Story          `json:"story"`
	Analysis *models.AnalysisBundle `json:"analysis"`
}

// GenerateStory runs the story pipeline for a guardian message
func (h *StoryHandler) GenerateStory(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	var req generateStoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	story, err := h.storyService.Generate(r.Context(), guardian.ID, req.ChildID, req.Message)
	if err != nil {
		handleServiceError(w, err, "Story generation failed")
		return
	}

	analysis := story.Analysis
	story.Analysis = nil
	writeJSON(w, http.StatusCreated, generateStoryResponse{Story: story, Analysis: analysis})
}

// ListByChild returns every story of a child, newest first
func (h *StoryHandler) ListByChild(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	stories, err := h.storyService.ListByChild(r.Context(), guardian.ID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err, "Error listing stories")
		return
	}
	writeJSON(w, http.StatusOK, nonNilStories(stories))
}

// Deliverable returns only the approved stories a child may hear
func (h *StoryHandler) Deliverable(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	stories, err := h.storyService.Deliverable(r.Context(), guardian.ID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err, "Error listing deliverable stories")
		return
	}
	writeJSON(w, http.StatusOK, nonNilStories(stories))
}

// Get returns one story
func (h *StoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	story, err := h.storyService.Get(r.Context(), guardian.ID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err, "Error loading story")
		return
	}
	writeJSON(w, http.StatusOK, story)
}

// Approve releases a story held for review
func (h *StoryHandler) Approve(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	story, err := h.storyService.Approve(r.Context(), guardian.ID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err, "Error approving story")
		return
	}
	writeJSON(w, http.StatusOK, story)
}

// RecordListening stores one listen of a story
func (h *StoryHandler) RecordListening(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	var in service.ListeningInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	entry, err := h.storyService.RecordListening(r.Context(), guardian.ID, in)
	if err != nil {
		handleServiceError(w, err, "Error recording listening history")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// ListeningHistory returns the child's most recent listens
func (h *StoryHandler) ListeningHistory(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	entries, err := h.storyService.ListeningHistory(r.Context(), guardian.ID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err, "Error loading listening history")
		return
	}
	if entries == nil {
		entries = []models.ListeningEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func nonNilStories(stories []models.Story) []models.Story {
	if stories == nil {
		return []models.Story{}
	}
	return stories
}
