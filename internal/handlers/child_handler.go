package handlers

import (
	"net/http"

	"atamind/internal/models"
	"atamind/internal/service"
)

// ChildHandler serves guardian-owned child profiles
type ChildHandler struct {
	childService *service.ChildService
}

// NewChildHandler creates a new child handler
func NewChildHandler(childService *service.ChildService) *ChildHandler {
	return &ChildHandler{childService: childService}
}

// List returns every child of the authenticated guardian
func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	children, err := h.childService.List(r.Context(), guardian.ID)
	if err != nil {
		handleServiceError(w, err, "Error listing children")
		return
	}
	if children == nil {
		children = []models.Child{}
	}
	writeJSON(w, http.StatusOK, children)
}

// Create adds a child profile
func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	var in service.ChildInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	child, err := h.childService.Create(r.Context(), guardian.ID, in)
	if err != nil {
		handleServiceError(w, err, "Error creating child")
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

// Get returns one child profile
func (h *ChildHandler) Get(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	child, err := h.childService.Get(r.Context(), guardian.ID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err, "Error loading child")
		return
	}
	writeJSON(w, http.StatusOK, child)
}

// Update replaces the editable fields of a child profile
func (h *ChildHandler) Update(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	var in service.ChildInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	child, err := h.childService.Update(r.Context(), guardian.ID, r.PathValue("id"), in)
	if err != nil {
		handleServiceError(w, err, "Error updating child")
		return
	}
	writeJSON(w, http.StatusOK, child)
}

// Delete removes a child profile and its history
func (h *ChildHandler) Delete(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	if err := h.childService.Delete(r.Context(), guardian.ID, r.PathValue("id")); err != nil {
		handleServiceError(w, err, "Error deleting child")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
