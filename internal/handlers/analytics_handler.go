package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"atamind/internal/logger"
	"atamind/internal/models"
	"atamind/internal/service"
)

// AnalyticsHandler serves ratings, sessions, statistics and reports
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
	childService     *service.ChildService
	delivery         *service.ReportDelivery
}

// NewAnalyticsHandler creates a new analytics handler. delivery may be nil.
func NewAnalyticsHandler(analyticsService *service.AnalyticsService, childService *service.ChildService, delivery *service.ReportDelivery) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		childService:     childService,
		delivery:         delivery,
	}
}

type sessionRequest struct {
	ChildID   string `json:"child_id"`
	SessionID string `json:"session_id"`
}

// RecordRating stores a child's rating of an activity
func (h *AnalyticsHandler) RecordRating(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	var in service.RatingInput
	if err := decodeJSON(r, &in); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	rating, err := h.analyticsService.RecordRating(r.Context(), guardian.ID, in)
	if err != nil {
		handleServiceError(w, err, "Error recording rating")
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

// StartSession opens a usage session for a child
func (h *AnalyticsHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	session, err := h.analyticsService.StartSession(r.Context(), guardian.ID, req.ChildID)
	if err != nil {
		handleServiceError(w, err, "Error starting session")
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// EndSession closes a usage session and returns its final figures
func (h *AnalyticsHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	if req.SessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session_id is required", "", nil)
		return
	}

	session, err := h.analyticsService.EndSession(r.Context(), guardian.ID, req.SessionID)
	if err != nil {
		handleServiceError(w, err, "Error ending session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// GenerateReport builds the biweekly report for a child. With ?notify=true the guardian is emailed.
func (h *AnalyticsHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())
	childID := r.PathValue("id")

	report, err := h.analyticsService.GenerateBiweeklyReport(r.Context(), guardian.ID, childID)
	if err != nil {
		handleServiceError(w, err, "Error generating report")
		return
	}

	if notify, _ := strconv.ParseBool(r.URL.Query().Get("notify")); notify && h.delivery != nil {
		child, err := h.childService.Get(r.Context(), guardian.ID, childID)
		if err == nil {
			err = h.delivery.Notify(r.Context(), child, report)
		}
		if err != nil {
			logger.Log.Warn("failed to deliver report", zap.String("child_id", childID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, report)
}

// UsageStats returns daily, weekly and monthly usage for a child
func (h *AnalyticsHandler) UsageStats(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	stats, err := h.analyticsService.GetUsageStatistics(r.Context(), guardian.ID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err, "Error loading usage statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Reports lists stored reports for a child
func (h *AnalyticsHandler) Reports(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	reports, err := h.analyticsService.GetReports(r.Context(), guardian.ID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err, "Error listing reports")
		return
	}
	if reports == nil {
		reports = []models.BiweeklyReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// MostRated returns the child's most frequently rated activities
func (h *AnalyticsHandler) MostRated(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	activities, err := h.analyticsService.GetMostRatedActivities(r.Context(), guardian.ID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err, "Error loading rated activities")
		return
	}
	if activities == nil {
		activities = []models.RatedActivity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

// Engagement returns engagement patterns over the report window
func (h *AnalyticsHandler) Engagement(w http.ResponseWriter, r *http.Request) {
	guardian := GetGuardianFromContext(r.Context())

	patterns, err := h.analyticsService.GetEngagementPatterns(r.Context(), guardian.ID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err, "Error loading engagement patterns")
		return
	}
	writeJSON(w, http.StatusOK, patterns)
}
