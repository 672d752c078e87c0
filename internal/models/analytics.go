package models

import "time"

// UsageSession is one sitting of a child with the app
type UsageSession struct {
	ID                  string     `json:"id"`
	ChildID             string     `json:"child_id"`
	Start               time.Time  `json:"session_start"`
	End                 *time.Time `json:"session_end"`
	ActivitiesCompleted int        `json:"activities_completed"`
	DurationMinutes     float64    `json:"duration_minutes"`
	AverageRating       float64    `json:"average_rating"`
}

// IsOpen reports whether the session has not been ended yet
func (s *UsageSession) IsOpen() bool {
	return s.End == nil
}

// ActivityRating is a child's 1-5 rating of something they did
type ActivityRating struct {
	ID           string    `json:"id"`
	ChildID      string    `json:"child_id"`
	ActivityType string    `json:"activity_type"`
	ActivityID   *string   `json:"activity_id"`
	Rating       int       `json:"rating"`
	Feedback     *string   `json:"feedback_text"`
	RatedAt      time.Time `json:"rated_at"`
}

// ActivityTypeVoiceMessage marks ratings of guardian voice messages
const ActivityTypeVoiceMessage = "voice_message"

// PeriodUsage sums sessions over a period
type PeriodUsage struct {
	TimeSpentMinutes    float64 `json:"time_spent_minutes"`
	ActivitiesCompleted int     `json:"activities_completed"`
	Sessions            int     `json:"sessions"`
}

// UsageStatistics is the dashboard summary for one child
type UsageStatistics struct {
	Today         PeriodUsage      `json:"today"`
	Week          PeriodUsage      `json:"week"`
	AverageRating float64          `json:"average_rating"`
	RecentRatings []ActivityRating `json:"recent_ratings"`
}

// ContentTypeStats aggregates ratings of one activity type
type ContentTypeStats struct {
	Count         int     `json:"count"`
	AverageRating float64 `json:"avg_rating"`
}

// VoiceMessageReport summarises how the child rated guardian voice messages
type VoiceMessageReport struct {
	Count         int      `json:"total_voice_ratings"`
	AverageRating float64  `json:"average_voice_rating"`
	Feedback      []string `json:"voice_feedback"`
	Suggestions   []string `json:"improvement_suggestions"`
}

// ReportInsights are the development notes shown to the guardian
type ReportInsights struct {
	DevelopmentAreas    []string `json:"development_areas"`
	Strengths           []string `json:"strengths"`
	Watchpoints         []string `json:"watchpoints"`
	SuggestedActivities []string `json:"suggested_activities"`
	ParentGuidance      []string `json:"parent_guidance"`
	Fallback            bool     `json:"fallback"`
}

// RatingPoint is one entry of the chronological rating trend
type RatingPoint struct {
	Date         string `json:"date"`
	Rating       int    `json:"rating"`
	ActivityType string `json:"activity_type"`
}

// FavoriteActivity is an activity type ranked by average rating
type FavoriteActivity struct {
	ActivityType  string  `json:"activity_type"`
	AverageRating float64 `json:"average_rating"`
	TotalRatings  int     `json:"total_ratings"`
}

// EngagementPatterns describes when and how the child engages
type EngagementPatterns struct {
	PeakUsageHours     map[int]int        `json:"peak_usage_hours"`
	RatingTrend        []RatingPoint      `json:"rating_trends"`
	FavoriteActivities []FavoriteActivity `json:"favorite_activities"`
	EngagementScore    float64            `json:"engagement_score"`
}

// RatedActivity is one row of the most-rated list
type RatedActivity struct {
	ActivityType  string  `json:"activity_type"`
	ActivityID    string  `json:"activity_id"`
	Count         int     `json:"count"`
	AverageRating float64 `json:"avg_rating"`
}

// BiweeklyReport aggregates a trailing 14-day window for one child
type BiweeklyReport struct {
	ID                    string                      `json:"id"`
	ChildID               string                      `json:"child_id"`
	PeriodStart           time.Time                   `json:"report_period_start"`
	PeriodEnd             time.Time                   `json:"report_period_end"`
	TotalTimeMinutes      float64                     `json:"total_time_spent"`
	TotalActivities       int                         `json:"activities_completed"`
	AverageSessionLength  float64                     `json:"average_session_length"`
	ContentTypes          map[string]ContentTypeStats `json:"favorite_content_types"`
	MostRated             []RatedActivity             `json:"most_rated_activities"`
	VoiceMessages         VoiceMessageReport          `json:"voice_message_ratings"`
	Insights              ReportInsights              `json:"child_development_insights"`
	EngagementPatterns    EngagementPatterns          `json:"engagement_patterns"`
	EngagementScore       float64                     `json:"engagement_score"`
	RecommendedActivities []string                    `json:"recommended_activities"`
	CreatedAt             time.Time                   `json:"created_at"`
}
