package models

import (
	"strings"
	"time"
	"unicode"
)

// Difficulty is the reading level of a story
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps free-form difficulty labels (English or Turkish) onto the three levels.
// Unknown labels map to medium.
func ParseDifficulty(s string) Difficulty {
	plain := strings.ToLower(strings.TrimSpace(s))
	turkish := strings.ToLowerSpecial(unicode.TurkishCase, strings.TrimSpace(s))
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(plain, w) || strings.Contains(turkish, w) {
				return true
			}
		}
		return false
	}

	switch {
	case has("easy", "kolay", "basit"):
		return DifficultyEasy
	case has("hard", "zor", "ileri"):
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// ApprovalStatus is the outcome of the safety gate
type ApprovalStatus string

const (
	ApprovalApproved    ApprovalStatus = "approved"
	ApprovalNeedsReview ApprovalStatus = "needs_review"
	ApprovalRejected    ApprovalStatus = "rejected"
)

// ParseApprovalStatus returns ok=false for anything that is not one of the three states.
func ParseApprovalStatus(s string) (ApprovalStatus, bool) {
	switch ApprovalStatus(strings.ToLower(strings.TrimSpace(s))) {
	case ApprovalApproved:
		return ApprovalApproved, true
	case ApprovalNeedsReview:
		return ApprovalNeedsReview, true
	case ApprovalRejected:
		return ApprovalRejected, true
	}
	return "", false
}

// Story is a generated story owned by a (guardian, child) pair
type Story struct {
	ID                  string          `json:"id"`
	GuardianID          string          `json:"guardian_id"`
	ChildID             string          `json:"child_id"`
	Title               string          `json:"title"`
	Body                string          `json:"content"`
	ValuesTaught        []string        `json:"values_taught"`
	CulturalElements    []string        `json:"cultural_elements"`
	DiscussionQuestions []string        `json:"discussion_questions"`
	EngagementFactors   []string        `json:"engagement_factors"`
	MoralLesson         string          `json:"moral_lesson"`
	Difficulty          Difficulty      `json:"difficulty_level"`
	EstimatedDuration   float64         `json:"estimated_duration_minutes"`
	AudioURI            *string         `json:"audio_url"`
	ImageURI            *string         `json:"image_url"`
	SafetyScore         int             `json:"safety_score"`
	ApprovalStatus      ApprovalStatus  `json:"approval_status"`
	Regenerated         bool            `json:"regenerated"`
	Analysis            *AnalysisBundle `json:"analysis,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// Deliverable reports whether the story may be shown to the child
func (s *Story) Deliverable() bool {
	return s.ApprovalStatus == ApprovalApproved
}

// StoryDraft is composer output before it is persisted as a Story
type StoryDraft struct {
	Title               string     `json:"title"`
	Body                string     `json:"content"`
	ValuesTaught        []string   `json:"values_taught"`
	CulturalElements    []string   `json:"cultural_elements"`
	EngagementFactors   []string   `json:"engagement_factors"`
	DiscussionQuestions []string   `json:"discussion_questions"`
	MoralLesson         string     `json:"moral_lesson"`
	EstimatedDuration   float64    `json:"estimated_duration"`
	Difficulty          Difficulty `json:"difficulty_level"`
}

// Risk flags raised by the safety gate. They are independent of each other.
const (
	RiskFearInducing          = "fear_inducing"
	RiskAgeInappropriate      = "age_inappropriate"
	RiskCulturalInsensitivity = "cultural_insensitivity"
	RiskNegativeRoleModel     = "negative_role_model"
	RiskViolence              = "violence"
)

// SafetyAssessment is one evaluation of a story draft
type SafetyAssessment struct {
	ID                      string         `json:"id,omitempty"`
	StoryID                 string         `json:"story_id,omitempty"`
	AgeAppropriateness      int            `json:"age_appropriateness"`
	CulturalAppropriateness int            `json:"cultural_appropriateness"`
	EducationalValue        int            `json:"educational_value"`
	SafetyScore             int            `json:"safety_score"`
	LanguageAppropriateness int            `json:"language_appropriateness"`
	IsSafe                  bool           `json:"is_safe"`
	Risks                   []string       `json:"identified_risks"`
	Recommendations         []string       `json:"recommendations"`
	ApprovalStatus          ApprovalStatus `json:"approval_status"`
	Feedback                string         `json:"detailed_feedback"`
	CreatedAt               time.Time      `json:"created_at"`
}

// HasRisk reports whether flag was raised
func (a *SafetyAssessment) HasRisk(flag string) bool {
	for _, r := range a.Risks {
		if r == flag {
			return true
		}
	}
	return false
}

// AnalysisBundle is attached to every generated story for reporting
type AnalysisBundle struct {
	ChildInsights         DevelopmentalAnalysis `json:"child_insights"`
	MessageAnalysis       MessageAnalysis       `json:"voice_analysis"`
	SafetyScore           int                   `json:"safety_score"`
	SafetyRisks           []string              `json:"safety_risks,omitempty"`
	EngagementPredictions []string              `json:"engagement_predictions"`
	DifficultyLevel       Difficulty            `json:"difficulty_level"`
	Regenerated           bool                  `json:"regenerated"`
	States                []string              `json:"states"`
}

// ListeningEntry records one listen of a story by a child
type ListeningEntry struct {
	ID               string    `json:"id"`
	ChildID          string    `json:"child_id"`
	StoryID          string    `json:"story_id"`
	DurationListened int       `json:"duration_listened_seconds"`
	CompletionRate   float64   `json:"completion_rate"`
	EngagementScore  float64   `json:"engagement_score"`
	ListenedAt       time.Time `json:"listened_at"`
}
