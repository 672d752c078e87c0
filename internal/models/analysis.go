package models

// Milestones are the expected developmental markers for an age band
type Milestones struct {
	Cognitive []string `json:"cognitive"`
	Social    []string `json:"social"`
	Emotional []string `json:"emotional"`
	Language  []string `json:"language"`
}

// DevelopmentalAnalysis is the profiler's view of a child for one generation request
type DevelopmentalAnalysis struct {
	Stage                 string            `json:"developmental_stage"`
	Milestones            Milestones        `json:"milestones"`
	CognitiveLevel        string            `json:"cognitive_level"`
	SocialEmotionalStatus string            `json:"social_emotional_status"`
	LearningPreferences   []string          `json:"learning_preferences"`
	MotivationFactors     []string          `json:"motivation_factors"`
	Strengths             []string          `json:"strengths"`
	GrowthAreas           []string          `json:"growth_areas"`
	RecommendedDifficulty Difficulty        `json:"recommended_difficulty"`
	SessionLengthMinutes  int               `json:"optimal_session_length"`
	EngagementStrategies  []string          `json:"engagement_strategies"`
	CulturalDevelopment   string            `json:"cultural_development"`
	ParentGuidance        []string          `json:"parent_guidance"`
	InferredTraits        map[string]string `json:"inferred_traits,omitempty"`
	Fallback              bool              `json:"fallback"`
}

// MessageAnalysis is extracted from a guardian's free-text message
type MessageAnalysis struct {
	EmotionalTone       string   `json:"emotional_tone"`
	Intensity           int      `json:"emotion_intensity"`
	Values              []string `json:"values_mentioned"`
	Expectations        []string `json:"expectations"`
	CulturalReferences  []string `json:"cultural_references"`
	RecommendedThemes   []string `json:"recommended_story_themes"`
	SuggestedApproach   string   `json:"suggested_approach"`
	ParentingIndicators []string `json:"parenting_style_indicators"`
	Fallback            bool     `json:"fallback,omitempty"`
}

// VoiceAnalysis is extracted from a guardian's recorded voice message
type VoiceAnalysis struct {
	Transcript      string   `json:"transcript"`
	Emotions        []string `json:"emotions"`
	ValuesExtracted []string `json:"values_extracted"`
	ParentingStyle  string   `json:"parenting_style"`
	Recommendations []string `json:"recommendations"`
}
