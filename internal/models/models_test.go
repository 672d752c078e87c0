package models

import (
	"testing"
	"time"
)

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		input string
		want  Difficulty
	}{
		{"easy", DifficultyEasy},
		{"Kolay seviye", DifficultyEasy},
		{"Orta seviye", DifficultyMedium},
		{"hard", DifficultyHard},
		{"İleri seviye", DifficultyHard},
		{"", DifficultyMedium},
		{"something else", DifficultyMedium},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseDifficulty(tt.input); got != tt.want {
				t.Errorf("ParseDifficulty(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLearningStyle(t *testing.T) {
	tests := []struct {
		input  string
		want   LearningStyle
		wantOK bool
	}{
		{"visual", LearningVisual, true},
		{"Görsel", LearningVisual, true},
		{"Karma", LearningMixed, true},
		{"", LearningMixed, true},
		{"telepathic", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLearningStyle(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLearningStyle(%q) = %v, %v, want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStoryDeliverable(t *testing.T) {
	tests := []struct {
		status ApprovalStatus
		want   bool
	}{
		{ApprovalApproved, true},
		{ApprovalNeedsReview, false},
		{ApprovalRejected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			story := Story{ApprovalStatus: tt.status}
			if got := story.Deliverable(); got != tt.want {
				t.Errorf("Deliverable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChildMergeTraits(t *testing.T) {
	child := Child{PersonalityTraits: map[string]string{"curiosity": "high"}}

	changed := child.MergeTraits(map[string]string{
		"curiosity":      "low",
		"learning_style": "visual",
		"empty":          "",
	})

	if !changed {
		t.Fatal("expected MergeTraits to report a change")
	}
	if child.PersonalityTraits["curiosity"] != "high" {
		t.Errorf("existing trait overwritten: %q", child.PersonalityTraits["curiosity"])
	}
	if child.PersonalityTraits["learning_style"] != "visual" {
		t.Errorf("new trait not merged")
	}
	if _, ok := child.PersonalityTraits["empty"]; ok {
		t.Errorf("empty trait should be skipped")
	}
	if child.MergeTraits(nil) {
		t.Errorf("nil merge should report no change")
	}
}

func TestUsageSessionIsOpen(t *testing.T) {
	session := UsageSession{Start: time.Now()}
	if !session.IsOpen() {
		t.Error("new session should be open")
	}

	end := time.Now()
	session.End = &end
	if session.IsOpen() {
		t.Error("ended session should be closed")
	}
}

func TestSafetyAssessmentHasRisk(t *testing.T) {
	a := SafetyAssessment{Risks: []string{RiskViolence, RiskFearInducing}}
	if !a.HasRisk(RiskViolence) || !a.HasRisk(RiskFearInducing) {
		t.Error("expected both risks to be present")
	}
	if a.HasRisk(RiskNegativeRoleModel) {
		t.Error("unexpected risk reported")
	}
}
