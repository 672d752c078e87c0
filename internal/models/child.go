package models

import (
	"strings"
	"time"
	"unicode"
)

// LearningStyle tags how a child prefers to take in content
type LearningStyle string

const (
	LearningVisual      LearningStyle = "visual"
	LearningAuditory    LearningStyle = "auditory"
	LearningKinesthetic LearningStyle = "kinesthetic"
	LearningMixed       LearningStyle = "mixed"
)

// ParseLearningStyle accepts the canonical tags plus the Turkish labels used by generated profiles.
func ParseLearningStyle(s string) (LearningStyle, bool) {
	s = strings.TrimSpace(s)
	if style, ok := learningStyleLabel(strings.ToLower(s)); ok {
		return style, true
	}
	return learningStyleLabel(strings.ToLowerSpecial(unicode.TurkishCase, s))
}

func learningStyleLabel(s string) (LearningStyle, bool) {
	switch s {
	case "visual", "görsel":
		return LearningVisual, true
	case "auditory", "işitsel":
		return LearningAuditory, true
	case "kinesthetic", "kinestetik":
		return LearningKinesthetic, true
	case "mixed", "karma", "":
		return LearningMixed, true
	}
	return "", false
}

const (
	MinChildAge = 3
	MaxChildAge = 12

	DefaultCulturalBackground = "Turkish"
)

// Child represents a child profile owned by one guardian
type Child struct {
	ID                 string            `json:"id"`
	GuardianID         string            `json:"guardian_id"`
	Name               string            `json:"name"`
	Age                int               `json:"age"`
	Interests          []string          `json:"interests"`
	LearningStyle      LearningStyle     `json:"learning_style"`
	PersonalityTraits  map[string]string `json:"personality_traits"`
	CulturalBackground string            `json:"cultural_background"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// MergeTraits copies inferred traits into the profile, keeping values the guardian already set.
// It reports whether anything changed.
func (c *Child) MergeTraits(inferred map[string]string) bool {
	if len(inferred) == 0 {
		return false
	}
	if c.PersonalityTraits == nil {
		c.PersonalityTraits = make(map[string]string)
	}
	changed := false
	for k, v := range inferred {
		if v == "" {
			continue
		}
		if _, ok := c.PersonalityTraits[k]; ok {
			continue
		}
		c.PersonalityTraits[k] = v
		changed = true
	}
	return changed
}
