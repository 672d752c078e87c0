package agents

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"atamind/internal/content"
	"atamind/internal/metrics"
	"atamind/internal/models"
)

// Developmental stage labels. Every age maps to exactly one of them.
const (
	Stage3to4  = "3-4"
	Stage5to6  = "5-6"
	Stage7to8  = "7-8"
	Stage9to12 = "9-12"
)

var milestoneTable = map[string]models.Milestones{
	Stage3to4: {
		Cognitive: []string{"symbolic_thinking", "basic_categorization", "simple_problem_solving"},
		Social:    []string{"parallel_play", "basic_empathy", "rule_understanding"},
		Emotional: []string{"emotion_identification", "self_regulation_beginning", "attachment_security"},
		Language:  []string{"vocabulary_expansion", "sentence_formation", "story_comprehension"},
	},
	Stage5to6: {
		Cognitive: []string{"logical_reasoning", "number_concepts", "cause_effect"},
		Social:    []string{"cooperative_play", "friendship_concepts", "social_rules"},
		Emotional: []string{"emotion_regulation", "moral_development", "independence"},
		Language:  []string{"complex_sentences", "narrative_skills", "reading_readiness"},
	},
	Stage7to8: {
		Cognitive: []string{"concrete_operations", "conservation", "classification"},
		Social:    []string{"peer_relationships", "team_work", "competition_understanding"},
		Emotional: []string{"self_concept", "achievement_motivation", "stress_management"},
		Language:  []string{"reading_fluency", "writing_skills", "abstract_concepts"},
	},
	Stage9to12: {
		Cognitive: []string{"abstract_thinking", "metacognition", "complex_problem_solving"},
		Social:    []string{"group_dynamics", "leadership", "cultural_identity"},
		Emotional: []string{"identity_formation", "value_systems", "emotional_intelligence"},
		Language:  []string{"advanced_literacy", "critical_thinking", "communication_skills"},
	},
}

// StageFor maps an age to its band. Ages outside [3,12] use the oldest band.
func StageFor(age int) string {
	switch {
	case age >= 3 && age <= 4:
		return Stage3to4
	case age >= 5 && age <= 6:
		return Stage5to6
	case age >= 7 && age <= 8:
		return Stage7to8
	default:
		return Stage9to12
	}
}

// MilestonesFor returns a copy of the static milestone table for a stage
func MilestonesFor(stage string) models.Milestones {
	m, ok := milestoneTable[stage]
	if !ok {
		m = milestoneTable[Stage9to12]
	}
	return models.Milestones{
		Cognitive: append([]string(nil), m.Cognitive...),
		Social:    append([]string(nil), m.Social...),
		Emotional: append([]string(nil), m.Emotional...),
		Language:  append([]string(nil), m.Language...),
	}
}

const defaultSessionMinutes = 20

// Profiler produces the developmental analysis of a child
type Profiler struct {
	svc content.Service
	log *zap.Logger
}

// NewProfiler creates a profiler backed by svc
func NewProfiler(svc content.Service, log *zap.Logger) *Profiler {
	return &Profiler{svc: svc, log: log.Named("profiler")}
}

type profileResponse struct {
	CognitiveLevel        string     `json:"cognitive_level"`
	SocialEmotionalStatus string     `json:"social_emotional_status"`
	LearningPreferences   flexList   `json:"learning_preferences"`
	MotivationFactors     flexList   `json:"motivation_factors"`
	Strengths             flexList   `json:"strengths"`
	GrowthAreas           flexList   `json:"growth_areas"`
	RecommendedDifficulty string     `json:"recommended_difficulty"`
	SessionLength         flexNumber `json:"optimal_session_length"`
	EngagementStrategies  flexList   `json:"engagement_strategies"`
	CulturalDevelopment   string     `json:"cultural_development"`
	ParentGuidance        flexList   `json:"parent_guidance"`
}

// Analyze returns the developmental analysis for child.
// With opts.Fallback a failed call yields the static fallback analysis and a nil error.
func (p *Profiler) Analyze(ctx context.Context, child *models.Child, opts Options) (*models.DevelopmentalAnalysis, error) {
	stage := StageFor(child.Age)
	milestones := MilestonesFor(stage)

	start := time.Now()
	raw, err := p.svc.GenerateJSON(ctx, content.Request{
		Agent:  "profiler",
		System: "Sen çocuk gelişimi ve Türk aile kültürü konusunda uzman bir çocuk psikoloğusun.",
		Prompt: profilePrompt(child, stage, milestones),
	})

	var resp profileResponse
	if err == nil {
		err = decode(raw, &resp)
	}
	metrics.ObserveAgentCall("profiler", start, err)

	if err != nil {
		if !opts.Fallback {
			return nil, fmt.Errorf("failed to analyze child profile: %w", err)
		}
		p.log.Warn("profiler call failed, using fallback analysis",
			zap.String("child_id", child.ID), zap.Error(err))
		return FallbackAnalysis(child), nil
	}

	analysis := &models.DevelopmentalAnalysis{
		Stage:                 stage,
		Milestones:            milestones,
		CognitiveLevel:        strings.TrimSpace(resp.CognitiveLevel),
		SocialEmotionalStatus: strings.TrimSpace(resp.SocialEmotionalStatus),
		LearningPreferences:   resp.LearningPreferences,
		MotivationFactors:     resp.MotivationFactors,
		Strengths:             resp.Strengths,
		GrowthAreas:           resp.GrowthAreas,
		RecommendedDifficulty: models.ParseDifficulty(resp.RecommendedDifficulty),
		SessionLengthMinutes:  defaultSessionMinutes,
		EngagementStrategies:  resp.EngagementStrategies,
		CulturalDevelopment:   strings.TrimSpace(resp.CulturalDevelopment),
		ParentGuidance:        resp.ParentGuidance,
	}
	if resp.SessionLength.ok() && resp.SessionLength.max() > 0 {
		analysis.SessionLengthMinutes = int(math.Round(resp.SessionLength.max()))
	}
	analysis.InferredTraits = inferTraits(analysis)

	return analysis, nil
}

// FallbackAnalysis builds a deterministic analysis from static defaults and the stored profile
func FallbackAnalysis(child *models.Child) *models.DevelopmentalAnalysis {
	stage := StageFor(child.Age)
	style := child.LearningStyle
	if style == "" {
		style = models.LearningMixed
	}

	return &models.DevelopmentalAnalysis{
		Stage:                 stage,
		Milestones:            MilestonesFor(stage),
		CognitiveLevel:        "Yaşına uygun gelişim",
		SocialEmotionalStatus: "Sağlıklı sosyal gelişim",
		LearningPreferences:   []string{string(style)},
		MotivationFactors:     mergeUnique(child.Interests, "Hikaye", "Oyun", "Müzik"),
		Strengths:             []string{"Meraklı", "Öğrenmeye istekli"},
		GrowthAreas:           []string{"Dikkat süresi", "Problem çözme"},
		RecommendedDifficulty: models.DifficultyMedium,
		SessionLengthMinutes:  defaultSessionMinutes,
		EngagementStrategies:  []string{"Görsel destekler", "Etkileşimli öğeler"},
		CulturalDevelopment:   "Türk kültürü değerleri",
		ParentGuidance:        []string{"Sabırlı olun", "Destekleyici yaklaşım"},
		Fallback:              true,
	}
}

func inferTraits(a *models.DevelopmentalAnalysis) map[string]string {
	traits := make(map[string]string)
	if len(a.Strengths) > 0 {
		traits["strengths"] = strings.Join(a.Strengths, ", ")
	}
	if len(a.LearningPreferences) > 0 {
		traits["learning_preferences"] = strings.Join(a.LearningPreferences, ", ")
	}
	if len(a.MotivationFactors) > 0 {
		traits["motivation"] = strings.Join(a.MotivationFactors, ", ")
	}
	if len(traits) == 0 {
		return nil
	}
	return traits
}

func profilePrompt(child *models.Child, stage string, milestones models.Milestones) string {
	return fmt.Sprintf(`Bu çocuk profili için kapsamlı psikolojik ve gelişimsel analiz yap.

Çocuk Bilgileri:
- İsim: %s
- Yaş: %d
- İlgi Alanları: %s
- Öğrenme Stili: %s
- Kişilik Özellikleri: %s

Bu yaş grubu (%s) için beklenen gelişim aşamaları:
%s

Analiz edilecek alanlar: bilişsel gelişim, sosyal-duygusal gelişim, dil ve iletişim,
öğrenme tercihleri, motivasyon faktörleri, gelişim alanları, kültürel kimlik gelişimi.

Yalnızca şu JSON nesnesini döndür:
{
  "cognitive_level": "",
  "social_emotional_status": "",
  "learning_preferences": [],
  "motivation_factors": [],
  "strengths": [],
  "growth_areas": [],
  "recommended_difficulty": "easy|medium|hard",
  "optimal_session_length": 0,
  "engagement_strategies": [],
  "cultural_development": "",
  "parent_guidance": []
}`,
		content.Sanitize(child.Name),
		child.Age,
		content.Sanitize(strings.Join(child.Interests, ", ")),
		child.LearningStyle,
		content.Sanitize(mustJSON(child.PersonalityTraits)),
		stage,
		mustJSON(milestones),
	)
}
