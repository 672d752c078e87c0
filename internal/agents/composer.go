package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"atamind/internal/content"
	"atamind/internal/metrics"
	"atamind/internal/models"
)

const (
	defaultDurationMinutes = 4.0
	defaultValue           = "Saygı"
	defaultCulturalElement = "Türk kültürü"
)

// ComposeInput is everything the composer reads for one story
type ComposeInput struct {
	Child           *models.Child
	Analysis        *models.DevelopmentalAnalysis
	Message         string
	MessageAnalysis *models.MessageAnalysis
	// SafetyGuidelines are set on regeneration and embedded as corrective constraints
	SafetyGuidelines []string
}

// Composer writes culturally grounded stories for a child
type Composer struct {
	svc content.Service
	log *zap.Logger
}

// NewComposer creates a composer backed by svc
func NewComposer(svc content.Service, log *zap.Logger) *Composer {
	return &Composer{svc: svc, log: log.Named("composer")}
}

type draftResponse struct {
	Title               string     `json:"title"`
	Content             string     `json:"content"`
	ValuesTaught        flexList   `json:"values_taught"`
	CulturalElements    flexList   `json:"cultural_elements"`
	EngagementFactors   flexList   `json:"engagement_factors"`
	EstimatedDuration   flexNumber `json:"estimated_duration"`
	MoralLesson         string     `json:"moral_lesson"`
	DiscussionQuestions flexList   `json:"discussion_questions"`
}

// Compose produces a normalised story draft. A draft without title or body is a failure.
func (c *Composer) Compose(ctx context.Context, in ComposeInput, opts Options) (*models.StoryDraft, error) {
	agent := "composer"
	if len(in.SafetyGuidelines) > 0 {
		agent = "composer_regenerate"
	}

	start := time.Now()
	raw, err := c.svc.GenerateJSON(ctx, content.Request{
		Agent:  agent,
		System: "Sen Türk kültürü ve değerlerinde uzman bir çocuk hikayesi anlatıcısısın.",
		Prompt: composePrompt(in),
	})

	var resp draftResponse
	if err == nil {
		err = decode(raw, &resp)
	}
	if err == nil && (strings.TrimSpace(resp.Title) == "" || strings.TrimSpace(resp.Content) == "") {
		err = fmt.Errorf("%w: story has no title or content", ErrInvalidOutput)
	}
	metrics.ObserveAgentCall(agent, start, err)

	if err != nil {
		if !opts.Fallback {
			return nil, fmt.Errorf("failed to compose story: %w", err)
		}
		c.log.Warn("composer call failed, using template story", zap.Error(err))
		return FallbackStory(in), nil
	}

	draft := &models.StoryDraft{
		Title:               strings.TrimSpace(resp.Title),
		Body:                strings.TrimSpace(resp.Content),
		ValuesTaught:        mergeUnique(resp.ValuesTaught),
		CulturalElements:    mergeUnique(resp.CulturalElements),
		EngagementFactors:   resp.EngagementFactors,
		DiscussionQuestions: resp.DiscussionQuestions,
		MoralLesson:         strings.TrimSpace(resp.MoralLesson),
		EstimatedDuration:   resp.EstimatedDuration.mean(),
	}
	normalizeDraft(draft, in)
	return draft, nil
}

// normalizeDraft fills defaults so every stored story has values, cultural elements,
// a positive duration and a difficulty level.
func normalizeDraft(d *models.StoryDraft, in ComposeInput) {
	if d.EstimatedDuration <= 0 {
		d.EstimatedDuration = defaultDurationMinutes
	}
	if len(d.ValuesTaught) == 0 {
		if in.MessageAnalysis != nil && len(in.MessageAnalysis.Values) > 0 {
			d.ValuesTaught = append([]string(nil), in.MessageAnalysis.Values...)
		} else {
			d.ValuesTaught = childDefaultValues(in.Child)
		}
	}
	if len(d.CulturalElements) == 0 {
		d.CulturalElements = []string{defaultCulturalElement}
	}
	d.Difficulty = models.DifficultyMedium
	if in.Analysis != nil && in.Analysis.RecommendedDifficulty != "" {
		d.Difficulty = models.ParseDifficulty(string(in.Analysis.RecommendedDifficulty))
	}
}

// childDefaultValues reads a "values" trait ("Saygı, Sabır") from the profile, else Saygı
func childDefaultValues(child *models.Child) []string {
	if child != nil {
		if v, ok := child.PersonalityTraits["values"]; ok {
			if values := mergeUnique(strings.Split(v, ",")); len(values) > 0 {
				return values
			}
		}
	}
	return []string{defaultValue}
}

// FallbackStory is a short template tale used only when the composer fallback is enabled
func FallbackStory(in ComposeInput) *models.StoryDraft {
	name := "Küçük kahraman"
	if in.Child != nil && strings.TrimSpace(in.Child.Name) != "" {
		name = strings.TrimSpace(in.Child.Name)
	}
	value := defaultValue
	if in.MessageAnalysis != nil && len(in.MessageAnalysis.Values) > 0 {
		value = in.MessageAnalysis.Values[0]
	}

	draft := &models.StoryDraft{
		Title: fmt.Sprintf("%s ve Keloğlan'ın %s Yolculuğu", name, value),
		Body: fmt.Sprintf("Bir varmış bir yokmuş, %s adında meraklı bir çocuk varmış. "+
			"Bir gün köy meydanında Keloğlan ile tanışmış. Keloğlan ona %s değerinin ne kadar önemli olduğunu "+
			"küçük bir macerayla göstermiş. Birlikte yaşlı komşularına yardım etmişler, öğrendiklerini ailesiyle paylaşmışlar. "+
			"Akşam olunca %s, bugün öğrendiklerini hiç unutmayacağına söz vermiş. Gökten üç elma düşmüş.", name, strings.ToLower(value), name),
		ValuesTaught:        []string{value},
		CulturalElements:    []string{"Keloğlan", defaultCulturalElement},
		EngagementFactors:   []string{"Tanıdık masal kahramanı"},
		DiscussionQuestions: []string{fmt.Sprintf("Sence %s neden önemli?", strings.ToLower(value))},
		MoralLesson:         fmt.Sprintf("%s, iyi bir insan olmanın temelidir.", value),
	}
	normalizeDraft(draft, in)
	return draft
}

func composePrompt(in ComposeInput) string {
	var b strings.Builder
	child := in.Child
	if child == nil {
		child = &models.Child{}
	}

	fmt.Fprintf(&b, "Çocuk Profili:\n- İsim: %s\n- Yaş: %d\n- İlgi Alanları: %s\n- Öğrenme Stili: %s\n- Kültürel Geçmiş: %s\n\n",
		content.Sanitize(child.Name), child.Age,
		content.Sanitize(strings.Join(child.Interests, ", ")),
		child.LearningStyle, content.Sanitize(child.CulturalBackground))
	fmt.Fprintf(&b, "Ebeveyn Mesajı: %q\n\n", content.Sanitize(in.Message))
	if in.Analysis != nil {
		fmt.Fprintf(&b, "Çocuk Analizi: %s\n", mustJSON(in.Analysis))
	}
	if in.MessageAnalysis != nil {
		fmt.Fprintf(&b, "Mesaj Analizi: %s\n", mustJSON(in.MessageAnalysis))
	}

	if len(in.SafetyGuidelines) > 0 {
		b.WriteString("\nGüvenlik Kuralları (önceki taslak güvenlik kontrolünden geçemedi, bunlara kesinlikle uy):\n")
		for _, g := range in.SafetyGuidelines {
			fmt.Fprintf(&b, "- %s\n", content.Sanitize(g))
		}
	}

	b.WriteString(`
Aşağıdaki kriterlere uygun bir hikaye oluştur:
1. Yaşa uygun dil ve içerik
2. Türk kültürü ve değerlerini içeren
3. Ebeveynin iletmek istediği değerleri içeren
4. Çocuğun ilgi alanlarına hitap eden
5. Öğretici ve eğlenceli
6. 3-5 dakika sürecek uzunlukta

Türk kültürel öğeleri içer:
- Geleneksel hikaye karakterleri (Nasreddin Hoca, Keloğlan)
- Türk değerleri (saygı, yardımlaşma, doğruluk)
- Kültürel referanslar (bayramlar, gelenekler)

Yalnızca şu JSON nesnesini döndür:
{
  "title": "",
  "content": "",
  "values_taught": [],
  "cultural_elements": [],
  "engagement_factors": [],
  "estimated_duration": 4,
  "moral_lesson": "",
  "discussion_questions": []
}`)
	return b.String()
}
