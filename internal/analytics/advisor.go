package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"atamind/internal/content"
	"atamind/internal/metrics"
	"atamind/internal/models"
)

// NoVoiceRatingsMessage is the only suggestion when the child rated no voice messages
const NoVoiceRatingsMessage = "Henüz sesli mesaj puanlaması yok."

var (
	fallbackVoiceSuggestions = []string{
		"Sesli mesajlarda daha fazla duygusal bağ kurun",
		"Çocuğunuzun yaşına uygun dil kullanın",
		"Hikayelerde daha fazla etkileşim ekleyin",
	}

	fallbackRecommendations = []string{
		"Interaktif Türk masalları",
		"Sesli oyunlar ve bilmeceler",
		"Yaratıcı hikaye tamamlama",
		"Kültürel değer oyunları",
		"Müzikli eğitim aktiviteleri",
	}
)

// FallbackInsights is used whenever the insight call fails
func FallbackInsights() models.ReportInsights {
	return models.ReportInsights{
		DevelopmentAreas:    []string{"Yaratıcılık", "Problem çözme"},
		Strengths:           []string{"Hikaye dinleme", "Etkileşimli içerik"},
		Watchpoints:         []string{"Ekran süresi dengesi"},
		SuggestedActivities: []string{"Daha fazla sesli hikaye"},
		ParentGuidance:      []string{"Günlük rutinlere entegrasyon"},
		Fallback:            true,
	}
}

// Advisor writes the model-generated sections of a report. It never returns an error.
type Advisor struct {
	svc content.Service
	log *zap.Logger
}

func NewAdvisor(svc content.Service, log *zap.Logger) *Advisor {
	return &Advisor{svc: svc, log: log.Named("report_advisor")}
}

type listResponse struct {
	Items []string `json:"items"`
}

func (a *Advisor) list(ctx context.Context, agent, prompt string, limit int) ([]string, error) {
	start := time.Now()
	raw, err := a.svc.GenerateJSON(ctx, content.Request{
		Agent:  agent,
		System: "Sen çocuk gelişimi konusunda uzman, ailelere yol gösteren bir danışmansın.",
		Prompt: prompt,
	})

	var resp listResponse
	if err == nil {
		err = json.Unmarshal([]byte(raw), &resp)
	}
	items := cleanList(resp.Items, limit)
	if err == nil && len(items) == 0 {
		err = content.ErrEmptyResponse
	}
	metrics.ObserveAgentCall(agent, start, err)
	return items, err
}

// VoiceSuggestions returns improvement tips for guardian voice messages
func (a *Advisor) VoiceSuggestions(ctx context.Context, voice []models.ActivityRating) []string {
	if len(voice) == 0 {
		return []string{NoVoiceRatingsMessage}
	}

	report := VoiceReport(voice)
	prompt := fmt.Sprintf(`Ebeveyn sesli mesajları için iyileştirme önerileri oluştur.

Ortalama Puan: %.1f/5
Çocuk Geri Bildirimleri: %s
Toplam Puan Sayısı: %d

Türkçe olarak 3-5 pratik öneri ver. JSON döndür: {"items": ["öneri"]}`,
		report.AverageRating, content.Sanitize(strings.Join(report.Feedback, "; ")), report.Count)

	items, err := a.list(ctx, "report_voice", prompt, 5)
	if err != nil {
		a.log.Warn("voice suggestions unavailable, using defaults", zap.Error(err))
		return append([]string(nil), fallbackVoiceSuggestions...)
	}
	return items
}

// Recommendations returns five activity suggestions for the child
func (a *Advisor) Recommendations(ctx context.Context, child *models.Child, ratings []models.ActivityRating) []string {
	var liked, disliked []string
	for _, r := range ratings {
		switch {
		case r.Rating >= 4:
			liked = append(liked, r.ActivityType)
		case r.Rating <= 2:
			disliked = append(disliked, r.ActivityType)
		}
	}

	prompt := fmt.Sprintf(`%s (%d yaş) için aktivite önerileri oluştur.

Beğendiği Aktiviteler: %s
Beğenmediği Aktiviteler: %s
İlgi Alanları: %s

5 kişiselleştirilmiş aktivite önerisi ver (Türkçe). JSON döndür: {"items": ["öneri"]}`,
		content.Sanitize(child.Name), child.Age,
		strings.Join(liked, ", "), strings.Join(disliked, ", "),
		content.Sanitize(strings.Join(child.Interests, ", ")))

	items, err := a.list(ctx, "report_recommendations", prompt, 5)
	if err != nil {
		a.log.Warn("activity recommendations unavailable, using defaults", zap.Error(err))
		return append([]string(nil), fallbackRecommendations...)
	}
	return items
}

type insightResponse struct {
	DevelopmentAreas    []string `json:"development_areas"`
	Strengths           []string `json:"strengths"`
	Watchpoints         []string `json:"watchpoints"`
	SuggestedActivities []string `json:"suggested_activities"`
	ParentGuidance      []string `json:"parent_guidance"`
}

// Insights returns development notes for the report period
func (a *Advisor) Insights(ctx context.Context, child *models.Child, sessions []models.UsageSession, ratings []models.ActivityRating) models.ReportInsights {
	prompt := fmt.Sprintf(`Bu çocuk için gelişim analizi yap.

Çocuk: %s, %d yaş
İlgi Alanları: %s

2 Haftalık Veriler:
- Toplam Oturum: %d
- Toplam Aktivite Puanı: %d
- Ortalama Puan: %.1f

JSON formatında analiz döndür:
{"development_areas": [], "strengths": [], "watchpoints": [], "suggested_activities": [], "parent_guidance": []}`,
		content.Sanitize(child.Name), child.Age, content.Sanitize(strings.Join(child.Interests, ", ")),
		len(sessions), len(ratings), AverageRating(ratings))

	start := time.Now()
	raw, err := a.svc.GenerateJSON(ctx, content.Request{Agent: "report_insights", Prompt: prompt})

	var resp insightResponse
	if err == nil {
		err = json.Unmarshal([]byte(raw), &resp)
	}
	if err == nil && len(resp.DevelopmentAreas)+len(resp.Strengths)+len(resp.ParentGuidance) == 0 {
		err = content.ErrEmptyResponse
	}
	metrics.ObserveAgentCall("report_insights", start, err)

	if err != nil {
		a.log.Warn("report insights unavailable, using defaults", zap.Error(err))
		return FallbackInsights()
	}
	return models.ReportInsights{
		DevelopmentAreas:    cleanList(resp.DevelopmentAreas, 0),
		Strengths:           cleanList(resp.Strengths, 0),
		Watchpoints:         cleanList(resp.Watchpoints, 0),
		SuggestedActivities: cleanList(resp.SuggestedActivities, 0),
		ParentGuidance:      cleanList(resp.ParentGuidance, 0),
	}
}

// cleanList trims entries, drops blanks and caps the length when limit > 0
func cleanList(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(strings.TrimLeft(item, "-•* "))
		if item == "" {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
