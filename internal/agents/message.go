package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"atamind/internal/content"
	"atamind/internal/metrics"
	"atamind/internal/models"
)

// MessageAnalyzer extracts tone, values and expectations from what a guardian wants the story to convey
type MessageAnalyzer struct {
	svc content.Service
	log *zap.Logger
}

// NewMessageAnalyzer creates an analyzer backed by svc
func NewMessageAnalyzer(svc content.Service, log *zap.Logger) *MessageAnalyzer {
	return &MessageAnalyzer{svc: svc, log: log.Named("message_analyzer")}
}

type messageResponse struct {
	EmotionalTone       string     `json:"emotional_tone"`
	Intensity           flexNumber `json:"emotion_intensity"`
	Values              flexList   `json:"values_mentioned"`
	ParentingIndicators flexList   `json:"parenting_style_indicators"`
	Expectations        flexList   `json:"expectations"`
	CulturalReferences  flexList   `json:"cultural_references"`
	RecommendedThemes   flexList   `json:"recommended_story_themes"`
	SuggestedApproach   string     `json:"suggested_approach"`
}

// Analyze returns the analysis of a guardian text message.
// With opts.Fallback a failed call yields the keyword analysis instead of an error.
func (a *MessageAnalyzer) Analyze(ctx context.Context, message string, opts Options) (*models.MessageAnalysis, error) {
	clean := content.Sanitize(message)

	start := time.Now()
	raw, err := a.svc.GenerateJSON(ctx, content.Request{
		Agent:  "message_analyzer",
		System: "Sen ebeveyn mesajlarını analiz eden, Türk aile değerlerini iyi bilen bir uzmansın.",
		Prompt: messagePrompt(clean),
	})

	var resp messageResponse
	if err == nil {
		err = decode(raw, &resp)
	}
	metrics.ObserveAgentCall("message_analyzer", start, err)

	if err != nil {
		if !opts.Fallback {
			return nil, fmt.Errorf("failed to analyze guardian message: %w", err)
		}
		a.log.Warn("message analysis failed, using keyword analysis", zap.Error(err))
		return KeywordAnalysis(clean), nil
	}

	intensity := 50
	if resp.Intensity.ok() {
		intensity = clamp(int(math.Round(resp.Intensity.mean())), 0, 100)
	}

	return &models.MessageAnalysis{
		EmotionalTone:       strings.TrimSpace(resp.EmotionalTone),
		Intensity:           intensity,
		Values:              mergeUnique(resp.Values),
		Expectations:        resp.Expectations,
		CulturalReferences:  resp.CulturalReferences,
		RecommendedThemes:   resp.RecommendedThemes,
		SuggestedApproach:   strings.TrimSpace(resp.SuggestedApproach),
		ParentingIndicators: resp.ParentingIndicators,
	}, nil
}

var valueKeywords = []struct {
	value    string
	keywords []string
}{
	{"Saygı", []string{"saygı", "respect", "büyüklerine", "nazik", "polite"}},
	{"Yardımlaşma", []string{"yardım", "paylaş", "help", "share", "sharing"}},
	{"Dürüstlük", []string{"dürüst", "doğru söyle", "yalan", "honest", "truth", "lying"}},
	{"Sorumluluk", []string{"sorumlu", "görev", "responsib", "duty"}},
	{"Aile bağları", []string{"aile", "anne", "baba", "kardeş", "dede", "nine", "family"}},
	{"Misafirperverlik", []string{"misafir", "guest", "hospitality"}},
	{"Çalışkanlık", []string{"çalışkan", "emek", "gayret", "hardworking", "effort"}},
	{"Sabır", []string{"sabır", "sabırlı", "patience", "patient"}},
}

// KeywordAnalysis is the deterministic analysis used when the model is unavailable.
// Tone is neutral and intensity 50; values come from Turkish and English keywords.
func KeywordAnalysis(message string) *models.MessageAnalysis {
	plain := strings.ToLower(message)
	turkish := strings.ToLowerSpecial(unicode.TurkishCase, message)

	var values, themes []string
	for _, vk := range valueKeywords {
		for _, kw := range vk.keywords {
			if strings.Contains(plain, kw) || strings.Contains(turkish, kw) {
				values = append(values, vk.value)
				themes = append(themes, vk.value+" üzerine bir masal")
				break
			}
		}
	}

	return &models.MessageAnalysis{
		EmotionalTone:     "nötr",
		Intensity:         50,
		Values:            values,
		RecommendedThemes: themes,
		SuggestedApproach: "Sıcak ve destekleyici bir anlatım",
		Fallback:          true,
	}
}

type voiceResponse struct {
	Transcript      string          `json:"transcript"`
	Emotions        json.RawMessage `json:"emotions"`
	ValuesExtracted flexList        `json:"values_extracted"`
	ParentingStyle  string          `json:"parenting_style"`
	Recommendations flexList        `json:"recommendations"`
}

// AnalyzeVoice transcribes and analyses a guardian's voice recording. Failures propagate.
func (a *MessageAnalyzer) AnalyzeVoice(ctx context.Context, audio []byte, mimeType string) (*models.VoiceAnalysis, error) {
	start := time.Now()
	raw, err := a.svc.AnalyzeAudio(ctx, audio, mimeType, voiceInstruction())

	var resp voiceResponse
	if err == nil {
		err = decode(raw, &resp)
	}
	metrics.ObserveAgentCall("voice_analyzer", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze voice message: %w", err)
	}

	return &models.VoiceAnalysis{
		Transcript:      strings.TrimSpace(resp.Transcript),
		Emotions:        parseEmotions(resp.Emotions),
		ValuesExtracted: mergeUnique(resp.ValuesExtracted),
		ParentingStyle:  strings.Trim(strings.TrimSpace(resp.ParentingStyle), `"`),
		Recommendations: resp.Recommendations,
	}, nil
}

// parseEmotions accepts a list of labels or a map of label to 0-1 score.
// Scored emotions below 0.5 are dropped and the rest ordered by score.
func parseEmotions(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] != '{' {
		var list flexList
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil
		}
		return list
	}

	var scores map[string]float64
	if err := json.Unmarshal(raw, &scores); err != nil {
		return nil
	}
	type scored struct {
		label string
		score float64
	}
	var kept []scored
	for label, score := range scores {
		if score >= 0.5 {
			kept = append(kept, scored{label, score})
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].label < kept[j].label
	})
	out := make([]string, len(kept))
	for i, s := range kept {
		out[i] = s.label
	}
	return out
}

func messagePrompt(message string) string {
	return fmt.Sprintf(`Bu ebeveyn mesajını analiz et:
"%s"

Analiz alanları:
1. Duygusal ton ve yoğunluk
2. İletilen değerler ve mesajlar
3. Ebeveynlik stili göstergeleri
4. Çocuğa yönelik beklentiler
5. Kültürel değer referansları

Değerleri öncelikle şu listeden seç: %s

Yalnızca şu JSON nesnesini döndür:
{
  "emotional_tone": "",
  "emotion_intensity": 0,
  "values_mentioned": [],
  "parenting_style_indicators": [],
  "expectations": [],
  "cultural_references": [],
  "recommended_story_themes": [],
  "suggested_approach": ""
}`, message, strings.Join(CoreValues, ", "))
}

func voiceInstruction() string {
	return fmt.Sprintf(`Bu ses kaydı bir ebeveynin çocuğu için bıraktığı mesajdır.
Kaydı yazıya dök ve analiz et.

Duygular için kısa etiketler kullan (ör. Sevgi, Endişe, Umut, Kararlılık, Sabır, Gurur, Koruyuculuk, Öğreticilik).
Değerleri öncelikle şu listeden seç: %s
Ebeveynlik stili şunlardan biri olsun: Otoriter, Destekleyici, Demokratik, Koruyucu, Öğretici, Duygusal.
Ebeveyn için 5-7 öneri ver (hikaye konuları, etkileşim yaklaşımları, değer aktarımı, duygusal bağ, kültürel kimlik).

Yalnızca şu JSON nesnesini döndür:
{
  "transcript": "",
  "emotions": [],
  "values_extracted": [],
  "parenting_style": "",
  "recommendations": []
}`, strings.Join(CoreValues, ", "))
}
