package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"atamind/internal/content"
	"atamind/internal/metrics"
	"atamind/internal/models"
)

// ApproveThreshold is the safety score at which a safe story is approved when the model gave no status
const ApproveThreshold = 70

// Validator scores a story draft for age, cultural and safety appropriateness
type Validator struct {
	svc   content.Service
	terms map[string]string
	log   *zap.Logger
}

// NewValidator creates a validator. terms maps a blocked term to its risk flag.
func NewValidator(svc content.Service, terms map[string]string, log *zap.Logger) *Validator {
	normalized := make(map[string]string, len(terms))
	for term, flag := range terms {
		if t := lowerTurkish(strings.TrimSpace(term)); t != "" {
			normalized[t] = flag
		}
	}
	return &Validator{svc: svc, terms: normalized, log: log.Named("validator")}
}

type assessmentResponse struct {
	IsSafe                  *bool      `json:"is_safe"`
	SafetyScore             flexNumber `json:"safety_score"`
	AgeAppropriateness      flexNumber `json:"age_appropriateness"`
	CulturalAppropriateness flexNumber `json:"cultural_appropriateness"`
	EducationalValue        flexNumber `json:"educational_value"`
	LanguageAppropriateness flexNumber `json:"language_appropriateness"`
	IdentifiedRisks         flexList   `json:"identified_risks"`
	Recommendations         flexList   `json:"recommendations"`
	ApprovalStatus          string     `json:"approval_status"`
	DetailedFeedback        string     `json:"detailed_feedback"`
}

// Validate runs the local blocked-term screen and then the model assessment.
// A screen hit always forces is_safe=false.
func (v *Validator) Validate(ctx context.Context, draft *models.StoryDraft, child *models.Child, opts Options) (*models.SafetyAssessment, error) {
	screened := ScreenTerms(draft.Title+"\n"+draft.Body, v.terms)
	if len(screened) > 0 {
		v.log.Info("blocked terms found in draft", zap.Strings("risks", screened))
	}

	start := time.Now()
	raw, err := v.svc.GenerateJSON(ctx, content.Request{
		Agent:  "validator",
		System: "Sen çocuk içeriği güvenliği ve Türk kültürel değerleri konusunda titiz bir denetçisin.",
		Prompt: validatePrompt(draft, child),
	})

	var resp assessmentResponse
	if err == nil {
		err = decode(raw, &resp)
	}
	metrics.ObserveAgentCall("validator", start, err)

	if err != nil {
		if !opts.Fallback {
			return nil, fmt.Errorf("failed to validate story: %w", err)
		}
		v.log.Warn("validator call failed, holding story for review", zap.Error(err))
		return reviewAssessment(screened), nil
	}

	a := &models.SafetyAssessment{
		AgeAppropriateness:      score(resp.AgeAppropriateness),
		CulturalAppropriateness: score(resp.CulturalAppropriateness),
		EducationalValue:        score(resp.EducationalValue),
		SafetyScore:             score(resp.SafetyScore),
		LanguageAppropriateness: score(resp.LanguageAppropriateness),
		Risks:                   normalizeRisks(resp.IdentifiedRisks),
		Recommendations:         resp.Recommendations,
		Feedback:                strings.TrimSpace(resp.DetailedFeedback),
	}
	if resp.IsSafe != nil {
		a.IsSafe = *resp.IsSafe
	} else {
		a.IsSafe = a.SafetyScore >= ApproveThreshold
	}

	if len(screened) > 0 {
		a.IsSafe = false
		a.Risks = mergeUnique(a.Risks, screened...)
	}

	status, ok := models.ParseApprovalStatus(resp.ApprovalStatus)
	if !ok {
		status = deriveStatus(a.IsSafe, a.SafetyScore)
	}
	if !a.IsSafe && status == models.ApprovalApproved {
		status = models.ApprovalNeedsReview
	}
	a.ApprovalStatus = status

	return a, nil
}

func deriveStatus(isSafe bool, safetyScore int) models.ApprovalStatus {
	switch {
	case isSafe && safetyScore >= ApproveThreshold:
		return models.ApprovalApproved
	case !isSafe && safetyScore < 40:
		return models.ApprovalRejected
	default:
		return models.ApprovalNeedsReview
	}
}

// reviewAssessment is used when the model could not assess the draft and the fallback is enabled.
// The story is never approved without a guardian looking at it.
func reviewAssessment(screened []string) *models.SafetyAssessment {
	return &models.SafetyAssessment{
		AgeAppropriateness:      50,
		CulturalAppropriateness: 50,
		EducationalValue:        50,
		SafetyScore:             50,
		LanguageAppropriateness: 50,
		IsSafe:                  len(screened) == 0,
		Risks:                   screened,
		Recommendations:         []string{"Hikayeyi çocuğunuzla paylaşmadan önce okuyun."},
		ApprovalStatus:          models.ApprovalNeedsReview,
		Feedback:                "Otomatik güvenlik değerlendirmesi yapılamadı.",
	}
}

func score(n flexNumber) int {
	return clamp(int(n.mean()+0.5), 0, 100)
}

// riskAliases is ordered: canonical tags first, Turkish keywords after
var riskAliases = []struct{ alias, flag string }{
	{"fear_inducing", models.RiskFearInducing},
	{"age_inappropriate", models.RiskAgeInappropriate},
	{"cultural_insensitivity", models.RiskCulturalInsensitivity},
	{"negative_role_model", models.RiskNegativeRoleModel},
	{"violence", models.RiskViolence},
	{"şiddet", models.RiskViolence},
	{"korku", models.RiskFearInducing},
	{"rol model", models.RiskNegativeRoleModel},
	{"kültür", models.RiskCulturalInsensitivity},
	{"yaş", models.RiskAgeInappropriate},
}

// normalizeRisks maps free-text risks onto the known flags and keeps unknown ones verbatim
func normalizeRisks(risks []string) []string {
	out := make([]string, 0, len(risks))
	for _, r := range risks {
		lower := lowerTurkish(r)
		mapped := ""
		for _, ra := range riskAliases {
			if strings.Contains(lower, ra.alias) || strings.Contains(strings.ReplaceAll(lower, " ", "_"), ra.alias) {
				mapped = ra.flag
				break
			}
		}
		if mapped == "" {
			mapped = strings.TrimSpace(r)
		}
		out = append(out, mapped)
	}
	return mergeUnique(out)
}

// ScreenTerms returns the sorted, de-duplicated risk flags of every blocked term found in text.
// Terms match at a word start so Turkish suffixes still hit ("öldür" in "öldürdü");
// terms of three runes or fewer must match a whole word.
func ScreenTerms(text string, terms map[string]string) []string {
	if len(terms) == 0 {
		return nil
	}
	lower := lowerTurkish(text)

	flags := make(map[string]bool)
	for term, flag := range terms {
		if flags[flag] {
			continue
		}
		if containsTerm(lower, term) {
			flags[flag] = true
		}
	}

	out := make([]string, 0, len(flags))
	for flag := range flags {
		out = append(out, flag)
	}
	sort.Strings(out)
	return out
}

func containsTerm(text, term string) bool {
	whole := utf8.RuneCountInString(term) <= 3
	for i := 0; i < len(text); {
		idx := strings.Index(text[i:], term)
		if idx < 0 {
			return false
		}
		pos := i + idx
		end := pos + len(term)

		startOK := pos == 0
		if !startOK {
			r, _ := utf8.DecodeLastRuneInString(text[:pos])
			startOK = !isWordRune(r)
		}
		endOK := !whole || end == len(text)
		if whole && !endOK {
			r, _ := utf8.DecodeRuneInString(text[end:])
			endOK = !isWordRune(r)
		}
		if startOK && endOK {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[pos:])
		i = pos + size
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lowerTurkish(s string) string {
	return strings.ToLowerSpecial(unicode.TurkishCase, s)
}

func validatePrompt(draft *models.StoryDraft, child *models.Child) string {
	age, background := 0, models.DefaultCulturalBackground
	if child != nil {
		age = child.Age
		if child.CulturalBackground != "" {
			background = child.CulturalBackground
		}
	}

	return fmt.Sprintf(`Bu hikaye içeriğini çocuk güvenliği ve Türk kültürel değerleri açısından değerlendir.

Hikaye: %s

Çocuk Bilgileri:
- Yaş: %d
- Kültürel Geçmiş: %s

Değerlendirme Kriterleri (her biri 0-100):
1. Yaş Uygunluğu
2. Kültürel Uygunluk
3. Eğitici Değer
4. Güvenlik Skoru
5. Dil Uygunluğu

Potansiyel riskler için yalnızca şu etiketleri kullan:
fear_inducing, age_inappropriate, cultural_insensitivity, negative_role_model, violence

Yalnızca şu JSON nesnesini döndür:
{
  "is_safe": true,
  "safety_score": 0,
  "age_appropriateness": 0,
  "cultural_appropriateness": 0,
  "educational_value": 0,
  "language_appropriateness": 0,
  "identified_risks": [],
  "recommendations": [],
  "approval_status": "approved|needs_review|rejected",
  "detailed_feedback": ""
}`, mustJSON(draft), age, content.Sanitize(background))
}
