package content

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxPromptInput is the rune limit for user text embedded in a prompt
const MaxPromptInput = 500

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(the\s+)?(previous|prior|above)\s+(instructions|prompts?|rules)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
	regexp.MustCompile(`(?i)(önceki|yukarıdaki)\s+(tüm\s+)?(talimatları|kuralları)\s+(unut|yok\s+say|görmezden\s+gel)`),
	regexp.MustCompile(`(?i)<\|?/?(system|assistant|user|im_start|im_end)\|?>`),
	regexp.MustCompile(`(?im)^\s*(system|assistant)\s*:`),
}

var whitespace = regexp.MustCompile(`\s+`)

// Sanitize removes prompt-injection phrases and role tags from user text,
// collapses whitespace and truncates to MaxPromptInput runes.
func Sanitize(s string) string {
	for _, re := range injectionPatterns {
		s = re.ReplaceAllString(s, " ")
	}
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))

	if utf8.RuneCountInString(s) > MaxPromptInput {
		runes := []rune(s)
		s = strings.TrimSpace(string(runes[:MaxPromptInput]))
	}
	return s
}

// StripFences removes a surrounding markdown code fence such as ```json ... ```
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
