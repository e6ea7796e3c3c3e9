package policy

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/markdave123-py/lessontutor/internal/models"
)

var cheatingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bgive\s+me\s+(?:the\s+|a\s+)?(?:final\s+|full\s+|correct\s+|complete\s+|right\s+)?(?:answers?|solutions?)\b`),
	regexp.MustCompile(`\b(?:just|only)\s+(?:the\s+)?answers?\b`),
	regexp.MustCompile(`\b(?:full|complete|whole|entire)\s+solutions?\b`),
	regexp.MustCompile(`\b(?:final|correct)\s+answers?\b`),
	regexp.MustCompile(`\banswer\s+key\b`),
	regexp.MustCompile(`\bsolve\s+(?:it|this|them)\s+for\s+me\b`),
	regexp.MustCompile(`\bdo\s+my\s+(?:homework|assignment|quiz)\b`),
	regexp.MustCompile(`\bwhat\s+is\s+the\s+answer\s+to\b`),
}

var cheatingPhrases = []string{
	"дай ответ", "дайте ответ", "скажи ответ", "скажите ответ", "просто ответ",
	"готовый ответ", "правильный ответ", "полное решение", "готовое решение", "реши за меня",
	"жауабын бер", "жауабын айт", "жауабы қандай", "дайын жауап", "дұрыс жауап",
	"толық шешім", "шешіп бер", "шешімін бер",
}

// DetectCheatingIntent reports whether the message asks for the answer itself
// rather than help reaching it.
func DetectCheatingIntent(message string) bool {
	norm := strings.Join(strings.Fields(strings.ToLower(message)), " ")
	if norm == "" {
		return false
	}
	for _, re := range cheatingPatterns {
		if re.MatchString(norm) {
			return true
		}
	}
	for _, p := range cheatingPhrases {
		if strings.Contains(norm, p) {
			return true
		}
	}
	return false
}

const kazakhLetters = "әғқңөұүһіӘҒҚҢӨҰҮҺІ"

// DetectLanguage guesses the reply language from the message script.
func DetectLanguage(message string) models.Lang {
	var cyrillic, latin int
	for _, r := range message {
		switch {
		case strings.ContainsRune(kazakhLetters, r):
			return models.LangKZ
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	if cyrillic > latin {
		return models.LangRU
	}
	return models.LangEN
}

// ResolveLanguage keeps a valid requested language and detects one otherwise.
func ResolveLanguage(requested, message string) models.Lang {
	l := models.Lang(strings.ToLower(strings.TrimSpace(requested)))
	if l.Valid() {
		return l
	}
	return DetectLanguage(message)
}
