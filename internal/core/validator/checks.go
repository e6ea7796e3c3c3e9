package validator

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/markdave123-py/lessontutor/internal/core/retrieval"
	"github.com/markdave123-py/lessontutor/internal/models"
)

// Normalize applies NFKC and Unicode case folding. A Caser is stateful, so one is built per call.
func Normalize(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

var metaLine = regexp.MustCompile(`(?i)^\s*[*_#>\-\s]*(sources?|citations?|references?|источники|ссылки|цитаты|дереккөздер|сілтемелер)\s*[*_]*\s*:`)

// StripMetaLines drops leading blank and "Sources:"/"Citations:" lines from an answer.
func StripMetaLines(answer string) string {
	lines := strings.Split(answer, "\n")
	i := 0
	for i < len(lines) {
		l := lines[i]
		if strings.TrimSpace(l) == "" || metaLine.MatchString(l) {
			i++
			continue
		}
		break
	}
	return strings.TrimSpace(strings.Join(lines[i:], "\n"))
}

var explicitSourcePhrases = []string{
	"according to", "in the text", "in the pdf", "in the document", "in the lesson",
	"in the reading", "in the article", "the author says", "the text says", "based on the text",
	"согласно", "по тексту", "в тексте", "в документе", "в статье", "по мнению автора", "в материале",
	"мәтін бойынша", "мәтінде", "құжатта", "мақалада", "автордың пікірінше", "сәйкес",
}

// IsExplicitSourceQuery reports whether the question points at the source material itself.
func IsExplicitSourceQuery(message string) bool {
	m := strings.Join(strings.Fields(Normalize(message)), " ")
	for _, p := range explicitSourcePhrases {
		if strings.Contains(m, p) {
			return true
		}
	}
	return false
}

var filterStopwords = map[string]bool{
	"according": true, "text": true, "document": true, "lesson": true, "article": true,
	"reading": true, "author": true, "says": true, "what": true, "does": true, "about": true,
	"which": true, "there": true, "this": true, "that": true, "with": true, "from": true,
	"have": true, "based": true, "explain": true, "please": true, "tell": true,
	"согласно": true, "тексту": true, "тексте": true, "документе": true, "статье": true,
	"автора": true, "мнению": true, "что": true, "какой": true, "почему": true, "говорится": true,
	"мәтін": true, "бойынша": true, "мәтінде": true, "құжатта": true, "сәйкес": true, "туралы": true,
	"қандай": true, "неге": true,
}

// FilteredKeywords are the content words of a question, minus source-reference words.
func FilteredKeywords(message string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range retrieval.Tokenize(Normalize(message)) {
		if utf8.RuneCountInString(tok) < 4 || filterStopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

type sensitiveCategory struct {
	name  string
	words []string
	stems []string
}

var sensitiveCategories = []sensitiveCategory{
	{
		name:  "crying",
		words: []string{"cry", "cries", "cried", "crying", "weep", "weeps", "wept", "weeping", "sob", "sobbed", "sobbing"},
		stems: []string{"плак", "плач", "рыда", "жыла"},
	},
	{
		name:  "alcohol",
		words: []string{"drink", "drinks", "drinking", "drank", "drunk", "alcohol", "alcoholic", "beer", "wine", "vodka", "whiskey"},
		stems: []string{"алкогол", "пьян", "выпива", "водк", "пиво", "вино", "ішімдік", "арақ", "сыра", "шарап", "маскүнем"},
	},
	{
		name:  "tears",
		words: []string{"tears", "teardrop", "teardrops", "tearful"},
		stems: []string{"слез", "слёз", "слеза", "жас төк", "көз жас"},
	},
}

// SensitiveCategories lists the sensitive-term categories mentioned in text.
func SensitiveCategories(text string) []string {
	lower := Normalize(text)
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) }) {
		words[w] = true
	}

	var out []string
	for _, c := range sensitiveCategories {
		if categoryPresent(c, lower, words) {
			out = append(out, c.name)
		}
	}
	return out
}

func categoryPresent(c sensitiveCategory, lower string, words map[string]bool) bool {
	for _, w := range c.words {
		if words[w] {
			return true
		}
	}
	for _, s := range c.stems {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

type Script string

const (
	ScriptUnknown  Script = ""
	ScriptLatin    Script = "latin"
	ScriptCyrillic Script = "cyrillic"
	ScriptMixed    Script = "mixed"
)

const (
	minScriptLetters = 12
	dominantShare    = 0.6
)

// DominantScript classifies text by its letters. Short answers are ScriptUnknown.
func DominantScript(text string) Script {
	var latin, cyrillic int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	total := latin + cyrillic
	if total < minScriptLetters {
		return ScriptUnknown
	}
	switch {
	case float64(cyrillic)/float64(total) >= dominantShare:
		return ScriptCyrillic
	case float64(latin)/float64(total) >= dominantShare:
		return ScriptLatin
	}
	return ScriptMixed
}

// ScriptMismatch reports a Cyrillic-heavy answer for English or a Latin-heavy one for kz/ru.
func ScriptMismatch(answer string, lang models.Lang) bool {
	switch DominantScript(answer) {
	case ScriptCyrillic:
		return lang == models.LangEN
	case ScriptLatin:
		return lang == models.LangKZ || lang == models.LangRU
	}
	return false
}
