package retrieval

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	definitionBonus   = 50
	phraseBonus       = 10
	minPhraseLen      = 8
	longTokenLen      = 6
	maxDefinitionTerm = 80
)

// Tokenize lowercases the query, turns every non letter/digit run into a
// single space and keeps tokens longer than two characters.
func Tokenize(query string) []string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(query) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	var tokens []string
	for _, t := range strings.Fields(b.String()) {
		if utf8.RuneCountInString(t) > 2 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Score is the base lexical score of a lowercased chunk against the query tokens.
func Score(chunkLower string, tokens []string, queryLower string) int {
	score := 0
	for _, t := range tokens {
		n := strings.Count(chunkLower, t)
		if n == 0 {
			continue
		}
		weight := 1
		if utf8.RuneCountInString(t) > longTokenLen {
			weight = 2
		}
		score += n * weight
	}
	if utf8.RuneCountInString(queryLower) > minPhraseLen && strings.Contains(chunkLower, queryLower) {
		score += phraseBonus
	}
	return score
}

var definitionQueryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bdefinition\s+of\s+(.+)`),
	regexp.MustCompile(`(?i)\bdefine\s+(.+)`),
	regexp.MustCompile(`(?i)\bwhat\s+does\s+(.+?)\s+mean\b`),
	regexp.MustCompile(`(?i)\bmeaning\s+of\s+(.+)`),
	regexp.MustCompile(`(?i)\bwhat\s+is\s+(?:an?\s+|the\s+)?(.+)`),
	regexp.MustCompile(`(?i)\baccording\s+to\s+(.+)`),
	regexp.MustCompile(`(?i)(?:^|\s)что\s+такое\s+(.+)`),
	regexp.MustCompile(`(?i)(?:^|\s)определение\s+(.+)`),
	regexp.MustCompile(`(?i)(?:^|\s)что\s+означает\s+(.+)`),
	regexp.MustCompile(`(?i)^(.+?)\s+(?:деген|дегеніміз)\s+не`),
	regexp.MustCompile(`(?i)^(.+?)\s+анықтамасы`),
}

var definitionWords = []string{
	"definition", "define", "meaning", "means",
	"определение", "означает", "значение",
	"анықтама", "мағынасы", "дегеніміз",
}

// DetectDefinitionQuery reports whether the message asks for a definition and
// returns the term being defined. Messages with only generic definitional
// words are flagged with an empty term.
func DetectDefinitionQuery(message string) (bool, string) {
	msg := strings.TrimSpace(message)
	for _, re := range definitionQueryPatterns {
		m := re.FindStringSubmatch(msg)
		if len(m) < 2 {
			continue
		}
		if term := cleanTerm(m[1]); term != "" {
			return true, term
		}
	}
	lower := strings.ToLower(msg)
	for _, w := range definitionWords {
		if strings.Contains(lower, w) {
			return true, ""
		}
	}
	return false, ""
}

func cleanTerm(s string) string {
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	s = NormalizeWhitespace(s)
	if utf8.RuneCountInString(s) > maxDefinitionTerm {
		return ""
	}
	return s
}

// DefinitionPattern matches "<term> is|means|refers to|defined as" with the term
// on a word boundary. Go's \b is ASCII-only, so boundaries are spelled out.
func DefinitionPattern(term string) *regexp.Regexp {
	term = NormalizeWhitespace(term)
	if term == "" {
		return nil
	}
	parts := strings.Split(term, " ")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	expr := `(?i)(?:^|[^\p{L}\p{N}_])` + strings.Join(parts, `\s+`) +
		`\s+(?:is|means|refers\s+to|defined\s+as|это|является|означает|дегеніміз)(?:[^\p{L}\p{N}_]|$)`
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	return re
}

var keywordStopwords = map[string]bool{
	"what": true, "which": true, "where": true, "when": true, "there": true, "their": true,
	"about": true, "would": true, "could": true, "should": true, "does": true, "this": true,
	"that": true, "with": true, "from": true, "have": true, "give": true, "please": true,
	"explain": true, "tell": true, "answer": true, "question": true, "lesson": true,
	"course": true, "according": true, "definition": true, "define": true, "meaning": true,
	"these": true, "those": true, "into": true, "your": true, "mean": true,
	"какой": true, "какая": true, "почему": true, "объясни": true, "пожалуйста": true,
	"согласно": true, "определение": true, "қандай": true, "туралы": true, "бойынша": true,
}

// ExtractKeywords returns the lowercased keywords used for the lexical boost.
func ExtractKeywords(message string) []string {
	var out []string
	seen := map[string]bool{}
	for _, raw := range strings.Fields(message) {
		w := strings.TrimFunc(raw, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		n := utf8.RuneCountInString(w)
		if n < 4 {
			continue
		}
		if !(isCapitalized(w) || n >= 5) {
			continue
		}
		lw := strings.ToLower(w)
		if keywordStopwords[lw] || seen[lw] {
			continue
		}
		seen[lw] = true
		out = append(out, lw)
	}
	return out
}

func isCapitalized(w string) bool {
	first, _ := utf8.DecodeRuneInString(w)
	if !unicode.IsUpper(first) {
		return false
	}
	return strings.ToUpper(w) != w
}

// LexicalMatches counts keyword occurrences in a lowercased chunk.
func LexicalMatches(chunkLower string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		n += strings.Count(chunkLower, k)
	}
	return n
}

// Query is the preprocessed form of a user message.
type Query struct {
	Raw          string
	Lower        string
	Tokens       []string
	Keywords     []string
	IsDefinition bool
	Term         string
	definition   *regexp.Regexp
}

func NewQuery(message string) Query {
	q := Query{
		Raw:      message,
		Lower:    strings.ToLower(strings.TrimSpace(message)),
		Tokens:   Tokenize(message),
		Keywords: ExtractKeywords(message),
	}
	q.IsDefinition, q.Term = DetectDefinitionQuery(message)
	if q.IsDefinition && q.Term != "" {
		q.definition = DefinitionPattern(q.Term)
	}
	return q
}

// ChunkScore is the ranking data for one chunk.
type ChunkScore struct {
	Index         int
	Score         int
	DefinitionHit bool
	LexicalHits   int
}

// ScoreChunk computes the full score of a chunk including the definition bonus.
func (q Query) ScoreChunk(index int, chunk string) ChunkScore {
	lower := strings.ToLower(chunk)
	cs := ChunkScore{
		Index:       index,
		Score:       Score(lower, q.Tokens, q.Lower),
		LexicalHits: LexicalMatches(lower, q.Keywords),
	}
	if q.definition != nil && q.definition.MatchString(chunk) {
		cs.DefinitionHit = true
		cs.Score += definitionBonus
	}
	return cs
}
