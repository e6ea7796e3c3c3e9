package validator

import (
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/lessontutor/internal/core/retrieval"
	"github.com/markdave123-py/lessontutor/internal/models"
)

// Outcome is the analytics classification of a turn.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeUnsupported    Outcome = "unsupported"
	OutcomeErrorRecovered Outcome = "error_recovered"
	OutcomePolicyRefusal  Outcome = "policy_refusal"
)

// Override names the canned response that replaced the model answer, if any.
type Override string

const (
	OverrideNone         Override = ""
	OverrideNotMentioned Override = "not_mentioned"
	OverrideHintOnly     Override = "hint_only"
	OverrideUnsupported  Override = "unsupported"
	OverrideNoContext    Override = "no_context"
)

const maxTemplateCitations = 2

// Input is everything validation needs about one turn.
type Input struct {
	Output         ParsedModelOutput
	Message        string
	Lang           models.Lang
	Policy         models.Policy
	Restricted     bool
	CheatingIntent bool
	// ChunkIDs and Excerpts describe the chunks in the context pack, in selection order.
	ChunkIDs []string
	Excerpts []string
}

type Result struct {
	Answer             string
	Citations          []string
	Confidence         Confidence
	NeedsMoreContext   bool
	ClarifyingQuestion *string
	Outcome            Outcome
	Override           Override
	InvalidCitations   []string
}

// Validate applies, in order: meta-line stripping, the explicit-source and
// sensitive-topic override, the cheating override, then citation, grounding and
// language checks. Only the first override that fires applies.
func Validate(in Input) Result {
	out := in.Output
	res := Result{
		Answer:             StripMetaLines(out.Answer),
		Confidence:         out.Confidence,
		NeedsMoreContext:   out.NeedsMoreContext,
		ClarifyingQuestion: out.ClarifyingQuestion,
		Outcome:            OutcomeOK,
	}

	if len(in.ChunkIDs) > 0 && NotInExcerpts(in.Message, in.Excerpts) {
		res = canned(NotMentioned(in.Lang), firstN(in.ChunkIDs, maxTemplateCitations), OverrideNotMentioned, OutcomeUnsupported)
		return finish(res, in.Policy)
	}

	if in.Restricted && in.CheatingIntent {
		if len(in.ChunkIDs) == 0 {
			res = canned(Unsupported(in.Lang), nil, OverrideUnsupported, OutcomePolicyRefusal)
		} else {
			res = canned(HintOnly(in.Lang), firstN(in.ChunkIDs, maxTemplateCitations), OverrideHintOnly, OutcomePolicyRefusal)
		}
		return finish(res, in.Policy)
	}

	allowed := make(map[string]bool, len(in.ChunkIDs))
	for _, id := range in.ChunkIDs {
		allowed[id] = true
	}
	seen := map[string]bool{}
	for _, raw := range out.Citations {
		c := canonicalCitation(raw)
		switch {
		case !allowed[c]:
			res.InvalidCitations = append(res.InvalidCitations, c)
		case !seen[c]:
			seen[c] = true
			res.Citations = append(res.Citations, c)
		}
	}

	missingCitations := in.Policy.CitationRequired && len(in.ChunkIDs) > 0 &&
		len(res.Citations) == 0 && len(res.InvalidCitations) == 0
	mismatch := ScriptMismatch(res.Answer, in.Lang)
	empty := strings.TrimSpace(res.Answer) == ""

	switch {
	case missingCitations || mismatch || empty:
		invalid := res.InvalidCitations
		res = canned(Unsupported(in.Lang), nil, OverrideUnsupported, OutcomeErrorRecovered)
		res.InvalidCitations = invalid
	case out.NeedsMoreContext:
		invalid := res.InvalidCitations
		res = canned(Unsupported(in.Lang), nil, OverrideUnsupported, OutcomeUnsupported)
		res.InvalidCitations = invalid
		if len(invalid) > 0 {
			res.Outcome = OutcomeErrorRecovered
		}
	case len(res.InvalidCitations) > 0:
		res.Outcome = OutcomeErrorRecovered
	}
	return finish(res, in.Policy)
}

// NoContextResult is the reply used when the lesson has neither readable
// documents nor configured context. The model is not called.
func NoContextResult(lang models.Lang) Result {
	return finish(canned(NoContext(lang), nil, OverrideNoContext, OutcomeUnsupported), models.Policy{})
}

// NotInExcerpts is the explicit-source and sensitive-topic trigger. Either
// condition alone fires it.
func NotInExcerpts(message string, excerpts []string) bool {
	corpus := Normalize(strings.Join(excerpts, "\n"))

	if IsExplicitSourceQuery(message) {
		if kws := FilteredKeywords(message); len(kws) > 0 {
			found := false
			for _, k := range kws {
				if strings.Contains(corpus, k) {
					found = true
					break
				}
			}
			if !found {
				return true
			}
		}
	}

	asked := SensitiveCategories(message)
	if len(asked) == 0 {
		return false
	}
	present := map[string]bool{}
	for _, c := range SensitiveCategories(corpus) {
		present[c] = true
	}
	for _, c := range asked {
		if !present[c] {
			return true
		}
	}
	return false
}

// canonicalCitation strips the wrapping models tend to add ("[docA#02]",
// " (docA#2) ") and rewrites the index in its canonical form.
func canonicalCitation(raw string) string {
	c := strings.Trim(strings.TrimSpace(raw), "[]()<>`'\" ")
	docID, idx, err := retrieval.ParseChunkID(c)
	if err != nil {
		return c
	}
	return retrieval.ChunkID(strings.TrimSpace(docID), idx)
}

func canned(answer string, citations []string, o Override, outcome Outcome) Result {
	return Result{
		Answer:           answer,
		Citations:        citations,
		Confidence:       ConfidenceLow,
		NeedsMoreContext: true,
		Outcome:          outcome,
		Override:         o,
	}
}

func finish(res Result, p models.Policy) Result {
	if res.Citations == nil {
		res.Citations = []string{}
	}
	if p.MaxAnswerLength > 0 && utf8.RuneCountInString(res.Answer) > p.MaxAnswerLength {
		res.Answer = strings.TrimSpace(string([]rune(res.Answer)[:p.MaxAnswerLength]))
	}
	return res
}

func firstN(ids []string, n int) []string {
	if len(ids) > n {
		ids = ids[:n]
	}
	return append([]string(nil), ids...)
}
