package policy

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/lessontutor/internal/models"
)

var languageNames = map[models.Lang]string{
	models.LangKZ: "Kazakh",
	models.LangRU: "Russian",
	models.LangEN: "English",
}

// LanguageName returns the English name of a response language.
func LanguageName(l models.Lang) string {
	if n, ok := languageNames[l]; ok {
		return n
	}
	return languageNames[models.LangEN]
}

// Instructions renders the policy section of the system prompt.
func Instructions(mode models.Mode, p models.Policy, lang models.Lang) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a tutor for an online course. The student is in %s mode.\n", mode)
	fmt.Fprintf(&b, "Always reply in %s.\n", LanguageName(lang))

	if p.Style == StyleSocratic {
		b.WriteString("Guide the student with questions and hints so they reach the answer themselves.\n")
	} else {
		b.WriteString("Explain concepts clearly and step by step.\n")
	}
	if !p.AllowDirectAnswers {
		b.WriteString("Do not state the final answer to any quiz or assignment question.\n")
	}
	if !p.AllowFullSolutions {
		b.WriteString("Never write a complete worked solution; give at most one next step.\n")
	}
	if p.CitationRequired {
		b.WriteString("Every factual claim must cite the excerpt ids it comes from. Use only ids that appear in the excerpts.\n")
	}
	b.WriteString("Use only the provided course context and excerpts. If they do not contain the answer, set needsMoreContext to true.\n")
	if p.MaxAnswerLength > 0 {
		fmt.Fprintf(&b, "Keep the answer under %d characters.\n", p.MaxAnswerLength)
	}
	return strings.TrimRight(b.String(), "\n")
}
