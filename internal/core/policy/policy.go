// Package policy resolves the pedagogical mode and answer policy of a request.
package policy

import (
	"strings"

	"github.com/markdave123-py/lessontutor/internal/models"
)

const (
	StyleExplain  = "explain"
	StyleSocratic = "socratic"
)

var defaults = map[models.Mode]models.Policy{
	models.ModeLesson:     {AllowDirectAnswers: true, AllowFullSolutions: true, Style: StyleExplain, CitationRequired: true},
	models.ModeCourse:     {AllowDirectAnswers: true, AllowFullSolutions: true, Style: StyleExplain, CitationRequired: true},
	models.ModeQuiz:       {AllowDirectAnswers: false, AllowFullSolutions: false, Style: StyleSocratic, CitationRequired: true},
	models.ModeAssignment: {AllowDirectAnswers: false, AllowFullSolutions: false, Style: StyleSocratic, CitationRequired: true},
}

// Default returns the built-in policy of a mode. Unknown modes get the lesson policy.
func Default(mode models.Mode) models.Policy {
	if p, ok := defaults[mode]; ok {
		return p
	}
	return defaults[models.ModeLesson]
}

// ModeInput carries every signal mode resolution looks at.
type ModeInput struct {
	RequestMode   string
	ContextType   string
	Path          string
	LessonDefault models.Mode
	CourseDefault models.Mode
	LessonType    string
	CourseID      string
	LessonID      string
}

// ResolveMode applies the precedence: request field, context type, path,
// lesson default, course default, quiz lesson type, course-only scope, lesson.
func ResolveMode(in ModeInput) models.Mode {
	if m, ok := parseMode(in.RequestMode); ok {
		return m
	}
	if m, ok := parseMode(in.ContextType); ok {
		return m
	}
	if m, ok := modeFromPath(in.Path); ok {
		return m
	}
	if in.LessonDefault.Valid() {
		return in.LessonDefault
	}
	if in.CourseDefault.Valid() {
		return in.CourseDefault
	}
	if strings.EqualFold(strings.TrimSpace(in.LessonType), string(models.ModeQuiz)) {
		return models.ModeQuiz
	}
	if in.CourseID != "" && in.LessonID == "" {
		return models.ModeCourse
	}
	return models.ModeLesson
}

func parseMode(s string) (models.Mode, bool) {
	m := models.Mode(strings.ToLower(strings.TrimSpace(s)))
	return m, m.Valid()
}

func modeFromPath(path string) (models.Mode, bool) {
	p := strings.ToLower(path)
	switch {
	case strings.Contains(p, "/assignment/"):
		return models.ModeAssignment, true
	case strings.Contains(p, "/quiz/"):
		return models.ModeQuiz, true
	}
	return "", false
}

// ResolvePolicy resolves each field from the lesson override, then the course
// override, then the mode default.
func ResolvePolicy(mode models.Mode, lesson, course *models.PolicyOverrides) models.Policy {
	p := Default(mode)
	levels := []*models.PolicyOverrides{lesson, course}

	if v := firstBool(levels, func(o *models.PolicyOverrides) *bool { return o.AllowDirectAnswers }); v != nil {
		p.AllowDirectAnswers = *v
	}
	if v := firstBool(levels, func(o *models.PolicyOverrides) *bool { return o.AllowFullSolutions }); v != nil {
		p.AllowFullSolutions = *v
	}
	if v := firstBool(levels, func(o *models.PolicyOverrides) *bool { return o.CitationRequired }); v != nil {
		p.CitationRequired = *v
	}
	for _, o := range levels {
		if o != nil && o.Style != nil && validStyle(*o.Style) {
			p.Style = strings.ToLower(strings.TrimSpace(*o.Style))
			break
		}
	}
	for _, o := range levels {
		if o != nil && o.MaxAnswerLength != nil && *o.MaxAnswerLength >= 0 {
			p.MaxAnswerLength = *o.MaxAnswerLength
			break
		}
	}
	return p
}

func firstBool(levels []*models.PolicyOverrides, field func(*models.PolicyOverrides) *bool) *bool {
	for _, o := range levels {
		if o == nil {
			continue
		}
		if v := field(o); v != nil {
			return v
		}
	}
	return nil
}

func validStyle(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == StyleExplain || s == StyleSocratic
}

// IsRestricted reports whether direct answers are withheld for a graded mode.
func IsRestricted(mode models.Mode, p models.Policy) bool {
	return (mode == models.ModeQuiz || mode == models.ModeAssignment) && !p.AllowDirectAnswers
}
