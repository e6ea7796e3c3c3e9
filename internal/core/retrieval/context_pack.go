package retrieval

import (
	"strings"

	"github.com/markdave123-py/lessontutor/internal/models"
)

// Summary renders the course and lesson metadata that heads every context pack.
func Summary(course *models.Course, lesson *models.Lesson) string {
	var b strings.Builder
	if course != nil {
		writeLine(&b, "Course", course.Title)
		writeLine(&b, "Course description", course.Description)
		writeLine(&b, "Course notes", course.AIContext)
	}
	if lesson != nil {
		writeLine(&b, "Lesson", lesson.Title)
		writeLine(&b, "Lesson type", lesson.Type)
		writeLine(&b, "Lesson notes", lesson.AIContext)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeLine(b *strings.Builder, key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

// BuildContextPack joins the summary with the labelled excerpts.
func BuildContextPack(summary string, sel Selection) string {
	var b strings.Builder
	if summary != "" {
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	if len(sel.Excerpts) == 0 {
		b.WriteString("No document excerpts are available for this lesson.")
		return b.String()
	}
	b.WriteString("Document excerpts (cite by the id in parentheses):\n")
	for _, e := range sel.Excerpts {
		b.WriteString("\n[")
		b.WriteString(e.Label)
		b.WriteString("]\n")
		b.WriteString(e.Text)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
