// Package analytics folds completed tutor turns into daily per-course and per-lesson records.
package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	db "github.com/markdave123-py/lessontutor/internal/core/database"
	"github.com/markdave123-py/lessontutor/internal/core/logger"
	"github.com/markdave123-py/lessontutor/internal/models"
)

const (
	MaxTopQuestions = 20
	maxExampleRunes = 160
	allLessons      = "all"
)

// Event is one completed turn.
type Event struct {
	CourseID string
	LessonID string
	Mode     string
	Outcome  string
	Question string
	At       time.Time
}

// RecordID is "<course>_<lesson or all>_<YYYY-MM-DD>".
func RecordID(courseID, lessonID string, day time.Time) string {
	if lessonID == "" {
		lessonID = allLessons
	}
	return courseID + "_" + lessonID + "_" + day.UTC().Format("2006-01-02")
}

// NormalizeQuestion is the form questions are grouped by.
func NormalizeQuestion(q string) string {
	q = cases.Fold().String(norm.NFKC.String(q))
	q = strings.Join(strings.Fields(q), " ")
	return strings.TrimRightFunc(q, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSpace(r) })
}

func QuestionHash(q string) string {
	sum := sha256.Sum256([]byte(NormalizeQuestion(q)))
	return hex.EncodeToString(sum[:])[:16]
}

// Merge folds ev into rec. lessonID is the record scope: empty for the course-wide record.
func Merge(rec *models.AnalyticsDaily, ev Event, lessonID string) {
	at := ev.At.UTC()
	rec.CourseID = ev.CourseID
	rec.LessonID = lessonID
	rec.Date = at.Format("2006-01-02")
	rec.UpdatedAt = at
	rec.TotalRequests++

	if rec.ByMode == nil {
		rec.ByMode = map[string]int64{}
	}
	if rec.ByOutcome == nil {
		rec.ByOutcome = map[string]int64{}
	}
	rec.ByMode[ev.Mode]++
	rec.ByOutcome[ev.Outcome]++

	if strings.TrimSpace(ev.Question) == "" {
		return
	}
	hash := QuestionHash(ev.Question)
	found := false
	for i := range rec.TopQuestions {
		if rec.TopQuestions[i].Hash == hash {
			rec.TopQuestions[i].Count++
			rec.TopQuestions[i].LastSeen = at
			found = true
			break
		}
	}
	if !found {
		rec.TopQuestions = append(rec.TopQuestions, models.TopQuestion{
			Hash:     hash,
			Example:  example(ev.Question),
			Count:    1,
			LastSeen: at,
		})
	}

	sort.SliceStable(rec.TopQuestions, func(i, j int) bool {
		a, b := rec.TopQuestions[i], rec.TopQuestions[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.LastSeen.After(b.LastSeen)
	})
	if len(rec.TopQuestions) > MaxTopQuestions {
		rec.TopQuestions = rec.TopQuestions[:MaxTopQuestions]
	}
}

func example(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if utf8.RuneCountInString(q) <= maxExampleRunes {
		return q
	}
	return string([]rune(q)[:maxExampleRunes])
}

type Aggregator struct {
	store db.DbClient
	log   *logger.Logger
}

func NewAggregator(store db.DbClient, log *logger.Logger) *Aggregator {
	return &Aggregator{store: store, log: log}
}

// Record writes the lesson-scoped record (when the turn has a lesson) and the
// course-wide record. Turns without a course are not recorded.
func (a *Aggregator) Record(ctx context.Context, ev Event) error {
	if ev.CourseID == "" {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	var errs []error
	if ev.LessonID != "" {
		id := RecordID(ev.CourseID, ev.LessonID, ev.At)
		if err := a.store.MergeAnalytics(ctx, id, func(rec *models.AnalyticsDaily) { Merge(rec, ev, ev.LessonID) }); err != nil {
			errs = append(errs, fmt.Errorf("merge %s: %w", id, err))
		}
	}
	id := RecordID(ev.CourseID, "", ev.At)
	if err := a.store.MergeAnalytics(ctx, id, func(rec *models.AnalyticsDaily) { Merge(rec, ev, "") }); err != nil {
		errs = append(errs, fmt.Errorf("merge %s: %w", id, err))
	}
	return errors.Join(errs...)
}
