package analytics

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/lessontutor/internal/core/database/dbtest"
	"github.com/markdave123-py/lessontutor/internal/core/logger"
	"github.com/markdave123-py/lessontutor/internal/models"
)

var day = time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)

func TestRecordID(t *testing.T) {
	assert.Equal(t, "c1_l1_2025-05-02", RecordID("c1", "l1", day))
	assert.Equal(t, "c1_all_2025-05-02", RecordID("c1", "", day))
}

func TestQuestionHashNormalizes(t *testing.T) {
	assert.Equal(t, QuestionHash("What is  Entropy?"), QuestionHash("what is entropy"))
	assert.NotEqual(t, QuestionHash("what is entropy"), QuestionHash("what is enthalpy"))
	assert.Len(t, QuestionHash("x"), 16)
}

func TestMergeCountersAndTopQuestions(t *testing.T) {
	rec := &models.AnalyticsDaily{}
	Merge(rec, Event{CourseID: "c1", Mode: "lesson", Outcome: "ok", Question: "What is entropy?", At: day}, "l1")
	Merge(rec, Event{CourseID: "c1", Mode: "quiz", Outcome: "policy_refusal", Question: "give me the answer", At: day.Add(time.Minute)}, "l1")
	Merge(rec, Event{CourseID: "c1", Mode: "lesson", Outcome: "ok", Question: "what is entropy", At: day.Add(2 * time.Minute)}, "l1")

	assert.EqualValues(t, 3, rec.TotalRequests)
	assert.Equal(t, map[string]int64{"lesson": 2, "quiz": 1}, rec.ByMode)
	assert.Equal(t, map[string]int64{"ok": 2, "policy_refusal": 1}, rec.ByOutcome)
	assert.Equal(t, "l1", rec.LessonID)
	assert.Equal(t, "2025-05-02", rec.Date)

	require.Len(t, rec.TopQuestions, 2)
	assert.Equal(t, "What is entropy?", rec.TopQuestions[0].Example)
	assert.EqualValues(t, 2, rec.TopQuestions[0].Count)
	assert.Equal(t, day.Add(2*time.Minute), rec.TopQuestions[0].LastSeen)
}

func TestMergeKeepsTopTwentyByCountThenRecency(t *testing.T) {
	rec := &models.AnalyticsDaily{}
	for i := 0; i < 25; i++ {
		Merge(rec, Event{CourseID: "c1", Mode: "lesson", Outcome: "ok", Question: fmt.Sprintf("question %d", i), At: day.Add(time.Duration(i) * time.Second)}, "")
	}
	Merge(rec, Event{CourseID: "c1", Mode: "lesson", Outcome: "ok", Question: "question 3", At: day.Add(time.Hour)}, "")

	require.Len(t, rec.TopQuestions, MaxTopQuestions)
	assert.Equal(t, "question 3", rec.TopQuestions[0].Example)
	assert.Equal(t, "question 24", rec.TopQuestions[1].Example)
	for i := 2; i < len(rec.TopQuestions); i++ {
		assert.False(t, rec.TopQuestions[i].LastSeen.After(rec.TopQuestions[i-1].LastSeen))
	}

	long := &models.AnalyticsDaily{}
	Merge(long, Event{CourseID: "c1", Question: strings.Repeat("я", 300), At: day}, "")
	assert.Equal(t, maxExampleRunes, len([]rune(long.TopQuestions[0].Example)))
}

func TestAggregatorWritesLessonAndCourseRecords(t *testing.T) {
	ctx := context.Background()
	store := dbtest.Open(t)
	agg := NewAggregator(store, logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lesson := "l1"
			if i%2 == 1 {
				lesson = "l2"
			}
			assert.NoError(t, agg.Record(ctx, Event{CourseID: "c1", LessonID: lesson, Mode: "lesson", Outcome: "ok", Question: "q", At: day}))
		}(i)
	}
	wg.Wait()
	require.NoError(t, agg.Record(ctx, Event{LessonID: "l1", Mode: "lesson", Outcome: "ok", Question: "no course", At: day}))

	var l1, all models.AnalyticsDaily
	require.NoError(t, store.MergeAnalytics(ctx, RecordID("c1", "l1", day), func(r *models.AnalyticsDaily) { l1 = *r }))
	require.NoError(t, store.MergeAnalytics(ctx, RecordID("c1", "", day), func(r *models.AnalyticsDaily) { all = *r }))

	assert.EqualValues(t, 3, l1.TotalRequests)
	assert.EqualValues(t, 6, all.TotalRequests)
	assert.Equal(t, "", all.LessonID)
	require.Len(t, all.TopQuestions, 1)
	assert.EqualValues(t, 6, all.TopQuestions[0].Count)
}
