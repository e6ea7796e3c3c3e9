package db

import (
	"context"
	"time"

	"github.com/markdave123-py/lessontutor/internal/models"
)

// CounterIncrement adds Delta to one usage counter document.
type CounterIncrement struct {
	ID     string
	UserID string
	Period string
	Delta  int64
}

// TurnWrite is every write of one tutor turn. ApplyTurn applies all of it or none of it.
type TurnWrite struct {
	Thread    *models.Thread
	NewThread bool
	Messages  []models.Message
	Counters  []CounterIncrement
	Now       time.Time
}

// DbClient defines all persistence operations the tutor needs.
// It abstracts Postgres/SQLite so higher layers never depend on a specific DB.
type DbClient interface {
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	GetLesson(ctx context.Context, id string) (*models.Lesson, error)
	UpsertCourse(ctx context.Context, course *models.Course) error
	UpsertLesson(ctx context.Context, lesson *models.Lesson) error

	GetCachedText(ctx context.Context, id string) (*models.CachedText, error)
	PutCachedText(ctx context.Context, entry *models.CachedText) error

	GetThread(ctx context.Context, id string) (*models.Thread, error)
	FindLatestThread(ctx context.Context, userID, courseID, lessonID string) (*models.Thread, error)
	ListThreads(ctx context.Context, userID, courseID, lessonID string, limit int) ([]models.Thread, error)
	ListMessages(ctx context.Context, threadID string, limit int) ([]models.Message, error)
	GetUserMessage(ctx context.Context, userID, messageID string) (*models.Message, error)
	DeleteThread(ctx context.Context, threadID string) error

	GetCounter(ctx context.Context, id string) (int64, error)
	ApplyTurn(ctx context.Context, w TurnWrite) error

	MergeAnalytics(ctx context.Context, id string, fn func(rec *models.AnalyticsDaily)) error

	Close() error
}
