package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/markdave123-py/lessontutor/internal/config"
	"github.com/markdave123-py/lessontutor/internal/models"
)

type DatabaseClient struct {
	db      *sql.DB
	dialect dialect
}

var _ DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	return Open(ctx, cfg.DatabaseURL)
}

// Open connects to the database behind databaseURL and bootstraps the schema.
func Open(ctx context.Context, databaseURL string) (*DatabaseClient, error) {
	driver, dsn, d := parseDatabaseURL(databaseURL)
	if d == dialectSQLite && !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		// Writers take the lock at BEGIN so concurrent read-modify-write
		// transactions queue on busy_timeout instead of failing.
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if d == dialectPostgres {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetConnMaxIdleTime(10 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db, dialect: d}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping is used by the health endpoint.
func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *DatabaseClient) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return classify(err)
	}
	return classify(tx.Commit())
}

// Courses and lessons

func (c *DatabaseClient) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	const q = `
		SELECT id, title, description, ai_context, ai_default_mode, ai_policy, updated_at
		FROM courses WHERE id = ?
	`
	var (
		course  models.Course
		mode    string
		policy  sql.NullString
		updated int64
	)
	err := c.db.QueryRowContext(ctx, c.dialect.rebind(q), id).Scan(
		&course.ID, &course.Title, &course.Description, &course.AIContext, &mode, &policy, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	course.AIDefaultMode = models.Mode(mode)
	course.UpdatedAt = fromMillis(updated)
	if course.AIPolicy, err = decodePolicyOverrides(policy); err != nil {
		return nil, fmt.Errorf("course %s ai_policy: %w", id, err)
	}
	return &course, nil
}

func (c *DatabaseClient) UpsertCourse(ctx context.Context, course *models.Course) error {
	if course == nil {
		return errors.New("nil course")
	}
	policy, err := encodeNullable(course.AIPolicy)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO courses (id, title, description, ai_context, ai_default_mode, ai_policy, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			ai_context = excluded.ai_context,
			ai_default_mode = excluded.ai_default_mode,
			ai_policy = excluded.ai_policy,
			updated_at = excluded.updated_at
	`
	_, err = c.db.ExecContext(ctx, c.dialect.rebind(q),
		course.ID, course.Title, course.Description, course.AIContext, string(course.AIDefaultMode), policy, toMillis(nowIfZero(course.UpdatedAt)))
	return classify(err)
}

func (c *DatabaseClient) GetLesson(ctx context.Context, id string) (*models.Lesson, error) {
	const q = `
		SELECT id, course_id, title, type, ai_context, ai_default_mode, ai_policy, resources, updated_at
		FROM lessons WHERE id = ?
	`
	var (
		lesson    models.Lesson
		mode      string
		policy    sql.NullString
		resources string
		updated   int64
	)
	err := c.db.QueryRowContext(ctx, c.dialect.rebind(q), id).Scan(
		&lesson.ID, &lesson.CourseID, &lesson.Title, &lesson.Type, &lesson.AIContext, &mode, &policy, &resources, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	lesson.AIDefaultMode = models.Mode(mode)
	lesson.UpdatedAt = fromMillis(updated)
	if lesson.AIPolicy, err = decodePolicyOverrides(policy); err != nil {
		return nil, fmt.Errorf("lesson %s ai_policy: %w", id, err)
	}
	if resources != "" {
		if err := json.Unmarshal([]byte(resources), &lesson.Resources); err != nil {
			return nil, fmt.Errorf("lesson %s resources: %w", id, err)
		}
	}
	return &lesson, nil
}

func (c *DatabaseClient) UpsertLesson(ctx context.Context, lesson *models.Lesson) error {
	if lesson == nil {
		return errors.New("nil lesson")
	}
	policy, err := encodeNullable(lesson.AIPolicy)
	if err != nil {
		return err
	}
	resources := lesson.Resources
	if resources == nil {
		resources = []models.Resource{}
	}
	rawResources, err := json.Marshal(resources)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO lessons (id, course_id, title, type, ai_context, ai_default_mode, ai_policy, resources, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			course_id = excluded.course_id,
			title = excluded.title,
			type = excluded.type,
			ai_context = excluded.ai_context,
			ai_default_mode = excluded.ai_default_mode,
			ai_policy = excluded.ai_policy,
			resources = excluded.resources,
			updated_at = excluded.updated_at
	`
	_, err = c.db.ExecContext(ctx, c.dialect.rebind(q),
		lesson.ID, lesson.CourseID, lesson.Title, lesson.Type, lesson.AIContext, string(lesson.AIDefaultMode),
		policy, string(rawResources), toMillis(nowIfZero(lesson.UpdatedAt)))
	return classify(err)
}

// Cached document text

func (c *DatabaseClient) GetCachedText(ctx context.Context, id string) (*models.CachedText, error) {
	const q = `
		SELECT id, text, name, storage_path, content_type, size, generation, updated_at
		FROM cached_texts WHERE id = ?
	`
	var (
		e       models.CachedText
		updated int64
	)
	err := c.db.QueryRowContext(ctx, c.dialect.rebind(q), id).Scan(
		&e.ID, &e.Text, &e.Name, &e.StoragePath, &e.ContentType, &e.Size, &e.Generation, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	e.UpdatedAt = fromMillis(updated)
	return &e, nil
}

func (c *DatabaseClient) PutCachedText(ctx context.Context, e *models.CachedText) error {
	if e == nil {
		return errors.New("nil cache entry")
	}
	const q = `
		INSERT INTO cached_texts (id, text, name, storage_path, content_type, size, generation, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			text = excluded.text,
			name = excluded.name,
			storage_path = excluded.storage_path,
			content_type = excluded.content_type,
			size = excluded.size,
			generation = excluded.generation,
			updated_at = excluded.updated_at
	`
	_, err := c.db.ExecContext(ctx, c.dialect.rebind(q),
		e.ID, e.Text, e.Name, e.StoragePath, e.ContentType, e.Size, e.Generation, toMillis(nowIfZero(e.UpdatedAt)))
	return classify(err)
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func encodeNullable(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case *models.PolicyOverrides:
		if t == nil {
			return sql.NullString{}, nil
		}
	case *models.Policy:
		if t == nil {
			return sql.NullString{}, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodePolicyOverrides(s sql.NullString) (*models.PolicyOverrides, error) {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil, nil
	}
	var o models.PolicyOverrides
	if err := json.Unmarshal([]byte(s.String), &o); err != nil {
		return nil, err
	}
	return &o, nil
}
