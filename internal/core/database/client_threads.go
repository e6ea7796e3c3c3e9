package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/markdave123-py/lessontutor/internal/models"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const threadColumns = `id, user_id, course_id, lesson_id, title, message_count, created_at, updated_at, last_message_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*models.Thread, error) {
	var (
		t                      models.Thread
		created, updated, last int64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.CourseID, &t.LessonID, &t.Title, &t.MessageCount, &created, &updated, &last); err != nil {
		return nil, err
	}
	t.CreatedAt, t.UpdatedAt, t.LastMessageAt = fromMillis(created), fromMillis(updated), fromMillis(last)
	return &t, nil
}

func (c *DatabaseClient) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	q := `SELECT ` + threadColumns + ` FROM threads WHERE id = ?`
	t, err := scanThread(c.db.QueryRowContext(ctx, c.dialect.rebind(q), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return t, nil
}

// FindLatestThread returns the most recently updated thread for (user, course, lesson), or nil.
func (c *DatabaseClient) FindLatestThread(ctx context.Context, userID, courseID, lessonID string) (*models.Thread, error) {
	q := `SELECT ` + threadColumns + ` FROM threads
		WHERE user_id = ? AND course_id = ? AND lesson_id = ?
		ORDER BY updated_at DESC
		LIMIT 1`
	t, err := scanThread(c.db.QueryRowContext(ctx, c.dialect.rebind(q), userID, courseID, lessonID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return t, nil
}

// ListThreads lists a user's threads, newest first. Empty courseID lists across courses.
func (c *DatabaseClient) ListThreads(ctx context.Context, userID, courseID, lessonID string, limit int) ([]models.Thread, error) {
	q := `SELECT ` + threadColumns + ` FROM threads WHERE user_id = ?`
	args := []any{userID}
	if courseID != "" {
		q += ` AND course_id = ? AND lesson_id = ?`
		args = append(args, courseID, lessonID)
	}
	q += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, c.dialect.rebind(q), args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []models.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

const messageColumns = `id, thread_id, user_id, role, content, model, input_tokens, output_tokens,
	sources, citations, citation_meta, mode, policy, response, created_at`

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		m                                            models.Message
		role, mode                                   string
		sources, citations, citationMeta, policy, rs sql.NullString
		created                                      int64
	)
	if err := row.Scan(&m.ID, &m.ThreadID, &m.UserID, &role, &m.Content, &m.Model, &m.InputTokens, &m.OutputTokens,
		&sources, &citations, &citationMeta, &mode, &policy, &rs, &created); err != nil {
		return nil, err
	}
	m.Role, m.Mode, m.CreatedAt = models.Role(role), models.Mode(mode), fromMillis(created)
	if err := decodeJSON(sources, &m.Sources); err != nil {
		return nil, fmt.Errorf("message %s sources: %w", m.ID, err)
	}
	if err := decodeJSON(citations, &m.Citations); err != nil {
		return nil, fmt.Errorf("message %s citations: %w", m.ID, err)
	}
	if err := decodeJSON(citationMeta, &m.CitationMeta); err != nil {
		return nil, fmt.Errorf("message %s citation_meta: %w", m.ID, err)
	}
	if policy.Valid && policy.String != "" {
		m.Policy = &models.Policy{}
		if err := json.Unmarshal([]byte(policy.String), m.Policy); err != nil {
			return nil, fmt.Errorf("message %s policy: %w", m.ID, err)
		}
	}
	if rs.Valid {
		m.Response = []byte(rs.String)
	}
	return &m, nil
}

// ListMessages returns up to limit most recent messages of a thread in chronological order.
func (c *DatabaseClient) ListMessages(ctx context.Context, threadID string, limit int) ([]models.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages
		WHERE thread_id = ?
		ORDER BY created_at DESC, CASE role WHEN 'assistant' THEN 1 ELSE 0 END DESC
		LIMIT ?`
	rows, err := c.db.QueryContext(ctx, c.dialect.rebind(q), threadID, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// GetUserMessage looks a message up by its owner and id, returning nil when absent.
func (c *DatabaseClient) GetUserMessage(ctx context.Context, userID, messageID string) (*models.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE user_id = ? AND id = ?`
	m, err := scanMessage(c.db.QueryRowContext(ctx, c.dialect.rebind(q), userID, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return m, nil
}

// DeleteThread removes a thread and all of its messages in one transaction.
func (c *DatabaseClient) DeleteThread(ctx context.Context, threadID string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, c.dialect.rebind(`DELETE FROM messages WHERE thread_id = ?`), threadID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, c.dialect.rebind(`DELETE FROM threads WHERE id = ?`), threadID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func decodeJSON(s sql.NullString, dst any) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}
