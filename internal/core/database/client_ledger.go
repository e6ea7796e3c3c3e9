package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/markdave123-py/lessontutor/internal/models"
)

// GetCounter returns the current value of a usage counter, zero when it does not exist yet.
func (c *DatabaseClient) GetCounter(ctx context.Context, id string) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, c.dialect.rebind(`SELECT count FROM usage_counters WHERE id = ?`), id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// ApplyTurn writes counters, messages and thread metadata of one turn atomically.
// A message id that already exists aborts the whole turn with ErrDuplicate.
func (c *DatabaseClient) ApplyTurn(ctx context.Context, w TurnWrite) error {
	if w.Thread == nil {
		return errors.New("turn without thread")
	}
	now := toMillis(nowIfZero(w.Now))

	return c.withTx(ctx, func(tx *sql.Tx) error {
		for _, m := range w.Messages {
			if err := c.insertMessage(ctx, tx, m); err != nil {
				return fmt.Errorf("insert message %s: %w", m.ID, err)
			}
		}

		for _, inc := range w.Counters {
			const q = `
				INSERT INTO usage_counters (id, user_id, period, count, updated_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					count = usage_counters.count + excluded.count,
					updated_at = excluded.updated_at
			`
			if _, err := tx.ExecContext(ctx, c.dialect.rebind(q), inc.ID, inc.UserID, inc.Period, inc.Delta, now); err != nil {
				return fmt.Errorf("increment counter %s: %w", inc.ID, err)
			}
		}

		t := w.Thread
		if w.NewThread {
			const q = `
				INSERT INTO threads (id, user_id, course_id, lesson_id, title, message_count, created_at, updated_at, last_message_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`
			_, err := tx.ExecContext(ctx, c.dialect.rebind(q),
				t.ID, t.UserID, t.CourseID, t.LessonID, t.Title, len(w.Messages), now, now, now)
			if err != nil {
				return fmt.Errorf("create thread: %w", err)
			}
			return nil
		}

		const q = `
			UPDATE threads
			SET message_count = message_count + ?, updated_at = ?, last_message_at = ?
			WHERE id = ?
		`
		res, err := tx.ExecContext(ctx, c.dialect.rebind(q), len(w.Messages), now, now, t.ID)
		if err != nil {
			return fmt.Errorf("bump thread: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("thread %s: %w", t.ID, ErrNotFound)
		}
		return nil
	})
}

func (c *DatabaseClient) insertMessage(ctx context.Context, q queryer, m models.Message) error {
	sources, err := encodeNullable(m.Sources)
	if err != nil {
		return err
	}
	citations, err := encodeNullable(m.Citations)
	if err != nil {
		return err
	}
	meta, err := encodeNullable(m.CitationMeta)
	if err != nil {
		return err
	}
	policy, err := encodeNullable(m.Policy)
	if err != nil {
		return err
	}
	var response sql.NullString
	if len(m.Response) > 0 {
		response = sql.NullString{String: string(m.Response), Valid: true}
	}
	const stmt = `
		INSERT INTO messages (id, thread_id, user_id, role, content, model, input_tokens, output_tokens,
			sources, citations, citation_meta, mode, policy, response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, c.dialect.rebind(stmt),
		m.ID, m.ThreadID, m.UserID, string(m.Role), m.Content, m.Model, m.InputTokens, m.OutputTokens,
		sources, citations, meta, string(m.Mode), policy, response, toMillis(nowIfZero(m.CreatedAt)))
	return err
}

// MergeAnalytics applies fn to the analytics document id under a row lock.
// The document is created empty on first use. updated_at follows
// rec.UpdatedAt, falling back to the wall clock only when fn leaves it unset.
func (c *DatabaseClient) MergeAnalytics(ctx context.Context, id string, fn func(rec *models.AnalyticsDaily)) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		const seed = `
			INSERT INTO analytics_daily (id, doc, updated_at) VALUES (?, '{}', 0)
			ON CONFLICT (id) DO NOTHING
		`
		if _, err := tx.ExecContext(ctx, c.dialect.rebind(seed), id); err != nil {
			return fmt.Errorf("seed analytics %s: %w", id, err)
		}

		var raw string
		sel := `SELECT doc FROM analytics_daily WHERE id = ?` + c.dialect.lockSuffix()
		if err := tx.QueryRowContext(ctx, c.dialect.rebind(sel), id).Scan(&raw); err != nil {
			return fmt.Errorf("load analytics %s: %w", id, err)
		}

		rec := models.AnalyticsDaily{}
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("decode analytics %s: %w", id, err)
		}
		rec.ID = id
		fn(&rec)

		doc, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		const upd = `
			UPDATE analytics_daily
			SET course_id = ?, lesson_id = ?, date = ?, doc = ?, updated_at = ?
			WHERE id = ?
		`
		_, err = tx.ExecContext(ctx, c.dialect.rebind(upd),
			rec.CourseID, rec.LessonID, rec.Date, string(doc), toMillis(nowIfZero(rec.UpdatedAt)), id)
		return err
	})
}
