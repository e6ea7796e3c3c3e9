// Package ledger owns per-user quota counters and the atomic persistence of tutor turns.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/lessontutor/internal/core/apierr"
	db "github.com/markdave123-py/lessontutor/internal/core/database"
	"github.com/markdave123-py/lessontutor/internal/core/trace"
	"github.com/markdave123-py/lessontutor/internal/models"
)

const (
	DailyMessageLimit = 20
	MonthlyTokenLimit = 120000

	maxTitleRunes = 60
)

type Ledger struct {
	store db.DbClient
}

func New(store db.DbClient) *Ledger {
	return &Ledger{store: store}
}

// DailyKey and MonthlyKey roll over on UTC date and month boundaries.
func DailyKey(userID string, now time.Time) string {
	return userID + "_" + now.UTC().Format("2006-01-02")
}

func MonthlyKey(userID string, now time.Time) string {
	return userID + "_" + now.UTC().Format("2006-01")
}

// Usage is a snapshot of both counters taken before a turn.
type Usage struct {
	DailyMessages int64
	MonthlyTokens int64
}

type Remaining struct {
	DailyMessagesLeft int64 `json:"dailyMessagesLeft"`
	MonthlyTokensLeft int64 `json:"monthlyTokensLeft"`
}

// After returns what is left once a turn costing one message and tokens is committed.
func (u Usage) After(tokens int64) Remaining {
	return Remaining{
		DailyMessagesLeft: max(0, DailyMessageLimit-(u.DailyMessages+1)),
		MonthlyTokensLeft: max(0, MonthlyTokenLimit-(u.MonthlyTokens+tokens)),
	}
}

func (u Usage) exhausted() bool {
	return u.DailyMessages >= DailyMessageLimit || u.MonthlyTokens >= MonthlyTokenLimit
}

// Check reads both counters concurrently and rejects the request when either limit is reached.
func (l *Ledger) Check(ctx context.Context, tr trace.Trace, userID string, now time.Time) (Usage, error) {
	var u Usage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := l.store.GetCounter(gctx, DailyKey(userID, now))
		u.DailyMessages = n
		return err
	})
	g.Go(func() error {
		n, err := l.store.GetCounter(gctx, MonthlyKey(userID, now))
		u.MonthlyTokens = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Usage{}, StoreError(tr, fmt.Errorf("read usage counters: %w", err))
	}
	if u.exhausted() {
		return u, tr.Fail(http.StatusTooManyRequests, apierr.CodeQuotaExceeded, errors.New("usage quota exceeded")).
			WithDetail(fmt.Sprintf("daily %d/%d messages, monthly %d/%d tokens",
				u.DailyMessages, DailyMessageLimit, u.MonthlyTokens, MonthlyTokenLimit))
	}
	return u, nil
}

// OwnedThread loads a client-supplied thread and enforces ownership.
// An empty id yields nil.
func (l *Ledger) OwnedThread(ctx context.Context, tr trace.Trace, userID, threadID string) (*models.Thread, error) {
	if threadID == "" {
		return nil, nil
	}
	t, err := l.store.GetThread(ctx, threadID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, tr.Fail(http.StatusNotFound, apierr.CodeNotFound, fmt.Errorf("thread %s not found", threadID))
	}
	if err != nil {
		return nil, StoreError(tr, err)
	}
	if t.UserID != userID {
		return nil, tr.Fail(http.StatusForbidden, apierr.CodeForbiddenThread, fmt.Errorf("thread %s belongs to another user", threadID))
	}
	return t, nil
}

type ThreadRequest struct {
	UserID    string
	CourseID  string
	LessonID  string
	NewThread bool
	// Title seeds the title of a newly created thread.
	Title string
}

// ResolveThread picks the thread a turn is written to: the owned thread when
// one was supplied, else the latest matching thread unless a new one was asked
// for, else a fresh thread. The bool reports whether the thread is new.
func (l *Ledger) ResolveThread(ctx context.Context, tr trace.Trace, req ThreadRequest, owned *models.Thread, now time.Time) (*models.Thread, bool, error) {
	if owned != nil {
		return owned, false, nil
	}
	if !req.NewThread {
		latest, err := l.store.FindLatestThread(ctx, req.UserID, req.CourseID, req.LessonID)
		if err != nil {
			return nil, false, StoreError(tr, err)
		}
		if latest != nil {
			return latest, false, nil
		}
	}
	return &models.Thread{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		CourseID:      req.CourseID,
		LessonID:      req.LessonID,
		Title:         threadTitle(req.Title),
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}, true, nil
}

func threadTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = strings.TrimSpace(string([]rune(title)[:maxTitleRunes])) + "..."
	}
	if title == "" {
		title = "New conversation"
	}
	return title
}

// UserMessageID and AssistantMessageID are deterministic for a client request
// id so a retried turn collides with the one already stored.
func UserMessageID(clientRequestID string) string {
	if clientRequestID == "" {
		return uuid.NewString()
	}
	return "u_" + clientRequestID
}

func AssistantMessageID(clientRequestID string) string {
	if clientRequestID == "" {
		return uuid.NewString()
	}
	return "a_" + clientRequestID
}

// FindReplay returns the stored assistant message of an already completed request, or nil.
func (l *Ledger) FindReplay(ctx context.Context, tr trace.Trace, userID, clientRequestID string) (*models.Message, error) {
	if clientRequestID == "" {
		return nil, nil
	}
	m, err := l.store.GetUserMessage(ctx, userID, AssistantMessageID(clientRequestID))
	if err != nil {
		return nil, StoreError(tr, err)
	}
	if m == nil || m.Role != models.RoleAssistant || len(m.Response) == 0 {
		return nil, nil
	}
	return m, nil
}

// Turn is one question and its answer, ready to persist.
type Turn struct {
	Thread    *models.Thread
	NewThread bool
	UserID    string
	User      models.Message
	Assistant models.Message
	Tokens    int64
	Now       time.Time
}

// Commit applies counters, both messages and the thread update in a single
// transaction. A duplicate client request id returns db.ErrDuplicate and writes nothing.
func (l *Ledger) Commit(ctx context.Context, t Turn) error {
	counters := []db.CounterIncrement{{
		ID: DailyKey(t.UserID, t.Now), UserID: t.UserID, Period: t.Now.UTC().Format("2006-01-02"), Delta: 1,
	}}
	if t.Tokens > 0 {
		counters = append(counters, db.CounterIncrement{
			ID: MonthlyKey(t.UserID, t.Now), UserID: t.UserID, Period: t.Now.UTC().Format("2006-01"), Delta: t.Tokens,
		})
	}
	return l.store.ApplyTurn(ctx, db.TurnWrite{
		Thread:    t.Thread,
		NewThread: t.NewThread,
		Messages:  []models.Message{t.User, t.Assistant},
		Counters:  counters,
		Now:       t.Now,
	})
}

// StoreError maps persistence failures onto terminal API errors.
func StoreError(tr trace.Trace, err error) *apierr.Error {
	var ae *apierr.Error
	switch {
	case errors.As(err, &ae):
		return tr.Tag(ae)
	case errors.Is(err, db.ErrMissingIndex):
		return tr.Fail(http.StatusConflict, apierr.CodeMissingIndex, err).
			WithDetail("a required database index is not ready yet; retry shortly")
	case errors.Is(err, db.ErrNotFound):
		return tr.Fail(http.StatusNotFound, apierr.CodeNotFound, err)
	default:
		return tr.Fail(http.StatusInternalServerError, apierr.CodeInternal, err)
	}
}
