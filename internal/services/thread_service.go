package services

import (
	"context"

	db "github.com/markdave123-py/lessontutor/internal/core/database"
	"github.com/markdave123-py/lessontutor/internal/core/ledger"
	"github.com/markdave123-py/lessontutor/internal/core/trace"
	"github.com/markdave123-py/lessontutor/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ThreadService exposes a user's own conversation threads.
type ThreadService struct {
	store  db.DbClient
	ledger *ledger.Ledger
}

func NewThreadService(store db.DbClient) *ThreadService {
	return &ThreadService{store: store, ledger: ledger.New(store)}
}

// List returns the user's threads, newest first. An empty courseID lists every scope.
func (s *ThreadService) List(ctx context.Context, tr trace.Trace, userID, courseID, lessonID string, limit int) ([]models.Thread, error) {
	threads, err := s.store.ListThreads(ctx, userID, courseID, lessonID, clampLimit(limit))
	if err != nil {
		return nil, ledger.StoreError(tr, err)
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	return threads, nil
}

// Messages returns the latest messages of an owned thread in chronological order.
func (s *ThreadService) Messages(ctx context.Context, tr trace.Trace, userID, threadID string, limit int) ([]models.Message, error) {
	if _, err := s.ledger.OwnedThread(ctx, tr, userID, threadID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, threadID, clampLimit(limit))
	if err != nil {
		return nil, ledger.StoreError(tr, err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// Delete removes an owned thread together with its messages.
func (s *ThreadService) Delete(ctx context.Context, tr trace.Trace, userID, threadID string) error {
	if _, err := s.ledger.OwnedThread(ctx, tr, userID, threadID); err != nil {
		return err
	}
	if err := s.store.DeleteThread(ctx, threadID); err != nil {
		return ledger.StoreError(tr, err)
	}
	return nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	}
	return n
}
