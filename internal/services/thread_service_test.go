package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/lessontutor/internal/core/apierr"
	"github.com/markdave123-py/lessontutor/internal/core/trace"
)

func TestThreadServiceListMessagesDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := trace.New("req-threads", h.now)
	threads := NewThreadService(h.store)

	first, err := h.ask(t, "u1", ChatRequest{Message: "What is the definition of entropy?", CourseID: "c1", LessonID: "l1"})
	require.NoError(t, err)
	second, err := h.ask(t, "u1", ChatRequest{Message: "What is entropy?", CourseID: "c2", LessonID: "l2", NewThread: true})
	require.NoError(t, err)
	require.NotEqual(t, first.ThreadID, second.ThreadID)

	all, err := threads.List(ctx, tr, "u1", "", "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ThreadID, all[0].ID, "newest first")

	scoped, err := threads.List(ctx, tr, "u1", "c1", "l1", 10)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "What is the definition of entropy?", scoped[0].Title)

	none, err := threads.List(ctx, tr, "u2", "", "", 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	msgs, err := threads.Messages(ctx, tr, "u1", first.ThreadID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.Answer, msgs[1].Content)

	_, err = threads.Messages(ctx, tr, "u2", first.ThreadID, 0)
	assert.Equal(t, http.StatusForbidden, apierr.From(err).Status)

	err = threads.Delete(ctx, tr, "u2", first.ThreadID)
	assert.Equal(t, http.StatusForbidden, apierr.From(err).Status)

	require.NoError(t, threads.Delete(ctx, tr, "u1", first.ThreadID))
	_, err = threads.Messages(ctx, tr, "u1", first.ThreadID, 0)
	assert.Equal(t, http.StatusNotFound, apierr.From(err).Status)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, clampLimit(0))
	assert.Equal(t, defaultListLimit, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, maxListLimit, clampLimit(10_000))
}
