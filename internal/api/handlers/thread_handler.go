package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appMiddleware "github.com/markdave123-py/lessontutor/internal/api/middlewares"
	"github.com/markdave123-py/lessontutor/internal/api/response"
	"github.com/markdave123-py/lessontutor/internal/core/apierr"
	"github.com/markdave123-py/lessontutor/internal/core/trace"
	"github.com/markdave123-py/lessontutor/internal/models"
)

type Threads interface {
	List(ctx context.Context, tr trace.Trace, userID, courseID, lessonID string, limit int) ([]models.Thread, error)
	Messages(ctx context.Context, tr trace.Trace, userID, threadID string, limit int) ([]models.Message, error)
	Delete(ctx context.Context, tr trace.Trace, userID, threadID string) error
}

type ThreadHandler struct {
	threads Threads
}

func NewThreadHandler(threads Threads) *ThreadHandler {
	return &ThreadHandler{threads: threads}
}

type threadsResponse struct {
	Threads []models.Thread `json:"threads"`
}

type messagesResponse struct {
	ThreadID string           `json:"threadId"`
	Messages []models.Message `json:"messages"`
}

// List handles GET /api/ai/threads?courseId=&lessonId=&limit=.
func (h *ThreadHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, tr, ok := authed(w, r, "threads")
	if !ok {
		return
	}
	q := r.URL.Query()
	threads, err := h.threads.List(r.Context(), tr, userID, q.Get("courseId"), q.Get("lessonId"), limitParam(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, threadsResponse{Threads: threads})
}

// Messages handles GET /api/ai/threads/{threadID}/messages.
func (h *ThreadHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, tr, ok := authed(w, r, "thread_messages")
	if !ok {
		return
	}
	threadID := chi.URLParam(r, "threadID")
	msgs, err := h.threads.Messages(r.Context(), tr, userID, threadID, limitParam(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, messagesResponse{ThreadID: threadID, Messages: msgs})
}

// Delete handles DELETE /api/ai/threads/{threadID}.
func (h *ThreadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, tr, ok := authed(w, r, "thread_delete")
	if !ok {
		return
	}
	if err := h.threads.Delete(r.Context(), tr, userID, chi.URLParam(r, "threadID")); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, map[string]bool{"ok": true})
}

func authed(w http.ResponseWriter, r *http.Request, stage string) (string, trace.Trace, bool) {
	tr := trace.New(middleware.GetReqID(r.Context()), time.Now()).At(stage)
	userID, ok := appMiddleware.UserID(r.Context())
	if !ok {
		response.Error(w, r, tr.Fail(http.StatusUnauthorized, apierr.CodeInvalidToken, errors.New("unauthorized")))
		return "", tr, false
	}
	return userID, tr, true
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
