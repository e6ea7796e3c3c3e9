package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appMiddleware "github.com/markdave123-py/lessontutor/internal/api/middlewares"
	"github.com/markdave123-py/lessontutor/internal/api/response"
	"github.com/markdave123-py/lessontutor/internal/core/apierr"
	"github.com/markdave123-py/lessontutor/internal/core/logger"
	"github.com/markdave123-py/lessontutor/internal/core/trace"
	"github.com/markdave123-py/lessontutor/internal/models"
	"github.com/markdave123-py/lessontutor/internal/services"
)

type fakeTutor struct {
	gotUser string
	gotReq  services.ChatRequest
	resp    *services.ChatResponse
	err     error
}

func (f *fakeTutor) Ask(_ context.Context, userID, _ string, req services.ChatRequest) (*services.ChatResponse, error) {
	f.gotUser, f.gotReq = userID, req
	return f.resp, f.err
}

type fakeThreads struct {
	deleted string
	err     error
}

func (f *fakeThreads) List(_ context.Context, _ trace.Trace, userID, courseID, _ string, limit int) ([]models.Thread, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.Thread{{ID: "t1", UserID: userID, CourseID: courseID, MessageCount: limit}}, nil
}

func (f *fakeThreads) Messages(_ context.Context, tr trace.Trace, _, threadID string, _ int) ([]models.Message, error) {
	if threadID != "t1" {
		return nil, tr.Fail(http.StatusForbidden, apierr.CodeForbiddenThread, errors.New("not your thread"))
	}
	return []models.Message{{ID: "m1", ThreadID: threadID, Role: models.RoleUser, Content: "hi"}}, nil
}

func (f *fakeThreads) Delete(_ context.Context, _ trace.Trace, _, threadID string) error {
	f.deleted = threadID
	return f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func asUser(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id != "" {
				r = r.WithContext(appMiddleware.WithUserID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func router(user string, tutor Tutor, threads Threads) *chi.Mux {
	chat := NewChatHandler(tutor, logger.NewNop())
	th := NewThreadHandler(threads)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(asUser(user))
	r.Post("/api/ai/chat", chat.Ask)
	r.Get("/api/ai/threads", th.List)
	r.Get("/api/ai/threads/{threadID}/messages", th.Messages)
	r.Delete("/api/ai/threads/{threadID}", th.Delete)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorEnvelope {
	t.Helper()
	var env response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestChatAsk(t *testing.T) {
	tutor := &fakeTutor{resp: &services.ChatResponse{Answer: "Entropy is disorder.", Citations: []string{"docA#2"}, Mode: models.ModeLesson}}
	r := router("u1", tutor, &fakeThreads{})

	rec := do(r, http.MethodPost, "/api/ai/chat", `{"message":"What is entropy?","courseId":"c1","lessonId":"l1","clientRequestId":"k1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", tutor.gotUser)
	assert.Equal(t, "c1", tutor.gotReq.CourseID)
	assert.Equal(t, "k1", tutor.gotReq.ClientRequestID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Entropy is disorder.", body["answer"])
	assert.Equal(t, []any{"docA#2"}, body["citations"])
	assert.Equal(t, "lesson", body["mode"])
}

func TestChatAskInvalidBody(t *testing.T) {
	tutor := &fakeTutor{}
	r := router("u1", tutor, &fakeThreads{})

	rec := do(r, http.MethodPost, "/api/ai/chat", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := envelope(t, rec)
	assert.Equal(t, apierr.CodeInvalidBody, env.Code)
	assert.Equal(t, services.StageValidateInput, env.Stage)
	assert.NotEmpty(t, env.RequestID)
	assert.Empty(t, tutor.gotUser)
}

func TestChatAskRendersStageErrors(t *testing.T) {
	quota := apierr.New(http.StatusTooManyRequests, apierr.CodeQuotaExceeded, errors.New("daily message limit reached")).
		WithStage(services.StageQuota).WithDetail("daily")
	r := router("u1", &fakeTutor{err: quota}, &fakeThreads{})

	rec := do(r, http.MethodPost, "/api/ai/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	env := envelope(t, rec)
	assert.False(t, env.OK)
	assert.Equal(t, apierr.CodeQuotaExceeded, env.Code)
	assert.Equal(t, services.StageQuota, env.Stage)
	assert.Equal(t, "daily message limit reached", env.Message)
	assert.Equal(t, "daily", env.Detail)

	model := apierr.New(http.StatusBadGateway, apierr.CodeModelFailed, errors.New("upstream key leaked here")).WithStage(services.StageModel)
	r = router("u1", &fakeTutor{err: model}, &fakeThreads{})
	rec = do(r, http.MethodPost, "/api/ai/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	env = envelope(t, rec)
	assert.Equal(t, apierr.CodeModelFailed, env.Code)
	assert.NotContains(t, env.Message, "leaked")
}

func TestChatAskRequiresUser(t *testing.T) {
	r := router("", &fakeTutor{}, &fakeThreads{})
	rec := do(r, http.MethodPost, "/api/ai/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apierr.CodeInvalidToken, envelope(t, rec).Code)
}

func TestThreadRoutes(t *testing.T) {
	threads := &fakeThreads{}
	r := router("u1", &fakeTutor{}, threads)

	rec := do(r, http.MethodGet, "/api/ai/threads?courseId=c1&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list threadsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Threads, 1)
	assert.Equal(t, "u1", list.Threads[0].UserID)
	assert.Equal(t, "c1", list.Threads[0].CourseID)
	assert.Equal(t, 5, list.Threads[0].MessageCount)

	rec = do(r, http.MethodGet, "/api/ai/threads/t1/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs messagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	assert.Equal(t, "t1", msgs.ThreadID)
	require.Len(t, msgs.Messages, 1)

	rec = do(r, http.MethodGet, "/api/ai/threads/t2/messages", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	env := envelope(t, rec)
	assert.Equal(t, apierr.CodeForbiddenThread, env.Code)
	assert.Equal(t, "thread_messages", env.Stage)

	rec = do(r, http.MethodDelete, "/api/ai/threads/t1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", threads.deleted)
}

func TestThreadListStoreFailure(t *testing.T) {
	r := router("u1", &fakeTutor{}, &fakeThreads{err: errors.New("db down")})
	rec := do(r, http.MethodGet, "/api/ai/threads", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := envelope(t, rec)
	assert.Equal(t, apierr.CodeInternal, env.Code)
	assert.NotContains(t, env.Message, "db down")
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(fakePinger{}).Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(fakePinger{err: errors.New("closed")}).Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
