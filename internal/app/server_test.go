package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/lessontutor/internal/config"
	"github.com/markdave123-py/lessontutor/internal/core/logger"
	"github.com/markdave123-py/lessontutor/internal/core/trace"
	"github.com/markdave123-py/lessontutor/internal/models"
	"github.com/markdave123-py/lessontutor/internal/services"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubTutor struct{}

func (stubTutor) Ask(_ context.Context, _, _ string, req services.ChatRequest) (*services.ChatResponse, error) {
	return &services.ChatResponse{Answer: "echo: " + req.Message}, nil
}

type stubThreads struct{}

func (stubThreads) List(context.Context, trace.Trace, string, string, string, int) ([]models.Thread, error) {
	return []models.Thread{}, nil
}

func (stubThreads) Messages(context.Context, trace.Trace, string, string, int) ([]models.Message, error) {
	return []models.Message{}, nil
}

func (stubThreads) Delete(context.Context, trace.Trace, string, string) error { return nil }

func testRouter() http.Handler {
	cfg := &config.Config{JWTSecret: "s3cret", RatePerMin: 1, CORSOrigins: []string{"http://localhost:5173"}}
	return NewRouter(cfg, logger.NewNop(), stubPinger{}, stubTutor{}, stubThreads{})
}

func bearer(t *testing.T) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u1"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	return "Bearer " + s
}

func TestRouterRequiresTokenOnAPI(t *testing.T) {
	r := testRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ai/threads", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterRateLimitsChat(t *testing.T) {
	r := testRouter()
	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", strings.NewReader(`{"message":"hi"}`))
		req.Header.Set("Authorization", bearer(t))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	req := httptest.NewRequest(http.MethodGet, "/api/ai/threads", nil)
	req.Header.Set("Authorization", bearer(t))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "only the chat route is rate limited")
}
