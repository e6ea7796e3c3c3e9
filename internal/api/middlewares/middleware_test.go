package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/lessontutor/internal/api/response"
	"github.com/markdave123-py/lessontutor/internal/core/apierr"
)

const secret = "test-secret"

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := UserID(r.Context())
		_, _ = w.Write([]byte(id))
	})
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestJWTAcceptsUserIDAndSubject(t *testing.T) {
	h := JWT(secret)(echoUser())

	rec := serve(h, sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"user_id": "u1"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())

	rec = serve(h, sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "u2"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u2", rec.Body.String())
}

func TestJWTRejectsBadTokens(t *testing.T) {
	h := JWT(secret)(echoUser())
	expired := jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(-time.Hour).Unix()}

	cases := map[string]string{
		"missing":     "",
		"garbage":     "not-a-jwt",
		"wrong key":   sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"user_id": "u1"}),
		"wrong alg":   sign(t, jwt.SigningMethodHS512, []byte(secret), jwt.MapClaims{"user_id": "u1"}),
		"expired":     sign(t, jwt.SigningMethodHS256, []byte(secret), expired),
		"no identity": sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"role": "student"}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(h, token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var body response.ErrorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.OK)
			assert.Equal(t, apierr.CodeInvalidToken, body.Code)
		})
	}
}

func TestRateLimiterPerUser(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u2"), "buckets are per user")

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("u1"), "one token refills every 30s")
}

func TestRateLimiterEvictsIdleUsers(t *testing.T) {
	rl := NewRateLimiter(5)
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("u1")
	rl.Allow("u2")
	require.Equal(t, 2, rl.size())

	now = now.Add(time.Hour)
	rl.Allow("u3")
	assert.Equal(t, 1, rl.size())
}

func TestRateLimiterHandler(t *testing.T) {
	rl := NewRateLimiter(1)
	h := rl.Handler(echoUser())

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithUserID(req.Context(), "u1"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusOK, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apierr.CodeRateLimited, body.Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("u1"))
	}
}
