package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markdave123-py/lessontutor/internal/api/response"
	"github.com/markdave123-py/lessontutor/internal/core/apierr"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserID returns the authenticated user id placed on the context by JWT.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithUserID attaches an authenticated user id to ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// JWT validates an HS256 bearer token signed with secret and attaches its
// user_id (or sub) claim to the request context.
func JWT(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				response.Error(w, r, invalidToken(errors.New("missing bearer token")))
				return
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !token.Valid {
				response.Error(w, r, invalidToken(errors.New("invalid token")))
				return
			}

			userID := claimUserID(claims)
			if userID == "" {
				response.Error(w, r, invalidToken(errors.New("token has no user id")))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func claimUserID(claims jwt.MapClaims) string {
	if id, ok := claims["user_id"].(string); ok && id != "" {
		return id
	}
	sub, _ := claims.GetSubject()
	return sub
}

func invalidToken(err error) *apierr.Error {
	return apierr.New(http.StatusUnauthorized, apierr.CodeInvalidToken, err).WithStage("auth")
}
