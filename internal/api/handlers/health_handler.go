package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/markdave123-py/lessontutor/internal/api/response"
	"github.com/markdave123-py/lessontutor/internal/core/apierr"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health handles GET /healthz. It reports unavailable when the store does not answer.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		response.Error(w, r, apierr.New(http.StatusServiceUnavailable, apierr.CodeInternal, err).WithStage("health"))
		return
	}
	response.OK(w, map[string]string{"status": "ok"})
}
