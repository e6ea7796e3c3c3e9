package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	appMiddleware "github.com/markdave123-py/lessontutor/internal/api/middlewares"
	"github.com/markdave123-py/lessontutor/internal/api/response"
	"github.com/markdave123-py/lessontutor/internal/core/apierr"
	"github.com/markdave123-py/lessontutor/internal/core/logger"
	"github.com/markdave123-py/lessontutor/internal/services"
)

// maxBodyBytes bounds the chat request body; a 4000 rune message fits comfortably.
const maxBodyBytes = 64 << 10

type Tutor interface {
	Ask(ctx context.Context, userID, requestID string, req services.ChatRequest) (*services.ChatResponse, error)
}

type ChatHandler struct {
	tutor Tutor
	log   *logger.Logger
}

func NewChatHandler(tutor Tutor, log *logger.Logger) *ChatHandler {
	return &ChatHandler{tutor: tutor, log: log}
}

// Ask handles POST /api/ai/chat.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID, ok := appMiddleware.UserID(r.Context())
	if !ok {
		response.Error(w, r, apierr.New(http.StatusUnauthorized, apierr.CodeInvalidToken, errors.New("unauthorized")))
		return
	}

	var req services.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		response.Error(w, r, apierr.BadRequest(apierr.CodeInvalidBody, errors.New("invalid request body")).
			WithStage(services.StageValidateInput))
		return
	}

	requestID := middleware.GetReqID(r.Context())
	resp, err := h.tutor.Ask(r.Context(), userID, requestID, req)
	if err != nil {
		ae := apierr.From(err)
		if ae.Status >= http.StatusInternalServerError {
			h.log.Error("chat request failed", "request_id", requestID, "stage", ae.Stage, "code", ae.Code, "error", err)
		} else {
			h.log.Warn("chat request rejected", "request_id", requestID, "stage", ae.Stage, "code", ae.Code, "error", err)
		}
		response.Error(w, r, ae)
		return
	}
	response.OK(w, resp)
}
