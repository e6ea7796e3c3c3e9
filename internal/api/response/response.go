// Package response renders JSON bodies and the API error envelope.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/markdave123-py/lessontutor/internal/core/apierr"
	"github.com/markdave123-py/lessontutor/internal/core/metrics"
)

type ErrorEnvelope struct {
	OK        bool   `json:"ok"`
	Stage     string `json:"stage,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func OK(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusOK, payload)
}

// Error writes err as an envelope. Errors that are not *apierr.Error become 500 internal.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ae := apierr.From(err)
	metrics.StageErrors.WithLabelValues(ae.Stage, ae.Code).Inc()
	JSON(w, ae.Status, ErrorEnvelope{
		OK:        false,
		Stage:     ae.Stage,
		Code:      ae.Code,
		Message:   message(ae),
		Detail:    ae.Detail,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// message hides internal causes from clients.
func message(ae *apierr.Error) string {
	if ae.Status >= http.StatusInternalServerError {
		return http.StatusText(ae.Status)
	}
	return ae.Error()
}
