package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes clients can branch on.
const (
	CodeInvalidBody     = "invalid_body"
	CodeInvalidMessage  = "invalid_message"
	CodeInvalidToken    = "invalid_token"
	CodeForbiddenThread = "forbidden_thread"
	CodeNotFound        = "not_found"
	CodeMissingIndex    = "missing_index"
	CodeQuotaExceeded   = "quota_exceeded"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal"
	CodeModelFailed     = "model_failed"
)

// Error is a terminal request failure tagged with the pipeline stage that produced it.
type Error struct {
	Status int
	Code   string
	Stage  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// WithStage returns a copy of e tagged with stage.
func (e *Error) WithStage(stage string) *Error {
	cp := *e
	cp.Stage = stage
	return &cp
}

// WithDetail returns a copy of e carrying an operator-facing detail string.
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

// From converts any error into an *Error, defaulting to a 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, CodeInternal, err)
}

func BadRequest(code string, err error) *Error {
	return New(http.StatusBadRequest, code, err)
}

func Forbidden(code string, err error) *Error {
	return New(http.StatusForbidden, code, err)
}
