// Package trace carries per-request diagnostics through the tutoring pipeline.
// A Trace is a value: each stage derives its own copy with At, so no stage can
// change the tag another stage observed.
package trace

import (
	"time"

	"github.com/markdave123-py/lessontutor/internal/core/apierr"
)

type Trace struct {
	RequestID string
	Stage     string
	Started   time.Time
}

func New(requestID string, now time.Time) Trace {
	return Trace{RequestID: requestID, Stage: "init", Started: now}
}

// At returns a copy of t tagged with stage.
func (t Trace) At(stage string) Trace {
	t.Stage = stage
	return t
}

// Fail builds a stage-tagged terminal error.
func (t Trace) Fail(status int, code string, err error) *apierr.Error {
	return apierr.New(status, code, err).WithStage(t.Stage)
}

// Tag stamps an existing error with the current stage unless it already has one.
func (t Trace) Tag(err error) *apierr.Error {
	ae := apierr.From(err)
	if ae == nil {
		return nil
	}
	if ae.Stage != "" {
		return ae
	}
	return ae.WithStage(t.Stage)
}

// Fields returns logger key/values identifying this request and stage.
func (t Trace) Fields() []interface{} {
	return []interface{}{"request_id", t.RequestID, "stage", t.Stage}
}

func (t Trace) Elapsed(now time.Time) time.Duration {
	return now.Sub(t.Started)
}
