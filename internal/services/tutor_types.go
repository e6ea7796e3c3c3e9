package services

import (
	"github.com/markdave123-py/lessontutor/internal/core"
	"github.com/markdave123-py/lessontutor/internal/core/ledger"
	"github.com/markdave123-py/lessontutor/internal/core/validator"
	"github.com/markdave123-py/lessontutor/internal/models"
)

// Pipeline stage tags carried by errors and log lines.
const (
	StageValidateInput  = "validate_input"
	StageReplay         = "replay"
	StageLoadContext    = "load_context"
	StagePolicy         = "policy"
	StageQuota          = "quota"
	StageThread         = "thread"
	StageHistory        = "history"
	StageRetrieval      = "retrieval"
	StageModel          = "model"
	StageValidateOutput = "validate_output"
	StagePersist        = "persist"
	StageAnalytics      = "analytics"
)

const (
	MaxMessageRunes    = 4000
	MaxClientRequestID = 128
	historyMessages    = 10
)

// ChatRequest is the body of POST /api/ai/chat.
type ChatRequest struct {
	Message         string `json:"message"`
	CourseID        string `json:"courseId,omitempty"`
	LessonID        string `json:"lessonId,omitempty"`
	ThreadID        string `json:"threadId,omitempty"`
	NewThread       bool   `json:"newThread,omitempty"`
	Lang            string `json:"lang,omitempty"`
	Mode            string `json:"mode,omitempty"`
	ContextType     string `json:"contextType,omitempty"`
	Path            string `json:"path,omitempty"`
	ClientRequestID string `json:"clientRequestId,omitempty"`
}

// ChatResponse is the success body of POST /api/ai/chat. A stored copy of it
// is what a retried request receives.
type ChatResponse struct {
	Answer             string                `json:"answer"`
	ThreadID           string                `json:"threadId"`
	Usage              core.Usage            `json:"usage"`
	Sources            []models.Source       `json:"sources"`
	Citations          []string              `json:"citations"`
	CitationMeta       []models.CitationMeta `json:"citationMeta"`
	PDFUnreadable      bool                  `json:"pdfUnreadable,omitempty"`
	Confidence         validator.Confidence  `json:"confidence,omitempty"`
	NeedsMoreContext   bool                  `json:"needsMoreContext"`
	ClarifyingQuestion *string               `json:"clarifyingQuestion,omitempty"`
	Mode               models.Mode           `json:"mode"`
	PolicyApplied      models.Policy         `json:"policyApplied"`
	Remaining          ledger.Remaining      `json:"remaining"`
}
