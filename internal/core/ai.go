package core

import (
	"context"

	"github.com/markdave123-py/lessontutor/internal/models"
)

// ChatTurn is one prior message of the conversation handed to the model.
type ChatTurn struct {
	Role    models.Role
	Content string
}

// Usage is the token accounting reported by the model.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CompletionRequest is everything the model sees for one turn.
type CompletionRequest struct {
	SystemPrompt string
	ContextPack  string
	History      []ChatTurn
	UserMessage  string
}

// Completion is the raw model output. Text is expected to be a JSON object
// but is never trusted to be one.
type Completion struct {
	Text  string
	Model string
	Usage Usage
}

// LLMProvider is a single blocking request/response call to a language model.
type LLMProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}
