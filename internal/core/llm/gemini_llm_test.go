package llm

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/lessontutor/internal/core"
	"github.com/markdave123-py/lessontutor/internal/models"
)

func TestHistoryMapsRoles(t *testing.T) {
	h := history([]core.ChatTurn{
		{Role: models.RoleUser, Content: "What is entropy?"},
		{Role: models.RoleAssistant, Content: `{"answer":"A measure of disorder."}`},
		{Role: models.RoleSystem, Content: "ignored"},
		{Role: models.RoleUser, Content: "  "},
	})
	require.Len(t, h, 2)
	assert.Equal(t, "user", h[0].Role)
	assert.Equal(t, "model", h[1].Role)
	assert.Equal(t, genai.Text("What is entropy?"), h[0].Parts[0])
}

func TestTurnParts(t *testing.T) {
	parts := turnParts(core.CompletionRequest{ContextPack: "Course: Physics", UserMessage: "hi"})
	require.Len(t, parts, 2)
	assert.Equal(t, genai.Text("Course context:\nCourse: Physics"), parts[0])

	assert.Len(t, turnParts(core.CompletionRequest{UserMessage: "hi"}), 1)
}

func TestResponseText(t *testing.T) {
	assert.Equal(t, "", responseText(nil))
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"answer":`), genai.Text(`"x"}`)}},
	}}}
	assert.Equal(t, `{"answer":"x"}`, responseText(resp))
}
