package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/lessontutor/internal/core"
	"github.com/markdave123-py/lessontutor/internal/models"
)

const defaultModel = "gemini-1.5-flash"

type GeminiLLM struct {
	client      *genai.Client
	modelName   string
	temperature float32
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = defaultModel
	}
	return &GeminiLLM{client: cl, modelName: modelName, temperature: 0.2}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Complete runs one chat turn. The reply is requested as JSON; parsing and
// validation happen in the caller.
func (g *GeminiLLM) Complete(ctx context.Context, req core.CompletionRequest) (*core.Completion, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(g.temperature)
	m.ResponseMIMEType = "application/json"
	if req.SystemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}

	cs := m.StartChat()
	cs.History = history(req.History)

	resp, err := cs.SendMessage(ctx, turnParts(req)...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	out := &core.Completion{Text: responseText(resp), Model: g.modelName}
	if resp.UsageMetadata != nil {
		out.Usage = core.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func turnParts(req core.CompletionRequest) []genai.Part {
	var parts []genai.Part
	if strings.TrimSpace(req.ContextPack) != "" {
		parts = append(parts, genai.Text("Course context:\n"+req.ContextPack))
	}
	return append(parts, genai.Text("Student question:\n"+req.UserMessage))
}

// history maps prior turns to Gemini roles. System turns and empty turns are skipped.
func history(turns []core.ChatTurn) []*genai.Content {
	var out []*genai.Content
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		var role string
		switch t.Role {
		case models.RoleUser:
			role = "user"
		case models.RoleAssistant:
			role = "model"
		default:
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Content)}})
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
