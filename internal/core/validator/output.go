// Package validator checks model output for citation integrity, language and
// grounding, and substitutes localized fallbacks when a check fails.
package validator

import (
	"encoding/json"
	"strings"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParsedModelOutput is the only shape trusted from the model.
type ParsedModelOutput struct {
	Answer             string
	Citations          []string
	Confidence         Confidence
	NeedsMoreContext   bool
	ClarifyingQuestion *string
	// Structured is false when the output was not valid JSON and Answer holds the raw text.
	Structured bool
}

// OutputContract is appended to the system prompt so the model replies in the parsed shape.
const OutputContract = `Reply with a single JSON object and nothing else:
{"answer": string, "citations": [excerpt ids], "confidence": "high"|"medium"|"low", "needsMoreContext": boolean, "clarifyingQuestion": string or null}`

type rawOutput struct {
	Answer             *string         `json:"answer"`
	Citations          []any           `json:"citations"`
	Confidence         string          `json:"confidence"`
	NeedsMoreContext   json.RawMessage `json:"needsMoreContext"`
	ClarifyingQuestion *string         `json:"clarifyingQuestion"`
}

// ParseModelOutput extracts the structured reply, tolerating code fences and
// prose around the JSON object. Anything else degrades to the raw text with no citations.
func ParseModelOutput(raw string) ParsedModelOutput {
	text := strings.TrimSpace(raw)
	fallback := ParsedModelOutput{Answer: text}

	for _, candidate := range jsonCandidates(text) {
		var out rawOutput
		if err := json.Unmarshal([]byte(candidate), &out); err != nil || out.Answer == nil {
			continue
		}
		parsed := ParsedModelOutput{
			Answer:           strings.TrimSpace(*out.Answer),
			Confidence:       parseConfidence(out.Confidence),
			NeedsMoreContext: parseLooseBool(out.NeedsMoreContext),
			Structured:       true,
		}
		for _, c := range out.Citations {
			if s, ok := c.(string); ok && strings.TrimSpace(s) != "" {
				parsed.Citations = append(parsed.Citations, strings.TrimSpace(s))
			}
		}
		if out.ClarifyingQuestion != nil && strings.TrimSpace(*out.ClarifyingQuestion) != "" {
			q := strings.TrimSpace(*out.ClarifyingQuestion)
			parsed.ClarifyingQuestion = &q
		}
		return parsed
	}
	return fallback
}

func jsonCandidates(text string) []string {
	candidates := []string{text}
	if unfenced, ok := stripFence(text); ok {
		candidates = append(candidates, unfenced)
	}
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		candidates = append(candidates, text[i:j+1])
	}
	return candidates
}

func stripFence(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	body := text[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.HasPrefix(strings.TrimSpace(body[:nl]), "{") {
		body = body[nl+1:]
	}
	end := strings.LastIndex(body, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}

func parseConfidence(s string) Confidence {
	switch c := Confidence(strings.ToLower(strings.TrimSpace(s))); c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return c
	}
	return ""
}

func parseLooseBool(raw json.RawMessage) bool {
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.EqualFold(strings.TrimSpace(s), "true")
	}
	return false
}
