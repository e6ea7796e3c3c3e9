package retrieval

import "strings"

const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 200
)

// NormalizeWhitespace collapses every whitespace run to a single space and trims the ends.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Chunk splits text into windows of size runes advancing by size-overlap.
// The last window is clipped to the end of the text. The result depends only
// on the inputs, so chunk indexes are stable across requests.
func Chunk(text string, size, overlap int) []string {
	normalized := NormalizeWhitespace(text)
	if normalized == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	runes := []rune(normalized)
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
