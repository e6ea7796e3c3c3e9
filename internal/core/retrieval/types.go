// Package retrieval implements the per-request lexical retrieval pass:
// chunking, scoring, and budgeted chunk selection over a lesson's documents.
package retrieval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/markdave123-py/lessontutor/internal/models"
)

// DocumentText is the cached text of one source document, ready for chunking.
type DocumentText struct {
	ID   string
	Name string
	Text string
}

// ChunkID is the citation unit: "<documentId>#<index>".
func ChunkID(documentID string, index int) string {
	return documentID + "#" + strconv.Itoa(index)
}

// ParseChunkID splits a chunk identifier. The document id may itself not contain '#'.
func ParseChunkID(id string) (documentID string, index int, err error) {
	i := strings.LastIndexByte(id, '#')
	if i <= 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("malformed chunk id %q", id)
	}
	index, err = strconv.Atoi(id[i+1:])
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("malformed chunk id %q", id)
	}
	return id[:i], index, nil
}

// Excerpt is one chunk included in the context pack.
type Excerpt struct {
	ChunkID    string
	DocumentID string
	Index      int
	Label      string
	Text       string
}

// Selection is the outcome of the chunk selector for one request.
type Selection struct {
	Excerpts     []Excerpt
	CitationMeta []models.CitationMeta
	TotalChars   int
}

// ChunkIDs returns the identifiers of all selected chunks in selection order.
func (s Selection) ChunkIDs() []string {
	out := make([]string, 0, len(s.Excerpts))
	for _, e := range s.Excerpts {
		out = append(out, e.ChunkID)
	}
	return out
}

// Texts returns the raw excerpt texts.
func (s Selection) Texts() []string {
	out := make([]string, 0, len(s.Excerpts))
	for _, e := range s.Excerpts {
		out = append(out, e.Text)
	}
	return out
}
