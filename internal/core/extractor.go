package core

import (
	"context"
)

// ExtractedText represents the result of text extraction for one stored object.
type ExtractedText struct {
	Text        string
	Size        int64
	ContentType string
	Generation  string
}

// TextExtractor pulls a document out of object storage and returns its plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, storagePath string) (*ExtractedText, error)
}
