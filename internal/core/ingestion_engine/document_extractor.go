package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/lessontutor/internal/core"
	objectclient "github.com/markdave123-py/lessontutor/internal/core/object-client"
)

var _ core.TextExtractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor(obj core.ObjectClient, defaultBucket string, useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{obj: obj, defaultBucket: defaultBucket, useReadability: useReadability}
}

// ExtractText downloads the object at storagePath and converts it to plain text.
func (e *DocconvExtractor) ExtractText(ctx context.Context, storagePath string) (*core.ExtractedText, error) {
	bucket, key := objectclient.ParseStoragePath(storagePath, e.defaultBucket)
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("unresolvable storage path %q", storagePath)
	}

	data, info, err := e.obj.GetFile(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", storagePath, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contentType := info.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = docconv.MimeTypeByExtension(key)
	}

	res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
	if err != nil {
		return nil, fmt.Errorf("docconv %s (%s): %w", storagePath, contentType, err)
	}

	text := strings.TrimSpace(res.Body)
	if text == "" {
		return nil, fmt.Errorf("docconv %s: extracted empty text", storagePath)
	}

	size := info.Size
	if size == 0 {
		size = int64(len(data))
	}
	return &core.ExtractedText{
		Text:        text,
		Size:        size,
		ContentType: contentType,
		Generation:  info.Generation,
	}, nil
}
