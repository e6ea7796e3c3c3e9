package core

import (
	"context"

	"github.com/markdave123-py/lessontutor/internal/models"
)

// TextCache persists extracted text per document id. Get returns nil, nil on a miss.
type TextCache interface {
	Get(ctx context.Context, documentID string) (*models.CachedText, error)
	Put(ctx context.Context, entry *models.CachedText) error
}

// ObjectInfo is the metadata returned alongside an object's bytes.
type ObjectInfo struct {
	Size        int64
	ContentType string
	Generation  string
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	GetFile(ctx context.Context, bucket, key string) ([]byte, ObjectInfo, error)
}
