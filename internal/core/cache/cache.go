// Package cache implements the text cache that keeps extracted document text
// across requests.
package cache

import (
	"context"
	"unicode/utf8"

	"github.com/markdave123-py/lessontutor/internal/core"
	"github.com/markdave123-py/lessontutor/internal/models"
)

// MaxStoredTextChars bounds how much extracted text is stored per document.
const MaxStoredTextChars = 200000

type textStore interface {
	GetCachedText(ctx context.Context, id string) (*models.CachedText, error)
	PutCachedText(ctx context.Context, entry *models.CachedText) error
}

// DBCache is the durable cache tier backed by the document store.
type DBCache struct {
	store textStore
}

var _ core.TextCache = (*DBCache)(nil)

func NewDBCache(store textStore) *DBCache {
	return &DBCache{store: store}
}

func (c *DBCache) Get(ctx context.Context, documentID string) (*models.CachedText, error) {
	return c.store.GetCachedText(ctx, documentID)
}

func (c *DBCache) Put(ctx context.Context, entry *models.CachedText) error {
	cp := *entry
	cp.Text = Truncate(cp.Text, MaxStoredTextChars)
	return c.store.PutCachedText(ctx, &cp)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
