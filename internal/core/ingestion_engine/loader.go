package ingestion_engine

import (
	"context"
	"strings"
	"time"

	"github.com/markdave123-py/lessontutor/internal/core"
	"github.com/markdave123-py/lessontutor/internal/core/cache"
	"github.com/markdave123-py/lessontutor/internal/core/logger"
	"github.com/markdave123-py/lessontutor/internal/core/metrics"
	"github.com/markdave123-py/lessontutor/internal/core/retrieval"
	"github.com/markdave123-py/lessontutor/internal/models"
)

// Documents is a lazily loaded view of a request's source documents. Text is
// read from the cache or extracted only when the selector asks for it.
type Documents struct {
	loader *DocumentLoader
	ctx    context.Context
	docs   []models.SourceDocument
	log    *logger.Logger
	// Unreadable is set when a requested document produced no text.
	Unreadable bool
	// Loaded counts the documents that were actually read.
	Loaded int
}

var _ retrieval.DocumentSource = (*Documents)(nil)

func NewDocumentLoader(cache core.TextCache, extractor core.TextExtractor, cfg LoaderConfig, log *logger.Logger) *DocumentLoader {
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = retrieval.MaxDocuments
	}
	return &DocumentLoader{cache: cache, extractor: extractor, cfg: cfg, log: log}
}

// Documents returns at most MaxDocuments documents, in the given order, for
// sequential reading. Extraction failures mark the set unreadable and never
// fail the request.
func (l *DocumentLoader) Documents(ctx context.Context, docs []models.SourceDocument, logFields ...interface{}) *Documents {
	if len(docs) > l.cfg.MaxDocuments {
		docs = docs[:l.cfg.MaxDocuments]
	}
	return &Documents{loader: l, ctx: ctx, docs: docs, log: l.log.With(logFields...)}
}

func (d *Documents) Len() int { return len(d.docs) }

func (d *Documents) Document(i int) (retrieval.DocumentText, bool) {
	if d.ctx.Err() != nil {
		return retrieval.DocumentText{}, false
	}
	doc := d.docs[i]
	d.Loaded++
	text, ok := d.loader.loadOne(d.ctx, doc, d.log)
	if !ok {
		d.Unreadable = true
		return retrieval.DocumentText{}, false
	}
	return retrieval.DocumentText{ID: doc.ID, Name: doc.Name, Text: text}, true
}

func (l *DocumentLoader) loadOne(ctx context.Context, doc models.SourceDocument, log *logger.Logger) (string, bool) {
	cached, err := l.cache.Get(ctx, doc.ID)
	if err != nil {
		log.Warn("text cache lookup failed", "doc_id", doc.ID, "error", err)
	}
	if cached != nil && strings.TrimSpace(cached.Text) != "" {
		return cached.Text, true
	}

	if doc.StoragePath == "" {
		log.Warn("pdf resource without storage path", "doc_id", doc.ID)
		metrics.ExtractionFailures.Inc()
		return "", false
	}

	extracted, err := l.extractor.ExtractText(ctx, doc.StoragePath)
	if err != nil || extracted == nil || strings.TrimSpace(extracted.Text) == "" {
		log.Warn("pdf extraction failed", "doc_id", doc.ID, "error", err)
		metrics.ExtractionFailures.Inc()
		return "", false
	}

	text := cache.Truncate(extracted.Text, cache.MaxStoredTextChars)
	entry := &models.CachedText{
		ID:          doc.ID,
		Text:        text,
		Name:        doc.Name,
		StoragePath: doc.StoragePath,
		ContentType: firstNonEmpty(extracted.ContentType, doc.ContentType),
		Size:        extracted.Size,
		Generation:  firstNonEmpty(extracted.Generation, doc.Generation),
		UpdatedAt:   time.Now(),
	}
	if err := l.cache.Put(ctx, entry); err != nil {
		log.Warn("text cache write failed", "doc_id", doc.ID, "error", err)
	}
	return text, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
