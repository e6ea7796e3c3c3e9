package ingestion_engine

import (
	"github.com/markdave123-py/lessontutor/internal/core"
	"github.com/markdave123-py/lessontutor/internal/core/logger"
)

// LoaderConfig tunes how many lesson documents are read per request.
//
// MaxDocuments: documents considered per request, in lesson resource order.
type LoaderConfig struct {
	MaxDocuments int
}

// DocumentLoader resolves lesson documents to text, going through the text
// cache and extracting on a miss.
type DocumentLoader struct {
	cache     core.TextCache
	extractor core.TextExtractor
	cfg       LoaderConfig
	log       *logger.Logger
}

// DocconvExtractor implements core.TextExtractor using sajari/docconv over object storage.
type DocconvExtractor struct {
	obj            core.ObjectClient
	defaultBucket  string
	useReadability bool
}
