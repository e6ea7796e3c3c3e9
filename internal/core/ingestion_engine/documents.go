package ingestion_engine

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"

	"github.com/markdave123-py/lessontutor/internal/models"
)

const maxDocumentIDLen = 120

// SourceDocuments returns the PDF resources of a lesson, in resource order,
// each with a stable document id.
func SourceDocuments(resources []models.Resource) []models.SourceDocument {
	var out []models.SourceDocument
	seen := map[string]bool{}
	for _, r := range resources {
		if !IsPDF(r) {
			continue
		}
		id := DocumentID(r)
		if seen[id] {
			continue
		}
		seen[id] = true

		name := strings.TrimSpace(r.Name)
		if name == "" {
			name = path.Base(r.StoragePath)
		}
		storagePath := r.StoragePath
		if storagePath == "" {
			storagePath = r.URL
		}
		out = append(out, models.SourceDocument{
			ID:          id,
			Name:        name,
			StoragePath: storagePath,
			ContentType: r.ContentType,
			Size:        r.Size,
			Generation:  r.Generation,
		})
	}
	return out
}

// IsPDF reports whether a resource is a PDF by content type or file extension.
func IsPDF(r models.Resource) bool {
	if strings.EqualFold(strings.TrimSpace(r.ContentType), "application/pdf") {
		return true
	}
	for _, s := range []string{r.StoragePath, r.Name, r.URL} {
		s = strings.ToLower(s)
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
		if strings.HasSuffix(s, ".pdf") {
			return true
		}
	}
	return false
}

// DocumentID derives the stable id from the storage path, or from a hash of
// name and URL when the resource has no path. Paths that need sanitizing or
// shortening carry a hash of the original path so distinct paths never share an id.
func DocumentID(r models.Resource) string {
	if p := strings.Trim(strings.TrimSpace(r.StoragePath), "/"); p != "" {
		var b strings.Builder
		for _, c := range p {
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
				b.WriteRune(c)
			default:
				b.WriteByte('_')
			}
		}
		id := b.String()
		if id == p && len(id) <= maxDocumentIDLen {
			return id
		}
		sum := sha256.Sum256([]byte(p))
		return id[:min(len(id), maxDocumentIDLen-17)] + "_" + hex.EncodeToString(sum[:])[:16]
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(r.Name) + "|" + strings.TrimSpace(r.URL)))
	return "h_" + hex.EncodeToString(sum[:])[:16]
}
