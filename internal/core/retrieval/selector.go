package retrieval

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/markdave123-py/lessontutor/internal/models"
)

const (
	MaxDocuments       = 3
	MaxChunksPerDoc    = 3
	MaxChunks          = 6
	MaxContextChars    = 20000
	MaxChunkChars      = 3500
	maxDefinitionPicks = 2
	maxLexicalPicks    = 2
)

// SelectorConfig holds the chunking parameters and budgets. Zero sizes and
// budgets take the package defaults; a zero overlap is kept as is.
type SelectorConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	MaxDocuments    int
	MaxChunksPerDoc int
	MaxChunks       int
	MaxChars        int
	MaxChunkChars   int
}

func (c SelectorConfig) withDefaults() SelectorConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = DefaultChunkOverlap
		if c.ChunkOverlap >= c.ChunkSize {
			c.ChunkOverlap = 0
		}
	}
	if c.MaxDocuments <= 0 {
		c.MaxDocuments = MaxDocuments
	}
	if c.MaxChunksPerDoc <= 0 {
		c.MaxChunksPerDoc = MaxChunksPerDoc
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = MaxChunks
	}
	if c.MaxChars <= 0 {
		c.MaxChars = MaxContextChars
	}
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = MaxChunkChars
	}
	return c
}

// Selector picks the chunks that go into the context pack.
type Selector struct {
	cfg  SelectorConfig
	rank func(q Query, chunks []string, perDoc int) []int
}

func NewSelector(cfg SelectorConfig) *Selector {
	return &Selector{cfg: cfg.withDefaults(), rank: rankChunks}
}

// DocumentSource yields documents in order. Document reports false when the
// document has no usable text; it is called only while budget remains.
type DocumentSource interface {
	Len() int
	Document(i int) (DocumentText, bool)
}

type documentSlice []DocumentText

func (d documentSlice) Len() int { return len(d) }
func (d documentSlice) Document(i int) (DocumentText, bool) { return d[i], true }

// Select runs SelectFrom over documents already in memory.
func (s *Selector) Select(docs []DocumentText, message string) Selection {
	return s.SelectFrom(documentSlice(docs), message)
}

// SelectFrom walks documents in order and stops as soon as either global
// budget runs out. Documents past that point are never requested.
func (s *Selector) SelectFrom(src DocumentSource, message string) Selection {
	q := NewQuery(message)
	var (
		sel  Selection
		seen []DocumentText
	)

	n := min(src.Len(), s.cfg.MaxDocuments)
	for i := 0; i < n; i++ {
		if s.exhausted(sel) {
			break
		}
		doc, ok := src.Document(i)
		if !ok {
			continue
		}
		seen = append(seen, doc)

		chunks := Chunk(doc.Text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
		if len(chunks) == 0 {
			continue
		}

		picks, err := s.safeRank(q, chunks)
		if err != nil {
			s.appendExcerpt(&sel, doc, 0, fallbackLabel(doc), NormalizeWhitespace(doc.Text))
			continue
		}
		for _, idx := range picks {
			if s.exhausted(sel) {
				break
			}
			s.appendExcerpt(&sel, doc, idx, chunkLabel(doc, idx, len(chunks)), chunks[idx])
		}
	}

	sel.CitationMeta = citationMeta(sel.Excerpts, seen)
	return sel
}

func (s *Selector) exhausted(sel Selection) bool {
	return len(sel.Excerpts) >= s.cfg.MaxChunks || sel.TotalChars >= s.cfg.MaxChars
}

func (s *Selector) safeRank(q Query, chunks []string) (picks []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			picks, err = nil, fmt.Errorf("rank chunks: %v", r)
		}
	}()
	return s.rank(q, chunks, s.cfg.MaxChunksPerDoc), nil
}

func (s *Selector) appendExcerpt(sel *Selection, doc DocumentText, idx int, label, text string) {
	limit := s.cfg.MaxChunkChars
	if remaining := s.cfg.MaxChars - sel.TotalChars; remaining < limit {
		limit = remaining
	}
	text = truncateRunes(text, limit)
	if text == "" {
		return
	}
	sel.Excerpts = append(sel.Excerpts, Excerpt{
		ChunkID:    ChunkID(doc.ID, idx),
		DocumentID: doc.ID,
		Index:      idx,
		Label:      label,
		Text:       text,
	})
	sel.TotalChars += utf8.RuneCountInString(text)
}

// rankChunks returns chunk indexes in inclusion order: definition hits, then
// lexical keyword matches, then the general ranking. Each index appears once.
func rankChunks(q Query, chunks []string, perDoc int) []int {
	scores := make([]ChunkScore, len(chunks))
	for i, c := range chunks {
		scores[i] = q.ScoreChunk(i, c)
	}

	byScore := append([]ChunkScore(nil), scores...)
	sort.SliceStable(byScore, func(i, j int) bool { return byScore[i].Score > byScore[j].Score })

	var picks []int
	taken := map[int]bool{}
	take := func(idx int) {
		if len(picks) < perDoc && !taken[idx] {
			taken[idx] = true
			picks = append(picks, idx)
		}
	}

	if q.IsDefinition {
		n := 0
		for _, cs := range byScore {
			if n == maxDefinitionPicks {
				break
			}
			if cs.DefinitionHit {
				take(cs.Index)
				n++
			}
		}
	}

	byLexical := append([]ChunkScore(nil), scores...)
	sort.SliceStable(byLexical, func(i, j int) bool { return byLexical[i].LexicalHits > byLexical[j].LexicalHits })
	for i := 0; i < len(byLexical) && i < maxLexicalPicks; i++ {
		if byLexical[i].LexicalHits == 0 {
			break
		}
		take(byLexical[i].Index)
	}

	for _, cs := range byScore {
		if cs.Score <= 0 {
			break
		}
		take(cs.Index)
	}

	if len(picks) == 0 && len(byScore) > 0 {
		picks = append(picks, byScore[0].Index)
	}
	return picks
}

func chunkLabel(doc DocumentText, idx, total int) string {
	return fmt.Sprintf("%s, part %d of %d (%s)", displayName(doc), idx+1, total, ChunkID(doc.ID, idx))
}

func fallbackLabel(doc DocumentText) string {
	return fmt.Sprintf("%s, opening excerpt (%s)", displayName(doc), ChunkID(doc.ID, 0))
}

func displayName(doc DocumentText) string {
	if doc.Name != "" {
		return doc.Name
	}
	return doc.ID
}

func citationMeta(excerpts []Excerpt, docs []DocumentText) []models.CitationMeta {
	byDoc := map[string][]int{}
	var order []string
	for _, e := range excerpts {
		if _, ok := byDoc[e.DocumentID]; !ok {
			order = append(order, e.DocumentID)
		}
		byDoc[e.DocumentID] = append(byDoc[e.DocumentID], e.Index)
	}

	names := map[string]string{}
	for _, d := range docs {
		names[d.ID] = displayName(d)
	}

	out := make([]models.CitationMeta, 0, len(order))
	for _, id := range order {
		idxs := uniqueSorted(byDoc[id])
		out = append(out, models.CitationMeta{
			DocID:      id,
			Name:       names[id],
			ExcerptIDs: idxs,
			Pages:      models.PageRange{From: idxs[0] + 1, To: idxs[len(idxs)-1] + 1},
		})
	}
	return out
}

func uniqueSorted(in []int) []int {
	sort.Ints(in)
	out := make([]int, 0, len(in))
	for _, v := range in {
		if len(out) == 0 || out[len(out)-1] != v {
			out = append(out, v)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
