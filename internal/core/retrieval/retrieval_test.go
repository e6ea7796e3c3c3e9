package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/lessontutor/internal/models"
)

func padTo(s string, n int) string {
	return s + strings.Repeat("z", n-len(s))
}

func TestChunk(t *testing.T) {
	assert.Equal(t, []string{"a b", "b c"}, Chunk("  a  b\n c ", 3, 1))
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, Chunk("abcdefghij", 4, 0))
	assert.Empty(t, Chunk(" \n\t ", 10, 2))
	assert.Equal(t, []string{"abc", "def"}, Chunk("abcdef", 3, 3), "non-positive step advances by size")
}

func TestChunkIsDeterministic(t *testing.T) {
	text := strings.Repeat("Энтропия растёт.   Heat flows\n", 300)
	first := Chunk(text, DefaultChunkSize, DefaultChunkOverlap)
	second := Chunk(text, DefaultChunkSize, DefaultChunkOverlap)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	for _, c := range first {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), DefaultChunkSize)
	}
}

func TestParseChunkID(t *testing.T) {
	doc, idx, err := ParseChunkID("docA#2")
	require.NoError(t, err)
	assert.Equal(t, "docA", doc)
	assert.Equal(t, 2, idx)

	doc, idx, err = ParseChunkID("a#b#3")
	require.NoError(t, err)
	assert.Equal(t, "a#b", doc)
	assert.Equal(t, 3, idx)

	for _, bad := range []string{"bad", "#1", "doc#", "doc#x", "doc#-1"} {
		_, _, err := ParseChunkID(bad)
		assert.Error(t, err, bad)
	}
}

func TestTokenizeAndScore(t *testing.T) {
	assert.Equal(t, []string{"what", "the", "definition", "mc2"}, Tokenize("What's the DEFINITION of e=mc2?"))

	assert.Equal(t, 5, Score("entropy entropy heat", []string{"entropy", "heat"}, "x"))
	q := "law of entropy"
	assert.Equal(t, 13, Score("the law of entropy says", Tokenize(q), q))
	assert.Equal(t, 0, Score("nothing here", Tokenize(q), q))
}

func TestDetectDefinitionQuery(t *testing.T) {
	cases := []struct {
		msg  string
		ok   bool
		term string
	}{
		{"What is the definition of entropy?", true, "entropy"},
		{"What does osmosis mean?", true, "osmosis"},
		{"define kinetic energy", true, "kinetic energy"},
		{"Что такое энтропия?", true, "энтропия"},
		{"Энтропия деген не?", true, "Энтропия"},
		{"Can you explain the meaning here", true, ""},
		{"How do I solve problem 3", false, ""},
	}
	for _, c := range cases {
		ok, term := DetectDefinitionQuery(c.msg)
		assert.Equal(t, c.ok, ok, c.msg)
		assert.Equal(t, c.term, term, c.msg)
	}
}

func TestDefinitionPattern(t *testing.T) {
	re := DefinitionPattern("entropy")
	require.NotNil(t, re)
	assert.True(t, re.MatchString("Entropy is a measure of disorder"))
	assert.True(t, re.MatchString("so, entropy  refers to the spread"))
	assert.False(t, re.MatchString("negentropy is different"))
	assert.False(t, re.MatchString("entropy isotope"))

	ru := DefinitionPattern("энтропия")
	require.NotNil(t, ru)
	assert.True(t, ru.MatchString("Энтропия это мера беспорядка"))

	assert.Nil(t, DefinitionPattern("  "))
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("Explain Newton's laws and the Photosynthesis of NASA plants plants")
	assert.Equal(t, []string{"newton's", "photosynthesis", "plants"}, got)
	assert.Equal(t, 3, LexicalMatches("plants use photosynthesis; plants grow", got))
}

func TestSelectDefinitionChunk(t *testing.T) {
	text := padTo("heat flows", 50) + padTo("cold bodies", 50) + padTo("entropy is defined as a measure of disorder", 50)
	s := NewSelector(SelectorConfig{ChunkSize: 50, ChunkOverlap: 0})

	sel := s.Select([]DocumentText{{ID: "docA", Name: "Thermo.pdf", Text: text}}, "What is the definition of entropy?")

	assert.Equal(t, []string{"docA#2"}, sel.ChunkIDs())
	require.Len(t, sel.CitationMeta, 1)
	assert.Equal(t, models.CitationMeta{
		DocID: "docA", Name: "Thermo.pdf", ExcerptIDs: []int{2}, Pages: models.PageRange{From: 3, To: 3},
	}, sel.CitationMeta[0])
	assert.Contains(t, sel.Excerpts[0].Label, "docA#2")
}

func TestRankPriorityAndDedup(t *testing.T) {
	q := NewQuery("define entropy")
	picks := rankChunks(q, []string{"entropy entropy entropy", "entropy is a measure", "unrelated"}, 3)
	assert.Equal(t, []int{1, 0}, picks)
}

func TestSelectFallsBackToBestChunk(t *testing.T) {
	s := NewSelector(SelectorConfig{ChunkSize: 20, ChunkOverlap: 0})
	sel := s.Select([]DocumentText{{ID: "d", Text: strings.Repeat("lorem ipsum ", 10)}}, "xyzzy quux")
	assert.Equal(t, []string{"d#0"}, sel.ChunkIDs())
}

func TestSelectBudgets(t *testing.T) {
	text := strings.Repeat("entropy measure ", 2000)
	var docs []DocumentText
	for _, id := range []string{"d1", "d2", "d3", "d4", "d5"} {
		docs = append(docs, DocumentText{ID: id, Name: id, Text: text})
	}

	sel := NewSelector(SelectorConfig{ChunkSize: 5000, ChunkOverlap: 0}).Select(docs, "entropy measure")

	assert.Len(t, sel.Excerpts, MaxChunks)
	perDoc := map[string]int{}
	total := 0
	for _, e := range sel.Excerpts {
		perDoc[e.DocumentID]++
		total += utf8.RuneCountInString(e.Text)
		assert.LessOrEqual(t, utf8.RuneCountInString(e.Text), MaxChunkChars)
	}
	for id, n := range perDoc {
		assert.LessOrEqual(t, n, MaxChunksPerDoc, id)
	}
	assert.Equal(t, MaxContextChars, total)
	assert.Equal(t, total, sel.TotalChars)

	small := NewSelector(SelectorConfig{}).Select(docs, "entropy measure")
	assert.LessOrEqual(t, len(small.Excerpts), MaxChunks)
	assert.NotContains(t, small.ChunkIDs(), "d4#0")
}

func TestSelectRecoversFromRankingPanic(t *testing.T) {
	s := NewSelector(SelectorConfig{ChunkSize: 100})
	s.rank = func(Query, []string, int) []int { panic("malformed") }

	sel := s.Select([]DocumentText{{ID: "d1", Name: "Broken.pdf", Text: strings.Repeat("word ", 2000)}}, "word")

	require.Len(t, sel.Excerpts, 1)
	assert.Equal(t, "d1#0", sel.Excerpts[0].ChunkID)
	assert.Contains(t, sel.Excerpts[0].Label, "opening excerpt")
	assert.Equal(t, MaxChunkChars, utf8.RuneCountInString(sel.Excerpts[0].Text))
}

func TestCitationMetaSortsUniqueIndexes(t *testing.T) {
	meta := citationMeta([]Excerpt{
		{DocumentID: "a", Index: 4}, {DocumentID: "a", Index: 1}, {DocumentID: "b", Index: 0}, {DocumentID: "a", Index: 4},
	}, []DocumentText{{ID: "a", Name: "A"}, {ID: "b"}})
	require.Len(t, meta, 2)
	assert.Equal(t, []int{1, 4}, meta[0].ExcerptIDs)
	assert.Equal(t, models.PageRange{From: 2, To: 5}, meta[0].Pages)
	assert.Equal(t, "b", meta[1].Name)
}

func TestBuildContextPack(t *testing.T) {
	summary := Summary(&models.Course{Title: "Physics"}, &models.Lesson{Title: "Thermodynamics", AIContext: "Focus on entropy"})
	assert.Equal(t, "Course: Physics\nLesson: Thermodynamics\nLesson notes: Focus on entropy", summary)

	pack := BuildContextPack(summary, Selection{Excerpts: []Excerpt{{ChunkID: "d#0", Label: "Notes, part 1 of 1 (d#0)", Text: "entropy grows"}}})
	assert.Contains(t, pack, "[Notes, part 1 of 1 (d#0)]\nentropy grows")
	assert.True(t, strings.HasPrefix(pack, "Course: Physics"))

	assert.Contains(t, BuildContextPack("", Selection{}), "No document excerpts")
}

type recordingSource struct {
	docs      []DocumentText
	missing   map[int]bool
	requested []int
}

func (r *recordingSource) Len() int { return len(r.docs) }

func (r *recordingSource) Document(i int) (DocumentText, bool) {
	r.requested = append(r.requested, i)
	if r.missing[i] {
		return DocumentText{}, false
	}
	return r.docs[i], true
}

func TestSelectFromStopsReadingOnceFull(t *testing.T) {
	text := strings.Repeat("entropy disorder ", 300)
	src := &recordingSource{docs: []DocumentText{
		{ID: "p1", Name: "p1.pdf", Text: text},
		{ID: "p2", Name: "p2.pdf", Text: text},
		{ID: "p3", Name: "p3.pdf", Text: text},
	}}

	sel := NewSelector(SelectorConfig{ChunkSize: 1200, ChunkOverlap: 200}).SelectFrom(src, "Explain entropy disorder")

	assert.Equal(t, []int{0, 1}, src.requested)
	assert.Len(t, sel.Excerpts, MaxChunks)
	assert.Len(t, sel.CitationMeta, 2)
}

func TestSelectFromSkipsUnavailableDocuments(t *testing.T) {
	src := &recordingSource{
		docs: []DocumentText{
			{ID: "p1", Name: "p1.pdf", Text: "entropy"},
			{ID: "p2", Name: "p2.pdf", Text: "entropy rises in isolated systems"},
		},
		missing: map[int]bool{0: true},
	}

	sel := NewSelector(SelectorConfig{ChunkSize: 100}).SelectFrom(src, "entropy")

	assert.Equal(t, []int{0, 1}, src.requested)
	require.NotEmpty(t, sel.Excerpts)
	for _, e := range sel.Excerpts {
		assert.Equal(t, "p2", e.DocumentID)
	}
}
