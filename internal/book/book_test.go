package book

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/bookish/internal/doctree"
)

const manifestJSON = `{
	"title": "Programming: A Gentle Start",
	"authors": [{"id": "ada", "name": "Ada Lovelace"}],
	"chapters": [
		{"id": "preface", "title": "Preface", "numbered": false},
		{"id": "intro", "title": "Introduction"},
		{"id": "later", "title": "Coming Soon"},
		{"id": "data", "title": "Data", "section": "Basics"},
		{"id": "appendix", "title": "Appendix", "numbered": false}
	],
	"symbols": {"lang": "Go", "bad name": "x"},
	"sources": {"cacm": "Communications of the ACM"},
	"references": {
		"knuth": ["Knuth, D., Plass, M.", "1981", "Breaking paragraphs into lines", "#cacm", "https://example.com/kp"],
		"why": ["Smith, J.", "2001", "Why?", "Journal", "", "A summary."],
		"plain": "A *plain* reference.",
		"short": ["Only", "two"],
		"lost": ["Doe, J.", "1999", "Lost", "#nowhere"]
	},
	"glossary": {
		"rune": {"phrase": "rune", "definition": "A Unicode code point.", "synonyms": ["code point"]}
	}
}`

func testManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := ParseManifest([]byte(manifestJSON))
	require.NoError(t, err)
	return m
}

func loadedBook(t *testing.T) *Book {
	t.Helper()
	src := MapSource{
		"preface":  "Welcome to @lang.",
		"intro":    "# Start\n\n" + strings.Repeat("word ", 400),
		"data":     "Cats and a Cat and one cat.",
		"appendix": "Broken *span",
	}
	b := New(testManifest(t), src, nil)
	require.NoError(t, b.Load(context.Background()))
	return b
}

func TestParseManifest(t *testing.T) {
	m := testManifest(t)
	assert.Equal(t, "Programming: A Gentle Start", m.Title)
	require.Len(t, m.Chapters, 5)
	assert.False(t, m.Chapters[0].IsNumbered())
	assert.True(t, m.Chapters[1].IsNumbered())
	assert.Equal(t, "A *plain* reference.", m.References["plain"].Text)
	assert.Len(t, m.References["knuth"].Fields, 5)
}

func TestManifestValidation(t *testing.T) {
	_, err := ParseManifest([]byte(`{"chapters": [{"id": "a", "title": "A"}, {"id": "a"}, {"title": "x"}]}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{
		"title is required",
		`chapters[1]: duplicate id "a"`,
		"chapters[1]: title is required",
		"chapters[2]: id is required",
	}, verr.Problems)

	_, err = ParseManifest([]byte(`{"title": "x", "chapters": [{"id": "a", "title": "A"}], "references": {"k": 3}}`))
	assert.ErrorContains(t, err, "decode manifest")

	_, err = ParseManifest([]byte(`{"title": "x", "chapters": [{"id": "../a", "title": "A"}]}`))
	assert.ErrorContains(t, err, "path separator")
}

func TestLoad(t *testing.T) {
	b := loadedBook(t)

	assert.Equal(t, 4, b.Loaded())
	assert.False(t, b.IsLoaded("later"))
	assert.Equal(t, []string{"'bad name' isn't a valid name for a symbol; letters and numbers only"}, b.SymbolErrors())

	ch, ok := b.Chapter("preface")
	require.True(t, ok)
	assert.Equal(t, "Welcome to Go.", ch.Tree.Text())
	assert.Equal(t, "preface", ch.Tree.Title)
	assert.Equal(t, "Preface", ch.Spec.Title)
	assert.Equal(t, 1, b.ErrorCount())
}

type failingSource struct{}

func (failingSource) ChapterText(context.Context, string) (string, error) {
	return "", errors.New("network down")
}

func TestLoadCollectsErrors(t *testing.T) {
	b := New(testManifest(t), failingSource{}, nil)
	err := b.Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "chapter intro: network down")
	assert.Equal(t, 0, b.Loaded())
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := New(testManifest(t), MapSource{}, nil)
	b.MaxConcurrent = 1
	assert.ErrorIs(t, b.Load(ctx), context.Canceled)
}

func TestLoadNotifiesObservers(t *testing.T) {
	var parsed atomic.Int32
	b := New(testManifest(t), MapSource{"intro": "a", "data": "b"}, nil)
	b.Observers = []doctree.Observer{doctree.ObserverFuncs{Parsed: func(*doctree.Tree) { parsed.Add(1) }}}
	require.NoError(t, b.Load(context.Background()))
	assert.Equal(t, int32(2), parsed.Load())
}

func TestOpenDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifestJSON), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "chapters"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chapters", "intro.bd"), []byte("Hello"), 0o644))

	b, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, b.Load(context.Background()))
	assert.Equal(t, 1, b.Loaded())
	assert.True(t, b.IsLoaded("intro"))

	_, err = Open(t.TempDir(), nil)
	assert.ErrorContains(t, err, "read manifest")
}

func TestSetChapter(t *testing.T) {
	b := loadedBook(t)
	ch := b.SetChapter("later", "Now written.")
	require.NotNil(t, ch)
	assert.True(t, b.IsLoaded("later"))
	assert.Nil(t, b.SetChapter("unknown", "x"))
}

func TestChapterNumbers(t *testing.T) {
	b := New(testManifest(t), MapSource{}, nil)
	tests := []struct {
		id   string
		want int
		ok   bool
	}{
		{"preface", 0, false},
		{"intro", 1, true},
		{"later", 2, true},
		{"data", 3, true},
		{"appendix", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		n, ok := b.ChapterNumber(tt.id)
		assert.Equal(t, tt.ok, ok, tt.id)
		if tt.ok {
			assert.Equal(t, tt.want, n, tt.id)
		}
	}
}

func TestReadingTimes(t *testing.T) {
	b := loadedBook(t)

	// 400 words of body plus one header word at 150 wpm.
	minutes, ok := b.ReadingTime("intro")
	require.True(t, ok)
	assert.Equal(t, 3, minutes)

	minutes, ok = b.ReadingTime("preface")
	require.True(t, ok)
	assert.Equal(t, 1, minutes)

	_, ok = b.ReadingTime("later")
	assert.False(t, ok)

	assert.Equal(t, 6, b.BookReadingTime())
}

func TestNextPrevious(t *testing.T) {
	b := loadedBook(t)
	assert.Equal(t, "data", b.NextChapterID("intro"))
	assert.Equal(t, "intro", b.PreviousChapterID("data"))
	assert.Equal(t, "", b.NextChapterID("appendix"))
	assert.Equal(t, "", b.PreviousChapterID("preface"))
}

func TestBookIndex(t *testing.T) {
	b := loadedBook(t)
	ix := b.Index(3)
	assert.Equal(t, []string{"data"}, ix["cat"])
	assert.NotContains(t, ix, "Cats")
	assert.Equal(t, []string{"preface"}, ix["Welcome"])
	assert.Equal(t, []string{"intro"}, ix["word"])
}
