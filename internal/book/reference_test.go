package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveReference(t *testing.T) {
	m := testManifest(t)

	c := m.ResolveReference("knuth")
	require.NotNil(t, c)
	assert.True(t, c.IsAPA())
	assert.Equal(t, "Communications of the ACM", c.Source)
	assert.Equal(t, "https://example.com/kp", c.URL)
	assert.Equal(t, "Knuth, D., Plass, M. (1981). Breaking paragraphs into lines. Communications of the ACM.", c.String())
	assert.Equal(t, "Knuth, et al. (1981). Breaking paragraphs into lines. Communications of the ACM", c.Short())

	why := m.ResolveReference("why")
	require.NotNil(t, why)
	assert.Equal(t, "", why.URL)
	assert.Equal(t, "Smith, J. (2001). Why? Journal. A summary.", why.String())

	plain := m.ResolveReference("plain")
	require.NotNil(t, plain)
	assert.False(t, plain.IsAPA())
	assert.Equal(t, "A *plain* reference.", plain.Markup)

	short := m.ResolveReference("short")
	require.NotNil(t, short)
	assert.Equal(t, "Expected at least 4 items in the reference array, but found 2: Only,two", short.Problem)

	lost := m.ResolveReference("lost")
	require.NotNil(t, lost)
	assert.True(t, lost.UnknownSource)
	assert.Equal(t, "#nowhere", lost.Source)

	assert.Nil(t, m.ResolveReference("missing"))
	assert.Equal(t, []string{"knuth", "lost", "plain", "short", "why"}, m.ReferenceKeys())
}

func TestShortAuthors(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&Citation{Authors: "Ada Lovelace"}).ShortAuthors())
	assert.Equal(t, "Kernighan, et al.", (&Citation{Authors: "Kernighan, Ritchie"}).ShortAuthors())
}

func TestResolveGlossary(t *testing.T) {
	m := testManifest(t)
	entry := m.ResolveGlossary("rune")
	require.NotNil(t, entry)
	assert.Equal(t, "A Unicode code point.", entry.Definition)
	assert.Equal(t, []string{"code point"}, entry.Synonyms)
	assert.Nil(t, m.ResolveGlossary("byte"))

	name, ok := m.Source("#cacm")
	assert.True(t, ok)
	assert.Equal(t, "Communications of the ACM", name)
	_, ok = m.Source("cacm")
	assert.False(t, ok)
}

func TestReadingTime(t *testing.T) {
	assert.Equal(t, 1, ReadingTime(0, 150))
	assert.Equal(t, 1, ReadingTime(224, 150))
	assert.Equal(t, 2, ReadingTime(225, 150))
	assert.Equal(t, 10, ReadingTime(1500, 0))
}

func TestEstimateLabels(t *testing.T) {
	tests := []struct {
		minutes int
		loaded  bool
		want    string
	}{
		{0, false, "Forthcoming"},
		{4, true, "<5 min read"},
		{17, true, "~15 min read"},
		{59, true, "~55 min read"},
		{90, true, "~1.5 hour read"},
		{120, true, "~2 hour read"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChapterEstimate(tt.minutes, tt.loaded), "minutes=%d", tt.minutes)
	}

	assert.Equal(t, "5 min read", BookEstimate(3))
	assert.Equal(t, "40 min read", BookEstimate(47))
	assert.Equal(t, "~2 hour read", BookEstimate(100))
}

func TestSplitTitle(t *testing.T) {
	title, sub := SplitTitle("Programming: A Gentle Start")
	assert.Equal(t, "Programming", title)
	assert.Equal(t, "A Gentle Start", sub)

	title, sub = SplitTitle("Plain")
	assert.Equal(t, "Plain", title)
	assert.Equal(t, "", sub)
}
