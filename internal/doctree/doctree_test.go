package doctree_test

import (
	"testing"

	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/dgallion1/bookish/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *doctree.Tree {
	t.Helper()
	return parser.ParseChapter(src, parser.Options{Title: "unit"})
}

// texts returns the tree's Text node IDs in reading order.
func texts(tree *doctree.Tree) []doctree.NodeID {
	var out []doctree.NodeID
	tree.Walk(tree.Root(), func(n *doctree.Node) bool {
		if n.Kind == doctree.KindText {
			out = append(out, n.ID)
		}
		return true
	})
	return out
}

func TestFootnoteSymbol(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "a"},
		{1, "b"},
		{25, "z"},
		{26, "aa"},
		{27, "ab"},
		{51, "az"},
		{52, "ba"},
		{701, "zz"},
		{702, "aaa"},
		{-1, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, doctree.FootnoteSymbol(tt.n), "n=%d", tt.n)
	}
}

func TestCitationNumbering(t *testing.T) {
	tree := parse(t, "Cited <b,a,c> and again <c>.")

	assert.Equal(t, []string{"a", "b", "c"}, tree.Citations())
	assert.Equal(t, 1, tree.CitationNumber("a"))
	assert.Equal(t, 2, tree.CitationNumber("b"))
	assert.Equal(t, 3, tree.CitationNumber("c"))
	assert.Equal(t, 0, tree.CitationNumber("missing"))

	var cites []doctree.NodeID
	tree.Walk(tree.Root(), func(n *doctree.Node) bool {
		if n.Kind == doctree.KindCitations {
			cites = append(cites, n.ID)
		}
		return true
	})
	require.Len(t, cites, 2)
	assert.Equal(t, []string{"a", "b", "c"}, tree.SortedCitations(cites[0]))
	assert.Nil(t, tree.SortedCitations(tree.Root()))
}

func TestKindAndPosition(t *testing.T) {
	assert.Equal(t, "paragraph", doctree.KindParagraph.String())
	assert.Equal(t, "unknown", doctree.Kind(200).String())
	assert.True(t, doctree.KindNumberedList.IsList())
	assert.False(t, doctree.KindQuote.IsList())

	assert.Equal(t, "<", doctree.PositionLeft.Marker())
	assert.Equal(t, "", doctree.PositionInline.Marker())
	assert.Equal(t, "right", doctree.PositionRight.String())
}

func TestBuilderAndGet(t *testing.T) {
	tree := doctree.New("built")
	para := tree.Add(&doctree.Node{Kind: doctree.KindParagraph})
	text := tree.NewText("hello", 0)
	tree.Append(para, tree.NewContent(text))
	tree.Append(tree.Root(), para)
	assert.False(t, tree.Parsed())

	tree.Finish()
	assert.True(t, tree.Parsed())

	n, ok := tree.Get(text)
	require.True(t, ok)
	assert.Equal(t, para, mustBlock(t, tree, text))
	assert.Equal(t, "hello", n.Value)

	_, ok = tree.Get(9999)
	assert.False(t, ok)
	_, err := tree.BlockOf(9999)
	assert.ErrorIs(t, err, doctree.ErrNotFound)

	// Get returns a copy.
	n.Value = "changed"
	assert.Equal(t, "hello", tree.TextOf(text))
}

func mustBlock(t *testing.T, tree *doctree.Tree, id doctree.NodeID) doctree.NodeID {
	t.Helper()
	b, err := tree.BlockOf(id)
	require.NoError(t, err)
	return b
}

func TestMetadata(t *testing.T) {
	tree := parse(t, "@x: value\n\n# Head\n\nText{note} <k> @missing\n")
	m := tree.Metadata()
	assert.Len(t, m.Headers, 1)
	assert.Len(t, m.Footnotes, 1)
	assert.True(t, m.Citations["k"])
	assert.Equal(t, "value", m.Symbols["x"])
	assert.Len(t, m.Errors, 1)

	// The copy is independent of the tree.
	m.Citations["other"] = true
	assert.Equal(t, []string{"k"}, tree.Citations())
}

func TestWordCount(t *testing.T) {
	tree := parse(t, "One two three.\n\n* four\n* five six")
	assert.Equal(t, 6, tree.WordCount())
	assert.Equal(t, 3, doctree.Words("  a b\tc\n"))
}

func TestClone(t *testing.T) {
	tree := parse(t, "Hello world")
	clone := tree.Clone()

	first, err := clone.First()
	require.NoError(t, err)
	_, err = clone.Insert("Big ", doctree.At(first))
	require.NoError(t, err)

	assert.Equal(t, "Big Hello world", clone.Text())
	assert.Equal(t, "Hello world", tree.Text())
	assert.Equal(t, tree.Title, clone.Title)
}

func TestChildrenOfTable(t *testing.T) {
	tree := parse(t, ",a|b\nCaption")
	table := tree.Blocks()[0]
	kids := tree.ChildrenOf(table)
	require.Len(t, kids, 3)
	assert.Equal(t, "Caption", tree.TextOf(kids[2]))
	assert.Nil(t, tree.ChildrenOf(9999))
}

func TestObserverNotifications(t *testing.T) {
	var parsed int
	var ops []string
	obs := doctree.ObserverFuncs{
		Parsed: func(*doctree.Tree) { parsed++ },
		Mutated: func(tree *doctree.Tree, op string) {
			// Observers run outside the lock and may read the tree.
			_ = tree.Text()
			ops = append(ops, op)
		},
	}
	tree := parser.ParseChapter("Hello world", parser.Options{Observers: []doctree.Observer{obs}})
	assert.Equal(t, 1, parsed)

	c, _ := tree.First()
	c, err := tree.Insert("x", doctree.At(c))
	require.NoError(t, err)
	_, err = tree.DeleteSelection(doctree.At(c), true)
	require.NoError(t, err)
	_, err = tree.SplitSelection(doctree.At(doctree.Caret{Node: c.Node, Index: 5}))
	require.NoError(t, err)
	require.NoError(t, tree.SetParagraphLevel(tree.Blocks()[0], 1))

	assert.Equal(t, []string{doctree.OpInsert, doctree.OpDelete, doctree.OpSplit, doctree.OpLevel}, ops)

	// Failed mutations do not notify.
	_, err = tree.Insert("x", doctree.At(doctree.Caret{Node: c.Node, Index: 99}))
	require.Error(t, err)
	assert.Len(t, ops, 4)
}
