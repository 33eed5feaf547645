package index

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/dgallion1/bookish/internal/parser"
)

func set(units ...string) map[string]bool {
	out := make(map[string]bool, len(units))
	for _, u := range units {
		out[u] = true
	}
	return out
}

func TestTokenize(t *testing.T) {
	got := Tokenize("It's a well-known fact: Go2 beats C, naïvely.", 0)
	assert.Equal(t, []string{"well", "known", "fact", "beats", "naïvely"}, got)

	assert.Equal(t, []string{"a", "b"}, Tokenize("a,b", 1))
	assert.Empty(t, Tokenize("", 3))
}

func TestTokenizeNormalizes(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single letter.
	got := Tokenize("cafe\u0301", 0)
	assert.Equal(t, []string{"caf\u00e9"}, got)
}

func TestCleanMergesCapitalAndPlural(t *testing.T) {
	ix := Clean(map[string]map[string]bool{
		"Cat":  set("u1"),
		"cat":  set("u2"),
		"cats": set("u3"),
	})
	assert.Equal(t, Index{"cat": {"u1", "u2", "u3"}}, ix)
}

func TestCleanChains(t *testing.T) {
	ix := Clean(map[string]map[string]bool{
		"Dogs": set("a"),
		"dogs": set("b"),
		"dog":  set("c"),
	})
	assert.Equal(t, Index{"dog": {"a", "b", "c"}}, ix)
}

func TestCleanLeavesUnmatchedWords(t *testing.T) {
	ix := Clean(map[string]map[string]bool{
		"Paris":  set("a"),
		"glass":  set("b"),
		"Bridge": set("c"),
		"bridge": set("d"),
	})
	assert.Equal(t, Index{
		"Paris":  {"a"},
		"glass":  {"b"},
		"bridge": {"c", "d"},
	}, ix)
}

func TestCleanIsAHeuristic(t *testing.T) {
	// Unrelated words merge when one looks like the plural of the other.
	ix := Clean(map[string]map[string]bool{
		"was": set("a"),
		"wa":  set("b"),
	})
	assert.Equal(t, Index{"wa": {"a", "b"}}, ix)
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(DefaultMinLength)
	b.Set("one", "The Cat sat.")
	b.Set("two", "Two cats sat on a mat.")
	b.Set("three", "A cat.")

	ix := b.Build()
	assert.Equal(t, []string{"one", "three", "two"}, ix["cat"])
	assert.Equal(t, []string{"one", "two"}, ix["sat"])
	assert.Equal(t, []string{"two"}, ix.Lookup("Mat"))
	assert.NotContains(t, ix, "on")
	assert.Equal(t, []string{"The", "Two", "cat", "mat", "sat"}, sortedCopy(t, ix))

	b.Set("two", "Nothing here")
	b.Remove("three")
	ix = b.Build()
	// With no lowercase form left, the capitalized word stands alone.
	assert.NotContains(t, ix, "cat")
	assert.Equal(t, []string{"one"}, ix.Lookup("Cat"))
	assert.Equal(t, 2, b.Units())
}

func sortedCopy(t *testing.T, ix Index) []string {
	t.Helper()
	words := ix.Words()
	require.Len(t, words, len(ix))
	return words
}

func TestBuilderConcurrentSet(t *testing.T) {
	b := NewBuilder(0)
	var wg sync.WaitGroup
	for i, text := range []string{"alpha beta", "beta gamma", "gamma delta", "delta alpha"} {
		wg.Add(1)
		go func(unit, text string) {
			defer wg.Done()
			b.Set(unit, text)
		}(string(rune('a'+i)), text)
	}
	wg.Wait()

	ix := b.Build()
	assert.Equal(t, []string{"a", "d"}, ix["alpha"])
	assert.Equal(t, []string{"a", "b"}, ix["beta"])
}

func TestBuilderObserver(t *testing.T) {
	b := NewBuilder(DefaultMinLength)
	tree := parser.ParseChapter("Hello world", parser.Options{
		Title:     "intro",
		Observers: []doctree.Observer{b.Observer()},
	})
	assert.Equal(t, []string{"intro"}, b.Build()["Hello"])

	c, err := tree.First()
	require.NoError(t, err)
	_, err = tree.Insert("Big ", doctree.At(c))
	require.NoError(t, err)
	assert.Equal(t, []string{"intro"}, b.Build()["Big"])
}
