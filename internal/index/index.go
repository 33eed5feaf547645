// Package index builds the book's word index: which units mention which
// words, with a light capitalization and plural merge applied at the end.
package index

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/bookish/internal/doctree"
)

// DefaultMinLength is the shortest word that is indexed.
const DefaultMinLength = 3

// Index maps a word to the sorted IDs of the units that contain it.
type Index map[string][]string

// Words returns the indexed words in sorted order.
func (ix Index) Words() []string {
	out := make([]string, 0, len(ix))
	for w := range ix {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the units containing word. Case is folded when the exact
// form is not indexed.
func (ix Index) Lookup(word string) []string {
	if units, ok := ix[word]; ok {
		return units
	}
	return ix[toLower(word)]
}

// Casers keep state and may not be shared between goroutines.
func toLower(s string) string { return cases.Lower(language.Und).String(s) }
func toUpper(s string) string { return cases.Upper(language.Und).String(s) }

// Tokenize splits text on non-letter boundaries and drops tokens shorter
// than minLength runes. Case is preserved.
func Tokenize(text string, minLength int) []string {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	fields := strings.FieldsFunc(norm.NFC.String(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minLength {
			out = append(out, f)
		}
	}
	return out
}

// Builder accumulates words per unit. It is safe for concurrent use, so
// chapters may be added while they are parsed in parallel. Setting a unit
// again replaces its words.
type Builder struct {
	MinLength int

	mu    sync.Mutex
	units map[string]map[string]bool
}

// NewBuilder returns a builder that drops words shorter than minLength.
func NewBuilder(minLength int) *Builder {
	return &Builder{MinLength: minLength, units: make(map[string]map[string]bool)}
}

// Set records the words of a unit's plain text.
func (b *Builder) Set(unit, text string) {
	words := make(map[string]bool)
	for _, w := range Tokenize(text, b.MinLength) {
		words[w] = true
	}
	b.mu.Lock()
	b.units[unit] = words
	b.mu.Unlock()
}

// Remove forgets a unit.
func (b *Builder) Remove(unit string) {
	b.mu.Lock()
	delete(b.units, unit)
	b.mu.Unlock()
}

// Units returns the number of units recorded.
func (b *Builder) Units() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.units)
}

// Observer returns a tree observer that indexes a unit under its title when
// it finishes parsing and again after each edit.
func (b *Builder) Observer() doctree.Observer {
	update := func(t *doctree.Tree) { b.Set(t.Title, t.Text()) }
	return doctree.ObserverFuncs{
		Parsed:  update,
		Mutated: func(t *doctree.Tree, _ string) { update(t) },
	}
}

// Build returns the cleaned index of everything recorded so far.
func (b *Builder) Build() Index {
	b.mu.Lock()
	raw := make(map[string]map[string]bool)
	for unit, words := range b.units {
		for w := range words {
			if raw[w] == nil {
				raw[w] = make(map[string]bool)
			}
			raw[w][unit] = true
		}
	}
	b.mu.Unlock()
	return Clean(raw)
}

// Clean merges duplicate forms of a word. A capitalized word whose lowercase
// form is indexed merges into it. A word ending in "s" whose lowercase
// singular is indexed merges into the singular, which takes precedence over
// the capitalization rule. Merges follow chains, so "Cats" ends up in "cat"
// when "cats" and "cat" are both indexed.
//
// The rules are a heuristic: "was" merges into "wa" if both are indexed.
func Clean(raw map[string]map[string]bool) Index {
	canonical := make(map[string]string)
	for w := range raw {
		if c := canonicalOf(w, raw); c != "" && c != w {
			canonical[w] = c
		}
	}

	merged := make(map[string]map[string]bool, len(raw))
	for w, units := range raw {
		root := w
		for i := 0; i < len(canonical); i++ {
			next, ok := canonical[root]
			if !ok {
				break
			}
			root = next
		}
		if merged[root] == nil {
			merged[root] = make(map[string]bool)
		}
		for u := range units {
			merged[root][u] = true
		}
	}

	ix := make(Index, len(merged))
	for w, set := range merged {
		units := make([]string, 0, len(set))
		for u := range set {
			units = append(units, u)
		}
		sort.Strings(units)
		ix[w] = units
	}
	return ix
}

func canonicalOf(word string, raw map[string]map[string]bool) string {
	var canonical string
	lw := toLower(word)
	first, _ := utf8.DecodeRuneInString(word)
	if toUpper(string(first)) == string(first) {
		if _, ok := raw[lw]; ok {
			canonical = lw
		}
	}
	if strings.HasSuffix(word, "s") {
		singular := strings.TrimSuffix(lw, "s")
		if _, ok := raw[singular]; ok {
			canonical = singular
		}
	}
	return canonical
}
