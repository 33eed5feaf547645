package doctree

import (
	"fmt"
	"sort"
)

// Metadata is the per-unit index of headers, footnotes, citations, symbols
// and errors. It is rebuilt after parsing and after every mutation.
type Metadata struct {
	Headers   []NodeID
	Footnotes []NodeID
	Citations map[string]bool
	Symbols   map[string]string
	Errors    []NodeID
}

func (t *Tree) reindex() {
	m := Metadata{
		Citations: make(map[string]bool),
		Symbols:   make(map[string]string, len(t.symbols)),
	}
	for k, v := range t.symbols {
		m.Symbols[k] = v
	}
	t.walk(t.root, func(n *Node) bool {
		switch n.Kind {
		case KindHeader:
			m.Headers = append(m.Headers, n.ID)
		case KindFootnote:
			m.Footnotes = append(m.Footnotes, n.ID)
		case KindCitations:
			for _, k := range n.Keys {
				m.Citations[k] = true
			}
		case KindError:
			m.Errors = append(m.Errors, n.ID)
		}
		return true
	})
	t.meta = m
}

// Metadata returns a copy of the unit's metadata.
func (t *Tree) Metadata() Metadata {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m := Metadata{
		Headers:   append([]NodeID(nil), t.meta.Headers...),
		Footnotes: append([]NodeID(nil), t.meta.Footnotes...),
		Errors:    append([]NodeID(nil), t.meta.Errors...),
		Citations: make(map[string]bool, len(t.meta.Citations)),
		Symbols:   make(map[string]string, len(t.meta.Symbols)),
	}
	for k := range t.meta.Citations {
		m.Citations[k] = true
	}
	for k, v := range t.meta.Symbols {
		m.Symbols[k] = v
	}
	return m
}

// Headers returns the header nodes in document order.
func (t *Tree) Headers() []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]NodeID(nil), t.meta.Headers...)
}

// Footnotes returns the footnote nodes in numbering order.
func (t *Tree) Footnotes() []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]NodeID(nil), t.meta.Footnotes...)
}

// Errors returns the Error nodes in document order.
func (t *Tree) Errors() []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]NodeID(nil), t.meta.Errors...)
}

// ErrorMessages returns the message of every Error node in document order.
func (t *Tree) ErrorMessages() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.meta.Errors))
	for _, id := range t.meta.Errors {
		out = append(out, t.nodes[id].Value)
	}
	return out
}

// Citations returns the cited keys sorted alphabetically, which is also
// their numbering order.
func (t *Tree) Citations() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedKeys(t.meta.Citations)
}

// CitationNumber returns the 1-based number of key, or 0 if the unit never
// cites it.
func (t *Tree) CitationNumber(key string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.meta.Citations[key] {
		return 0
	}
	return sort.SearchStrings(sortedKeys(t.meta.Citations), key) + 1
}

// SortedCitations returns the keys of a Citations node ordered by citation
// number.
func (t *Tree) SortedCitations(id NodeID) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok || n.Kind != KindCitations {
		return nil
	}
	keys := append([]string(nil), n.Keys...)
	sort.Strings(keys)
	return keys
}

// FootnoteNumber returns the 0-based numbering position of a footnote, or -1.
func (t *Tree) FootnoteNumber(id NodeID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return indexOf(t.meta.Footnotes, id)
}

// HeaderIndex returns the 0-based position of a header, or -1.
func (t *Tree) HeaderIndex(id NodeID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return indexOf(t.meta.Headers, id)
}

// Symbols returns the symbols declared by the unit.
func (t *Tree) Symbols() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.meta.Symbols))
	for k, v := range t.meta.Symbols {
		out[k] = v
	}
	return out
}

// ErrorSummary renders the error count the way a table of contents shows
// it: "", "1 error", "3 errors".
func (t *Tree) ErrorSummary() string {
	n := len(t.Errors())
	switch n {
	case 0:
		return ""
	case 1:
		return "1 error"
	}
	return fmt.Sprintf("%d errors", n)
}

// WordCount counts the words of the plain-text projection.
func (t *Tree) WordCount() int {
	return Words(t.Text())
}

const footnoteLetters = "abcdefghijklmnopqrstuvwxyz"

// FootnoteSymbol maps a 0-based footnote number to its letter label:
// 0 is "a", 25 is "z", 26 is "aa", 701 is "zz", 702 is "aaa".
func FootnoteSymbol(n int) string {
	if n < 0 {
		return ""
	}
	if n < len(footnoteLetters) {
		return footnoteLetters[n : n+1]
	}
	return FootnoteSymbol(n/len(footnoteLetters)-1) + footnoteLetters[n%len(footnoteLetters):n%len(footnoteLetters)+1]
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
