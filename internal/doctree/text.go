package doctree

import "strings"

// Text returns the plain-text projection of the whole unit.
func (t *Tree) Text() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.text(t.root)
}

// TextOf returns the plain-text projection of one node.
func (t *Tree) TextOf(id NodeID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.text(id)
}

func (t *Tree) text(id NodeID) string {
	n, ok := t.nodes[id]
	if !ok {
		return ""
	}
	switch n.Kind {
	case KindChapter, KindCallout:
		return t.joinText(n.Children, "\n")
	case KindQuote:
		ids := n.Children
		if n.Credit != 0 {
			ids = append(append([]NodeID(nil), ids...), n.Credit)
		}
		return t.joinText(ids, "\n")
	case KindBulletedList, KindNumberedList:
		return t.joinText(n.Children, "\n")
	case KindParagraph, KindHeader, KindLink, KindDefinition, KindFootnote, KindSubSuperscript, KindFormatted:
		return t.segmentsText(n.Children)
	case KindContent:
		return t.segmentsText(n.Children)
	case KindEmbed:
		return t.text(n.Caption)
	case KindTable:
		rows := make([]string, 0, len(n.Rows)+1)
		for _, row := range n.Rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				cells = append(cells, t.text(c))
			}
			rows = append(rows, strings.Join(cells, ", "))
		}
		if c := t.text(n.Caption); c != "" {
			rows = append(rows, c)
		}
		return strings.Join(rows, "\n")
	case KindInlineCode, KindText:
		return n.Value
	}
	// Rule, Code, Citations, Error.
	return ""
}

// segmentsText concatenates inline segments. Nested lists inside a list
// item start on their own line.
func (t *Tree) segmentsText(ids []NodeID) string {
	var b strings.Builder
	for _, id := range ids {
		if n := t.nodes[id]; n != nil && n.Kind.IsList() {
			b.WriteByte('\n')
		}
		b.WriteString(t.text(id))
	}
	return b.String()
}

func (t *Tree) joinText(ids []NodeID, sep string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if s := t.text(id); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}
