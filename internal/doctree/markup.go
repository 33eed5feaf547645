package doctree

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Markup serializes the whole unit back to markup. Symbols are not
// re-declared; their values were substituted during parsing.
func (t *Tree) Markup() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.markup(t.root, 1)
}

// MarkupOf serializes one node.
func (t *Tree) MarkupOf(id NodeID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.markup(id, 1)
}

// textSpecials are escaped inside Text values so they read back literally.
const textSpecials = "\\_*`@~^<{[]|}%"

var numberedStart = regexp.MustCompile(`^[0-9]+\.`)

func (t *Tree) markup(id NodeID, depth int) string {
	n, ok := t.nodes[id]
	if !ok {
		return ""
	}
	switch n.Kind {
	case KindChapter:
		return t.joinMarkup(n.Children, "\n\n")
	case KindParagraph:
		body := escapeBlockStart(t.contentMarkup(n.Children))
		if n.Level > 0 {
			return strings.Repeat("#", n.Level) + " " + body
		}
		return body
	case KindHeader:
		return strings.Repeat("#", max(1, min(3, n.Level))) + " " + t.contentMarkup(n.Children)
	case KindRule:
		return "-"
	case KindEmbed:
		return "|" + n.Value + "|" + n.Description + "|" + t.markup(n.Caption, depth) + "|" +
			t.markup(n.Credit, depth) + "|" + n.Position.Marker()
	case KindBulletedList, KindNumberedList:
		return t.listMarkup(n, depth)
	case KindCode:
		lang := n.Language
		if lang == "plaintext" {
			lang = ""
		}
		return "`" + lang + "\n" + strings.ReplaceAll(n.Value, "`", "\\`") + "`" +
			n.Position.Marker() + t.markup(n.Caption, depth)
	case KindQuote:
		s := "\"\n" + t.joinMarkup(n.Children, "\n\n") + "\n\"" + n.Position.Marker()
		if n.Credit != 0 {
			s += " " + t.markup(n.Credit, depth)
		}
		return s
	case KindCallout:
		return "=\n" + t.joinMarkup(n.Children, "\n\n") + "\n=" + n.Position.Marker()
	case KindTable:
		rows := make([]string, 0, len(n.Rows))
		for _, row := range n.Rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				cells = append(cells, t.markup(c, depth))
			}
			rows = append(rows, ","+strings.Join(cells, "|"))
		}
		s := strings.Join(rows, "\n")
		if n.Position.Marker() != "" || n.Caption != 0 {
			s += "\n" + n.Position.Marker() + t.markup(n.Caption, depth)
		}
		return s
	case KindContent:
		return t.contentMarkup(n.Children)
	case KindFormatted:
		return n.Delimiter + t.contentMarkup(n.Children) + t.closer(n, n.Delimiter)
	case KindInlineCode:
		s := "`" + strings.ReplaceAll(n.Value, "`", "\\`") + "`"
		if n.Language != "plaintext" {
			s += n.Language
		}
		return s
	case KindLink:
		return "[" + t.contentMarkup(n.Children) + "|" + n.Value + "]"
	case KindCitations:
		return "<" + strings.Join(n.Keys, ",") + ">"
	case KindDefinition:
		return "~" + t.contentMarkup(n.Children) + t.closer(n, "~") + n.Glossary
	case KindFootnote:
		return "{" + t.contentMarkup(n.Children) + t.closer(n, "}")
	case KindSubSuperscript:
		body := t.contentMarkup(n.Children)
		if n.Super {
			if strings.HasPrefix(body, "v") {
				body = "\\" + body
			}
			return "^" + body + t.closer(n, "^")
		}
		return "^v" + body + t.closer(n, "^")
	case KindText:
		return escapeText(n.Value)
	case KindError:
		return n.Raw
	}
	return ""
}

// closer returns delim unless the span ran to the end of its line without
// one, which the parser records as a trailing "Unclosed" error.
func (t *Tree) closer(n *Node, delim string) string {
	for len(n.Children) > 0 {
		last := t.nodes[n.Children[len(n.Children)-1]]
		if last.Kind == KindError && last.Value == "Unclosed "+delim {
			return ""
		}
		if last.Kind != KindContent {
			return delim
		}
		n = last
	}
	return delim
}

func (t *Tree) joinMarkup(ids []NodeID, sep string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if s := t.markup(id, 1); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

// contentMarkup concatenates inline segments. Segments that end in an
// open-ended run of letters (inline code language, glossary key, symbol
// name) get the next segment's first letter escaped so it is not absorbed.
func (t *Tree) contentMarkup(ids []NodeID) string {
	var b strings.Builder
	absorbs := false
	for _, id := range ids {
		n := t.nodes[id]
		if n == nil {
			continue
		}
		if n.Kind.IsList() {
			continue
		}
		s := t.markup(id, 1)
		if absorbs {
			if r, size := utf8.DecodeRuneInString(s); size > 0 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
				s = "\\" + s
			}
		}
		b.WriteString(s)
		switch n.Kind {
		case KindInlineCode, KindDefinition:
			absorbs = true
		case KindError:
			absorbs = strings.HasPrefix(n.Raw, "@")
		default:
			absorbs = false
		}
	}
	return b.String()
}

func (t *Tree) listMarkup(n *Node, depth int) string {
	items := make([]string, 0, len(n.Children))
	for i, item := range n.Children {
		marker := strings.Repeat("*", depth)
		if n.Kind == KindNumberedList {
			marker = fmt.Sprintf("%d%s", i+1, strings.Repeat(".", depth))
		}
		in := t.nodes[item]
		if in.Kind.IsList() {
			items = append(items, t.listMarkup(in, depth+1))
			continue
		}
		s := marker + " " + t.contentMarkup(in.Children)
		for _, c := range in.Children {
			if cn := t.nodes[c]; cn != nil && cn.Kind.IsList() {
				s += "\n" + t.listMarkup(cn, depth+1)
			}
		}
		items = append(items, s)
	}
	return strings.Join(items, "\n")
}

func escapeText(s string) string {
	if !strings.ContainsAny(s, textSpecials) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(textSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeBlockStart keeps a paragraph from being read back as another block.
func escapeBlockStart(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '#', '-', '"', '=', ',':
		return "\\" + s
	}
	if numberedStart.MatchString(s) {
		return "\\" + s
	}
	return s
}
