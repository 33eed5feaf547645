package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	m := &mdImporter{src: src, tree: doctree.New(titleOf(filename))}
	m.blocks(m.tree.Root(), doc)
	m.tree.Finish()
	return m.tree, nil
}

type mdImporter struct {
	src  []byte
	tree *doctree.Tree
}

func (m *mdImporter) blocks(parent doctree.NodeID, n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		m.block(parent, c)
	}
}

func (m *mdImporter) block(parent doctree.NodeID, n ast.Node) {
	t := m.tree
	switch node := n.(type) {
	case *ast.Heading:
		addBlock(t, parent, doctree.KindHeader, min(3, node.Level), m.inlines(node)...)
	case *ast.Paragraph, *ast.TextBlock:
		if segs := m.inlines(n); len(segs) > 0 {
			addBlock(t, parent, doctree.KindParagraph, 0, segs...)
		}
	case *ast.ThematicBreak:
		t.Append(parent, t.Add(&doctree.Node{Kind: doctree.KindRule}))
	case *ast.FencedCodeBlock:
		addCode(t, parent, m.lines(node), string(node.Language(m.src)))
	case *ast.CodeBlock:
		addCode(t, parent, m.lines(node), "")
	case *ast.Blockquote:
		q := t.Add(&doctree.Node{Kind: doctree.KindQuote})
		m.blocks(q, node)
		t.Append(parent, q)
	case *ast.List:
		t.Append(parent, m.list(node))
	case *ast.HTMLBlock:
		// Raw HTML has no markup equivalent.
	default:
		m.blocks(parent, n)
	}
}

// list converts a list. Each item's paragraphs become its inline content,
// followed by any nested lists.
func (m *mdImporter) list(l *ast.List) doctree.NodeID {
	t := m.tree
	kind := doctree.KindBulletedList
	if l.IsOrdered() {
		kind = doctree.KindNumberedList
	}
	id := t.Add(&doctree.Node{Kind: kind})
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		var inline, nested []doctree.NodeID
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			switch cc := c.(type) {
			case *ast.List:
				nested = append(nested, m.list(cc))
			case *ast.Paragraph, *ast.TextBlock:
				if len(inline) > 0 {
					inline = append(inline, t.NewText(" ", -1))
				}
				inline = append(inline, m.inlines(c)...)
			default:
				if s := strings.TrimSpace(oneLine(m.plain(c))); s != "" {
					inline = append(inline, t.NewText(s, -1))
				}
			}
		}
		t.Append(id, t.NewContent(append(inline, nested...)...))
	}
	return id
}

func (m *mdImporter) inlines(n ast.Node) []doctree.NodeID {
	t := m.tree
	var out []doctree.NodeID
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			s := string(node.Segment.Value(m.src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				s += " "
			}
			out = append(out, t.NewText(s, node.Segment.Start))
		case *ast.String:
			out = append(out, t.NewText(string(node.Value), -1))
		case *ast.Emphasis:
			delim := "_"
			if node.Level >= 2 {
				delim = "*"
			}
			f := t.Add(&doctree.Node{Kind: doctree.KindFormatted, Delimiter: delim})
			for _, s := range m.inlines(node) {
				t.Append(f, s)
			}
			out = append(out, f)
		case *ast.CodeSpan:
			out = append(out, t.Add(&doctree.Node{
				Kind:     doctree.KindInlineCode,
				Value:    oneLine(m.plain(node)),
				Language: "plaintext",
			}))
		case *ast.Link:
			out = append(out, m.link(string(node.Destination), m.inlines(node)))
		case *ast.AutoLink:
			url := string(node.URL(m.src))
			out = append(out, m.link(url, []doctree.NodeID{t.NewText(string(node.Label(m.src)), -1)}))
		case *ast.RawHTML:
			// Dropped.
		default:
			out = append(out, m.inlines(c)...)
		}
	}
	return out
}

func (m *mdImporter) link(target string, segs []doctree.NodeID) doctree.NodeID {
	t := m.tree
	if len(segs) == 0 {
		segs = []doctree.NodeID{t.NewText(target, -1)}
	}
	l := t.Add(&doctree.Node{Kind: doctree.KindLink, Value: target})
	t.Append(l, t.NewContent(segs...))
	return l
}

func (m *mdImporter) lines(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(m.src))
	}
	return buf.String()
}

// plain gets the text content of a goldmark AST node.
func (m *mdImporter) plain(n ast.Node) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		buf.WriteString(m.lines(n))
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(m.src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(m.plain(c))
		}
	}
	return buf.String()
}
