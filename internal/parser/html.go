package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/bookish/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	tree := doctree.New(titleOf(filename))

	// Extract title from <title> tag if present.
	if title := findTitle(doc); title != "" {
		tree.Title = title
	}

	h := &htmlImporter{tree: tree}
	// Find <body> or use whole document.
	body := findBody(doc)
	if body == nil {
		body = doc
	}
	h.blocks(tree.Root(), body)
	tree.Finish()
	return tree, nil
}

type htmlImporter struct {
	tree *doctree.Tree
}

var blockTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "ul": true, "ol": true, "pre": true, "blockquote": true,
	"hr": true, "table": true, "div": true, "section": true, "article": true,
	"main": true, "aside": true, "figure": true,
}

func (h *htmlImporter) blocks(parent doctree.NodeID, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		h.block(parent, c)
	}
}

func (h *htmlImporter) block(parent doctree.NodeID, n *html.Node) {
	t := h.tree
	switch n.Type {
	case html.TextNode:
		addParagraph(t, parent, n.Data)
		return
	case html.ElementNode:
	default:
		h.blocks(parent, n)
		return
	}

	if level := headingLevel(n.Data); level > 0 {
		addBlock(t, parent, doctree.KindHeader, min(3, level), h.inlines(n)...)
		return
	}

	// Skip non-content elements.
	switch n.Data {
	case "script", "style", "nav", "footer", "header", "head", "title":
		return
	case "p":
		if segs := h.inlines(n); len(segs) > 0 {
			addBlock(t, parent, doctree.KindParagraph, 0, segs...)
		}
	case "ul", "ol":
		t.Append(parent, h.list(n))
	case "pre":
		addCode(t, parent, textContent(n), codeLanguage(n))
	case "blockquote":
		q := t.Add(&doctree.Node{Kind: doctree.KindQuote})
		h.blocks(q, n)
		t.Append(parent, q)
	case "hr":
		t.Append(parent, t.Add(&doctree.Node{Kind: doctree.KindRule}))
	case "table":
		t.Append(parent, h.table(n))
	default:
		if containsBlock(n) {
			h.blocks(parent, n)
			return
		}
		if segs := h.inlines(n); len(segs) > 0 && strings.TrimSpace(textContent(n)) != "" {
			addBlock(t, parent, doctree.KindParagraph, 0, segs...)
		}
	}
}

func (h *htmlImporter) list(n *html.Node) doctree.NodeID {
	t := h.tree
	kind := doctree.KindBulletedList
	if n.Data == "ol" {
		kind = doctree.KindNumberedList
	}
	id := t.Add(&doctree.Node{Kind: kind})
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		var inline, nested []doctree.NodeID
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				nested = append(nested, h.list(c))
				continue
			}
			inline = append(inline, h.inline(c)...)
		}
		t.Append(id, t.NewContent(append(trimSegments(t, inline), nested...)...))
	}
	return id
}

func (h *htmlImporter) table(n *html.Node) doctree.NodeID {
	t := h.tree
	id := t.Add(&doctree.Node{Kind: doctree.KindTable})
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "tr":
				var cells []doctree.NodeID
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type != html.ElementNode || (td.Data != "td" && td.Data != "th") {
						continue
					}
					segs := trimSegments(t, h.inlines(td))
					if td.Data == "th" {
						bold := t.Add(&doctree.Node{Kind: doctree.KindFormatted, Delimiter: "*"})
						for _, s := range segs {
							t.Append(bold, s)
						}
						segs = []doctree.NodeID{bold}
					}
					cells = append(cells, t.NewContent(segs...))
				}
				if len(cells) > 0 {
					t.AppendRow(id, cells)
				}
			case "caption":
				if segs := trimSegments(t, h.inlines(c)); len(segs) > 0 {
					t.SetCaption(id, t.NewContent(segs...))
				}
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return id
}

func (h *htmlImporter) inlines(n *html.Node) []doctree.NodeID {
	var out []doctree.NodeID
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, h.inline(c)...)
	}
	return trimSegments(h.tree, out)
}

func (h *htmlImporter) inline(n *html.Node) []doctree.NodeID {
	t := h.tree
	switch n.Type {
	case html.TextNode:
		if s := oneLine(n.Data); s != "" {
			return []doctree.NodeID{t.NewText(s, -1)}
		}
		return nil
	case html.ElementNode:
	default:
		return nil
	}
	wrap := func(node *doctree.Node) []doctree.NodeID {
		id := t.Add(node)
		var segs []doctree.NodeID
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			segs = append(segs, h.inline(c)...)
		}
		if node.Kind == doctree.KindFormatted {
			for _, s := range segs {
				t.Append(id, s)
			}
		} else {
			t.Append(id, t.NewContent(segs...))
		}
		return []doctree.NodeID{id}
	}
	switch n.Data {
	case "script", "style":
		return nil
	case "br":
		return []doctree.NodeID{t.NewText(" ", -1)}
	case "strong", "b":
		return wrap(&doctree.Node{Kind: doctree.KindFormatted, Delimiter: "*"})
	case "em", "i":
		return wrap(&doctree.Node{Kind: doctree.KindFormatted, Delimiter: "_"})
	case "sup":
		return wrap(&doctree.Node{Kind: doctree.KindSubSuperscript, Super: true})
	case "sub":
		return wrap(&doctree.Node{Kind: doctree.KindSubSuperscript})
	case "code":
		return []doctree.NodeID{t.Add(&doctree.Node{
			Kind:     doctree.KindInlineCode,
			Value:    oneLine(textContent(n)),
			Language: "plaintext",
		})}
	case "a":
		href := attr(n, "href")
		if href == "" || strings.TrimSpace(textContent(n)) == "" {
			break
		}
		return wrap(&doctree.Node{Kind: doctree.KindLink, Value: href})
	}
	var out []doctree.NodeID
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, h.inline(c)...)
	}
	return out
}

// trimSegments strips leading and trailing spaces from the outer text
// segments and drops any that become empty.
func trimSegments(t *doctree.Tree, segs []doctree.NodeID) []doctree.NodeID {
	if len(segs) == 0 {
		return segs
	}
	if n := t.Node(segs[0]); n.Kind == doctree.KindText {
		n.Value = strings.TrimLeft(n.Value, " ")
		if n.Value == "" {
			t.Discard(segs[0])
			segs = segs[1:]
		}
	}
	if len(segs) == 0 {
		return segs
	}
	if n := t.Node(segs[len(segs)-1]); n.Kind == doctree.KindText {
		n.Value = strings.TrimRight(n.Value, " ")
		if n.Value == "" {
			t.Discard(segs[len(segs)-1])
			segs = segs[:len(segs)-1]
		}
	}
	return segs
}

func containsBlock(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (blockTags[c.Data] || containsBlock(c)) {
			return true
		}
	}
	return false
}

func codeLanguage(pre *html.Node) string {
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "code" {
			continue
		}
		for _, class := range strings.Fields(attr(c, "class")) {
			if lang, ok := strings.CutPrefix(class, "language-"); ok {
				return lang
			}
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return strings.TrimSpace(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
