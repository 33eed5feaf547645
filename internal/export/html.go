// Package export renders parsed chapters and whole books as HTML for
// printing. Citations and glossary definitions are resolved through the
// book's tables while rendering.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/bookish/internal/book"
	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/dgallion1/bookish/internal/parser"
)

// Resolver looks up citation keys and glossary entries. *book.Manifest and
// *book.Book satisfy it.
type Resolver interface {
	ResolveReference(key string) *book.Citation
	ResolveGlossary(key string) *book.GlossaryEntry
}

// Options control how a chapter is rendered.
type Options struct {
	Resolver Resolver
	// Title is shown above the chapter when set.
	Title string
	// Number is the chapter number; zero omits it.
	Number int
	// ID prefixes element ids so several chapters can share a page.
	ID string
}

// Chapter writes a chapter as an HTML fragment.
func Chapter(w io.Writer, tree *doctree.Tree, opts Options) error {
	return html.Render(w, ChapterNode(tree, opts))
}

// Page writes a chapter as a standalone HTML document.
func Page(w io.Writer, tree *doctree.Tree, opts Options) error {
	title := opts.Title
	if title == "" {
		title = tree.Title
	}
	doc, body := document(title)
	body.AppendChild(ChapterNode(tree, opts))
	return render(w, doc)
}

// Book writes every loaded chapter of b, in order, followed by the book's
// references, as one printable document.
func Book(w io.Writer, b *book.Book) error {
	doc, body := document(b.Title)

	title, subtitle := book.SplitTitle(b.Title)
	header := el(atom.Header, "class", "book")
	header.AppendChild(withText(el(atom.H1), title))
	if subtitle != "" {
		header.AppendChild(withText(el(atom.P, "class", "subtitle"), subtitle))
	}
	if len(b.Authors) > 0 {
		names := make([]string, 0, len(b.Authors))
		for _, a := range b.Authors {
			names = append(names, a.Name)
		}
		header.AppendChild(withText(el(atom.P, "class", "authors"), strings.Join(names, ", ")))
	}
	header.AppendChild(withText(el(atom.P, "class", "reading-time"), book.BookEstimate(b.BookReadingTime())))
	body.AppendChild(header)

	for _, ch := range b.LoadedChapters() {
		n, ok := b.ChapterNumber(ch.Spec.ID)
		if !ok {
			n = 0
		}
		body.AppendChild(ChapterNode(ch.Tree, Options{
			Resolver: b,
			Title:    ch.Spec.Title,
			Number:   n,
			ID:       ch.Spec.ID,
		}))
	}

	if keys := b.ReferenceKeys(); len(keys) > 0 {
		refs := el(atom.Section, "class", "references")
		refs.AppendChild(withText(el(atom.H2), "References"))
		for _, key := range keys {
			p := el(atom.P, "id", "ref-"+key)
			p.AppendChild(citationNode(b.ResolveReference(key), false))
			refs.AppendChild(p)
		}
		body.AppendChild(refs)
	}
	return render(w, doc)
}

func render(w io.Writer, doc *html.Node) error {
	if _, err := io.WriteString(w, "<!DOCTYPE html>\n"); err != nil {
		return err
	}
	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

func document(title string) (doc, body *html.Node) {
	doc = el(atom.Html)
	head := el(atom.Head)
	head.AppendChild(el(atom.Meta, "charset", "utf-8"))
	head.AppendChild(withText(el(atom.Title), title))
	doc.AppendChild(head)
	body = el(atom.Body)
	doc.AppendChild(body)
	return doc, body
}

// ChapterNode builds the <article> element for a chapter.
func ChapterNode(tree *doctree.Tree, opts Options) *html.Node {
	r := &renderer{tree: tree, opts: opts}
	article := el(atom.Article, "class", "chapter")
	if opts.ID != "" {
		article.Attr = append(article.Attr, html.Attribute{Key: "id", Val: opts.ID})
	}
	if opts.Number > 0 {
		article.AppendChild(withText(el(atom.Div, "class", "chapter-number"), "Chapter "+strconv.Itoa(opts.Number)))
	}
	if opts.Title != "" {
		article.AppendChild(withText(el(atom.H1), opts.Title))
	}
	if summary := tree.ErrorSummary(); summary != "" {
		article.AppendChild(withText(el(atom.P, "class", "errors"), summary))
	}
	for _, id := range tree.Blocks() {
		if n := r.block(id); n != nil {
			article.AppendChild(n)
		}
	}
	if notes := r.footnotes(); notes != nil {
		article.AppendChild(notes)
	}
	if cites := r.citations(); cites != nil {
		article.AppendChild(cites)
	}
	return article
}

type renderer struct {
	tree *doctree.Tree
	opts Options
}

func (r *renderer) id(s string) string {
	if r.opts.ID == "" {
		return s
	}
	return r.opts.ID + "-" + s
}

func (r *renderer) block(id doctree.NodeID) *html.Node {
	n, ok := r.tree.Get(id)
	if !ok {
		return nil
	}
	switch n.Kind {
	case doctree.KindParagraph:
		if n.Level > 0 {
			return r.inlineInto(el(headingAtom(n.Level)), n.Children)
		}
		return r.inlineInto(el(atom.P), n.Children)
	case doctree.KindHeader:
		h := el(headingAtom(n.Level), "id", r.id("header-"+strconv.Itoa(r.tree.HeaderIndex(id))))
		return r.inlineInto(h, n.Children)
	case doctree.KindRule:
		return el(atom.Hr)
	case doctree.KindEmbed:
		fig := el(atom.Figure, "class", "embed "+positionClass(n.Position))
		src := n.Value
		if !strings.HasPrefix(src, "http") {
			src = "images/" + src
		}
		fig.AppendChild(el(atom.Img, "src", src, "alt", n.Description))
		fig.AppendChild(r.figcaption(n.Caption, n.Credit))
		return fig
	case doctree.KindBulletedList, doctree.KindNumberedList:
		list := el(atom.Ul)
		if n.Kind == doctree.KindNumberedList {
			list = el(atom.Ol)
		}
		for _, item := range n.Children {
			list.AppendChild(r.inline(el(atom.Li), item))
		}
		return list
	case doctree.KindCode:
		fig := el(atom.Figure, "class", "code "+positionClass(n.Position))
		pre := el(atom.Pre)
		pre.AppendChild(withText(el(atom.Code, "class", "language-"+n.Language), n.Value))
		fig.AppendChild(pre)
		if n.Caption != 0 {
			fig.AppendChild(r.figcaption(n.Caption, 0))
		}
		return fig
	case doctree.KindQuote:
		q := el(atom.Blockquote, "class", positionClass(n.Position))
		for _, c := range n.Children {
			if b := r.block(c); b != nil {
				q.AppendChild(b)
			}
		}
		if n.Credit != 0 {
			q.AppendChild(r.inline(el(atom.Footer, "class", "credit"), n.Credit))
		}
		return q
	case doctree.KindCallout:
		d := el(atom.Div, "class", "callout "+positionClass(n.Position))
		for _, c := range n.Children {
			if b := r.block(c); b != nil {
				d.AppendChild(b)
			}
		}
		return d
	case doctree.KindTable:
		table := el(atom.Table, "class", positionClass(n.Position))
		if n.Caption != 0 {
			table.AppendChild(r.inline(el(atom.Caption), n.Caption))
		}
		for _, row := range n.Rows {
			tr := el(atom.Tr)
			for _, cell := range row {
				tr.AppendChild(r.inline(el(atom.Td), cell))
			}
			table.AppendChild(tr)
		}
		return table
	case doctree.KindError:
		return r.errorNode(n)
	}
	return nil
}

func (r *renderer) figcaption(caption, credit doctree.NodeID) *html.Node {
	fc := el(atom.Figcaption)
	if caption != 0 {
		r.inline(fc, caption)
	}
	if credit != 0 {
		fc.AppendChild(text(" "))
		fc.AppendChild(r.inline(el(atom.Span, "class", "credit"), credit))
	}
	return fc
}

// inline renders the node id into parent and returns parent.
func (r *renderer) inline(parent *html.Node, id doctree.NodeID) *html.Node {
	n, ok := r.tree.Get(id)
	if !ok {
		return parent
	}
	switch n.Kind {
	case doctree.KindContent:
		return r.inlineInto(parent, n.Children)
	case doctree.KindText:
		parent.AppendChild(text(n.Value))
	case doctree.KindFormatted:
		parent.AppendChild(r.inlineInto(el(formatAtom(n.Delimiter)), n.Children))
	case doctree.KindInlineCode:
		code := withText(el(atom.Code), n.Value)
		if n.Language != "" && n.Language != "plaintext" {
			code.Attr = append(code.Attr, html.Attribute{Key: "class", Val: "language-" + n.Language})
		}
		parent.AppendChild(code)
	case doctree.KindLink:
		parent.AppendChild(r.inlineInto(el(atom.A, "href", n.Value), n.Children))
	case doctree.KindCitations:
		parent.AppendChild(r.citationRefs(id))
	case doctree.KindDefinition:
		parent.AppendChild(r.definition(n))
	case doctree.KindFootnote:
		symbol := doctree.FootnoteSymbol(r.tree.FootnoteNumber(id))
		sup := el(atom.Sup, "class", "footnote-symbol")
		sup.AppendChild(withText(el(atom.A, "href", "#"+r.id("footnote-"+symbol)), symbol))
		parent.AppendChild(sup)
	case doctree.KindSubSuperscript:
		tag := atom.Sub
		if n.Super {
			tag = atom.Sup
		}
		parent.AppendChild(r.inlineInto(el(tag), n.Children))
	case doctree.KindError:
		parent.AppendChild(r.errorNode(n))
	case doctree.KindBulletedList, doctree.KindNumberedList:
		if b := r.block(id); b != nil {
			parent.AppendChild(b)
		}
	}
	return parent
}

func (r *renderer) inlineInto(parent *html.Node, ids []doctree.NodeID) *html.Node {
	for _, id := range ids {
		r.inline(parent, id)
	}
	return parent
}

func (r *renderer) citationRefs(id doctree.NodeID) *html.Node {
	sup := el(atom.Sup, "class", "citations")
	for i, key := range r.tree.SortedCitations(id) {
		if i > 0 {
			sup.AppendChild(text(","))
		}
		var ref *book.Citation
		if r.opts.Resolver != nil {
			ref = r.opts.Resolver.ResolveReference(key)
		}
		if ref == nil {
			sup.AppendChild(withText(el(atom.Span, "class", "error"), "Unknown reference "+key))
			continue
		}
		num := strconv.Itoa(r.tree.CitationNumber(key))
		sup.AppendChild(withText(el(atom.A, "href", "#"+r.id("citation-"+key), "title", ref.Short()), num))
	}
	return sup
}

func (r *renderer) definition(n doctree.Node) *html.Node {
	var entry *book.GlossaryEntry
	if r.opts.Resolver != nil {
		entry = r.opts.Resolver.ResolveGlossary(n.Glossary)
	}
	if entry == nil {
		return withText(el(atom.Span, "class", "error"), fmt.Sprintf("Unknown glossary entry %q", n.Glossary))
	}
	title := entry.Phrase + ": " + entry.Definition
	if len(entry.Synonyms) > 0 {
		title += " (" + strings.Join(entry.Synonyms, ", ") + ")"
	}
	return r.inlineInto(el(atom.Dfn, "class", "definition", "title", title), n.Children)
}

func (r *renderer) errorNode(n doctree.Node) *html.Node {
	return withText(el(atom.Span, "class", "error", "title", n.Value), n.Raw)
}

func (r *renderer) footnotes() *html.Node {
	notes := r.tree.Footnotes()
	if len(notes) == 0 {
		return nil
	}
	ol := el(atom.Ol, "class", "footnotes", "type", "a")
	for i, id := range notes {
		li := el(atom.Li, "id", r.id("footnote-"+doctree.FootnoteSymbol(i)))
		n, _ := r.tree.Get(id)
		ol.AppendChild(r.inlineInto(li, n.Children))
	}
	return ol
}

// citations lists the chapter's references in citation number order.
func (r *renderer) citations() *html.Node {
	keys := r.tree.Citations()
	if len(keys) == 0 || r.opts.Resolver == nil {
		return nil
	}
	ol := el(atom.Ol, "class", "citations")
	for _, key := range keys {
		li := el(atom.Li, "id", r.id("citation-"+key))
		li.AppendChild(citationNode(r.opts.Resolver.ResolveReference(key), true))
		ol.AppendChild(li)
	}
	return ol
}

// citationNode renders a resolved reference in APA style.
func citationNode(c *book.Citation, short bool) *html.Node {
	span := el(atom.Span, "class", "reference-text")
	switch {
	case c == nil:
		span.Attr[0].Val = "error"
		span.AppendChild(text("Unknown reference"))
		return span
	case c.Problem != "":
		span.Attr[0].Val = "error"
		span.AppendChild(text(c.Problem))
		return span
	case c.Markup != "":
		tree := parser.ParseContent(c.Markup)
		r := &renderer{tree: tree}
		for _, id := range tree.Blocks() {
			n, _ := tree.Get(id)
			r.inlineInto(span, n.Children)
		}
		return span
	}

	authors := c.Authors
	if short {
		authors = c.ShortAuthors()
	}
	span.AppendChild(text(authors + " (" + c.Year + "). "))
	if c.URL != "" {
		span.AppendChild(withText(el(atom.A, "href", c.URL), c.Title))
	} else {
		span.AppendChild(text(c.Title))
	}
	span.AppendChild(text(c.TitleEnd() + " "))
	source := withText(el(atom.Em), c.Source)
	if c.UnknownSource {
		source = withText(el(atom.Span, "class", "error"), "Unknown source "+c.Source)
	}
	span.AppendChild(source)
	if !short {
		span.AppendChild(text("."))
		if c.Summary != "" {
			span.AppendChild(withText(el(atom.Span, "class", "summary"), " "+c.Summary))
		}
	}
	return span
}

func positionClass(p doctree.Position) string {
	return "position-" + p.String()
}

func headingAtom(level int) atom.Atom {
	switch level {
	case 1:
		return atom.H2
	case 2:
		return atom.H3
	}
	return atom.H4
}

func formatAtom(delim string) atom.Atom {
	switch delim {
	case "_":
		return atom.Em
	case "`":
		return atom.Code
	}
	return atom.Strong
}

func el(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func withText(n *html.Node, s string) *html.Node {
	n.AppendChild(text(s))
	return n
}
