package parser

import (
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dgallion1/bookish/internal/doctree"
)

var (
	bulletStart   = regexp.MustCompile(`^\*+\s+`)
	numberedStart = regexp.MustCompile(`^[0-9]+\.+`)
	codeStart     = regexp.MustCompile("^`[a-zA-Z]*[ \\t]*\\n")
	quoteStart    = regexp.MustCompile(`^"[ \t]*\n`)
	calloutStart  = regexp.MustCompile(`^=[ \t]*\n`)
)

// Options configure a markup parse.
type Options struct {
	Title string
	// Symbols are substituted after the unit's own declarations.
	Symbols map[string]string
	// Observers are registered on the tree and told when parsing finishes.
	Observers []doctree.Observer
}

// MarkupParser reads the native book markup.
type MarkupParser struct {
	Symbols   map[string]string
	Observers []doctree.Observer
}

func (p *MarkupParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseChapter(string(src), Options{
		Title:     strings.TrimSuffix(filename, filepath.Ext(filename)),
		Symbols:   p.Symbols,
		Observers: p.Observers,
	}), nil
}

type parser struct {
	r    *Reader
	tree *doctree.Tree
}

func newParser(text, title string) *parser {
	return &parser{r: NewReader(text), tree: doctree.New(title)}
}

// ParseChapter parses a whole unit. It never fails: malformed regions become
// Error nodes and parsing continues with the next block.
func ParseChapter(text string, opts Options) *doctree.Tree {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	p := newParser(text, opts.Title)

	local := p.declarations()
	decl := text[:p.r.Pos()]
	rest := Substitute(text[p.r.Pos():], local)
	rest = Substitute(rest, opts.Symbols)
	p.r = NewReader(decl + rest)
	p.r.pos = len(decl)

	root := p.tree.Root()
	for p.r.More() {
		start := p.r.Pos()
		p.tree.Append(root, p.block())
		p.skipSpace()
		if p.r.Pos() == start {
			p.r.ReadRaw()
		}
	}
	p.tree.SetSymbols(local)
	p.tree.Finish(opts.Observers...)
	return p.tree
}

// ParseContent parses a single line of inline content into a unit holding
// one paragraph.
func ParseContent(text string) *doctree.Tree {
	p := newParser(text, "")
	para := p.tree.Add(&doctree.Node{Kind: doctree.KindParagraph})
	p.tree.Append(para, p.content(0))
	p.tree.Append(p.tree.Root(), para)
	p.tree.Finish()
	return p.tree
}

// ParseEmbed parses a single embed, such as a chapter's cover image.
func ParseEmbed(text string) *doctree.Tree {
	p := newParser(text, "")
	p.tree.Append(p.tree.Root(), p.embed())
	p.tree.Finish()
	return p.tree
}

func (p *parser) skipSpace() {
	for c := p.r.Peek(); c == ' ' || c == '\t' || c == '\n'; c = p.r.Peek() {
		p.r.ReadRaw()
	}
}

// block parses one block. It returns 0 for comments and empty paragraphs.
func (p *parser) block() doctree.NodeID {
	p.r.ReadWhitespace()
	switch {
	case p.r.NextIs("%"):
		p.r.ReadUntilNewline()
		return 0
	case p.r.NextIs("#"):
		return p.header()
	case p.r.NextIs("-"):
		p.r.ReadUntilNewline()
		return p.tree.Add(&doctree.Node{Kind: doctree.KindRule})
	case p.r.NextIs("|"):
		return p.embed()
	case p.r.NextMatches(bulletStart):
		return p.list(doctree.KindBulletedList)
	case p.r.NextMatches(numberedStart):
		return p.list(doctree.KindNumberedList)
	case p.r.NextMatches(codeStart):
		return p.code()
	case p.r.NextMatches(quoteStart):
		return p.quote()
	case p.r.NextMatches(calloutStart):
		return p.callout()
	case p.r.NextIs(","):
		return p.table()
	}
	return p.paragraph()
}

func (p *parser) paragraph() doctree.NodeID {
	content := p.content(0)
	if p.tree.Empty(content) {
		p.tree.Discard(content)
		return 0
	}
	para := p.tree.Add(&doctree.Node{Kind: doctree.KindParagraph})
	p.tree.Append(para, content)
	return para
}

func (p *parser) header() doctree.NodeID {
	count := 0
	for p.r.NextIs("#") {
		p.r.ReadRaw()
		count++
	}
	p.r.ReadWhitespace()
	h := p.tree.Add(&doctree.Node{Kind: doctree.KindHeader, Level: min(3, count)})
	p.tree.Append(h, p.content(0))
	return h
}

// list parses consecutive items of one kind. A deeper marker starts a nested
// list that joins the previous item's content; a shallower one ends this list.
func (p *parser) list(kind doctree.Kind) doctree.NodeID {
	start := bulletStart
	if kind == doctree.KindNumberedList {
		start = numberedStart
	}
	list := p.tree.Add(&doctree.Node{Kind: kind})
	level := 0
	for p.r.NextMatches(start) {
		m := p.r.Mark()
		l := p.marker(kind)
		switch {
		case level == 0 || l == level:
			level = l
			p.r.ReadWhitespace()
			p.tree.Append(list, p.content(0))
		case l < level:
			p.r.Reset(m)
			return list
		default:
			p.r.Reset(m)
			nested := p.list(kind)
			items := p.tree.Node(list).Children
			p.tree.Append(items[len(items)-1], nested)
		}
		p.r.ReadWhitespace()
		for p.r.Peek() == '\n' {
			p.r.ReadRaw()
			p.r.ReadWhitespace()
		}
	}
	return list
}

// marker consumes a list marker and returns its nesting level.
func (p *parser) marker(kind doctree.Kind) int {
	if kind == doctree.KindNumberedList {
		for c := p.r.Peek(); c >= '0' && c <= '9'; c = p.r.Peek() {
			p.r.ReadRaw()
		}
		level := 0
		for p.r.NextIs(".") {
			p.r.ReadRaw()
			level++
		}
		return level
	}
	level := 0
	for p.r.NextIs("*") {
		p.r.ReadRaw()
		level++
	}
	return level
}

func (p *parser) embed() doctree.NodeID {
	start := p.r.Pos()
	fail := func(msg string, discard ...doctree.NodeID) doctree.NodeID {
		for _, id := range discard {
			p.tree.Discard(id)
		}
		p.r.ReadUntilNewline()
		return p.tree.NewError(msg, p.r.text[start:p.r.Pos()])
	}

	p.r.ReadRaw()
	url := p.r.ReadUntilNewlineOr("|", false)
	if url == "" {
		return fail("Missing URL in embed.")
	}
	if p.r.Peek() != '|' {
		return fail("Missing '|' after URL in embed")
	}
	p.r.ReadRaw()
	description := p.r.ReadUntilNewlineOr("|", true)
	if p.r.Peek() != '|' {
		return fail("Missing '|' after description in embed")
	}
	if description == "" {
		return fail("Missing image/video description in embed.")
	}
	p.r.ReadRaw()
	caption := p.content('|')
	if p.r.Peek() != '|' {
		return fail("Missing '|' after caption in embed", caption)
	}
	p.r.ReadRaw()
	credit := p.content('|')
	if strings.TrimSpace(p.tree.TextOf(credit)) == "" {
		return fail("Missing credit in embed.", caption, credit)
	}
	if p.r.Peek() != '|' {
		return fail("Missing '|' after credit in embed.", caption, credit)
	}
	p.r.ReadRaw()

	e := p.tree.Add(&doctree.Node{
		Kind:        doctree.KindEmbed,
		Value:       url,
		Description: description,
		Position:    p.position(),
	})
	p.attachCaption(e, caption)
	p.tree.SetCredit(e, credit)
	return e
}

func (p *parser) code() doctree.NodeID {
	p.r.ReadRaw()
	language := strings.TrimSpace(p.r.ReadUntilNewline())
	p.r.ReadRaw()
	var b strings.Builder
	for p.r.More() && !p.r.NextIs("`") {
		c := p.r.ReadRaw()
		if c == '\\' && p.r.NextIs("`") {
			c = p.r.ReadRaw()
		}
		b.WriteRune(c)
	}
	if p.r.NextIs("`") {
		p.r.ReadRaw()
	}
	if language == "" {
		language = "plaintext"
	}
	c := p.tree.Add(&doctree.Node{
		Kind:     doctree.KindCode,
		Value:    b.String(),
		Language: language,
		Position: p.position(),
	})
	p.attachCaption(c, p.content(0))
	return c
}

// blocks parses nested blocks until a line starting with closing.
func (p *parser) blocks(parent doctree.NodeID, closing string) {
	// Opening delimiter, trailing whitespace, newline.
	p.r.ReadRaw()
	p.r.ReadWhitespace()
	p.r.ReadRaw()
	for p.r.More() && !p.r.NextIs(closing) {
		start := p.r.Pos()
		p.tree.Append(parent, p.block())
		p.skipSpace()
		if p.r.Pos() == start {
			p.r.ReadRaw()
		}
	}
	if p.r.NextIs(closing) {
		p.r.ReadRaw()
	}
}

func (p *parser) quote() doctree.NodeID {
	q := p.tree.Add(&doctree.Node{Kind: doctree.KindQuote})
	p.blocks(q, `"`)
	p.tree.Node(q).Position = p.position()
	p.r.ReadWhitespace()
	if p.r.More() && p.r.Peek() != '\n' {
		credit := p.content(0)
		if p.tree.Empty(credit) {
			p.tree.Discard(credit)
		} else {
			p.tree.SetCredit(q, credit)
		}
	}
	return q
}

func (p *parser) callout() doctree.NodeID {
	c := p.tree.Add(&doctree.Node{Kind: doctree.KindCallout})
	p.blocks(c, "=")
	p.tree.Node(c).Position = p.position()
	p.r.ReadWhitespace()
	return c
}

func (p *parser) table() doctree.NodeID {
	t := p.tree.Add(&doctree.Node{Kind: doctree.KindTable})
	for p.r.More() && p.r.NextIs(",") {
		var cells []doctree.NodeID
		for p.r.More() && p.r.Peek() != '\n' {
			// Leading ',' or separating '|'.
			p.r.ReadRaw()
			cells = append(cells, p.content('|'))
		}
		p.tree.AppendRow(t, cells)
		if p.r.Peek() == '\n' {
			p.r.ReadRaw()
		}
	}
	p.tree.Node(t).Position = p.position()
	p.attachCaption(t, p.content(0))
	return t
}

func (p *parser) position() doctree.Position {
	switch p.r.Peek() {
	case '<':
		p.r.ReadRaw()
		return doctree.PositionLeft
	case '>':
		p.r.ReadRaw()
		return doctree.PositionRight
	}
	return doctree.PositionInline
}

// attachCaption sets a caption, dropping it when empty.
func (p *parser) attachCaption(parent, caption doctree.NodeID) {
	if p.tree.Empty(caption) {
		p.tree.Discard(caption)
		return
	}
	p.tree.SetCaption(parent, caption)
}
