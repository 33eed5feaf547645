package parser

import (
	"strings"

	"github.com/dgallion1/bookish/internal/doctree"
)

// content parses inline segments up to the end of the line or, when
// awaiting is non-zero, up to that delimiter, which is left unread.
func (p *parser) content(awaiting rune) doctree.NodeID {
	c := p.tree.NewContent()
	for p.r.More() && p.r.Peek() != '\n' {
		if awaiting != 0 && p.r.Peek() == awaiting {
			break
		}
		var seg doctree.NodeID
		switch next := p.r.Peek(); {
		case next == '_' || next == '*':
			seg = p.formatted()
		case next == '`':
			seg = p.inlineCode()
		case next == '<':
			seg = p.citations()
		case next == '^':
			seg = p.subSuperscript()
		case next == '{':
			seg = p.footnote()
		case next == '~':
			seg = p.definition()
		case next == '\\':
			seg = p.escaped()
		case next == '[':
			seg = p.link()
		case next == '%' && p.r.nextIsContentDelimiter():
			p.comment()
		case next == '@':
			seg = p.unresolved()
		default:
			seg = p.text(awaiting)
		}
		p.tree.Append(c, seg)
	}
	return c
}

func (p *parser) text(awaiting rune) doctree.NodeID {
	start := p.r.Pos()
	var b strings.Builder
	for p.r.More() && (awaiting == 0 || p.r.Peek() != awaiting) && !p.r.nextIsContentDelimiter() {
		b.WriteRune(p.r.Read())
	}
	if b.Len() == 0 {
		return 0
	}
	return p.tree.NewText(b.String(), start)
}

func (p *parser) formatted() doctree.NodeID {
	delim := p.r.ReadRaw()
	f := p.tree.Add(&doctree.Node{Kind: doctree.KindFormatted, Delimiter: string(delim)})
	var b strings.Builder
	textStart := p.r.Pos()
	flush := func() {
		if b.Len() > 0 {
			p.tree.Append(f, p.tree.NewText(b.String(), textStart))
			b.Reset()
		}
	}
	for p.r.More() && p.r.Peek() != delim && p.r.Peek() != '\n' {
		if p.r.nextIsContentDelimiter() {
			flush()
			inner := p.content(delim)
			if p.tree.Empty(inner) {
				p.tree.Discard(inner)
			} else {
				p.tree.Append(f, inner)
			}
			textStart = p.r.Pos()
			continue
		}
		if b.Len() == 0 {
			textStart = p.r.Pos()
		}
		b.WriteRune(p.r.Read())
	}
	flush()
	if p.r.Peek() == delim {
		p.r.ReadRaw()
	} else {
		p.tree.Append(f, p.tree.NewError("Unclosed "+string(delim), ""))
	}
	return f
}

func (p *parser) inlineCode() doctree.NodeID {
	start := p.r.Pos()
	p.r.ReadRaw()
	var b strings.Builder
	for p.r.More() && !p.r.NextIs("`") && p.r.Peek() != '\n' {
		c := p.r.ReadRaw()
		if c == '\\' && p.r.NextIs("`") {
			c = p.r.ReadRaw()
		}
		b.WriteRune(c)
	}
	if !p.r.NextIs("`") {
		return p.tree.NewError("Unclosed `", p.r.text[start:p.r.Pos()])
	}
	p.r.ReadRaw()
	language := ""
	for c := p.r.Peek(); c >= 'a' && c <= 'z'; c = p.r.Peek() {
		language += string(p.r.ReadRaw())
	}
	if language == "" {
		language = "plaintext"
	}
	return p.tree.Add(&doctree.Node{Kind: doctree.KindInlineCode, Value: b.String(), Language: language})
}

func (p *parser) citations() doctree.NodeID {
	p.r.ReadRaw()
	raw := p.r.ReadUntilNewlineOr(">", false)
	if p.r.Peek() == '>' {
		p.r.ReadRaw()
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return p.tree.Add(&doctree.Node{Kind: doctree.KindCitations, Keys: keys})
}

// closed consumes the closing delimiter of a span, or appends an Error to
// content when the line ends first.
func (p *parser) closed(content doctree.NodeID, delim rune) {
	if p.r.Peek() == delim {
		p.r.ReadRaw()
		return
	}
	p.tree.Append(content, p.tree.NewError("Unclosed "+string(delim), ""))
}

func (p *parser) subSuperscript() doctree.NodeID {
	p.r.ReadRaw()
	super := true
	if p.r.Peek() == 'v' {
		p.r.ReadRaw()
		super = false
	}
	content := p.content('^')
	p.closed(content, '^')
	s := p.tree.Add(&doctree.Node{Kind: doctree.KindSubSuperscript, Super: super})
	p.tree.Append(s, content)
	return s
}

func (p *parser) footnote() doctree.NodeID {
	p.r.ReadRaw()
	content := p.content('}')
	p.closed(content, '}')
	f := p.tree.Add(&doctree.Node{Kind: doctree.KindFootnote})
	p.tree.Append(f, content)
	return f
}

func (p *parser) definition() doctree.NodeID {
	p.r.ReadRaw()
	phrase := p.content('~')
	p.closed(phrase, '~')
	var key strings.Builder
	for c := p.r.Peek(); c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'; c = p.r.Peek() {
		key.WriteRune(p.r.ReadRaw())
	}
	d := p.tree.Add(&doctree.Node{Kind: doctree.KindDefinition, Glossary: key.String()})
	p.tree.Append(d, phrase)
	return d
}

func (p *parser) escaped() doctree.NodeID {
	start := p.r.Pos()
	p.r.ReadRaw()
	if !p.r.More() {
		return p.tree.NewText(`\`, start)
	}
	if p.r.Peek() == '\n' {
		return p.tree.NewText(`\`, start)
	}
	return p.tree.NewText(string(p.r.ReadRaw()), start)
}

func (p *parser) link() doctree.NodeID {
	start := p.r.Pos()
	p.r.ReadRaw()
	content := p.content('|')
	if p.tree.Empty(content) {
		p.tree.Discard(content)
		return p.tree.NewError("Unclosed link", "[")
	}
	if p.r.Peek() != '|' {
		p.tree.Discard(content)
		p.r.ReadUntilNewline()
		return p.tree.NewError("Missing '|' in link", p.r.text[start:p.r.Pos()])
	}
	p.r.ReadRaw()
	target := p.r.ReadUntilNewlineOr("]", false)
	if p.r.Peek() != ']' {
		p.tree.Discard(content)
		p.r.ReadUntilNewline()
		return p.tree.NewError("Missing ] in link", p.r.text[start:p.r.Pos()])
	}
	p.r.ReadRaw()
	l := p.tree.Add(&doctree.Node{Kind: doctree.KindLink, Value: target})
	p.tree.Append(l, content)
	return l
}

// comment skips an inline %...% comment.
func (p *parser) comment() {
	p.r.ReadRaw()
	for p.r.More() && p.r.Peek() != '\n' && p.r.Peek() != '%' {
		p.r.ReadRaw()
	}
	if p.r.Peek() == '%' {
		p.r.ReadRaw()
	}
}

func (p *parser) unresolved() doctree.NodeID {
	start := p.r.Pos()
	p.r.ReadRaw()
	for p.r.More() && p.r.Peek() < 0x80 && isAlnum(byte(p.r.Peek())) {
		p.r.ReadRaw()
	}
	raw := p.r.text[start:p.r.Pos()]
	return p.tree.NewError("Couldn't find symbol "+raw, raw)
}
