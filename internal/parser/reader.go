package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// EOF is returned by Peek and Read at the end of input.
const EOF rune = -1

// Reader is a cursor over markup source. Read turns straight quotes into
// directional ones and "--" into an em dash; Unread undoes exactly one Read,
// including the quote state it toggled. Not safe for concurrent use.
type Reader struct {
	text       string
	pos        int
	openDouble bool
	history    []step
}

type step struct {
	pos        int
	openDouble bool
}

// Mark is a saved reader position for speculative parsing.
type Mark struct {
	pos        int
	openDouble bool
	depth      int
}

// NewReader returns a Reader at the start of text.
func NewReader(text string) *Reader {
	return &Reader{text: text}
}

// More reports whether unread input remains.
func (r *Reader) More() bool {
	return r.pos < len(r.text)
}

// Pos is the byte offset of the next character.
func (r *Reader) Pos() int {
	return r.pos
}

// Peek returns the next character without consuming it.
func (r *Reader) Peek() rune {
	if !r.More() {
		return EOF
	}
	c, _ := utf8.DecodeRuneInString(r.text[r.pos:])
	return c
}

// Read consumes one character, smartening quotes and dashes.
func (r *Reader) Read() rune {
	return r.read(true)
}

// ReadRaw consumes one character verbatim.
func (r *Reader) ReadRaw() rune {
	return r.read(false)
}

func (r *Reader) read(smarten bool) rune {
	if !r.More() {
		return EOF
	}
	c, w := utf8.DecodeRuneInString(r.text[r.pos:])
	r.history = append(r.history, step{pos: r.pos, openDouble: r.openDouble})
	if smarten {
		switch c {
		case '\n':
			r.openDouble = false
		case '"':
			if r.openDouble {
				c = '”'
			} else {
				c = '“'
			}
			r.openDouble = !r.openDouble
		case '\'':
			if opensQuote(r.CharBefore()) {
				c = '‘'
			} else {
				c = '’'
			}
		case '-':
			if strings.HasPrefix(r.text[r.pos+1:], "-") {
				c, w = '—', 2
			}
		}
	}
	r.pos += w
	return c
}

func opensQuote(prev rune) bool {
	return prev == EOF || unicode.IsSpace(prev) || strings.ContainsRune("([{“", prev)
}

// Unread undoes the last Read or ReadRaw. It is a no-op with no history.
func (r *Reader) Unread() {
	if len(r.history) == 0 {
		return
	}
	last := r.history[len(r.history)-1]
	r.history = r.history[:len(r.history)-1]
	r.pos, r.openDouble = last.pos, last.openDouble
}

// Mark saves the current position and quote state.
func (r *Reader) Mark() Mark {
	return Mark{pos: r.pos, openDouble: r.openDouble, depth: len(r.history)}
}

// Reset returns to a saved Mark, discarding history recorded since.
func (r *Reader) Reset(m Mark) {
	r.pos, r.openDouble = m.pos, m.openDouble
	if m.depth <= len(r.history) {
		r.history = r.history[:m.depth]
	}
}

// CharBefore returns the character preceding the cursor, or EOF at the start.
func (r *Reader) CharBefore() rune {
	if r.pos == 0 {
		return EOF
	}
	c, _ := utf8.DecodeLastRuneInString(r.text[:r.pos])
	return c
}

// Rest returns the unread input.
func (r *Reader) Rest() string {
	return r.text[r.pos:]
}

// RestOfLine returns the unread input up to, not including, the next newline.
func (r *Reader) RestOfLine() string {
	rest := r.Rest()
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// NextIs reports whether the unread input starts with s.
func (r *Reader) NextIs(s string) bool {
	return strings.HasPrefix(r.Rest(), s)
}

// NextMatches reports whether re matches at the cursor. re must be anchored
// with ^.
func (r *Reader) NextMatches(re *regexp.Regexp) bool {
	return re.MatchString(r.Rest())
}

// IsBlankLine reports whether the rest of the current line is whitespace.
func (r *Reader) IsBlankLine() bool {
	return strings.TrimSpace(r.RestOfLine()) == ""
}

// ReadWhitespace skips spaces and tabs.
func (r *Reader) ReadWhitespace() {
	for r.Peek() == ' ' || r.Peek() == '\t' {
		r.ReadRaw()
	}
}

// ReadUntilNewline consumes and returns the rest of the line, leaving the
// newline unread.
func (r *Reader) ReadUntilNewline() string {
	var b strings.Builder
	for r.More() && r.Peek() != '\n' {
		b.WriteRune(r.ReadRaw())
	}
	return b.String()
}

// ReadUntilNewlineOr consumes characters until a newline or any rune of
// stop, leaving the terminator unread.
func (r *Reader) ReadUntilNewlineOr(stop string, smarten bool) string {
	var b strings.Builder
	for r.More() && r.Peek() != '\n' && !strings.ContainsRune(stop, r.Peek()) {
		b.WriteRune(r.read(smarten))
	}
	return b.String()
}

// nextIsContentDelimiter reports whether the next character ends a run of
// plain text.
func (r *Reader) nextIsContentDelimiter() bool {
	switch r.Peek() {
	case '\n', '_', '*', '`', '@', '~', '^', '<', '{', '[', '\\':
		return true
	case '%':
		prev := r.CharBefore()
		return prev == ' ' || prev == '\t'
	}
	return false
}
