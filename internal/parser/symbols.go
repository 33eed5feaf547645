package parser

import (
	"regexp"
	"sort"
	"strings"
)

var symbolName = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Substitute replaces every @name in text whose name is a key of symbols
// with its value, in one left-to-right pass. Names are maximal runs of
// ASCII letters and digits, so @foo never matches inside @foobar. An @
// preceded by a backslash is left alone, as is any text a substitution
// inserts.
func Substitute(text string, symbols map[string]string) string {
	if len(symbols) == 0 || !strings.Contains(text, "@") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		c := text[i]
		if c == '\\' && i+1 < len(text) {
			b.WriteByte(c)
			b.WriteByte(text[i+1])
			i += 2
			continue
		}
		if c == '@' {
			j := i + 1
			for j < len(text) && isAlnum(text[j]) {
				j++
			}
			if v, ok := symbols[text[i+1:j]]; ok && j > i+1 {
				b.WriteString(v)
				i = j
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// declarations reads the @name: value lines at the top of a unit. Each value
// is the source of one block, trimmed. An invalid declaration becomes an
// Error block and ends the declarations.
func (p *parser) declarations() map[string]string {
	symbols := make(map[string]string)
	p.r.ReadWhitespace()
	for p.r.NextIs("@") {
		start := p.r.Pos()
		p.r.ReadRaw()
		name := p.r.ReadUntilNewlineOr(":", false)
		if !symbolName.MatchString(name) {
			p.r.ReadUntilNewline()
			msg := "'" + name + "' isn't a valid name for a symbol; letters and numbers only"
			if strings.TrimSpace(name) == "" {
				msg = "Did you mean to declare a symbol? Use an @ symbol, then a name of only numbers and letters, then a colon, then whatever content you want it to represent."
			}
			p.tree.Append(p.tree.Root(), p.tree.NewError(msg, p.r.text[start:p.r.Pos()]))
			return symbols
		}
		p.r.ReadWhitespace()
		if !p.r.NextIs(":") {
			p.r.ReadUntilNewline()
			p.tree.Append(p.tree.Root(), p.tree.NewError("Symbol names have to be followed by a ':'", p.r.text[start:p.r.Pos()]))
			return symbols
		}
		p.r.ReadRaw()
		p.r.ReadWhitespace()
		valueStart := p.r.Pos()
		p.tree.Discard(p.block())
		symbols[name] = strings.TrimSpace(p.r.text[valueStart:p.r.Pos()])
		p.skipSpace()
	}
	return symbols
}

// ParseSymbols parses a table of global symbols given as markup strings,
// as a book manifest declares them, checking each name.
func ParseSymbols(raw map[string]string) (map[string]string, []string) {
	out := make(map[string]string, len(raw))
	var problems []string
	for name, value := range raw {
		if !symbolName.MatchString(name) {
			problems = append(problems, "'"+name+"' isn't a valid name for a symbol; letters and numbers only")
			continue
		}
		out[name] = value
	}
	sort.Strings(problems)
	return out, problems
}
