package book

import (
	"fmt"
	"strings"
)

// Citation is a resolved reference, ready for presentation. Exactly one of
// Markup, the APA fields, or Problem is meaningful.
type Citation struct {
	Key string

	// Markup is set for references written as a markup string.
	Markup string

	Authors string
	Year    string
	Title   string
	Source  string
	URL     string
	Summary string

	// UnknownSource is set when Source named a "#id" missing from the
	// manifest's sources. Source then holds the raw "#id".
	UnknownSource bool

	// Problem describes a malformed reference.
	Problem string
}

// IsAPA reports whether the citation has structured APA fields.
func (c *Citation) IsAPA() bool {
	return c.Markup == "" && c.Problem == ""
}

// ShortAuthors abbreviates a comma-separated author list to the first author
// plus "et al.".
func (c *Citation) ShortAuthors() string {
	names := strings.Split(c.Authors, ",")
	if len(names) > 1 {
		return strings.TrimSpace(names[0]) + ", et al."
	}
	return c.Authors
}

// TitleEnd returns the punctuation that follows the title.
func (c *Citation) TitleEnd() string {
	if strings.HasSuffix(c.Title, "?") {
		return ""
	}
	return "."
}

// String renders the citation as plain APA text, or the raw markup for
// string references.
func (c *Citation) String() string {
	switch {
	case c.Problem != "":
		return c.Problem
	case c.Markup != "":
		return c.Markup
	}
	s := fmt.Sprintf("%s (%s). %s%s %s.", c.Authors, c.Year, c.Title, c.TitleEnd(), c.Source)
	if c.Summary != "" {
		s += " " + c.Summary
	}
	return s
}

// Short renders the abbreviated form used next to inline citations.
func (c *Citation) Short() string {
	if !c.IsAPA() {
		return c.String()
	}
	return fmt.Sprintf("%s (%s). %s%s %s", c.ShortAuthors(), c.Year, c.Title, c.TitleEnd(), c.Source)
}

// ResolveReference looks up a citation key. It returns nil when the manifest
// has no such reference.
func (m *Manifest) ResolveReference(key string) *Citation {
	ref, ok := m.References[key]
	if !ok {
		return nil
	}
	c := &Citation{Key: key}
	switch {
	case ref.Fields == nil:
		c.Markup = ref.Text
	case len(ref.Fields) < 4:
		c.Problem = fmt.Sprintf("Expected at least 4 items in the reference array, but found %d: %s",
			len(ref.Fields), strings.Join(ref.Fields, ","))
	default:
		c.Authors, c.Year, c.Title, c.Source = ref.Fields[0], ref.Fields[1], ref.Fields[2], ref.Fields[3]
		if len(ref.Fields) > 4 {
			c.URL = ref.Fields[4]
		}
		if len(ref.Fields) > 5 {
			c.Summary = ref.Fields[5]
		}
		if strings.HasPrefix(c.Source, "#") {
			if name, ok := m.Source(c.Source); ok {
				c.Source = name
			} else {
				c.UnknownSource = true
			}
		}
	}
	return c
}

// ResolveGlossary looks up a glossary entry, returning nil if it is missing.
func (m *Manifest) ResolveGlossary(key string) *GlossaryEntry {
	entry, ok := m.Glossary[key]
	if !ok {
		return nil
	}
	return &entry
}

// Source resolves a "#id" source reference to its name.
func (m *Manifest) Source(ref string) (string, bool) {
	id, ok := strings.CutPrefix(ref, "#")
	if !ok {
		return "", false
	}
	name, ok := m.Sources[id]
	return name, ok
}

// ReferenceKeys returns every reference key in alphabetical order, the order
// of the references page.
func (m *Manifest) ReferenceKeys() []string {
	return sortedKeys(m.References)
}
