package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/bookish/internal/doctree"
)

// Parser converts raw document bytes into a parsed document tree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Tree, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".bd":       true,
	".bookish":  true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".bd", ".bookish":
		return &MarkupParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Extensions returns the supported extensions in sorted order.
func Extensions() []string {
	out := make([]string, 0, len(SupportedExtensions))
	for ext := range SupportedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Importers below build trees directly and then serialize them as markup.
// Values they produce must stay on one line.

func titleOf(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}

// oneLine collapses runs of whitespace, including newlines, to one space.
// Leading and trailing whitespace is kept as a single space.
func oneLine(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}

// addBlock appends a Paragraph or Header holding segs to parent.
func addBlock(t *doctree.Tree, parent doctree.NodeID, kind doctree.Kind, level int, segs ...doctree.NodeID) doctree.NodeID {
	b := t.Add(&doctree.Node{Kind: kind, Level: level})
	t.Append(b, t.NewContent(segs...))
	t.Append(parent, b)
	return b
}

// addParagraph appends a plain paragraph unless text is blank.
func addParagraph(t *doctree.Tree, parent doctree.NodeID, text string) {
	text = strings.TrimSpace(oneLine(text))
	if text == "" {
		return
	}
	addBlock(t, parent, doctree.KindParagraph, 0, t.NewText(text, -1))
}

func addCode(t *doctree.Tree, parent doctree.NodeID, code, language string) {
	if language == "" {
		language = "plaintext"
	}
	t.Append(parent, t.Add(&doctree.Node{Kind: doctree.KindCode, Value: code, Language: language}))
}
