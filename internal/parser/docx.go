package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading styles become headers and bold or
// italic runs become formatted spans.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "bookish-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, int64(size))
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	tree := doctree.New(titleOf(filename))
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		segs := docxSegments(tree, para)
		if len(segs) == 0 {
			continue
		}
		if level := docxHeadingLevel(para); level > 0 {
			addBlock(tree, tree.Root(), doctree.KindHeader, min(3, level), segs...)
			continue
		}
		addBlock(tree, tree.Root(), doctree.KindParagraph, 0, segs...)
	}
	tree.Finish()
	return tree, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	switch style {
	case "title", "heading1":
		return 1
	case "heading2":
		return 2
	case "heading3", "heading4", "heading5", "heading6":
		return 3
	}
	return 0
}

// docxSegments converts a paragraph's runs into inline segments, wrapping
// bold runs in "*" and italic runs in "_".
func docxSegments(tree *doctree.Tree, para *docx.Paragraph) []doctree.NodeID {
	var segs []doctree.NodeID
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		var buf strings.Builder
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
		text := oneLine(buf.String())
		if text == "" {
			continue
		}
		seg := tree.NewText(text, -1)
		if props := run.RunProperties; props != nil {
			if props.Italic != nil {
				seg = wrapFormatted(tree, "_", seg)
			}
			if props.Bold != nil {
				seg = wrapFormatted(tree, "*", seg)
			}
		}
		segs = append(segs, seg)
	}
	return trimSegments(tree, segs)
}

func wrapFormatted(tree *doctree.Tree, delim string, seg doctree.NodeID) doctree.NodeID {
	f := tree.Add(&doctree.Node{Kind: doctree.KindFormatted, Delimiter: delim})
	tree.Append(f, seg)
	return f
}
