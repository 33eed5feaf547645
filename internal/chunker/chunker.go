package chunker

import (
	"strings"

	"github.com/dgallion1/bookish/internal/doctree"
)

// Config controls chunking behavior.
type Config struct {
	MaxWords     int // Target section size in words.
	OverlapWords int // Overlap between consecutive pieces of a split section.
	MinWords     int // Minimum section size to emit.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxWords:     800,
		OverlapWords: 60,
		MinWords:     1,
	}
}

// ChunkTree splits a unit into header-delimited sections. Each section
// carries the breadcrumb of the headers above it; the text before the first
// header forms a preamble with an empty breadcrumb. Sections longer than
// MaxWords are split at paragraph and then sentence boundaries.
func ChunkTree(tree *doctree.Tree, cfg Config) []doctree.Chunk {
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = 800
	}
	if cfg.OverlapWords <= 0 {
		cfg.OverlapWords = 60
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = 1
	}

	var chunks []doctree.Chunk
	var crumbs [3]string
	var header doctree.NodeID
	var body []string

	flush := func() {
		emit(&chunks, strings.Join(body, "\n\n"), breadcrumb(crumbs), header, cfg)
		body = nil
	}

	for _, id := range tree.Blocks() {
		n, _ := tree.Get(id)
		if n.Kind != doctree.KindHeader {
			if text := strings.TrimSpace(tree.TextOf(id)); text != "" {
				body = append(body, text)
			}
			continue
		}
		flush()
		level := n.Level
		if level < 1 {
			level = 1
		}
		if level > len(crumbs) {
			level = len(crumbs)
		}
		crumbs[level-1] = strings.TrimSpace(tree.TextOf(id))
		for i := level; i < len(crumbs); i++ {
			crumbs[i] = ""
		}
		header = id
	}
	flush()

	return chunks
}

// emit appends the section, split if it is too long.
func emit(chunks *[]doctree.Chunk, text string, bc []string, header doctree.NodeID, cfg Config) {
	if text == "" {
		return
	}
	parts := []string{text}
	if doctree.Words(text) > cfg.MaxWords {
		parts = splitText(text, cfg.MaxWords, cfg.OverlapWords)
	}
	for _, part := range parts {
		words := doctree.Words(part)
		if words < cfg.MinWords {
			continue
		}
		*chunks = append(*chunks, doctree.Chunk{
			Text:       part,
			Index:      len(*chunks),
			Breadcrumb: copyBreadcrumb(bc),
			Header:     header,
			Words:      words,
		})
	}
}

func breadcrumb(crumbs [3]string) []string {
	var bc []string
	for _, c := range crumbs {
		if c != "" {
			bc = append(bc, c)
		}
	}
	return bc
}

// splitText breaks text into pieces of approximately targetWords, with overlap.
func splitText(text string, targetWords, overlapWords int) []string {
	// Split by paragraphs first.
	paragraphs := splitByParagraphs(text)

	var result []string
	var current strings.Builder
	currentWords := 0

	for _, para := range paragraphs {
		paraWords := doctree.Words(para)

		// If a single paragraph exceeds the target, split it further.
		if paraWords > targetWords {
			// Flush current buffer.
			if currentWords > 0 {
				result = append(result, current.String())
				current.Reset()
				currentWords = 0
			}
			// Split the large paragraph by sentences.
			subParts := splitBySentences(para, targetWords, overlapWords)
			result = append(result, subParts...)
			continue
		}

		// Would adding this paragraph exceed the target?
		if currentWords+paraWords > targetWords && currentWords > 0 {
			result = append(result, current.String())

			// Start next chunk with overlap from end of current.
			overlap := getOverlapText(current.String(), overlapWords)
			current.Reset()
			currentWords = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentWords = doctree.Words(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentWords += paraWords
	}

	if currentWords > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitByParagraphs splits on double-newlines.
func splitByParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitBySentences breaks a large paragraph into sentence-based chunks.
func splitBySentences(text string, targetWords, overlapWords int) []string {
	sentences := splitSentences(text)

	var result []string
	var current strings.Builder
	currentWords := 0

	for _, sent := range sentences {
		sentWords := doctree.Words(sent)

		if currentWords+sentWords > targetWords && currentWords > 0 {
			result = append(result, current.String())
			overlap := getOverlapText(current.String(), overlapWords)
			current.Reset()
			currentWords = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentWords = doctree.Words(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentWords += sentWords
	}

	if currentWords > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitSentences does basic sentence splitting.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}

	return sentences
}

// getOverlapText returns the last n words of text, or "" if text is not
// longer than that.
func getOverlapText(text string, n int) string {
	words := strings.Fields(text)
	if n <= 0 || len(words) <= n {
		return ""
	}
	return strings.Join(words[len(words)-n:], " ")
}

func copyBreadcrumb(bc []string) []string {
	if len(bc) == 0 {
		return nil
	}
	out := make([]string, len(bc))
	copy(out, bc)
	return out
}
