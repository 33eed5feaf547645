package chunker

import (
	"strings"
	"testing"

	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/dgallion1/bookish/internal/parser"
)

func chapter(src string) *doctree.Tree {
	return parser.ParseChapter(src, parser.Options{Title: "test"})
}

func checkBreadcrumb(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected breadcrumb %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("breadcrumb[%d]: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestChunkTree_SmallTreeFitsOneChunk(t *testing.T) {
	tree := chapter("# Section\n\n" + strings.Repeat("word ", 200))

	cfg := Config{
		MaxWords:     800,
		OverlapWords: 60,
		MinWords:     50,
	}
	chunks := ChunkTree(tree, cfg)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Index != 0 {
		t.Errorf("expected index 0, got %d", chunks[0].Index)
	}
	if chunks[0].Words != 200 {
		t.Errorf("expected 200 words, got %d", chunks[0].Words)
	}
	if chunks[0].Header != tree.Headers()[0] {
		t.Errorf("expected section to point at its header")
	}
	checkBreadcrumb(t, chunks[0].Breadcrumb, []string{"Section"})
}

func TestChunkTree_LargeSectionRequiresSplitting(t *testing.T) {
	// 300 sentences of 9 words each.
	largeText := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 300)
	tree := chapter("# Big Section\n\n" + largeText)

	cfg := Config{
		MaxWords:     500,
		OverlapWords: 50,
		MinWords:     10,
	}
	chunks := ChunkTree(tree, cfg)

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks for large text, got %d", len(chunks))
	}

	// Verify sequential indexing.
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Index)
		}
		checkBreadcrumb(t, c.Breadcrumb, []string{"Big Section"})
	}

	// Sentence boundaries allow slight overflows, never more than one sentence.
	for i, c := range chunks {
		if c.Words > cfg.MaxWords+9 {
			t.Errorf("chunk %d: %d words exceeds target %d", i, c.Words, cfg.MaxWords)
		}
	}
}

func TestChunkTree_ParagraphOverlap(t *testing.T) {
	para := strings.TrimSpace(strings.Repeat("lorem ", 30))
	tree := chapter(para + "\n\n" + para + "\n\n" + para)

	chunks := ChunkTree(tree, Config{MaxWords: 50, OverlapWords: 5, MinWords: 1})

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantWords := []int{30, 35, 35}
	for i, w := range wantWords {
		if chunks[i].Words != w {
			t.Errorf("chunk %d: expected %d words, got %d", i, w, chunks[i].Words)
		}
	}
}

func TestChunkTree_BreadcrumbPropagation(t *testing.T) {
	tree := chapter("# Chapter 1\n\n## Section 1.1\n\n" + strings.Repeat("content ", 200))

	chunks := ChunkTree(tree, DefaultConfig())

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	checkBreadcrumb(t, chunks[0].Breadcrumb, []string{"Chapter 1", "Section 1.1"})
}

func TestChunkTree_BreadcrumbIsolation(t *testing.T) {
	// Breadcrumbs from sibling sections don't leak into each other.
	tree := chapter("## A\n\n" + strings.Repeat("alpha ", 200) + "\n\n## B\n\n" + strings.Repeat("beta ", 200))

	chunks := ChunkTree(tree, DefaultConfig())

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	checkBreadcrumb(t, chunks[0].Breadcrumb, []string{"A"})
	checkBreadcrumb(t, chunks[1].Breadcrumb, []string{"B"})
}

func TestChunkTree_HigherHeaderResetsDeeper(t *testing.T) {
	tree := chapter("# One\n\n## Sub\n\nfirst\n\n# Two\n\nsecond\n\n### Deep\n\nthird")

	chunks := ChunkTree(tree, DefaultConfig())

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	checkBreadcrumb(t, chunks[0].Breadcrumb, []string{"One", "Sub"})
	checkBreadcrumb(t, chunks[1].Breadcrumb, []string{"Two"})
	checkBreadcrumb(t, chunks[2].Breadcrumb, []string{"Two", "Deep"})
	if chunks[2].Text != "third" {
		t.Errorf("expected %q, got %q", "third", chunks[2].Text)
	}
}

func TestChunkTree_Preamble(t *testing.T) {
	tree := chapter("Intro text.\n\n# Heading\n\nBody.")

	chunks := ChunkTree(tree, DefaultConfig())

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Header != 0 || chunks[0].Breadcrumb != nil {
		t.Errorf("expected preamble without header, got %d %v", chunks[0].Header, chunks[0].Breadcrumb)
	}
	if chunks[0].Text != "Intro text." {
		t.Errorf("expected %q, got %q", "Intro text.", chunks[0].Text)
	}
}

func TestChunkTree_MinWordsFiltering(t *testing.T) {
	tree := chapter("# Short\n\nHi")

	chunks := ChunkTree(tree, Config{MaxWords: 1500, OverlapWords: 200, MinWords: 100})

	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks (below MinWords), got %d", len(chunks))
	}
}

func TestChunkTree_EmptyTree(t *testing.T) {
	chunks := ChunkTree(chapter(""), DefaultConfig())
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks, got %d", len(chunks))
	}
}

func TestChunkTree_DefaultConfigFallback(t *testing.T) {
	// Zero-value config should be replaced with defaults.
	tree := chapter(strings.Repeat("word ", 200))
	chunks := ChunkTree(tree, Config{})
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk with zero config (defaults applied), got %d", len(chunks))
	}
}
