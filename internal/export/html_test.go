package export

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/bookish/internal/book"
	"github.com/dgallion1/bookish/internal/parser"
)

const manifestJSON = `{
	"title": "Typesetting: A Field Guide",
	"authors": [{"id": "ada", "name": "Ada"}, {"id": "bob", "name": "Bob"}],
	"chapters": [
		{"id": "front", "title": "Front Matter", "numbered": false},
		{"id": "lines", "title": "Lines"}
	],
	"sources": {"cacm": "Communications of the ACM"},
	"references": {
		"knuth": ["Knuth, D., Plass, M.", "1981", "Breaking paragraphs into lines", "#cacm", "https://example.com/kp"],
		"plain": "A _plain_ reference."
	},
	"glossary": {
		"rune": {"phrase": "rune", "definition": "A code point.", "synonyms": ["char"]}
	}
}`

const chapterSrc = "# Intro\n\n" +
	"See _this_ and *that* with `x`go.\n\n" +
	"Cite <plain,knuth> and ~runes~rune here{A note}.\n\n" +
	"* one\n* two\n\n" +
	"|photo.png|A photo|Caption|Credit|>\n\n" +
	"Water is H^v2^O and @missing."

func manifest(t *testing.T) *book.Manifest {
	t.Helper()
	m, err := book.ParseManifest([]byte(manifestJSON))
	require.NoError(t, err)
	return m
}

func renderChapter(t *testing.T, opts Options) string {
	t.Helper()
	tree := parser.ParseChapter(chapterSrc, parser.Options{Title: "lines"})
	var buf bytes.Buffer
	require.NoError(t, Chapter(&buf, tree, opts))
	return buf.String()
}

func TestChapter(t *testing.T) {
	out := renderChapter(t, Options{Resolver: manifest(t), Title: "Lines", Number: 1})

	for _, want := range []string{
		`<article class="chapter">`,
		`<div class="chapter-number">Chapter 1</div><h1>Lines</h1>`,
		`<p class="errors">1 error</p>`,
		`<h2 id="header-0">Intro</h2>`,
		`<p>See <em>this</em> and <strong>that</strong> with <code class="language-go">x</code>.</p>`,
		`>1</a>,<a href="#citation-plain" title="A _plain_ reference.">2</a></sup>`,
		`<dfn class="definition" title="rune: A code point. (char)">runes</dfn>`,
		`<sup class="footnote-symbol"><a href="#footnote-a">a</a></sup>`,
		`<ul><li>one</li><li>two</li></ul>`,
		`<figure class="embed position-right"><img src="images/photo.png" alt="A photo"/>`,
		`<span class="credit">Credit</span>`,
		`Water is H<sub>2</sub>O and <span class="error"`,
		`>@missing</span>`,
		`<ol class="footnotes" type="a"><li id="footnote-a">A note</li></ol>`,
		`<li id="citation-knuth"><span class="reference-text">Knuth, et al. (1981). <a href="https://example.com/kp">Breaking paragraphs into lines</a>. <em>Communications of the ACM</em></span></li>`,
		`<li id="citation-plain"><span class="reference-text">A <em>plain</em> reference.</span></li>`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestChapterWithoutResolver(t *testing.T) {
	out := renderChapter(t, Options{})

	assert.Contains(t, out, `<span class="error">Unknown reference knuth</span>`)
	assert.Contains(t, out, `<span class="error">Unknown glossary entry &#34;rune&#34;</span>`)
	assert.NotContains(t, out, `class="citations"><li`)
	assert.NotContains(t, out, "chapter-number")
}

func TestChapterIDPrefix(t *testing.T) {
	out := renderChapter(t, Options{Resolver: manifest(t), ID: "lines"})
	assert.Contains(t, out, `<article class="chapter" id="lines">`)
	assert.Contains(t, out, `id="lines-header-0"`)
	assert.Contains(t, out, `href="#lines-footnote-a"`)
}

func TestPage(t *testing.T) {
	tree := parser.ParseChapter("Hello & goodbye", parser.Options{Title: "hello"})
	var buf bytes.Buffer
	require.NoError(t, Page(&buf, tree, Options{}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"/><title>hello</title></head><body>"))
	assert.Contains(t, out, "<p>Hello &amp; goodbye</p>")
}

func TestBook(t *testing.T) {
	b := book.New(manifest(t), book.MapSource{
		"front": "Preface text.",
		"lines": chapterSrc,
	}, nil)
	require.NoError(t, b.Load(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, Book(&buf, b))
	out := buf.String()

	for _, want := range []string{
		"<title>Typesetting: A Field Guide</title>",
		`<header class="book"><h1>Typesetting</h1><p class="subtitle">A Field Guide</p><p class="authors">Ada, Bob</p>`,
		`<article class="chapter" id="front"><h1>Front Matter</h1>`,
		`<article class="chapter" id="lines"><div class="chapter-number">Chapter 1</div><h1>Lines</h1>`,
		`<section class="references"><h2>References</h2><p id="ref-knuth">`,
		`<em>Communications of the ACM</em>.</span></p>`,
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, `id="front"`), strings.Index(out, `id="lines"`))
}
