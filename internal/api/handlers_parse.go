package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dgallion1/bookish/internal/book"
	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/dgallion1/bookish/internal/export"
	"github.com/dgallion1/bookish/internal/index"
	"github.com/dgallion1/bookish/internal/parser"
)

type parseRequest struct {
	Title   string            `json:"title"`
	Markup  string            `json:"markup"`
	Symbols map[string]string `json:"symbols,omitempty"`
}

// treeView is the JSON summary of a parsed unit.
type treeView struct {
	Title        string   `json:"title"`
	Markup       string   `json:"markup"`
	Text         string   `json:"text"`
	Words        int      `json:"words"`
	Blocks       int      `json:"blocks"`
	Headers      []string `json:"headers"`
	Citations    []string `json:"citations"`
	Footnotes    int      `json:"footnotes"`
	Errors       []string `json:"errors"`
	ErrorSummary string   `json:"error_summary,omitempty"`
}

func viewOf(tree *doctree.Tree) treeView {
	headers := make([]string, 0)
	for _, id := range tree.Headers() {
		headers = append(headers, tree.TextOf(id))
	}
	errs := tree.ErrorMessages()
	if errs == nil {
		errs = []string{}
	}
	citations := tree.Citations()
	if citations == nil {
		citations = []string{}
	}
	return treeView{
		Title:        tree.Title,
		Markup:       tree.Markup(),
		Text:         tree.Text(),
		Words:        tree.WordCount(),
		Blocks:       len(tree.Blocks()),
		Headers:      headers,
		Citations:    citations,
		Footnotes:    len(tree.Footnotes()),
		Errors:       errs,
		ErrorSummary: tree.ErrorSummary(),
	}
}

// parseMarkup parses a request body with the request symbols layered over
// the configured global symbols.
func (s *Server) parseMarkup(req parseRequest, observers ...doctree.Observer) (*doctree.Tree, []string) {
	raw := make(map[string]string, len(s.cfg.Symbols)+len(req.Symbols))
	for k, v := range s.cfg.Symbols {
		raw[k] = v
	}
	for k, v := range req.Symbols {
		raw[k] = v
	}
	symbols, problems := parser.ParseSymbols(raw)

	start := time.Now()
	tree := parser.ParseChapter(req.Markup, parser.Options{
		Title:     req.Title,
		Symbols:   symbols,
		Observers: observers,
	})
	s.stats.Parse.Since(start)
	return tree, problems
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	tree, problems := s.parseMarkup(req)
	if problems == nil {
		problems = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tree":          viewOf(tree),
		"symbol_errors": problems,
	})
}

type exportRequest struct {
	parseRequest
	Number   int             `json:"number,omitempty"`
	Manifest json.RawMessage `json:"manifest,omitempty"`
	Fragment bool            `json:"fragment,omitempty"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	opts := export.Options{Title: req.Title, Number: req.Number}
	if len(req.Manifest) > 0 {
		m, err := book.ParseManifest(req.Manifest)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts.Resolver = m
	}
	tree, _ := s.parseMarkup(req.parseRequest)

	var buf bytes.Buffer
	render := export.Page
	if req.Fragment {
		render = export.Chapter
	}
	if err := render(&buf, tree, opts); err != nil {
		jsonError(w, "render: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

type indexRequest struct {
	// Units maps a unit name to its markup.
	Units     map[string]string `json:"units"`
	MinLength int               `json:"min_length,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Units) == 0 {
		jsonError(w, "at least one unit is required", http.StatusBadRequest)
		return
	}
	minLength := req.MinLength
	if minLength <= 0 {
		minLength = s.cfg.MinWordLength
	}
	b := index.NewBuilder(minLength)
	for name, markup := range req.Units {
		s.parseMarkup(parseRequest{Title: name, Markup: markup}, b.Observer())
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": b.Build()})
}
