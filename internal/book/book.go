// Package book loads a book manifest and its chapters, and answers the
// questions a reader or exporter asks of the whole book: chapter numbers,
// reading times, references, glossary entries and the word index.
package book

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/dgallion1/bookish/internal/index"
	"github.com/dgallion1/bookish/internal/parser"
)

// ChapterExt is the file extension of chapter markup.
const ChapterExt = ".bd"

// Source supplies the complete markup of a chapter. Missing chapters are
// reported with an error wrapping fs.ErrNotExist.
type Source interface {
	ChapterText(ctx context.Context, id string) (string, error)
}

// DirSource reads chapters from <Dir>/chapters/<id>.bd.
type DirSource struct {
	Dir string
}

func (s DirSource) ChapterText(_ context.Context, id string) (string, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Path is the file a chapter is read from.
func (s DirSource) Path(id string) string {
	return filepath.Join(s.Dir, "chapters", id+ChapterExt)
}

// MapSource serves chapters from memory.
type MapSource map[string]string

func (s MapSource) ChapterText(_ context.Context, id string) (string, error) {
	text, ok := s[id]
	if !ok {
		return "", fmt.Errorf("chapter %q: %w", id, fs.ErrNotExist)
	}
	return text, nil
}

// Chapter is a loaded chapter. Tree.Title is the chapter ID.
type Chapter struct {
	Spec ChapterSpec
	Tree *doctree.Tree
}

// Book is a manifest plus whichever chapters have loaded. Chapters that are
// missing from the source are "forthcoming" and simply absent.
type Book struct {
	*Manifest

	// WordsPerMinute drives reading time estimates.
	WordsPerMinute int
	// MaxConcurrent bounds parallel chapter parses during Load.
	MaxConcurrent int
	// Observers are attached to every chapter tree as it is parsed.
	Observers []doctree.Observer

	source Source
	log    *slog.Logger

	mu           sync.RWMutex
	chapters     map[string]*Chapter
	symbols      map[string]string
	symbolErrors []string
}

// New returns an unloaded book.
func New(m *Manifest, src Source, log *slog.Logger) *Book {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Book{
		Manifest:       m,
		WordsPerMinute: DefaultWordsPerMinute,
		MaxConcurrent:  4,
		source:         src,
		log:            log,
		chapters:       make(map[string]*Chapter),
	}
}

// Open reads the manifest in dir and returns a book that loads chapters
// from dir/chapters.
func Open(dir string, log *slog.Logger) (*Book, error) {
	m, err := LoadManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	return New(m, DirSource{Dir: dir}, log), nil
}

// Load fetches and parses every chapter with bounded parallelism. Missing
// chapters are skipped. Other failures are collected and returned together;
// chapters that did load stay loaded.
func (b *Book) Load(ctx context.Context) error {
	symbols, problems := parser.ParseSymbols(b.Symbols)
	for _, p := range problems {
		b.log.Warn("invalid book symbol", "problem", p)
	}
	b.mu.Lock()
	b.symbols = symbols
	b.symbolErrors = problems
	b.mu.Unlock()

	limit := b.MaxConcurrent
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var errs []error

	for _, spec := range b.Chapters {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}
		wg.Add(1)
		go func(spec ChapterSpec) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := b.loadChapter(ctx, spec); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(spec)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info("book loaded", "title", b.Title, "chapters", len(b.Chapters), "loaded", b.Loaded())
	return errors.Join(errs...)
}

func (b *Book) loadChapter(ctx context.Context, spec ChapterSpec) error {
	text, err := b.source.ChapterText(ctx, spec.ID)
	if errors.Is(err, fs.ErrNotExist) {
		b.log.Info("chapter forthcoming", "chapter", spec.ID)
		return nil
	}
	if err != nil {
		b.log.Error("chapter load failed", "chapter", spec.ID, "error", err)
		return fmt.Errorf("chapter %s: %w", spec.ID, err)
	}
	b.SetChapter(spec.ID, text)
	return nil
}

// SetChapter parses text as the chapter with the given ID, replacing any
// previous version. It returns nil if the manifest has no such chapter.
func (b *Book) SetChapter(id, text string) *Chapter {
	spec, ok := b.spec(id)
	if !ok {
		return nil
	}
	b.mu.RLock()
	symbols := b.symbols
	b.mu.RUnlock()

	tree := parser.ParseChapter(text, parser.Options{
		Title:     id,
		Symbols:   symbols,
		Observers: b.Observers,
	})
	if n := len(tree.Errors()); n > 0 {
		b.log.Debug("chapter has markup errors", "chapter", id, "errors", n)
	}
	ch := &Chapter{Spec: spec, Tree: tree}
	b.mu.Lock()
	b.chapters[id] = ch
	b.mu.Unlock()
	return ch
}

func (b *Book) spec(id string) (ChapterSpec, bool) {
	for _, c := range b.Chapters {
		if c.ID == id {
			return c, true
		}
	}
	return ChapterSpec{}, false
}

// Chapter returns a loaded chapter.
func (b *Book) Chapter(id string) (*Chapter, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.chapters[id]
	return ch, ok
}

// IsLoaded reports whether a chapter's text was found and parsed.
func (b *Book) IsLoaded(id string) bool {
	_, ok := b.Chapter(id)
	return ok
}

// Loaded returns how many chapters are loaded.
func (b *Book) Loaded() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chapters)
}

// LoadedChapters returns the loaded chapters in manifest order.
func (b *Book) LoadedChapters() []*Chapter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*Chapter
	for _, spec := range b.Chapters {
		if ch, ok := b.chapters[spec.ID]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// SymbolErrors lists problems with the manifest's symbols found by Load.
func (b *Book) SymbolErrors() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.symbolErrors...)
}

// ChapterNumber returns the chapter's number, counting only numbered
// chapters. It reports false for unnumbered or unknown chapters.
func (b *Book) ChapterNumber(id string) (int, bool) {
	n := 1
	for _, c := range b.Chapters {
		if c.ID == id {
			return n, c.IsNumbered()
		}
		if c.IsNumbered() {
			n++
		}
	}
	return 0, false
}

// ReadingTime returns the chapter's estimated minutes, or false if it has
// not loaded.
func (b *Book) ReadingTime(id string) (int, bool) {
	ch, ok := b.Chapter(id)
	if !ok {
		return 0, false
	}
	return ReadingTime(ch.Tree.WordCount(), b.WordsPerMinute), true
}

// BookReadingTime sums the reading time of the loaded chapters.
func (b *Book) BookReadingTime() int {
	total := 0
	for _, ch := range b.LoadedChapters() {
		total += ReadingTime(ch.Tree.WordCount(), b.WordsPerMinute)
	}
	return total
}

// NextChapterID returns the first loaded chapter after id, or "".
func (b *Book) NextChapterID(id string) string {
	after := false
	for _, c := range b.Chapters {
		if c.ID == id {
			after = true
		} else if after && b.IsLoaded(c.ID) {
			return c.ID
		}
	}
	return ""
}

// PreviousChapterID returns the last loaded chapter before id, or "".
func (b *Book) PreviousChapterID(id string) string {
	before := false
	for i := len(b.Chapters) - 1; i >= 0; i-- {
		c := b.Chapters[i]
		if c.ID == id {
			before = true
		} else if before && b.IsLoaded(c.ID) {
			return c.ID
		}
	}
	return ""
}

// Index builds the word index over the loaded chapters, keyed by chapter ID.
func (b *Book) Index(minLength int) index.Index {
	ib := index.NewBuilder(minLength)
	for _, ch := range b.LoadedChapters() {
		ib.Set(ch.Spec.ID, ch.Tree.Text())
	}
	return ib.Build()
}

// ErrorCount returns the number of markup errors across loaded chapters.
func (b *Book) ErrorCount() int {
	total := 0
	for _, ch := range b.LoadedChapters() {
		total += len(ch.Tree.Errors())
	}
	return total
}
