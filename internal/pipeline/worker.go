package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/bookish/internal/book"
	"github.com/dgallion1/bookish/internal/chunker"
	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/dgallion1/bookish/internal/stats"
)

// WorkerConfig tunes a Worker.
type WorkerConfig struct {
	MaxConcurrentParse int
	WordsPerMinute     int
	MinWordLength      int
	Chunk              chunker.Config
	// Client fetches chapters for jobs with a SourceURL.
	Client *http.Client
}

// Worker processes a single book build job.
type Worker struct {
	jobs  *JobStore
	stats *stats.Stats
	log   *slog.Logger
	cfg   WorkerConfig
}

func NewWorker(jobs *JobStore, st *stats.Stats, log *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.MaxConcurrentParse <= 0 {
		cfg.MaxConcurrentParse = 4
	}
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = book.DefaultWordsPerMinute
	}
	if st == nil {
		st = stats.New(time.Hour)
	}
	return &Worker{jobs: jobs, stats: st, log: log, cfg: cfg}
}

// Process runs the full build pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)
	start := time.Now()

	// Phase 1: Fetch
	job.SetStatus(StatusFetching, "fetching")
	m, err := w.manifest(ctx, job)
	if err != nil {
		log.Error("manifest failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "fetching")
		return
	}
	job.SetTotalChapters(len(m.Chapters))

	texts, fetchErrs := w.fetchChapters(ctx, job, m)
	hadErrors := len(fetchErrs) > 0
	for _, err := range fetchErrs {
		log.Error("fetch failed", "error", err)
		job.AddError(err.Error())
	}
	if ctx.Err() != nil {
		job.SetStatus(StatusFailed, "fetching")
		return
	}

	hash, err := contentHash(m, texts)
	if err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "fetching")
		return
	}
	job.SetIdentity(m.Title, hash)

	// Phase 1.5: Dedup check
	if w.jobs != nil {
		if dup := w.jobs.FindByHash(hash, job.ID); dup != nil {
			log.Info("duplicate book, skipping", "duplicate_of", dup.ID)
			job.MarkDuplicate(dup)
			return
		}
	}

	// Phase 2: Parse
	job.SetStatus(StatusParsing, "parsing")
	b := book.New(m, book.MapSource(texts), log)
	b.WordsPerMinute = w.cfg.WordsPerMinute
	b.MaxConcurrent = w.cfg.MaxConcurrentParse
	b.Observers = []doctree.Observer{doctree.ObserverFuncs{
		Parsed: func(t *doctree.Tree) {
			job.IncrChaptersParsed(t.WordCount(), len(t.Errors()))
		},
	}}
	parseStart := time.Now()
	if err := b.Load(ctx); err != nil {
		log.Error("load failed", "error", err)
		job.AddError(fmt.Sprintf("load: %s", err))
		hadErrors = true
	}
	w.stats.Parse.Since(parseStart)
	for _, p := range b.SymbolErrors() {
		job.AddError("symbols: " + p)
	}

	if b.Loaded() == 0 && hadErrors {
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	// Phase 3: Index
	job.SetStatus(StatusIndexing, "indexing")
	summary := w.summarize(b)
	ix := b.Index(w.cfg.MinWordLength)
	job.SetResult(b, ix, summary)
	w.stats.Build.Since(start)
	log.Info("book built", "chapters", b.Loaded(), "words", len(ix), "errors", b.ErrorCount())

	if hadErrors {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

func (w *Worker) manifest(ctx context.Context, job *Job) (*book.Manifest, error) {
	data, _ := job.Input()
	if len(data) == 0 && job.SourceURL != "" {
		return book.FetchManifest(ctx, w.cfg.Client, job.SourceURL)
	}
	return book.ParseManifest(data)
}

func (w *Worker) source(job *Job) book.Source {
	if job.SourceURL != "" {
		return book.HTTPSource{BaseURL: job.SourceURL, Client: w.cfg.Client}
	}
	_, chapters := job.Input()
	return book.MapSource(chapters)
}

// fetchChapters reads every chapter text with bounded concurrency. Missing
// chapters are left out and are not errors.
func (w *Worker) fetchChapters(ctx context.Context, job *Job, m *book.Manifest) (map[string]string, []error) {
	src := w.source(job)
	texts := make(map[string]string, len(m.Chapters))
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, w.cfg.MaxConcurrentParse)
	for _, spec := range m.Chapters {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return texts, append(errs, ctx.Err())
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			text, err := src.ChapterText(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, fs.ErrNotExist):
			case err != nil:
				errs = append(errs, fmt.Errorf("chapter %s: %w", id, err))
			default:
				texts[id] = text
			}
		}(spec.ID)
	}
	wg.Wait()
	return texts, errs
}

func (w *Worker) summarize(b *book.Book) []ChapterSummary {
	out := make([]ChapterSummary, 0, len(b.Chapters))
	for _, spec := range b.Chapters {
		s := ChapterSummary{ID: spec.ID, Title: spec.Title}
		if n, ok := b.ChapterNumber(spec.ID); ok {
			s.Number = n
		}
		minutes, loaded := b.ReadingTime(spec.ID)
		s.Loaded = loaded
		s.Minutes = minutes
		s.Estimate = book.ChapterEstimate(minutes, loaded)
		if ch, ok := b.Chapter(spec.ID); ok {
			s.Words = ch.Tree.WordCount()
			s.Sections = len(chunker.ChunkTree(ch.Tree, w.cfg.Chunk))
			s.Errors = len(ch.Tree.Errors())
			s.ErrorLabel = ch.Tree.ErrorSummary()
			s.NextID = b.NextChapterID(spec.ID)
			s.PreviousID = b.PreviousChapterID(spec.ID)
		}
		out = append(out, s)
	}
	return out
}

// contentHash digests the manifest and chapter texts in chapter ID order.
func contentHash(m *book.Manifest, texts map[string]string) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("hash manifest: %w", err)
	}
	ids := make([]string, 0, len(texts))
	for id := range texts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		data = append(data, 0)
		data = append(data, id...)
		data = append(data, 0)
		data = append(data, texts[id]...)
	}
	return ContentHashHex(data), nil
}
