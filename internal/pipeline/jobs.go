package pipeline

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/dgallion1/bookish/internal/book"
	"github.com/dgallion1/bookish/internal/index"
)

// JobStatus represents the state of a book build job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusFetching   JobStatus = "fetching"
	StatusParsing    JobStatus = "parsing"
	StatusIndexing   JobStatus = "indexing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Job tracks the state of a single book build.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	Title string `json:"title"`
	// SourceURL, when set, is where chapters are fetched from instead of
	// the uploaded chapter texts.
	SourceURL string `json:"source_url,omitempty"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	manifest []byte
	chapters map[string]string
	book     *book.Book
	index    index.Index
	summary  []ChapterSummary
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChapters  int      `json:"total_chapters"`
	ChaptersParsed int      `json:"chapters_parsed"`
	MarkupErrors   int      `json:"markup_errors"`
	Words          int      `json:"words"`
	IndexedWords   int      `json:"indexed_words"`
	Errors         []string `json:"errors"`
}

// ChapterSummary describes one built chapter.
type ChapterSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Number     int    `json:"number,omitempty"`
	Loaded     bool   `json:"loaded"`
	Words      int    `json:"words"`
	Minutes    int    `json:"minutes"`
	Estimate   string `json:"estimate"`
	Sections   int    `json:"sections"`
	Errors     int    `json:"errors"`
	ErrorLabel string `json:"error_label,omitempty"`
	NextID     string `json:"next,omitempty"`
	PreviousID string `json:"previous,omitempty"`
}

// NewJob creates a queued build of manifest with the given chapter texts,
// keyed by chapter ID.
func NewJob(manifest []byte, chapters map[string]string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		manifest:  manifest,
		chapters:  chapters,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// FindByHash returns a finished job that built identical content.
func (s *JobStore) FindByHash(hash, exceptID string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if id == exceptID {
			continue
		}
		job.mu.Lock()
		match := job.ContentHash == hash && (job.Status == StatusCompleted || job.Status == StatusPartial)
		job.mu.Unlock()
		if match {
			return job
		}
	}
	return nil
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotalChapters records how many chapters the manifest lists.
func (j *Job) SetTotalChapters(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChapters = n
	j.UpdatedAt = time.Now()
}

// IncrChaptersParsed atomically counts a parsed chapter and its words and
// markup errors.
func (j *Job) IncrChaptersParsed(words, markupErrors int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChaptersParsed++
	j.Progress.Words += words
	j.Progress.MarkupErrors += markupErrors
	j.UpdatedAt = time.Now()
}

// SetResult stores the built book, its index and chapter summaries.
func (j *Job) SetResult(b *book.Book, ix index.Index, summary []ChapterSummary) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.book = b
	j.index = ix
	j.summary = summary
	j.Progress.IndexedWords = len(ix)
	j.UpdatedAt = time.Now()
}

// SetIdentity records the book title and content hash once known.
func (j *Job) SetIdentity(title, hash string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Title = title
	j.ContentHash = hash
	j.UpdatedAt = time.Now()
}

// MarkDuplicate finishes j with the results of an identical earlier build.
func (j *Job) MarkDuplicate(of *Job) {
	of.mu.Lock()
	b, ix, summary, progress := of.book, of.index, of.summary, of.Progress
	of.mu.Unlock()

	j.mu.Lock()
	defer j.mu.Unlock()
	j.DuplicateOf = of.ID
	j.book = b
	j.index = ix
	j.summary = summary
	j.Progress.ChaptersParsed = progress.ChaptersParsed
	j.Progress.Words = progress.Words
	j.Progress.MarkupErrors = progress.MarkupErrors
	j.Progress.IndexedWords = progress.IndexedWords
	j.Status = StatusDupSkipped
	j.Phase = "dedup"
	j.UpdatedAt = time.Now()
}

// Book returns the built book, or nil before the job finishes.
func (j *Job) Book() *book.Book {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.book
}

// Index returns the built word index.
func (j *Job) Index() index.Index {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.index
}

// Chapters returns the chapter summaries of a finished build.
func (j *Job) Chapters() []ChapterSummary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]ChapterSummary(nil), j.summary...)
}

// Input returns the manifest bytes and uploaded chapter texts.
func (j *Job) Input() ([]byte, map[string]string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.manifest, j.chapters
}

// Done reports whether the job reached a final state.
func (j *Job) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string           `json:"job_id"`
	Title       string           `json:"title"`
	SourceURL   string           `json:"source_url,omitempty"`
	Status      JobStatus        `json:"status"`
	Phase       string           `json:"phase"`
	ContentHash string           `json:"content_hash,omitempty"`
	DuplicateOf string           `json:"duplicate_of,omitempty"`
	Progress    Progress         `json:"progress"`
	Chapters    []ChapterSummary `json:"chapters,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:          j.ID,
		Title:       j.Title,
		SourceURL:   j.SourceURL,
		Status:      j.Status,
		Phase:       j.Phase,
		ContentHash: j.ContentHash,
		DuplicateOf: j.DuplicateOf,
		Progress:    p,
		Chapters:    append([]ChapterSummary(nil), j.summary...),
	}
}

// ContentHashHex computes the BLAKE3-256 digest of content as hex.
func ContentHashHex(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}
