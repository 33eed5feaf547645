package pipeline

import (
	"testing"
	"time"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	h1 := ContentHashHex([]byte("aaa"))
	h2 := ContentHashHex([]byte("bbb"))
	if h1 == h2 {
		t.Error("expected different hashes for different inputs")
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	// BLAKE3 of empty input is well-known.
	want := "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
	if h := ContentHashHex([]byte{}); h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob([]byte(`{}`), map[string]string{"a": "text"})
	if job.ID == "" {
		t.Fatal("expected job ID")
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	other := NewJob(nil, nil)
	if other.ID == job.ID {
		t.Error("expected unique job IDs")
	}
	manifest, chapters := job.Input()
	if string(manifest) != `{}` || chapters["a"] != "text" {
		t.Errorf("unexpected input: %q %v", manifest, chapters)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusFetching, "fetching chapters"},
		{StatusParsing, "parsing chapters"},
		{StatusIndexing, "building index"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
	if !job.Done() {
		t.Error("expected completed job to be done")
	}
}

func TestJob_Done(t *testing.T) {
	job := &Job{ID: "done-test", Status: StatusParsing}
	if job.Done() {
		t.Error("expected parsing job not to be done")
	}
	for _, s := range []JobStatus{StatusFailed, StatusPartial, StatusDupSkipped} {
		job.SetStatus(s, "x")
		if !job.Done() {
			t.Errorf("expected %q to be final", s)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("chapter 3 failed")
	job.AddError("chapter 7 failed")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "chapter 3 failed" {
		t.Errorf("expected first error %q, got %q", "chapter 3 failed", snap.Progress.Errors[0])
	}
}

func TestJob_IncrChaptersParsed(t *testing.T) {
	job := &Job{ID: "incr-test", UpdatedAt: time.Now()}
	job.SetTotalChapters(4)
	job.IncrChaptersParsed(100, 0)
	job.IncrChaptersParsed(50, 2)
	job.IncrChaptersParsed(10, 1)

	snap := job.Snapshot()
	if snap.Progress.TotalChapters != 4 {
		t.Errorf("expected 4 total chapters, got %d", snap.Progress.TotalChapters)
	}
	if snap.Progress.ChaptersParsed != 3 {
		t.Errorf("expected 3 chapters parsed, got %d", snap.Progress.ChaptersParsed)
	}
	if snap.Progress.Words != 160 {
		t.Errorf("expected 160 words, got %d", snap.Progress.Words)
	}
	if snap.Progress.MarkupErrors != 3 {
		t.Errorf("expected 3 markup errors, got %d", snap.Progress.MarkupErrors)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 job, got %d", store.Len())
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_FindByHash(t *testing.T) {
	store := NewJobStore(time.Hour)
	running := &Job{ID: "running", Status: StatusParsing, ContentHash: "h1"}
	done := &Job{ID: "done", Status: StatusCompleted, ContentHash: "h1"}
	other := &Job{ID: "other", Status: StatusCompleted, ContentHash: "h2"}
	store.Put(running)
	store.Put(done)
	store.Put(other)

	if got := store.FindByHash("h1", "new"); got != done {
		t.Errorf("expected finished job with matching hash, got %v", got)
	}
	if got := store.FindByHash("h1", "done"); got != nil {
		t.Errorf("expected the excepted job to be skipped, got %s", got.ID)
	}
	if got := store.FindByHash("h3", ""); got != nil {
		t.Errorf("expected no match, got %s", got.ID)
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
