package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/bookish/internal/export"
	"github.com/dgallion1/bookish/internal/pipeline"
)

type buildRequest struct {
	Manifest json.RawMessage   `json:"manifest,omitempty"`
	Chapters map[string]string `json:"chapters,omitempty"`
	// SourceURL serves book.json and chapters/<id>.bd.
	SourceURL string `json:"source_url,omitempty"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Manifest) == 0 && req.SourceURL == "" {
		jsonError(w, "manifest or source_url is required", http.StatusBadRequest)
		return
	}
	if req.SourceURL != "" {
		u, err := url.Parse(req.SourceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			jsonError(w, "source_url must be an http or https url", http.StatusBadRequest)
			return
		}
	}

	job := pipeline.NewJob(req.Manifest, req.Chapters)
	job.SourceURL = req.SourceURL
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/books/%s/status", job.ID),
	})
}

// finishedJob looks up the job in the URL and checks that it produced a
// book. It writes the error response when it returns nil.
func (s *Server) finishedJob(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil
	}
	if !job.Done() {
		jsonError(w, "job still running", http.StatusConflict)
		return nil
	}
	if job.Book() == nil {
		jsonError(w, "job produced no book", http.StatusUnprocessableEntity)
		return nil
	}
	return job
}

func (s *Server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleBookIndex(w http.ResponseWriter, r *http.Request) {
	job := s.finishedJob(w, r)
	if job == nil {
		return
	}
	ix := job.Index()
	if word := r.URL.Query().Get("word"); word != "" {
		writeJSON(w, http.StatusOK, map[string]any{"word": word, "chapters": ix.Lookup(word)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"words": ix.Words(), "index": ix})
}

func (s *Server) handleBookHTML(w http.ResponseWriter, r *http.Request) {
	job := s.finishedJob(w, r)
	if job == nil {
		return
	}
	var buf bytes.Buffer
	if err := export.Book(&buf, job.Book()); err != nil {
		jsonError(w, "render: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleBookChapter(w http.ResponseWriter, r *http.Request) {
	job := s.finishedJob(w, r)
	if job == nil {
		return
	}
	b := job.Book()
	id := chi.URLParam(r, "chapterID")
	ch, ok := b.Chapter(id)
	if !ok {
		jsonError(w, "chapter not found", http.StatusNotFound)
		return
	}

	if r.URL.Query().Get("format") == "html" {
		opts := export.Options{Resolver: b, Title: ch.Spec.Title, ID: id}
		if n, ok := b.ChapterNumber(id); ok {
			opts.Number = n
		}
		var buf bytes.Buffer
		if err := export.Page(&buf, ch.Tree, opts); err != nil {
			jsonError(w, "render: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
		return
	}

	minutes, _ := b.ReadingTime(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"title":    ch.Spec.Title,
		"minutes":  minutes,
		"next":     b.NextChapterID(id),
		"previous": b.PreviousChapterID(id),
		"tree":     viewOf(ch.Tree),
	})
}
