// Package editor holds editing sessions: parsed chapters that clients
// change through carets addressed by node ID and rune index.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/dgallion1/bookish/internal/parser"
	"github.com/dgallion1/bookish/internal/stats"
)

var (
	// ErrSessionNotFound indicates an unknown or expired session ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownOp indicates an operation kind Apply does not support.
	ErrUnknownOp = errors.New("unknown operation")
)

// Operation kinds accepted by Apply.
const (
	OpInsert = doctree.OpInsert
	OpDelete = doctree.OpDelete
	OpSplit  = doctree.OpSplit
	OpFormat = doctree.OpFormat
	OpLevel  = doctree.OpLevel
)

// Op is one edit. Start and End select the range; End defaults to Start.
type Op struct {
	Kind      string         `json:"op"`
	Start     doctree.Caret  `json:"start"`
	End       *doctree.Caret `json:"end,omitempty"`
	Text      string         `json:"text,omitempty"`
	Backward  bool           `json:"backward,omitempty"`
	Delimiter string         `json:"delimiter,omitempty"`
	Node      doctree.NodeID `json:"node,omitempty"`
	Level     int            `json:"level,omitempty"`
}

func (op Op) selection() doctree.CaretRange {
	r := doctree.At(op.Start)
	if op.End != nil {
		r.End = *op.End
	}
	return r
}

// Result reports where the caret landed after an edit.
type Result struct {
	Caret     doctree.Caret       `json:"caret"`
	Selection *doctree.CaretRange `json:"selection,omitempty"`
	Version   int                 `json:"version"`
}

// Session is one editable chapter. Apply calls are serialized so each
// session has a single writer.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time

	mu        sync.Mutex
	tree      *doctree.Tree
	original  *doctree.Tree
	observers []doctree.Observer
	version   int
	touched   time.Time
	mutation  *stats.Latency
}

// Tree returns the session's live tree. It must not be read while another
// goroutine may call Apply or Revert; use View for that.
func (s *Session) Tree() *doctree.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// View calls fn with the tree and the edit version while no edit can run.
func (s *Session) View(fn func(t *doctree.Tree, version int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tree, s.version)
}

// Version counts successful edits since creation or the last revert.
func (s *Session) Version() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Apply performs op on the session's tree.
func (s *Session) Apply(op Op) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	var (
		res Result
		err error
	)
	r := op.selection()
	switch op.Kind {
	case OpInsert:
		res.Caret, err = s.tree.Insert(op.Text, r)
	case OpDelete:
		res.Caret, err = s.tree.DeleteSelection(r, op.Backward)
	case OpSplit:
		res.Caret, err = s.tree.SplitSelection(r)
	case OpFormat:
		var sel doctree.CaretRange
		sel, err = s.tree.FormatSelection(r, op.Delimiter)
		res.Caret = sel.End
		res.Selection = &sel
	case OpLevel:
		res.Caret = op.Start
		err = s.tree.SetParagraphLevel(op.Node, op.Level)
	default:
		return res, fmt.Errorf("%q: %w", op.Kind, ErrUnknownOp)
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", op.Kind, err)
	}
	if s.mutation != nil {
		s.mutation.Since(start)
	}
	s.version++
	s.touched = time.Now()
	res.Version = s.version
	return res, nil
}

// Revert restores the tree as it was when the session was created. The
// observers then see the restored tree as a freshly parsed unit.
func (s *Session) Revert() {
	s.mu.Lock()
	tree := s.original.Clone()
	for _, o := range s.observers {
		tree.Observe(o)
	}
	s.tree = tree
	s.version = 0
	s.touched = time.Now()
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o.UnitParsed(tree)
	}
}

// LogObserver logs tree events at debug level.
type LogObserver struct {
	Log *slog.Logger
}

func (o LogObserver) UnitParsed(t *doctree.Tree) {
	o.Log.Debug("unit parsed", "unit", t.Title, "nodes", t.Len(), "errors", len(t.Errors()))
}

func (o LogObserver) TreeMutated(t *doctree.Tree, op string) {
	o.Log.Debug("tree mutated", "unit", t.Title, "op", op)
}

// Manager is a thread-safe session registry with TTL eviction.
type Manager struct {
	// Symbols are substituted into every session's markup.
	Symbols map[string]string
	// Observers are attached to every session tree.
	Observers []doctree.Observer

	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	log      *slog.Logger
	stats    *stats.Stats
}

func NewManager(ttl time.Duration, st *stats.Stats, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		log:      log,
		stats:    st,
	}
}

// Create parses markup into a new session.
func (m *Manager) Create(title, markup string) *Session {
	start := time.Now()
	observers := append([]doctree.Observer{LogObserver{Log: m.log}}, m.Observers...)
	tree := parser.ParseChapter(markup, parser.Options{
		Title:     title,
		Symbols:   m.Symbols,
		Observers: observers,
	})
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		tree:      tree,
		original:  tree.Clone(),
		observers: observers,
		touched:   now,
	}
	if m.stats != nil {
		m.stats.Parse.Since(start)
		s.mutation = m.stats.Mutation
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.log.Info("session created", "session_id", s.ID, "title", title)
	return s
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// Delete ends a session. It reports whether the session existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Cleanup removes sessions idle for longer than the TTL.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, s := range m.sessions {
		s.mu.Lock()
		expired := now.Sub(s.touched) > m.ttl
		s.mu.Unlock()
		if expired {
			delete(m.sessions, id)
			m.log.Debug("session expired", "session_id", id)
		}
	}
}

// Run evicts idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}
