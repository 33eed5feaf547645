package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/dgallion1/bookish/internal/editor"
)

type createSessionRequest struct {
	Title  string `json:"title"`
	Markup string `json:"markup"`
}

type sessionView struct {
	ID      string   `json:"session_id"`
	Version int      `json:"version"`
	Tree    treeView `json:"tree"`
}

func viewSession(s *editor.Session) sessionView {
	v := sessionView{ID: s.ID}
	s.View(func(t *doctree.Tree, version int) {
		v.Version = version
		v.Tree = viewOf(t)
	})
	return v
}

// nodeView is the JSON form of a single node.
type nodeView struct {
	ID       doctree.NodeID   `json:"id"`
	Kind     string           `json:"kind"`
	Parent   doctree.NodeID   `json:"parent,omitempty"`
	Children []doctree.NodeID `json:"children,omitempty"`
	Level    int              `json:"level,omitempty"`
	Value    string           `json:"value,omitempty"`
	Position string           `json:"position,omitempty"`
	Keys     []string         `json:"keys,omitempty"`
	Text     string           `json:"text"`
	Markup   string           `json:"markup"`
}

// editStatus maps edit errors to HTTP status codes.
func editStatus(err error) int {
	switch {
	case errors.Is(err, editor.ErrSessionNotFound), errors.Is(err, doctree.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, doctree.ErrNotParsed):
		return http.StatusConflict
	case errors.Is(err, editor.ErrUnknownOp),
		errors.Is(err, doctree.ErrInvalidCaret),
		errors.Is(err, doctree.ErrUnsupportedSelection),
		errors.Is(err, doctree.ErrInvalidFormat):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *editor.Session {
	sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		jsonError(w, err.Error(), editStatus(err))
		return nil
	}
	return sess
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sess := s.sessions.Create(req.Title, req.Markup)
	writeJSON(w, http.StatusCreated, viewSession(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if sess := s.session(w, r); sess != nil {
		writeJSON(w, http.StatusOK, viewSession(sess))
	}
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "sessionID")) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var op editor.Op
	if !s.decodeJSON(w, r, &op) {
		return
	}
	res, err := sess.Apply(op)
	if err != nil {
		jsonError(w, err.Error(), editStatus(err))
		return
	}
	var markup string
	sess.View(func(t *doctree.Tree, _ int) { markup = t.Markup() })
	writeJSON(w, http.StatusOK, map[string]any{
		"result": res,
		"markup": markup,
	})
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	if sess := s.session(w, r); sess != nil {
		sess.Revert()
		writeJSON(w, http.StatusOK, viewSession(sess))
	}
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "nodeID"))
	if err != nil {
		jsonError(w, "invalid node id", http.StatusBadRequest)
		return
	}
	var (
		view  nodeView
		found bool
	)
	sess.View(func(tree *doctree.Tree, _ int) {
		node, ok := tree.Get(doctree.NodeID(n))
		if !ok {
			return
		}
		found = true
		view = nodeView{
			ID:       node.ID,
			Kind:     node.Kind.String(),
			Parent:   node.Parent,
			Children: append([]doctree.NodeID(nil), node.Children...),
			Level:    node.Level,
			Value:    node.Value,
			Keys:     append([]string(nil), node.Keys...),
			Text:     tree.TextOf(node.ID),
			Markup:   tree.MarkupOf(node.ID),
		}
		if node.Position != 0 {
			view.Position = node.Position.String()
		}
	})
	if !found {
		jsonError(w, "node not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
