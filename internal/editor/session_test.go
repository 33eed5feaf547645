package editor

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/dgallion1/bookish/internal/index"
	"github.com/dgallion1/bookish/internal/stats"
)

func newManager() (*Manager, *stats.Stats) {
	st := stats.New(time.Hour)
	return NewManager(time.Hour, st, nil), st
}

func firstCaret(t *testing.T, s *Session) doctree.Caret {
	t.Helper()
	c, err := s.Tree().First()
	require.NoError(t, err)
	return c
}

func TestCreateAndGet(t *testing.T) {
	m, st := newManager()
	s := m.Create("intro", "Hello world")
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Hello world", s.Tree().Markup())
	assert.Equal(t, "intro", s.Tree().Title)
	assert.Equal(t, 1, st.Parse.Snapshot().Count)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 1, m.Len())
}

func TestCreateSubstitutesSymbols(t *testing.T) {
	m, _ := newManager()
	m.Symbols = map[string]string{"lang": "Go"}
	s := m.Create("c", "Learn @lang today")
	assert.Equal(t, "Learn Go today", s.Tree().Text())
}

func TestApplyInsertAndFormat(t *testing.T) {
	m, st := newManager()
	s := m.Create("c", "Hello world")
	c := firstCaret(t, s)

	res, err := s.Apply(Op{Kind: OpInsert, Start: doctree.Caret{Node: c.Node, Index: 5}, Text: " big"})
	require.NoError(t, err)
	assert.Equal(t, 9, res.Caret.Index)
	assert.Equal(t, 1, res.Version)
	assert.Equal(t, "Hello big world", s.Tree().Text())

	end := doctree.Caret{Node: c.Node, Index: 5}
	res, err = s.Apply(Op{Kind: OpFormat, Start: doctree.Caret{Node: c.Node}, End: &end, Delimiter: "*"})
	require.NoError(t, err)
	require.NotNil(t, res.Selection)
	assert.Equal(t, "*Hello* big world", s.Tree().Markup())
	assert.Equal(t, 2, s.Version())
	assert.Equal(t, 2, st.Mutation.Snapshot().Count)
}

func TestApplyDeleteSplitLevel(t *testing.T) {
	m, _ := newManager()
	s := m.Create("c", "Hello world")
	c := firstCaret(t, s)

	_, err := s.Apply(Op{Kind: OpDelete, Start: doctree.Caret{Node: c.Node, Index: 11}, Backward: true})
	require.NoError(t, err)
	assert.Equal(t, "Hello worl", s.Tree().Text())

	_, err = s.Apply(Op{Kind: OpSplit, Start: doctree.Caret{Node: c.Node, Index: 5}})
	require.NoError(t, err)
	blocks := s.Tree().Blocks()
	require.Len(t, blocks, 2)

	_, err = s.Apply(Op{Kind: OpLevel, Node: blocks[0], Level: 2})
	require.NoError(t, err)
	assert.Contains(t, s.Tree().Markup(), "## Hello")
}

func TestApplyErrors(t *testing.T) {
	m, st := newManager()
	s := m.Create("c", "Hello")
	c := firstCaret(t, s)

	_, err := s.Apply(Op{Kind: "explode", Start: c})
	assert.ErrorIs(t, err, ErrUnknownOp)

	_, err = s.Apply(Op{Kind: OpInsert, Start: doctree.Caret{Node: c.Node, Index: 99}, Text: "x"})
	assert.ErrorIs(t, err, doctree.ErrInvalidCaret)

	_, err = s.Apply(Op{Kind: OpLevel, Node: 9999, Level: 1})
	assert.ErrorIs(t, err, doctree.ErrNotFound)

	assert.Equal(t, 0, s.Version())
	assert.Equal(t, 0, st.Mutation.Snapshot().Count)
	assert.Equal(t, "Hello", s.Tree().Markup())
}

func TestRevert(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := NewManager(time.Hour, nil, log)
	s := m.Create("c", "Hello")
	c := firstCaret(t, s)

	_, err := s.Apply(Op{Kind: OpInsert, Start: doctree.Caret{Node: c.Node, Index: 5}, Text: " there"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "unit parsed")
	assert.Contains(t, buf.String(), "op=insert")

	s.Revert()
	assert.Equal(t, "Hello", s.Tree().Markup())
	assert.Equal(t, 0, s.Version())

	buf.Reset()
	c = firstCaret(t, s)
	_, err = s.Apply(Op{Kind: OpInsert, Start: c, Text: "Oh "})
	require.NoError(t, err)
	assert.Equal(t, "Oh Hello", s.Tree().Text())
	assert.Contains(t, buf.String(), "tree mutated")
}

func TestRevertReindexes(t *testing.T) {
	m, _ := newManager()
	ib := index.NewBuilder(3)
	m.Observers = []doctree.Observer{ib.Observer()}
	s := m.Create("c", "Hello")
	c := firstCaret(t, s)

	_, err := s.Apply(Op{Kind: OpInsert, Start: doctree.Caret{Node: c.Node, Index: 5}, Text: " zebras"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ib.Build().Lookup("zebras"))

	s.Revert()
	ix := ib.Build()
	assert.Nil(t, ix.Lookup("zebras"))
	assert.Equal(t, []string{"c"}, ix.Lookup("Hello"))
}

func TestDeleteAndCleanup(t *testing.T) {
	m := NewManager(20*time.Millisecond, nil, nil)
	old := m.Create("old", "One")
	assert.True(t, m.Delete(old.ID))
	assert.False(t, m.Delete(old.ID))

	stale := m.Create("stale", "Two")
	time.Sleep(40 * time.Millisecond)
	fresh := m.Create("fresh", "Three")

	m.Cleanup()
	_, err := m.Get(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestRunEvicts(t *testing.T) {
	m := NewManager(time.Millisecond, nil, nil)
	m.Create("c", "One")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestViewDuringEdits(t *testing.T) {
	m, _ := newManager()
	s := m.Create("c", "Hello")
	c := firstCaret(t, s)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Apply(Op{Kind: OpInsert, Start: doctree.Caret{Node: c.Node}, Text: "x"})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			s.View(func(tree *doctree.Tree, version int) {
				assert.Len(t, tree.Text(), len("Hello")+version)
			})
		}()
	}
	wg.Wait()

	s.View(func(tree *doctree.Tree, version int) {
		assert.Equal(t, 20, version)
		assert.Equal(t, strings.Repeat("x", 20)+"Hello", tree.Text())
	})
}
