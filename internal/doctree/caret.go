package doctree

import (
	"fmt"
	"unicode"
)

// Caret is a position inside a Text node. Index counts runes and lies in
// [0, node length].
type Caret struct {
	Node  NodeID `json:"node"`
	Index int    `json:"index"`
}

// CaretRange is a selection. Equal carets denote a collapsed cursor.
type CaretRange struct {
	Start Caret `json:"start"`
	End   Caret `json:"end"`
}

// At returns a collapsed range at c.
func At(c Caret) CaretRange {
	return CaretRange{Start: c, End: c}
}

// Collapsed reports whether the range is a cursor.
func (r CaretRange) Collapsed() bool {
	return r.Start == r.End
}

// First returns a caret at the start of the unit's first Text node. It fails
// with ErrNotParsed before Finish and ErrNotFound when the unit has no text.
func (t *Tree) First() (Caret, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.parsed {
		return Caret{}, ErrNotParsed
	}
	order := t.textOrder()
	if len(order) == 0 {
		return Caret{}, fmt.Errorf("no text in %q: %w", t.Title, ErrNotFound)
	}
	return Caret{Node: order[0]}, nil
}

// Last returns a caret at the end of the unit's last Text node, failing like
// First.
func (t *Tree) Last() (Caret, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.parsed {
		return Caret{}, ErrNotParsed
	}
	order := t.textOrder()
	if len(order) == 0 {
		return Caret{}, fmt.Errorf("no text in %q: %w", t.Title, ErrNotFound)
	}
	id := order[len(order)-1]
	return Caret{Node: id, Index: t.nodes[id].Len()}, nil
}

// Next moves one character forward, crossing into the following Text node at
// a boundary. At the end of the unit the caret is returned unchanged.
func (t *Tree) Next(c Caret) (Caret, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(c); err != nil {
		return c, err
	}
	return t.next1(c), nil
}

// Previous moves one character backward.
func (t *Tree) Previous(c Caret) (Caret, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(c); err != nil {
		return c, err
	}
	return t.prev1(c), nil
}

// NextWord skips forward over any non-word characters and then over the
// following word.
func (t *Tree) NextWord(c Caret) (Caret, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(c); err != nil {
		return c, err
	}
	for {
		r, ok := t.charAfter(c)
		if !ok || isWordRune(r) {
			break
		}
		c = t.next1(c)
	}
	for {
		r, ok := t.charAfter(c)
		if !ok || !isWordRune(r) {
			break
		}
		c = t.next1(c)
	}
	return c, nil
}

// PreviousWord skips backward over any non-word characters and then over the
// preceding word.
func (t *Tree) PreviousWord(c Caret) (Caret, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(c); err != nil {
		return c, err
	}
	for {
		r, ok := t.charBefore(c)
		if !ok || isWordRune(r) {
			break
		}
		c = t.prev1(c)
	}
	for {
		r, ok := t.charBefore(c)
		if !ok || !isWordRune(r) {
			break
		}
		c = t.prev1(c)
	}
	return c, nil
}

// CaretToTextIndex converts a caret into an offset within the text of the
// block that contains it.
func (t *Tree) CaretToTextIndex(c Caret) (NodeID, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(c); err != nil {
		return 0, 0, err
	}
	block := t.blockOf(c.Node)
	return block, t.caretToOffset(block, c), nil
}

// TextIndexToCaret converts an offset within a block's text into a caret.
func (t *Tree) TextIndexToCaret(block NodeID, offset int) (Caret, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.nodes[block]; !ok {
		return Caret{}, fmt.Errorf("block %d: %w", block, ErrNotFound)
	}
	c, ok := t.offsetToCaret(block, offset, false)
	if !ok {
		return Caret{}, fmt.Errorf("offset %d in block %d: %w", offset, block, ErrInvalidCaret)
	}
	return c, nil
}

// BlockOf returns the block that owns a node: a Paragraph or Header, a list
// item, a table cell, a caption or credit, or a top-level block.
func (t *Tree) BlockOf(id NodeID) (NodeID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.nodes[id]; !ok {
		return 0, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return t.blockOf(id), nil
}

func (t *Tree) check(c Caret) error {
	if !t.parsed {
		return ErrNotParsed
	}
	n, ok := t.nodes[c.Node]
	if !ok || n.Kind != KindText {
		return fmt.Errorf("node %d is not a text node: %w", c.Node, ErrInvalidCaret)
	}
	if c.Index < 0 || c.Index > n.Len() {
		return fmt.Errorf("index %d outside [0,%d]: %w", c.Index, n.Len(), ErrInvalidCaret)
	}
	return nil
}

// textOrder lists Text nodes in reading order. Cached until the next
// structural change.
func (t *Tree) textOrder() []NodeID {
	if t.order != nil {
		return t.order
	}
	order := []NodeID{}
	pos := make(map[NodeID]int)
	t.walk(t.root, func(n *Node) bool {
		if n.Kind == KindText {
			pos[n.ID] = len(order)
			order = append(order, n.ID)
		}
		return true
	})
	t.order, t.orderPos = order, pos
	return order
}

func (t *Tree) nextText(id NodeID) (NodeID, bool) {
	order := t.textOrder()
	i, ok := t.orderPos[id]
	if !ok || i+1 >= len(order) {
		return 0, false
	}
	return order[i+1], true
}

func (t *Tree) prevText(id NodeID) (NodeID, bool) {
	t.textOrder()
	i, ok := t.orderPos[id]
	if !ok || i == 0 {
		return 0, false
	}
	return t.order[i-1], true
}

// compare orders two carets by reading position.
func (t *Tree) compare(a, b Caret) int {
	t.textOrder()
	pa, pb := t.orderPos[a.Node], t.orderPos[b.Node]
	switch {
	case pa != pb:
		return pa - pb
	default:
		return a.Index - b.Index
	}
}

func (t *Tree) ordered(r CaretRange) (Caret, Caret) {
	if t.compare(r.Start, r.End) > 0 {
		return r.End, r.Start
	}
	return r.Start, r.End
}

func (t *Tree) next1(c Caret) Caret {
	if c.Index < t.nodes[c.Node].Len() {
		return Caret{c.Node, c.Index + 1}
	}
	id, ok := t.nextText(c.Node)
	if !ok {
		return c
	}
	// Entering a non-empty node of the same block consumes its first
	// character, since the boundary between the two is not a character.
	if t.blockOf(id) == t.blockOf(c.Node) && t.nodes[id].Len() > 0 {
		return Caret{id, 1}
	}
	return Caret{id, 0}
}

func (t *Tree) prev1(c Caret) Caret {
	if c.Index > 0 {
		return Caret{c.Node, c.Index - 1}
	}
	id, ok := t.prevText(c.Node)
	if !ok {
		return c
	}
	n := t.nodes[id].Len()
	if t.blockOf(id) == t.blockOf(c.Node) && n > 0 {
		return Caret{id, n - 1}
	}
	return Caret{id, n}
}

// charAfter returns the rune right of the caret within its block.
func (t *Tree) charAfter(c Caret) (rune, bool) {
	block := t.blockOf(c.Node)
	for id, idx := c.Node, c.Index; ; {
		rs := []rune(t.nodes[id].Value)
		if idx < len(rs) {
			return rs[idx], true
		}
		next, ok := t.nextText(id)
		if !ok {
			return 0, false
		}
		if t.blockOf(next) != block {
			return '\n', true
		}
		id, idx = next, 0
	}
}

// charBefore returns the rune left of the caret within its block.
func (t *Tree) charBefore(c Caret) (rune, bool) {
	block := t.blockOf(c.Node)
	for id, idx := c.Node, c.Index; ; {
		rs := []rune(t.nodes[id].Value)
		if idx > 0 && idx <= len(rs) {
			return rs[idx-1], true
		}
		prev, ok := t.prevText(id)
		if !ok {
			return 0, false
		}
		if t.blockOf(prev) != block {
			return '\n', true
		}
		id, idx = prev, t.nodes[prev].Len()
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '’'
}

// blockOf finds the editable block that owns id.
func (t *Tree) blockOf(id NodeID) NodeID {
	for cur := id; ; {
		n := t.nodes[cur]
		if n == nil || n.Parent == 0 {
			return cur
		}
		if n.Kind == KindParagraph || n.Kind == KindHeader {
			return cur
		}
		switch t.nodes[n.Parent].Kind {
		case KindBulletedList, KindNumberedList, KindTable, KindCode, KindEmbed,
			KindChapter, KindQuote, KindCallout:
			return cur
		}
		cur = n.Parent
	}
}

// contentOf returns the Content that holds a block's inline segments.
func (t *Tree) contentOf(block NodeID) NodeID {
	n := t.nodes[block]
	switch n.Kind {
	case KindParagraph, KindHeader:
		if len(n.Children) > 0 {
			return n.Children[0]
		}
	case KindContent:
		return block
	}
	return 0
}

// mergeable reports whether a block's content may be joined with another's.
func (t *Tree) mergeable(block NodeID) bool {
	n := t.nodes[block]
	switch n.Kind {
	case KindParagraph, KindHeader:
		return t.contentOf(block) != 0
	case KindContent:
		return n.Parent != 0 && t.nodes[n.Parent].Kind.IsList()
	}
	return false
}

// textsIn lists the Text nodes under id in reading order.
func (t *Tree) textsIn(id NodeID) []NodeID {
	var out []NodeID
	t.walk(id, func(n *Node) bool {
		if n.Kind == KindText {
			out = append(out, n.ID)
		}
		// Nested lists belong to their own items.
		return n.ID == id || !n.Kind.IsList()
	})
	return out
}

func (t *Tree) caretToOffset(block NodeID, c Caret) int {
	off := 0
	for _, id := range t.textsIn(block) {
		if id == c.Node {
			return off + c.Index
		}
		off += t.nodes[id].Len()
	}
	return off
}

// offsetToCaret maps a block offset back to a caret. At a boundary between
// two Text nodes the earlier node wins unless preferNext is set.
func (t *Tree) offsetToCaret(block NodeID, offset int, preferNext bool) (Caret, bool) {
	texts := t.textsIn(block)
	if len(texts) == 0 || offset < 0 {
		return Caret{}, false
	}
	off := 0
	for i, id := range texts {
		l := t.nodes[id].Len()
		last := i == len(texts)-1
		if offset < off+l || (offset == off+l && (!preferNext || last)) {
			return Caret{id, offset - off}, true
		}
		off += l
	}
	return Caret{}, false
}
