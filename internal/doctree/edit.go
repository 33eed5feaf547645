package doctree

import (
	"fmt"
	"strings"
)

// Insert replaces the selection with text and returns the caret after the
// inserted text. Newlines are inserted as spaces; use SplitSelection to
// start a new block.
func (t *Tree) Insert(text string, r CaretRange) (Caret, error) {
	t.mu.Lock()
	c, err := t.insert(text, r)
	t.mu.Unlock()
	if err != nil {
		return r.Start, err
	}
	t.notifyMutated(OpInsert)
	return c, nil
}

// DeleteSelection removes the selection, or one character in the given
// direction when the range is collapsed, and returns the resulting caret.
func (t *Tree) DeleteSelection(r CaretRange, backward bool) (Caret, error) {
	t.mu.Lock()
	c, err := t.deleteSelection(r, backward)
	t.mu.Unlock()
	if err != nil {
		return r.Start, err
	}
	t.notifyMutated(OpDelete)
	return c, nil
}

// SplitSelection removes the selection and splits the owning paragraph,
// header or list item in two at the caret. It returns a caret at the start
// of the new block.
func (t *Tree) SplitSelection(r CaretRange) (Caret, error) {
	t.mu.Lock()
	c, err := t.split(r)
	t.mu.Unlock()
	if err != nil {
		return r.Start, err
	}
	t.notifyMutated(OpSplit)
	return c, nil
}

// SetParagraphLevel changes the level of a Paragraph (0-3) or Header (1-3).
func (t *Tree) SetParagraphLevel(id NodeID, level int) error {
	t.mu.Lock()
	err := t.setLevel(id, level)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.notifyMutated(OpLevel)
	return nil
}

func (t *Tree) checkRange(r CaretRange) error {
	if err := t.check(r.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := t.check(r.End); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	return nil
}

func (t *Tree) insert(text string, r CaretRange) (Caret, error) {
	if err := t.checkRange(r); err != nil {
		return r.Start, err
	}
	c := r.Start
	if !r.Collapsed() {
		var err error
		if c, err = t.deleteRange(r); err != nil {
			return r.Start, err
		}
		t.reindex()
	}
	n := t.nodes[c.Node]
	rs := []rune(n.Value)
	ins := []rune(strings.ReplaceAll(text, "\n", " "))
	n.Value = string(rs[:c.Index]) + string(ins) + string(rs[c.Index:])
	return Caret{Node: c.Node, Index: c.Index + len(ins)}, nil
}

func (t *Tree) deleteSelection(r CaretRange, backward bool) (Caret, error) {
	if err := t.checkRange(r); err != nil {
		return r.Start, err
	}
	var c Caret
	switch {
	case !r.Collapsed():
		var err error
		if c, err = t.deleteRange(r); err != nil {
			return r.Start, err
		}
	case backward:
		c = t.deleteBackward(r.Start)
	default:
		c = t.deleteForward(r.Start)
	}
	t.reindex()
	return c, nil
}

func (t *Tree) deleteBackward(c Caret) Caret {
	n := t.nodes[c.Node]
	block := t.blockOf(c.Node)
	if c.Index > 0 {
		rs := []rune(n.Value)
		n.Value = string(rs[:c.Index-1]) + string(rs[c.Index:])
		return t.normalize(block, Caret{Node: c.Node, Index: c.Index - 1})
	}
	leaf, ok := t.leafBefore(c.Node)
	if !ok {
		return c
	}
	ln := t.nodes[leaf]
	if t.blockOf(leaf) == block {
		if ln.Kind != KindText {
			t.removeLeaf(leaf)
			return t.normalize(block, c)
		}
		if ln.Len() == 0 {
			t.removeLeaf(leaf)
			return t.deleteBackward(c)
		}
		rs := []rune(ln.Value)
		ln.Value = string(rs[:len(rs)-1])
		return t.normalize(block, Caret{Node: leaf, Index: len(rs) - 1})
	}
	prev := t.blockOf(leaf)
	switch {
	case t.mergeable(prev) && t.mergeable(block):
		at := c
		if ln.Kind == KindText {
			at = Caret{Node: leaf, Index: ln.Len()}
		}
		t.mergeBlocks(prev, block)
		return t.normalize(prev, at)
	case ln.Kind != KindText && t.atomicBlock(prev):
		t.removeBlock(prev)
	}
	return c
}

func (t *Tree) deleteForward(c Caret) Caret {
	n := t.nodes[c.Node]
	block := t.blockOf(c.Node)
	if c.Index < n.Len() {
		rs := []rune(n.Value)
		n.Value = string(rs[:c.Index]) + string(rs[c.Index+1:])
		return t.normalize(block, c)
	}
	leaf, ok := t.leafAfter(c.Node)
	if !ok {
		return c
	}
	ln := t.nodes[leaf]
	if t.blockOf(leaf) == block {
		if ln.Kind != KindText {
			t.removeLeaf(leaf)
			return t.normalize(block, c)
		}
		if ln.Len() == 0 {
			t.removeLeaf(leaf)
			return t.deleteForward(c)
		}
		rs := []rune(ln.Value)
		ln.Value = string(rs[1:])
		return t.normalize(block, c)
	}
	next := t.blockOf(leaf)
	switch {
	case t.mergeable(block) && t.mergeable(next):
		t.mergeBlocks(block, next)
		return t.normalize(block, c)
	case ln.Kind != KindText && t.atomicBlock(next):
		t.removeBlock(next)
	}
	return c
}

// deleteRange removes everything between the ordered ends of r and joins
// the two blocks. Nothing is changed if the blocks cannot be joined.
func (t *Tree) deleteRange(r CaretRange) (Caret, error) {
	s, e := t.ordered(r)
	sn, en := t.nodes[s.Node], t.nodes[e.Node]
	bs, be := t.blockOf(s.Node), t.blockOf(e.Node)
	if s.Node == e.Node {
		rs := []rune(sn.Value)
		sn.Value = string(rs[:s.Index]) + string(rs[e.Index:])
		return t.normalize(bs, s), nil
	}
	if bs != be && !(t.mergeable(bs) && t.mergeable(be)) {
		return s, fmt.Errorf("selection spans %s and %s: %w", t.nodes[bs].Kind, t.nodes[be].Kind, ErrUnsupportedSelection)
	}

	leaves := t.leaves()
	i, j := indexOf(leaves, s.Node), indexOf(leaves, e.Node)
	var doomed []NodeID
	seen := make(map[NodeID]bool)
	for _, l := range leaves[i+1 : j] {
		o := t.atomicOwner(l)
		if t.contains(o, s.Node) || t.contains(o, e.Node) {
			o = l
		}
		if seen[o] {
			continue
		}
		// Skip leaves already covered by an earlier owner.
		covered := false
		for _, d := range doomed {
			if t.contains(d, o) {
				covered = true
				break
			}
		}
		if !covered {
			seen[o] = true
			doomed = append(doomed, o)
		}
	}

	srs, ers := []rune(sn.Value), []rune(en.Value)
	sn.Value = string(srs[:s.Index])
	en.Value = string(ers[e.Index:])
	for _, d := range doomed {
		if _, ok := t.nodes[d]; ok {
			t.removeLeaf(d)
		}
	}
	if bs != be {
		t.mergeBlocks(bs, be)
	}
	return t.normalize(bs, s), nil
}

func (t *Tree) split(r CaretRange) (Caret, error) {
	if err := t.checkRange(r); err != nil {
		return r.Start, err
	}
	s, _ := t.ordered(r)
	if block := t.blockOf(s.Node); !t.mergeable(block) {
		return r.Start, fmt.Errorf("cannot split %s: %w", t.nodes[block].Kind, ErrUnsupportedSelection)
	}
	c := r.Start
	if !r.Collapsed() {
		var err error
		if c, err = t.deleteRange(r); err != nil {
			return r.Start, err
		}
	}
	block := t.blockOf(c.Node)
	content := t.contentOf(block)

	tn := t.nodes[c.Node]
	rs := []rune(tn.Value)
	head := string(rs[:c.Index])
	tail := t.NewText(string(rs[c.Index:]), tn.Offset+len(head))
	tn.Value = head

	// Clone the chain of inline containers from the text up to the block's
	// content, moving everything after the caret into the clones.
	carry, child := tail, c.Node
	for cur := tn.Parent; ; {
		cn := t.nodes[cur]
		clone := t.Add(&Node{
			Kind:      cn.Kind,
			Value:     cn.Value,
			Delimiter: cn.Delimiter,
			Glossary:  cn.Glossary,
			Super:     cn.Super,
		})
		i := indexOf(cn.Children, child)
		moved := append([]NodeID{carry}, cn.Children[i+1:]...)
		cn.Children = cn.Children[:i+1]
		for _, m := range moved {
			t.nodes[m].Parent = clone
		}
		t.nodes[clone].Children = moved
		carry = clone
		if cur == content {
			break
		}
		child, cur = cur, cn.Parent
	}

	bn := t.nodes[block]
	switch bn.Kind {
	case KindParagraph, KindHeader:
		kind, level := bn.Kind, bn.Level
		if kind == KindHeader && t.text(carry) == "" {
			kind, level = KindParagraph, 0
		}
		nb := t.Add(&Node{Kind: kind, Level: level})
		t.Append(nb, carry)
		t.insertAfter(bn.Parent, block, nb)
	default:
		t.insertAfter(bn.Parent, block, carry)
	}
	t.reindex()
	return Caret{Node: tail, Index: 0}, nil
}

func (t *Tree) setLevel(id NodeID, level int) error {
	if !t.parsed {
		return ErrNotParsed
	}
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	switch {
	case n.Kind == KindParagraph && level >= 0 && level <= 3:
	case n.Kind == KindHeader && level >= 1 && level <= 3:
	default:
		return fmt.Errorf("level %d on %s: %w", level, n.Kind, ErrUnsupportedSelection)
	}
	n.Level = level
	return nil
}

// leaves lists nodes without children in reading order.
func (t *Tree) leaves() []NodeID {
	var out []NodeID
	t.walk(t.root, func(n *Node) bool {
		if len(t.childrenOf(n)) == 0 && n.ID != t.root {
			out = append(out, n.ID)
		}
		return true
	})
	return out
}

func (t *Tree) leafBefore(id NodeID) (NodeID, bool) {
	leaves := t.leaves()
	i := indexOf(leaves, id)
	if i <= 0 {
		return 0, false
	}
	return leaves[i-1], true
}

func (t *Tree) leafAfter(id NodeID) (NodeID, bool) {
	leaves := t.leaves()
	i := indexOf(leaves, id)
	if i < 0 || i+1 >= len(leaves) {
		return 0, false
	}
	return leaves[i+1], true
}

// atomicOwner returns the outermost Code, Embed or Table enclosing id, or
// id itself. Those blocks are removed whole by range deletion.
func (t *Tree) atomicOwner(id NodeID) NodeID {
	owner := id
	for cur := id; cur != 0; cur = t.nodes[cur].Parent {
		switch t.nodes[cur].Kind {
		case KindCode, KindEmbed, KindTable:
			owner = cur
		}
	}
	return owner
}

func (t *Tree) atomicBlock(id NodeID) bool {
	switch t.nodes[id].Kind {
	case KindRule, KindCode, KindEmbed, KindTable, KindError:
		return true
	}
	return false
}

// contains reports whether ancestor is id or one of its ancestors.
func (t *Tree) contains(ancestor, id NodeID) bool {
	for cur := id; cur != 0; cur = t.nodes[cur].Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// mergeBlocks moves b's inline segments to the end of a's inline segments,
// ahead of any nested list a holds, and removes b. Lists nested in b keep
// their place in reading order.
func (t *Tree) mergeBlocks(a, b NodeID) {
	ca, cb := t.nodes[t.contentOf(a)], t.nodes[t.contentOf(b)]
	var inline, nested []NodeID
	for _, id := range cb.Children {
		if t.nodes[id].Kind.IsList() {
			nested = append(nested, id)
		} else {
			inline = append(inline, id)
		}
	}
	cb.Children = nil

	at := len(ca.Children)
	for i, id := range ca.Children {
		if t.nodes[id].Kind.IsList() {
			at = i
			break
		}
	}
	for _, id := range inline {
		t.nodes[id].Parent = ca.ID
	}
	children := make([]NodeID, 0, len(ca.Children)+len(inline))
	children = append(children, ca.Children[:at]...)
	children = append(children, inline...)
	ca.Children = append(children, ca.Children[at:]...)

	t.rehomeLists(b, nested)
	t.removeBlock(b)
}

// rehomeLists moves lists nested in item b before b is removed. They join
// the end of the previous item, or replace b in its list at one level up
// when b is the first item.
func (t *Tree) rehomeLists(b NodeID, lists []NodeID) {
	if len(lists) == 0 {
		return
	}
	p := t.nodes[t.nodes[b].Parent]
	i := indexOf(p.Children, b)
	if i > 0 && t.nodes[p.Children[i-1]].Kind == KindContent {
		prev := t.nodes[p.Children[i-1]]
		for _, l := range lists {
			ln := t.nodes[l]
			if k := len(prev.Children); k > 0 && t.nodes[prev.Children[k-1]].Kind == ln.Kind {
				last := t.nodes[prev.Children[k-1]]
				for _, item := range ln.Children {
					t.nodes[item].Parent = last.ID
				}
				last.Children = append(last.Children, ln.Children...)
				ln.Children = nil
				t.free(l)
				continue
			}
			ln.Parent = prev.ID
			prev.Children = append(prev.Children, l)
		}
		t.invalidate()
		return
	}

	var items []NodeID
	for _, l := range lists {
		ln := t.nodes[l]
		items = append(items, ln.Children...)
		ln.Children = nil
		t.free(l)
	}
	for _, item := range items {
		t.nodes[item].Parent = p.ID
	}
	children := make([]NodeID, 0, len(p.Children)+len(items))
	children = append(children, p.Children[:i+1]...)
	children = append(children, items...)
	p.Children = append(children, p.Children[i+1:]...)
	t.invalidate()
}

func (t *Tree) removeBlock(id NodeID) {
	parent := t.nodes[id].Parent
	t.detach(id)
	t.free(id)
	t.prune(parent)
}

func (t *Tree) removeLeaf(id NodeID) {
	t.removeBlock(id)
}

func (t *Tree) insertAfter(parent, ref, id NodeID) {
	p := t.nodes[parent]
	i := indexOf(p.Children, ref)
	p.Children = append(p.Children, 0)
	copy(p.Children[i+2:], p.Children[i+1:])
	p.Children[i+1] = id
	t.nodes[id].Parent = parent
	t.invalidate()
}

func prunable(k Kind) bool {
	switch k {
	case KindParagraph, KindHeader, KindBulletedList, KindNumberedList, KindQuote,
		KindCallout, KindContent, KindFormatted, KindLink, KindFootnote,
		KindDefinition, KindSubSuperscript:
		return true
	}
	return false
}

// prune removes empty containers from id upward. Table cells are kept so
// rows stay aligned.
func (t *Tree) prune(id NodeID) {
	for id != 0 && id != t.root {
		n := t.nodes[id]
		if n == nil || !prunable(n.Kind) || len(t.childrenOf(n)) > 0 {
			return
		}
		parent := n.Parent
		if p := t.nodes[parent]; p != nil && p.Kind == KindTable && p.Caption != id {
			return
		}
		t.detach(id)
		t.free(id)
		id = parent
	}
}

// normalize drops empty Text nodes, joins adjacent Text siblings and prunes
// emptied inline containers inside block, then maps c onto the result.
func (t *Tree) normalize(block NodeID, c Caret) Caret {
	off := t.caretToOffset(block, c)
	var keep NodeID
	texts := t.textsIn(block)
	empty := true
	for _, id := range texts {
		if t.nodes[id].Value != "" {
			empty = false
			break
		}
	}
	if empty && len(texts) > 0 {
		keep = texts[0]
	}
	t.normalizeChildren(block, keep)
	if out, ok := t.offsetToCaret(block, off, false); ok {
		return out
	}
	return c
}

func (t *Tree) normalizeChildren(id, keep NodeID) {
	n := t.nodes[id]
	out := n.Children[:0:0]
	for _, ch := range n.Children {
		cn := t.nodes[ch]
		if cn.Kind != KindText {
			if !cn.Kind.IsList() {
				t.normalizeChildren(ch, keep)
			}
			if prunable(cn.Kind) && len(t.childrenOf(cn)) == 0 {
				t.free(ch)
				continue
			}
			out = append(out, ch)
			continue
		}
		if cn.Value == "" && ch != keep {
			t.free(ch)
			continue
		}
		if len(out) > 0 {
			if prev := t.nodes[out[len(out)-1]]; prev.Kind == KindText {
				prev.Value += cn.Value
				t.free(ch)
				continue
			}
		}
		out = append(out, ch)
	}
	n.Children = out
	t.invalidate()
}
