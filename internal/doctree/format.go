package doctree

import "fmt"

// Format flags in canonical nesting order, outermost first.
const (
	fmtBold uint8 = 1 << iota
	fmtItalic
	fmtCode
)

var formatDelimiters = []struct {
	flag  uint8
	delim string
}{
	{fmtBold, "*"},
	{fmtItalic, "_"},
	{fmtCode, "`"},
}

func formatFlag(delim string) (uint8, bool) {
	if delim == "" {
		return 0, true
	}
	for _, f := range formatDelimiters {
		if f.delim == delim {
			return f.flag, true
		}
	}
	return 0, false
}

// run is a flattened piece of a block's inline content: either text or an
// atomic segment such as a link or footnote, with the formats applied to it.
type run struct {
	text     string
	atom     NodeID
	length   int // runes of text inside an atom
	offset   int
	formats  uint8
	selected bool
}

// FormatSelection toggles delimiter over the selection: if every selected
// run already has it the format is removed, otherwise it is applied. The
// empty delimiter strips all formatting. The selection must lie within one
// block. It returns the range covering the same text afterwards.
func (t *Tree) FormatSelection(r CaretRange, delimiter string) (CaretRange, error) {
	t.mu.Lock()
	out, err := t.format(r, delimiter)
	t.mu.Unlock()
	if err != nil {
		return r, err
	}
	t.notifyMutated(OpFormat)
	return out, nil
}

func (t *Tree) format(r CaretRange, delimiter string) (CaretRange, error) {
	flag, ok := formatFlag(delimiter)
	if !ok {
		return r, fmt.Errorf("%q: %w", delimiter, ErrInvalidFormat)
	}
	if err := t.checkRange(r); err != nil {
		return r, err
	}
	if r.Collapsed() {
		return r, nil
	}
	s, e := t.ordered(r)
	block := t.blockOf(s.Node)
	if t.blockOf(e.Node) != block {
		return r, fmt.Errorf("selection spans blocks: %w", ErrUnsupportedSelection)
	}
	content := t.contentOf(block)
	if content == 0 {
		return r, fmt.Errorf("%s has no inline content: %w", t.nodes[block].Kind, ErrUnsupportedSelection)
	}
	for _, c := range []Caret{s, e} {
		for cur := t.nodes[c.Node].Parent; cur != content; cur = t.nodes[cur].Parent {
			if k := t.nodes[cur].Kind; k != KindFormatted && k != KindContent {
				return r, fmt.Errorf("selection inside %s: %w", k, ErrUnsupportedSelection)
			}
		}
	}

	start, end := t.caretToOffset(block, s), t.caretToOffset(block, e)
	runs := t.flatten(content, 0, nil)
	runs = markSelected(runs, start, end)
	for i := range runs {
		if runs[i].atom != 0 && t.nodes[runs[i].atom].Kind.IsList() {
			runs[i].selected = false
		}
	}

	all := true
	found := false
	for _, rn := range runs {
		if !rn.selected {
			continue
		}
		found = true
		if rn.formats&flag == 0 {
			all = false
		}
	}
	if !found {
		return r, nil
	}
	for i := range runs {
		if !runs[i].selected {
			continue
		}
		switch {
		case flag == 0:
			runs[i].formats = 0
		case all:
			runs[i].formats &^= flag
		default:
			runs[i].formats |= flag
		}
	}

	t.rebuild(content, coalesce(runs))
	t.reindex()

	ns, ok1 := t.offsetToCaret(block, start, true)
	ne, ok2 := t.offsetToCaret(block, end, false)
	if !ok1 || !ok2 {
		return r, fmt.Errorf("remap selection: %w", ErrInvalidCaret)
	}
	return CaretRange{Start: ns, End: ne}, nil
}

// flatten turns nested Formatted and Content nodes into runs. Nested lists
// are kept as atoms.
func (t *Tree) flatten(id NodeID, formats uint8, out []run) []run {
	for _, ch := range t.nodes[id].Children {
		cn := t.nodes[ch]
		switch cn.Kind {
		case KindText:
			out = append(out, run{text: cn.Value, offset: cn.Offset, formats: formats})
		case KindFormatted:
			f, _ := formatFlag(cn.Delimiter)
			out = t.flatten(ch, formats|f, out)
		case KindContent:
			out = t.flatten(ch, formats, out)
		default:
			length := 0
			if !cn.Kind.IsList() {
				for _, id := range t.textsIn(ch) {
					length += t.nodes[id].Len()
				}
			}
			out = append(out, run{atom: ch, length: length, formats: formats})
		}
	}
	return out
}

// markSelected splits text runs at the selection bounds and flags the runs
// inside [start, end).
func markSelected(runs []run, start, end int) []run {
	var out []run
	pos := 0
	for _, rn := range runs {
		if rn.atom != 0 {
			rn.selected = pos >= start && pos+rn.length <= end && pos < end
			out = append(out, rn)
			pos += rn.length
			continue
		}
		rs := []rune(rn.text)
		cuts := []int{0}
		for _, b := range []int{start - pos, end - pos} {
			if b > 0 && b < len(rs) {
				cuts = append(cuts, b)
			}
		}
		cuts = append(cuts, len(rs))
		for i := 0; i+1 < len(cuts); i++ {
			a, b := cuts[i], cuts[i+1]
			if a == b && len(rs) > 0 {
				continue
			}
			piece := rn
			piece.text = string(rs[a:b])
			piece.offset = rn.offset + len(string(rs[:a]))
			piece.selected = pos+a >= start && pos+b <= end && a < b
			out = append(out, piece)
		}
		pos += len(rs)
	}
	return out
}

// coalesce joins neighbouring text runs with the same formats.
func coalesce(runs []run) []run {
	var out []run
	for _, rn := range runs {
		if n := len(out); n > 0 && rn.atom == 0 && out[n-1].atom == 0 && out[n-1].formats == rn.formats {
			out[n-1].text += rn.text
			continue
		}
		out = append(out, rn)
	}
	return out
}

// rebuild replaces content's children with runs, nesting Formatted nodes in
// canonical order. Atom subtrees are reattached, not copied.
func (t *Tree) rebuild(content NodeID, runs []run) {
	keep := make(map[NodeID]bool)
	for _, rn := range runs {
		if rn.atom != 0 {
			keep[rn.atom] = true
		}
	}
	cn := t.nodes[content]
	for _, ch := range cn.Children {
		t.freeExcept(ch, keep)
	}
	cn.Children = nil

	type frame struct {
		id   NodeID
		flag uint8
	}
	stack := []frame{{id: content}}
	active := uint8(0)
	for _, rn := range runs {
		// Close frames whose format this run does not share.
		for i := 1; i < len(stack); i++ {
			if rn.formats&stack[i].flag == 0 {
				for _, f := range stack[i:] {
					active &^= f.flag
				}
				stack = stack[:i]
				break
			}
		}
		for _, f := range formatDelimiters {
			if rn.formats&f.flag != 0 && active&f.flag == 0 {
				id := t.Add(&Node{Kind: KindFormatted, Delimiter: f.delim})
				t.Append(stack[len(stack)-1].id, id)
				stack = append(stack, frame{id: id, flag: f.flag})
				active |= f.flag
			}
		}
		parent := stack[len(stack)-1].id
		if rn.atom != 0 {
			t.nodes[rn.atom].Parent = 0
			t.Append(parent, rn.atom)
			continue
		}
		t.Append(parent, t.NewText(rn.text, rn.offset))
	}
	t.invalidate()
}

// freeExcept deletes id's subtree but leaves kept nodes and their
// descendants in the arena.
func (t *Tree) freeExcept(id NodeID, keep map[NodeID]bool) {
	if keep[id] {
		return
	}
	n := t.nodes[id]
	if n == nil {
		return
	}
	for _, c := range t.childrenOf(n) {
		t.freeExcept(c, keep)
	}
	delete(t.nodes, id)
}
