package doctree

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// NodeID identifies a node within a Tree. Zero is never assigned.
type NodeID int

// Kind is the variant tag of a Node.
type Kind uint8

const (
	KindChapter Kind = iota + 1
	KindParagraph
	KindHeader
	KindRule
	KindEmbed
	KindBulletedList
	KindNumberedList
	KindCode
	KindQuote
	KindCallout
	KindTable
	KindContent
	KindFormatted
	KindInlineCode
	KindLink
	KindCitations
	KindDefinition
	KindFootnote
	KindSubSuperscript
	KindText
	KindError
)

var kindNames = map[Kind]string{
	KindChapter:        "chapter",
	KindParagraph:      "paragraph",
	KindHeader:         "header",
	KindRule:           "rule",
	KindEmbed:          "embed",
	KindBulletedList:   "bulleted",
	KindNumberedList:   "numbered",
	KindCode:           "code",
	KindQuote:          "quote",
	KindCallout:        "callout",
	KindTable:          "table",
	KindContent:        "content",
	KindFormatted:      "formatted",
	KindInlineCode:     "inline-code",
	KindLink:           "link",
	KindCitations:      "citations",
	KindDefinition:     "definition",
	KindFootnote:       "footnote",
	KindSubSuperscript: "subsuperscript",
	KindText:           "text",
	KindError:          "error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsList reports whether k is one of the list kinds.
func (k Kind) IsList() bool {
	return k == KindBulletedList || k == KindNumberedList
}

// Position places figure-like blocks: inline or in one of the margins.
type Position byte

const (
	PositionInline Position = '|'
	PositionLeft   Position = '<'
	PositionRight  Position = '>'
)

// Marker returns the source symbol for p. Inline is the default and has none.
func (p Position) Marker() string {
	if p == PositionLeft || p == PositionRight {
		return string(rune(p))
	}
	return ""
}

func (p Position) String() string {
	switch p {
	case PositionLeft:
		return "left"
	case PositionRight:
		return "right"
	}
	return "inline"
}

// Node is one element of a document tree. Which fields are meaningful
// depends on Kind:
//
//	Paragraph, Header   Level, Children[0] is the Content
//	Embed               Value (url), Description, Caption, Credit, Position
//	Code                Value (code), Language, Caption, Position
//	Quote, Callout      Children are blocks; Quote also has Credit
//	Table               Rows of Content cells, Caption, Position
//	Formatted           Delimiter
//	InlineCode          Value, Language
//	Link                Value (target), Children[0] is the Content
//	Citations           Keys
//	Definition          Glossary, Children[0] is the phrase
//	SubSuperscript      Super
//	Text                Value, Offset
//	Error               Value (message), Raw (source it replaced)
type Node struct {
	ID       NodeID
	Kind     Kind
	Parent   NodeID
	Children []NodeID
	Rows     [][]NodeID
	Caption  NodeID
	Credit   NodeID

	Level       int
	Value       string
	Description string
	Language    string
	Delimiter   string
	Keys        []string
	Glossary    string
	Position    Position
	Super       bool
	Offset      int
	Raw         string
}

// Len is the length of a Text node in runes.
func (n *Node) Len() int {
	return utf8.RuneCountInString(n.Value)
}

func (n *Node) clone() *Node {
	c := *n
	c.Children = append([]NodeID(nil), n.Children...)
	c.Keys = append([]string(nil), n.Keys...)
	if n.Rows != nil {
		c.Rows = make([][]NodeID, len(n.Rows))
		for i, row := range n.Rows {
			c.Rows[i] = append([]NodeID(nil), row...)
		}
	}
	return &c
}

// Tree is a parsed unit stored as an arena keyed by NodeID. Parent and child
// links are IDs into the arena.
//
// Builder methods (Add, Append, SetCaption, ...) are used by parsers before
// Finish and take no locks. After Finish the tree is read under a shared lock
// and mutated only through the caret operations, which take it exclusively.
type Tree struct {
	Title string

	mu        sync.RWMutex
	nodes     map[NodeID]*Node
	root      NodeID
	next      NodeID
	meta      Metadata
	symbols   map[string]string
	parsed    bool
	observers []Observer

	order    []NodeID
	orderPos map[NodeID]int
}

// New returns an empty, unparsed tree with a Chapter root.
func New(title string) *Tree {
	t := &Tree{Title: title, nodes: make(map[NodeID]*Node)}
	t.root = t.Add(&Node{Kind: KindChapter})
	return t
}

// Add stores n in the arena under a fresh ID and returns it.
func (t *Tree) Add(n *Node) NodeID {
	t.next++
	n.ID = t.next
	t.nodes[n.ID] = n
	t.invalidate()
	return n.ID
}

// NewText adds a detached Text node.
func (t *Tree) NewText(value string, offset int) NodeID {
	return t.Add(&Node{Kind: KindText, Value: value, Offset: offset})
}

// NewContent adds a detached Content node holding segments.
func (t *Tree) NewContent(segments ...NodeID) NodeID {
	id := t.Add(&Node{Kind: KindContent})
	for _, s := range segments {
		t.Append(id, s)
	}
	return id
}

// NewError adds a detached Error node.
func (t *Tree) NewError(message, raw string) NodeID {
	return t.Add(&Node{Kind: KindError, Value: message, Raw: raw})
}

// Append attaches child as the last child of parent.
func (t *Tree) Append(parent, child NodeID) {
	if child == 0 {
		return
	}
	t.nodes[child].Parent = parent
	p := t.nodes[parent]
	p.Children = append(p.Children, child)
	t.invalidate()
}

// SetCaption attaches c as the caption of a Code, Embed or Table node.
func (t *Tree) SetCaption(parent, c NodeID) {
	if c == 0 {
		return
	}
	t.nodes[c].Parent = parent
	t.nodes[parent].Caption = c
	t.invalidate()
}

// SetCredit attaches c as the credit of a Quote or Embed node.
func (t *Tree) SetCredit(parent, c NodeID) {
	if c == 0 {
		return
	}
	t.nodes[c].Parent = parent
	t.nodes[parent].Credit = c
	t.invalidate()
}

// AppendRow adds a row of Content cells to a Table node.
func (t *Tree) AppendRow(table NodeID, cells []NodeID) {
	for _, c := range cells {
		t.nodes[c].Parent = table
	}
	n := t.nodes[table]
	n.Rows = append(n.Rows, cells)
	t.invalidate()
}

// Node returns the node for id without locking. Intended for builders.
func (t *Tree) Node(id NodeID) *Node {
	return t.nodes[id]
}

// Empty reports whether a container has no children at all.
func (t *Tree) Empty(id NodeID) bool {
	n := t.nodes[id]
	return n == nil || len(t.childrenOf(n)) == 0
}

// Discard removes id and its whole subtree from the arena, detaching it from
// its parent if it has one.
func (t *Tree) Discard(id NodeID) {
	if id == 0 || t.nodes[id] == nil {
		return
	}
	t.detach(id)
	t.free(id)
}

// SetSymbols records the unit's declared symbols.
func (t *Tree) SetSymbols(symbols map[string]string) {
	t.symbols = symbols
}

// Finish marks the tree as parsed, builds its metadata and notifies
// observers that the unit is ready.
func (t *Tree) Finish(observers ...Observer) {
	t.mu.Lock()
	t.observers = append(t.observers, observers...)
	t.reindex()
	t.parsed = true
	obs := append([]Observer(nil), t.observers...)
	t.mu.Unlock()
	for _, o := range obs {
		o.UnitParsed(t)
	}
}

// Observe registers o for future notifications.
func (t *Tree) Observe(o Observer) {
	t.mu.Lock()
	t.observers = append(t.observers, o)
	t.mu.Unlock()
}

// Root returns the ID of the Chapter root.
func (t *Tree) Root() NodeID {
	return t.root
}

// Parsed reports whether Finish has been called.
func (t *Tree) Parsed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.parsed
}

// Get returns a copy of the node with the given ID.
func (t *Tree) Get(id NodeID) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n.clone(), true
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Blocks returns the top-level block IDs.
func (t *Tree) Blocks() []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]NodeID(nil), t.nodes[t.root].Children...)
}

// ChildrenOf returns every child of id in reading order: children, table
// rows, caption, credit.
func (t *Tree) ChildrenOf(id NodeID) []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return t.childrenOf(n)
}

// Walk visits id and its descendants depth first in reading order. Returning
// false from fn skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(n *Node) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.walk(id, fn)
}

// Clone returns a deep copy of the tree with the same node IDs. Observers are
// not copied.
func (t *Tree) Clone() *Tree {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := &Tree{
		Title:   t.Title,
		nodes:   make(map[NodeID]*Node, len(t.nodes)),
		root:    t.root,
		next:    t.next,
		parsed:  t.parsed,
		symbols: make(map[string]string, len(t.symbols)),
	}
	for id, n := range t.nodes {
		c.nodes[id] = n.clone()
	}
	for k, v := range t.symbols {
		c.symbols[k] = v
	}
	c.reindex()
	return c
}

func (t *Tree) childrenOf(n *Node) []NodeID {
	if len(n.Rows) == 0 && n.Caption == 0 && n.Credit == 0 {
		return n.Children
	}
	out := append([]NodeID(nil), n.Children...)
	for _, row := range n.Rows {
		out = append(out, row...)
	}
	if n.Caption != 0 {
		out = append(out, n.Caption)
	}
	if n.Credit != 0 {
		out = append(out, n.Credit)
	}
	return out
}

func (t *Tree) walk(id NodeID, fn func(n *Node) bool) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range t.childrenOf(n) {
		t.walk(c, fn)
	}
}

// detach unlinks id from its parent's slots.
func (t *Tree) detach(id NodeID) {
	n := t.nodes[id]
	if n == nil || n.Parent == 0 {
		return
	}
	p := t.nodes[n.Parent]
	n.Parent = 0
	t.invalidate()
	if p == nil {
		return
	}
	if p.Caption == id {
		p.Caption = 0
		return
	}
	if p.Credit == id {
		p.Credit = 0
		return
	}
	if i := indexOf(p.Children, id); i >= 0 {
		p.Children = append(p.Children[:i], p.Children[i+1:]...)
		return
	}
	for r, row := range p.Rows {
		if i := indexOf(row, id); i >= 0 {
			p.Rows[r] = append(row[:i], row[i+1:]...)
			return
		}
	}
}

// free deletes id and its descendants from the arena.
func (t *Tree) free(id NodeID) {
	n := t.nodes[id]
	if n == nil {
		return
	}
	for _, c := range t.childrenOf(n) {
		t.free(c)
	}
	delete(t.nodes, id)
	t.invalidate()
}

func (t *Tree) invalidate() {
	t.order = nil
	t.orderPos = nil
}

func indexOf(ids []NodeID, id NodeID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// Chunk is a section of a unit with its header breadcrumbs, used for search
// snippets and per-section word counts.
type Chunk struct {
	Text       string   // Plain text of the section
	Index      int      // Sequence number within the unit
	Breadcrumb []string // Header hierarchy, e.g. ["Parsing", "Lists"]
	Header     NodeID   // Header that opens the section, 0 for the preamble
	Words      int
}

// Words counts whitespace-separated words in s.
func Words(s string) int {
	return len(strings.Fields(s))
}
