package doctree

// Observer is notified synchronously when a unit finishes parsing and after
// every successful mutation. Callbacks run after the tree lock is released,
// so they may read the tree.
type Observer interface {
	UnitParsed(t *Tree)
	TreeMutated(t *Tree, op string)
}

// Mutation operation names passed to TreeMutated.
const (
	OpInsert = "insert"
	OpDelete = "delete"
	OpSplit  = "split"
	OpFormat = "format"
	OpLevel  = "level"
)

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Parsed  func(t *Tree)
	Mutated func(t *Tree, op string)
}

func (o ObserverFuncs) UnitParsed(t *Tree) {
	if o.Parsed != nil {
		o.Parsed(t)
	}
}

func (o ObserverFuncs) TreeMutated(t *Tree, op string) {
	if o.Mutated != nil {
		o.Mutated(t, op)
	}
}

func (t *Tree) notifyMutated(op string) {
	t.mu.RLock()
	obs := append([]Observer(nil), t.observers...)
	t.mu.RUnlock()
	for _, o := range obs {
		o.TreeMutated(t, op)
	}
}
