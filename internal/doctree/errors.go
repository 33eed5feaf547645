package doctree

import "errors"

// Usage errors returned by tree operations. Structural problems in the
// source are never reported this way; they become Error nodes.
var (
	// ErrNotParsed indicates an operation on a tree that has not finished parsing.
	ErrNotParsed = errors.New("tree not parsed")

	// ErrInvalidCaret indicates a caret that is not on a Text node or is out of range.
	ErrInvalidCaret = errors.New("invalid caret")

	// ErrUnsupportedSelection indicates a selection the operation cannot apply to,
	// such as one spanning blocks that cannot be merged.
	ErrUnsupportedSelection = errors.New("unsupported selection")

	// ErrInvalidFormat indicates a format delimiter other than "*", "_", "`" or "".
	ErrInvalidFormat = errors.New("invalid format delimiter")

	// ErrNotFound indicates a node ID that does not exist in the tree.
	ErrNotFound = errors.New("node not found")
)
