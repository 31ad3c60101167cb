// Package parseradapter wraps an incremental tree-sitter parser behind a
// byte-accurate, language-agnostic node cursor. Language plugins (internal/plugin)
// own one adapter instance per grammar and never touch go-tree-sitter directly.
package parseradapter

// Tree is a parsed AST over a byte slice. It is immutable; Reparse produces a
// new Tree, reusing unchanged subtrees from the previous one where possible.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node is one AST node with byte-accurate ranges. Ranges are byte offsets
// into Tree.Source; line/column are tree-sitter's points, which count rows
// by newline bytes and columns in bytes, so tab width and multi-byte runes
// do not change them.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point is a 0-indexed line/column position (column in bytes), as reported
// by tree-sitter for a node's start or end byte.
type Point struct {
	Row    uint32
	Column uint32
}

// Edit describes a single byte-range replacement applied before a reparse.
type Edit struct {
	StartByte  uint32
	OldEndByte uint32
	NewEndByte uint32
}

// Capture is one named match produced by a tree-sitter query pattern,
// exposed to plugins so symbol-extraction rules can be declared data-driven
// (a pattern + which capture names map to name/signature/range) instead of
// walking the tree by hand for every language.
type Capture struct {
	Name string
	Node *Node
}

// GetContent returns the source content for a node.
func (n *Node) GetContent(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FindChildByType finds the first child with the given type.
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, child := range n.Children {
		if child.Type == nodeType {
			return child
		}
	}
	return nil
}

// FindChildrenByType finds all children with the given type (non-recursive).
func (n *Node) FindChildrenByType(nodeType string) []*Node {
	var result []*Node
	for _, child := range n.Children {
		if child.Type == nodeType {
			result = append(result, child)
		}
	}
	return result
}

// FindAllByType recursively finds all nodes with the given type.
func (n *Node) FindAllByType(nodeType string) []*Node {
	var result []*Node
	if n.Type == nodeType {
		result = append(result, n)
	}
	for _, child := range n.Children {
		result = append(result, child.FindAllByType(nodeType)...)
	}
	return result
}

// Walk traverses the tree depth-first, calling fn for each node. Returning
// false from fn skips that node's children; the walk goes on with the
// node's siblings.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}
