package parseradapter

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Grammar names a tree-sitter grammar the adapter can load.
type Grammar struct {
	Name string
	TS   *sitter.Language
}

// Adapter wraps one tree-sitter parser instance for one grammar. It is not
// safe for concurrent use; the plugin dispatcher (internal/plugin) wraps
// non-reentrant adapters behind a per-instance queue (§4.3).
type Adapter struct {
	parser   *sitter.Parser
	grammar  Grammar
	lastTree *sitter.Tree
}

// ErrParserUnavailable is returned when the grammar failed to load; callers
// must degrade to lexical mode rather than treat this as a transient error.
var ErrParserUnavailable = fmt.Errorf("parseradapter: parser unavailable")

// New creates an adapter bound to a single grammar.
func New(grammar Grammar) (*Adapter, error) {
	if grammar.TS == nil {
		return nil, ErrParserUnavailable
	}
	p := sitter.NewParser()
	p.SetLanguage(grammar.TS)
	return &Adapter{parser: p, grammar: grammar}, nil
}

// Close releases the underlying tree-sitter parser.
func (a *Adapter) Close() {
	if a.parser != nil {
		a.parser.Close()
	}
}

// Parse parses source bytes from scratch. It never panics on invalid syntax:
// malformed input yields a tree with explicit error nodes (HasError=true)
// rather than an error return, per §4.1(a).
func (a *Adapter) Parse(ctx context.Context, source []byte) (*Tree, error) {
	tsTree, err := a.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parseradapter: parse: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("parseradapter: parse: nil tree")
	}
	a.lastTree = tsTree
	return &Tree{
		Root:     convertNode(tsTree.RootNode()),
		Source:   source,
		Language: a.grammar.Name,
	}, nil
}

// Reparse applies a byte-range edit to the previously parsed tree and
// reparses, letting tree-sitter reuse unchanged subtrees (§4.1(b)). Callers
// must have applied the same edit to newSource that edit.StartByte..OldEndByte
// describes. If no previous tree exists, Reparse behaves like Parse.
func (a *Adapter) Reparse(ctx context.Context, edit Edit, newSource []byte) (*Tree, error) {
	if a.lastTree == nil {
		return a.Parse(ctx, newSource)
	}
	a.lastTree.Edit(sitter.EditInput{
		StartIndex:  edit.StartByte,
		OldEndIndex: edit.OldEndByte,
		NewEndIndex: edit.NewEndByte,
	})
	tsTree, err := a.parser.ParseCtx(ctx, a.lastTree, newSource)
	if err != nil {
		return nil, fmt.Errorf("parseradapter: reparse: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("parseradapter: reparse: nil tree")
	}
	a.lastTree = tsTree
	return &Tree{
		Root:     convertNode(tsTree.RootNode()),
		Source:   newSource,
		Language: a.grammar.Name,
	}, nil
}

// Query runs a tree-sitter S-expression query pattern against source and
// returns every named capture, letting plugins declare symbol-extraction
// rules declaratively instead of walking the tree by hand (§4.1(c)).
func (a *Adapter) Query(pattern string, source []byte) ([]Capture, error) {
	q, err := sitter.NewQuery([]byte(pattern), a.grammar.TS)
	if err != nil {
		return nil, fmt.Errorf("parseradapter: invalid query: %w", err)
	}
	defer q.Close()

	tsTree, err := a.parser.ParseCtx(context.Background(), nil, source)
	if err != nil || tsTree == nil {
		return nil, fmt.Errorf("parseradapter: query parse failed: %w", err)
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, tsTree.RootNode())

	var captures []Capture
	for {
		m, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			captures = append(captures, Capture{
				Name: q.CaptureNameForId(c.Index),
				Node: convertNode(c.Node),
			})
		}
	}
	return captures, nil
}

func convertNode(tsNode *sitter.Node) *Node {
	if tsNode == nil {
		return nil
	}
	node := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartPoint: Point{
			Row:    tsNode.StartPoint().Row,
			Column: tsNode.StartPoint().Column,
		},
		EndPoint: Point{
			Row:    tsNode.EndPoint().Row,
			Column: tsNode.EndPoint().Column,
		},
		HasError: tsNode.HasError(),
		Children: make([]*Node, 0, int(tsNode.ChildCount())),
	}
	for i := uint32(0); i < tsNode.ChildCount(); i++ {
		child := tsNode.Child(int(i))
		if child != nil {
			node.Children = append(node.Children, convertNode(child))
		}
	}
	return node
}
