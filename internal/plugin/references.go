package plugin

// ReferenceExtractor walks a parsed tree looking for call/import/inherit/
// implement sites, using the same declarative node-type tables
// SymbolExtractor uses for symbols (§4.2).
type ReferenceExtractor struct {
	registry *LanguageRegistry
}

// NewReferenceExtractor creates a reference extractor over the default registry.
func NewReferenceExtractor() *ReferenceExtractor {
	return &ReferenceExtractor{registry: DefaultRegistry()}
}

// NewReferenceExtractorWithRegistry creates a reference extractor over a custom registry.
func NewReferenceExtractorWithRegistry(registry *LanguageRegistry) *ReferenceExtractor {
	return &ReferenceExtractor{registry: registry}
}

// Extract walks tree and returns every reference site it recognizes.
// References are best-effort: TargetQualifiedName is the bare identifier
// text at the reference site, not a resolved qualified name, since resolving
// across files requires the symbol store (C4). SameFileTarget is left empty
// here; ResolveSameFileTargets fills it in once the file's own symbols are
// known.
func (e *ReferenceExtractor) Extract(tree *Tree, source []byte) []*Reference {
	if tree == nil || tree.Root == nil {
		return []*Reference{}
	}
	config, ok := e.registry.GetByName(tree.Language)
	if !ok {
		return []*Reference{}
	}

	var refs []*Reference
	// Python's argument_list names base classes only under class_definition;
	// a call's argument_list is skipped so its arguments are not inherit sites.
	callArgs := make(map[*Node]bool)
	tree.Root.Walk(func(n *Node) bool {
		if tree.Language == "python" && n.Type == "call" {
			if args := n.FindChildByType("argument_list"); args != nil {
				callArgs[args] = true
			}
		}
		if callArgs[n] {
			return true
		}
		if ref := e.extractReferenceFromNode(n, source, config, tree.Language); ref != nil {
			refs = append(refs, ref)
		}
		return true
	})
	return refs
}

func (e *ReferenceExtractor) extractReferenceFromNode(n *Node, source []byte, config *LanguageConfig, language string) *Reference {
	kind, ok := classifyReferenceNode(n.Type, config)
	if !ok {
		return nil
	}

	target := e.extractReferenceTarget(n, source, kind, language)
	if target == "" {
		return nil
	}

	return &Reference{
		TargetQualifiedName: target,
		ByteRange:           ByteRange{Start: n.StartByte, End: n.EndByte},
		Line:                int(n.StartPoint.Row) + 1,
		Kind:                kind,
	}
}

func classifyReferenceNode(nodeType string, config *LanguageConfig) (ReferenceKind, bool) {
	for _, t := range config.CallTypes {
		if nodeType == t {
			return ReferenceCall, true
		}
	}
	for _, t := range config.ImportTypes {
		if nodeType == t {
			return ReferenceImport, true
		}
	}
	for _, t := range config.InheritTypes {
		if nodeType == t {
			return ReferenceInherit, true
		}
	}
	for _, t := range config.ImplementTypes {
		if nodeType == t {
			return ReferenceImplement, true
		}
	}
	return "", false
}

// extractReferenceTarget finds the identifier text naming what a reference
// site points at. Best-effort: a call expression's target is its callee's
// rightmost identifier/field_identifier child (so `pkg.Foo()` resolves to "Foo",
// not "pkg"), which matches how Symbol.Name is recorded for the declaration
// side.
func (e *ReferenceExtractor) extractReferenceTarget(n *Node, source []byte, kind ReferenceKind, language string) string {
	switch kind {
	case ReferenceCall:
		return callTargetName(n, source, language)
	case ReferenceImport:
		return importTargetName(n, source, language)
	case ReferenceInherit, ReferenceImplement:
		return inheritTargetName(n, source, language)
	}
	return ""
}

func callTargetName(n *Node, source []byte, language string) string {
	if len(n.Children) == 0 {
		return ""
	}
	callee := n.Children[0]
	// Unwrap member/selector expressions (pkg.Foo, obj.method()) down to the
	// rightmost identifier, which is the thing actually being invoked.
	for {
		switch callee.Type {
		case "selector_expression", "member_expression", "attribute":
			if len(callee.Children) == 0 {
				return ""
			}
			callee = callee.Children[len(callee.Children)-1]
			continue
		}
		break
	}
	switch callee.Type {
	case "identifier", "field_identifier", "property_identifier":
		return callee.GetContent(source)
	}
	return ""
}

func importTargetName(n *Node, source []byte, language string) string {
	switch language {
	case "go":
		if path := n.FindChildByType("interpreted_string_literal"); path != nil {
			return path.GetContent(source)
		}
	case "python":
		if name := n.FindChildByType("dotted_name"); name != nil {
			return name.GetContent(source)
		}
		if name := n.FindChildByType("identifier"); name != nil {
			return name.GetContent(source)
		}
	case "typescript", "tsx", "javascript", "jsx":
		if path := n.FindChildByType("string"); path != nil {
			return path.GetContent(source)
		}
	}
	return n.GetContent(source)
}

func inheritTargetName(n *Node, source []byte, language string) string {
	for _, child := range n.Children {
		switch child.Type {
		case "identifier", "type_identifier":
			return child.GetContent(source)
		}
	}
	return ""
}

// ResolveSameFileTargets fills in Reference.SameFileTarget for every
// reference whose TargetQualifiedName matches a symbol declared in the same
// file, by bare name or qualified name. References that resolve to nothing
// in this file are left for the symbol store to attempt a cross-file
// lookup.
func ResolveSameFileTargets(symbols []*Symbol, refs []*Reference) {
	byName := make(map[string]string, len(symbols))
	for _, s := range symbols {
		byName[s.Name] = s.QualifiedName
		byName[s.QualifiedName] = s.QualifiedName
	}
	for _, r := range refs {
		if qn, ok := byName[r.TargetQualifiedName]; ok {
			r.SameFileTarget = qn
		}
	}
}
