package parser

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// PythonParser extracts classes, functions, variables, decorators, and
// exception references from Python source via tree-sitter-python.
type PythonParser struct{}

func NewPythonParser() *PythonParser { return &PythonParser{} }

func (p *PythonParser) Language() string { return "python" }

func (p *PythonParser) SupportedExtensions() []string {
	return []string{".py", ".pyi", ".pyw"}
}

func (p *PythonParser) Parse(filePath string, source []byte) (*ParsedFile, error) {
	parser := sitter.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("create tree-sitter parser")
	}
	defer parser.Close()

	lang := sitter.NewLanguage(tree_sitter_python.Language())
	if err := parser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("set python grammar: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse source")
	}
	defer tree.Close()

	pf := &ParsedFile{FilePath: filePath, Language: "python"}
	w := &pyWalker{code: source, pf: pf, declared: make(map[int]map[string]int)}
	w.walk(tree.RootNode(), scope{functionIdx: -1, classIdx: -1})
	return pf, nil
}

type pyWalker struct {
	code []byte
	pf   *ParsedFile
	// declared tracks, per owning function entity index, the Variable
	// entity index for each name already declared — the first assignment
	// to a name declares it, later ones modify it.
	declared map[int]map[string]int
}

func (w *pyWalker) addEntity(e Entity) int {
	e.Language = "python"
	e.FilePath = w.pf.FilePath
	w.pf.Entities = append(w.pf.Entities, e)
	return len(w.pf.Entities) - 1
}

func (w *pyWalker) addEdge(edge EdgeRef) {
	w.pf.Edges = append(w.pf.Edges, edge)
}

func (w *pyWalker) walk(node *sitter.Node, sc scope) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "decorated_definition":
		w.walkDecoratedDefinition(node, sc)
		return

	case "class_definition":
		w.walkClassDefinition(node, sc)
		return

	case "function_definition":
		w.walkFunctionDefinition(node, sc)
		return

	case "assignment":
		w.walkAssignment(node, sc)

	case "call":
		w.walkCall(node, sc)

	case "raise_statement":
		w.walkRaise(node, sc)

	case "except_clause":
		w.walkExceptClause(node, sc)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		w.walk(node.Child(uint(i)), sc)
	}
}

func (w *pyWalker) walkDecoratedDefinition(node *sitter.Node, sc scope) {
	var decoratorNames []string
	var defNode *sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "decorator":
			decoratorNames = append(decoratorNames, decoratorName(child, w.code))
		case "function_definition", "class_definition":
			defNode = child
		}
	}
	if defNode == nil {
		return
	}

	var idx int
	var ok bool
	if defNode.Kind() == "function_definition" {
		idx, ok = w.walkFunctionDefinition(defNode, sc)
	} else {
		idx, ok = w.walkClassDefinition(defNode, sc)
	}
	if !ok {
		return
	}
	for _, name := range decoratorNames {
		if name == "" {
			continue
		}
		w.addEdge(EdgeRef{Kind: EdgeDecoratedBy, SrcIndex: idx, DstIndex: -1, TargetName: name, TargetHint: "decorator", Line: nodeLine(node)})
	}
}

func decoratorName(node *sitter.Node, code []byte) string {
	// decorator := "@" (identifier | attribute | call)
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(uint(i))
		switch child.Kind() {
		case "identifier", "attribute":
			return getNodeText(child, code)
		case "call":
			fn := child.ChildByFieldName("function")
			if fn != nil {
				return getNodeText(fn, code)
			}
		}
	}
	return ""
}

func (w *pyWalker) walkClassDefinition(node *sitter.Node, sc scope) (int, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return 0, false
	}
	className := getNodeText(nameNode, w.code)

	idx := w.addEntity(Entity{
		Kind:      KindClass,
		Name:      className,
		StartLine: nodeLine(node),
		EndLine:   nodeEndLine(node),
	})

	if superclasses := node.ChildByFieldName("superclasses"); superclasses != nil {
		for i := uint(0); i < superclasses.ChildCount(); i++ {
			arg := superclasses.Child(uint(i))
			if arg.Kind() != "identifier" && arg.Kind() != "attribute" {
				continue
			}
			w.addEdge(EdgeRef{Kind: EdgeInheritsFrom, SrcIndex: idx, DstIndex: -1, TargetName: getNodeText(arg, w.code), TargetHint: "class", Line: nodeLine(node)})
		}
	}

	classScope := scope{functionIdx: -1, classIdx: idx, className: className}
	if body := node.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			w.walk(body.Child(uint(i)), classScope)
		}
	}
	return idx, true
}

func (w *pyWalker) walkFunctionDefinition(node *sitter.Node, sc scope) (int, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return 0, false
	}
	funcName := getNodeText(nameNode, w.code)
	paramsNode := node.ChildByFieldName("parameters")
	params := ""
	if paramsNode != nil {
		params = getNodeText(paramsNode, w.code)
	}

	isMethod := sc.inClass()
	entity := Entity{
		Kind:          KindFunction,
		Name:          funcName,
		StartLine:     nodeLine(node),
		EndLine:       nodeEndLine(node),
		Signature:     fmt.Sprintf("def %s%s", funcName, params),
		ParametersStr: params,
		IsMethod:      isMethod,
	}
	if isMethod {
		entity.ClassName = sc.className
	}
	idx := w.addEntity(entity)
	w.declared[idx] = make(map[string]int)

	if paramsNode != nil {
		w.extractParameters(paramsNode, idx)
	}

	funcScope := scope{functionIdx: idx, classIdx: sc.classIdx, className: sc.className}
	if body := node.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			w.walk(body.Child(uint(i)), funcScope)
		}
	}
	return idx, true
}

func (w *pyWalker) extractParameters(paramsNode *sitter.Node, funcIdx int) {
	for i := uint(0); i < paramsNode.ChildCount(); i++ {
		child := paramsNode.Child(uint(i))
		var nameNode *sitter.Node
		switch child.Kind() {
		case "identifier":
			nameNode = child
		case "typed_parameter", "default_parameter", "typed_default_parameter":
			nameNode = child.ChildByFieldName("name")
			if nameNode == nil {
				nameNode = child.Child(0)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			nameNode = child.Child(1) // skip the * or ** token
		default:
			continue
		}
		if nameNode == nil {
			continue
		}
		paramName := getNodeText(nameNode, w.code)
		if paramName == "" || paramName == "self" || paramName == "cls" {
			continue
		}
		varIdx := w.addEntity(Entity{
			Kind:      KindVariable,
			Name:      paramName,
			ScopeType: ScopeParameter,
			StartLine: nodeLine(child),
			EndLine:   nodeEndLine(child),
		})
		w.addEdge(EdgeRef{Kind: EdgeHasParameter, SrcIndex: funcIdx, DstIndex: varIdx, TargetName: paramName, Line: nodeLine(child)})
	}
}

func (w *pyWalker) walkAssignment(node *sitter.Node, sc scope) {
	left := node.ChildByFieldName("left")
	if left == nil {
		return
	}

	var targetName string
	scopeType := ScopeLocalVariable
	switch left.Kind() {
	case "identifier":
		targetName = getNodeText(left, w.code)
	case "attribute":
		obj := left.ChildByFieldName("object")
		attr := left.ChildByFieldName("attribute")
		if obj == nil || attr == nil || getNodeText(obj, w.code) != "self" {
			return
		}
		targetName = getNodeText(attr, w.code)
		scopeType = ScopeClassAttribute
	default:
		return
	}
	if targetName == "" {
		return
	}

	if scopeType == ScopeClassAttribute {
		if !sc.inClass() || sc.classIdx < 0 {
			return
		}
		varIdx := w.addEntity(Entity{Kind: KindVariable, Name: targetName, ScopeType: ScopeClassAttribute, StartLine: nodeLine(node), EndLine: nodeLine(node)})
		w.addEdge(EdgeRef{Kind: EdgeDeclaresAttribute, SrcIndex: sc.classIdx, DstIndex: varIdx, TargetName: targetName, Line: nodeLine(node)})
		return
	}

	if !sc.inFunction() {
		return // module-level globals are out of scope for this extraction pass
	}

	seen := w.declared[sc.functionIdx]
	if seen == nil {
		seen = make(map[string]int)
		w.declared[sc.functionIdx] = seen
	}

	if existingIdx, ok := seen[targetName]; ok {
		w.addEdge(EdgeRef{Kind: EdgeModifiesVariable, SrcIndex: sc.functionIdx, DstIndex: existingIdx, TargetName: targetName, TargetHint: "variable", Line: nodeLine(node), ModificationType: "assign"})
		return
	}
	varIdx := w.addEntity(Entity{Kind: KindVariable, Name: targetName, ScopeType: ScopeLocalVariable, StartLine: nodeLine(node), EndLine: nodeLine(node)})
	seen[targetName] = varIdx
	w.addEdge(EdgeRef{Kind: EdgeDeclaresVariable, SrcIndex: sc.functionIdx, DstIndex: varIdx, TargetName: targetName, Line: nodeLine(node)})
}

func (w *pyWalker) walkCall(node *sitter.Node, sc scope) {
	if !sc.inFunction() {
		return
	}
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	var target string
	switch fn.Kind() {
	case "identifier":
		target = getNodeText(fn, w.code)
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		obj := fn.ChildByFieldName("object")
		if attr == nil {
			return
		}
		if obj != nil && getNodeText(obj, w.code) == "self" {
			target = getNodeText(attr, w.code)
		} else {
			target = getNodeText(fn, w.code)
		}
	default:
		return
	}
	if target == "" {
		return
	}

	if isLikelyClassName(target) {
		w.addEdge(EdgeRef{Kind: EdgeCreatesObject, SrcIndex: sc.functionIdx, DstIndex: -1, TargetName: target, TargetHint: "class", Line: nodeLine(node)})
		return
	}
	w.addEdge(EdgeRef{Kind: EdgeCalls, SrcIndex: sc.functionIdx, DstIndex: -1, TargetName: target, TargetHint: "function", Line: nodeLine(node)})
}

func (w *pyWalker) walkRaise(node *sitter.Node, sc scope) {
	if !sc.inFunction() {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(uint(i))
		var name string
		switch child.Kind() {
		case "call":
			fn := child.ChildByFieldName("function")
			if fn != nil {
				name = getNodeText(fn, w.code)
			}
		case "identifier", "attribute":
			name = getNodeText(child, w.code)
		}
		if name == "" {
			continue
		}
		w.addEdge(EdgeRef{Kind: EdgeRaisesException, SrcIndex: sc.functionIdx, DstIndex: -1, TargetName: name, TargetHint: "exception", Line: nodeLine(node)})
		return
	}
}

func (w *pyWalker) walkExceptClause(node *sitter.Node, sc scope) {
	if !sc.inFunction() {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(uint(i))
		if child.Kind() != "identifier" && child.Kind() != "attribute" && child.Kind() != "tuple" {
			continue
		}
		text := strings.Trim(getNodeText(child, w.code), "()")
		for _, name := range strings.Split(text, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			w.addEdge(EdgeRef{Kind: EdgeHandlesException, SrcIndex: sc.functionIdx, DstIndex: -1, TargetName: name, TargetHint: "exception", Line: nodeLine(node)})
		}
		return
	}
}

func isLikelyClassName(name string) bool {
	if name == "" {
		return false
	}
	// take the last dotted segment (e.g. "pkg.Foo" -> "Foo")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name[0] >= 'A' && name[0] <= 'Z'
}
