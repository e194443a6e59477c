package parser

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// JSTSParser extracts classes, functions, and variables from JavaScript and
// TypeScript source. The two grammars share almost every node kind the
// extraction cares about, so one walker serves both — TypeScript's
// interfaces and type aliases are additionally folded into Class nodes
// (placeholder=false, treated as structural types for graph purposes).
type JSTSParser struct{}

func NewJSTSParser() *JSTSParser { return &JSTSParser{} }

func (p *JSTSParser) Language() string { return "javascript" }

func (p *JSTSParser) SupportedExtensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".mts", ".cts"}
}

func (p *JSTSParser) Parse(filePath string, source []byte) (*ParsedFile, error) {
	lang, grammar := jstsGrammarFor(filePath)

	parser := sitter.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("create tree-sitter parser")
	}
	defer parser.Close()

	if err := parser.SetLanguage(grammar); err != nil {
		return nil, fmt.Errorf("set %s grammar: %w", lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse source")
	}
	defer tree.Close()

	pf := &ParsedFile{FilePath: filePath, Language: lang}
	w := &jstsWalker{code: source, pf: pf, lang: lang, declared: make(map[int]map[string]int)}
	w.walk(tree.RootNode(), scope{functionIdx: -1, classIdx: -1})
	return pf, nil
}

func jstsGrammarFor(filePath string) (string, *sitter.Language) {
	if strings.HasSuffix(filePath, ".ts") || strings.HasSuffix(filePath, ".mts") || strings.HasSuffix(filePath, ".cts") {
		return "typescript", sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	}
	if strings.HasSuffix(filePath, ".tsx") {
		return "typescript", sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	}
	return "javascript", sitter.NewLanguage(tree_sitter_javascript.Language())
}

type jstsWalker struct {
	code     []byte
	pf       *ParsedFile
	lang     string
	declared map[int]map[string]int
}

func (w *jstsWalker) addEntity(e Entity) int {
	e.Language = w.lang
	e.FilePath = w.pf.FilePath
	w.pf.Entities = append(w.pf.Entities, e)
	return len(w.pf.Entities) - 1
}

func (w *jstsWalker) addEdge(edge EdgeRef) {
	w.pf.Edges = append(w.pf.Edges, edge)
}

func (w *jstsWalker) walk(node *sitter.Node, sc scope) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "class_declaration":
		w.walkClass(node, sc)
		return

	case "function_declaration":
		w.walkFunctionDeclaration(node, sc)
		return

	case "method_definition":
		w.walkMethod(node, sc)
		return

	case "arrow_function", "function_expression":
		w.walkArrowOrFunctionExpr(node, sc)
		return

	case "interface_declaration", "type_alias_declaration":
		w.walkTypeLike(node)
		return

	case "variable_declarator":
		w.walkVariableDeclarator(node, sc)

	case "assignment_expression":
		w.walkAssignmentExpression(node, sc)

	case "call_expression", "new_expression":
		w.walkCall(node, sc)

	case "throw_statement":
		w.walkThrow(node, sc)

	case "catch_clause":
		w.walkCatch(node, sc)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		w.walk(node.Child(uint(i)), sc)
	}
}

func (w *jstsWalker) walkClass(node *sitter.Node, sc scope) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	className := getNodeText(nameNode, w.code)

	idx := w.addEntity(Entity{Kind: KindClass, Name: className, StartLine: nodeLine(node), EndLine: nodeEndLine(node)})

	if heritage := node.ChildByFieldName("heritage"); heritage != nil {
		w.extractHeritage(heritage, idx, node)
	} else {
		// older grammar versions expose the extends clause as a direct child
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(uint(i))
			if child.Kind() == "class_heritage" {
				w.extractHeritage(child, idx, node)
			}
		}
	}

	classScope := scope{functionIdx: -1, classIdx: idx, className: className}
	if body := node.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			w.walk(body.Child(uint(i)), classScope)
		}
	}
}

func (w *jstsWalker) extractHeritage(heritage *sitter.Node, classIdx int, classNode *sitter.Node) {
	for i := uint(0); i < heritage.ChildCount(); i++ {
		child := heritage.Child(uint(i))
		if child.Kind() != "identifier" && child.Kind() != "member_expression" {
			continue
		}
		w.addEdge(EdgeRef{Kind: EdgeInheritsFrom, SrcIndex: classIdx, DstIndex: -1, TargetName: getNodeText(child, w.code), TargetHint: "class", Line: nodeLine(classNode)})
	}
}

func (w *jstsWalker) walkTypeLike(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	w.addEntity(Entity{Kind: KindClass, Name: getNodeText(nameNode, w.code), StartLine: nodeLine(node), EndLine: nodeEndLine(node)})
}

func (w *jstsWalker) walkFunctionDeclaration(node *sitter.Node, sc scope) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	funcName := getNodeText(nameNode, w.code)
	idx, params := w.newFunctionEntity(node, funcName, false, "")

	funcScope := scope{functionIdx: idx, classIdx: -1}
	w.walkParamsAndBody(node, params, idx, funcScope)
}

func (w *jstsWalker) walkMethod(node *sitter.Node, sc scope) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil || !sc.inClass() {
		return
	}
	methodName := getNodeText(nameNode, w.code)
	idx, params := w.newFunctionEntity(node, methodName, true, sc.className)

	funcScope := scope{functionIdx: idx, classIdx: sc.classIdx, className: sc.className}
	w.walkParamsAndBody(node, params, idx, funcScope)
}

func (w *jstsWalker) walkArrowOrFunctionExpr(node *sitter.Node, sc scope) {
	parent := node.Parent()
	funcName := "<anonymous>"
	if parent != nil {
		switch parent.Kind() {
		case "variable_declarator":
			if n := parent.ChildByFieldName("name"); n != nil {
				funcName = getNodeText(n, w.code)
			}
		case "assignment_expression":
			if n := parent.ChildByFieldName("left"); n != nil {
				funcName = getNodeText(n, w.code)
			}
		}
	}
	idx, params := w.newFunctionEntity(node, funcName, false, "")
	funcScope := scope{functionIdx: idx, classIdx: sc.classIdx, className: sc.className}
	w.walkParamsAndBody(node, params, idx, funcScope)
}

func (w *jstsWalker) newFunctionEntity(node *sitter.Node, name string, isMethod bool, className string) (int, *sitter.Node) {
	paramsNode := node.ChildByFieldName("parameters")
	params := ""
	if paramsNode != nil {
		params = getNodeText(paramsNode, w.code)
	}
	e := Entity{
		Kind:          KindFunction,
		Name:          name,
		StartLine:     nodeLine(node),
		EndLine:       nodeEndLine(node),
		Signature:     fmt.Sprintf("%s%s", name, params),
		ParametersStr: params,
		IsMethod:      isMethod,
		ClassName:     className,
	}
	idx := w.addEntity(e)
	w.declared[idx] = make(map[string]int)
	return idx, paramsNode
}

func (w *jstsWalker) walkParamsAndBody(node *sitter.Node, paramsNode *sitter.Node, idx int, funcScope scope) {
	if paramsNode != nil {
		w.extractParameters(paramsNode, idx)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		w.walk(body, funcScope)
	}
}

func (w *jstsWalker) extractParameters(paramsNode *sitter.Node, funcIdx int) {
	for i := uint(0); i < paramsNode.ChildCount(); i++ {
		child := paramsNode.Child(uint(i))
		var nameNode *sitter.Node
		switch child.Kind() {
		case "identifier", "required_parameter", "optional_parameter":
			nameNode = child
			if child.Kind() != "identifier" {
				if n := child.ChildByFieldName("pattern"); n != nil {
					nameNode = n
				}
			}
		case "assignment_pattern":
			nameNode = child.ChildByFieldName("left")
		default:
			continue
		}
		if nameNode == nil {
			continue
		}
		paramName := getNodeText(nameNode, w.code)
		if paramName == "" || paramName == "this" {
			continue
		}
		varIdx := w.addEntity(Entity{Kind: KindVariable, Name: paramName, ScopeType: ScopeParameter, StartLine: nodeLine(child), EndLine: nodeEndLine(child)})
		w.addEdge(EdgeRef{Kind: EdgeHasParameter, SrcIndex: funcIdx, DstIndex: varIdx, TargetName: paramName, Line: nodeLine(child)})
	}
}

func (w *jstsWalker) walkVariableDeclarator(node *sitter.Node, sc scope) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil || nameNode.Kind() != "identifier" {
		return
	}
	if !sc.inFunction() {
		return
	}
	name := getNodeText(nameNode, w.code)
	seen := w.declared[sc.functionIdx]
	if seen == nil {
		seen = make(map[string]int)
		w.declared[sc.functionIdx] = seen
	}
	if _, ok := seen[name]; ok {
		return
	}
	varIdx := w.addEntity(Entity{Kind: KindVariable, Name: name, ScopeType: ScopeLocalVariable, StartLine: nodeLine(node), EndLine: nodeLine(node)})
	seen[name] = varIdx
	w.addEdge(EdgeRef{Kind: EdgeDeclaresVariable, SrcIndex: sc.functionIdx, DstIndex: varIdx, TargetName: name, Line: nodeLine(node)})
}

func (w *jstsWalker) walkAssignmentExpression(node *sitter.Node, sc scope) {
	left := node.ChildByFieldName("left")
	if left == nil {
		return
	}

	if left.Kind() == "member_expression" {
		obj := left.ChildByFieldName("object")
		prop := left.ChildByFieldName("property")
		if obj == nil || prop == nil || getNodeText(obj, w.code) != "this" || !sc.inClass() || sc.classIdx < 0 {
			return
		}
		attrName := getNodeText(prop, w.code)
		varIdx := w.addEntity(Entity{Kind: KindVariable, Name: attrName, ScopeType: ScopeClassAttribute, StartLine: nodeLine(node), EndLine: nodeLine(node)})
		w.addEdge(EdgeRef{Kind: EdgeDeclaresAttribute, SrcIndex: sc.classIdx, DstIndex: varIdx, TargetName: attrName, Line: nodeLine(node)})
		return
	}

	if left.Kind() != "identifier" || !sc.inFunction() {
		return
	}
	name := getNodeText(left, w.code)
	seen := w.declared[sc.functionIdx]
	if seen == nil {
		seen = make(map[string]int)
		w.declared[sc.functionIdx] = seen
	}
	if idx, ok := seen[name]; ok {
		w.addEdge(EdgeRef{Kind: EdgeModifiesVariable, SrcIndex: sc.functionIdx, DstIndex: idx, TargetName: name, TargetHint: "variable", Line: nodeLine(node), ModificationType: "assign"})
	}
}

func (w *jstsWalker) walkCall(node *sitter.Node, sc scope) {
	if !sc.inFunction() {
		return
	}
	callee := node.ChildByFieldName("function")
	if callee == nil {
		callee = node.ChildByFieldName("constructor")
	}
	if callee == nil {
		return
	}

	var target string
	switch callee.Kind() {
	case "identifier":
		target = getNodeText(callee, w.code)
	case "member_expression":
		obj := callee.ChildByFieldName("object")
		prop := callee.ChildByFieldName("property")
		if prop == nil {
			return
		}
		if obj != nil && getNodeText(obj, w.code) == "this" {
			target = getNodeText(prop, w.code)
		} else {
			target = getNodeText(callee, w.code)
		}
	default:
		return
	}
	if target == "" {
		return
	}

	if node.Kind() == "new_expression" || isLikelyClassName(target) {
		w.addEdge(EdgeRef{Kind: EdgeCreatesObject, SrcIndex: sc.functionIdx, DstIndex: -1, TargetName: target, TargetHint: "class", Line: nodeLine(node)})
		return
	}
	w.addEdge(EdgeRef{Kind: EdgeCalls, SrcIndex: sc.functionIdx, DstIndex: -1, TargetName: target, TargetHint: "function", Line: nodeLine(node)})
}

func (w *jstsWalker) walkThrow(node *sitter.Node, sc scope) {
	if !sc.inFunction() {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(uint(i))
		var name string
		switch child.Kind() {
		case "new_expression":
			if c := child.ChildByFieldName("constructor"); c != nil {
				name = getNodeText(c, w.code)
			}
		case "identifier":
			name = getNodeText(child, w.code)
		}
		if name == "" {
			continue
		}
		w.addEdge(EdgeRef{Kind: EdgeRaisesException, SrcIndex: sc.functionIdx, DstIndex: -1, TargetName: name, TargetHint: "exception", Line: nodeLine(node)})
		return
	}
}

func (w *jstsWalker) walkCatch(node *sitter.Node, sc scope) {
	if !sc.inFunction() {
		return
	}
	param := node.ChildByFieldName("parameter")
	if param == nil {
		return
	}
	w.addEdge(EdgeRef{Kind: EdgeHandlesException, SrcIndex: sc.functionIdx, DstIndex: -1, TargetName: "Error", TargetHint: "exception", Line: nodeLine(node)})
	_ = param
}
