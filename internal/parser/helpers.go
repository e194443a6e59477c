package parser

import sitter "github.com/tree-sitter/go-tree-sitter"

// getNodeText extracts the source text spanned by a node via its byte
// offsets into the original buffer.
func getNodeText(node *sitter.Node, code []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if int(end) > len(code) {
		end = uint(len(code))
	}
	return string(code[start:end])
}

func nodeLine(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

func nodeEndLine(node *sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}

// scope tracks the lexically-enclosing Function/Class while walking a tree,
// so declarations and references can be tagged with the right scope_type and
// attributed to the right owning entity.
type scope struct {
	functionIdx int // index into the in-progress Entities slice, -1 if none
	classIdx    int // index of the enclosing class entity, -1 if none
	className   string
}

func (s scope) inFunction() bool { return s.functionIdx >= 0 }
func (s scope) inClass() bool    { return s.className != "" }
