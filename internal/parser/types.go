// Package parser implements the per-language parser registry: each parser
// turns a file's source bytes into a uniform ParsedFile record of entity and
// edge contributions, deferring cross-file symbol resolution to the CKG
// Builder.
package parser

import "time"

// EntityKind identifies a CKG node kind a parser can contribute.
type EntityKind string

const (
	KindClass         EntityKind = "Class"
	KindFunction      EntityKind = "Function"
	KindVariable      EntityKind = "Variable"
	KindDecorator     EntityKind = "Decorator"
	KindExceptionType EntityKind = "ExceptionType"
)

// ScopeType classifies a Variable entity by its declaration site.
type ScopeType string

const (
	ScopeParameter      ScopeType = "parameter"
	ScopeLocalVariable  ScopeType = "local_variable"
	ScopeGlobalVariable ScopeType = "global_variable"
	ScopeClassAttribute ScopeType = "class_attribute"
)

// Entity is a single node contribution extracted from one file. Not every
// field applies to every Kind — see the per-kind comments below.
type Entity struct {
	Kind      EntityKind
	Name      string
	FilePath  string
	StartLine int
	EndLine   int

	// Function-only.
	Signature     string
	ParametersStr string
	IsMethod      bool
	ClassName     string // owning class name, when IsMethod

	// Variable-only.
	ScopeType ScopeType

	Language string
}

// EdgeKind identifies a CKG edge kind a parser can contribute.
type EdgeKind string

const (
	EdgeHasParameter      EdgeKind = "HAS_PARAMETER"
	EdgeDeclaresVariable  EdgeKind = "DECLARES_VARIABLE"
	EdgeDeclaresAttribute EdgeKind = "DECLARES_ATTRIBUTE"
	EdgeCalls             EdgeKind = "CALLS"
	EdgeInheritsFrom      EdgeKind = "INHERITS_FROM"
	EdgeUsesVariable      EdgeKind = "USES_VARIABLE"
	EdgeModifiesVariable  EdgeKind = "MODIFIES_VARIABLE"
	EdgeCreatesObject     EdgeKind = "CREATES_OBJECT"
	EdgeRaisesException   EdgeKind = "RAISES_EXCEPTION"
	EdgeHandlesException  EdgeKind = "HANDLES_EXCEPTION"
	EdgeDecoratedBy       EdgeKind = "DECORATED_BY"
)

// EdgeRef is an edge contribution from one file. The source is always
// identified by its position in ParsedFile.Entities. The target is either:
//   - DstIndex >= 0: another entity produced by this same file (e.g. a
//     parameter Variable just created) — no cross-file resolution needed.
//   - DstIndex == -1: a symbolic reference by TargetName/TargetHint — the
//     CKG Builder resolves it against the project's symbol index, or
//     materializes a placeholder when resolution is exhausted.
type EdgeRef struct {
	Kind             EdgeKind
	SrcIndex         int
	DstIndex         int
	TargetName       string
	TargetHint       string // "function", "class", "variable", "exception"
	Line             int
	ModificationType string // MODIFIES_VARIABLE only: "assign", "augmented_assign"
}

// ParsedFile is the uniform output of any language parser for one file.
type ParsedFile struct {
	FilePath    string
	Language    string
	ContentHash string
	SizeBytes   int64
	Entities    []Entity
	Edges       []EdgeRef
	Errors      []string
	ParsedAt    time.Time
}

// HasEntities reports whether the file yielded any recognizable symbol —
// used by the Builder to decide whether a bare File node is all that's
// warranted.
func (pf *ParsedFile) HasEntities() bool {
	return len(pf.Entities) > 0
}
