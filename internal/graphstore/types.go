// Package graphstore is the thin abstraction over the property-graph
// backend: composite-key upserts, bulk transactions, and targeted deletes,
// with no query language leaked to callers.
package graphstore

import "time"

// NodeKind identifies a CKG node label.
type NodeKind string

const (
	KindProject       NodeKind = "Project"
	KindFile          NodeKind = "File"
	KindModule        NodeKind = "Module"
	KindClass         NodeKind = "Class"
	KindFunction      NodeKind = "Function"
	KindVariable      NodeKind = "Variable"
	KindDecorator     NodeKind = "Decorator"
	KindExceptionType NodeKind = "ExceptionType"
)

// EdgeKind identifies a CKG edge label.
type EdgeKind string

const (
	EdgeBelongsTo         EdgeKind = "BELONGS_TO"
	EdgeDefinedIn         EdgeKind = "DEFINED_IN"
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

// uniqueKeyByKind maps a node kind to the property MERGE matches on. Every
// node kind is keyed by its composite ID except Project, which is keyed by
// graph_id (projects are created once, outside the per-file upsert path).
var uniqueKeyByKind = map[NodeKind]string{
	KindProject:       "graph_id",
	KindFile:          "composite_id",
	KindModule:        "composite_id",
	KindClass:         "composite_id",
	KindFunction:      "composite_id",
	KindVariable:      "composite_id",
	KindDecorator:     "composite_id",
	KindExceptionType: "composite_id",
}

// UniqueKey returns the property MERGE matches on for a node kind.
func UniqueKey(kind NodeKind) string {
	if k, ok := uniqueKeyByKind[kind]; ok {
		return k
	}
	return "composite_id"
}

// Node is a single graph node write: kind, the value of its unique key, and
// its full property set (including the unique key itself, so a single
// upsert_node call is self-contained).
type Node struct {
	Kind       NodeKind
	ID         string // value of the kind's unique key
	Properties map[string]any
}

// Edge is a single directed graph edge write, referencing endpoints by
// (kind, unique-key-value) pairs rather than opaque internal IDs.
// UpsertBatch writes a batch's nodes before its edges; an edge whose
// endpoint node does not exist in the store is not created.
type Edge struct {
	Kind       EdgeKind
	FromKind   NodeKind
	FromID     string
	ToKind     NodeKind
	ToID       string
	Properties map[string]any
}

// Batch is a unit of work handed to the graph store atomically: all writes
// in a Batch either all commit or all fail together.
type Batch struct {
	Nodes   []Node
	Edges   []Edge
	Deletes []string // composite IDs to delete_node_and_descendants
}

func (b *Batch) AddNode(n Node)            { b.Nodes = append(b.Nodes, n) }
func (b *Batch) AddEdge(e Edge)            { b.Edges = append(b.Edges, e) }
func (b *Batch) Delete(compositeID string) { b.Deletes = append(b.Deletes, compositeID) }

func (b *Batch) IsEmpty() bool {
	return len(b.Nodes) == 0 && len(b.Edges) == 0 && len(b.Deletes) == 0
}

// ProjectProps is the property set for a Project node.
type ProjectProps struct {
	GraphID   string
	Name      string
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p ProjectProps) ToMap() map[string]any {
	return map[string]any{
		"graph_id":   p.GraphID,
		"name":       p.Name,
		"language":   p.Language,
		"created_at": p.CreatedAt.Format(time.RFC3339),
		"updated_at": p.UpdatedAt.Format(time.RFC3339),
	}
}

// FileProps is the property set for a File node.
type FileProps struct {
	CompositeID string
	Path        string
	ProjectID   string
	Language    string
	SizeBytes   int64
	ContentHash string
	Errors      []string
	UpdatedAt   time.Time
}

func (f FileProps) ToMap() map[string]any {
	m := map[string]any{
		"composite_id": f.CompositeID,
		"path":         f.Path,
		"project_id":   f.ProjectID,
		"language":     f.Language,
		"size_bytes":   f.SizeBytes,
		"content_hash": f.ContentHash,
		"updated_at":   f.UpdatedAt.Format(time.RFC3339),
	}
	if len(f.Errors) > 0 {
		m["errors"] = f.Errors
	}
	return m
}
