package ckg

import (
	"github.com/novaguard-ai/ckg-pipeline/internal/graphstore"
	"github.com/novaguard-ai/ckg-pipeline/internal/parser"
)

func toGraphKind(k parser.EntityKind) graphstore.NodeKind {
	switch k {
	case parser.KindClass:
		return graphstore.KindClass
	case parser.KindFunction:
		return graphstore.KindFunction
	case parser.KindVariable:
		return graphstore.KindVariable
	case parser.KindDecorator:
		return graphstore.KindDecorator
	case parser.KindExceptionType:
		return graphstore.KindExceptionType
	default:
		return graphstore.NodeKind(k)
	}
}

func toGraphEdgeKind(k parser.EdgeKind) graphstore.EdgeKind {
	return graphstore.EdgeKind(k)
}

func entityProps(compositeID, projectID string, e parser.Entity) map[string]any {
	props := map[string]any{
		"composite_id": compositeID,
		"project_id":   projectID,
		"name":         e.Name,
		"file_path":    e.FilePath,
		"start_line":   e.StartLine,
		"end_line":     e.EndLine,
	}
	switch e.Kind {
	case parser.KindFunction:
		props["signature"] = e.Signature
		props["parameters_str"] = e.ParametersStr
		props["is_method"] = e.IsMethod
		if e.ClassName != "" {
			props["class_name"] = e.ClassName
		}
	case parser.KindClass:
		props["placeholder"] = false
	case parser.KindVariable:
		props["scope_type"] = string(e.ScopeType)
	}
	return props
}

// intraFileEdge builds an Edge whose destination was produced by the same
// file (EdgeRef.DstIndex >= 0), so no cross-file resolution is needed.
func intraFileEdge(edge parser.EdgeRef, srcKind graphstore.NodeKind, srcID string, dstKind graphstore.NodeKind, dstID string) graphstore.Edge {
	out := graphstore.Edge{
		Kind:       toGraphEdgeKind(edge.Kind),
		FromKind:   srcKind,
		FromID:     srcID,
		ToKind:     dstKind,
		ToID:       dstID,
		Properties: map[string]any{},
	}
	if edge.Line > 0 {
		switch edge.Kind {
		case parser.EdgeCalls:
			out.Properties["call_site_line"] = edge.Line
		case parser.EdgeUsesVariable:
			out.Properties["usage_line"] = edge.Line
		case parser.EdgeModifiesVariable:
			out.Properties["modification_line"] = edge.Line
		case parser.EdgeCreatesObject:
			out.Properties["creation_line"] = edge.Line
		}
	}
	if edge.ModificationType != "" {
		out.Properties["modification_type"] = edge.ModificationType
	}
	return out
}
