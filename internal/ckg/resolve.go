package ckg

import (
	"context"
	"fmt"
	"sort"

	"github.com/novaguard-ai/ckg-pipeline/internal/graphstore"
	"github.com/novaguard-ai/ckg-pipeline/internal/llm"
)

// symbolRef is one candidate match for a symbolic edge target: a concrete
// node a pending edge's TargetName might resolve to. Signature is the
// declaration text (or just the name, when a parser doesn't capture one)
// embedded for similarity ranking when more than one candidate shares a name.
type symbolRef struct {
	Kind        graphstore.NodeKind
	CompositeID string
	FilePath    string
	Signature   string
}

// symbolIndex is the per-project symbol table: parsers emit symbolic edge
// targets as {name, kind_hint}; the Builder resolves them against this
// index once a batch has landed.
type symbolIndex struct {
	byName map[string][]symbolRef
}

func newSymbolIndex() *symbolIndex {
	return &symbolIndex{byName: make(map[string][]symbolRef)}
}

func (s *symbolIndex) add(name string, kind graphstore.NodeKind, compositeID, filePath, signature string) {
	s.byName[name] = append(s.byName[name], symbolRef{Kind: kind, CompositeID: compositeID, FilePath: filePath, Signature: signature})
}

// lookup returns every candidate with a matching name, optionally filtered
// by kind hint ("function", "class", "variable", "exception" — empty
// matches any kind).
func (s *symbolIndex) lookup(name, kindHint string) []symbolRef {
	candidates := s.byName[name]
	if kindHint == "" {
		return candidates
	}
	wantKind := hintToKind(kindHint)
	var out []symbolRef
	for _, c := range candidates {
		if c.Kind == wantKind {
			out = append(out, c)
		}
	}
	return out
}

func hintToKind(hint string) graphstore.NodeKind {
	switch hint {
	case "function":
		return graphstore.KindFunction
	case "class":
		return graphstore.KindClass
	case "variable":
		return graphstore.KindVariable
	case "exception":
		return graphstore.KindExceptionType
	default:
		return graphstore.NodeKind(hint)
	}
}

// resolve runs after all batches land: for each unresolved
// edge, look up the target in the symbol index; if found, emit the
// concrete edge (disambiguating duplicates via resolveAmbiguous); if not,
// materialize a placeholder node and point the edge at it. Later passes
// (re-parses that add the real symbol) replace the placeholder: resolving
// a name that now has a concrete candidate also deletes the stale
// placeholder node left by an earlier build.
func (b *Builder) resolve(ctx context.Context, projectID string, pending []pendingEdge, index *symbolIndex, batch *graphstore.Batch, stats *Stats) {
	placeholders := make(map[string]string) // targetName -> placeholder composite ID, deduped within this build

	for _, p := range pending {
		candidates := index.lookup(p.targetName, p.targetHint)

		var target symbolRef
		switch len(candidates) {
		case 0:
			target = b.materializePlaceholder(projectID, p, batch, placeholders, stats)
		case 1:
			target = candidates[0]
			batch.Delete(placeholderID(projectID, p.targetName))
		default:
			target = b.resolveAmbiguous(ctx, p, candidates)
			batch.Delete(placeholderID(projectID, p.targetName))
			stats.UnresolvedRefs++ // recorded as ambiguous-but-resolved, still worth surfacing in metrics
		}

		batch.AddEdge(graphstore.Edge{
			Kind:       p.kind,
			FromKind:   p.srcKind,
			FromID:     p.srcCompositeID,
			ToKind:     target.Kind,
			ToID:       target.CompositeID,
			Properties: pendingEdgeProps(p),
		})
	}
}

// placeholderID is the stable, project-scoped composite ID a placeholder
// node for targetName gets. Stability is what lets a later build find and
// delete it once the real symbol lands.
func placeholderID(projectID, targetName string) string {
	return fmt.Sprintf("%s:placeholder:%s", projectID, targetName)
}

// materializePlaceholder creates a placeholder Class node for a
// not-yet-parsed (or never-parsed, e.g. external library) symbol.
// Placeholders are keyed by name within a single build so that two
// unresolved references to the same external symbol share one node.
func (b *Builder) materializePlaceholder(projectID string, p pendingEdge, batch *graphstore.Batch, seen map[string]string, stats *Stats) symbolRef {
	stats.UnresolvedRefs++

	if cid, ok := seen[p.targetName]; ok {
		return symbolRef{Kind: graphstore.KindClass, CompositeID: cid}
	}

	cid := placeholderID(projectID, p.targetName)
	seen[p.targetName] = cid
	stats.PlaceholdersCreated++

	batch.AddNode(graphstore.Node{
		Kind: graphstore.KindClass,
		ID:   cid,
		Properties: map[string]any{
			"composite_id": cid,
			"name":         p.targetName,
			"placeholder":  true,
		},
	})
	batch.AddEdge(graphstore.Edge{
		Kind: graphstore.EdgeBelongsTo, FromKind: graphstore.KindClass, FromID: cid,
		ToKind: graphstore.KindProject, ToID: projectID,
	})
	return symbolRef{Kind: graphstore.KindClass, CompositeID: cid}
}

// resolveAmbiguous picks among multiple same-named candidates. When the
// Builder was given an Embedder, it ranks candidates by cosine similarity
// between the reference's target name/hint and each candidate's signature,
// picking the
// closest. On any embedding failure, or when no embedder is configured, it
// falls back to the cheap heuristic: the first indexed candidate. A full
// CKG scan must never block on an LLM call.
func (b *Builder) resolveAmbiguous(ctx context.Context, p pendingEdge, candidates []symbolRef) symbolRef {
	if b.embedder == nil {
		return candidates[0]
	}

	query := p.targetName
	if p.targetHint != "" {
		query = p.targetHint + " " + p.targetName
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, query)
	for _, c := range candidates {
		sig := c.Signature
		if sig == "" {
			sig = c.FilePath + ":" + p.targetName
		}
		texts = append(texts, sig)
	}

	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		b.logger.Debug("embedding disambiguation unavailable, using first candidate", "target", p.targetName, "error", err)
		return candidates[0]
	}

	queryVec := vectors[0]
	type scored struct {
		ref   symbolRef
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{ref: c, score: llm.CosineSimilarity(queryVec, vectors[i+1])}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return ranked[0].ref
}

func pendingEdgeProps(p pendingEdge) map[string]any {
	props := map[string]any{}
	if p.srcLine > 0 {
		switch p.kind {
		case graphstore.EdgeCalls:
			props["call_site_line"] = p.srcLine
		case graphstore.EdgeUsesVariable:
			props["usage_line"] = p.srcLine
		case graphstore.EdgeModifiesVariable:
			props["modification_line"] = p.srcLine
		case graphstore.EdgeCreatesObject:
			props["creation_line"] = p.srcLine
		}
	}
	if p.modType != "" {
		props["modification_type"] = p.modType
	}
	return props
}
