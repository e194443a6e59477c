package graphstore

// BatchLimits controls how many files/entities the builder accumulates in
// memory before flushing a Batch to the graph store. Tuned through the
// CKG_BATCH_SIZE environment variable.
type BatchLimits struct {
	MaxFiles      int
	MaxEntities   int
	NodeBatchSize int // UNWIND chunk size per node kind
	EdgeBatchSize int // UNWIND chunk size per edge kind
}

// DefaultBatchLimits is 50 files / 10,000 entities per batch.
func DefaultBatchLimits() BatchLimits {
	return BatchLimits{
		MaxFiles:      50,
		MaxEntities:   10_000,
		NodeBatchSize: 1000,
		EdgeBatchSize: 5000,
	}
}

// chunk splits s into slices of at most size, preserving order. Used to
// keep UNWIND parameter lists bounded regardless of how large a single
// Batch grows.
func chunk[T any](s []T, size int) [][]T {
	if size <= 0 || len(s) == 0 {
		return nil
	}
	var out [][]T
	for i := 0; i < len(s); i += size {
		end := i + size
		if end > len(s) {
			end = len(s)
		}
		out = append(out, s[i:end])
	}
	return out
}

// groupNodesByKind partitions a batch's nodes so each UNWIND statement
// targets a single label (Cypher labels can't be parameterized).
func groupNodesByKind(nodes []Node) map[NodeKind][]Node {
	out := make(map[NodeKind][]Node)
	for _, n := range nodes {
		out[n.Kind] = append(out[n.Kind], n)
	}
	return out
}

// groupEdgesByShape partitions edges by (kind, fromKind, toKind) since the
// UNWIND MERGE pattern needs all three labels fixed per statement.
type edgeShape struct {
	Kind     EdgeKind
	FromKind NodeKind
	ToKind   NodeKind
}

func groupEdgesByShape(edges []Edge) map[edgeShape][]Edge {
	out := make(map[edgeShape][]Edge)
	for _, e := range edges {
		key := edgeShape{e.Kind, e.FromKind, e.ToKind}
		out[key] = append(out[key], e)
	}
	return out
}
