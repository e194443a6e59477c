package graphstore

import "context"

// Backend is the graph-store contract. No query language leaks past
// this interface — callers upsert typed Nodes/Edges and run named summary
// queries; only the Neo4j implementation knows Cypher.
type Backend interface {
	// UpsertBatch commits every node, edge, and delete in b atomically. A
	// partial failure must not leave the graph in a mixed state — the
	// caller retries the whole batch once on error before giving up.
	UpsertBatch(ctx context.Context, b Batch) error

	// DeleteNodeAndDescendants removes a node and everything DEFINED_IN it,
	// cascading.
	DeleteNodeAndDescendants(ctx context.Context, compositeID string) error

	// RunSummaryQuery executes one of the named, parameterized read
	// queries the summary API is built from. Implementations
	// register their own query catalogue; params are always bound, never
	// interpolated.
	RunSummaryQuery(ctx context.Context, name string, params map[string]any) ([]map[string]any, error)

	// EnsureIndexes creates the indexes required for acceptable read
	// performance: (kind, composite_id), (kind, project_id),
	// (kind, name), (File, content_hash), (File, updated_at).
	EnsureIndexes(ctx context.Context) error

	Close(ctx context.Context) error
}
