package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jBackend implements Backend against Neo4j over the bolt protocol.
type Neo4jBackend struct {
	driver   neo4j.DriverWithContext
	database string
	limits   BatchLimits
}

// NewNeo4jBackend dials the graph store and verifies connectivity before
// returning.
func NewNeo4jBackend(ctx context.Context, uri, username, password, database string, limits BatchLimits) (*Neo4jBackend, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}
	return &Neo4jBackend{driver: driver, database: database, limits: limits}, nil
}

// UpsertBatch commits nodes, then edges, then deletes, all within a single
// managed write transaction. Node writes precede edge writes so that File
// and Project nodes exist before children reference them.
func (n *Neo4jBackend) UpsertBatch(ctx context.Context, b Batch) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for kind, nodes := range groupNodesByKind(b.Nodes) {
			for _, group := range chunk(nodes, n.limits.NodeBatchSize) {
				if err := n.upsertNodeGroup(ctx, tx, kind, group); err != nil {
					return nil, err
				}
			}
		}
		for shape, edges := range groupEdgesByShape(b.Edges) {
			for _, group := range chunk(edges, n.limits.EdgeBatchSize) {
				if err := n.upsertEdgeGroup(ctx, tx, shape, group); err != nil {
					return nil, err
				}
			}
		}
		for _, id := range b.Deletes {
			if err := n.deleteInTx(ctx, tx, id); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("upsert batch (nodes=%d edges=%d deletes=%d): %w", len(b.Nodes), len(b.Edges), len(b.Deletes), err)
	}
	return nil
}

func (n *Neo4jBackend) upsertNodeGroup(ctx context.Context, tx neo4j.ManagedTransaction, kind NodeKind, nodes []Node) error {
	if !isValidIdentifier(string(kind)) {
		return fmt.Errorf("invalid node kind %q", kind)
	}
	uniqueKey := UniqueKey(kind)
	rows := make([]map[string]any, len(nodes))
	for i, node := range nodes {
		props := make(map[string]any, len(node.Properties)+1)
		for k, v := range node.Properties {
			if !isValidIdentifier(k) {
				return fmt.Errorf("invalid property key %q on %s node", k, kind)
			}
			props[k] = v
		}
		props[uniqueKey] = node.ID
		rows[i] = props
	}

	// UNWIND + MERGE: idempotent whether the node exists or not. Colliding
	// upserts coalesce by shallow-merging new properties onto the existing
	// node; array properties are replaced, not appended.
	query := fmt.Sprintf(`
UNWIND $rows AS row
MERGE (n:%s {%s: row.%s})
SET n += row`, kind, uniqueKey, uniqueKey)

	_, err := tx.Run(ctx, query, map[string]any{"rows": rows})
	if err != nil {
		return fmt.Errorf("upsert %d %s node(s): %w", len(nodes), kind, err)
	}
	return nil
}

func (n *Neo4jBackend) upsertEdgeGroup(ctx context.Context, tx neo4j.ManagedTransaction, shape edgeShape, edges []Edge) error {
	for _, id := range []string{string(shape.Kind), string(shape.FromKind), string(shape.ToKind)} {
		if !isValidIdentifier(id) {
			return fmt.Errorf("invalid identifier %q in edge batch", id)
		}
	}
	fromKey, toKey := UniqueKey(shape.FromKind), UniqueKey(shape.ToKind)
	rows := make([]map[string]any, len(edges))
	for i, e := range edges {
		rows[i] = map[string]any{
			"from_id":    e.FromID,
			"to_id":      e.ToID,
			"properties": e.Properties,
		}
	}

	query := fmt.Sprintf(`
UNWIND $rows AS row
MATCH (a:%s {%s: row.from_id})
MATCH (b:%s {%s: row.to_id})
MERGE (a)-[r:%s]->(b)
SET r += row.properties`, shape.FromKind, fromKey, shape.ToKind, toKey, shape.Kind)

	_, err := tx.Run(ctx, query, map[string]any{"rows": rows})
	if err != nil {
		return fmt.Errorf("upsert %d %s edge(s): %w", len(edges), shape.Kind, err)
	}
	return nil
}

func (n *Neo4jBackend) deleteInTx(ctx context.Context, tx neo4j.ManagedTransaction, compositeID string) error {
	b := NewCypherBuilder()
	query := b.BuildDeleteNodeAndDescendants(compositeID)
	_, err := tx.Run(ctx, query, b.Params())
	if err != nil {
		return fmt.Errorf("delete node and descendants %q: %w", compositeID, err)
	}
	return nil
}

// DeleteNodeAndDescendants runs the cascading delete outside of a builder
// batch, e.g. from the Incremental Updater's deleted-file plan step.
func (n *Neo4jBackend) DeleteNodeAndDescendants(ctx context.Context, compositeID string) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, n.deleteInTx(ctx, tx, compositeID)
	})
	return err
}

// RunSummaryQuery dispatches to the named query catalogue backing the
// Query/Summary API. Callers never build Cypher themselves.
func (n *Neo4jBackend) RunSummaryQuery(ctx context.Context, name string, params map[string]any) ([]map[string]any, error) {
	query, ok := summaryQueries[name]
	if !ok {
		return nil, fmt.Errorf("unknown summary query %q", name)
	}
	result, err := neo4j.ExecuteQuery(ctx, n.driver, query, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(n.database))
	if err != nil {
		return nil, fmt.Errorf("run summary query %q: %w", name, err)
	}
	rows := make([]map[string]any, len(result.Records))
	for i, rec := range result.Records {
		m := make(map[string]any, len(rec.Keys))
		for _, k := range rec.Keys {
			v, _ := rec.Get(k)
			m[k] = v
		}
		rows[i] = m
	}
	return rows, nil
}

// EnsureIndexes creates the lookup indexes the summary queries depend on.
// Index creation is itself idempotent (IF NOT EXISTS).
func (n *Neo4jBackend) EnsureIndexes(ctx context.Context) error {
	statements := []string{
		"CREATE INDEX file_composite_id IF NOT EXISTS FOR (f:File) ON (f.composite_id)",
		"CREATE INDEX class_composite_id IF NOT EXISTS FOR (c:Class) ON (c.composite_id)",
		"CREATE INDEX function_composite_id IF NOT EXISTS FOR (fn:Function) ON (fn.composite_id)",
		"CREATE INDEX variable_composite_id IF NOT EXISTS FOR (v:Variable) ON (v.composite_id)",
		"CREATE INDEX file_project_id IF NOT EXISTS FOR (f:File) ON (f.project_id)",
		"CREATE INDEX class_project_id IF NOT EXISTS FOR (c:Class) ON (c.project_id)",
		"CREATE INDEX function_project_id IF NOT EXISTS FOR (fn:Function) ON (fn.project_id)",
		"CREATE INDEX class_name IF NOT EXISTS FOR (c:Class) ON (c.name)",
		"CREATE INDEX function_name IF NOT EXISTS FOR (fn:Function) ON (fn.name)",
		"CREATE INDEX file_content_hash IF NOT EXISTS FOR (f:File) ON (f.content_hash)",
		"CREATE INDEX file_updated_at IF NOT EXISTS FOR (f:File) ON (f.updated_at)",
	}
	for _, stmt := range statements {
		if _, err := neo4j.ExecuteQuery(ctx, n.driver, stmt, nil,
			neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(n.database)); err != nil {
			return fmt.Errorf("ensure index (%s): %w", stmt, err)
		}
	}
	return nil
}

func (n *Neo4jBackend) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}
