package graphstore

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// isValidIdentifier reports whether s is safe to splice directly into a
// Cypher label, relationship type, or property key. Values are never
// spliced — they always go through parameters — but labels and property
// *keys* can't be parameterized in Cypher, so they're validated instead.
func isValidIdentifier(s string) bool {
	return s != "" && identifierRE.MatchString(s)
}

// CypherBuilder accumulates parameters for a single query, handing out
// `$pN` placeholders so that every value — node property, edge property,
// unique-key value — is sent as a bound parameter rather than interpolated
// into the query text. This is the only place Cypher text is assembled by
// hand; every other caller goes through it.
type CypherBuilder struct {
	params  map[string]any
	counter int
}

func NewCypherBuilder() *CypherBuilder {
	return &CypherBuilder{params: make(map[string]any)}
}

func (b *CypherBuilder) AddParam(value any) string {
	name := fmt.Sprintf("p%d", b.counter)
	b.counter++
	b.params[name] = value
	return "$" + name
}

func (b *CypherBuilder) Params() map[string]any { return b.params }

// BuildMergeNode builds a parameterized MERGE for one node. Re-running the
// same (kind, id, properties) triple produces the same graph state.
func (b *CypherBuilder) BuildMergeNode(kind NodeKind, id string, properties map[string]any) (string, error) {
	if !isValidIdentifier(string(kind)) {
		return "", fmt.Errorf("invalid node kind %q", kind)
	}
	uniqueKey := UniqueKey(kind)

	idParam := b.AddParam(id)

	var setClauses []string
	for key, value := range properties {
		if !isValidIdentifier(key) {
			return "", fmt.Errorf("invalid property key %q", key)
		}
		setClauses = append(setClauses, fmt.Sprintf("n.%s = %s", key, b.AddParam(value)))
	}

	query := fmt.Sprintf("MERGE (n:%s {%s: %s})", kind, uniqueKey, idParam)
	if len(setClauses) > 0 {
		query += " SET " + strings.Join(setClauses, ", ")
	}
	return query, nil
}

// BuildMergeEdge builds a parameterized MERGE for one directed edge between
// two nodes matched by (kind, unique-key value).
func (b *CypherBuilder) BuildMergeEdge(e Edge) (string, error) {
	for _, id := range []string{string(e.FromKind), string(e.ToKind), string(e.Kind)} {
		if !isValidIdentifier(id) {
			return "", fmt.Errorf("invalid identifier %q in edge", id)
		}
	}
	fromKey, toKey := UniqueKey(e.FromKind), UniqueKey(e.ToKind)
	fromParam := b.AddParam(e.FromID)
	toParam := b.AddParam(e.ToID)

	var setClause string
	if len(e.Properties) > 0 {
		var clauses []string
		for k, v := range e.Properties {
			if !isValidIdentifier(k) {
				return "", fmt.Errorf("invalid edge property key %q", k)
			}
			clauses = append(clauses, fmt.Sprintf("r.%s = %s", k, b.AddParam(v)))
		}
		setClause = " SET " + strings.Join(clauses, ", ")
	}

	return fmt.Sprintf(
		"MATCH (a:%s {%s: %s}) MATCH (b:%s {%s: %s}) MERGE (a)-[r:%s]->(b)%s",
		e.FromKind, fromKey, fromParam, e.ToKind, toKey, toParam, e.Kind, setClause,
	), nil
}

// BuildDeleteNodeAndDescendants deletes a node by composite_id and,
// transitively, every node reachable only via an inbound DEFINED_IN edge
// from it: deleting a File removes every Class/Function/Variable node
// defined in it.
func (b *CypherBuilder) BuildDeleteNodeAndDescendants(compositeID string) string {
	idParam := b.AddParam(compositeID)
	return fmt.Sprintf(`
MATCH (n {composite_id: %s})
OPTIONAL MATCH (d)-[:DEFINED_IN]->(n)
OPTIONAL MATCH (v)-[:HAS_PARAMETER|DECLARES_VARIABLE|DECLARES_ATTRIBUTE]->(dv) WHERE v = d
DETACH DELETE n, d, dv`, idParam)
}
