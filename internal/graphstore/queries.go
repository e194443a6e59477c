package graphstore

// summaryQueries is the fixed catalogue of parameterized read queries the
// summary API is allowed to run. Callers pass a query name and bound
// params; they never build Cypher themselves.
var summaryQueries = map[string]string{
	"project_overview_counts": `
MATCH (p:Project {graph_id: $project_id})
OPTIONAL MATCH (f:File)-[:BELONGS_TO]->(p)
OPTIONAL MATCH (c:Class)-[:BELONGS_TO]->(p)
OPTIONAL MATCH (fn:Function)-[:BELONGS_TO]->(p)
RETURN count(DISTINCT f) AS total_files,
       count(DISTINCT c) AS total_classes,
       count(DISTINCT fn) AS total_functions_methods`,

	"project_main_modules": `
MATCH (m:Module)-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
RETURN m.name AS name, m.path AS path
ORDER BY m.name
LIMIT $limit`,

	"top_classes_by_methods": `
MATCH (fn:Function {is_method: true})-[:DEFINED_IN]->(:File)<-[:DEFINED_IN]-(c:Class)-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
WHERE fn.class_name = c.name
WITH c, count(fn) AS method_count
RETURN c.name AS name, c.file_path AS file_path, method_count
ORDER BY method_count DESC
LIMIT $limit`,

	"top_called_functions": `
MATCH (caller:Function)-[call:CALLS]->(callee:Function)-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
WITH callee, count(call) AS call_count
RETURN callee.name AS name, callee.file_path AS file_path, call_count
ORDER BY call_count DESC
LIMIT $limit`,

	"function_call_relationships": `
MATCH (caller:Function)-[call:CALLS]->(callee:Function)-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
WHERE $function_name = '' OR caller.name = $function_name OR callee.name = $function_name
RETURN caller.name AS caller, callee.name AS callee, call.call_site_line AS line, call.type AS type
SKIP $offset LIMIT $limit`,

	"class_inheritance": `
MATCH (sub:Class)-[:INHERITS_FROM]->(super:Class)-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
WHERE sub.name = $class_name OR super.name = $class_name
RETURN sub.name AS subclass, super.name AS superclass, super.placeholder AS placeholder
SKIP $offset LIMIT $limit`,

	"large_classes": `
MATCH (fn:Function {is_method: true})-[:DEFINED_IN]->(:File)<-[:DEFINED_IN]-(c:Class)-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
WHERE fn.class_name = c.name
WITH c, count(fn) AS method_count
WHERE method_count >= $min_methods
RETURN c.name AS name, c.file_path AS file_path, method_count
ORDER BY method_count DESC
SKIP $offset LIMIT $limit`,

	"search_entities": `
MATCH (n)-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
WHERE ($kind = '' OR $kind IN labels(n)) AND toLower(n.name) CONTAINS toLower($term)
RETURN labels(n) AS kinds, n.name AS name, n.composite_id AS composite_id, n.file_path AS file_path
SKIP $offset LIMIT $limit`,

	"impact_of_changes": `
MATCH (f:File)-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
WHERE f.path IN $paths
MATCH (sym)-[:DEFINED_IN]->(f)
OPTIONAL MATCH (caller:Function)-[:CALLS]->(sym)
RETURN f.path AS file, sym.name AS symbol, count(DISTINCT caller) AS caller_count`,

	"placeholder_count": `
MATCH (c:Class {placeholder: true})-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
RETURN count(c) AS placeholder_count`,

	"total_class_count": `
MATCH (c:Class)-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
RETURN count(c) AS total_class_count`,

	"orphan_defined_in_check": `
MATCH (n)-[:DEFINED_IN]->(f:File)-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
WHERE NOT exists((n)-[:BELONGS_TO]->(p))
RETURN n.composite_id AS composite_id
LIMIT $limit`,

	"project_file_paths": `
MATCH (f:File)-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
RETURN f.path AS path`,

	"file_by_path": `
MATCH (f:File {composite_id: $composite_id})
RETURN f.composite_id AS composite_id, f.content_hash AS content_hash, f.updated_at AS updated_at`,

	"symbols_defined_in_file": `
MATCH (n)-[:DEFINED_IN]->(f:File {composite_id: $file_composite_id})
RETURN n.composite_id AS composite_id, labels(n) AS kinds, n.name AS name`,

	"callers_of_file_symbols": `
MATCH (caller:Function)-[:CALLS]->(callee)-[:DEFINED_IN]->(f:File {composite_id: $file_composite_id})
RETURN DISTINCT caller.file_path AS file_path`,

	"inheritors_of_file_symbols": `
MATCH (sub:Class)-[:INHERITS_FROM]->(super:Class)-[:DEFINED_IN]->(f:File {composite_id: $file_composite_id})
RETURN DISTINCT sub.file_path AS file_path`,

	"symbol_index_lookup": `
MATCH (n)-[:BELONGS_TO]->(p:Project {graph_id: $project_id})
WHERE n.name = $name AND ($kind = '' OR $kind IN labels(n))
RETURN n.composite_id AS composite_id, labels(n) AS kinds, n.file_path AS file_path`,
}
