package ckg

import (
	"context"
	"fmt"

	"github.com/novaguard-ai/ckg-pipeline/internal/graphstore"
)

// QueryAPI is the read side of the graph: pure functions over the graph
// store, every operation pagination-safe via an explicit limit/offset.
type QueryAPI struct {
	store graphstore.Backend
}

func NewQueryAPI(store graphstore.Backend) *QueryAPI {
	return &QueryAPI{store: store}
}

// ModuleInfo is one entry of ProjectOverview.MainModules.
type ModuleInfo struct {
	Name string
	Path string
}

// ClassMethodCount is one entry of ProjectOverview.Top5LargestClasses.
type ClassMethodCount struct {
	Name        string
	FilePath    string
	MethodCount int
}

// FunctionCallCount is one entry of ProjectOverview.Top5MostCalled.
type FunctionCallCount struct {
	Name      string
	FilePath  string
	CallCount int
}

// ProjectOverview is the summary the prompt context embeds verbatim; the
// LLM sees no other view of the graph.
type ProjectOverview struct {
	TotalFiles              int
	TotalClasses            int
	TotalFunctionsMethods   int
	AverageFunctionsPerFile float64
	MainModules             []ModuleInfo
	Top5LargestClasses      []ClassMethodCount
	Top5MostCalledFunctions []FunctionCallCount
}

// HasMeaningfulData reports whether this overview carries enough signal
// for an LLM call to be worthwhile. The context builder skips the LLM
// entirely when this is false.
func (o ProjectOverview) HasMeaningfulData() bool {
	if o.TotalFiles == 0 {
		return false
	}
	return len(o.MainModules) > 0 || len(o.Top5LargestClasses) > 0 || len(o.Top5MostCalledFunctions) > 0
}

func (q *QueryAPI) ProjectOverview(ctx context.Context, projectID string) (*ProjectOverview, error) {
	counts, err := q.store.RunSummaryQuery(ctx, "project_overview_counts", map[string]any{"project_id": projectID})
	if err != nil {
		return nil, fmt.Errorf("project overview counts: %w", err)
	}
	overview := &ProjectOverview{}
	if len(counts) > 0 {
		overview.TotalFiles = asInt(counts[0]["total_files"])
		overview.TotalClasses = asInt(counts[0]["total_classes"])
		overview.TotalFunctionsMethods = asInt(counts[0]["total_functions_methods"])
	}
	if overview.TotalFiles > 0 {
		overview.AverageFunctionsPerFile = float64(overview.TotalFunctionsMethods) / float64(overview.TotalFiles)
	}

	moduleRows, err := q.store.RunSummaryQuery(ctx, "project_main_modules", map[string]any{"project_id": projectID, "limit": 20})
	if err != nil {
		return nil, fmt.Errorf("main modules: %w", err)
	}
	for _, row := range moduleRows {
		name, _ := row["name"].(string)
		path, _ := row["path"].(string)
		overview.MainModules = append(overview.MainModules, ModuleInfo{Name: name, Path: path})
	}

	classRows, err := q.store.RunSummaryQuery(ctx, "top_classes_by_methods", map[string]any{"project_id": projectID, "limit": 5})
	if err != nil {
		return nil, fmt.Errorf("top classes: %w", err)
	}
	for _, row := range classRows {
		name, _ := row["name"].(string)
		path, _ := row["file_path"].(string)
		overview.Top5LargestClasses = append(overview.Top5LargestClasses, ClassMethodCount{Name: name, FilePath: path, MethodCount: asInt(row["method_count"])})
	}

	fnRows, err := q.store.RunSummaryQuery(ctx, "top_called_functions", map[string]any{"project_id": projectID, "limit": 5})
	if err != nil {
		return nil, fmt.Errorf("top called functions: %w", err)
	}
	for _, row := range fnRows {
		name, _ := row["name"].(string)
		path, _ := row["file_path"].(string)
		overview.Top5MostCalledFunctions = append(overview.Top5MostCalledFunctions, FunctionCallCount{Name: name, FilePath: path, CallCount: asInt(row["call_count"])})
	}

	return overview, nil
}

// CallInfo is one edge returned by FunctionCallRelationships.
type CallInfo struct {
	Caller string
	Callee string
	Line   int
	Type   string
}

func (q *QueryAPI) FunctionCallRelationships(ctx context.Context, projectID, functionName string, limit, offset int) ([]CallInfo, error) {
	rows, err := q.store.RunSummaryQuery(ctx, "function_call_relationships", map[string]any{
		"project_id": projectID, "function_name": functionName, "limit": limit, "offset": offset,
	})
	if err != nil {
		return nil, fmt.Errorf("function call relationships: %w", err)
	}
	out := make([]CallInfo, 0, len(rows))
	for _, row := range rows {
		caller, _ := row["caller"].(string)
		callee, _ := row["callee"].(string)
		typ, _ := row["type"].(string)
		out = append(out, CallInfo{Caller: caller, Callee: callee, Line: asInt(row["line"]), Type: typ})
	}
	return out, nil
}

// InheritanceInfo is one edge returned by ClassInheritance.
type InheritanceInfo struct {
	Subclass    string
	Superclass  string
	Placeholder bool
}

func (q *QueryAPI) ClassInheritance(ctx context.Context, projectID, className string, limit, offset int) ([]InheritanceInfo, error) {
	rows, err := q.store.RunSummaryQuery(ctx, "class_inheritance", map[string]any{
		"project_id": projectID, "class_name": className, "limit": limit, "offset": offset,
	})
	if err != nil {
		return nil, fmt.Errorf("class inheritance: %w", err)
	}
	out := make([]InheritanceInfo, 0, len(rows))
	for _, row := range rows {
		sub, _ := row["subclass"].(string)
		super, _ := row["superclass"].(string)
		placeholder, _ := row["placeholder"].(bool)
		out = append(out, InheritanceInfo{Subclass: sub, Superclass: super, Placeholder: placeholder})
	}
	return out, nil
}

// CircularFunctionCalls detects cycles in the CALLS graph by walking call
// relationships and reporting any path that returns to its origin. Uses a
// bounded DFS over data already fetched via the summary-query catalogue
// (no raw Cypher path-finding leaked to this layer).
func (q *QueryAPI) CircularFunctionCalls(ctx context.Context, projectID string) ([][]string, error) {
	edges, err := q.FunctionCallRelationships(ctx, projectID, "", 100000, 0)
	if err != nil {
		return nil, err
	}
	adjacency := make(map[string][]string)
	for _, e := range edges {
		adjacency[e.Caller] = append(adjacency[e.Caller], e.Callee)
	}

	var cycles [][]string
	visited := make(map[string]int) // 0=unvisited 1=in-stack 2=done
	var stack []string

	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = 1
		stack = append(stack, node)
		for _, next := range adjacency[node] {
			switch visited[next] {
			case 0:
				dfs(next)
			case 1:
				cycle := cycleFromStack(stack, next)
				if len(cycle) > 0 {
					cycles = append(cycles, cycle)
				}
			}
		}
		stack = stack[:len(stack)-1]
		visited[node] = 2
	}

	for node := range adjacency {
		if visited[node] == 0 {
			dfs(node)
		}
	}
	return cycles, nil
}

func cycleFromStack(stack []string, target string) []string {
	for i, n := range stack {
		if n == target {
			cycle := append([]string{}, stack[i:]...)
			return append(cycle, target)
		}
	}
	return nil
}

// LargeClasses returns classes with at least minMethods methods.
func (q *QueryAPI) LargeClasses(ctx context.Context, projectID string, minMethods, limit, offset int) ([]ClassMethodCount, error) {
	if minMethods <= 0 {
		minMethods = 20
	}
	rows, err := q.store.RunSummaryQuery(ctx, "large_classes", map[string]any{
		"project_id": projectID, "min_methods": minMethods, "limit": limit, "offset": offset,
	})
	if err != nil {
		return nil, fmt.Errorf("large classes: %w", err)
	}
	out := make([]ClassMethodCount, 0, len(rows))
	for _, row := range rows {
		name, _ := row["name"].(string)
		path, _ := row["file_path"].(string)
		out = append(out, ClassMethodCount{Name: name, FilePath: path, MethodCount: asInt(row["method_count"])})
	}
	return out, nil
}

// SearchResult is one entry returned by Search.
type SearchResult struct {
	Kinds       []string
	Name        string
	CompositeID string
	FilePath    string
}

func (q *QueryAPI) Search(ctx context.Context, projectID, term, kind string, limit, offset int) ([]SearchResult, error) {
	rows, err := q.store.RunSummaryQuery(ctx, "search_entities", map[string]any{
		"project_id": projectID, "term": term, "kind": kind, "limit": limit, "offset": offset,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		var kinds []string
		if raw, ok := row["kinds"].([]any); ok {
			for _, k := range raw {
				if s, ok := k.(string); ok {
					kinds = append(kinds, s)
				}
			}
		}
		name, _ := row["name"].(string)
		cid, _ := row["composite_id"].(string)
		path, _ := row["file_path"].(string)
		out = append(out, SearchResult{Kinds: kinds, Name: name, CompositeID: cid, FilePath: path})
	}
	return out, nil
}

// ImpactOfChanges reports how many distinct functions call into symbols
// defined in the given paths, and which files would need re-analysis.
func (q *QueryAPI) ImpactOfChanges(ctx context.Context, projectID string, paths []string) (affectedFunctionCount int, filesToUpdate []string, err error) {
	rows, queryErr := q.store.RunSummaryQuery(ctx, "impact_of_changes", map[string]any{"project_id": projectID, "paths": paths})
	if queryErr != nil {
		return 0, nil, fmt.Errorf("impact of changes: %w", queryErr)
	}
	seen := make(map[string]bool)
	total := 0
	for _, row := range rows {
		total += asInt(row["caller_count"])
		if f, ok := row["file"].(string); ok && !seen[f] {
			seen[f] = true
			filesToUpdate = append(filesToUpdate, f)
		}
	}
	return total, filesToUpdate, nil
}
