package ckg

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novaguard-ai/ckg-pipeline/internal/graphstore"
	"github.com/novaguard-ai/ckg-pipeline/internal/parser"
)

// fakeBackend records every batch handed to it and serves canned rows for
// named summary queries.
type fakeBackend struct {
	batches     []graphstore.Batch
	deleted     []string
	queryRows   map[string][]map[string]any
	queryFn     func(name string, params map[string]any) []map[string]any
	failBatches int // fail this many UpsertBatch calls before succeeding
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{queryRows: make(map[string][]map[string]any)}
}

func (f *fakeBackend) UpsertBatch(ctx context.Context, b graphstore.Batch) error {
	if f.failBatches > 0 {
		f.failBatches--
		return errors.New("simulated batch failure")
	}
	f.batches = append(f.batches, b)
	return nil
}

func (f *fakeBackend) DeleteNodeAndDescendants(ctx context.Context, compositeID string) error {
	f.deleted = append(f.deleted, compositeID)
	return nil
}

func (f *fakeBackend) RunSummaryQuery(ctx context.Context, name string, params map[string]any) ([]map[string]any, error) {
	if f.queryFn != nil {
		if rows := f.queryFn(name, params); rows != nil {
			return rows, nil
		}
	}
	return f.queryRows[name], nil
}

func (f *fakeBackend) EnsureIndexes(ctx context.Context) error { return nil }
func (f *fakeBackend) Close(ctx context.Context) error         { return nil }

// allNodes flattens every recorded batch's nodes.
func (f *fakeBackend) allNodes() []graphstore.Node {
	var out []graphstore.Node
	for _, b := range f.batches {
		out = append(out, b.Nodes...)
	}
	return out
}

func (f *fakeBackend) allEdges() []graphstore.Edge {
	var out []graphstore.Edge
	for _, b := range f.batches {
		out = append(out, b.Edges...)
	}
	return out
}

func (f *fakeBackend) allBatchDeletes() []string {
	var out []string
	for _, b := range f.batches {
		out = append(out, b.Deletes...)
	}
	return out
}

// stubParser serves prebuilt ParsedFile records by path, standing in for a
// real language grammar so tests control extraction output exactly.
type stubParser struct {
	files map[string]*parser.ParsedFile
}

func (s *stubParser) Language() string              { return "stub" }
func (s *stubParser) SupportedExtensions() []string { return []string{".st"} }

func (s *stubParser) Parse(filePath string, source []byte) (*parser.ParsedFile, error) {
	pf, ok := s.files[filePath]
	if !ok {
		return &parser.ParsedFile{FilePath: filePath, Language: "stub"}, nil
	}
	pf.FilePath = filePath
	pf.Language = "stub"
	for i := range pf.Entities {
		pf.Entities[i].FilePath = filePath
	}
	return pf, nil
}

func stubRegistry(files map[string]*parser.ParsedFile) *parser.Registry {
	r := parser.NewRegistry(1 << 20)
	r.Register(&stubParser{files: files})
	return r
}

// classWithMethods builds a ParsedFile with one class and two methods, the
// shape a typical object-oriented source file contributes.
func classWithMethods(className, m1, m2 string) *parser.ParsedFile {
	return &parser.ParsedFile{
		Entities: []parser.Entity{
			{Kind: parser.KindClass, Name: className, StartLine: 1, EndLine: 20},
			{Kind: parser.KindFunction, Name: m1, StartLine: 2, EndLine: 8, IsMethod: true, ClassName: className},
			{Kind: parser.KindFunction, Name: m2, StartLine: 10, EndLine: 18, IsMethod: true, ClassName: className},
		},
	}
}

func TestBuildFullScan(t *testing.T) {
	files := map[string]*parser.ParsedFile{
		"a.st": classWithMethods("Alpha", "alpha_one", "alpha_two"),
		"b.st": classWithMethods("Beta", "beta_one", "beta_two"),
		"c.st": classWithMethods("Gamma", "gamma_one", "gamma_two"),
	}
	backend := newFakeBackend()
	builder := NewBuilder(backend, stubRegistry(files), graphstore.DefaultBatchLimits())

	stats, err := builder.Build(context.Background(), "proj-1", "demo", "stub", []SourceFile{
		{Path: "a.st", Bytes: []byte("a")},
		{Path: "b.st", Bytes: []byte("b")},
		{Path: "c.st", Bytes: []byte("c")},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.FilesProcessed)
	assert.Equal(t, 9, stats.EntitiesCreated)
	assert.Empty(t, stats.FileErrors)

	var projects, fileNodes, classes, functions int
	for _, n := range backend.allNodes() {
		switch n.Kind {
		case graphstore.KindProject:
			projects++
		case graphstore.KindFile:
			fileNodes++
		case graphstore.KindClass:
			classes++
		case graphstore.KindFunction:
			functions++
		}
	}
	assert.Equal(t, 1, projects)
	assert.Equal(t, 3, fileNodes)
	assert.Equal(t, 3, classes)
	assert.Equal(t, 6, functions)

	// Every non-Project node owns exactly one BELONGS_TO to the project,
	// and every symbol node has exactly one DEFINED_IN to its file.
	belongsTo := make(map[string]int)
	definedIn := make(map[string]int)
	for _, e := range backend.allEdges() {
		switch e.Kind {
		case graphstore.EdgeBelongsTo:
			assert.Equal(t, "proj-1", e.ToID)
			belongsTo[e.FromID]++
		case graphstore.EdgeDefinedIn:
			definedIn[e.FromID]++
		}
	}
	for _, n := range backend.allNodes() {
		if n.Kind == graphstore.KindProject {
			continue
		}
		assert.Equal(t, 1, belongsTo[n.ID], "node %s should have one BELONGS_TO", n.ID)
		if n.Kind == graphstore.KindClass || n.Kind == graphstore.KindFunction {
			assert.Equal(t, 1, definedIn[n.ID], "node %s should have one DEFINED_IN", n.ID)
		}
	}

	// Re-parse semantics: each file's previous symbols are deleted in the
	// same batch that re-inserts them.
	assert.ElementsMatch(t, []string{
		FileCompositeID("proj-1", "a.st"),
		FileCompositeID("proj-1", "b.st"),
		FileCompositeID("proj-1", "c.st"),
	}, backend.allBatchDeletes())
}

func TestBuildResolvesCrossFileCall(t *testing.T) {
	caller := classWithMethods("Caller", "do_work", "helper")
	caller.Edges = []parser.EdgeRef{
		{Kind: parser.EdgeCalls, SrcIndex: 1, DstIndex: -1, TargetName: "callee_fn", TargetHint: "function", Line: 5},
	}
	callee := &parser.ParsedFile{
		Entities: []parser.Entity{
			{Kind: parser.KindFunction, Name: "callee_fn", StartLine: 3, EndLine: 9, Signature: "def callee_fn()"},
		},
	}
	files := map[string]*parser.ParsedFile{"caller.st": caller, "callee.st": callee}
	backend := newFakeBackend()
	builder := NewBuilder(backend, stubRegistry(files), graphstore.DefaultBatchLimits())

	stats, err := builder.Build(context.Background(), "proj-1", "demo", "stub", []SourceFile{
		{Path: "caller.st", Bytes: []byte("x")},
		{Path: "callee.st", Bytes: []byte("y")},
	})
	require.NoError(t, err)
	assert.Zero(t, stats.PlaceholdersCreated)

	var callEdge *graphstore.Edge
	for _, e := range backend.allEdges() {
		if e.Kind == graphstore.EdgeCalls {
			e := e
			callEdge = &e
		}
	}
	require.NotNil(t, callEdge, "expected a CALLS edge")
	assert.Equal(t, CompositeID("proj-1", "callee.st", "callee_fn", 3), callEdge.ToID)
	assert.Equal(t, 5, callEdge.Properties["call_site_line"])
}

func TestBuildUnresolvedTargetCreatesPlaceholder(t *testing.T) {
	child := &parser.ParsedFile{
		Entities: []parser.Entity{
			{Kind: parser.KindClass, Name: "Child", StartLine: 1, EndLine: 10},
		},
		Edges: []parser.EdgeRef{
			{Kind: parser.EdgeInheritsFrom, SrcIndex: 0, DstIndex: -1, TargetName: "ExternalBase", TargetHint: "class"},
		},
	}
	backend := newFakeBackend()
	builder := NewBuilder(backend, stubRegistry(map[string]*parser.ParsedFile{"child.st": child}), graphstore.DefaultBatchLimits())

	stats, err := builder.Build(context.Background(), "proj-1", "demo", "stub", []SourceFile{{Path: "child.st", Bytes: []byte("x")}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PlaceholdersCreated)
	assert.Equal(t, 1, stats.UnresolvedRefs)

	wantID := "proj-1:placeholder:ExternalBase"
	var placeholderNode *graphstore.Node
	for _, n := range backend.allNodes() {
		if n.ID == wantID {
			n := n
			placeholderNode = &n
		}
	}
	require.NotNil(t, placeholderNode, "expected a placeholder node")
	assert.Equal(t, graphstore.KindClass, placeholderNode.Kind)
	assert.Equal(t, true, placeholderNode.Properties["placeholder"])

	var inherits, placeholderOwned bool
	for _, e := range backend.allEdges() {
		if e.Kind == graphstore.EdgeInheritsFrom && e.ToID == wantID {
			inherits = true
		}
		if e.Kind == graphstore.EdgeBelongsTo && e.FromID == wantID && e.ToID == "proj-1" {
			placeholderOwned = true
		}
	}
	assert.True(t, inherits, "INHERITS_FROM should target the placeholder")
	assert.True(t, placeholderOwned, "placeholder should belong to the project")
}

func TestBuildResolvedTargetDeletesStalePlaceholder(t *testing.T) {
	child := &parser.ParsedFile{
		Entities: []parser.Entity{
			{Kind: parser.KindClass, Name: "Child", StartLine: 1, EndLine: 10},
		},
		Edges: []parser.EdgeRef{
			{Kind: parser.EdgeInheritsFrom, SrcIndex: 0, DstIndex: -1, TargetName: "Base", TargetHint: "class"},
		},
	}
	base := &parser.ParsedFile{
		Entities: []parser.Entity{
			{Kind: parser.KindClass, Name: "Base", StartLine: 1, EndLine: 5},
		},
	}
	backend := newFakeBackend()
	builder := NewBuilder(backend, stubRegistry(map[string]*parser.ParsedFile{"child.st": child, "base.st": base}), graphstore.DefaultBatchLimits())

	_, err := builder.Build(context.Background(), "proj-1", "demo", "stub", []SourceFile{
		{Path: "child.st", Bytes: []byte("x")},
		{Path: "base.st", Bytes: []byte("y")},
	})
	require.NoError(t, err)

	// A stale placeholder from an earlier build for the now-resolved name
	// gets deleted in the resolution batch.
	assert.Contains(t, backend.allBatchDeletes(), "proj-1:placeholder:Base")
}

func TestBuildRetriesFailedBatchOnce(t *testing.T) {
	files := map[string]*parser.ParsedFile{"a.st": classWithMethods("Alpha", "one", "two")}

	backend := newFakeBackend()
	backend.failBatches = 1
	builder := NewBuilder(backend, stubRegistry(files), graphstore.DefaultBatchLimits())
	_, err := builder.Build(context.Background(), "proj-1", "demo", "stub", []SourceFile{{Path: "a.st", Bytes: []byte("a")}})
	require.NoError(t, err, "one failure should be absorbed by the retry")

	backend = newFakeBackend()
	backend.failBatches = 3
	builder = NewBuilder(backend, stubRegistry(files), graphstore.DefaultBatchLimits())
	_, err = builder.Build(context.Background(), "proj-1", "demo", "stub", []SourceFile{{Path: "a.st", Bytes: []byte("a")}})
	require.Error(t, err, "repeated failures surface to the caller")
}

func TestBuildCanceledBetweenBatches(t *testing.T) {
	files := make(map[string]*parser.ParsedFile)
	var sources []SourceFile
	for _, name := range []string{"a.st", "b.st", "c.st"} {
		files[name] = classWithMethods("C"+name, "m1"+name, "m2"+name)
		sources = append(sources, SourceFile{Path: name, Bytes: []byte(name)})
	}
	backend := newFakeBackend()
	limits := graphstore.DefaultBatchLimits()
	limits.MaxFiles = 1 // force one batch per file
	builder := NewBuilder(backend, stubRegistry(files), limits)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := builder.Build(ctx, "proj-1", "demo", "stub", sources)
	require.ErrorIs(t, err, context.Canceled)
}
