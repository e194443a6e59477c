package ckg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novaguard-ai/ckg-pipeline/internal/graphstore"
	"github.com/novaguard-ai/ckg-pipeline/internal/parser"
)

func TestHashContent(t *testing.T) {
	a := HashContent([]byte("def f(): pass"))
	assert.Equal(t, a, HashContent([]byte("def f(): pass")))
	assert.NotEqual(t, a, HashContent([]byte("def f(): pass\n")))
	assert.Len(t, a, 64)
}

func TestCompositeID(t *testing.T) {
	assert.Equal(t, "p1:src/a.py", CompositeID("p1", "src/a.py", "", 0))
	assert.Equal(t, "p1:src/a.py", FileCompositeID("p1", "src/a.py"))
	assert.Equal(t, "p1:src/a.py:Foo", CompositeID("p1", "src/a.py", "Foo", 0))
	assert.Equal(t, "p1:src/a.py:Foo:12", CompositeID("p1", "src/a.py", "Foo", 12))
}

// hashBackend serves stored content hashes per file composite ID the way a
// previously built graph would.
func hashBackend(stored map[string]string) *fakeBackend {
	backend := newFakeBackend()
	backend.queryFn = func(name string, params map[string]any) []map[string]any {
		if name != "file_by_path" {
			return nil
		}
		cid, _ := params["composite_id"].(string)
		hash, ok := stored[cid]
		if !ok {
			return []map[string]any{} // non-nil: lookup ran, file unknown
		}
		return []map[string]any{{"content_hash": hash}}
	}
	return backend
}

func TestPlanClassifiesChanges(t *testing.T) {
	oldBytes := []byte("class A: pass")
	newBytes := []byte("class A:\n    def m(self): pass")
	keepBytes := []byte("class B: pass")

	stored := map[string]string{
		FileCompositeID("p1", "changed.st"):   HashContent(oldBytes),
		FileCompositeID("p1", "unchanged.st"): HashContent(keepBytes),
		FileCompositeID("p1", "removed.st"):   HashContent([]byte("gone")),
	}
	backend := hashBackend(stored)
	updater := NewUpdater(backend, NewBuilder(backend, stubRegistry(nil), graphstore.DefaultBatchLimits()))

	plan, err := updater.Plan(context.Background(), "p1",
		[]string{"changed.st", "unchanged.st", "removed.st"},
		map[string][]byte{
			"changed.st":   newBytes,
			"unchanged.st": keepBytes,
			"new.st":       []byte("class C: pass"),
		})
	require.NoError(t, err)

	kinds := make(map[string]ChangeKind, len(plan))
	for _, c := range plan {
		kinds[c.Path] = c.Kind
	}
	assert.Equal(t, ChangeModified, kinds["changed.st"])
	assert.Equal(t, ChangeUnchanged, kinds["unchanged.st"])
	assert.Equal(t, ChangeDeleted, kinds["removed.st"])
	assert.Equal(t, ChangeAdded, kinds["new.st"])
}

func TestApplyDeletesRemovedFilesAndCountsStats(t *testing.T) {
	files := map[string]*parser.ParsedFile{
		"mod.st": classWithMethods("Mod", "m1", "m2"),
		"new.st": classWithMethods("New", "n1", "n2"),
	}
	backend := newFakeBackend()
	updater := NewUpdater(backend, NewBuilder(backend, stubRegistry(files), graphstore.DefaultBatchLimits()))

	plan := []FileChange{
		{Path: "mod.st", Kind: ChangeModified},
		{Path: "new.st", Kind: ChangeAdded},
		{Path: "same.st", Kind: ChangeUnchanged},
		{Path: "gone.st", Kind: ChangeDeleted},
	}
	bytesByPath := map[string][]byte{
		"mod.st": []byte("m"),
		"new.st": []byte("n"),
	}

	stats, buildStats, err := updater.Apply(context.Background(), "p1", "demo", "stub", plan, bytesByPath)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 1, stats.Modified)
	assert.Equal(t, 1, stats.Deleted)
	assert.Equal(t, 3, stats.TotalUpdated)
	assert.Equal(t, 2, buildStats.FilesProcessed)

	assert.Equal(t, []string{FileCompositeID("p1", "gone.st")}, backend.deleted)

	require.NotNil(t, stats.Validation, "validation runs as part of every update")
	assert.False(t, stats.Validation.ExceedsMaxFraction)
}

func TestApplySurfacesPlaceholderDrift(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["placeholder_count"] = []map[string]any{{"placeholder_count": int64(6)}}
	backend.queryRows["total_class_count"] = []map[string]any{{"total_class_count": int64(10)}}
	updater := NewUpdater(backend, NewBuilder(backend, stubRegistry(nil), graphstore.DefaultBatchLimits()))

	plan := []FileChange{{Path: "gone.st", Kind: ChangeDeleted}}
	stats, _, err := updater.Apply(context.Background(), "p1", "demo", "stub", plan, nil)
	require.NoError(t, err, "a suspect graph is a warning, not a failure")

	require.NotNil(t, stats.Validation)
	assert.True(t, stats.Validation.ExceedsMaxFraction)
	assert.InDelta(t, 0.6, stats.Validation.PlaceholderFraction, 1e-9)
}

func TestApplyUnchangedSetIsNoOp(t *testing.T) {
	backend := newFakeBackend()
	updater := NewUpdater(backend, NewBuilder(backend, stubRegistry(nil), graphstore.DefaultBatchLimits()))

	plan := []FileChange{
		{Path: "a.st", Kind: ChangeUnchanged},
		{Path: "b.st", Kind: ChangeUnchanged},
	}
	stats, buildStats, err := updater.Apply(context.Background(), "p1", "demo", "stub", plan, nil)
	require.NoError(t, err)

	assert.Zero(t, stats.TotalUpdated)
	assert.Zero(t, stats.AffectedUnchanged)
	assert.Zero(t, buildStats.FilesProcessed)
	assert.Empty(t, backend.deleted)

	// No File node is rewritten, so no stored content_hash or updated_at
	// moves: only the idempotent Project upsert runs.
	for _, n := range backend.allNodes() {
		assert.Equal(t, graphstore.KindProject, n.Kind)
	}
}

func TestClosureFollowsCallersAndInheritorsTransitively(t *testing.T) {
	// b.st calls into a.st; c.st inherits from b.st. Changing a.st must
	// pull in both, one hop at a time.
	backend := newFakeBackend()
	backend.queryFn = func(name string, params map[string]any) []map[string]any {
		fid, _ := params["file_composite_id"].(string)
		switch {
		case name == "callers_of_file_symbols" && fid == FileCompositeID("p1", "a.st"):
			return []map[string]any{{"file_path": "b.st"}}
		case name == "inheritors_of_file_symbols" && fid == FileCompositeID("p1", "b.st"):
			return []map[string]any{{"file_path": "c.st"}}
		}
		return []map[string]any{}
	}
	updater := NewUpdater(backend, NewBuilder(backend, stubRegistry(nil), graphstore.DefaultBatchLimits()))

	affected, err := updater.closure(context.Background(), "p1", map[string]bool{"a.st": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"b.st": true, "c.st": true}, affected)
}

func TestValidateReportsPlaceholderFraction(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["orphan_defined_in_check"] = []map[string]any{{"composite_id": "p1:lost.st:Ghost"}}
	backend.queryRows["placeholder_count"] = []map[string]any{{"placeholder_count": int64(4)}}
	backend.queryRows["total_class_count"] = []map[string]any{{"total_class_count": int64(10)}}
	updater := NewUpdater(backend, NewBuilder(backend, stubRegistry(nil), graphstore.DefaultBatchLimits()))

	report, err := updater.Validate(context.Background(), "p1", 0.30)
	require.NoError(t, err)

	assert.Equal(t, []string{"p1:lost.st:Ghost"}, report.OrphanCompositeIDs)
	assert.Equal(t, 4, report.PlaceholderCount)
	assert.Equal(t, 10, report.TotalClassCount)
	assert.InDelta(t, 0.4, report.PlaceholderFraction, 1e-9)
	assert.True(t, report.ExceedsMaxFraction)

	report, err = updater.Validate(context.Background(), "p1", 0.50)
	require.NoError(t, err)
	assert.False(t, report.ExceedsMaxFraction)
}
