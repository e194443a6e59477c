package ckg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectOverview(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["project_overview_counts"] = []map[string]any{{
		"total_files": int64(3), "total_classes": int64(3), "total_functions_methods": int64(9),
	}}
	backend.queryRows["project_main_modules"] = []map[string]any{
		{"name": "api", "path": "api/__init__.py"},
	}
	backend.queryRows["top_classes_by_methods"] = []map[string]any{
		{"name": "Service", "file_path": "api/service.py", "method_count": int64(7)},
	}
	backend.queryRows["top_called_functions"] = []map[string]any{
		{"name": "handle", "file_path": "api/service.py", "call_count": int64(12)},
	}

	overview, err := NewQueryAPI(backend).ProjectOverview(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, 3, overview.TotalFiles)
	assert.Equal(t, 3, overview.TotalClasses)
	assert.Equal(t, 9, overview.TotalFunctionsMethods)
	assert.InDelta(t, 3.0, overview.AverageFunctionsPerFile, 1e-9)
	require.Len(t, overview.MainModules, 1)
	assert.Equal(t, "api", overview.MainModules[0].Name)
	require.Len(t, overview.Top5LargestClasses, 1)
	assert.Equal(t, 7, overview.Top5LargestClasses[0].MethodCount)
	require.Len(t, overview.Top5MostCalledFunctions, 1)
	assert.Equal(t, 12, overview.Top5MostCalledFunctions[0].CallCount)
	assert.True(t, overview.HasMeaningfulData())
}

func TestHasMeaningfulData(t *testing.T) {
	tests := []struct {
		name     string
		overview ProjectOverview
		want     bool
	}{
		{"empty graph", ProjectOverview{}, false},
		{"files but no signal", ProjectOverview{TotalFiles: 4}, false},
		{"files with modules", ProjectOverview{TotalFiles: 4, MainModules: []ModuleInfo{{Name: "m"}}}, true},
		{"files with top classes", ProjectOverview{TotalFiles: 4, Top5LargestClasses: []ClassMethodCount{{Name: "C"}}}, true},
		{"signal but zero files", ProjectOverview{MainModules: []ModuleInfo{{Name: "m"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.overview.HasMeaningfulData())
		})
	}
}

func TestCircularFunctionCalls(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["function_call_relationships"] = []map[string]any{
		{"caller": "a", "callee": "b"},
		{"caller": "b", "callee": "c"},
		{"caller": "c", "callee": "a"},
		{"caller": "c", "callee": "d"},
	}

	cycles, err := NewQueryAPI(backend).CircularFunctionCalls(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, cycles, 1)

	cycle := cycles[0]
	assert.Len(t, cycle, 4, "cycle should close on its origin")
	assert.Equal(t, cycle[0], cycle[len(cycle)-1])
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cycle[:3])
}

func TestCircularFunctionCallsNoCycle(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["function_call_relationships"] = []map[string]any{
		{"caller": "a", "callee": "b"},
		{"caller": "b", "callee": "c"},
	}
	cycles, err := NewQueryAPI(backend).CircularFunctionCalls(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestImpactOfChanges(t *testing.T) {
	backend := newFakeBackend()
	backend.queryRows["impact_of_changes"] = []map[string]any{
		{"caller_count": int64(3), "file": "api/handlers.py"},
		{"caller_count": int64(2), "file": "api/handlers.py"},
		{"caller_count": int64(1), "file": "jobs/sync.py"},
	}
	count, files, err := NewQueryAPI(backend).ImpactOfChanges(context.Background(), "p1", []string{"api/service.py"})
	require.NoError(t, err)
	assert.Equal(t, 6, count)
	assert.Equal(t, []string{"api/handlers.py", "jobs/sync.py"}, files)
}
