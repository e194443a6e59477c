// Package ckg implements the CKG Builder, Incremental Updater,
// and Query/Summary API: orchestrating the Parser Registry's output
// into Graph Store writes, detecting file-set deltas, and serving read-side
// summaries the context builder depends on.
package ckg

import (
	"fmt"
	"strings"
)

// CompositeID builds the deterministic node identifier
// {project_id}:{file_path}[:{symbol_name}[:{start_line}]]. Re-parsing
// identical source produces the identical ID, which is what makes upserts
// idempotent and cross-run references stable.
func CompositeID(projectID, filePath string, symbolName string, startLine int) string {
	parts := []string{projectID, filePath}
	if symbolName != "" {
		parts = append(parts, symbolName)
		if startLine > 0 {
			parts = append(parts, fmt.Sprintf("%d", startLine))
		}
	}
	return strings.Join(parts, ":")
}

// FileCompositeID is CompositeID with no symbol component, identifying a
// File node.
func FileCompositeID(projectID, filePath string) string {
	return CompositeID(projectID, filePath, "", 0)
}
