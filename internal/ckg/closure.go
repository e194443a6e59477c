package ckg

import (
	"context"
	"fmt"
)

// closure computes the dependency closure of a changed-file set: files
// containing symbols that reference the changed set via an edge whose
// target is in the changed files. Walks both CALLS and INHERITS_FROM
// transitively until no new file is added: reverse call edges alone miss
// subclasses whose behavior shifts when a parent changes.
func (u *Updater) closure(ctx context.Context, projectID string, changed map[string]bool) (map[string]bool, error) {
	affected := make(map[string]bool)
	frontier := make(map[string]bool, len(changed))
	for path := range changed {
		frontier[path] = true
	}

	for len(frontier) > 0 {
		next := make(map[string]bool)
		for path := range frontier {
			fid := FileCompositeID(projectID, path)

			callerRows, err := u.store.RunSummaryQuery(ctx, "callers_of_file_symbols", map[string]any{"file_composite_id": fid})
			if err != nil {
				return nil, fmt.Errorf("query callers of %q: %w", path, err)
			}
			inheritorRows, err := u.store.RunSummaryQuery(ctx, "inheritors_of_file_symbols", map[string]any{"file_composite_id": fid})
			if err != nil {
				return nil, fmt.Errorf("query inheritors of %q: %w", path, err)
			}

			for _, rows := range [][]map[string]any{callerRows, inheritorRows} {
				for _, row := range rows {
					callerPath, _ := row["file_path"].(string)
					if callerPath == "" || changed[callerPath] || affected[callerPath] {
						continue
					}
					affected[callerPath] = true
					next[callerPath] = true
				}
			}
		}
		frontier = next
	}

	return affected, nil
}
