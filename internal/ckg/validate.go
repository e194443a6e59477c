package ckg

import (
	"context"
	"fmt"
)

// ValidationReport is the result of the post-update validation pass:
// no orphan DEFINED_IN targets, no duplicate composite
// IDs (guaranteed structurally by MERGE upserts, so not re-checked here),
// and placeholder count bounded to a configurable fraction of total
// classes.
type ValidationReport struct {
	OrphanCompositeIDs  []string
	PlaceholderCount    int
	TotalClassCount     int
	PlaceholderFraction float64
	ExceedsMaxFraction  bool
}

// DefaultMaxPlaceholderFraction caps placeholders at 25% of all Class
// nodes before callers should treat the graph as suspect
// (e.g. because a base language runtime wasn't registered, leaving most
// inheritance edges unresolved).
const DefaultMaxPlaceholderFraction = 0.25

// Validate runs the Incremental Updater's post-update checks against the
// live graph.
func (u *Updater) Validate(ctx context.Context, projectID string, maxPlaceholderFraction float64) (*ValidationReport, error) {
	if maxPlaceholderFraction <= 0 {
		maxPlaceholderFraction = DefaultMaxPlaceholderFraction
	}

	orphanRows, err := u.store.RunSummaryQuery(ctx, "orphan_defined_in_check", map[string]any{"limit": 1000})
	if err != nil {
		return nil, fmt.Errorf("orphan check: %w", err)
	}
	orphans := make([]string, 0, len(orphanRows))
	for _, row := range orphanRows {
		if id, ok := row["composite_id"].(string); ok {
			orphans = append(orphans, id)
		}
	}

	placeholderRows, err := u.store.RunSummaryQuery(ctx, "placeholder_count", map[string]any{"project_id": projectID})
	if err != nil {
		return nil, fmt.Errorf("placeholder count: %w", err)
	}
	totalRows, err := u.store.RunSummaryQuery(ctx, "total_class_count", map[string]any{"project_id": projectID})
	if err != nil {
		return nil, fmt.Errorf("total class count: %w", err)
	}

	placeholders := asInt(firstOr(placeholderRows, "placeholder_count"))
	total := asInt(firstOr(totalRows, "total_class_count"))

	fraction := 0.0
	if total > 0 {
		fraction = float64(placeholders) / float64(total)
	}

	return &ValidationReport{
		OrphanCompositeIDs:  orphans,
		PlaceholderCount:    placeholders,
		TotalClassCount:     total,
		PlaceholderFraction: fraction,
		ExceedsMaxFraction:  fraction > maxPlaceholderFraction,
	}, nil
}

func firstOr(rows []map[string]any, key string) any {
	if len(rows) == 0 {
		return nil
	}
	return rows[0][key]
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
