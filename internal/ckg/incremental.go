package ckg

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/novaguard-ai/ckg-pipeline/internal/graphstore"
)

// ChangeKind classifies one file in an incremental update plan.
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"
	ChangeModified  ChangeKind = "modified"
	ChangeUnchanged ChangeKind = "unchanged"
	ChangeDeleted   ChangeKind = "deleted"
)

// FileChange is one entry of an update plan.
type FileChange struct {
	Path string
	Kind ChangeKind
}

// UpdateStats reports what an incremental update changed, plus the
// post-update validation outcome. Validation findings are warnings, not
// failures: the update has already committed by the time they run.
type UpdateStats struct {
	Added             int
	Modified          int
	Deleted           int
	AffectedUnchanged int
	TotalUpdated      int
	Validation        *ValidationReport
}

// HashContent computes the content_hash used for change detection. Two
// byte-identical files always hash equal; any byte change alters the hash.
func HashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Updater is the Incremental Updater: given a map of current file
// bytes, it classifies each against the graph's stored content_hash,
// computes the dependency closure of the changed set, and drives selective
// re-parses through the Builder.
type Updater struct {
	store   graphstore.Backend
	builder *Builder
	logger  *slog.Logger
}

func NewUpdater(store graphstore.Backend, builder *Builder) *Updater {
	return &Updater{store: store, builder: builder, logger: slog.Default().With("component", "ckg-updater")}
}

// StoredPaths returns every File path currently recorded for projectID,
// the storedPaths input Plan needs to detect deletions.
func (u *Updater) StoredPaths(ctx context.Context, projectID string) ([]string, error) {
	rows, err := u.store.RunSummaryQuery(ctx, "project_file_paths", map[string]any{"project_id": projectID})
	if err != nil {
		return nil, fmt.Errorf("list stored file paths: %w", err)
	}
	paths := make([]string, 0, len(rows))
	for _, row := range rows {
		if p, ok := row["path"].(string); ok {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// storedHash looks up a File node's content_hash, if it exists.
func (u *Updater) storedHash(ctx context.Context, fileCompositeID string) (hash string, exists bool, err error) {
	rows, err := u.store.RunSummaryQuery(ctx, "file_by_path", map[string]any{"composite_id": fileCompositeID})
	if err != nil {
		return "", false, fmt.Errorf("lookup stored file hash: %w", err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	h, _ := rows[0]["content_hash"].(string)
	return h, true, nil
}

// Plan computes the update plan: classify each current
// file, then report deleted paths from the stored set not present in the
// input. storedPaths is every File path currently recorded for the
// project (from a prior build); current is the present-on-disk content.
func (u *Updater) Plan(ctx context.Context, projectID string, storedPaths []string, current map[string][]byte) ([]FileChange, error) {
	var plan []FileChange
	seen := make(map[string]bool, len(current))

	for path, bytes := range current {
		seen[path] = true
		hashNow := HashContent(bytes)
		fid := FileCompositeID(projectID, path)
		stored, exists, err := u.storedHash(ctx, fid)
		if err != nil {
			return nil, err
		}
		switch {
		case !exists:
			plan = append(plan, FileChange{Path: path, Kind: ChangeAdded})
		case stored != hashNow:
			plan = append(plan, FileChange{Path: path, Kind: ChangeModified})
		default:
			plan = append(plan, FileChange{Path: path, Kind: ChangeUnchanged})
		}
	}

	for _, path := range storedPaths {
		if !seen[path] {
			plan = append(plan, FileChange{Path: path, Kind: ChangeDeleted})
		}
	}

	return plan, nil
}

// Apply executes an update plan: deletes removed files' subgraphs,
// computes the dependency closure of the changed set (see closure for
// which edge kinds are followed), and re-parses added/modified files
// through the Builder, whose resolution pass covers the references of
// those re-parsed files. The closure is only counted into
// AffectedUnchanged: files in it are not re-parsed and their edges are
// not re-resolved.
func (u *Updater) Apply(ctx context.Context, projectID, projectName, language string, plan []FileChange, bytesByPath map[string][]byte) (*UpdateStats, *Stats, error) {
	stats := &UpdateStats{}
	var toDelete []string
	var toParse []SourceFile
	var unchangedPaths []string

	for _, change := range plan {
		switch change.Kind {
		case ChangeDeleted:
			toDelete = append(toDelete, change.Path)
			stats.Deleted++
		case ChangeAdded:
			toParse = append(toParse, SourceFile{Path: change.Path, Bytes: bytesByPath[change.Path]})
			stats.Added++
		case ChangeModified:
			toParse = append(toParse, SourceFile{Path: change.Path, Bytes: bytesByPath[change.Path]})
			stats.Modified++
		case ChangeUnchanged:
			unchangedPaths = append(unchangedPaths, change.Path)
		}
	}

	for _, path := range toDelete {
		if err := u.store.DeleteNodeAndDescendants(ctx, FileCompositeID(projectID, path)); err != nil {
			return stats, nil, fmt.Errorf("delete file %q: %w", path, err)
		}
	}

	changedSet := make(map[string]bool, len(toParse)+len(toDelete))
	for _, f := range toParse {
		changedSet[f.Path] = true
	}
	for _, p := range toDelete {
		changedSet[p] = true
	}

	affected, err := u.closure(ctx, projectID, changedSet)
	if err != nil {
		return stats, nil, fmt.Errorf("compute dependency closure: %w", err)
	}
	stats.AffectedUnchanged = len(affected)

	buildStats, err := u.builder.Build(ctx, projectID, projectName, language, toParse)
	if err != nil {
		return stats, buildStats, err
	}

	stats.TotalUpdated = stats.Added + stats.Modified + stats.Deleted

	// Post-update validation. The graph is already committed, so a failed
	// check degrades to a warning on the stats rather than failing the
	// update.
	report, err := u.Validate(ctx, projectID, DefaultMaxPlaceholderFraction)
	if err != nil {
		u.logger.Warn("post-update validation unavailable", "project_id", projectID, "error", err)
		return stats, buildStats, nil
	}
	stats.Validation = report
	if len(report.OrphanCompositeIDs) > 0 {
		u.logger.Warn("orphan DEFINED_IN targets after update", "project_id", projectID, "count", len(report.OrphanCompositeIDs))
	}
	if report.ExceedsMaxFraction {
		u.logger.Warn("placeholder fraction exceeds bound", "project_id", projectID,
			"placeholders", report.PlaceholderCount, "classes", report.TotalClassCount,
			"fraction", report.PlaceholderFraction)
	}
	return stats, buildStats, nil
}
