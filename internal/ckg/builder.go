package ckg

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/novaguard-ai/ckg-pipeline/internal/graphstore"
	"github.com/novaguard-ai/ckg-pipeline/internal/llm"
	"github.com/novaguard-ai/ckg-pipeline/internal/parser"
)

// DefaultParseConcurrency bounds concurrent file parses at 2x CPU cores.
func DefaultParseConcurrency() int {
	return runtime.NumCPU() * 2
}

// SourceFile is one file handed to the Builder: its repo-relative path and
// raw bytes. The Incremental Updater and full-scan walker both produce
// these; the Builder doesn't care which.
type SourceFile struct {
	Path  string
	Bytes []byte
}

// Stats counts what a build touched: files processed, entities created,
// unresolved refs, placeholders.
type Stats struct {
	FilesProcessed      int
	EntitiesCreated     int
	EdgesCreated        int
	UnresolvedRefs      int
	PlaceholdersCreated int
	FileErrors          map[string][]string
}

// Builder orchestrates parsing of a project tree and upserts entities and
// relationships into the graph store. It owns the per-project symbol index
// used for cross-file resolution.
type Builder struct {
	store            graphstore.Backend
	registry         *parser.Registry
	limits           graphstore.BatchLimits
	logger           *slog.Logger
	embedder         llm.Embedder
	parseConcurrency int
}

func NewBuilder(store graphstore.Backend, registry *parser.Registry, limits graphstore.BatchLimits) *Builder {
	return &Builder{
		store: store, registry: registry, limits: limits,
		logger:           slog.Default().With("component", "ckg-builder"),
		parseConcurrency: DefaultParseConcurrency(),
	}
}

// WithParseConcurrency overrides the default 2x-CPU-cores bound on
// concurrent file parses within a batch.
func (b *Builder) WithParseConcurrency(n int) *Builder {
	if n > 0 {
		b.parseConcurrency = n
	}
	return b
}

// WithEmbedder enables embedding-assisted disambiguation in the cross-file
// resolution pass. Without one, ambiguous references fall back to the cheap
// heuristic in resolveAmbiguous.
func (b *Builder) WithEmbedder(e llm.Embedder) *Builder {
	b.embedder = e
	return b
}

// pendingEdge is an unresolved cross-file reference awaiting resolution
// once the whole batch (or, for small projects, the whole build) has been
// parsed and its symbols indexed.
type pendingEdge struct {
	kind           graphstore.EdgeKind
	srcKind        graphstore.NodeKind
	srcCompositeID string
	srcLine        int
	targetName     string
	targetHint     string
	modType        string
}

// Build performs a full build: parses every file,
// upserts its symbols batch by batch, then resolves cross-file references
// against the accumulated symbol index. projectID is the Project's
// graph_id; files is the walked file set (already extension/size filtered
// by the caller's Repository Fetcher + Parser Registry).
func (b *Builder) Build(ctx context.Context, projectID, projectName, language string, files []SourceFile) (*Stats, error) {
	stats := &Stats{FileErrors: make(map[string][]string)}
	index := newSymbolIndex()
	var pending []pendingEdge

	now := time.Now()
	projectBatch := graphstore.Batch{}
	projectBatch.AddNode(graphstore.Node{
		Kind: graphstore.KindProject,
		ID:   projectID,
		Properties: graphstore.ProjectProps{
			GraphID: projectID, Name: projectName, Language: language,
			CreatedAt: now, UpdatedAt: now,
		}.ToMap(),
	})
	if err := b.upsertWithRetry(ctx, projectBatch); err != nil {
		return nil, fmt.Errorf("upsert project: %w", err)
	}

	for _, group := range chunkFiles(files, b.limits.MaxFiles) {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		batch := graphstore.Batch{}
		groupPending, err := b.processFileGroup(ctx, projectID, group, &batch, index, stats)
		if err != nil {
			return stats, err
		}
		pending = append(pending, groupPending...)

		if err := b.upsertWithRetry(ctx, batch); err != nil {
			return stats, fmt.Errorf("ckg build batch failed: %w", err)
		}
	}

	// Step 4: cross-file resolution, once the whole symbol index is built.
	resolveBatch := graphstore.Batch{}
	b.resolve(ctx, projectID, pending, index, &resolveBatch, stats)
	if !resolveBatch.IsEmpty() {
		if err := b.upsertWithRetry(ctx, resolveBatch); err != nil {
			return stats, fmt.Errorf("ckg resolution batch failed: %w", err)
		}
	}

	return stats, nil
}

// upsertWithRetry retries a failed batch once at the Builder level before
// surfacing the error to the worker.
func (b *Builder) upsertWithRetry(ctx context.Context, batch graphstore.Batch) error {
	if batch.IsEmpty() {
		return nil
	}
	err := b.store.UpsertBatch(ctx, batch)
	if err == nil {
		return nil
	}
	b.logger.Warn("batch write failed, retrying once", "error", err)
	return b.store.UpsertBatch(ctx, batch)
}

// parsedGroup pairs a SourceFile with its parse result, preserving group
// order across the concurrent parse fan-out below.
type parsedGroup struct {
	file SourceFile
	pf   *parser.ParsedFile
	err  error
}

// parseGroupConcurrently parses every file in group up to b.parseConcurrency
// at a time. Results preserve group's original order so the
// subsequent serial batch-building pass is deterministic.
func (b *Builder) parseGroupConcurrently(ctx context.Context, group []SourceFile) []parsedGroup {
	out := make([]parsedGroup, len(group))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.parseConcurrency)
	for i, f := range group {
		i, f := i, f
		eg.Go(func() error {
			select {
			case <-egCtx.Done():
				return nil
			default:
			}
			pf, err := b.registry.ParseFile(f.Path, f.Bytes)
			out[i] = parsedGroup{file: f, pf: pf, err: err}
			return nil
		})
	}
	_ = eg.Wait() // parse errors are per-file and carried in out[i].err, never fatal to the group
	return out
}

func (b *Builder) processFileGroup(ctx context.Context, projectID string, group []SourceFile, batch *graphstore.Batch, index *symbolIndex, stats *Stats) ([]pendingEdge, error) {
	var pending []pendingEdge

	for _, parsed := range b.parseGroupConcurrently(ctx, group) {
		f, pf, err := parsed.file, parsed.pf, parsed.err
		if err != nil {
			// A parser error on one file must not abort the build;
			// record and continue.
			stats.FileErrors[f.Path] = append(stats.FileErrors[f.Path], err.Error())
			continue
		}

		fileCompositeID := FileCompositeID(projectID, f.Path)
		batch.AddNode(graphstore.Node{
			Kind: graphstore.KindFile,
			ID:   fileCompositeID,
			Properties: graphstore.FileProps{
				CompositeID: fileCompositeID, Path: f.Path, ProjectID: projectID,
				Language: pf.Language, SizeBytes: pf.SizeBytes, ContentHash: pf.ContentHash,
				Errors: pf.Errors, UpdatedAt: time.Now(),
			}.ToMap(),
		})
		batch.AddEdge(graphstore.Edge{
			Kind: graphstore.EdgeBelongsTo, FromKind: graphstore.KindFile, FromID: fileCompositeID,
			ToKind: graphstore.KindProject, ToID: projectID,
		})

		// Re-parse semantics: delete everything previously DEFINED_IN this
		// file before inserting its new symbols, within the same
		// transaction.
		batch.Delete(fileCompositeID)

		stats.FilesProcessed++
		if len(pf.Entities) == 0 {
			continue
		}

		entityCompositeIDs := make([]string, len(pf.Entities))
		for i, e := range pf.Entities {
			cid := CompositeID(projectID, f.Path, e.Name, e.StartLine)
			entityCompositeIDs[i] = cid
			kind := toGraphKind(e.Kind)
			batch.AddNode(graphstore.Node{Kind: kind, ID: cid, Properties: entityProps(cid, projectID, e)})
			batch.AddEdge(graphstore.Edge{Kind: graphstore.EdgeBelongsTo, FromKind: kind, FromID: cid, ToKind: graphstore.KindProject, ToID: projectID})
			batch.AddEdge(graphstore.Edge{Kind: graphstore.EdgeDefinedIn, FromKind: kind, FromID: cid, ToKind: graphstore.KindFile, ToID: fileCompositeID})
			index.add(e.Name, kind, cid, f.Path, e.Signature)
			stats.EntitiesCreated++
		}

		for _, edge := range pf.Edges {
			srcID := entityCompositeIDs[edge.SrcIndex]
			srcKind := toGraphKind(pf.Entities[edge.SrcIndex].Kind)
			if edge.DstIndex >= 0 {
				dstID := entityCompositeIDs[edge.DstIndex]
				dstKind := toGraphKind(pf.Entities[edge.DstIndex].Kind)
				batch.AddEdge(intraFileEdge(edge, srcKind, srcID, dstKind, dstID))
				stats.EdgesCreated++
				continue
			}
			pending = append(pending, pendingEdge{
				kind: toGraphEdgeKind(edge.Kind), srcKind: srcKind, srcCompositeID: srcID, srcLine: edge.Line,
				targetName: edge.TargetName, targetHint: edge.TargetHint, modType: edge.ModificationType,
			})
		}
	}

	return pending, nil
}

func chunkFiles(files []SourceFile, size int) [][]SourceFile {
	if size <= 0 {
		size = 50
	}
	var out [][]SourceFile
	for i := 0; i < len(files); i += size {
		end := i + size
		if end > len(files) {
			end = len(files)
		}
		out = append(out, files[i:end])
	}
	return out
}
