// Package worker implements the Analysis Worker: a pool of
// goroutines that dequeue AnalysisJob envelopes and drive them through
// the fetch -> build/update -> query -> context -> LLM -> persist
// pipeline, transitioning the request record through its state machine
// and guaranteeing at most one active job per project at a time.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/novaguard-ai/ckg-pipeline/internal/ckg"
	"github.com/novaguard-ai/ckg-pipeline/internal/contextbuild"
	pipelineerrors "github.com/novaguard-ai/ckg-pipeline/internal/errors"
	"github.com/novaguard-ai/ckg-pipeline/internal/fetch"
	"github.com/novaguard-ai/ckg-pipeline/internal/graphstore"
	"github.com/novaguard-ai/ckg-pipeline/internal/llm"
	"github.com/novaguard-ai/ckg-pipeline/internal/obslog"
	"github.com/novaguard-ai/ckg-pipeline/internal/parser"
	"github.com/novaguard-ai/ckg-pipeline/internal/queue"
	"github.com/novaguard-ai/ckg-pipeline/internal/store"
)

// pollInterval is how long an idle worker goroutine sleeps between empty
// Dequeue calls.
const pollInterval = 2 * time.Second

// Deps bundles every collaborator the worker pipeline drives: fetch,
// graph build/update, query, context assembly, LLM, and persistence.
type Deps struct {
	Queue           queue.Queue
	Store           store.Store
	GraphStore      graphstore.Backend
	Registry        *parser.Registry
	Fetcher         *fetch.Fetcher
	PRClient        *fetch.PRClient
	LLMClient       *llm.Client
	ContextBuilder  *contextbuild.Builder
	Lease           *Lease
	Limits          graphstore.BatchLimits
	Embedder        llm.Embedder
	AnalysisTimeout time.Duration
}

// Pool runs MaxWorkers goroutines, each independently polling Deps.Queue.
type Pool struct {
	deps    Deps
	workers int
	logger  *slog.Logger
}

func NewPool(deps Deps, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{deps: deps, workers: workers, logger: slog.Default().With("component", "worker-pool")}
}

// Run blocks until ctx is canceled, running p.workers goroutines that each
// loop: dequeue, process, ack/release.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		id := i
		go func() {
			defer wg.Done()
			p.runWorker(ctx, id)
		}()
	}
	wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	logger := p.logger.With("worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := p.deps.Queue.Dequeue(ctx, p.deps.AnalysisTimeout)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return
			}
			logger.Error("dequeue failed", "error", err)
			sleep(ctx, pollInterval)
			continue
		}
		if msg == nil {
			sleep(ctx, pollInterval)
			continue
		}

		p.handle(ctx, logger, msg)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// handle processes one dequeued message end to end, always resolving to
// either Ack (success, permanent failure, or malformed envelope) or
// Release (lease contention — another worker owns this project right
// now, try again later).
func (p *Pool) handle(ctx context.Context, logger *slog.Logger, msg *queue.Message) {
	job, err := parseJob(msg.Payload)
	if err != nil {
		logger.Error("malformed job envelope, dropping", "message_id", msg.ID, "error", err)
		p.deps.Queue.Ack(ctx, msg.ID)
		return
	}
	logger = logger.With("job_id", job.JobID, "project_id", job.ProjectID)

	jobCtx, cancel := context.WithTimeout(ctx, p.deps.AnalysisTimeout)
	defer cancel()

	held, ok, err := p.deps.Lease.Acquire(jobCtx, job.ProjectID)
	if err != nil {
		logger.Error("lease acquire failed", "error", err)
		p.deps.Queue.Release(ctx, msg.ID)
		return
	}
	if !ok {
		logger.Debug("project lease held by another worker, releasing message for retry")
		p.deps.Queue.Release(ctx, msg.ID)
		return
	}
	defer held.Release(context.Background())

	if err := p.runJob(jobCtx, logger, job); err != nil {
		logger.Error("job failed terminally", "error", err)
	}
	p.deps.Queue.Ack(ctx, msg.ID)
}

// runJob drives one job through the request state machine. A failing
// pipeline step marks the request failed and its error is returned; an
// error writing a status transition is returned without a failed mark.
// handle logs the error and always Acks after runJob. Failed jobs are
// never re-enqueued automatically, operators re-enqueue by hand.
func (p *Pool) runJob(ctx context.Context, logger *slog.Logger, job *AnalysisJob) error {
	metrics := obslog.NewJobMetrics(job.JobID)
	req, err := p.deps.Store.GetRequest(ctx, job.JobID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		req = &store.AnalysisRequest{
			RequestID:      job.JobID,
			JobID:          job.JobID,
			Kind:           string(job.Kind),
			ProjectID:      job.ProjectID,
			RepoURL:        job.RepoRef.URL,
			RepoBranch:     job.RepoRef.Branch,
			OutputLanguage: job.OutputLanguage,
			ProjectNotes:   job.ProjectNotes,
			LLMProvider:    job.LLMConfig.Provider,
			LLMModel:       job.LLMConfig.Model,
			LLMTemperature: job.LLMConfig.Temperature,
			Status:         store.StatusPending,
			RequestedAt:    job.RequestedAt,
		}
		if err := p.deps.Store.SaveRequest(ctx, req); err != nil {
			return fmt.Errorf("create request record: %w", err)
		}
	}

	// Idempotent per job_id: a redelivered message for an already-terminal
	// job is a no-op.
	if req.Status == store.StatusCompleted || req.Status == store.StatusFailed {
		logger.Debug("request already terminal, skipping", "status", req.Status)
		return nil
	}

	fail := func(stepErr error) error {
		msg := stepErr.Error()
		if errors.Is(stepErr, context.Canceled) || errors.Is(stepErr, context.DeadlineExceeded) {
			msg = "canceled"
		}
		logger.Error("step failed", "error", stepErr)
		// The job ctx may already be dead; the terminal status write gets
		// its own short-lived context so the failure is still recorded.
		updCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if updErr := p.deps.Store.UpdateRequestStatus(updCtx, req.RequestID, store.StatusFailed, msg); updErr != nil {
			logger.Error("failed to persist failure status", "error", updErr)
		}
		metrics.Emit(nil, string(store.StatusFailed))
		return stepErr
	}

	if err := p.deps.Store.UpdateRequestStatus(ctx, req.RequestID, store.StatusProcessing, ""); err != nil {
		return fmt.Errorf("transition to processing: %w", err)
	}

	scratch, err := p.fetchSource(ctx, job)
	if err != nil {
		return fail(err)
	}
	defer scratch.Release()

	if err := p.deps.Store.UpdateRequestStatus(ctx, req.RequestID, store.StatusSourceFetched, ""); err != nil {
		return fmt.Errorf("transition to source_fetched: %w", err)
	}

	if err := p.deps.Store.UpdateRequestStatus(ctx, req.RequestID, store.StatusCKGBuilding, ""); err != nil {
		return fmt.Errorf("transition to ckg_building: %w", err)
	}
	language, buildStats, err := p.buildOrUpdateGraph(ctx, job, scratch.Dir)
	if err != nil {
		return fail(err)
	}
	if buildStats != nil {
		metrics.FilesProcessed = buildStats.FilesProcessed
		metrics.EntitiesCreated = buildStats.EntitiesCreated
		metrics.UnresolvedRefs = buildStats.UnresolvedRefs
		metrics.Placeholders = buildStats.PlaceholdersCreated
	}

	if err := p.deps.Store.UpdateRequestStatus(ctx, req.RequestID, store.StatusAnalyzing, ""); err != nil {
		return fmt.Errorf("transition to analyzing: %w", err)
	}

	if err := p.analyze(ctx, job, req, scratch.Dir, language, metrics); err != nil {
		return fail(err)
	}

	if err := p.deps.Store.UpdateRequestStatus(ctx, req.RequestID, store.StatusCompleted, ""); err != nil {
		return fmt.Errorf("transition to completed: %w", err)
	}
	metrics.Emit(nil, string(store.StatusCompleted))
	logger.Info("job completed")
	return nil
}

// fetchSource clones the repo for either job kind.
func (p *Pool) fetchSource(ctx context.Context, job *AnalysisJob) (*fetch.Scratch, error) {
	ref := fetch.RepoRef{
		URL:        job.RepoRef.URL,
		Branch:     job.RepoRef.Branch,
		HeadCommit: job.RepoRef.HeadCommit,
		BaseCommit: job.RepoRef.BaseCommit,
		PRNumber:   job.RepoRef.PRNumber,
	}
	return p.deps.Fetcher.Fetch(ctx, job.JobID, ref)
}

// buildOrUpdateGraph advances the graph: a brand-new project gets a
// full Builder.Build; a project already in the graph goes through the
// Incremental Updater so unchanged files aren't re-parsed.
func (p *Pool) buildOrUpdateGraph(ctx context.Context, job *AnalysisJob, rootDir string) (string, *ckg.Stats, error) {
	builder := ckg.NewBuilder(p.deps.GraphStore, p.deps.Registry, p.deps.Limits)
	if p.deps.Embedder != nil {
		builder.WithEmbedder(p.deps.Embedder)
	}
	queryAPI := ckg.NewQueryAPI(p.deps.GraphStore)

	paths, err := fetch.WalkSourceFiles(rootDir, p.deps.Registry.SupportedExtension)
	if err != nil {
		return "", nil, fmt.Errorf("walk source files: %w", err)
	}

	current := make(map[string][]byte, len(paths))
	for _, rel := range paths {
		data, err := readFile(rootDir, rel)
		if err != nil {
			continue // an unreadable file is left out of this run's file set, not fatal here
		}
		current[rel] = data
	}
	language := detectProjectLanguage(p.deps.Registry, paths)
	projectName := job.ProjectName
	if projectName == "" {
		projectName = job.ProjectID
	}

	overview, err := queryAPI.ProjectOverview(ctx, job.ProjectID)
	if err != nil {
		return "", nil, fmt.Errorf("check existing project overview: %w", err)
	}
	if overview.TotalFiles == 0 {
		files := make([]ckg.SourceFile, 0, len(current))
		for path, data := range current {
			files = append(files, ckg.SourceFile{Path: path, Bytes: data})
		}
		buildStats, err := builder.Build(ctx, job.ProjectID, projectName, language, files)
		if err != nil {
			return "", buildStats, fmt.Errorf("build graph: %w", err)
		}
		return language, buildStats, nil
	}

	updater := ckg.NewUpdater(p.deps.GraphStore, builder)
	storedPaths, err := updater.StoredPaths(ctx, job.ProjectID)
	if err != nil {
		return "", nil, fmt.Errorf("list stored paths: %w", err)
	}
	plan, err := updater.Plan(ctx, job.ProjectID, storedPaths, current)
	if err != nil {
		return "", nil, fmt.Errorf("compute update plan: %w", err)
	}
	updStats, buildStats, err := updater.Apply(ctx, job.ProjectID, projectName, language, plan, current)
	if err != nil {
		return "", buildStats, fmt.Errorf("apply update plan: %w", err)
	}
	if v := updStats.Validation; v != nil && (v.ExceedsMaxFraction || len(v.OrphanCompositeIDs) > 0) {
		p.logger.Warn("graph validation flagged issues after update",
			"project_id", job.ProjectID,
			"orphans", len(v.OrphanCompositeIDs),
			"placeholder_fraction", v.PlaceholderFraction)
	}
	return language, buildStats, nil
}

// analyze runs overview query -> context assembly -> LLM, then persists
// either structured findings or the single raw-fallback row.
func (p *Pool) analyze(ctx context.Context, job *AnalysisJob, req *store.AnalysisRequest, rootDir, language string, metrics *obslog.JobMetrics) error {
	queryAPI := ckg.NewQueryAPI(p.deps.GraphStore)
	overview, err := queryAPI.ProjectOverview(ctx, job.ProjectID)
	if err != nil {
		return fmt.Errorf("project overview: %w", err)
	}

	projectName := job.ProjectName
	if projectName == "" {
		projectName = job.ProjectID
	}
	mainBranch := job.MainBranch
	if mainBranch == "" {
		mainBranch = job.RepoRef.Branch
	}

	var promptCtx *contextbuild.Context
	if job.Kind == KindPRScan && p.deps.PRClient != nil && job.RepoRef.Owner != "" {
		prMeta, err := p.deps.PRClient.FetchPR(ctx, job.RepoRef.Owner, job.RepoRef.Repo, job.RepoRef.PRNumber)
		if err != nil {
			return fmt.Errorf("fetch pr metadata: %w", err)
		}
		promptCtx, err = p.deps.ContextBuilder.BuildPRScan(overview, projectName, language, mainBranch, job.ProjectNotes, job.OutputLanguage, rootDir, prMeta)
		if err != nil {
			return fmt.Errorf("build pr-scan context: %w", err)
		}
	} else {
		promptCtx, err = p.deps.ContextBuilder.BuildFullScan(overview, projectName, language, mainBranch, job.ProjectNotes, job.OutputLanguage, rootDir)
		if err != nil {
			return fmt.Errorf("build full-scan context: %w", err)
		}
	}

	if !promptCtx.HasMeaningfulData() {
		// Nothing worth spending tokens on; the request still completes
		// with one informational row so the report is never empty-handed.
		metrics.RecordFinding(string(store.SeverityInfo))
		return p.deps.Store.SaveFindings(ctx, []store.Finding{{
			RequestID:     req.RequestID,
			FilePath:      store.RawFindingFilePath,
			Severity:      store.SeverityInfo,
			FindingType:   "no_analyzable_source",
			RawLLMContent: promptCtx.SyntheticSummary(),
			CreatedAt:     time.Now(),
		}})
	}

	system, user, err := promptCtx.Render(resolveProfile(job))
	if err != nil {
		return fmt.Errorf("render prompt: %w", err)
	}

	cfg := llm.ProviderConfig{
		Provider:       llm.Provider(job.LLMConfig.Provider),
		Model:          job.LLMConfig.Model,
		Temperature:    job.LLMConfig.Temperature,
		APIKeyOverride: job.LLMConfig.APIKeyOverride,
	}
	result, err := p.deps.LLMClient.Invoke(ctx, system, user, "analysis_output", []byte(analysisOutputSchema), cfg)
	if err != nil {
		return pipelineerrors.LLMUnreachable(err)
	}

	now := time.Now()
	if result.ParsingSucceeded && result.ParsedOutput != nil {
		findings := make([]store.Finding, 0, len(result.ParsedOutput.Findings))
		for _, f := range result.ParsedOutput.Findings {
			metrics.RecordFinding(string(f.Severity))
			findings = append(findings, store.Finding{
				RequestID:   req.RequestID,
				FilePath:    f.FilePath,
				LineStart:   f.LineStart,
				LineEnd:     f.LineEnd,
				Severity:    store.Severity(f.Severity),
				Category:    f.Category,
				Message:     f.Message,
				Suggestion:  f.Suggestion,
				FindingType: f.FindingType,
				CreatedAt:   now,
			})
		}
		return p.deps.Store.SaveFindings(ctx, findings)
	}

	// Parsing failed: one synthetic finding row carries the full reply, so
	// no analysis text is dropped. An unreachable provider leaves no reply
	// at all; the row then carries the parsing error so it is never blank.
	metrics.RecordFinding(string(store.SeverityInfo))
	body := result.RawContent
	if body == "" {
		body = result.ParsingError
	}
	return p.deps.Store.SaveFindings(ctx, []store.Finding{{
		RequestID:     req.RequestID,
		FilePath:      store.RawFindingFilePath,
		Severity:      store.SeverityInfo,
		FindingType:   "raw_fallback",
		RawLLMContent: body,
		CreatedAt:     now,
	}})
}

// analysisOutputSchema is the JSON schema handed to providers that
// support native structured output (hosted API A) and embedded in the
// repair-pass prompt for the others, mirroring llm.AnalysisOutput.
const analysisOutputSchema = `{
  "type": "object",
  "properties": {
    "project_summary": {},
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "file_path": {"type": "string"},
          "line_start": {"type": "integer"},
          "line_end": {"type": "integer"},
          "severity": {"type": "string", "enum": ["Error", "Warning", "Note", "Info"]},
          "finding_category": {"type": "string"},
          "message": {"type": "string"},
          "suggestion": {"type": "string"},
          "finding_type": {"type": "string"}
        },
        "required": ["file_path", "severity", "message"]
      }
    }
  },
  "required": ["findings"]
}`
