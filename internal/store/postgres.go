package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store for production deployment
// (StorageConfig.Type == "postgres") over a pgxpool connection.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger := slog.Default().With("component", "postgres-store")
	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	logger.Info("postgres store connected")
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_requests (
		request_id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		project_id TEXT NOT NULL,
		project_graph_id TEXT,
		repo_url TEXT,
		repo_branch TEXT,
		output_language TEXT,
		project_notes TEXT,
		llm_provider TEXT,
		llm_model TEXT,
		llm_temperature DOUBLE PRECISION,
		status TEXT NOT NULL,
		requested_at TIMESTAMPTZ,
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS findings (
		id BIGSERIAL PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES analysis_requests(request_id),
		file_path TEXT,
		line_start INTEGER,
		line_end INTEGER,
		severity TEXT,
		category TEXT,
		message TEXT,
		suggestion TEXT,
		finding_type TEXT,
		raw_llm_content TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS queue_messages (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		payload JSONB NOT NULL,
		visible_at TIMESTAMPTZ NOT NULL,
		delivery_count INTEGER NOT NULL DEFAULT 0,
		locked_by TEXT,
		locked_until TIMESTAMPTZ,
		enqueued_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_requests_project ON analysis_requests(project_id);
	CREATE INDEX IF NOT EXISTS idx_findings_request ON findings(request_id);
	CREATE INDEX IF NOT EXISTS idx_queue_project_id ON queue_messages(project_id, id);
	CREATE INDEX IF NOT EXISTS idx_queue_visible_at ON queue_messages(visible_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRequest(ctx context.Context, req *AnalysisRequest) error {
	query := `
		INSERT INTO analysis_requests
		(request_id, job_id, kind, project_id, project_graph_id, repo_url, repo_branch,
		 output_language, project_notes, llm_provider, llm_model, llm_temperature,
		 status, requested_at, started_at, completed_at, error_message)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (request_id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			error_message = EXCLUDED.error_message
	`
	_, err := s.pool.Exec(ctx, query,
		req.RequestID, req.JobID, req.Kind, req.ProjectID, req.ProjectGraphID, req.RepoURL, req.RepoBranch,
		req.OutputLanguage, req.ProjectNotes, req.LLMProvider, req.LLMModel, req.LLMTemperature,
		req.Status, req.RequestedAt, req.StartedAt, req.CompletedAt, req.ErrorMessage)
	if err != nil {
		return fmt.Errorf("save analysis request: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateRequestStatus(ctx context.Context, requestID string, status RequestStatus, errMsg string) error {
	query := `
		UPDATE analysis_requests
		SET status = $1, error_message = $2,
		    completed_at = CASE WHEN $1 IN ('completed', 'failed') THEN NOW() ELSE completed_at END
		WHERE request_id = $3
	`
	tag, err := s.pool.Exec(ctx, query, status, errMsg, requestID)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveFindings(ctx context.Context, findings []Finding) error {
	if len(findings) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin findings tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	query := `
		INSERT INTO findings
		(request_id, file_path, line_start, line_end, severity, category, message, suggestion, finding_type, raw_llm_content)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	for _, f := range findings {
		batch.Queue(query, f.RequestID, f.FilePath, f.LineStart, f.LineEnd, f.Severity, f.Category, f.Message, f.Suggestion, f.FindingType, f.RawLLMContent)
	}
	br := tx.SendBatch(ctx, batch)
	for range findings {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert finding: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close finding batch: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetRequest(ctx context.Context, requestID string) (*AnalysisRequest, error) {
	query := `
		SELECT request_id, job_id, kind, project_id, project_graph_id, repo_url, repo_branch,
		       output_language, project_notes, llm_provider, llm_model, llm_temperature,
		       status, requested_at, started_at, completed_at, error_message
		FROM analysis_requests WHERE request_id = $1
	`
	var req AnalysisRequest
	err := s.pool.QueryRow(ctx, query, requestID).Scan(
		&req.RequestID, &req.JobID, &req.Kind, &req.ProjectID, &req.ProjectGraphID, &req.RepoURL, &req.RepoBranch,
		&req.OutputLanguage, &req.ProjectNotes, &req.LLMProvider, &req.LLMModel, &req.LLMTemperature,
		&req.Status, &req.RequestedAt, &req.StartedAt, &req.CompletedAt, &req.ErrorMessage)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &req, nil
}

func (s *PostgresStore) ListFindings(ctx context.Context, requestID string, limit, offset int) ([]Finding, error) {
	query := `
		SELECT id, request_id, file_path, line_start, line_end, severity, category, message, suggestion, finding_type, raw_llm_content, created_at
		FROM findings WHERE request_id = $1 ORDER BY id LIMIT $2 OFFSET $3
	`
	rows, err := s.pool.Query(ctx, query, requestID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	var out []Finding
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.ID, &f.RequestID, &f.FilePath, &f.LineStart, &f.LineEnd, &f.Severity, &f.Category, &f.Message, &f.Suggestion, &f.FindingType, &f.RawLLMContent, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
