package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore implements Store for local/dev deployment (StorageConfig.Type
// == "sqlite") over sqlx + mattn/go-sqlite3.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
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
		llm_temperature REAL,
		status TEXT NOT NULL,
		requested_at DATETIME,
		started_at DATETIME,
		completed_at DATETIME,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		file_path TEXT,
		line_start INTEGER,
		line_end INTEGER,
		severity TEXT,
		category TEXT,
		message TEXT,
		suggestion TEXT,
		finding_type TEXT,
		raw_llm_content TEXT,
		created_at DATETIME,
		FOREIGN KEY (request_id) REFERENCES analysis_requests(request_id)
	);

	CREATE TABLE IF NOT EXISTS queue_messages (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		visible_at DATETIME NOT NULL,
		delivery_count INTEGER NOT NULL DEFAULT 0,
		locked_by TEXT,
		locked_until DATETIME,
		enqueued_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_project ON analysis_requests(project_id);
	CREATE INDEX IF NOT EXISTS idx_findings_request ON findings(request_id);
	CREATE INDEX IF NOT EXISTS idx_queue_project_id ON queue_messages(project_id, id);
	CREATE INDEX IF NOT EXISTS idx_queue_visible_at ON queue_messages(visible_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRequest(ctx context.Context, req *AnalysisRequest) error {
	query := `
		INSERT OR REPLACE INTO analysis_requests
		(request_id, job_id, kind, project_id, project_graph_id, repo_url, repo_branch,
		 output_language, project_notes, llm_provider, llm_model, llm_temperature,
		 status, requested_at, started_at, completed_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		req.RequestID, req.JobID, req.Kind, req.ProjectID, req.ProjectGraphID, req.RepoURL, req.RepoBranch,
		req.OutputLanguage, req.ProjectNotes, req.LLMProvider, req.LLMModel, req.LLMTemperature,
		req.Status, req.RequestedAt, req.StartedAt, req.CompletedAt, req.ErrorMessage)
	if err != nil {
		return fmt.Errorf("save analysis request: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateRequestStatus(ctx context.Context, requestID string, status RequestStatus, errMsg string) error {
	var completedAtClause string
	if status == StatusCompleted || status == StatusFailed {
		completedAtClause = ", completed_at = CURRENT_TIMESTAMP"
	}
	query := fmt.Sprintf(`UPDATE analysis_requests SET status = ?, error_message = ?%s WHERE request_id = ?`, completedAtClause)
	res, err := s.db.ExecContext(ctx, query, status, errMsg, requestID)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SaveFindings(ctx context.Context, findings []Finding) error {
	if len(findings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin findings tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO findings
		(request_id, file_path, line_start, line_end, severity, category, message, suggestion, finding_type, raw_llm_content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	for _, f := range findings {
		if _, err := tx.ExecContext(ctx, query,
			f.RequestID, f.FilePath, f.LineStart, f.LineEnd, f.Severity, f.Category, f.Message, f.Suggestion, f.FindingType, f.RawLLMContent); err != nil {
			return fmt.Errorf("insert finding: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetRequest(ctx context.Context, requestID string) (*AnalysisRequest, error) {
	var req AnalysisRequest
	query := `SELECT * FROM analysis_requests WHERE request_id = ?`
	if err := s.db.GetContext(ctx, &req, query, requestID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &req, nil
}

func (s *SQLiteStore) ListFindings(ctx context.Context, requestID string, limit, offset int) ([]Finding, error) {
	var findings []Finding
	query := `SELECT * FROM findings WHERE request_id = ? ORDER BY id LIMIT ? OFFSET ?`
	if err := s.db.SelectContext(ctx, &findings, query, requestID, limit, offset); err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	return findings, nil
}
