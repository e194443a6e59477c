// Package store implements the Relational Store: durable persistence
// for AnalysisRequest and Finding records, and the queue_messages envelope
// table consumed by internal/queue.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for lookups of rows that don't exist, so
// callers can use errors.Is uniformly across backends.
var ErrNotFound = errors.New("store: not found")

// RequestStatus tracks an AnalysisRequest through its state machine.
type RequestStatus string

const (
	StatusPending       RequestStatus = "pending"
	StatusProcessing    RequestStatus = "processing"
	StatusSourceFetched RequestStatus = "source_fetched"
	StatusCKGBuilding   RequestStatus = "ckg_building"
	StatusAnalyzing     RequestStatus = "analyzing"
	StatusCompleted     RequestStatus = "completed"
	StatusFailed        RequestStatus = "failed"
)

// Severity grades a finding.
type Severity string

const (
	SeverityError   Severity = "Error"
	SeverityWarning Severity = "Warning"
	SeverityNote    Severity = "Note"
	SeverityInfo    Severity = "Info"
)

// LLMConfig is the per-job provider override carried on AnalysisJob and
// mirrored onto the AnalysisRequest row, never mutating process-wide config.
type LLMConfig struct {
	Provider    string  `db:"llm_provider" json:"provider"`
	Model       string  `db:"llm_model" json:"model"`
	Temperature float64 `db:"llm_temperature" json:"temperature"`
	KeyOverride string  `db:"llm_key_override" json:"key_override,omitempty"`
}

// AnalysisRequest is the result row mirroring AnalysisJob plus lifecycle
// fields.
type AnalysisRequest struct {
	RequestID      string        `db:"request_id" json:"request_id"`
	JobID          string        `db:"job_id" json:"job_id"`
	Kind           string        `db:"kind" json:"kind"` // "pr_scan" | "full_scan"
	ProjectID      string        `db:"project_id" json:"project_id"`
	ProjectGraphID string        `db:"project_graph_id" json:"project_graph_id"`
	RepoURL        string        `db:"repo_url" json:"repo_url"`
	RepoBranch     string        `db:"repo_branch" json:"repo_branch"`
	OutputLanguage string        `db:"output_language" json:"output_language"`
	ProjectNotes   string        `db:"project_notes" json:"project_notes"`
	LLMProvider    string        `db:"llm_provider" json:"llm_provider"`
	LLMModel       string        `db:"llm_model" json:"llm_model"`
	LLMTemperature float64       `db:"llm_temperature" json:"llm_temperature"`
	Status         RequestStatus `db:"status" json:"status"`
	RequestedAt    time.Time     `db:"requested_at" json:"requested_at"`
	StartedAt      *time.Time    `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage   string        `db:"error_message" json:"error_message,omitempty"`
}

// Finding is one structured (or raw-fallback) analysis result row.
type Finding struct {
	ID            int64     `db:"id" json:"id"`
	RequestID     string    `db:"request_id" json:"request_id"`
	FilePath      string    `db:"file_path" json:"file_path"`
	LineStart     int       `db:"line_start" json:"line_start"`
	LineEnd       int       `db:"line_end" json:"line_end"`
	Severity      Severity  `db:"severity" json:"severity"`
	Category      string    `db:"category" json:"category"`
	Message       string    `db:"message" json:"message"`
	Suggestion    string    `db:"suggestion" json:"suggestion,omitempty"`
	FindingType   string    `db:"finding_type" json:"finding_type"`
	RawLLMContent string    `db:"raw_llm_content" json:"raw_llm_content,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// RawFindingFilePath is the sentinel file_path used for the single synthetic
// finding persisted when LLM parsing fails, so no analysis text is dropped.
const RawFindingFilePath = "Raw LLM Analysis"

// Store persists AnalysisRequest and Finding rows. Rows are append-only
// once terminal, but the implementations do not enforce it: SaveRequest
// on an existing request_id overwrites the row, and UpdateRequestStatus
// does not check the current status. The worker keeps terminal rows
// unchanged by skipping any request already completed or failed.
type Store interface {
	SaveRequest(ctx context.Context, req *AnalysisRequest) error
	UpdateRequestStatus(ctx context.Context, requestID string, status RequestStatus, errMsg string) error
	SaveFindings(ctx context.Context, findings []Finding) error
	GetRequest(ctx context.Context, requestID string) (*AnalysisRequest, error)
	ListFindings(ctx context.Context, requestID string, limit, offset int) ([]Finding, error)
	Close() error
}
