package worker

import (
	"encoding/json"
	"time"
)

// Kind distinguishes a PR-diff analysis from a whole-branch scan.
type Kind string

const (
	KindFullScan Kind = "full_scan"
	KindPRScan   Kind = "pr_scan"
)

// RepoRef mirrors AnalysisJob.repo_ref: a remote URL plus either a branch
// (full_scan) or a base/head commit pair with PR metadata (pr_scan).
type RepoRef struct {
	URL        string `json:"url"`
	Branch     string `json:"branch,omitempty"`
	HeadCommit string `json:"head_commit,omitempty"`
	BaseCommit string `json:"base_commit,omitempty"`
	PRNumber   int    `json:"pr_number,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Repo       string `json:"repo,omitempty"`
}

// LLMConfig mirrors AnalysisJob.llm_config. Profile selects which of
// the six system-instruction templates the job renders against; an
// empty Profile lets the worker pick the per-kind default.
type LLMConfig struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	APIKeyOverride string  `json:"key_override,omitempty"`
	Profile        string  `json:"profile,omitempty"`
}

// AnalysisJob is the queue envelope: the JSON document producers enqueue
// and the worker pool consumes.
type AnalysisJob struct {
	JobID          string    `json:"job_id"`
	Kind           Kind      `json:"kind"`
	ProjectID      string    `json:"project_id"`
	RepoRef        RepoRef   `json:"repo_ref"`
	RequestedAt    time.Time `json:"requested_at"`
	LLMConfig      LLMConfig `json:"llm_config"`
	OutputLanguage string    `json:"output_language"`
	ProjectNotes   string    `json:"project_notes"`

	// ProjectName and MainBranch aren't part of the wire envelope's
	// required field list but are carried alongside it by the Producer
	// API so the Context Builder doesn't need a second lookup.
	ProjectName string `json:"project_name,omitempty"`
	MainBranch  string `json:"main_branch,omitempty"`
}

func parseJob(payload []byte) (*AnalysisJob, error) {
	var job AnalysisJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
