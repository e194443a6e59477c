// Package llm implements the provider-agnostic LLM invocation layer:
// template rendering, multi-provider dispatch, strict structured-output
// parsing with a repair pass, and permissive schema coercion so that no
// LLM output is ever silently discarded.
package llm

import "time"

// Provider identifies which backend handles a given invocation.
type Provider string

const (
	ProviderLocal   Provider = "local"    // self-hosted chat-completion endpoint
	ProviderHostedA Provider = "hosted_a" // OpenAI-compatible hosted API
	ProviderHostedB Provider = "hosted_b" // Anthropic-compatible hosted API
)

// Severity grades a finding.
type Severity string

const (
	SeverityError   Severity = "Error"
	SeverityWarning Severity = "Warning"
	SeverityNote    Severity = "Note"
	SeverityInfo    Severity = "Info"
)

// ProviderConfig mirrors AnalysisJob.llm_config: provider, model,
// temperature, and an optional per-project key override. The override
// never mutates the process-wide default. Invoke does not read
// APIKeyOverride: every call goes to the backend wired for Provider at
// startup, which uses the process-wide key.
type ProviderConfig struct {
	Provider       Provider
	Model          string
	Temperature    float64
	APIKeyOverride string
	MaxTokens      int
	MaxAttempts    int // exponential-backoff retry ceiling for transient failures, default 3
}

// DefaultTemperature is the temperature Invoke uses when a call leaves
// Temperature at 0. The LLM_DEFAULT_TEMPERATURE setting is loaded into
// the process config but not passed to the client, so this value applies
// whatever that setting holds.
const DefaultTemperature = 0.1

// DefaultMaxAttempts bounds provider retries per call.
const DefaultMaxAttempts = 3

func (c ProviderConfig) withDefaults() ProviderConfig {
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4000
	}
	return c
}

// Finding is the structured output shape an analysis prompt's
// expected schema ultimately decodes into.
type Finding struct {
	FilePath      string   `json:"file_path"`
	LineStart     int      `json:"line_start"`
	LineEnd       int      `json:"line_end"`
	Severity      Severity `json:"severity"`
	Category      string   `json:"finding_category"`
	Message       string   `json:"message"`
	Suggestion    string   `json:"suggestion"`
	FindingType   string   `json:"finding_type"`
	RawLLMContent string   `json:"-"`
}

// AnalysisOutput is the top-level structured-output schema findings are
// nested under; project_summary is permitted to arrive as either a string
// or an object; coercion normalizes the latter.
type AnalysisOutput struct {
	ProjectSummary any       `json:"project_summary"`
	Findings       []Finding `json:"findings"`
}

// Result always carries the raw reply,
// optionally the parsed structured output, and diagnostics about how
// parsing went.
type Result struct {
	RawContent       string
	ParsedOutput     *AnalysisOutput
	ParsingSucceeded bool
	ParsingError     string
	ProviderName     Provider
	ModelName        string
	CoercionWarnings []string
	Elapsed          time.Duration
}
