package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/novaguard-ai/ckg-pipeline/internal/errors"
)

// ValidationContext specifies what configuration a given command path needs.
type ValidationContext string

const (
	// ValidationContextWorker - the analysis worker daemon requires the
	// graph store, relational store, queue, and redis lease.
	ValidationContextWorker ValidationContext = "worker"
	// ValidationContextSubmit - ckgctl submit only needs the relational
	// store (to enqueue the request) and queue broker.
	ValidationContextSubmit ValidationContext = "submit"
	// ValidationContextParse - validates only the graph store settings.
	ValidationContextParse ValidationContext = "parse"
	// ValidationContextAll - validate everything.
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Validate validates configuration for the given context with auto-detected mode
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	mode := DetectMode()
	return c.ValidateWithMode(ctx, mode)
}

// ValidateWithMode validates configuration for the given context and deployment mode
func (c *Config) ValidateWithMode(ctx ValidationContext, mode DeploymentMode) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextWorker:
		c.validateGraphStore(result, true, mode)
		c.validateStorage(result, true, mode)
		c.validateRedis(result, true)
		c.validateLLM(result, false)
	case ValidationContextSubmit:
		c.validateStorage(result, true, mode)
	case ValidationContextParse:
		c.validateGraphStore(result, true, mode)
	case ValidationContextAll:
		c.validateGraphStore(result, true, mode)
		c.validateStorage(result, true, mode)
		c.validateRedis(result, true)
		c.validateLLM(result, false)
		c.validateGitHub(result, false)
		c.validateWorker(result)
		c.validateCKG(result)
	}

	return result
}

// ValidateOrFatal validates configuration and exits if invalid (auto-detects mode)
func (c *Config) ValidateOrFatal(ctx ValidationContext) {
	mode := DetectMode()
	c.ValidateOrFatalWithMode(ctx, mode)
}

// ValidateOrFatalWithMode validates configuration with explicit mode and exits if invalid
func (c *Config) ValidateOrFatalWithMode(ctx ValidationContext, mode DeploymentMode) {
	result := c.ValidateWithMode(ctx, mode)
	if result.HasErrors() {
		fmt.Println(result.Error())
		fmt.Printf("\nDeployment mode: %s (%s)\n", mode, mode.Description())
		panic(errors.ConfigError(result.Error()))
	}

	if len(result.Warnings) > 0 {
		fmt.Println("Configuration warnings:")
		for _, warn := range result.Warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Printf("\nDeployment mode: %s\n", mode)
	}
}

func (c *Config) validateGraphStore(result *ValidationResult, required bool, mode DeploymentMode) {
	if c.GraphStore.URI == "" {
		if required {
			result.AddError("NEO4J_URI is required but not set")
		} else {
			result.AddWarning("NEO4J_URI is not set")
		}
	} else if _, err := url.Parse(c.GraphStore.URI); err != nil {
		result.AddError("NEO4J_URI is invalid: %v", err)
	} else if strings.Contains(c.GraphStore.URI, "localhost") && mode.RequiresSecureCredentials() {
		result.AddError("NEO4J_URI uses localhost. In %s mode (%s), you must provide a remote database URI.", mode, mode.Description())
	}

	if c.GraphStore.Username == "" {
		if required {
			result.AddError("NEO4J_USERNAME is required but not set")
		} else {
			result.AddWarning("NEO4J_USERNAME is not set")
		}
	}

	if c.GraphStore.Password == "" {
		if required {
			result.AddError("NEO4J_PASSWORD is required but not set. Set it via environment variable or .env file.")
		} else {
			result.AddWarning("NEO4J_PASSWORD is not set")
		}
	} else if mode.RequiresSecureCredentials() {
		insecure := []string{"password", "neo4j", "changeme"}
		for _, bad := range insecure {
			if c.GraphStore.Password == bad {
				result.AddError("NEO4J_PASSWORD is set to an insecure default (%s). Not allowed in %s mode.", bad, mode)
			}
		}
	}
}

func (c *Config) validateStorage(result *ValidationResult, required bool, mode DeploymentMode) {
	switch c.Storage.Type {
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			result.AddError("POSTGRES_DSN is required when STORAGE_TYPE=postgres")
			break
		}
		if !strings.HasPrefix(c.Storage.PostgresDSN, "postgres://") && !strings.HasPrefix(c.Storage.PostgresDSN, "postgresql://") {
			result.AddError("POSTGRES_DSN must start with postgres:// or postgresql://")
		}
		if strings.Contains(c.Storage.PostgresDSN, "sslmode=disable") && mode.RequiresSecureCredentials() {
			result.AddError("POSTGRES_DSN has sslmode=disable. Not allowed in %s mode.", mode)
		}
	case "sqlite":
		if c.Storage.LocalPath == "" {
			result.AddWarning("LOCAL_DB_PATH is not set, will use default")
		}
	default:
		if required {
			result.AddError("STORAGE_TYPE must be 'postgres' or 'sqlite', got %q", c.Storage.Type)
		}
	}
}

func (c *Config) validateRedis(result *ValidationResult, required bool) {
	if c.Redis.Addr == "" {
		if required {
			result.AddError("REDIS_ADDR is required but not set")
		} else {
			result.AddWarning("REDIS_ADDR is not set")
		}
	}
}

func (c *Config) validateLLM(result *ValidationResult, required bool) {
	switch c.LLM.DefaultProvider {
	case "local":
		if c.LLM.LocalBaseURL == "" {
			result.AddError("LLM_LOCAL_BASE_URL is required when default_provider=local")
		}
	case "hosted_a":
		if c.LLM.OpenAIKey == "" {
			if required {
				result.AddError("OPENAI_API_KEY is required but not set")
			} else {
				result.AddWarning("OPENAI_API_KEY is not set; analysis jobs targeting the hosted_a provider will fail")
			}
		}
	case "hosted_b":
		if c.LLM.AnthropicKey == "" {
			if required {
				result.AddError("ANTHROPIC_API_KEY is required but not set")
			} else {
				result.AddWarning("ANTHROPIC_API_KEY is not set; analysis jobs targeting the hosted_b provider will fail")
			}
		}
	default:
		result.AddError("LLM default_provider must be 'local', 'hosted_a', or 'hosted_b', got %q", c.LLM.DefaultProvider)
	}

	if c.LLM.DefaultTemperature < 0 || c.LLM.DefaultTemperature > 2 {
		result.AddWarning("llm default_temperature %.2f is outside the usual [0,2] range", c.LLM.DefaultTemperature)
	}
	if c.LLM.MaxAttempts < 1 {
		result.AddError("llm max_attempts must be >= 1, got %d", c.LLM.MaxAttempts)
	}
}

func (c *Config) validateGitHub(result *ValidationResult, required bool) {
	if c.GitHub.Token == "" {
		if required {
			result.AddError("GITHUB_TOKEN is required but not set")
		} else {
			result.AddWarning("GITHUB_TOKEN is not set; pr_scan fetches will hit anonymous rate limits")
		}
	}
	if c.GitHub.RateLimit <= 0 {
		result.AddWarning("GITHUB_RATE_LIMIT is invalid, will use default")
	}
}

func (c *Config) validateWorker(result *ValidationResult) {
	if c.Worker.MaxAnalysisWorkers <= 0 {
		result.AddError("worker max_analysis_workers must be > 0, got %d", c.Worker.MaxAnalysisWorkers)
	}
	if c.Worker.AnalysisTimeoutSec <= 0 {
		result.AddError("worker analysis_timeout_seconds must be > 0, got %d", c.Worker.AnalysisTimeoutSec)
	}
	if c.Worker.MaxConcurrentAnalyses <= 0 {
		result.AddError("worker max_concurrent_analyses must be > 0, got %d", c.Worker.MaxConcurrentAnalyses)
	}
}

func (c *Config) validateCKG(result *ValidationResult) {
	if c.CKG.BatchSize <= 0 {
		result.AddWarning("ckg batch_size is invalid, will use default")
	}
	if c.CKG.MaxFileSizeBytes <= 0 {
		result.AddWarning("ckg max_file_size_bytes is invalid, will use default")
	}
	if c.CKG.MaxPlaceholderFraction < 0 || c.CKG.MaxPlaceholderFraction > 1 {
		result.AddError("ckg max_placeholder_fraction must be in [0,1], got %.2f", c.CKG.MaxPlaceholderFraction)
	}
	if c.CKG.MaxClosureDepth <= 0 {
		result.AddWarning("ckg max_closure_depth is invalid, will use default")
	}
}

// RequireGraphStore checks if the graph store configuration is valid.
func (c *Config) RequireGraphStore() error {
	result := &ValidationResult{Valid: true}
	c.validateGraphStore(result, true, DetectMode())
	if result.HasErrors() {
		return errors.ConfigError(result.Error())
	}
	return nil
}

// RequireStorage checks if the relational store configuration is valid.
func (c *Config) RequireStorage() error {
	result := &ValidationResult{Valid: true}
	c.validateStorage(result, true, DetectMode())
	if result.HasErrors() {
		return errors.ConfigError(result.Error())
	}
	return nil
}

// RequireLLM checks if the selected LLM provider has its credential set.
func (c *Config) RequireLLM() error {
	result := &ValidationResult{Valid: true}
	c.validateLLM(result, true)
	if result.HasErrors() {
		return errors.ConfigError(result.Error())
	}
	return nil
}
