package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/novaguard-ai/ckg-pipeline/internal/errors"
)

// Client implements the LLM Client public contract: Invoke renders a
// template, dispatches to whichever Provider the job's llm_config selects,
// attempts a strict schema parse, falls back to a repair pass, and applies
// permissive coercion. A reply is never silently discarded: when all
// parsing fails the raw content still reaches the caller.
type Client struct {
	providers map[Provider]Backend
	limiter   *RateLimiter
	logger    *slog.Logger
}

// NewClient wires one backend per configured provider slot. A nil entry in
// providers means that slot is unavailable (e.g. no API key configured);
// Invoke returns an error if the job selects an unavailable provider.
func NewClient(providers map[Provider]Backend, limiter *RateLimiter) *Client {
	return &Client{providers: providers, limiter: limiter, logger: slog.Default().With("component", "llm-client")}
}

// Result.ProviderName / ModelName are fixed up by Invoke after dispatch, so
// callers never have to pass them in.

// Invoke renders, completes, parses, and if needed repairs one LLM call.
func (c *Client) Invoke(ctx context.Context, renderedSystem, renderedUser string, schemaName string, schemaJSON []byte, cfg ProviderConfig) (*Result, error) {
	cfg = cfg.withDefaults()
	start := time.Now()

	provider, ok := c.providers[cfg.Provider]
	if !ok || provider == nil {
		return nil, errors.ConfigErrorf("llm provider %q not configured", cfg.Provider)
	}

	req := CompletionRequest{
		SystemPrompt: renderedSystem,
		UserPrompt:   renderedUser,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		SchemaName:   schemaName,
		SchemaJSON:   schemaJSON,
	}

	resp, err := c.completeWithRetry(ctx, provider, req, cfg.MaxAttempts)
	if err != nil {
		// After retry exhaustion the worker treats this as "no structured
		// findings" and continues; it is never fatal to the job.
		c.logger.Warn("llm unreachable after retries", "provider", cfg.Provider, "error", err)
		return &Result{
			RawContent:       "",
			ParsingSucceeded: false,
			ParsingError:     "llm_unreachable",
			ProviderName:     cfg.Provider,
			ModelName:        cfg.Model,
			Elapsed:          time.Since(start),
		}, nil
	}

	c.logger.Debug("llm raw reply", "provider", cfg.Provider, "model", resp.Model, "content", resp.Content)

	result := &Result{
		RawContent:   resp.Content,
		ProviderName: cfg.Provider,
		ModelName:    firstNonEmpty(resp.Model, cfg.Model),
		Elapsed:      time.Since(start),
	}

	if parsed, warnings, parseErr := tryParse(resp.Content); parseErr == nil {
		result.ParsedOutput = parsed
		result.ParsingSucceeded = true
		result.CoercionWarnings = warnings
		result.Elapsed = time.Since(start)
		return result, nil
	} else {
		result.ParsingError = parseErr.Error()
	}

	// Step 5: repair pass — send raw_content + parsing_error back to the
	// same provider with the schema, requesting a corrected JSON document.
	repairReq := CompletionRequest{
		SystemPrompt: repairSystemPrompt(schemaJSON),
		UserPrompt:   repairUserPrompt(resp.Content, result.ParsingError),
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		SchemaName:   schemaName,
		SchemaJSON:   schemaJSON,
	}
	repairResp, repairErr := c.completeWithRetry(ctx, provider, repairReq, 1)
	if repairErr != nil {
		result.Elapsed = time.Since(start)
		return result, nil // repair call itself failed transiently; keep the original parse failure
	}

	if parsed, warnings, parseErr := tryParse(repairResp.Content); parseErr == nil {
		result.ParsedOutput = parsed
		result.ParsingSucceeded = true
		result.ParsingError = ""
		result.CoercionWarnings = warnings
	} else {
		result.ParsingError = parseErr.Error()
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

// completeWithRetry retries transient provider failures with bounded
// exponential backoff up to maxAttempts, consulting the rate limiter
// before every attempt when one is configured.
func (c *Client) completeWithRetry(ctx context.Context, provider Backend, req CompletionRequest, maxAttempts int) (CompletionResponse, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			select {
			case <-ctx.Done():
				return CompletionResponse{}, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return CompletionResponse{}, err
			}
		}
		resp, err := provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return CompletionResponse{}, fmt.Errorf("exhausted %d attempts: %w", maxAttempts, lastErr)
}

// tryParse attempts a strict schema decode of content, extracting a
// top-level JSON object even when the model wrapped it in prose
// ("Here's the analysis: {...}"). Coercion (severity,
// finding_category, project_summary) is applied on success.
func tryParse(content string) (*AnalysisOutput, []string, error) {
	candidate := extractJSONObject(content)
	if candidate == "" {
		return nil, nil, fmt.Errorf("no JSON object found in reply")
	}
	var out AnalysisOutput
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, nil, fmt.Errorf("json decode: %w", err)
	}
	warnings := coerceResult(&out)
	return &out, warnings, nil
}

// extractJSONObject returns the first balanced-brace JSON object substring
// in content, tolerating leading/trailing prose the model added around
// its structured reply.
func extractJSONObject(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

func repairSystemPrompt(schemaJSON []byte) string {
	return fmt.Sprintf("You produced output that failed schema validation. Return ONLY a corrected JSON document matching this schema, no prose:\n%s", string(schemaJSON))
}

func repairUserPrompt(rawContent, parsingError string) string {
	return fmt.Sprintf("Original reply:\n%s\n\nParsing error: %s\n\nReturn the corrected JSON document.", rawContent, parsingError)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
