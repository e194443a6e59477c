package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// knownCategories mirrors the finding_category values the prompt
// templates advertise; anything else coerces to "Code Quality".
var knownCategories = map[string]bool{
	"Architecture": true, "Code Quality": true, "Security": true,
	"Performance": true, "Lifecycle": true, "Maintainability": true,
	"Design": true, "Correctness": true,
}

// coerceResult applies permissive field coercion to a decoded
// AnalysisOutput in place, returning the list of warnings recorded for
// diagnostics. Never rejects a document for a coercible field — only a
// structurally invalid document fails parse.
func coerceResult(out *AnalysisOutput) []string {
	var warnings []string
	for i := range out.Findings {
		f := &out.Findings[i]
		if sev, ok := coerceSeverity(f.Severity); ok {
			if sev != f.Severity {
				warnings = append(warnings, fmt.Sprintf("finding %d: coerced severity %q -> %q", i, f.Severity, sev))
			}
			f.Severity = sev
		} else {
			warnings = append(warnings, fmt.Sprintf("finding %d: unknown severity %q, defaulted to Note", i, f.Severity))
			f.Severity = SeverityNote
		}

		if !knownCategories[f.Category] {
			warnings = append(warnings, fmt.Sprintf("finding %d: unknown finding_category %q, defaulted to Code Quality", i, f.Category))
			f.Category = "Code Quality"
		}
	}

	if obj, ok := out.ProjectSummary.(map[string]any); ok {
		summary, warn := serializeProjectSummary(obj)
		out.ProjectSummary = summary
		if warn != "" {
			warnings = append(warnings, warn)
		}
	}

	return warnings
}

// coerceSeverity does a case-insensitive match against the known enum;
// ok=false signals the caller should default to Note.
func coerceSeverity(raw Severity) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(string(raw))) {
	case "error":
		return SeverityError, true
	case "warning":
		return SeverityWarning, true
	case "note":
		return SeverityNote, true
	case "info":
		return SeverityInfo, true
	default:
		return SeverityNote, false
	}
}

// serializeProjectSummary flattens a project_summary the model emitted as
// an object into a string, using whatever recognizable metric fields are
// present.
func serializeProjectSummary(obj map[string]any) (string, string) {
	var parts []string
	for _, key := range []string{"total_files", "total_classes", "total_functions_methods", "summary", "description"} {
		if v, ok := obj[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", key, v))
		}
	}
	if len(parts) == 0 {
		raw, _ := json.Marshal(obj)
		return string(raw), "project_summary: no recognizable metric fields, fell back to raw JSON"
	}
	return strings.Join(parts, ", "), ""
}
