package contextbuild

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

// promptFiles embeds the six prompt templates: one PR-level deep-logic
// template, one full-project architectural template, and four specialty
// templates (security, performance, lifecycle, code-review). Each is a
// plain text file with "{placeholder}" substitution rather than Go's
// {{ }} syntax, since these carry only the profile's system instruction.
// The variable-rich prompt body is rendered by userPromptTmpl below,
// shared unchanged across all six profiles.
//
//go:embed prompts/*.txt
var promptFiles embed.FS

// Profile selects which of the six system-instruction templates a job
// renders against. full_scan jobs default to ProfileArchitecture;
// pr_scan jobs default to ProfilePRDeepLogic; a job's llm_config may
// request one of the four specialty profiles instead.
type Profile string

const (
	ProfileArchitecture Profile = "full_project_architecture"
	ProfilePRDeepLogic  Profile = "pr_deep_logic"
	ProfileSecurity     Profile = "security"
	ProfilePerformance  Profile = "performance"
	ProfileLifecycle    Profile = "lifecycle"
	ProfileCodeReview   Profile = "code_review"
)

// systemPrompt loads and substitutes the profile's template. Falls back to
// ProfileArchitecture for an empty or unrecognized profile so a job never
// fails just because its llm_config omitted the field.
func systemPrompt(profile Profile, c *Context) (string, error) {
	if profile == "" {
		profile = ProfileArchitecture
	}
	raw, err := promptFiles.ReadFile("prompts/" + string(profile) + ".txt")
	if err != nil {
		raw, err = promptFiles.ReadFile("prompts/" + string(ProfileArchitecture) + ".txt")
		if err != nil {
			return "", fmt.Errorf("load prompt profile %q: %w", profile, err)
		}
	}
	replacer := strings.NewReplacer(
		"{project_name}", c.ProjectName,
		"{project_language}", c.ProjectLanguage,
		"{output_language}", c.OutputLanguage,
	)
	rendered := replacer.Replace(string(raw))
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(rendered))
	if c.ProjectCustomNotes != "" {
		sb.WriteString("\nProject notes: ")
		sb.WriteString(c.ProjectCustomNotes)
	}
	sb.WriteString("\n\n")
	sb.WriteString(c.FormatInstructions)
	return sb.String(), nil
}

// userPromptTmpl renders the variable-rich body shared by every profile.
// Kept as a package-level parsed template (built in init, once the "join"
// func map is registered) so rendering never re-parses per call.
var userPromptTmpl *template.Template

const userPromptSrc = `Project: {{.ProjectName}} (branch {{.MainBranch}})

Codebase summary:
- total files: {{.TotalFiles}}
- total classes: {{.TotalClasses}}
- total functions/methods: {{.TotalFunctionsMethods}}
- average functions per file: {{printf "%.2f" .AverageFunctionsPerFile}}
{{if .CKGSummary.MainModules}}
Main modules:
{{range .CKGSummary.MainModules}}- {{.Name}} ({{.Path}})
{{end}}{{end}}{{if .CKGSummary.Top5LargestClasses}}
Largest classes:
{{range .CKGSummary.Top5LargestClasses}}- {{.Name}} in {{.FilePath}} ({{.MethodCount}} methods)
{{end}}{{end}}{{if .CKGSummary.Top5MostCalledFunctions}}
Most-called functions:
{{range .CKGSummary.Top5MostCalledFunctions}}- {{.Name}} in {{.FilePath}} ({{.CallCount}} calls)
{{end}}{{end}}
Top-level directory listing: {{join .DirectoryListingTopLevel ", "}}

Important files:
{{range .ImportantFilesPreview}}--- {{.Path}} ---
{{.Content}}

{{end}}{{if .PRTitle}}
Pull request: {{.PRTitle}} by {{.PRAuthor}}
{{.PRDescription}}
{{.HeadBranch}} -> {{.BaseBranch}}

Diff:
{{.PRDiffContent}}

Changed files:
{{.FormattedChangedFilesWithContent}}
{{end}}`

func init() {
	userPromptTmpl = template.Must(template.New("user").Funcs(templateFuncs).Parse(userPromptSrc))
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

// Render produces the (system, user) prompt pair for c using profile's
// system instruction. The pair feeds directly into llm.Client.Invoke.
func (c *Context) Render(profile Profile) (system, user string, err error) {
	sys, err := systemPrompt(profile, c)
	if err != nil {
		return "", "", err
	}
	var userBuf bytes.Buffer
	if err := userPromptTmpl.Execute(&userBuf, c); err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return sys, userBuf.String(), nil
}
