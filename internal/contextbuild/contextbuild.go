// Package contextbuild implements the Context Builder: it assembles
// the exact prompt-variable set the LLM Client's templates require from a
// project overview, file previews, and (for pr_scan jobs) PR metadata.
package contextbuild

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/novaguard-ai/ckg-pipeline/internal/ckg"
	"github.com/novaguard-ai/ckg-pipeline/internal/fetch"
	"github.com/novaguard-ai/ckg-pipeline/internal/git"
)

// importantFilePreviewBytes bounds how much of each preview file is
// embedded in the prompt.
const importantFilePreviewBytes = 2000

// maxImportantFiles bounds how many files get a preview entry.
const maxImportantFiles = 10

// maxDiffLines bounds the PR diff embedded in the prompt: keep the
// header and first hunks, drop the tail.
const maxDiffLines = 400

// FilePreview is one entry of ImportantFilesPreview: a path plus a
// truncated content snippet.
type FilePreview struct {
	Path    string
	Content string
}

// Context is the full variable set a prompt template renders against.
// Fields below the blank line are only populated for pr_scan jobs.
type Context struct {
	ProjectName              string
	ProjectLanguage          string
	MainBranch               string
	ProjectCustomNotes       string
	OutputLanguage           string
	CKGSummary               *ckg.ProjectOverview
	TotalFiles               int
	TotalClasses             int
	TotalFunctionsMethods    int
	AverageFunctionsPerFile  float64
	ImportantFilesPreview    []FilePreview
	DirectoryListingTopLevel []string
	FormatInstructions       string

	PRTitle                          string
	PRDescription                    string
	PRAuthor                         string
	HeadBranch                       string
	BaseBranch                       string
	PRDiffContent                    string
	FormattedChangedFilesWithContent string
}

// Builder assembles Context values from a project overview plus on-disk
// working-tree data. It holds no state of its own.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

// FormatInstructions is the fixed serialization schema every prompt
// appends, describing the AnalysisOutput JSON shape the LLM must reply
// with.
const FormatInstructions = `Respond with a single JSON object matching this shape:
{
  "project_summary": "string or object summarizing the analysis",
  "findings": [
    {
      "file_path": "string",
      "line_start": 0,
      "line_end": 0,
      "severity": "Error|Warning|Note|Info",
      "finding_category": "string",
      "message": "string",
      "suggestion": "string",
      "finding_type": "string"
    }
  ]
}
Return ONLY the JSON object, no surrounding prose.`

// BuildFullScan assembles the Context for a full_scan job.
// overview comes verbatim from the Query API; rootDir is
// the fetched working tree used for file previews and the top-level
// directory listing.
func (b *Builder) BuildFullScan(overview *ckg.ProjectOverview, projectName, language, mainBranch, notes, outputLanguage, rootDir string) (*Context, error) {
	previews, err := importantFilesPreview(overview, rootDir)
	if err != nil {
		return nil, fmt.Errorf("build file previews: %w", err)
	}
	top, err := topLevelListing(rootDir)
	if err != nil {
		return nil, fmt.Errorf("list top-level directory: %w", err)
	}

	return &Context{
		ProjectName:              projectName,
		ProjectLanguage:          language,
		MainBranch:               mainBranch,
		ProjectCustomNotes:       notes,
		OutputLanguage:           outputLanguage,
		CKGSummary:               overview,
		TotalFiles:               overview.TotalFiles,
		TotalClasses:             overview.TotalClasses,
		TotalFunctionsMethods:    overview.TotalFunctionsMethods,
		AverageFunctionsPerFile:  overview.AverageFunctionsPerFile,
		ImportantFilesPreview:    previews,
		DirectoryListingTopLevel: top,
		FormatInstructions:       FormatInstructions,
	}, nil
}

// BuildPRScan extends BuildFullScan with the pr_scan-only variables.
func (b *Builder) BuildPRScan(overview *ckg.ProjectOverview, projectName, language, mainBranch, notes, outputLanguage, rootDir string, pr *fetch.PRMetadata) (*Context, error) {
	c, err := b.BuildFullScan(overview, projectName, language, mainBranch, notes, outputLanguage, rootDir)
	if err != nil {
		return nil, err
	}
	c.PRTitle = pr.Title
	c.PRDescription = pr.Description
	c.PRAuthor = pr.Author
	c.HeadBranch = pr.HeadBranch
	c.BaseBranch = pr.BaseBranch
	c.PRDiffContent = git.TruncateDiffForPrompt(pr.DiffContent, maxDiffLines)
	c.FormattedChangedFilesWithContent = formatChangedFiles(pr.ChangedFiles)
	return c, nil
}

// HasMeaningfulData is the gate in front of the LLM: no call
// is worth making (and none is made) when the graph carries no signal.
func (c *Context) HasMeaningfulData() bool {
	return c.CKGSummary != nil && c.CKGSummary.HasMeaningfulData()
}

// SyntheticSummary is returned in place of an LLM call when
// HasMeaningfulData is false, so the model never gets a chance to invent
// content for an empty graph.
func (c *Context) SyntheticSummary() string {
	return fmt.Sprintf("%s has no analyzable code yet (total_files=%d); skipped LLM analysis.", c.ProjectName, c.TotalFiles)
}

func importantFilesPreview(overview *ckg.ProjectOverview, rootDir string) ([]FilePreview, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, m := range overview.MainModules {
		if m.Path != "" && !seen[m.Path] {
			seen[m.Path] = true
			paths = append(paths, m.Path)
		}
	}
	for _, c := range overview.Top5LargestClasses {
		if c.FilePath != "" && !seen[c.FilePath] {
			seen[c.FilePath] = true
			paths = append(paths, c.FilePath)
		}
	}
	for _, f := range overview.Top5MostCalledFunctions {
		if f.FilePath != "" && !seen[f.FilePath] {
			seen[f.FilePath] = true
			paths = append(paths, f.FilePath)
		}
	}
	sort.Strings(paths)
	if len(paths) > maxImportantFiles {
		paths = paths[:maxImportantFiles]
	}

	var previews []FilePreview
	for _, p := range paths {
		data, err := readFilePreview(rootDir, p, importantFilePreviewBytes)
		if err != nil {
			continue // a file the overview references but that's gone by read time isn't fatal
		}
		previews = append(previews, FilePreview{Path: p, Content: data})
	}
	return previews, nil
}

func topLevelListing(rootDir string) ([]string, error) {
	entries, err := listDir(rootDir)
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)
	return entries, nil
}

func formatChangedFiles(files []fetch.ChangedFile) string {
	var sb strings.Builder
	for _, f := range files {
		sb.WriteString(fmt.Sprintf("=== %s (%s) ===\n", f.Path, f.Status))
		if f.Patch != "" {
			sb.WriteString(f.Patch)
			sb.WriteString("\n")
		}
		if f.Content != "" {
			preview := f.Content
			if len(preview) > importantFilePreviewBytes {
				preview = preview[:importantFilePreviewBytes]
			}
			sb.WriteString(preview)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func absPath(rootDir, relPath string) string {
	return filepath.Join(rootDir, relPath)
}
