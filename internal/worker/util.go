package worker

import (
	"os"
	"path/filepath"

	"github.com/novaguard-ai/ckg-pipeline/internal/contextbuild"
	"github.com/novaguard-ai/ckg-pipeline/internal/parser"
)

func readFile(rootDir, relPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(rootDir, relPath))
}

// detectProjectLanguage picks the language with the most matching files,
// used only as the Project node's informational `language` field. It has
// no bearing on which parser handles which file.
func detectProjectLanguage(registry *parser.Registry, paths []string) string {
	counts := make(map[string]int)
	for _, p := range paths {
		if lang, ok := registry.DetectLanguage(p); ok {
			counts[lang]++
		}
	}
	best, bestCount := "", 0
	for lang, n := range counts {
		if n > bestCount {
			best, bestCount = lang, n
		}
	}
	return best
}

// resolveProfile picks the prompt profile for a job: an explicit
// llm_config.profile wins, otherwise full_scan gets the architectural
// template and pr_scan gets the PR deep-logic template.
func resolveProfile(job *AnalysisJob) contextbuild.Profile {
	if job.LLMConfig.Profile != "" {
		return contextbuild.Profile(job.LLMConfig.Profile)
	}
	if job.Kind == KindPRScan {
		return contextbuild.ProfilePRDeepLogic
	}
	return contextbuild.ProfileArchitecture
}
