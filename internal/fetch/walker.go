package fetch

import (
	"os"
	"path/filepath"
	"strings"
)

// WalkSourceFiles walks a fetched working directory and yields candidate
// source file paths, skipping vendored/build/cache directories and
// generated or fixture files a parse pass would only waste time on. The
// candidate set is whatever extensions the parser registry has
// registered.
func WalkSourceFiles(rootDir string, supportedExt func(ext string) bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if supportedExt(filepath.Ext(path)) && !isGeneratedFile(path) && !isTestFixture(path) {
			rel, relErr := filepath.Rel(rootDir, path)
			if relErr != nil {
				rel = path
			}
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}

var excludeDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "venv": true,
	"__pycache__": true, ".next": true, ".nuxt": true, "dist": true,
	"build": true, "out": true, "target": true, ".cache": true,
	".parcel-cache": true, "coverage": true, ".nyc_output": true,
	".pytest_cache": true, ".tox": true, ".venv": true, "env": true,
	"__mocks__": true, ".idea": true, ".vscode": true,
}

func shouldSkipDir(name string) bool {
	if excludeDirs[name] {
		return true
	}
	for prefix := range excludeDirs {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func isGeneratedFile(path string) bool {
	for _, suffix := range []string{".min.js", ".bundle.js", ".generated.ts", ".generated.js", ".pb.js", ".pb.ts", "_pb.js", "_pb.ts"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	for _, dir := range []string{"/dist/", "/build/", "/out/", "/.next/", "/.nuxt/"} {
		if strings.Contains(path, dir) {
			return true
		}
	}
	return false
}

func isTestFixture(path string) bool {
	for _, dir := range []string{"/__tests__/fixtures/", "/__mocks__/", "/test/fixtures/", "/tests/fixtures/", "/spec/fixtures/"} {
		if strings.Contains(path, dir) {
			return true
		}
	}
	return false
}
