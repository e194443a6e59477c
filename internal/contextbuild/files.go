package contextbuild

import (
	"fmt"
	"os"
)

// readFilePreview reads up to maxBytes of relPath under rootDir.
func readFilePreview(rootDir, relPath string, maxBytes int) (string, error) {
	f, err := os.Open(absPath(rootDir, relPath))
	if err != nil {
		return "", fmt.Errorf("open %q: %w", relPath, err)
	}
	defer f.Close()

	buf := make([]byte, maxBytes)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return "", fmt.Errorf("read %q: %w", relPath, err)
	}
	return string(buf[:n]), nil
}

// listDir returns the top-level entry names (files and directories) of
// dir for the prompt's directory listing.
func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if name == ".git" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
