package fetch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWalkSourceFilesSkipsVendorAndGenerated(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "main.py"), "print(1)")
	mustWrite(t, filepath.Join(root, "vendor", "lib.py"), "print(2)")
	mustWrite(t, filepath.Join(root, "app.min.js"), "x")
	mustWrite(t, filepath.Join(root, "pkg", "util.ts"), "export {}")

	isSupported := func(ext string) bool {
		return ext == ".py" || ext == ".ts" || ext == ".js"
	}

	files, err := WalkSourceFiles(root, isSupported)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := map[string]bool{}
	for _, f := range files {
		got[filepath.ToSlash(f)] = true
	}
	if !got["main.py"] || !got["pkg/util.ts"] {
		t.Fatalf("expected main.py and pkg/util.ts, got %+v", got)
	}
	if got["vendor/lib.py"] || got["app.min.js"] {
		t.Fatalf("expected vendor and minified files to be skipped, got %+v", got)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
