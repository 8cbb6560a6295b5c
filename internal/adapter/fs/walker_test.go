package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("a N B-NP\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWalker_IncludesAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "train.conll"))
	writeFile(t, filepath.Join(root, "news", "part1.conll"))
	writeFile(t, filepath.Join(root, "news", "notes.txt"))
	writeFile(t, filepath.Join(root, ".chunker", "cache.conll"))

	w := NewWalker([]string{"**/*.conll"}, []string{"**/.chunker/**"})
	files, err := w.Walk(root)
	if err != nil {
		t.Fatal(err)
	}

	var rel []string
	for _, f := range files {
		rel = append(rel, f.RelPath)
	}
	if len(rel) != 2 || rel[0] != "news/part1.conll" || rel[1] != "train.conll" {
		t.Errorf("unexpected files: %v", rel)
	}
}

func TestWalker_SingleFileRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gold.txt")
	writeFile(t, path)

	files, err := NewWalker([]string{"**/*.conll"}, nil).Walk(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != path {
		t.Errorf("expected the file itself, got %v", files)
	}
}

func TestWalker_MissingRoot(t *testing.T) {
	if _, err := NewWalker(nil, nil).Walk(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing root")
	}
}
