package fs

import (
	"io/fs"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"chunk/internal/port"
)

// Walker finds corpus files under a root by include and exclude globs.
// Patterns are matched against slash-separated paths relative to the root.
type Walker struct {
	includes []string
	excludes []string
}

var _ port.FileWalker = (*Walker)(nil)

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns matching files in lexical order. A root that is itself a
// file is returned as is.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			relPath = d.Name()
		} else if !w.shouldInclude(relPath) || w.shouldExclude(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, port.FileInfo{
			Path:    path,
			RelPath: relPath,
			ModTime: info.ModTime().Unix(),
			Size:    info.Size(),
		})
		return nil
	})

	return files, err
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
