package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/surrealdb/surreal-sync/pkg/errs"
)

func openLocal(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errs.ErrResource, path, err)
	}
	return f, nil
}

func resolveLocalDirectory(dir string) ([]FileSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read directory %s: %v", errs.ErrResource, dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	sources := make([]FileSource, 0, len(names))
	for _, name := range names {
		sources = append(sources, LocalSource(filepath.Join(dir, name)))
	}
	return sources, nil
}
