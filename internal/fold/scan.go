package fold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir returns the directory of fold k under datasetDir.
func Dir(datasetDir string, k int) string {
	return filepath.Join(datasetDir, fmt.Sprintf("fold%d", k))
}

// Scan lists the regular files in dir whose extension matches ext, compared
// case-insensitively. Paths are returned in lexical order.
func Scan(dir, ext string) ([]string, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}
