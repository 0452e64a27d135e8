package cli

import (
	"os"
	"strings"
)

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

// listMarkdown returns the .md filenames directly under dir, or nil if
// dir does not exist (same small per-package copy as
// internal/kernel/fileops.go, internal/planning/fileops.go, and
// internal/mergequeue/fileops.go).
func listMarkdown(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
