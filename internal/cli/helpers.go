package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/orchestrator/kernel/internal/config"
)

// resolveRepoDir turns --repo into an absolute git repository root,
// walking up from the given path the same way the teacher's run command
// located its git root from a config file's directory.
func resolveRepoDir() (string, error) {
	abs, err := filepath.Abs(repoFlag)
	if err != nil {
		return "", err
	}
	root := findGitRoot(abs)
	if root == "" {
		return "", fmt.Errorf("no git repository found at or above %s", abs)
	}
	return root, nil
}

func findGitRoot(dir string) string {
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadConfig loads and validates --config relative to repoDir, printing
// every validation error to stderr (spec.md §6's config is entirely
// optional, so a missing file is not an error -- config.Load already
// handles that).
func loadConfig(repoDir string) (*config.Config, error) {
	path := filepath.Join(repoDir, configFlag)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "Error: %s\n", e)
		}
		return nil, fmt.Errorf("%d configuration error(s)", len(errs))
	}
	return cfg, nil
}
