package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func mustGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %s: %v", args, out, err)
	}
}

func newTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mustGit(t, dir, "init", "-q")
	mustGit(t, dir, "config", "user.name", "tester")
	mustGit(t, dir, "config", "user.email", "tester@example.com")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, dir, "add", "-A")
	mustGit(t, dir, "commit", "-q", "-m", "initial")
	return dir
}

func TestEnsureWorktreeCreatedNewBranch(t *testing.T) {
	repoDir := newTestRepo(t)
	m := NewManager(repoDir)

	handle, err := m.EnsureWorktreeCreated(1, "0001-first", "master")
	if err != nil {
		// default branch may be main
		handle, err = m.EnsureWorktreeCreated(1, "0001-first", "main")
		if err != nil {
			t.Fatalf("EnsureWorktreeCreated: %v", err)
		}
	}
	if handle.Branch != "kernel/ticket-0001" {
		t.Errorf("Branch = %q", handle.Branch)
	}
	if _, err := os.Stat(handle.Path); err != nil {
		t.Errorf("expected worktree path to exist: %v", err)
	}
}

func TestEnsureWorktreeCreatedIdempotentAgainstStalePath(t *testing.T) {
	repoDir := newTestRepo(t)
	m := NewManager(repoDir)

	first, err := m.EnsureWorktreeCreated(2, "0002-second", "master")
	if err != nil {
		first, err = m.EnsureWorktreeCreated(2, "0002-second", "main")
		if err != nil {
			t.Fatalf("first EnsureWorktreeCreated: %v", err)
		}
	}

	if err := os.WriteFile(filepath.Join(first.Path, "dirty.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := m.EnsureWorktreeCreated(2, "0002-second", "master")
	if err != nil {
		second, err = m.EnsureWorktreeCreated(2, "0002-second", "main")
		if err != nil {
			t.Fatalf("second EnsureWorktreeCreated: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(second.Path, "dirty.txt")); err == nil {
		t.Error("expected stale dirty file to be gone after re-creation")
	}
}

func TestCleanupStaleRemovesUnreferencedWorktrees(t *testing.T) {
	repoDir := newTestRepo(t)
	m := NewManager(repoDir)

	handle, err := m.EnsureWorktreeCreated(3, "0003-third", "master")
	if err != nil {
		handle, err = m.EnsureWorktreeCreated(3, "0003-third", "main")
		if err != nil {
			t.Fatalf("EnsureWorktreeCreated: %v", err)
		}
	}

	removed, err := m.CleanupStale(map[string]bool{})
	if err != nil {
		t.Fatalf("CleanupStale: %v", err)
	}
	found := false
	for _, r := range removed {
		if r == handle.Path {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s to be reaped, got %v", handle.Path, removed)
	}
}
