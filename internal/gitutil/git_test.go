package gitutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func mustRunGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %s: %v", args, out, err)
	}
	return string(out)
}

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	mustRunGit(t, dir, "init", "-q")
	mustRunGit(t, dir, "config", "user.name", "tester")
	mustRunGit(t, dir, "config", "user.email", "tester@example.com")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustRunGit(t, dir, "add", "-A")
	mustRunGit(t, dir, "commit", "-q", "-m", "initial")
	return NewRepo(dir)
}

func TestCommitIfChangedNoOpOnClean(t *testing.T) {
	r := newTestRepo(t)
	changed, err := r.CommitIfChanged("nothing to commit")
	if err != nil {
		t.Fatalf("CommitIfChanged: %v", err)
	}
	if changed {
		t.Fatal("expected no-op commit on a clean worktree")
	}
}

func TestCommitIfChangedCommitsDirtyState(t *testing.T) {
	r := newTestRepo(t)
	if err := os.WriteFile(filepath.Join(r.Dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := r.CommitIfChanged("add a.txt")
	if err != nil {
		t.Fatalf("CommitIfChanged: %v", err)
	}
	if !changed {
		t.Fatal("expected a commit to be made")
	}
	has, err := r.HasChanges()
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if has {
		t.Fatal("expected clean worktree after commit")
	}
}

func TestBranchAndWorktreeLifecycle(t *testing.T) {
	r := newTestRepo(t)
	head, err := r.RevParse("HEAD")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}
	if err := r.CreateBranch("feature/x", head); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if !r.BranchExists("feature/x") {
		t.Fatal("expected branch to exist")
	}

	wtDir := filepath.Join(t.TempDir(), "wt")
	if err := r.AddWorktree(wtDir, "feature/x"); err != nil {
		t.Fatalf("AddWorktree: %v", err)
	}
	entries, err := r.ListWorktrees()
	if err != nil {
		t.Fatalf("ListWorktrees: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Branch == "feature/x" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected feature/x worktree in listing, got %+v", entries)
	}

	if err := r.RemoveWorktree(wtDir, true); err != nil {
		t.Fatalf("RemoveWorktree: %v", err)
	}
}

func TestMergeFFOnly(t *testing.T) {
	r := newTestRepo(t)
	head, err := r.RevParse("HEAD")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}
	if err := r.CreateBranch("ticket/a", head); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.Checkout("ticket/a"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if err := os.WriteFile(filepath.Join(r.Dir, "b.txt"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CommitIfChanged("ticket work"); err != nil {
		t.Fatalf("CommitIfChanged: %v", err)
	}
	if err := r.Checkout("master"); err != nil {
		// default branch may be "main" depending on git config
		if err2 := r.Checkout("main"); err2 != nil {
			t.Fatalf("Checkout master/main: %v / %v", err, err2)
		}
	}
	if err := r.MergeFFOnly("ticket/a"); err != nil {
		t.Fatalf("MergeFFOnly: %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.Dir, "b.txt")); err != nil {
		t.Fatalf("expected b.txt after fast-forward merge: %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"fatal: Unable to create '.git/index.lock': File exists", true},
		{"fatal: cannot lock ref 'refs/heads/master'", true},
		{"fatal: pathspec 'x' did not match any files", false},
	}
	for _, c := range cases {
		if got := isTransient(c.msg); got != c.want {
			t.Errorf("isTransient(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}
