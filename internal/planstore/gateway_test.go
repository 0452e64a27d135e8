package planstore

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

func newTestGateway(t *testing.T) (*Gateway, string) {
	t.Helper()
	repoDir := t.TempDir()
	mustGit(t, repoDir, "init", "-q")
	mustGit(t, repoDir, "config", "user.name", "tester")
	mustGit(t, repoDir, "config", "user.email", "tester@example.com")
	if err := os.WriteFile(filepath.Join(repoDir, "README.md"), []byte("hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, repoDir, "add", "-A")
	mustGit(t, repoDir, "commit", "-q", "-m", "initial")
	return NewGateway(repoDir), repoDir
}

func TestGatewayInitCreatesSkeletonOnce(t *testing.T) {
	g, _ := newTestGateway(t)
	if err := g.Init("# Spec\n\n(placeholder)\n"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var seenSpec string
	err := g.WithPlanWorktree(func(planPath string) error {
		data, err := os.ReadFile(filepath.Join(planPath, "spec.md"))
		if err != nil {
			return err
		}
		seenSpec = string(data)
		for _, dir := range []string{"areas", "tickets/open", "tickets/in-progress", "tickets/done", "decisions", "queue/merge/pending"} {
			if _, err := os.Stat(filepath.Join(planPath, dir)); err != nil {
				t.Errorf("expected %s to exist: %v", dir, err)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithPlanWorktree: %v", err)
	}
	if seenSpec != "# Spec\n\n(placeholder)\n" {
		t.Errorf("spec.md = %q", seenSpec)
	}

	// Init is a no-op once the branch exists.
	if err := g.Init("should not overwrite"); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	err = g.WithPlanWorktree(func(planPath string) error {
		data, err := os.ReadFile(filepath.Join(planPath, "spec.md"))
		if err != nil {
			return err
		}
		if string(data) != "# Spec\n\n(placeholder)\n" {
			t.Errorf("second Init overwrote spec.md: %q", data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithPlanWorktree: %v", err)
	}
}

func TestGatewayMutationCommitsAsSingleTransition(t *testing.T) {
	g, repoDir := newTestGateway(t)
	if err := g.Init("# Spec\n"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	err := g.WithPlanWorktree(func(planPath string) error {
		if err := os.WriteFile(filepath.Join(planPath, "areas", "01-backend.md"), []byte("# Area 01\n"), 0o644); err != nil {
			return err
		}
		changed, err := g.Commit(planPath, []string{"areas/01-backend.md"}, MsgUpdateAreas)
		if err != nil {
			return err
		}
		if !changed {
			t.Error("expected a commit to be made")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithPlanWorktree: %v", err)
	}

	repo := gitRepoFor(t, repoDir)
	msg, err := repo.CommitMessage(Branch)
	if err != nil {
		t.Fatalf("CommitMessage: %v", err)
	}
	if msg != MsgUpdateAreas {
		t.Errorf("HEAD commit message = %q, want %q", msg, MsgUpdateAreas)
	}
}

func TestGatewayWithPlanWorktreeRequiresInit(t *testing.T) {
	g, _ := newTestGateway(t)
	err := g.WithPlanWorktree(func(string) error { return nil })
	if _, ok := err.(*ErrPlanBranchMissing); !ok {
		t.Fatalf("expected ErrPlanBranchMissing, got %v", err)
	}
}

func gitRepoFor(t *testing.T, dir string) *repoShim {
	return &repoShim{dir: dir}
}

// repoShim avoids importing gitutil's unexported run() in a test that
// only needs to read the latest commit message off a ref.
type repoShim struct{ dir string }

func (r *repoShim) CommitMessage(ref string) (string, error) {
	cmd := exec.Command("git", "log", "-1", "--format=%B", ref)
	cmd.Dir = r.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", err
	}
	s := string(out)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s, nil
}
