package planning

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ps "github.com/mitchellh/go-ps"

	"github.com/orchestrator/kernel/internal/pathkey"
	"github.com/orchestrator/kernel/internal/planstore"
)

// AcquireLock takes the planner lock (spec.md §4.1): a pid file that
// guards the plan-mutation critical section so the planning driver and
// any kernel operation that may invoke an external agent in the plan
// worktree never race each other. It fails fast (ErrLockContended) if the
// lock is already held by a live process, reclaiming it automatically if
// the recorded pid is no longer running. Liveness is checked with go-ps,
// the same library internal/harness uses to find a timed-out child's
// descendants, applied here to a crashed kernel process.
func AcquireLock(repoDir string) (release func() error, err error) {
	path := pathkey.LockPath(repoDir)
	if err := pathkey.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("planning: creating lock dir: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d", os.Getpid())
			f.Close()
			return func() error {
				e := os.Remove(path)
				if os.IsNotExist(e) {
					return nil
				}
				return e
			}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("planning: creating lock file: %w", err)
		}

		holder := readHolder(path)
		if pid, perr := strconv.Atoi(holder); perr == nil && !pidAlive(pid) {
			_ = os.Remove(path)
			continue
		}
		return nil, &planstore.ErrLockContended{Holder: holder}
	}
	return nil, &planstore.ErrLockContended{Holder: readHolder(path)}
}

func readHolder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(data))
}

func pidAlive(pid int) bool {
	proc, err := ps.FindProcess(pid)
	return err == nil && proc != nil
}
