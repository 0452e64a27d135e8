package planning

import (
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/orchestrator/kernel/internal/gitutil"
	"github.com/orchestrator/kernel/internal/planstore"
)

// Scope patterns for each planning driver's allowed write set (spec.md
// §4.8). Expressed as gitignore-style patterns and matched with
// go-gitignore rather than hand-rolled prefix checks, mirroring
// internal/engine/ignore_test.go's filesMatchIgnorePatterns precedent —
// here "matches" means "is in-scope" rather than "is ignored."
var (
	scopeSpecOnly     = ignore.CompileIgnoreLines("spec.md")
	scopeAreasOnly    = ignore.CompileIgnoreLines("areas/**", "areas/*")
	scopeTicketsOpen  = ignore.CompileIgnoreLines("tickets/open/**", "tickets/open/*")
)

// guardScope rejects the run with ErrWriteGuardViolation if any changed
// path falls outside scope. driver names the offending driver for the
// error message (e.g. "architect", "manager").
func guardScope(driver string, scope *ignore.GitIgnore, changed []string) error {
	var bad []string
	for _, p := range changed {
		if !scope.MatchesPath(p) {
			bad = append(bad, p)
		}
	}
	if len(bad) > 0 {
		return &planstore.ErrWriteGuardViolation{Driver: driver, Paths: bad}
	}
	return nil
}

// guardOuterRepoUntouched rejects the run if the planning driver mutated
// the outer source repository under management — the plan driver's
// sandbox-bypass flag (internal/harness BuildArgv) means nothing at the
// OS level stops a misbehaving agent from writing there, so this is
// enforced after the fact by diffing the outer repo's own worktree
// (spec.md §4.8: "Any mutation of the outer source repository by the
// plan driver is also a guard violation").
func guardOuterRepoUntouched(driver, repoDir string) error {
	changed, err := gitutil.NewRepo(repoDir).ChangedPaths()
	if err != nil {
		return &planstore.ErrIO{Cause: err}
	}
	if len(changed) > 0 {
		return &planstore.ErrWriteGuardViolation{Driver: driver, Paths: changed}
	}
	return nil
}
