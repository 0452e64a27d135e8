package planstore

import "fmt"

// Sentinel and typed errors for the plan gateway and ticket state model
// (spec.md §7). Declared as small structs implementing error with an
// Unwrap where they wrap an underlying cause, matching the teacher's
// fmt.Errorf("...: %w", err) wrapping convention carried into typed form.

// ErrPlanBranchMissing is returned when the plan branch does not exist.
type ErrPlanBranchMissing struct{ Branch string }

func (e *ErrPlanBranchMissing) Error() string {
	return fmt.Sprintf("plan branch %q does not exist", e.Branch)
}

// ErrPlanWorktreeBusy is returned when a non-managed checkout of the plan
// branch blocks reuse of the managed worktree path.
type ErrPlanWorktreeBusy struct{ Path string }

func (e *ErrPlanWorktreeBusy) Error() string {
	return fmt.Sprintf("plan worktree at %q is checked out by a non-managed process", e.Path)
}

// ErrLockContended is returned when the planner lock is already held.
type ErrLockContended struct{ Holder string }

func (e *ErrLockContended) Error() string {
	return fmt.Sprintf("planner lock is held by pid %s", e.Holder)
}

// ErrIO wraps a git or filesystem failure encountered mid-transition.
type ErrIO struct{ Cause error }

func (e *ErrIO) Error() string { return fmt.Sprintf("io error: %s", e.Cause) }
func (e *ErrIO) Unwrap() error { return e.Cause }

// ErrWriteGuardViolation is raised when a planning driver wrote outside
// its declared allowed path set.
type ErrWriteGuardViolation struct {
	Driver string
	Paths  []string
}

func (e *ErrWriteGuardViolation) Error() string {
	return fmt.Sprintf("%s wrote outside its allowed scope: %v", e.Driver, e.Paths)
}

// Validation error kinds (spec.md §7). Each is a distinct type so callers
// can type-switch rather than string-match.

type ErrInvalidAreaPath struct{ Path string }

func (e *ErrInvalidAreaPath) Error() string { return fmt.Sprintf("invalid area path %q", e.Path) }

type ErrInvalidTicketSlug struct{ Slug string }

func (e *ErrInvalidTicketSlug) Error() string { return fmt.Sprintf("invalid ticket slug %q", e.Slug) }

type ErrInvalidTicketPrefix struct{ Prefix string }

func (e *ErrInvalidTicketPrefix) Error() string {
	return fmt.Sprintf("invalid ticket numeric prefix %q", e.Prefix)
}

type ErrEmptyTicketContent struct{}

func (e *ErrEmptyTicketContent) Error() string { return "ticket content is empty" }

type ErrAreaMismatch struct {
	Expected, Got string
}

func (e *ErrAreaMismatch) Error() string {
	return fmt.Sprintf("ticket references area %q, expected %q", e.Got, e.Expected)
}

type ErrInvalidQueueItem struct{ Name string }

func (e *ErrInvalidQueueItem) Error() string { return fmt.Sprintf("invalid queue item %q", e.Name) }

type ErrBadEndpointURL struct{ URL string }

func (e *ErrBadEndpointURL) Error() string { return fmt.Sprintf("bad endpoint URL %q", e.URL) }
