package planning

import (
	"sort"

	"github.com/orchestrator/kernel/internal/gitutil"
	"github.com/orchestrator/kernel/internal/planstore"
)

// RunSpecOneShot runs the Architect once against the current spec.md and
// commits iff its bytes differ from the pre-run snapshot (spec.md §4.8
// "Spec update and interactive session"). extraDirective, if non-empty,
// is appended to the standard one-shot directive (used by the CLI's
// `plan <prompt>` one-shot form to carry the user's prompt text).
func (d *Driver) RunSpecOneShot(extraDirective string) (changed bool, err error) {
	err = d.Gateway.WithPlanWorktree(func(planPath string) error {
		before, rerr := readFile(planPath + "/spec.md")
		if rerr != nil {
			return &planstore.ErrIO{Cause: rerr}
		}

		prompt := buildArchitectPrompt(d.RepoDir, before, architectOneShotDirective)
		if extraDirective != "" {
			prompt += "\n\nUser request: " + extraDirective
		}

		if _, rerr := d.runner().Run(d.harnessConfig("architect", planPath, "architect-spec"), prompt); rerr != nil {
			return rerr
		}

		if gerr := guardOuterRepoUntouched("architect", d.RepoDir); gerr != nil {
			return gerr
		}
		changedPaths, cerr := changedPathsIn(planPath)
		if cerr != nil {
			return cerr
		}
		if gerr := guardScope("architect", scopeSpecOnly, changedPaths); gerr != nil {
			return gerr
		}

		after, rerr := readFile(planPath + "/spec.md")
		if rerr != nil {
			return &planstore.ErrIO{Cause: rerr}
		}
		if after == before {
			return nil
		}
		committed, cerr := d.Gateway.Commit(planPath, []string{"spec.md"}, planstore.MsgUpdateSpec)
		if cerr != nil {
			return cerr
		}
		changed = committed
		return nil
	})
	if err == nil && changed {
		d.infof("architect updated spec.md")
	}
	return changed, err
}

// RunAreas runs the Architect to decompose spec.md into areas/*.md,
// called by the event loop when areas/ is empty (spec.md §4.9 item 4).
func (d *Driver) RunAreas() error {
	return d.Gateway.WithPlanWorktree(func(planPath string) error {
		specContent, rerr := readFile(planPath + "/spec.md")
		if rerr != nil {
			return &planstore.ErrIO{Cause: rerr}
		}

		prompt := buildAreasPrompt(d.RepoDir, specContent)
		if _, rerr := d.runner().Run(d.harnessConfig("architect", planPath, "architect-areas"), prompt); rerr != nil {
			return rerr
		}

		if gerr := guardOuterRepoUntouched("architect", d.RepoDir); gerr != nil {
			return gerr
		}
		changedPaths, cerr := changedPathsIn(planPath)
		if cerr != nil {
			return cerr
		}
		if gerr := guardScope("architect", scopeAreasOnly, changedPaths); gerr != nil {
			return gerr
		}
		if len(changedPaths) == 0 {
			d.warnf("architect areas run produced no new area files")
			return nil
		}

		_, cerr = d.Gateway.Commit(planPath, changedPaths, planstore.MsgUpdateAreas)
		return cerr
	})
}

// ListAreas returns every area currently on the plan branch, via a
// throwaway plan worktree read.
func (d *Driver) ListAreas() ([]*planstore.Area, error) {
	var areas []*planstore.Area
	err := d.Gateway.WithPlanWorktree(func(planPath string) error {
		names, lerr := listMarkdown(planPath + "/areas")
		if lerr != nil {
			return lerr
		}
		sort.Strings(names)
		for _, name := range names {
			number, slug, perr := planstore.ParseAreaFilename(name)
			if perr != nil {
				return perr
			}
			body, rerr := readFile(planPath + "/areas/" + name)
			if rerr != nil {
				return &planstore.ErrIO{Cause: rerr}
			}
			areas = append(areas, &planstore.Area{Number: number, Slug: slug, Body: body})
		}
		return nil
	})
	return areas, err
}

// changedPathsIn reports the paths touched inside a managed plan
// worktree since its last commit (the worktree is always freshly
// checked out by WithPlanWorktree, so any uncommitted change is the
// planning driver's own doing).
func changedPathsIn(planPath string) ([]string, error) {
	changed, err := gitutil.NewRepo(planPath).ChangedPaths()
	if err != nil {
		return nil, &planstore.ErrIO{Cause: err}
	}
	return changed, nil
}
