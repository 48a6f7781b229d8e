package gitwd

import (
	"fmt"
	"strings"

	"github.com/byte4ever/build_tools/cmdutil/exec"
)

// Workdir is an existing local git working copy. Unlike a scratch
// clone it is owned by the developer: operations never discard
// uncommitted work, and partially applied state after a failure is
// left in place for inspection.
type Workdir struct {
	// Dir is the filesystem location of the working copy.
	Dir string
	// Remote is the name of the upstream remote.
	Remote string
}

// IsClean reports whether the working tree has no pending changes
// (staged, unstaged, or untracked).
func (w *Workdir) IsClean() (bool, error) {
	const errCtx = "checking working tree status"

	out, err := exec.Ex(
		w.Dir, "git", "status", "--porcelain",
	)
	if err != nil {
		return false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return strings.TrimSpace(out) == "", nil
}

// Checkout switches the working copy to branch.
func (w *Workdir) Checkout(branch string) error {
	const errCtx = "checking out branch"

	if _, err := exec.Ex(
		w.Dir, "git", "checkout", branch,
	); err != nil {
		return fmt.Errorf(
			"%s %s: %w", errCtx, branch, err,
		)
	}

	return nil
}

// Pull fetches and merges the latest state of branch from the
// remote.
func (w *Workdir) Pull(branch string) error {
	const errCtx = "pulling branch"

	if _, err := exec.Ex(
		w.Dir, "git", "pull", w.Remote, branch,
	); err != nil {
		return fmt.Errorf(
			"%s %s: %w", errCtx, branch, err,
		)
	}

	return nil
}

// DeleteBranch force-deletes a local branch. Deleting a branch that
// does not exist is not an error; the caller discards the failed
// status explicitly.
func (w *Workdir) DeleteBranch(name string) exec.Status {
	return exec.BestEffort(exec.Run(
		w.Dir, "git", "branch", "-D", name,
	))
}

// CreateBranch creates branch name at the current HEAD and checks
// it out.
func (w *Workdir) CreateBranch(name string) error {
	const errCtx = "creating branch"

	if _, err := exec.Ex(
		w.Dir, "git", "checkout", "-b", name,
	); err != nil {
		return fmt.Errorf(
			"%s %s: %w", errCtx, name, err,
		)
	}

	return nil
}

// CherryPick applies the commit identified by sha onto the current
// branch. A conflict is an expected outcome, not a failure: the
// returned bool is true when git reported a non-zero exit, leaving
// the conflict for the developer to resolve. Only a failure to
// spawn git at all is returned as an error.
func (w *Workdir) CherryPick(sha string) (bool, error) {
	const errCtx = "cherry-picking commit"

	res, err := exec.Run(
		w.Dir, "git", "cherry-pick", sha,
	)
	if err != nil {
		return false, fmt.Errorf(
			"%s %s: %w", errCtx, sha, err,
		)
	}

	return !res.OK(), nil
}

// CurrentBranch returns the name of the checked-out branch.
func (w *Workdir) CurrentBranch() (string, error) {
	const errCtx = "resolving current branch"

	out, err := exec.Ex(
		w.Dir, "git",
		"rev-parse", "--abbrev-ref", "HEAD",
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return strings.TrimSpace(out), nil
}
