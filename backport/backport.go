package backport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/byte4ever/build_tools/backport/host"
	"github.com/byte4ever/build_tools/cmdutil/exec"
)

// LabelPrefix marks labels that request a manual backport; the
// rest of the label names the target branch.
const LabelPrefix = "needs-manual-bp/"

// Sentinel errors for the fatal precondition states. They reach
// main unwrapped so exit handling can name the condition.
var (
	// ErrInvalidPRNumber marks a malformed PR number argument.
	ErrInvalidPRNumber = errors.New(
		"invalid pull request number",
	)

	// ErrNotMerged marks a PR without a merge commit.
	ErrNotMerged = errors.New(
		"pull request has no merge commit",
	)

	// ErrNoBackportLabels marks a PR with no manual-backport
	// labels.
	ErrNoBackportLabels = errors.New(
		"pull request has no manual backport labels",
	)

	// ErrDirtyWorkdir marks uncommitted changes in the local
	// working copy.
	ErrDirtyWorkdir = errors.New(
		"working copy has uncommitted changes",
	)
)

// Git is the slice of local git operations the flow performs.
// *gitwd.Workdir satisfies it.
type Git interface {
	IsClean() (bool, error)
	Checkout(branch string) error
	Pull(branch string) error
	DeleteBranch(name string) exec.Status
	CreateBranch(name string) error
	CherryPick(sha string) (bool, error)
}

// Selector presents options for single-choice selection and blocks
// until one is made. picker.Choose satisfies it.
type Selector func(
	title string,
	options []string,
) (string, error)

// Config holds all settings for one backport run.
type Config struct {
	// PRNumber is the raw positional argument; it is
	// validated before anything else happens.
	PRNumber string

	// Provider fetches PR metadata from the hosting
	// platform.
	Provider host.Provider

	// Git operates on the local working copy.
	Git Git

	// Select prompts for the target branch.
	Select Selector

	// Out receives user-facing instructional output.
	Out io.Writer
}

// ParsePRNumber validates a raw PR number argument. It accepts s
// iff s is exactly the decimal representation of a non-negative
// integer: no leading zeros, signs, spaces, or trailing garbage.
func ParsePRNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf(
			"%w: %q", ErrInvalidPRNumber, s,
		)
	}

	// Round-trip check rejects "042", "+42", etc.
	if n < 0 || strconv.Itoa(n) != s {
		return 0, fmt.Errorf(
			"%w: %q", ErrInvalidPRNumber, s,
		)
	}

	return n, nil
}

// TargetBranches extracts the branches named by manual-backport
// labels, preserving label order.
func TargetBranches(labels []string) []string {
	var branches []string

	for _, la := range labels {
		if strings.HasPrefix(la, LabelPrefix) {
			branches = append(
				branches,
				strings.TrimPrefix(la, LabelPrefix),
			)
		}
	}

	return branches
}

// BranchName builds the deterministic local branch name for a
// backport. Re-running with the same inputs reuses the same name,
// so retries recreate one branch instead of accumulating them.
func BranchName(
	login string,
	prNumber int,
	target string,
) string {
	return fmt.Sprintf(
		"manual-bp/%s/pr/%d/%s",
		login, prNumber, target,
	)
}

// Run executes the backport sequence:
// validate, fetch, derive targets, select, preflight clean check,
// checkout/pull, branch recreation, cherry-pick, report.
func Run(ctx context.Context, cfg Config) error {
	const errCtx = "running backport"

	prNumber, err := ParsePRNumber(cfg.PRNumber)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	login, err := cfg.Provider.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf(
			"%s: current user: %w", errCtx, err,
		)
	}

	pr, err := cfg.Provider.PullRequest(ctx, prNumber)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if !pr.Merged || pr.MergeCommitSHA == "" {
		return fmt.Errorf(
			"%s: PR #%d: %w",
			errCtx, prNumber, ErrNotMerged,
		)
	}

	targets := TargetBranches(pr.Labels)
	if len(targets) == 0 {
		return fmt.Errorf(
			"%s: PR #%d: %w",
			errCtx, prNumber, ErrNoBackportLabels,
		)
	}

	target, err := cfg.Select(
		fmt.Sprintf(
			"Backport PR #%d (%s) to:",
			prNumber, pr.Title,
		),
		targets,
	)
	if err != nil {
		return fmt.Errorf(
			"%s: select target: %w", errCtx, err,
		)
	}

	// Preflight: never touch a dirty working copy.
	clean, err := cfg.Git.IsClean()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if !clean {
		return fmt.Errorf(
			"%s: %w", errCtx, ErrDirtyWorkdir,
		)
	}

	if err := cfg.Git.Checkout(target); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := cfg.Git.Pull(target); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	branch := BranchName(login, prNumber, target)

	// A leftover branch from an earlier attempt is expected;
	// the failed status of the delete is discarded.
	_ = cfg.Git.DeleteBranch(branch)

	if err := cfg.Git.CreateBranch(branch); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	conflicted, err := cfg.Git.CherryPick(
		pr.MergeCommitSHA,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"backport branch prepared",
		"branch", branch,
		"conflicted", conflicted,
	)

	report(cfg.Out, branch, target, conflicted)

	return nil
}

// report prints the follow-up commands. Conflicts are a normal
// outcome here; resolving them is the developer's job.
func report(
	out io.Writer,
	branch string,
	target string,
	conflicted bool,
) {
	if conflicted {
		fmt.Fprintln(
			out,
			"Cherry-pick hit conflicts. "+
				"Resolve them, then run:",
		)
		fmt.Fprintln(out, "  git cherry-pick --continue")
	} else {
		fmt.Fprintln(
			out, "Cherry-pick applied cleanly.",
		)
	}

	fmt.Fprintf(
		out,
		"  git push origin %s\n",
		branch,
	)
	fmt.Fprintf(
		out,
		"Then open a pull request against %s.\n",
		target,
	)
}
