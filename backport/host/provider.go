package host

import "context"

// Pattern: Strategy -- swap code-hosting platform without changing
// the backport flow.

// PullRequest is the slice of PR metadata the backport flow needs.
type PullRequest struct {
	// Number is the PR identifier on the hosting platform.
	Number int
	// Title is the PR title, used in user-facing output.
	Title string
	// Merged reports whether the PR has been merged.
	Merged bool
	// MergeCommitSHA identifies the merge commit. Empty when
	// the PR is not merged.
	MergeCommitSHA string
	// Labels are the PR's label names.
	Labels []string
}

// Provider fetches pull request metadata and the authenticated
// user from a code-hosting platform.
type Provider interface {
	// CurrentUser returns the login of the authenticated user.
	CurrentUser(ctx context.Context) (string, error)

	// PullRequest fetches the PR with the given number.
	PullRequest(
		ctx context.Context,
		number int,
	) (*PullRequest, error)
}
