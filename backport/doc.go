// Package backport orchestrates the manual-backport workflow: it
// fetches a merged pull request, derives target branches from its
// labels, and prepares a local cherry-pick branch. The sequence is
// strictly linear with no retries; any fatal step halts the run and
// leaves the working copy for the developer to inspect.
package backport
