// Package gitwd wraps git operations on an existing local working
// copy: clean checks, branch checkout and recreation, pulls, and
// cherry-picks. It shells out to the git CLI rather than linking a
// git implementation, matching how the rest of the build tooling
// drives external processes.
package gitwd
