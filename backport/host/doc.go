// Package host abstracts the code-hosting platform behind the
// backport assistant. Implementations exist for GitHub and GitLab
// in sub-packages; the assistant only needs the authenticated
// user's login and a pull request's merge state, merge commit, and
// labels.
package host
