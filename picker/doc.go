// Package picker implements a blocking single-choice terminal
// prompt. It renders a cursor-driven list; the caller gets exactly
// one selection or an abort error when the user bails out with
// ctrl-c or q.
package picker
