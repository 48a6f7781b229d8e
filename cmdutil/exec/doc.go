// Package exec provides synchronous external-process execution
// helpers. Run captures exit code and output without treating a
// non-zero exit as an error, so callers decide fatality explicitly.
// Best-effort invocations map to a tri-state Status that callers
// discard on purpose instead of silently swallowing failures.
package exec
