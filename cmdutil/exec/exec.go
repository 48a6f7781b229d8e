package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	oe "os/exec"
	"strings"
)

// Status classifies the outcome of a best-effort
// invocation.
type Status int

const (
	// StatusOK means the command ran and exited zero.
	StatusOK Status = iota
	// StatusFailed means the command ran and exited
	// non-zero, or could not be started.
	StatusFailed
	// StatusNotApplicable means the operation was
	// skipped because its precondition does not hold
	// (e.g. unsupported platform, missing binary).
	StatusNotApplicable
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusNotApplicable:
		return "not-applicable"
	default:
		return "unknown"
	}
}

// Result holds the outcome of a completed command.
// Code is the process exit code; Stdout and Stderr are
// the captured streams.
type Result struct {
	Code   int
	Stdout string
	Stderr string
}

// OK reports whether the command exited zero.
func (r Result) OK() bool {
	return r.Code == 0
}

// Run executes the named command in dir and returns
// its exit code and captured output. A non-zero exit
// is NOT an error; err is non-nil only when the
// command could not be started at all. Pass empty dir
// to use the current working directory.
func Run(
	dir string,
	name string,
	arg ...string,
) (Result, error) {
	return RunEnv(dir, nil, name, arg...)
}

// RunEnv is Run with extra environment variables
// ("KEY=VALUE") appended to the current process
// environment.
func RunEnv(
	dir string,
	extraEnv []string,
	name string,
	arg ...string,
) (Result, error) {
	const errCtx = "running command"

	slog.Info(
		"executing",
		"cmd", name,
		"args", strings.Join(arg, " "),
	)

	cmd := oe.CommandContext(
		context.Background(), name, arg...,
	)
	if dir != "" {
		cmd.Dir = dir
	}

	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *oe.ExitError
		if !errors.As(err, &exitErr) {
			// The process never started; exit code
			// is meaningless.
			return Result{Code: -1}, fmt.Errorf(
				"%s: %s %s: %w",
				errCtx, name,
				strings.Join(arg, " "), err,
			)
		}
	}

	res := Result{
		Code:   cmd.ProcessState.ExitCode(),
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	slog.Info(
		"completed",
		"cmd", name,
		"code", res.Code,
	)

	return res, nil
}

// RunAttached executes the command with stdin, stdout
// and stderr attached to the current terminal. Used
// for interactive flows (login prompts) and for start
// routines that appear to hang when their output is
// captured.
func RunAttached(
	dir string,
	extraEnv []string,
	name string,
	arg ...string,
) (Result, error) {
	const errCtx = "running attached command"

	slog.Info(
		"executing attached",
		"cmd", name,
		"args", strings.Join(arg, " "),
	)

	cmd := oe.CommandContext(
		context.Background(), name, arg...,
	)
	if dir != "" {
		cmd.Dir = dir
	}

	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *oe.ExitError
		if !errors.As(err, &exitErr) {
			return Result{Code: -1}, fmt.Errorf(
				"%s: %s %s: %w",
				errCtx, name,
				strings.Join(arg, " "), err,
			)
		}

		return Result{
			Code: exitErr.ExitCode(),
		}, nil
	}

	return Result{Code: 0}, nil
}

// Ex executes the command and returns combined output,
// converting a non-zero exit into an error. Retained
// for call sites where any failure is fatal.
func Ex(
	dir string,
	name string,
	arg ...string,
) (string, error) {
	const errCtx = "executing command"

	res, err := Run(dir, name, arg...)
	if err != nil {
		return "", err
	}

	out := res.Stdout + res.Stderr

	if !res.OK() {
		return out, fmt.Errorf(
			"%s: %s %s: exit code %d: %s",
			errCtx, name,
			strings.Join(arg, " "),
			res.Code,
			strings.TrimSpace(out),
		)
	}

	return out, nil
}

// BestEffort collapses a Run outcome into a Status.
// Callers that ignore failures (stopping a previous
// process instance, probing auth state) discard the
// failed status explicitly at the call site.
func BestEffort(res Result, err error) Status {
	if err != nil || !res.OK() {
		return StatusFailed
	}

	return StatusOK
}
