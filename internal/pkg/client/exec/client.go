package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"time"
)

// ExecCommandFunc builds the command for one invocation. It is injected so
// tests can substitute a fake process.
type ExecCommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Kind classifies a failed invocation.
type Kind int

const (
	NotFound Kind = iota
	Timeout
	PermissionDenied
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Timeout:
		return "timeout"
	case PermissionDenied:
		return "permission denied"
	}
	return "unknown"
}

// Error reports that an external command could not be run at all. A command
// that ran and exited non-zero is not an Error; see Result.ExitCode.
type Error struct {
	Kind Kind
	Cmd  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("exec %s: %s: %v", e.Cmd, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result captures one completed invocation. Exit code semantics belong to
// the caller.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner runs external commands with a per-call timeout. A process still
// alive when the timeout expires is killed; Run then reports Timeout
// instead of blocking its caller.
type Runner struct {
	execCommand ExecCommandFunc
	timeout     time.Duration
	logger      *slog.Logger
}

func NewRunner(timeout time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		execCommand: exec.CommandContext,
		timeout:     timeout,
		logger:      logger,
	}
}

// Set replaces the command constructor and logger, returning the runner for
// chaining. Used by tests to stub the external process.
func (r *Runner) Set(execCommand ExecCommandFunc, logger *slog.Logger) *Runner {
	r.execCommand = execCommand
	r.logger = logger
	return r
}

// Run executes name with args and returns the captured output. Non-zero
// exit is returned in Result, not as an error. A nil error with ExitCode 0
// means the command succeeded.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := r.execCommand(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grace period between SIGKILL on context expiry and giving up on Wait;
	// keeps a child blocked on a dead NFS mount from wedging the caller.
	cmd.WaitDelay = 3 * time.Second

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("command finished", "cmd", cmd.String(), "elapsed", time.Since(start), "err", err)

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		r.logger.Warn("command timed out", "cmd", cmd.String(), "timeout", r.timeout)
		return Result{}, &Error{Kind: Timeout, Cmd: name, Err: err}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	switch {
	case errors.Is(err, exec.ErrNotFound):
		return Result{}, &Error{Kind: NotFound, Cmd: name, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return Result{}, &Error{Kind: PermissionDenied, Cmd: name, Err: err}
	}
	r.logger.Error("unable to execute command", "cmd", cmd.String(), "err", err)
	return Result{}, fmt.Errorf("unable to execute %s: %w", name, err)
}
