package packaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/sensiblebit/certpack"
)

// DefaultToolTimeout bounds a single openssl or keytool invocation.
const DefaultToolTimeout = 2 * time.Minute

// Runner executes external tools with a per-attempt timeout and a bounded
// number of retries.
type Runner struct {
	// Timeout applies to each attempt. Zero means DefaultToolTimeout.
	Timeout time.Duration
	// Retries is the number of extra attempts after a failed run. Negative
	// values run the tool once.
	Retries int
	// RetryDelay is multiplied by the attempt number between attempts.
	RetryDelay time.Duration
}

// Command is one external tool invocation. Secrets go in Env, never Args.
type Command struct {
	Tool string
	Path string
	Args []string
	Env  []string
	Dir  string
}

// Run executes cmd and returns its stdout. Failures are returned as
// *certpack.ExternalToolError carrying the output of the last attempt.
// A missing binary is not retried.
func (r *Runner) Run(ctx context.Context, cmd Command) (string, error) {
	attempts := max(r.Retries, 0) + 1
	var lastErr *certpack.ExternalToolError
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * r.RetryDelay
			slog.Warn("retrying external tool", "tool", cmd.Tool, "attempt", attempt, "of", attempts, "delay", delay)
			select {
			case <-ctx.Done():
				return "", toolError(cmd, nil, nil, ctx.Err())
			case <-time.After(delay):
			}
		}

		stdout, err := r.runOnce(ctx, cmd)
		if err == nil {
			return stdout, nil
		}
		if !errors.As(err, &lastErr) {
			return "", err
		}
		if isNotFound(lastErr.Err) || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (r *Runner) runOnce(ctx context.Context, cmd Command) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	slog.Debug("running external tool", "tool", cmd.Tool, "path", cmd.Path, "args", cmd.Args)
	err := c.Run()
	if err == nil {
		return stdout.String(), nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded)
	}
	return "", toolError(cmd, &stdout, &stderr, err)
}

func toolError(cmd Command, stdout, stderr *bytes.Buffer, err error) *certpack.ExternalToolError {
	e := &certpack.ExternalToolError{
		Tool: cmd.Tool,
		Args: cmd.Args,
		Err:  err,
	}
	if stdout != nil {
		e.Stdout = stdout.String()
	}
	if stderr != nil {
		e.Stderr = stderr.String()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		e.ExitCode = exitErr.ExitCode()
	}
	if isNotFound(err) {
		e.Err = fmt.Errorf("%s not found; install it or set its path: %w", cmd.Tool, err)
	}
	return e
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
