// Package command runs external programs for the optimizer, benchmarker and
// docker collaborators.
package command

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result holds the captured output of one command run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner abstracts command execution for testability. A non-zero exit is
// reported through Result.ExitCode; err is set only when the command could
// not be run at all.
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (Result, error)
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct{}

func (e *ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		res.ExitCode = -1
		return res, fmt.Errorf("exec %s: %w", name, err)
	}
	return res, nil
}

// Split breaks a command line from the environment into program and leading
// arguments, e.g. "python -m edgeflow.optimize".
func Split(cmdline string) (string, []string, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}
	return fields[0], fields[1:], nil
}

// Describe renders name and args for error messages and logs.
func Describe(name string, args ...string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// Failure formats a non-zero exit as an error, preferring stderr.
func Failure(name string, res Result) error {
	detail := strings.TrimSpace(res.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(res.Stdout)
	}
	if detail == "" {
		return fmt.Errorf("%s exited with code %d", name, res.ExitCode)
	}
	return fmt.Errorf("%s exited with code %d: %s", name, res.ExitCode, detail)
}
