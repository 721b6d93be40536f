package orchestrator

import (
	"github.com/lucasnoah/edgeflowc/internal/docker"
	"github.com/lucasnoah/edgeflowc/internal/estimate"
	"github.com/lucasnoah/edgeflowc/internal/exitcode"
	"github.com/lucasnoah/edgeflowc/internal/optimize"
)

// ExecutionResult is the mode-specific outcome of a run.
type ExecutionResult interface {
	ExitCode() int
}

// Mode-specific results.
type (
	PipelineResult    = optimize.PipelineResult
	FastCompileResult = estimate.FastCompileResult
	DockerResult      = docker.RunResult
)

// CheckOnlyResult is the outcome of --check-only. Gate and Issues name the
// failing gate. Skipped is set when --skip-check left nothing to check.
type CheckOnlyResult struct {
	Passed  bool     `json:"passed"`
	Skipped bool     `json:"skipped,omitempty"`
	Gate    string   `json:"gate,omitempty"`
	Issues  []string `json:"issues,omitempty"`
}

func (r *CheckOnlyResult) ExitCode() int {
	if r.Passed {
		return exitcode.Success
	}
	return exitcode.Failure
}

var (
	_ ExecutionResult = (*PipelineResult)(nil)
	_ ExecutionResult = (*FastCompileResult)(nil)
	_ ExecutionResult = (*DockerResult)(nil)
	_ ExecutionResult = (*CheckOnlyResult)(nil)
)

// ExitCode resolves the process exit code for a run: the result's code when
// there is one, otherwise the code of err.
func ExitCode(res ExecutionResult, err error) int {
	if err != nil {
		return exitcode.CodeOf(err)
	}
	if res == nil {
		return exitcode.Success
	}
	return res.ExitCode()
}
