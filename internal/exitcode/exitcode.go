package exitcode

import (
	"errors"
	"fmt"
	"strings"
)

// Process exit codes. These are the only state that survives the process.
const (
	Success = 0
	Failure = 1
	Usage   = 2
)

// Kind classifies a failure for exit-code mapping and rendering.
type Kind int

const (
	KindUnexpected Kind = iota
	KindUsage
	KindValidation
	KindPipeline
	KindEnvironment
)

func (k Kind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindValidation:
		return "validation"
	case KindPipeline:
		return "pipeline"
	case KindEnvironment:
		return "environment"
	default:
		return "unexpected"
	}
}

// Error is a classified failure. Issues carries the human-readable lines
// that are enumerated to the user (e.g. every issue of a failing gate).
type Error struct {
	Kind   Kind
	Issues []string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Issues) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Issues, "; "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the exit code for this failure.
func (e *Error) Code() int {
	if e.Kind == KindUsage {
		return Usage
	}
	return Failure
}

// UsageError reports a malformed invocation.
func UsageError(format string, args ...any) *Error {
	return &Error{Kind: KindUsage, Err: fmt.Errorf(format, args...)}
}

// ValidationError reports a failed gate or unusable config file.
func ValidationError(err error, issues ...string) *Error {
	return &Error{Kind: KindValidation, Err: err, Issues: issues}
}

// PipelineError reports a failure contained inside an execution path.
func PipelineError(err error) *Error {
	return &Error{Kind: KindPipeline, Err: err}
}

// EnvironmentError reports a missing runtime capability (docker, daemon).
func EnvironmentError(err error, issues ...string) *Error {
	return &Error{Kind: KindEnvironment, Err: err, Issues: issues}
}

// UnexpectedError wraps anything that escaped the narrower handlers.
func UnexpectedError(err error) *Error {
	return &Error{Kind: KindUnexpected, Err: err}
}

// CodeOf maps an error to a process exit code. nil is success; a classified
// error uses its kind; anything else is a generic failure.
func CodeOf(err error) int {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return Failure
}

// KindOf returns the classification of err, KindUnexpected when unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}
