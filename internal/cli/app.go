package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/lucasnoah/edgeflowc/internal/exitcode"
	"github.com/lucasnoah/edgeflowc/internal/logging"
	"github.com/lucasnoah/edgeflowc/internal/orchestrator"
	"go.uber.org/zap"
)

// App is one edgeflowc process.
type App struct {
	Stdout io.Writer
	Stderr io.Writer

	// parse defaults to Parse.
	parse func(args []string, stdout, stderr io.Writer) (orchestrator.Invocation, bool, error)
	// wire defaults to production wiring.
	wire func(ctx context.Context, inv orchestrator.Invocation, stdout, stderr io.Writer) (orchestrator.Deps, func(), error)
	// customize adjusts wired collaborators before execution.
	customize func(*orchestrator.Deps)
}

// NewApp creates an App writing to the given streams.
func NewApp(stdout, stderr io.Writer) *App {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &App{Stdout: stdout, Stderr: stderr, parse: Parse, wire: wire}
}

// Run executes args and returns the process exit code. It never panics.
func (a *App) Run(ctx context.Context, args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			err := exitcode.UnexpectedError(fmt.Errorf("panic: %v", r))
			fmt.Fprintf(a.Stderr, "edgeflowc: %v\n", err)
			code = err.Code()
		}
	}()

	inv, shouldExit, err := a.parse(args, a.Stdout, a.Stderr)
	if err != nil {
		fmt.Fprintf(a.Stderr, "edgeflowc: %v\n", err)
		return exitcode.CodeOf(err)
	}
	if shouldExit {
		return exitcode.Success
	}

	deps, cleanup, err := a.wire(ctx, inv, a.Stdout, a.Stderr)
	if err != nil {
		fmt.Fprintf(a.Stderr, "edgeflowc: %v\n", err)
		return exitcode.CodeOf(err)
	}
	defer cleanup()
	if a.customize != nil {
		a.customize(&deps)
	}

	log := logging.OrNop(deps.Log)
	defer logging.Sync(log)

	res, err := orchestrator.New(deps).Execute(ctx, inv)
	code = orchestrator.ExitCode(res, err)
	if err != nil {
		log.Error("edgeflowc failed", zap.Stringer("kind", exitcode.KindOf(err)), zap.Error(err), zap.Int("exit_code", code))
	}
	return code
}

// Main runs edgeflowc against the process streams.
func Main(args []string) int {
	return NewApp(os.Stdout, os.Stderr).Run(context.Background(), args)
}
