package cli

import (
	"fmt"
	"io"

	"github.com/lucasnoah/edgeflowc/internal/exitcode"
	"github.com/lucasnoah/edgeflowc/internal/orchestrator"
	"github.com/spf13/cobra"
)

var version = "dev"

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	version = v
}

// newRootCmd builds the edgeflowc command. RunE only records the parsed
// invocation; execution happens after Execute returns.
func newRootCmd(inv *orchestrator.Invocation, ran *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edgeflowc <config.ef>",
		Short: "edgeflowc: compile an EdgeFlow deployment config into an optimized model",
		Long: `edgeflowc reads a declarative edge-deployment config (.ef), validates it
against the target device, and runs the optimize, benchmark and compare
pipeline. --fast-compile estimates results without optimizing, --docker runs
the pipeline in a container, and --check-only stops after validation.

Exit codes: 0 success, 1 failure, 2 usage error.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) == 0:
				return fmt.Errorf("missing required argument <config.ef>")
			case len(args) > 1:
				return fmt.Errorf("expected one config path, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.ConfigPath = args[0]
			*ran = true
			return nil
		},
	}
	cmd.SetVersionTemplate("edgeflowc version {{.Version}}\n")

	f := cmd.Flags()
	f.BoolVarP(&inv.Verbose, "verbose", "v", false, "Enable debug logging")
	f.BoolVar(&inv.SkipCheck, "skip-check", false, "Skip the validation chain")
	f.BoolVar(&inv.CheckOnly, "check-only", false, "Validate the config and exit")
	f.BoolVar(&inv.FastCompile, "fast-compile", false, "Estimate results without running the optimizer")
	f.BoolVar(&inv.Docker, "docker", false, "Run the pipeline in a container")
	f.BoolVar(&inv.DockerBuild, "docker-build", false, "Build the image before running (with --docker)")
	f.StringVar(&inv.DockerTag, "docker-tag", "", "Image tag (default $EDGEFLOW_DOCKER_IMAGE or edgeflow:latest)")
	f.BoolVar(&inv.DryRun, "dry-run", false, "Plan the optimization without writing artifacts")
	f.BoolVar(&inv.Explain, "explain", false, "Explain options and optimizer decisions")
	f.StringVar(&inv.Codegen, "codegen", "", "Generate deployment code for the given target")
	f.StringVar(&inv.DeviceSpecFile, "device-spec-file", "", "YAML file with device specs merged over the built-ins")
	return cmd
}

// Parse turns args into an Invocation. shouldExit is true when help or
// version output was printed and nothing else should run. Every error is a
// usage error.
func Parse(args []string, stdout, stderr io.Writer) (inv orchestrator.Invocation, shouldExit bool, err error) {
	if args == nil {
		// cobra falls back to os.Args for a nil slice
		args = []string{}
	}
	var ran bool
	cmd := newRootCmd(&inv, &ran)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	// cobra parses every flag before honouring help or version, so an
	// unknown flag elsewhere would otherwise turn them into usage errors.
	switch terminalFlag(args) {
	case "help":
		cmd.InitDefaultHelpFlag()
		cmd.InitDefaultVersionFlag()
		cmd.HelpFunc()(cmd, args)
		return orchestrator.Invocation{}, true, nil
	case "version":
		fmt.Fprintf(stdout, "edgeflowc version %s\n", cmd.Version)
		return orchestrator.Invocation{}, true, nil
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, cmd.UseLine())
		fmt.Fprintln(stderr, "Run 'edgeflowc --help' for usage.")
		return orchestrator.Invocation{}, false, exitcode.UsageError("%v", err)
	}
	if !ran {
		return orchestrator.Invocation{}, true, nil
	}
	return inv, false, nil
}

// terminalFlag reports whether args ask for "help" or "version" before any
// "--" terminator. Help wins when both are present.
func terminalFlag(args []string) string {
	found := ""
	for _, a := range args {
		if a == "--" {
			break
		}
		switch a {
		case "-h", "--help":
			return "help"
		case "--version":
			found = "version"
		}
	}
	return found
}
