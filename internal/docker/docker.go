// Package docker runs the optimization pipeline inside a container using the
// docker CLI.
package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasnoah/edgeflowc/internal/command"
	"github.com/lucasnoah/edgeflowc/internal/exitcode"
	"go.uber.org/zap"
)

// Container mount points.
const (
	ConfigMount = "/app/configs"
	OutputMount = "/app/outputs"
)

// DefaultTag is the image used when none is configured.
const DefaultTag = "edgeflow:latest"

// Environment reports which docker capabilities are available.
type Environment struct {
	DockerInstalled  bool `json:"docker_installed"`
	ComposeInstalled bool `json:"compose_installed"`
	DockerRunning    bool `json:"docker_running"`
}

// Ready reports whether every capability is present.
func (e Environment) Ready() bool {
	return e.DockerInstalled && e.ComposeInstalled && e.DockerRunning
}

// Missing lists the absent capabilities.
func (e Environment) Missing() []string {
	var missing []string
	if !e.DockerInstalled {
		missing = append(missing, "docker is not installed")
	}
	if !e.ComposeInstalled {
		missing = append(missing, "docker compose is not installed")
	}
	if !e.DockerRunning {
		missing = append(missing, "docker daemon is not running")
	}
	return missing
}

// BuildOptions configures an image build.
type BuildOptions struct {
	Tag        string
	Dockerfile string
	Context    string
}

// RunOptions configures a containerized pipeline run.
type RunOptions struct {
	ConfigPath string
	Tag        string
	OutputDir  string
	Verbose    bool
	DryRun     bool
	Explain    bool
	Codegen    string
	SkipCheck  bool
}

// RunResult is the outcome of a containerized run.
type RunResult struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
}

// ExitCode is 0 iff the run succeeded.
func (r *RunResult) ExitCode() int {
	if r.Success {
		return exitcode.Success
	}
	return exitcode.Failure
}

// Manager drives the docker CLI.
type Manager struct {
	cmd    command.Runner
	binary string
	log    *zap.Logger
}

// NewManager creates a manager using cmd to run the docker binary.
func NewManager(cmd command.Runner, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{cmd: cmd, binary: "docker", log: log}
}

// Check probes the docker installation, the compose plugin and the daemon.
func (m *Manager) Check(ctx context.Context) Environment {
	env := Environment{
		DockerInstalled:  m.succeeds(ctx, "--version"),
		ComposeInstalled: m.succeeds(ctx, "compose", "version"),
	}
	if env.DockerInstalled {
		env.DockerRunning = m.succeeds(ctx, "info")
	}
	m.log.Debug("docker environment",
		zap.Bool("docker_installed", env.DockerInstalled),
		zap.Bool("compose_installed", env.ComposeInstalled),
		zap.Bool("docker_running", env.DockerRunning))
	return env
}

func (m *Manager) succeeds(ctx context.Context, args ...string) bool {
	res, err := m.cmd.Run(ctx, "", m.binary, args...)
	return err == nil && res.ExitCode == 0
}

// BuildImage runs `docker build -t <tag> -f <Dockerfile> <context>`.
func (m *Manager) BuildImage(ctx context.Context, opts BuildOptions) error {
	if opts.Tag == "" {
		opts.Tag = DefaultTag
	}
	if opts.Dockerfile == "" {
		opts.Dockerfile = "Dockerfile"
	}
	if opts.Context == "" {
		opts.Context = "."
	}

	args := []string{"build", "-t", opts.Tag, "-f", opts.Dockerfile, opts.Context}
	m.log.Info("building image", zap.String("tag", opts.Tag))
	res, err := m.cmd.Run(ctx, "", m.binary, args...)
	if err != nil {
		return fmt.Errorf("docker build: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("docker build: %w", command.Failure(m.binary, res))
	}
	return nil
}

// RunPipeline runs the compiler inside the image with the config directory
// mounted read-only and the output directory mounted writable. Failures are
// reported in the result, never returned.
func (m *Manager) RunPipeline(ctx context.Context, opts RunOptions) *RunResult {
	args, outDir, err := runArgs(opts)
	if err != nil {
		return &RunResult{Error: err.Error()}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return &RunResult{Error: fmt.Sprintf("creating output directory: %v", err)}
	}

	m.log.Info("running containerized pipeline", zap.String("tag", opts.Tag), zap.String("output_dir", outDir))
	res, err := m.cmd.Run(ctx, "", m.binary, args...)
	if err != nil {
		return &RunResult{Error: fmt.Sprintf("docker run: %v", err)}
	}
	if res.ExitCode != 0 {
		return &RunResult{Error: command.Failure(m.binary, res).Error()}
	}
	return &RunResult{Success: true, OutputPath: outDir}
}

func runArgs(opts RunOptions) ([]string, string, error) {
	if opts.ConfigPath == "" {
		return nil, "", fmt.Errorf("no config path")
	}
	cfgPath, err := filepath.Abs(opts.ConfigPath)
	if err != nil {
		return nil, "", fmt.Errorf("resolving config path: %w", err)
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = "outputs"
	}
	outDir, err = filepath.Abs(outDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving output directory: %w", err)
	}
	tag := opts.Tag
	if tag == "" {
		tag = DefaultTag
	}

	args := []string{
		"run", "--rm",
		"-v", filepath.Dir(cfgPath) + ":" + ConfigMount + ":ro",
		"-v", outDir + ":" + OutputMount,
		tag,
		ConfigMount + "/" + filepath.Base(cfgPath),
	}
	if opts.Verbose {
		args = append(args, "--verbose")
	}
	if opts.SkipCheck {
		args = append(args, "--skip-check")
	}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}
	if opts.Explain {
		args = append(args, "--explain")
	}
	if strings.TrimSpace(opts.Codegen) != "" {
		args = append(args, "--codegen", opts.Codegen)
	}
	return args, outDir, nil
}
