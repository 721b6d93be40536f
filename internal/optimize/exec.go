package optimize

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasnoah/edgeflowc/internal/command"
	"github.com/lucasnoah/edgeflowc/internal/config"
	"go.uber.org/zap"
)

const bytesPerMB = 1024 * 1024

// ExecOptimizer delegates optimization to an external command that prints a
// JSON Summary on stdout.
type ExecOptimizer struct {
	cmd     command.Runner
	cmdline string
	log     *zap.Logger
}

// NewExecOptimizer creates an optimizer running cmdline.
func NewExecOptimizer(cmd command.Runner, cmdline string, log *zap.Logger) *ExecOptimizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecOptimizer{cmd: cmd, cmdline: cmdline, log: log}
}

// Optimize runs `<cmd> --config <path> --output <out>` plus passthrough flags
// in the config file's directory.
func (o *ExecOptimizer) Optimize(ctx context.Context, cfg *config.Config, opts Options) (*Summary, error) {
	name, args, err := command.Split(o.cmdline)
	if err != nil {
		return nil, fmt.Errorf("optimizer command: %w", err)
	}

	output := OutputPath(cfg)
	args = append(args, "--config", cfg.Source(), "--output", output)
	if opts.DryRun {
		args = append(args, "--dry-run")
	}
	if opts.Codegen != "" {
		args = append(args, "--codegen", opts.Codegen)
	}
	if opts.Explain {
		args = append(args, "--explain")
	}

	o.log.Debug("running optimizer", zap.String("command", command.Describe(name, args...)))
	res, err := o.cmd.Run(ctx, configDir(cfg), name, args...)
	if err != nil {
		return nil, fmt.Errorf("running optimizer: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, command.Failure(name, res)
	}

	summary := &Summary{}
	if out := strings.TrimSpace(res.Stdout); out != "" {
		if err := json.Unmarshal([]byte(out), summary); err != nil {
			return nil, fmt.Errorf("parsing optimizer output: %w", err)
		}
	}
	switch {
	case summary.OutputPath == "":
		summary.OutputPath = output
	case !filepath.IsAbs(summary.OutputPath) && configDir(cfg) != "":
		// relative to the directory the optimizer ran in
		summary.OutputPath = filepath.Join(configDir(cfg), summary.OutputPath)
	}
	return summary, nil
}

// OutputPath is the config's output_path, resolved against the config
// directory, or <model>_optimized<ext> next to the model.
func OutputPath(cfg *config.Config) string {
	if out := strings.TrimSpace(cfg.String("output_path")); out != "" {
		if filepath.IsAbs(out) || cfg.Source() == "" {
			return out
		}
		return filepath.Join(configDir(cfg), out)
	}
	model := cfg.ResolveModelPath()
	ext := filepath.Ext(model)
	return strings.TrimSuffix(model, ext) + "_optimized" + ext
}

func configDir(cfg *config.Config) string {
	if cfg.Source() == "" {
		return ""
	}
	return filepath.Dir(cfg.Source())
}

// ExecBenchmarker measures artifact size from the file system and, when a
// benchmark command is configured, latency, throughput and memory from its
// JSON output.
type ExecBenchmarker struct {
	cmd     command.Runner
	cmdline string
	stat    func(string) (os.FileInfo, error)
	log     *zap.Logger
}

// NewExecBenchmarker creates a benchmarker. An empty cmdline measures size
// only.
func NewExecBenchmarker(cmd command.Runner, cmdline string, log *zap.Logger) *ExecBenchmarker {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecBenchmarker{cmd: cmd, cmdline: cmdline, stat: os.Stat, log: log}
}

func (b *ExecBenchmarker) Benchmark(ctx context.Context, modelPath string, cfg *config.Config) (*Benchmark, error) {
	info, err := b.stat(modelPath)
	if err != nil {
		return nil, fmt.Errorf("stat model %s: %w", modelPath, err)
	}
	bench := &Benchmark{ModelPath: modelPath, SizeMB: float64(info.Size()) / bytesPerMB}

	if strings.TrimSpace(b.cmdline) == "" {
		return bench, nil
	}

	name, args, err := command.Split(b.cmdline)
	if err != nil {
		return nil, fmt.Errorf("benchmark command: %w", err)
	}
	args = append(args, modelPath)
	b.log.Debug("running benchmark", zap.String("command", command.Describe(name, args...)))

	res, err := b.cmd.Run(ctx, configDir(cfg), name, args...)
	if err != nil {
		return nil, fmt.Errorf("running benchmark: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, command.Failure(name, res)
	}

	var measured struct {
		LatencyMs  float64 `json:"latency_ms"`
		Throughput float64 `json:"throughput"`
		MemoryMB   float64 `json:"memory_mb"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &measured); err != nil {
		return nil, fmt.Errorf("parsing benchmark output: %w", err)
	}
	bench.LatencyMs = measured.LatencyMs
	bench.Throughput = measured.Throughput
	bench.MemoryMB = measured.MemoryMB
	return bench, nil
}
