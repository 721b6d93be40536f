// Package optimize runs the optimize, benchmark and compare pipeline.
package optimize

import (
	"context"

	"github.com/lucasnoah/edgeflowc/internal/config"
	"github.com/lucasnoah/edgeflowc/internal/exitcode"
)

// Options are the passthrough flags from the command line.
type Options struct {
	DryRun  bool
	Explain bool
	Codegen string
}

// Summary is what the optimizer reports about the artifact it produced.
type Summary struct {
	OutputPath           string   `json:"output_path"`
	OriginalSizeMB       float64  `json:"original_size_mb,omitempty"`
	OptimizedSizeMB      float64  `json:"optimized_size_mb,omitempty"`
	SizeReductionPercent float64  `json:"size_reduction_percent,omitempty"`
	Quantization         string   `json:"quantization,omitempty"`
	Steps                []string `json:"steps,omitempty"`
	Explanations         []string `json:"explanations,omitempty"`
	GeneratedCode        string   `json:"generated_code,omitempty"`
}

// Benchmark holds the measurements for one model artifact.
type Benchmark struct {
	ModelPath  string  `json:"model_path"`
	SizeMB     float64 `json:"size_mb"`
	LatencyMs  float64 `json:"latency_ms,omitempty"`
	Throughput float64 `json:"throughput,omitempty"`
	MemoryMB   float64 `json:"memory_mb,omitempty"`
}

// Comparison summarizes the optimized artifact against the original.
type Comparison struct {
	SizeReductionPercent   float64 `json:"size_reduction_percent"`
	SpeedupFactor          float64 `json:"speedup_factor"`
	MemoryReductionPercent float64 `json:"memory_reduction_percent"`
}

// Optimizer produces an optimized artifact for cfg.
type Optimizer interface {
	Optimize(ctx context.Context, cfg *config.Config, opts Options) (*Summary, error)
}

// Benchmarker measures a model artifact.
type Benchmarker interface {
	Benchmark(ctx context.Context, modelPath string, cfg *config.Config) (*Benchmark, error)
}

// PipelineResult is the outcome of a full pipeline run. On failure Err is the
// only populated field.
type PipelineResult struct {
	Optimization       *Summary
	OriginalBenchmark  *Benchmark
	OptimizedBenchmark *Benchmark
	Comparison         *Comparison
	Err                error
}

// Success reports whether the pipeline completed.
func (r *PipelineResult) Success() bool { return r.Err == nil }

// ExitCode maps the result onto the process exit code.
func (r *PipelineResult) ExitCode() int {
	if r.Err != nil {
		return exitcode.Failure
	}
	return exitcode.Success
}

// Compare computes relative improvements. Zero baselines yield zero rather
// than dividing.
func Compare(orig, opt *Benchmark) *Comparison {
	c := &Comparison{}
	if orig == nil || opt == nil {
		return c
	}
	if orig.SizeMB > 0 {
		c.SizeReductionPercent = (orig.SizeMB - opt.SizeMB) / orig.SizeMB * 100
	}
	if orig.LatencyMs > 0 && opt.LatencyMs > 0 {
		c.SpeedupFactor = orig.LatencyMs / opt.LatencyMs
	}
	if orig.MemoryMB > 0 {
		c.MemoryReductionPercent = (orig.MemoryMB - opt.MemoryMB) / orig.MemoryMB * 100
	}
	return c
}
