package optimize

import (
	"context"
	"fmt"

	"github.com/lucasnoah/edgeflowc/internal/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Pipeline sequences the optimizer and benchmarker.
type Pipeline struct {
	optimizer   Optimizer
	benchmarker Benchmarker
	log         *zap.Logger
}

// NewPipeline creates a pipeline over the given collaborators.
func NewPipeline(o Optimizer, b Benchmarker, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{optimizer: o, benchmarker: b, log: log}
}

// Run optimizes cfg's model, benchmarks the original and optimized artifacts
// and compares them. It never returns an error or panics: any failure is
// logged and carried in PipelineResult.Err.
func (p *Pipeline) Run(ctx context.Context, cfg *config.Config, opts Options) (res *PipelineResult) {
	defer func() {
		if r := recover(); r != nil {
			res = p.fail(errors.Errorf("pipeline panic: %v", r))
		}
	}()

	summary, err := p.optimizer.Optimize(ctx, cfg, opts)
	if err != nil {
		return p.fail(errors.Wrap(err, "optimize"))
	}
	if summary == nil {
		return p.fail(errors.New("optimize: optimizer returned no summary"))
	}
	p.log.Info("model optimized", zap.String("output", summary.OutputPath))

	original, err := p.benchmarker.Benchmark(ctx, cfg.ResolveModelPath(), cfg)
	if err != nil {
		return p.fail(errors.Wrap(err, "benchmark original"))
	}

	out := &PipelineResult{Optimization: summary, OriginalBenchmark: original}
	if opts.DryRun {
		p.log.Info("dry run: optimized artifact not written, skipping comparison")
		return out
	}

	optimized, err := p.benchmarker.Benchmark(ctx, summary.OutputPath, cfg)
	if err != nil {
		return p.fail(errors.Wrap(err, "benchmark optimized"))
	}
	out.OptimizedBenchmark = optimized
	out.Comparison = Compare(original, optimized)

	p.log.Debug("comparison",
		zap.Float64("size_reduction_percent", out.Comparison.SizeReductionPercent),
		zap.Float64("speedup_factor", out.Comparison.SpeedupFactor))
	return out
}

func (p *Pipeline) fail(err error) *PipelineResult {
	p.log.Error("Optimization pipeline failed", zap.Error(err))
	return &PipelineResult{Err: fmt.Errorf("optimization pipeline: %w", err)}
}
