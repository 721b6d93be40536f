package report

import (
	"fmt"
	"strings"

	"github.com/lucasnoah/edgeflowc/internal/config"
	"github.com/lucasnoah/edgeflowc/internal/optimize"
)

// Markdown renders report.md for a successful pipeline result.
func (r *Reporter) Markdown(cfg *config.Config, res *optimize.PipelineResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", Title)
	if r.runID != "" {
		fmt.Fprintf(&b, "- **Run ID:** `%s`\n", r.runID)
	}
	fmt.Fprintf(&b, "- **Generated:** %s\n", r.now().UTC().Format("2006-01-02 15:04:05 MST"))
	if cfg != nil {
		fmt.Fprintf(&b, "- **Config:** `%s`\n", cfg.Source())
		fmt.Fprintf(&b, "- **Model:** `%s`\n", cfg.Model())
		fmt.Fprintf(&b, "- **Target device:** %s\n", cfg.TargetDevice())
	}

	if s := res.Optimization; s != nil {
		b.WriteString("\n## Optimization\n\n")
		b.WriteString("| Field | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Output | `%s` |\n", s.OutputPath)
		if s.Quantization != "" {
			fmt.Fprintf(&b, "| Quantization | %s |\n", s.Quantization)
		}
		if s.SizeReductionPercent != 0 {
			fmt.Fprintf(&b, "| Reported size reduction | %.1f%% |\n", s.SizeReductionPercent)
		}
		if len(s.Steps) > 0 {
			fmt.Fprintf(&b, "| Steps | %s |\n", strings.Join(s.Steps, ", "))
		}
	}

	if res.OriginalBenchmark != nil {
		b.WriteString("\n## Benchmarks\n\n")
		b.WriteString("| Metric | Original | Optimized |\n|---|---|---|\n")
		orig, opt := res.OriginalBenchmark, res.OptimizedBenchmark
		row := func(name string, get func(*optimize.Benchmark) float64, format string) {
			optCell := "n/a"
			if opt != nil {
				optCell = fmt.Sprintf(format, get(opt))
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", name, fmt.Sprintf(format, get(orig)), optCell)
		}
		row("Size (MB)", func(m *optimize.Benchmark) float64 { return m.SizeMB }, "%.2f")
		row("Latency (ms)", func(m *optimize.Benchmark) float64 { return m.LatencyMs }, "%.2f")
		row("Throughput (inf/s)", func(m *optimize.Benchmark) float64 { return m.Throughput }, "%.1f")
		row("Memory (MB)", func(m *optimize.Benchmark) float64 { return m.MemoryMB }, "%.2f")
	}

	if c := res.Comparison; c != nil {
		b.WriteString("\n## Comparison\n\n")
		fmt.Fprintf(&b, "- Size reduction: %.1f%%\n", c.SizeReductionPercent)
		fmt.Fprintf(&b, "- Speedup: %.2fx\n", c.SpeedupFactor)
		fmt.Fprintf(&b, "- Memory reduction: %.1f%%\n", c.MemoryReductionPercent)
	} else {
		b.WriteString("\n_No comparison: dry run, optimized artifact not written._\n")
	}
	return b.String()
}
