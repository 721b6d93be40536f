// Package report renders execution results to the terminal and writes the
// Markdown report for full pipeline runs.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasnoah/edgeflowc/internal/config"
	"github.com/lucasnoah/edgeflowc/internal/docker"
	"github.com/lucasnoah/edgeflowc/internal/estimate"
	"github.com/lucasnoah/edgeflowc/internal/fileutil"
	"github.com/lucasnoah/edgeflowc/internal/optimize"
	"github.com/lucasnoah/edgeflowc/internal/validate"
	"go.uber.org/zap"
)

// Title heads both the terminal summary and report.md.
const Title = "EdgeFlow Optimization Report"

// reportMode is the permission of the written report.md.
const reportMode = 0o644

// Options configures a Reporter.
type Options struct {
	// Out receives terminal output; defaults to stdout.
	Out io.Writer
	// ReportPath is where report.md is written after a successful pipeline.
	ReportPath string
	// RunID identifies the invocation in report.md.
	RunID string
	// Explain prints option explanations before results.
	Explain bool
}

// Reporter renders results.
type Reporter struct {
	out     io.Writer
	path    string
	runID   string
	explain bool
	st      styles
	log     *zap.Logger
	now     func() time.Time
}

// New creates a Reporter.
func New(opts Options, log *zap.Logger) *Reporter {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.ReportPath == "" {
		opts.ReportPath = "report.md"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{
		out:     opts.Out,
		path:    opts.ReportPath,
		runID:   opts.RunID,
		explain: opts.Explain,
		st:      newStyles(lipgloss.NewRenderer(opts.Out)),
		log:     log,
		now:     time.Now,
	}
}

// Path returns the report.md location.
func (r *Reporter) Path() string { return r.path }

func (r *Reporter) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Reporter) kv(label, value string) {
	r.printf("  %s %s\n", r.st.label.Render(label+":"), r.st.value.Render(value))
}

// Validation prints a chain result. Passing results print only a one-line
// confirmation plus any advisory issues.
func (r *Reporter) Validation(res *validate.Result) {
	if res.Passed {
		r.printf("%s %s\n", r.st.ok.Render("✓"), "Validation passed ("+strings.Join(gateNames(res), ", ")+")")
		for _, c := range res.Checks {
			for _, issue := range c.Issues {
				r.printf("  %s %s\n", r.st.warning.Render("!"), issue)
			}
		}
		return
	}
	r.printf("%s Validation failed at %s gate\n", r.st.err.Render("✗"), r.st.value.Render(res.Gate))
	for _, issue := range res.Issues {
		r.printf("  %s %s\n", r.st.err.Render("-"), issue)
	}
}

func gateNames(res *validate.Result) []string {
	names := make([]string, len(res.Checks))
	for i, c := range res.Checks {
		names[i] = c.Gate
	}
	return names
}

// CheckSkipped notes that validation was bypassed.
func (r *Reporter) CheckSkipped() {
	r.printf("%s\n", r.st.dim.Render("Validation skipped (--skip-check)"))
}

// FastCompile prints the estimate-only result.
func (r *Reporter) FastCompile(res *estimate.FastCompileResult) {
	r.printf("%s\n", r.st.header.Render("Fast compile"))
	for _, w := range res.Warnings {
		r.printf("  %s %s\n", r.st.warning.Render("warning:"), w)
	}
	for _, e := range res.Errors {
		r.printf("  %s %s\n", r.st.err.Render("error:"), e)
	}
	if !res.Success {
		r.printf("%s Fast compile failed (%d error(s))\n", r.st.err.Render("✗"), len(res.Errors))
		return
	}

	if est := res.Estimate; est != nil {
		lines := []string{
			fmt.Sprintf("Model size:        %.2f MB", est.ModelSizeMB),
			fmt.Sprintf("Inference time:    %.2f ms", est.InferenceTimeMs),
			fmt.Sprintf("Memory usage:      %.2f MB", est.MemoryUsageMB),
			fmt.Sprintf("Power consumption: %.2f mW", est.PowerConsumptionMW),
		}
		r.printf("%s\n", r.st.box.Render(strings.Join(lines, "\n")))
	}
	r.printf("%s Estimated in %s\n", r.st.ok.Render("✓"), res.CompileTime.Round(time.Microsecond))
}

// Docker prints a containerized run result.
func (r *Reporter) Docker(res *docker.RunResult) {
	if !res.Success {
		r.printf("%s Docker execution failed: %s\n", r.st.err.Render("✗"), res.Error)
		return
	}
	r.printf("%s Docker execution completed\n", r.st.ok.Render("✓"))
	if res.OutputPath != "" {
		r.kv("Outputs", res.OutputPath)
	}
}

// Failure prints a terminal error line.
func (r *Reporter) Failure(msg string) {
	r.printf("%s %s\n", r.st.err.Render("✗"), msg)
}

// Pipeline prints the full pipeline result and, on success, writes
// report.md.
func (r *Reporter) Pipeline(cfg *config.Config, res *optimize.PipelineResult) error {
	if res.Err != nil {
		r.Failure(res.Err.Error())
		return nil
	}

	r.printf("%s\n", r.st.header.Render(Title))
	if s := res.Optimization; s != nil {
		r.kv("Optimized model", s.OutputPath)
		if s.Quantization != "" {
			r.kv("Quantization", s.Quantization)
		}
	}
	if c := res.Comparison; c != nil {
		r.kv("Size reduction", fmt.Sprintf("%.1f%%", c.SizeReductionPercent))
		if c.SpeedupFactor > 0 {
			r.kv("Speedup", fmt.Sprintf("%.2fx", c.SpeedupFactor))
		}
		if c.MemoryReductionPercent != 0 {
			r.kv("Memory reduction", fmt.Sprintf("%.1f%%", c.MemoryReductionPercent))
		}
	}
	if s := res.Optimization; s != nil && s.GeneratedCode != "" {
		r.kv("Generated code", s.GeneratedCode)
	}
	r.explainOptimization(res)

	if err := fileutil.WriteFileAtomic(r.path, []byte(r.Markdown(cfg, res)), reportMode); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	r.log.Info("report written", zap.String("path", r.path))
	r.kv("Report", r.path)
	return nil
}
