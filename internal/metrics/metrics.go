// Package metrics collects per-run Prometheus metrics and exports them to a
// node_exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the metrics for one edgeflowc invocation.
//
// All metrics are prefixed with "edgeflowc_":
//   - edgeflowc_stage_duration_seconds{stage} - wall time per stage
//   - edgeflowc_stage_success{stage} - 1 if the stage succeeded, else 0
//   - edgeflowc_validation_issues{gate} - issues reported by each gate
//   - edgeflowc_run_exit_code{mode} - exit code of the run
//   - edgeflowc_run_info{run_id,mode} - constant 1, carries labels
//   - edgeflowc_run_timestamp_seconds - completion time of the run
type Metrics struct {
	reg *prometheus.Registry

	StageDuration    *prometheus.GaugeVec
	StageSuccess     *prometheus.GaugeVec
	ValidationIssues *prometheus.GaugeVec
	ExitCode         *prometheus.GaugeVec
	RunInfo          *prometheus.GaugeVec
	RunTimestamp     prometheus.Gauge

	now func() time.Time
}

// New creates metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		StageDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "edgeflowc_stage_duration_seconds",
			Help: "Wall time spent in each stage of the run",
		}, []string{"stage"}),
		StageSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "edgeflowc_stage_success",
			Help: "1 if the stage succeeded, 0 otherwise",
		}, []string{"stage"}),
		ValidationIssues: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "edgeflowc_validation_issues",
			Help: "Number of issues reported by each validation gate",
		}, []string{"gate"}),
		ExitCode: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "edgeflowc_run_exit_code",
			Help: "Process exit code of the run",
		}, []string{"mode"}),
		RunInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "edgeflowc_run_info",
			Help: "Run identity, always 1",
		}, []string{"run_id", "mode"}),
		RunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "edgeflowc_run_timestamp_seconds",
			Help: "Unix time the run completed",
		}),
		now: time.Now,
	}
}

// ObserveStage records the duration and outcome of stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration, ok bool) {
	m.StageDuration.WithLabelValues(stage).Set(d.Seconds())
	m.StageSuccess.WithLabelValues(stage).Set(boolFloat(ok))
}

// ObserveGate records the issue count for gate.
func (m *Metrics) ObserveGate(gate string, issues int) {
	m.ValidationIssues.WithLabelValues(gate).Set(float64(issues))
}

// ObserveRun records the final outcome of the invocation.
func (m *Metrics) ObserveRun(runID, mode string, exitCode int) {
	m.ExitCode.WithLabelValues(mode).Set(float64(exitCode))
	m.RunInfo.WithLabelValues(runID, mode).Set(1)
	m.RunTimestamp.Set(float64(m.now().Unix()))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// WriteTextfile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
