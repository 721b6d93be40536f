package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/lucasnoah/edgeflowc/internal/command"
	"github.com/lucasnoah/edgeflowc/internal/config"
	"github.com/lucasnoah/edgeflowc/internal/docker"
	"github.com/lucasnoah/edgeflowc/internal/estimate"
	"github.com/lucasnoah/edgeflowc/internal/exitcode"
	"github.com/lucasnoah/edgeflowc/internal/history"
	"github.com/lucasnoah/edgeflowc/internal/logging"
	"github.com/lucasnoah/edgeflowc/internal/metrics"
	"github.com/lucasnoah/edgeflowc/internal/optimize"
	"github.com/lucasnoah/edgeflowc/internal/orchestrator"
	"github.com/lucasnoah/edgeflowc/internal/report"
	"github.com/lucasnoah/edgeflowc/internal/validate"
	"go.uber.org/zap"
)

// wire builds the production collaborators for inv.
func wire(ctx context.Context, inv orchestrator.Invocation, stdout, stderr io.Writer) (orchestrator.Deps, func(), error) {
	noop := func() {}

	settings, err := config.LoadSettings()
	if err != nil {
		return orchestrator.Deps{}, noop, exitcode.EnvironmentError(err)
	}

	log, err := logging.New(logging.Options{Verbose: inv.Verbose, Format: settings.LogFormat, Output: stderr})
	if err != nil {
		return orchestrator.Deps{}, noop, exitcode.EnvironmentError(fmt.Errorf("EDGEFLOW_LOG_FORMAT: %w", err))
	}

	devices := config.DefaultDevices()
	if inv.DeviceSpecFile != "" {
		devices, err = config.LoadDeviceSpecs(inv.DeviceSpecFile)
		if err != nil {
			return orchestrator.Deps{}, noop, exitcode.ValidationError(err)
		}
		log.Debug("loaded device specs", zap.String("path", inv.DeviceSpecFile), zap.Strings("devices", devices.Names()))
	}

	runID := uuid.New()
	runner := &command.ExecRunner{}

	deps := orchestrator.Deps{
		Loader:    config.SelectLoader(settings, log),
		Validator: validate.DefaultChain(devices, log),
		Pipeline: optimize.NewPipeline(
			optimize.NewExecOptimizer(runner, settings.OptimizerCmd, log),
			optimize.NewExecBenchmarker(runner, settings.BenchmarkCmd, log),
			log,
		),
		Estimator: estimate.New(devices, log),
		Docker:    docker.NewManager(runner, log),
		Reporter: report.New(report.Options{
			Out:        stdout,
			ReportPath: settings.ReportPath,
			RunID:      runID.String(),
			Explain:    inv.Explain,
		}, log),
		Settings: settings,
		RunID:    runID,
		Log:      log,
	}

	if settings.MetricsFile != "" {
		deps.Metrics = metrics.New()
	}

	cleanup := noop
	if settings.HistoryDSN != "" {
		store, err := openHistory(ctx, settings.HistoryDSN)
		if err != nil {
			log.Warn("run history disabled", zap.Error(err))
		} else {
			deps.Recorder = store
			cleanup = func() { store.Close(context.Background()) }
		}
	}
	return deps, cleanup, nil
}

func openHistory(ctx context.Context, dsn string) (*history.Store, error) {
	store, err := history.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return store, nil
}
