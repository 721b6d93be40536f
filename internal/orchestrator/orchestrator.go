// Package orchestrator sequences config loading, validation and the selected
// execution mode for one edgeflowc invocation.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lucasnoah/edgeflowc/internal/config"
	"github.com/lucasnoah/edgeflowc/internal/docker"
	"github.com/lucasnoah/edgeflowc/internal/estimate"
	"github.com/lucasnoah/edgeflowc/internal/exitcode"
	"github.com/lucasnoah/edgeflowc/internal/history"
	"github.com/lucasnoah/edgeflowc/internal/metrics"
	"github.com/lucasnoah/edgeflowc/internal/optimize"
	"github.com/lucasnoah/edgeflowc/internal/validate"
	"go.uber.org/zap"
)

// Mode is the execution path selected for a run.
type Mode string

const (
	ModeCheckOnly   Mode = "check-only"
	ModeFastCompile Mode = "fast-compile"
	ModeDocker      Mode = "docker"
	ModePipeline    Mode = "pipeline"
)

// Invocation is the parsed command line. It is built once and not modified.
type Invocation struct {
	ConfigPath     string
	Verbose        bool
	SkipCheck      bool
	CheckOnly      bool
	FastCompile    bool
	Docker         bool
	DockerBuild    bool
	DockerTag      string
	DryRun         bool
	Explain        bool
	Codegen        string
	DeviceSpecFile string
}

// SelectMode applies the precedence check-only > fast-compile > docker >
// full pipeline.
func SelectMode(inv Invocation) Mode {
	switch {
	case inv.CheckOnly:
		return ModeCheckOnly
	case inv.FastCompile:
		return ModeFastCompile
	case inv.Docker:
		return ModeDocker
	default:
		return ModePipeline
	}
}

// Validator runs the validation chain.
type Validator interface {
	Run(ctx context.Context, cfg *config.Config) *validate.Result
}

// Pipeline runs the full optimization pipeline.
type Pipeline interface {
	Run(ctx context.Context, cfg *config.Config, opts optimize.Options) *optimize.PipelineResult
}

// Estimator runs the fast-compile path.
type Estimator interface {
	Estimate(ctx context.Context, cfg *config.Config) *estimate.FastCompileResult
}

// DockerRunner drives the containerized path.
type DockerRunner interface {
	Check(ctx context.Context) docker.Environment
	BuildImage(ctx context.Context, opts docker.BuildOptions) error
	RunPipeline(ctx context.Context, opts docker.RunOptions) *docker.RunResult
}

// Reporter presents results to the user.
type Reporter interface {
	Validation(res *validate.Result)
	CheckSkipped()
	FastCompile(res *estimate.FastCompileResult)
	Docker(res *docker.RunResult)
	Pipeline(cfg *config.Config, res *optimize.PipelineResult) error
	Explain(cfg *config.Config) error
	Failure(msg string)
}

// Recorder persists a finished run.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Deps are the collaborators of an Orchestrator. Recorder and Metrics are
// optional.
type Deps struct {
	PathGate  func(path string) bool
	Loader    config.Loader
	Validator Validator
	Pipeline  Pipeline
	Estimator Estimator
	Docker    DockerRunner
	Reporter  Reporter
	Recorder  Recorder
	Metrics   *metrics.Metrics
	Settings  config.Settings
	RunID     uuid.UUID
	Log       *zap.Logger
}

// Orchestrator runs one invocation end to end.
type Orchestrator struct {
	Deps
	now func() time.Time
}

// New creates an Orchestrator.
func New(d Deps) *Orchestrator {
	if d.PathGate == nil {
		d.PathGate = config.ValidateFilePath
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.RunID == uuid.Nil {
		d.RunID = uuid.New()
	}
	return &Orchestrator{Deps: d, now: time.Now}
}

// Execute runs inv. Exactly one of the returned values is meaningful for the
// exit code: err when the run stopped before producing a mode result,
// otherwise the result.
func (o *Orchestrator) Execute(ctx context.Context, inv Invocation) (res ExecutionResult, err error) {
	mode := SelectMode(inv)
	started := o.now()
	run := history.Run{ID: o.RunID, ConfigPath: inv.ConfigPath, Mode: string(mode), StartedAt: started}
	log := o.Log.With(zap.String("run_id", o.RunID.String()), zap.String("mode", string(mode)))

	defer func() {
		run.ExitCode = ExitCode(res, err)
		run.Duration = o.now().Sub(started)
		if err != nil {
			run.Error = err.Error()
		}
		o.finish(ctx, log, run)
	}()

	log.Debug("starting run", zap.String("config", inv.ConfigPath))

	if !o.PathGate(inv.ConfigPath) {
		msg := fmt.Sprintf("config file %q does not exist or is not a %s file", inv.ConfigPath, config.Extension)
		o.Reporter.Failure(msg)
		return nil, exitcode.ValidationError(fmt.Errorf("invalid config path"), msg)
	}

	cfg, err := o.load(inv.ConfigPath)
	if err != nil {
		o.Reporter.Failure(err.Error())
		return nil, exitcode.ValidationError(err)
	}
	run.ConfigPath = cfg.Source()

	if err := o.Reporter.Explain(cfg); err != nil {
		log.Warn("explain failed", zap.Error(err))
	}

	if inv.SkipCheck {
		log.Info("validation skipped")
		o.Reporter.CheckSkipped()
		if mode == ModeCheckOnly {
			return &CheckOnlyResult{Passed: true, Skipped: true}, nil
		}
	} else {
		vres := o.validate(ctx, cfg)
		o.Reporter.Validation(vres)
		if mode == ModeCheckOnly {
			run.Gate, run.Issues = vres.Gate, vres.Issues
			return &CheckOnlyResult{Passed: vres.Passed, Gate: vres.Gate, Issues: vres.Issues}, nil
		}
		if !vres.Passed {
			run.Gate, run.Issues = vres.Gate, vres.Issues
			return nil, exitcode.ValidationError(fmt.Errorf("validation failed at %s gate", vres.Gate), vres.Issues...)
		}
	}

	switch mode {
	case ModeFastCompile:
		return o.fastCompile(ctx, cfg, &run), nil
	case ModeDocker:
		return o.docker(ctx, inv, log)
	default:
		return o.pipeline(ctx, cfg, inv)
	}
}

func (o *Orchestrator) load(path string) (*config.Config, error) {
	start := o.now()
	cfg, err := o.Loader.Load(path)
	o.observeStage("load", start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("loading config with %s loader: %w", o.Loader.Name(), err)
	}
	return cfg, nil
}

func (o *Orchestrator) validate(ctx context.Context, cfg *config.Config) *validate.Result {
	start := o.now()
	res := o.Validator.Run(ctx, cfg)
	o.observeStage("validate", start, res.Passed)
	if o.Metrics != nil {
		for _, c := range res.Checks {
			o.Metrics.ObserveGate(c.Gate, len(c.Issues))
		}
	}
	return res
}

func (o *Orchestrator) fastCompile(ctx context.Context, cfg *config.Config, run *history.Run) *FastCompileResult {
	start := o.now()
	res := o.Estimator.Estimate(ctx, cfg)
	if res == nil {
		res = &FastCompileResult{Errors: []string{"estimator returned no result"}}
	}
	o.observeStage("estimate", start, res.Success)
	o.Reporter.FastCompile(res)
	if !res.Success {
		run.Issues = res.Errors
	}
	return res
}

func (o *Orchestrator) docker(ctx context.Context, inv Invocation, log *zap.Logger) (ExecutionResult, error) {
	env := o.Docker.Check(ctx)
	if !env.Ready() {
		missing := env.Missing()
		for _, m := range missing {
			o.Reporter.Failure(m)
		}
		return nil, exitcode.EnvironmentError(fmt.Errorf("docker environment not ready"), missing...)
	}

	tag := inv.DockerTag
	if tag == "" {
		tag = o.Settings.DockerImage
	}

	if inv.DockerBuild {
		start := o.now()
		err := o.Docker.BuildImage(ctx, docker.BuildOptions{Tag: tag, Dockerfile: o.Settings.Dockerfile, Context: "."})
		o.observeStage("docker_build", start, err == nil)
		if err != nil {
			o.Reporter.Failure(err.Error())
			return nil, exitcode.EnvironmentError(fmt.Errorf("building image %s: %w", tag, err))
		}
		log.Info("image built", zap.String("tag", tag))
	}

	start := o.now()
	res := o.Docker.RunPipeline(ctx, docker.RunOptions{
		ConfigPath: inv.ConfigPath,
		Tag:        tag,
		OutputDir:  o.Settings.OutputDir,
		Verbose:    inv.Verbose,
		DryRun:     inv.DryRun,
		Explain:    inv.Explain,
		Codegen:    inv.Codegen,
		SkipCheck:  inv.SkipCheck,
	})
	o.observeStage("docker_run", start, res.Success)
	o.Reporter.Docker(res)
	return res, nil
}

func (o *Orchestrator) pipeline(ctx context.Context, cfg *config.Config, inv Invocation) (ExecutionResult, error) {
	start := o.now()
	res := o.Pipeline.Run(ctx, cfg, optimize.Options{DryRun: inv.DryRun, Explain: inv.Explain, Codegen: inv.Codegen})
	o.observeStage("pipeline", start, res.Err == nil)

	if err := o.Reporter.Pipeline(cfg, res); err != nil {
		return res, exitcode.PipelineError(err)
	}
	return res, nil
}

func (o *Orchestrator) observeStage(stage string, start time.Time, ok bool) {
	if o.Metrics != nil {
		o.Metrics.ObserveStage(stage, o.now().Sub(start), ok)
	}
}

func (o *Orchestrator) finish(ctx context.Context, log *zap.Logger, run history.Run) {
	log.Debug("run finished", zap.Int("exit_code", run.ExitCode), zap.Duration("duration", run.Duration))

	if o.Recorder != nil {
		if err := o.Recorder.Record(ctx, run); err != nil {
			log.Warn("recording run history failed", zap.Error(err))
		}
	}
	if o.Metrics != nil {
		o.Metrics.ObserveRun(run.ID.String(), run.Mode, run.ExitCode)
		if o.Settings.MetricsFile != "" {
			if err := o.Metrics.WriteTextfile(o.Settings.MetricsFile); err != nil {
				log.Warn("writing metrics failed", zap.Error(err))
			}
		}
	}
}
