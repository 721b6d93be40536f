package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasnoah/edgeflowc/internal/config"
	"github.com/lucasnoah/edgeflowc/internal/docker"
	"github.com/lucasnoah/edgeflowc/internal/estimate"
	"github.com/lucasnoah/edgeflowc/internal/exitcode"
	"github.com/lucasnoah/edgeflowc/internal/history"
	"github.com/lucasnoah/edgeflowc/internal/metrics"
	"github.com/lucasnoah/edgeflowc/internal/optimize"
	"github.com/lucasnoah/edgeflowc/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type mockValidator struct {
	calls int
	res   *validate.Result
}

func (m *mockValidator) Run(context.Context, *config.Config) *validate.Result {
	m.calls++
	if m.res == nil {
		return &validate.Result{Passed: true}
	}
	return m.res
}

type mockPipeline struct {
	calls int
	opts  optimize.Options
	res   *optimize.PipelineResult
}

func (m *mockPipeline) Run(_ context.Context, _ *config.Config, opts optimize.Options) *optimize.PipelineResult {
	m.calls++
	m.opts = opts
	if m.res == nil {
		return &optimize.PipelineResult{Optimization: &optimize.Summary{OutputPath: "out.tflite"}}
	}
	return m.res
}

type mockEstimator struct {
	calls int
	res   *estimate.FastCompileResult
}

func (m *mockEstimator) Estimate(context.Context, *config.Config) *estimate.FastCompileResult {
	m.calls++
	return m.res
}

type mockDocker struct {
	env       docker.Environment
	buildErr  error
	runResult *docker.RunResult
	builds    []docker.BuildOptions
	runs      []docker.RunOptions
}

func (m *mockDocker) Check(context.Context) docker.Environment { return m.env }

func (m *mockDocker) BuildImage(_ context.Context, opts docker.BuildOptions) error {
	m.builds = append(m.builds, opts)
	return m.buildErr
}

func (m *mockDocker) RunPipeline(_ context.Context, opts docker.RunOptions) *docker.RunResult {
	m.runs = append(m.runs, opts)
	return m.runResult
}

type mockReporter struct {
	failures    []string
	validations int
	skipped     int
	fast        int
	dockers     int
	pipelines   int
	pipelineErr error
}

func (m *mockReporter) Validation(*validate.Result) { m.validations++ }
func (m *mockReporter) CheckSkipped() { m.skipped++ }
func (m *mockReporter) FastCompile(*estimate.FastCompileResult) { m.fast++ }
func (m *mockReporter) Docker(*docker.RunResult) { m.dockers++ }
func (m *mockReporter) Explain(*config.Config) error { return nil }
func (m *mockReporter) Failure(msg string) { m.failures = append(m.failures, msg) }
func (m *mockReporter) Pipeline(*config.Config, *optimize.PipelineResult) error {
	m.pipelines++
	return m.pipelineErr
}

type mockRecorder struct {
	runs []history.Run
	err  error
}

func (m *mockRecorder) Record(_ context.Context, run history.Run) error {
	m.runs = append(m.runs, run)
	return m.err
}

type testEnv struct {
	orch      *Orchestrator
	validator *mockValidator
	pipeline  *mockPipeline
	estimator *mockEstimator
	docker    *mockDocker
	reporter  *mockReporter
	recorder  *mockRecorder
	cfgPath   string
}

func readyDocker() *mockDocker {
	return &mockDocker{
		env:       docker.Environment{DockerInstalled: true, ComposeInstalled: true, DockerRunning: true},
		runResult: &docker.RunResult{Success: true, OutputPath: "/abs/outputs"},
	}
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "model.ef")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`model = "m.tflite"`+"\n"), 0644))

	env := &testEnv{
		validator: &mockValidator{},
		pipeline:  &mockPipeline{},
		estimator: &mockEstimator{res: &estimate.FastCompileResult{Success: true, Estimate: &estimate.PerformanceEstimate{}}},
		docker:    readyDocker(),
		reporter:  &mockReporter{},
		recorder:  &mockRecorder{},
		cfgPath:   cfgPath,
	}
	env.orch = New(Deps{
		Loader:    config.NewHCLLoader(nil),
		Validator: env.validator,
		Pipeline:  env.pipeline,
		Estimator: env.estimator,
		Docker:    env.docker,
		Reporter:  env.reporter,
		Recorder:  env.recorder,
		Settings:  config.DefaultSettings(),
	})
	return env
}

func (e *testEnv) run(t *testing.T, inv Invocation) (ExecutionResult, error, int) {
	t.Helper()
	if inv.ConfigPath == "" {
		inv.ConfigPath = e.cfgPath
	}
	res, err := e.orch.Execute(context.Background(), inv)
	return res, err, ExitCode(res, err)
}

// --- Tests ---

func TestSelectMode_Precedence(t *testing.T) {
	tests := []struct {
		inv  Invocation
		want Mode
	}{
		{Invocation{}, ModePipeline},
		{Invocation{Docker: true}, ModeDocker},
		{Invocation{Docker: true, FastCompile: true}, ModeFastCompile},
		{Invocation{Docker: true, FastCompile: true, CheckOnly: true}, ModeCheckOnly},
		{Invocation{CheckOnly: true, SkipCheck: true}, ModeCheckOnly},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SelectMode(tt.inv))
	}
}

func TestExecute_FullPipelineSkipCheck(t *testing.T) {
	env := setupTest(t)

	res, err, code := env.run(t, Invocation{SkipCheck: true, DryRun: true, Codegen: "cpp"})
	require.NoError(t, err)
	assert.Equal(t, exitcode.Success, code)
	assert.IsType(t, &PipelineResult{}, res)
	assert.Equal(t, 1, env.pipeline.calls)
	assert.Equal(t, optimize.Options{DryRun: true, Codegen: "cpp"}, env.pipeline.opts)
	assert.Zero(t, env.validator.calls)
	assert.Equal(t, 1, env.reporter.skipped)
	assert.Equal(t, 1, env.reporter.pipelines)
}

func TestExecute_PipelineFailure(t *testing.T) {
	env := setupTest(t)
	env.pipeline.res = &optimize.PipelineResult{Err: errors.New("optimize: boom")}

	_, err, code := env.run(t, Invocation{})
	require.NoError(t, err)
	assert.Equal(t, exitcode.Failure, code)
	assert.Equal(t, 1, env.validator.calls)
	assert.Equal(t, 1, env.pipeline.calls)
}

func TestExecute_ReportWriteFailure(t *testing.T) {
	env := setupTest(t)
	env.reporter.pipelineErr = errors.New("disk full")

	_, err, code := env.run(t, Invocation{})
	require.Error(t, err)
	assert.Equal(t, exitcode.KindPipeline, exitcode.KindOf(err))
	assert.Equal(t, exitcode.Failure, code)
}

func TestExecute_ValidationFailureStopsBeforeWork(t *testing.T) {
	env := setupTest(t)
	env.validator.res = &validate.Result{Passed: false, Gate: "schema", Issues: []string{"quantize: bad"}}

	res, err, code := env.run(t, Invocation{})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Equal(t, exitcode.KindValidation, exitcode.KindOf(err))
	assert.Equal(t, exitcode.Failure, code)
	assert.Zero(t, env.pipeline.calls)
	assert.Equal(t, 1, env.reporter.validations)

	require.Len(t, env.recorder.runs, 1)
	assert.Equal(t, "schema", env.recorder.runs[0].Gate)
	assert.Equal(t, []string{"quantize: bad"}, env.recorder.runs[0].Issues)
}

func TestExecute_CheckOnly(t *testing.T) {
	t.Run("passes", func(t *testing.T) {
		env := setupTest(t)
		res, err, code := env.run(t, Invocation{CheckOnly: true, FastCompile: true, Docker: true})
		require.NoError(t, err)
		assert.Equal(t, exitcode.Success, code)
		assert.Equal(t, &CheckOnlyResult{Passed: true}, res)
		assert.Zero(t, env.pipeline.calls)
		assert.Zero(t, env.estimator.calls)
		assert.Empty(t, env.docker.runs)
		assert.Zero(t, env.reporter.pipelines)
	})

	t.Run("fails", func(t *testing.T) {
		env := setupTest(t)
		env.validator.res = &validate.Result{Passed: false, Gate: "early", Issues: []string{"missing model"}}
		res, err, code := env.run(t, Invocation{CheckOnly: true})
		require.NoError(t, err)
		assert.Equal(t, exitcode.Failure, code)
		assert.Equal(t, &CheckOnlyResult{Gate: "early", Issues: []string{"missing model"}}, res)
	})

	t.Run("with skip-check", func(t *testing.T) {
		env := setupTest(t)
		res, _, code := env.run(t, Invocation{CheckOnly: true, SkipCheck: true})
		assert.Equal(t, exitcode.Success, code)
		assert.Equal(t, &CheckOnlyResult{Passed: true, Skipped: true}, res)
		assert.Zero(t, env.validator.calls)
		assert.Zero(t, env.pipeline.calls)
	})
}

func TestExecute_FastCompile(t *testing.T) {
	t.Run("success with warnings", func(t *testing.T) {
		env := setupTest(t)
		env.estimator.res = &estimate.FastCompileResult{Success: true, Warnings: []string{"w"}, Estimate: &estimate.PerformanceEstimate{}}
		_, err, code := env.run(t, Invocation{FastCompile: true, Docker: true})
		require.NoError(t, err)
		assert.Equal(t, exitcode.Success, code)
		assert.Equal(t, 1, env.estimator.calls)
		assert.Zero(t, env.pipeline.calls)
		assert.Empty(t, env.docker.runs)
		assert.Equal(t, 1, env.reporter.fast)
	})

	t.Run("two errors", func(t *testing.T) {
		env := setupTest(t)
		env.estimator.res = &estimate.FastCompileResult{Errors: []string{"Error 1", "Error 2"}}
		_, err, code := env.run(t, Invocation{FastCompile: true, SkipCheck: true})
		require.NoError(t, err)
		assert.Equal(t, exitcode.Failure, code)
		require.Len(t, env.recorder.runs, 1)
		assert.Equal(t, []string{"Error 1", "Error 2"}, env.recorder.runs[0].Issues)
	})

	t.Run("nil result", func(t *testing.T) {
		env := setupTest(t)
		env.estimator.res = nil
		res, err, code := env.run(t, Invocation{FastCompile: true, SkipCheck: true})
		require.NoError(t, err)
		assert.Equal(t, exitcode.Failure, code)
		fc, ok := res.(*FastCompileResult)
		require.True(t, ok)
		assert.Equal(t, []string{"estimator returned no result"}, fc.Errors)
	})
}

func TestExecute_Docker(t *testing.T) {
	t.Run("environment not ready", func(t *testing.T) {
		env := setupTest(t)
		env.docker.env.DockerRunning = false
		res, err, code := env.run(t, Invocation{Docker: true, DockerBuild: true})
		assert.Nil(t, res)
		assert.Equal(t, exitcode.KindEnvironment, exitcode.KindOf(err))
		assert.Equal(t, exitcode.Failure, code)
		assert.Empty(t, env.docker.builds)
		assert.Empty(t, env.docker.runs)
		assert.Contains(t, env.reporter.failures, "docker daemon is not running")
	})

	t.Run("run only", func(t *testing.T) {
		env := setupTest(t)
		_, err, code := env.run(t, Invocation{Docker: true})
		require.NoError(t, err)
		assert.Equal(t, exitcode.Success, code)
		assert.Empty(t, env.docker.builds)
		require.Len(t, env.docker.runs, 1)
		assert.Equal(t, "edgeflow:latest", env.docker.runs[0].Tag)
		assert.Equal(t, "outputs", env.docker.runs[0].OutputDir)
	})

	t.Run("build and run", func(t *testing.T) {
		env := setupTest(t)
		_, err, code := env.run(t, Invocation{Docker: true, DockerBuild: true, DockerTag: "mytag", DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, exitcode.Success, code)
		require.Len(t, env.docker.builds, 1)
		assert.Equal(t, "mytag", env.docker.builds[0].Tag)
		assert.Equal(t, "mytag", env.docker.runs[0].Tag)
		assert.True(t, env.docker.runs[0].DryRun)
		assert.Zero(t, env.pipeline.calls)
	})

	t.Run("build fails", func(t *testing.T) {
		env := setupTest(t)
		env.docker.buildErr = errors.New("no Dockerfile")
		_, err, code := env.run(t, Invocation{Docker: true, DockerBuild: true})
		assert.Equal(t, exitcode.KindEnvironment, exitcode.KindOf(err))
		assert.Equal(t, exitcode.Failure, code)
		assert.Empty(t, env.docker.runs)
	})

	t.Run("run fails", func(t *testing.T) {
		env := setupTest(t)
		env.docker.runResult = &docker.RunResult{Error: "boom"}
		_, err, code := env.run(t, Invocation{Docker: true})
		require.NoError(t, err)
		assert.Equal(t, exitcode.Failure, code)
		assert.Equal(t, 1, env.reporter.dockers)
	})
}

func TestExecute_BadPath(t *testing.T) {
	env := setupTest(t)
	wrongExt := filepath.Join(filepath.Dir(env.cfgPath), "model.txt")
	require.NoError(t, os.WriteFile(wrongExt, []byte("model=x"), 0644))

	for _, path := range []string{filepath.Join(t.TempDir(), "missing.ef"), wrongExt} {
		res, err, code := env.run(t, Invocation{ConfigPath: path})
		assert.Nil(t, res)
		assert.Equal(t, exitcode.KindValidation, exitcode.KindOf(err))
		assert.Equal(t, exitcode.Failure, code)
	}
	assert.Zero(t, env.validator.calls)
	assert.Len(t, env.reporter.failures, 2)
}

func TestExecute_UnparseableConfig(t *testing.T) {
	env := setupTest(t)
	require.NoError(t, os.WriteFile(env.cfgPath, []byte("model = {"), 0644))

	_, err, code := env.run(t, Invocation{})
	assert.Equal(t, exitcode.KindValidation, exitcode.KindOf(err))
	assert.Equal(t, exitcode.Failure, code)
	assert.Zero(t, env.validator.calls)
}

func TestExecute_RecorderErrorDoesNotChangeOutcome(t *testing.T) {
	env := setupTest(t)
	env.recorder.err = errors.New("db down")

	_, err, code := env.run(t, Invocation{})
	require.NoError(t, err)
	assert.Equal(t, exitcode.Success, code)
	require.Len(t, env.recorder.runs, 1)
	assert.Equal(t, "pipeline", env.recorder.runs[0].Mode)
	assert.Equal(t, env.orch.RunID, env.recorder.runs[0].ID)
}

func TestExecute_WritesMetricsTextfile(t *testing.T) {
	env := setupTest(t)
	env.orch.Metrics = metrics.New()
	env.orch.Settings.MetricsFile = filepath.Join(t.TempDir(), "edgeflowc.prom")

	_, _, code := env.run(t, Invocation{})
	assert.Equal(t, exitcode.Success, code)

	data, err := os.ReadFile(env.orch.Settings.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `edgeflowc_stage_success{stage="pipeline"} 1`)
	assert.Contains(t, string(data), `edgeflowc_run_exit_code{mode="pipeline"} 0`)
}
