package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasnoah/edgeflowc/internal/config"
	"github.com/lucasnoah/edgeflowc/internal/docker"
	"github.com/lucasnoah/edgeflowc/internal/estimate"
	"github.com/lucasnoah/edgeflowc/internal/exitcode"
	"github.com/lucasnoah/edgeflowc/internal/optimize"
	"github.com/lucasnoah/edgeflowc/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOptimizer struct {
	calls int
	err   error
}

func (f *fakeOptimizer) Optimize(_ context.Context, cfg *config.Config, _ optimize.Options) (*optimize.Summary, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &optimize.Summary{OutputPath: "optimized.tflite"}, nil
}

type fakeBenchmarker struct{}

func (fakeBenchmarker) Benchmark(_ context.Context, path string, _ *config.Config) (*optimize.Benchmark, error) {
	if path == "optimized.tflite" {
		return &optimize.Benchmark{ModelPath: path, SizeMB: 25, LatencyMs: 5}, nil
	}
	return &optimize.Benchmark{ModelPath: path, SizeMB: 100, LatencyMs: 10}, nil
}

type fakeEstimator struct {
	res *estimate.FastCompileResult
}

func (f fakeEstimator) Estimate(context.Context, *config.Config) *estimate.FastCompileResult {
	return f.res
}

type fakeDocker struct {
	env    docker.Environment
	run    *docker.RunResult
	builds int
	runs   int
}

func (f *fakeDocker) Check(context.Context) docker.Environment { return f.env }

func (f *fakeDocker) BuildImage(context.Context, docker.BuildOptions) error {
	f.builds++
	return nil
}

func (f *fakeDocker) RunPipeline(context.Context, docker.RunOptions) *docker.RunResult {
	f.runs++
	return f.run
}

type appEnv struct {
	app    *App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	dir    string
	cfg    string
	report string
}

// setupApp isolates the process settings and writes a minimal config.
func setupApp(t *testing.T) *appEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "model.ef")
	require.NoError(t, os.WriteFile(cfg, []byte(`model="m.tflite"`+"\n"), 0644))

	report := filepath.Join(dir, "report.md")
	t.Setenv("EDGEFLOW_REPORT_PATH", report)
	t.Setenv("EDGEFLOW_HISTORY_DSN", "")
	t.Setenv("EDGEFLOW_METRICS_FILE", "")
	t.Setenv("EDGEFLOW_PARSER", "")
	t.Setenv("EDGEFLOW_LOG_FORMAT", "")
	t.Setenv("EDGEFLOW_OPTIMIZER_CMD", "")
	t.Setenv("EDGEFLOW_BENCHMARK_CMD", "")

	var stdout, stderr bytes.Buffer
	return &appEnv{app: NewApp(&stdout, &stderr), stdout: &stdout, stderr: &stderr, dir: dir, cfg: cfg, report: report}
}

func (e *appEnv) run(args ...string) int {
	return e.app.Run(context.Background(), args)
}

func TestRun_SkipCheckFullPipeline(t *testing.T) {
	env := setupApp(t)
	opt := &fakeOptimizer{}
	env.app.customize = func(d *orchestrator.Deps) {
		d.Pipeline = optimize.NewPipeline(opt, fakeBenchmarker{}, d.Log)
	}

	code := env.run(env.cfg, "--skip-check")
	assert.Equal(t, exitcode.Success, code, env.stderr.String())
	assert.Equal(t, 1, opt.calls)

	data, err := os.ReadFile(env.report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "EdgeFlow Optimization Report")
	assert.Contains(t, env.stdout.String(), "75.0%")
}

func TestRun_PipelineFailureExitsOne(t *testing.T) {
	env := setupApp(t)
	env.app.customize = func(d *orchestrator.Deps) {
		d.Pipeline = optimize.NewPipeline(&fakeOptimizer{err: errors.New("boom")}, fakeBenchmarker{}, d.Log)
	}

	assert.Equal(t, exitcode.Failure, env.run(env.cfg, "--skip-check"))
	assert.Contains(t, env.stderr.String(), "Optimization pipeline failed")
	assert.NoFileExists(t, env.report)
}

func TestRun_FastCompileFailureWithTwoErrors(t *testing.T) {
	env := setupApp(t)
	env.app.customize = func(d *orchestrator.Deps) {
		d.Estimator = fakeEstimator{res: &estimate.FastCompileResult{Errors: []string{"Error 1", "Error 2"}}}
	}

	assert.Equal(t, exitcode.Failure, env.run(env.cfg, "--fast-compile", "--skip-check"))
	assert.Contains(t, env.stdout.String(), "Error 1")
	assert.Contains(t, env.stdout.String(), "Error 2")
}

func TestRun_FastCompileSuccessWithoutEstimate(t *testing.T) {
	env := setupApp(t)
	env.app.customize = func(d *orchestrator.Deps) {
		d.Estimator = fakeEstimator{res: &estimate.FastCompileResult{Success: true}}
	}

	assert.Equal(t, exitcode.Success, env.run(env.cfg, "--fast-compile", "--skip-check"))
	assert.NotContains(t, env.stderr.String(), "panic")
}

func TestRun_FastCompileRealEstimator(t *testing.T) {
	env := setupApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "m.tflite"), make([]byte, 4096), 0644))

	assert.Equal(t, exitcode.Success, env.run(env.cfg, "--fast-compile"))
	assert.Contains(t, env.stdout.String(), "Inference time")
}

func TestRun_Docker(t *testing.T) {
	ready := docker.Environment{DockerInstalled: true, ComposeInstalled: true, DockerRunning: true}

	tests := []struct {
		name       string
		env        docker.Environment
		run        *docker.RunResult
		args       []string
		wantCode   int
		wantBuilds int
		wantRuns   int
	}{
		{"run", ready, &docker.RunResult{Success: true}, []string{"--docker"}, 0, 0, 1},
		{"build and run", ready, &docker.RunResult{Success: true, OutputPath: "./outputs"}, []string{"--docker", "--docker-build", "--docker-tag", "mytag"}, 0, 1, 1},
		{"run failure", ready, &docker.RunResult{Error: "boom"}, []string{"--docker"}, 1, 0, 1},
		{"daemon down", docker.Environment{DockerInstalled: true, ComposeInstalled: true}, nil, []string{"--docker", "--docker-build"}, 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupApp(t)
			fd := &fakeDocker{env: tt.env, run: tt.run}
			env.app.customize = func(d *orchestrator.Deps) { d.Docker = fd }

			// skip-check: the model artifact does not exist in these fixtures
			code := env.run(append([]string{env.cfg, "--skip-check"}, tt.args...)...)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBuilds, fd.builds)
			assert.Equal(t, tt.wantRuns, fd.runs)
		})
	}
}

func TestRun_DockerRequiresEfConfig(t *testing.T) {
	env := setupApp(t)
	other := filepath.Join(env.dir, "edgeflow.config")
	require.NoError(t, os.WriteFile(other, []byte(`model="m.tflite"`+"\n"), 0644))
	fd := &fakeDocker{env: docker.Environment{DockerInstalled: true, ComposeInstalled: true, DockerRunning: true}}
	env.app.customize = func(d *orchestrator.Deps) { d.Docker = fd }

	assert.Equal(t, exitcode.Failure, env.run(other, "--docker"))
	assert.Zero(t, fd.runs)
}

func TestRun_CheckOnlyRealChain(t *testing.T) {
	env := setupApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "m.tflite"), []byte("tflite"), 0644))
	assert.Equal(t, exitcode.Success, env.run(env.cfg, "--check-only"))

	bad := filepath.Join(env.dir, "bad.ef")
	require.NoError(t, os.WriteFile(bad, []byte("model = \"m.tflite\"\nquantize = int4\n"), 0644))
	assert.Equal(t, exitcode.Failure, env.run(bad, "--check-only"))
	assert.Contains(t, env.stdout.String(), "schema")
}

func TestRun_ValidationFailureSkipsPipeline(t *testing.T) {
	env := setupApp(t)
	opt := &fakeOptimizer{}
	env.app.customize = func(d *orchestrator.Deps) {
		d.Pipeline = optimize.NewPipeline(opt, fakeBenchmarker{}, d.Log)
	}

	// m.tflite does not exist: the compatibility gate fails
	assert.Equal(t, exitcode.Failure, env.run(env.cfg))
	assert.Zero(t, opt.calls)
	assert.Contains(t, env.stdout.String(), "model file not found")
}

func TestRun_VerboseLogsLoadedConfig(t *testing.T) {
	env := setupApp(t)
	assert.Equal(t, exitcode.Success, env.run(env.cfg, "--check-only", "--skip-check", "--verbose"))
	assert.Contains(t, env.stderr.String(), "Loaded config")

	quiet := setupApp(t)
	assert.Equal(t, exitcode.Success, quiet.run(quiet.cfg, "--check-only", "--skip-check"))
	assert.NotContains(t, quiet.stderr.String(), "Loaded config")
}

func TestRun_KeyValueParserFallback(t *testing.T) {
	env := setupApp(t)
	t.Setenv("EDGEFLOW_PARSER", "kv")
	legacy := filepath.Join(env.dir, "legacy.ef")
	require.NoError(t, os.WriteFile(legacy, []byte("model_path = test_models/sample.tflite\n"), 0644))

	assert.Equal(t, exitcode.Success, env.run(legacy, "--check-only", "--skip-check", "-v"))
	assert.Contains(t, env.stderr.String(), "kv")
}

func TestRun_UsageAndPathErrors(t *testing.T) {
	env := setupApp(t)
	wrongExt := filepath.Join(env.dir, "model.txt")
	require.NoError(t, os.WriteFile(wrongExt, []byte("model=x"), 0644))

	assert.Equal(t, exitcode.Usage, env.run())
	assert.Equal(t, exitcode.Usage, env.run("--nope", env.cfg))
	assert.Equal(t, exitcode.Success, env.run("--help"))
	assert.Equal(t, exitcode.Success, env.run("--version"))
	assert.Equal(t, exitcode.Success, env.run("--help", "--bogus"))
	assert.Equal(t, exitcode.Success, env.run("--bogus", "--help"))
	assert.Equal(t, exitcode.Success, env.run("--version", "--bogus"))
	assert.Equal(t, exitcode.Failure, env.run(filepath.Join(env.dir, "missing.ef")))
	assert.Equal(t, exitcode.Failure, env.run(wrongExt))
	assert.Equal(t, exitcode.Failure, env.run(env.cfg, "--device-spec-file", filepath.Join(env.dir, "none.yaml")))
}

func TestRun_RecoversFromPanics(t *testing.T) {
	env := setupApp(t)
	env.app.parse = func([]string, io.Writer, io.Writer) (orchestrator.Invocation, bool, error) {
		panic("parser exploded")
	}
	assert.Equal(t, exitcode.Failure, env.run(env.cfg))
	assert.Contains(t, env.stderr.String(), "parser exploded")
}

func TestRun_ExecOptimizerIntegration(t *testing.T) {
	env := setupApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "m.tflite"), make([]byte, 8192), 0644))

	script := filepath.Join(env.dir, "fake-optimize")
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift ;;
  esac
  shift
done
head -c 2048 /dev/zero > "$out"
printf '{"output_path":"%s","quantization":"int8"}' "$out"
`), 0755))
	t.Setenv("EDGEFLOW_OPTIMIZER_CMD", script)

	code := env.run(env.cfg)
	require.Equal(t, exitcode.Success, code, env.stderr.String())
	assert.FileExists(t, filepath.Join(env.dir, "m_optimized.tflite"))

	data, err := os.ReadFile(env.report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "| Size (MB) | 0.01 | 0.00 |")
	assert.Contains(t, string(data), "- Size reduction: 75.0%")
}
