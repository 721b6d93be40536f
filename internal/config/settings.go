package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix scopes the environment variables read into Settings.
const EnvPrefix = "EDGEFLOW_"

// Settings is process-level configuration taken from the environment. It is
// separate from the .ef file, which describes the deployment itself.
type Settings struct {
	Parser       string `koanf:"parser"`
	OptimizerCmd string `koanf:"optimizer_cmd"`
	BenchmarkCmd string `koanf:"benchmark_cmd"`
	DockerImage  string `koanf:"docker_image"`
	Dockerfile   string `koanf:"dockerfile"`
	OutputDir    string `koanf:"output_dir"`
	ReportPath   string `koanf:"report_path"`
	HistoryDSN   string `koanf:"history_dsn"`
	MetricsFile  string `koanf:"metrics_file"`
	LogFormat    string `koanf:"log_format"`
}

// DefaultSettings returns the settings used when nothing is overridden.
func DefaultSettings() Settings {
	s := Settings{}
	applySettingsDefaults(&s)
	return s
}

// LoadSettings reads EDGEFLOW_* variables, e.g. EDGEFLOW_REPORT_PATH ->
// report_path, and fills defaults for anything unset.
func LoadSettings() (Settings, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Settings{}, fmt.Errorf("loading environment settings: %w", err)
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return Settings{}, fmt.Errorf("decoding environment settings: %w", err)
	}
	applySettingsDefaults(&s)
	return s, nil
}

func applySettingsDefaults(s *Settings) {
	if s.Parser == "" {
		s.Parser = LoaderHCL
	}
	if s.OptimizerCmd == "" {
		s.OptimizerCmd = "edgeflow-optimize"
	}
	if s.DockerImage == "" {
		s.DockerImage = "edgeflow:latest"
	}
	if s.Dockerfile == "" {
		s.Dockerfile = "Dockerfile"
	}
	if s.OutputDir == "" {
		s.OutputDir = "outputs"
	}
	if s.ReportPath == "" {
		s.ReportPath = "report.md"
	}
	if s.LogFormat == "" {
		s.LogFormat = "console"
	}
}
