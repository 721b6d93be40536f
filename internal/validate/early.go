package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/lucasnoah/edgeflowc/internal/config"
)

// EarlyGate performs structural sanity checks that need no device knowledge
// or file system access.
type EarlyGate struct{}

func (EarlyGate) Name() string { return "early" }

func (EarlyGate) Check(_ context.Context, cfg *config.Config) Outcome {
	var issues []string

	for _, k := range cfg.Keys() {
		if strings.TrimSpace(k) == "" {
			issues = append(issues, "empty option name")
		}
	}

	key := OptModel
	if !cfg.Has(OptModel) && cfg.Has(OptModelPath) {
		key = OptModelPath
	}
	v, ok := cfg.Get(key)
	switch {
	case !ok:
		issues = append(issues, "missing required option 'model'")
	case v.Kind() != config.KindString:
		issues = append(issues, fmt.Sprintf("'%s' must be a string path", key))
	case strings.TrimSpace(v.String()) == "":
		issues = append(issues, fmt.Sprintf("'%s' must not be empty", key))
	default:
		if ext := modelExt(v.String()); !oneOf(ext, ModelExtensions) {
			issues = append(issues, fmt.Sprintf("unsupported model format %q (expected one of %s)", ext, strings.Join(ModelExtensions, " ")))
		}
	}

	if len(issues) > 0 {
		return Fail(issues...)
	}
	return Pass()
}
