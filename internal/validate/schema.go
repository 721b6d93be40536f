package validate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasnoah/edgeflowc/internal/config"
)

// SchemaGate checks each known option's type and range.
type SchemaGate struct {
	Devices *config.DeviceCatalog
}

func (SchemaGate) Name() string { return "schema" }

func (g SchemaGate) Check(_ context.Context, cfg *config.Config) Outcome {
	devices := g.Devices
	if devices == nil {
		devices = config.DefaultDevices()
	}

	var fatal, advisory []string
	add := func(format string, args ...any) { fatal = append(fatal, fmt.Sprintf(format, args...)) }

	if v, ok := cfg.Get(OptQuantize); ok && !oneOf(v.String(), QuantizeModes) {
		add("quantize: %q is not one of %s", v.String(), strings.Join(QuantizeModes, ", "))
	}
	if v, ok := cfg.Get(OptTargetDevice); ok {
		if _, known := devices.Lookup(v.String()); !known {
			add("target_device: unknown device %q (known: %s)", v.String(), strings.Join(devices.Names(), ", "))
		}
	}
	if v, ok := cfg.Get(OptOptimizeFor); ok && !oneOf(v.String(), OptimizeTargets) {
		add("optimize_for: %q is not one of %s", v.String(), strings.Join(OptimizeTargets, ", "))
	}
	if v, ok := cfg.Get(OptMemoryLimit); ok {
		if f, isNum := v.Float(); !isNum || f <= 0 {
			add("memory_limit: must be a positive number of MB, got %q", v.String())
		}
	}
	for _, key := range []string{OptBatchSize, OptBufferSize} {
		if v, ok := cfg.Get(key); ok {
			if n, isInt := v.Int(); !isInt || n <= 0 {
				add("%s: must be a positive integer, got %q", key, v.String())
			}
		}
	}
	if v, ok := cfg.Get(OptInputShape); ok {
		if _, err := ParseShape(v.String()); err != nil {
			add("input_shape: %v", err)
		}
	}
	for _, key := range []string{OptPruning, OptFusion} {
		if v, ok := cfg.Get(key); ok {
			if _, isBool := v.Bool(); !isBool {
				add("%s: must be true or false, got %q", key, v.String())
			}
		}
	}
	if v, ok := cfg.Get(OptPruningSparsity); ok {
		if f, isNum := v.Float(); !isNum || f < 0 || f >= 1 {
			add("pruning_sparsity: must be in [0, 1), got %q", v.String())
		}
	}
	if v, ok := cfg.Get(OptDeployPath); ok && strings.TrimSpace(v.String()) == "" {
		add("deploy_path: must not be empty")
	}

	for _, k := range cfg.Keys() {
		if !IsKnownOption(k) {
			advisory = append(advisory, fmt.Sprintf("unknown option %q ignored", k))
		}
	}

	if len(fatal) > 0 {
		return Fail(append(fatal, advisory...)...)
	}
	return Pass(advisory...)
}

// ParseShape parses a comma-separated list of positive dimensions.
func ParseShape(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	dims := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%q is not a comma-separated list of positive integers", s)
		}
		dims = append(dims, n)
	}
	return dims, nil
}
