// Package estimate implements the fast-compile path: heuristic size,
// latency, memory and power estimates without running the optimizer.
package estimate

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/lucasnoah/edgeflowc/internal/config"
	"github.com/lucasnoah/edgeflowc/internal/exitcode"
	"go.uber.org/zap"
)

// DefaultModelSizeMB is assumed when the model file cannot be found.
const DefaultModelSizeMB = 10.0

const (
	bytesPerMB = 1024 * 1024
	// msPerMB is the baseline inference cost on a device of relative speed 1.
	msPerMB = 1.5
	// constrainedMemoryMB marks devices where unquantized models are a risk.
	constrainedMemoryMB = 1024
)

var sizeFactors = map[string]float64{
	"int8":    0.25,
	"uint8":   0.25,
	"float16": 0.5,
	"dynamic": 0.3,
	"none":    1.0,
}

var latencyFactors = map[string]float64{
	"int8":    0.6,
	"uint8":   0.6,
	"float16": 0.8,
	"dynamic": 0.75,
	"none":    1.0,
}

// PerformanceEstimate holds the heuristic metrics for a viable config.
type PerformanceEstimate struct {
	ModelSizeMB        float64 `json:"model_size_mb"`
	InferenceTimeMs    float64 `json:"inference_time_ms"`
	MemoryUsageMB      float64 `json:"memory_usage_mb"`
	PowerConsumptionMW float64 `json:"power_consumption_mw"`
}

// FastCompileResult is the outcome of the fast-compile path. Estimate is set
// only when Success is true.
type FastCompileResult struct {
	Success     bool                 `json:"success"`
	CompileTime time.Duration        `json:"compile_time"`
	Errors      []string             `json:"errors,omitempty"`
	Warnings    []string             `json:"warnings,omitempty"`
	Estimate    *PerformanceEstimate `json:"estimate,omitempty"`
}

// ExitCode is 0 on success regardless of warnings, else 1.
func (r *FastCompileResult) ExitCode() int {
	if r.Success {
		return exitcode.Success
	}
	return exitcode.Failure
}

// Estimator produces fast-compile results.
type Estimator struct {
	devices *config.DeviceCatalog
	stat    func(string) (os.FileInfo, error)
	log     *zap.Logger
}

// New creates an estimator. A nil catalog uses the built-in devices.
func New(devices *config.DeviceCatalog, log *zap.Logger) *Estimator {
	if devices == nil {
		devices = config.DefaultDevices()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Estimator{devices: devices, stat: os.Stat, log: log}
}

// Estimate checks viability and, when viable, estimates performance.
func (e *Estimator) Estimate(_ context.Context, cfg *config.Config) (res *FastCompileResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = &FastCompileResult{Errors: []string{fmt.Sprintf("estimator panic: %v", r)}}
		}
		res.CompileTime = time.Since(start)
	}()

	res = &FastCompileResult{}
	fail := func(format string, args ...any) { res.Errors = append(res.Errors, fmt.Sprintf(format, args...)) }
	warn := func(format string, args ...any) { res.Warnings = append(res.Warnings, fmt.Sprintf(format, args...)) }

	model := cfg.Model()
	if strings.TrimSpace(model) == "" {
		fail("missing required option 'model'")
	}

	device, ok := e.devices.Lookup(cfg.TargetDevice())
	if !ok {
		fail("unknown target device %q", cfg.TargetDevice())
		return res
	}

	quant := strings.ToLower(strings.TrimSpace(cfg.String("quantize")))
	if quant == "" {
		quant = "none"
	}
	sizeFactor, known := sizeFactors[quant]
	switch {
	case !known:
		fail("unsupported quantization mode %q", quant)
	case quant == "float16" && !device.SupportsFP16:
		fail("float16 quantization is not supported on %s", device.Name)
	case (quant == "int8" || quant == "uint8") && !device.SupportsInt8:
		fail("%s quantization is not supported on %s", quant, device.Name)
	}

	constrained := device.Microcontroller || device.MemoryMB <= constrainedMemoryMB
	if quant == "none" && constrained {
		warn("no quantization on constrained device %s; consider int8", device.Name)
	}

	batch := int64(1)
	if v, ok := cfg.Get("batch_size"); ok {
		if n, isInt := v.Int(); isInt && n > 0 {
			batch = n
		}
	}
	if batch > 1 && device.Microcontroller {
		warn("batch_size %d on microcontroller %s; batch 1 is recommended", batch, device.Name)
	}

	pruning := false
	if v, ok := cfg.Get("pruning"); ok {
		pruning, _ = v.Bool()
	}
	sparsity := 0.0
	if v, ok := cfg.Get("pruning_sparsity"); ok {
		sparsity, _ = v.Float()
	} else if pruning {
		warn("pruning enabled without pruning_sparsity; no size reduction assumed")
	}

	if len(res.Errors) > 0 {
		return res
	}

	sizeMB := DefaultModelSizeMB
	if info, err := e.stat(cfg.ResolveModelPath()); err == nil && info.Mode().IsRegular() {
		sizeMB = float64(info.Size()) / bytesPerMB
	} else {
		warn("model file %s not found; assuming %.0f MB", model, DefaultModelSizeMB)
	}

	sizeMB *= sizeFactor
	if pruning && sparsity > 0 && sparsity < 1 {
		sizeMB *= 1 - sparsity
	}

	est := &PerformanceEstimate{
		ModelSizeMB:     round2(sizeMB),
		InferenceTimeMs: round2(sizeMB * msPerMB * latencyFactors[quant] / device.RelativeSpeed * float64(batch)),
		MemoryUsageMB:   round2(sizeMB*1.5 + device.RuntimeOverheadMB),
	}
	utilisation := 0.5 + 0.5*math.Min(1, est.MemoryUsageMB/device.MemoryMB)
	est.PowerConsumptionMW = round2(device.BasePowerMW * utilisation)

	if est.MemoryUsageMB > device.MemoryMB {
		fail("estimated memory %.2f MB exceeds %s memory of %.0f MB", est.MemoryUsageMB, device.Name, device.MemoryMB)
	}
	if v, ok := cfg.Get("memory_limit"); ok {
		if limit, isNum := v.Float(); isNum && limit > 0 && est.MemoryUsageMB > limit {
			fail("estimated memory %.2f MB exceeds memory_limit of %g MB", est.MemoryUsageMB, limit)
		}
	}
	if len(res.Errors) > 0 {
		return res
	}

	res.Success = true
	res.Estimate = est
	e.log.Debug("fast compile estimate",
		zap.String("device", device.Name),
		zap.Float64("size_mb", est.ModelSizeMB),
		zap.Float64("latency_ms", est.InferenceTimeMs))
	return res
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
