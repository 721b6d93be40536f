package validate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lucasnoah/edgeflowc/internal/config"
)

const bytesPerMB = 1024 * 1024

// CompatibilityGate checks the model artifact against the requested options
// on the target device.
type CompatibilityGate struct {
	Devices *config.DeviceCatalog
	// Stat defaults to os.Stat.
	Stat func(string) (os.FileInfo, error)
}

func (CompatibilityGate) Name() string { return "compatibility" }

func (g CompatibilityGate) Check(_ context.Context, cfg *config.Config) Outcome {
	devices := g.Devices
	if devices == nil {
		devices = config.DefaultDevices()
	}
	stat := g.Stat
	if stat == nil {
		stat = os.Stat
	}

	device, ok := devices.Lookup(cfg.TargetDevice())
	if !ok {
		return Fail(fmt.Sprintf("unknown target device %q", cfg.TargetDevice()))
	}

	var fatal, advisory []string
	model := cfg.ResolveModelPath()
	quant := strings.ToLower(cfg.String(OptQuantize))

	if ext := modelExt(model); !device.SupportsFormat(ext) {
		fatal = append(fatal, fmt.Sprintf("model format %q is not supported on %s (supported: %s)", ext, device.Name, strings.Join(device.Formats, ", ")))
	}
	if quant == "float16" && !device.SupportsFP16 {
		fatal = append(fatal, fmt.Sprintf("float16 quantization is not supported on %s", device.Name))
	}
	if (quant == "int8" || quant == "uint8") && !device.SupportsInt8 {
		fatal = append(fatal, fmt.Sprintf("%s quantization is not supported on %s", quant, device.Name))
	}
	if quant == "int8" && device.GPU {
		advisory = append(advisory, fmt.Sprintf("int8 on GPU target %s may be slower than float16", device.Name))
	}

	info, err := stat(model)
	switch {
	case err != nil:
		fatal = append(fatal, fmt.Sprintf("model file not found: %s", model))
	case !info.Mode().IsRegular():
		fatal = append(fatal, fmt.Sprintf("model path is not a regular file: %s", model))
	default:
		sizeMB := float64(info.Size()) / bytesPerMB
		if sizeMB > device.MemoryMB {
			fatal = append(fatal, fmt.Sprintf("model size %.2f MB exceeds %s memory of %.0f MB", sizeMB, device.Name, device.MemoryMB))
		}
		if v, ok := cfg.Get(OptMemoryLimit); ok {
			if limit, isNum := v.Float(); isNum && limit > 0 && sizeMB > limit {
				fatal = append(fatal, fmt.Sprintf("model size %.2f MB exceeds memory_limit of %g MB", sizeMB, limit))
			}
		}
	}

	if len(fatal) > 0 {
		return Fail(append(fatal, advisory...)...)
	}
	return Pass(advisory...)
}
