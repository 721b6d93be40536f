package validate

import (
	"path/filepath"
	"strings"
)

// Option names understood by the gates and the optimizer.
const (
	OptModel           = "model"
	OptModelPath       = "model_path"
	OptOutputPath      = "output_path"
	OptQuantize        = "quantize"
	OptTargetDevice    = "target_device"
	OptOptimizeFor     = "optimize_for"
	OptMemoryLimit     = "memory_limit"
	OptBatchSize       = "batch_size"
	OptInputShape      = "input_shape"
	OptPruning         = "pruning"
	OptPruningSparsity = "pruning_sparsity"
	OptFusion          = "fusion"
	OptBufferSize      = "buffer_size"
	OptDeployPath      = "deploy_path"
)

var knownOptions = map[string]bool{
	OptModel: true, OptModelPath: true, OptOutputPath: true, OptQuantize: true,
	OptTargetDevice: true, OptOptimizeFor: true, OptMemoryLimit: true,
	OptBatchSize: true, OptInputShape: true, OptPruning: true,
	OptPruningSparsity: true, OptFusion: true, OptBufferSize: true,
	OptDeployPath: true,
}

// QuantizeModes are the accepted quantize values.
var QuantizeModes = []string{"int8", "uint8", "float16", "dynamic", "none"}

// OptimizeTargets are the accepted optimize_for values.
var OptimizeTargets = []string{"latency", "size", "balanced", "memory", "power"}

// ModelExtensions are the accepted model artifact suffixes.
var ModelExtensions = []string{".tflite", ".onnx", ".h5", ".pb", ".pt", ".pth", ".keras"}

// IsKnownOption reports whether key is a recognized option name.
func IsKnownOption(key string) bool { return knownOptions[key] }

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func modelExt(model string) string {
	return strings.ToLower(filepath.Ext(model))
}
