package report

import (
	"fmt"

	"github.com/lucasnoah/edgeflowc/internal/config"
	"github.com/lucasnoah/edgeflowc/internal/optimize"
	"gopkg.in/yaml.v3"
)

var optionHelp = map[string]string{
	"model":            "model artifact to optimize, relative to the config file",
	"model_path":       "legacy name for model",
	"output_path":      "where the optimized artifact is written",
	"quantize":         "weight precision: int8, uint8, float16, dynamic or none",
	"target_device":    "deployment target used for compatibility checks and estimates",
	"optimize_for":     "primary objective: latency, size, balanced, memory or power",
	"memory_limit":     "upper bound in MB for the deployed model",
	"batch_size":       "inference batch size",
	"input_shape":      "comma-separated input dimensions",
	"pruning":          "remove low-magnitude weights",
	"pruning_sparsity": "fraction of weights removed when pruning, in [0, 1)",
	"fusion":           "fuse adjacent operations",
	"buffer_size":      "runtime buffer size",
	"deploy_path":      "install location on the device",
}

// Explain prints the effective options as YAML with a note per known key.
func (r *Reporter) Explain(cfg *config.Config) error {
	if !r.explain {
		return nil
	}
	data, err := yaml.Marshal(cfg.Map())
	if err != nil {
		return fmt.Errorf("encoding config for explain: %w", err)
	}

	r.printf("%s\n", r.st.section.Render("Effective configuration"))
	r.printf("%s", data)
	for _, k := range cfg.Keys() {
		help, ok := optionHelp[k]
		if !ok {
			help = "not recognized; ignored"
		}
		r.printf("  %s %s\n", r.st.label.Render(k+":"), r.st.dim.Render(help))
	}
	return nil
}

// explainOptimization prints the optimizer's own explanations.
func (r *Reporter) explainOptimization(res *optimize.PipelineResult) {
	if !r.explain || res.Optimization == nil || len(res.Optimization.Explanations) == 0 {
		return
	}
	r.printf("%s\n", r.st.section.Render("Optimizer decisions"))
	for _, e := range res.Optimization.Explanations {
		r.printf("  - %s\n", e)
	}
}
