// Package validate runs the ordered validation gates a config must pass
// before any optimization work starts.
package validate

import (
	"context"
	"fmt"

	"github.com/lucasnoah/edgeflowc/internal/config"
	"go.uber.org/zap"
)

// Outcome is the verdict of a single gate. Only OK drives control flow; a
// passing gate may still carry advisory issues.
type Outcome struct {
	OK     bool
	Issues []string
}

// Pass returns a passing outcome with optional advisory issues.
func Pass(issues ...string) Outcome { return Outcome{OK: true, Issues: issues} }

// Fail returns a failing outcome.
func Fail(issues ...string) Outcome { return Outcome{OK: false, Issues: issues} }

// Gate is one validation step. Implementations must not mutate cfg.
type Gate interface {
	Name() string
	Check(ctx context.Context, cfg *config.Config) Outcome
}

// GateCheckResult records one executed gate.
type GateCheckResult struct {
	Gate   string   `json:"gate"`
	Passed bool     `json:"passed"`
	Issues []string `json:"issues,omitempty"`
}

// Result is the outcome of a chain run. Gate and Issues name the failing gate
// when Passed is false.
type Result struct {
	Passed bool              `json:"passed"`
	Gate   string            `json:"gate,omitempty"`
	Issues []string          `json:"issues,omitempty"`
	Checks []GateCheckResult `json:"checks"`
}

// Chain runs gates strictly in order and stops at the first failure.
type Chain struct {
	gates []Gate
	log   *zap.Logger
}

// NewChain creates a chain over gates in the given order.
func NewChain(log *zap.Logger, gates ...Gate) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{gates: gates, log: log}
}

// DefaultChain returns the early, schema and compatibility gates against
// devices.
func DefaultChain(devices *config.DeviceCatalog, log *zap.Logger) *Chain {
	if devices == nil {
		devices = config.DefaultDevices()
	}
	return NewChain(log,
		EarlyGate{},
		SchemaGate{Devices: devices},
		CompatibilityGate{Devices: devices},
	)
}

// Gates returns the gate names in execution order.
func (c *Chain) Gates() []string {
	names := make([]string, len(c.gates))
	for i, g := range c.gates {
		names[i] = g.Name()
	}
	return names
}

// Run executes the chain against cfg.
func (c *Chain) Run(ctx context.Context, cfg *config.Config) *Result {
	res := &Result{Passed: true}

	for _, g := range c.gates {
		out := runGate(ctx, g, cfg)
		res.Checks = append(res.Checks, GateCheckResult{Gate: g.Name(), Passed: out.OK, Issues: out.Issues})

		if !out.OK {
			res.Passed = false
			res.Gate = g.Name()
			res.Issues = out.Issues
			for _, issue := range out.Issues {
				c.log.Error("validation issue", zap.String("gate", g.Name()), zap.String("issue", issue))
			}
			return res
		}
		for _, issue := range out.Issues {
			c.log.Warn("validation advisory", zap.String("gate", g.Name()), zap.String("issue", issue))
		}
		c.log.Debug("gate passed", zap.String("gate", g.Name()))
	}
	return res
}

func runGate(ctx context.Context, g Gate, cfg *config.Config) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Fail(fmt.Sprintf("%s gate panicked: %v", g.Name(), r))
		}
	}()
	return g.Check(ctx, cfg)
}
