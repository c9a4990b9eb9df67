// Package providers - Session options and graph optimization.
package providers

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var graphOptimizationLevels = map[string]ort.GraphOptimizationLevel{
	"disable":  ort.GraphOptimizationLevelDisableAll,
	"basic":    ort.GraphOptimizationLevelEnableBasic,
	"extended": ort.GraphOptimizationLevelEnableExtended,
	"all":      ort.GraphOptimizationLevelEnableAll,
}

// ParseGraphOptimization resolves a graph optimization level name. An empty
// name selects extended optimization.
//
// Arguments:
//   - name: One of disable, basic, extended or all.
//
// Returns:
//   - ort.GraphOptimizationLevel: The runtime level.
//   - error: An error if the name is unknown.
func ParseGraphOptimization(name string) (ort.GraphOptimizationLevel, error) {
	if name == "" {
		return ort.GraphOptimizationLevelEnableExtended, nil
	}
	level, ok := graphOptimizationLevels[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown graph_optimization %q, expected disable, basic, extended or all", name)
	}
	return level, nil
}

// newSessionOptions builds session options for the configuration: threading,
// graph optimization and the execution provider.
//
// The caller must Destroy the returned options.
func newSessionOptions(c Config) (*ort.SessionOptions, error) {
	level, err := ParseGraphOptimization(c.GraphOptimization)
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "create session options")
	}

	if err := configureSessionOptions(options, c, level); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func configureSessionOptions(options *ort.SessionOptions, c Config, level ort.GraphOptimizationLevel) error {
	if c.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(c.IntraOpThreads); err != nil {
			return errors.Wrap(err, "set intra-op threads")
		}
	}
	if c.InterOpThreads > 0 {
		if err := options.SetInterOpNumThreads(c.InterOpThreads); err != nil {
			return errors.Wrap(err, "set inter-op threads")
		}
	}
	if err := options.SetGraphOptimizationLevel(level); err != nil {
		return errors.Wrap(err, "set graph optimization level")
	}

	switch c.Backend {
	case CPUBackend, "":
		return nil
	case CoreMLBackend:
		return appendCoreML(options, c.CoreML)
	case CUDABackend:
		return appendCUDA(options, c.CUDA)
	case OpenVINOBackend:
		return appendOpenVINO(options, c.OpenVINO)
	default:
		return fmt.Errorf("no matching provider backend registered: %s", c.Backend)
	}
}
