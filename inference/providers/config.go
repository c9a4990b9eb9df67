// Package providers - ONNX Runtime engine configuration.
package providers

import (
	"fmt"
	"sort"
	"strings"
)

// Backend names an ONNX Runtime execution provider.
type Backend string

const (
	// CPUBackend runs on the default CPU execution provider.
	CPUBackend Backend = "cpu"
	// CoreMLBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLBackend Backend = "coreml"
	// CUDABackend uses NVIDIA CUDA for GPU acceleration.
	CUDABackend Backend = "cuda"
	// OpenVINOBackend uses Intel OpenVINO for inference optimization.
	OpenVINOBackend Backend = "openvino"
)

var backends = map[Backend]struct{}{
	CPUBackend:      {},
	CoreMLBackend:   {},
	CUDABackend:     {},
	OpenVINOBackend: {},
}

// ParseBackend resolves a backend name, case-insensitively. An empty name
// selects the CPU backend.
//
// Arguments:
//   - name: The backend name.
//
// Returns:
//   - Backend: The backend.
//   - error: An error if the name is unknown.
func ParseBackend(name string) (Backend, error) {
	if name == "" {
		return CPUBackend, nil
	}
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := backends[b]; !ok {
		return "", fmt.Errorf("unknown backend %q, expected one of %v", name, Backends())
	}
	return b, nil
}

// Backends returns the supported backend names in sorted order.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for b := range backends {
		names = append(names, string(b))
	}
	sort.Strings(names)
	return names
}

// Config represents the configuration of an ONNX Runtime detection session.
type Config struct {
	// ModelPath specifies the path to the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`

	// LibraryPath is the onnxruntime shared library. Empty uses GetSharedLibPath.
	LibraryPath string `json:"library_path" yaml:"library_path"`

	// Backend specifies the execution provider.
	Backend Backend `json:"backend" yaml:"backend"`

	// InputName is the name of the [1, 3, H, W] image input of the model.
	InputName string `json:"input_name" yaml:"input_name"`

	// OutputName is the name of the detection head output of the model.
	OutputName string `json:"output_name" yaml:"output_name"`

	// IntraOpThreads sets threads for parallelizing ops (0 = runtime default).
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`

	// InterOpThreads sets threads for parallelizing independent ops (0 = runtime default).
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`

	// GraphOptimization is one of disable, basic, extended or all.
	GraphOptimization string `json:"graph_optimization" yaml:"graph_optimization"`

	// CUDA holds the options of the cuda backend.
	CUDA CUDAOptions `json:"cuda" yaml:"cuda"`

	// OpenVINO holds the options of the openvino backend.
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`

	// CoreML holds the options of the coreml backend.
	CoreML CoreMLOptions `json:"coreml" yaml:"coreml"`

	// Warmup defines how many inference runs to perform during initialization.
	Warmup int `json:"warmup" yaml:"warmup"`

	// WarmupShape is the input shape of the warm-up runs.
	WarmupShape []int `json:"warmup_shape" yaml:"warmup_shape"`
}

// DefaultConfig returns a CPU configuration for a single-output detector.
//
// Returns:
//   - Config: Default configuration. ModelPath must still be set.
func DefaultConfig() Config {
	return Config{
		Backend:           CPUBackend,
		InputName:         "images",
		OutputName:        "output0",
		GraphOptimization: "extended",
		Warmup:            1,
		WarmupShape:       []int{1, 3, 800, 800},
	}
}

// Validate checks the configuration before any native resources are touched.
//
// Returns:
//   - error: A description of the first invalid field, nil if valid.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("model_path is required")
	}
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if c.InputName == "" || c.OutputName == "" {
		return fmt.Errorf("input_name and output_name are required")
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return fmt.Errorf("thread counts must not be negative")
	}
	if _, err := ParseGraphOptimization(c.GraphOptimization); err != nil {
		return err
	}
	if c.Warmup < 0 {
		return fmt.Errorf("warmup must not be negative, got %d", c.Warmup)
	}
	if c.Warmup > 0 {
		if len(c.WarmupShape) != 4 || c.WarmupShape[0] != 1 || c.WarmupShape[1] != 3 {
			return fmt.Errorf("warmup_shape must be [1, 3, H, W], got %v", c.WarmupShape)
		}
		if c.WarmupShape[2] <= 0 || c.WarmupShape[3] <= 0 {
			return fmt.Errorf("warmup_shape must have positive height and width, got %v", c.WarmupShape)
		}
	}
	return nil
}

// libraryPath returns the configured shared library or the platform default.
func (c Config) libraryPath() string {
	if c.LibraryPath != "" {
		return c.LibraryPath
	}
	return GetSharedLibPath()
}
