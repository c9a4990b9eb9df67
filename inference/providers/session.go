// Package providers - ONNX Runtime inference sessions.
package providers

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/inference"
)

var envMu sync.Mutex

// InitializeEnvironment loads the onnxruntime shared library and prepares the
// process-wide runtime environment. Calls after the first are no-ops.
//
// Arguments:
//   - libPath: The path to the onnxruntime shared library.
//
// Returns:
//   - error: An error if the library is missing or initialization fails.
func InitializeEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "initialize onnxruntime environment")
	}
	return nil
}

// DestroyEnvironment releases the process-wide runtime environment. Every
// Session must be closed first.
func DestroyEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Session runs a detection model through ONNX Runtime. It implements
// inference.Engine.
//
// The runtime allocates the output tensor on every call, so the model may
// accept any stride-aligned input size. Run calls are serialized.
type Session struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	config  Config
	logger  *zap.Logger
}

// NewSession creates a new ONNX detector session.
//
// Order of operations:
//  1. Configuration and library path checks.
//  2. Environment setup, once per process.
//  3. Session options: threading, graph optimization and execution provider.
//  4. Session creation with the configured input and output names.
//  5. Warm-up runs with a zero tensor.
//
// Arguments:
//   - cfg: The session configuration.
//   - logger: The logger. nil discards all output.
//
// Returns:
//   - *Session: The session. Close must be called to release it.
//   - error: An error if any step fails.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid provider config")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", cfg.ModelPath)
	}
	if err := InitializeEnvironment(cfg.libraryPath()); err != nil {
		return nil, err
	}

	options, err := newSessionOptions(cfg)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	if err := checkModelIO(cfg); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		options,
	)
	if err != nil {
		return nil, errors.Wrap(err, "create onnxruntime session")
	}

	s := &Session{session: session, config: cfg, logger: logger}
	logger.Info("onnxruntime session created",
		zap.String("model", cfg.ModelPath),
		zap.String("backend", string(cfg.Backend)),
		zap.String("input", cfg.InputName),
		zap.String("output", cfg.OutputName),
	)

	if err := s.warmup(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// checkModelIO verifies the model exposes the configured input and output.
func checkModelIO(cfg Config) error {
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return errors.Wrap(err, "read model inputs and outputs")
	}
	if !hasName(inputs, cfg.InputName) {
		return fmt.Errorf("model has no input named %q", cfg.InputName)
	}
	if !hasName(outputs, cfg.OutputName) {
		return fmt.Errorf("model has no output named %q", cfg.OutputName)
	}
	return nil
}

func hasName(infos []ort.InputOutputInfo, name string) bool {
	for _, info := range infos {
		if info.Name == name {
			return true
		}
	}
	return false
}

// warmup runs the configured number of zero-tensor inferences.
func (s *Session) warmup() error {
	if s.config.Warmup == 0 {
		return nil
	}
	zeros := tensor.New(tensor.WithShape(s.config.WarmupShape...), tensor.Of(tensor.Float32))

	start := time.Now()
	for i := 0; i < s.config.Warmup; i++ {
		output, err := s.Run(context.Background(), zeros)
		if err != nil {
			return errors.Wrapf(err, "warm-up run %d", i+1)
		}
		if err := output.Destroy(); err != nil {
			return errors.Wrap(err, "release warm-up output")
		}
	}
	s.logger.Info("onnxruntime session warmed up",
		zap.Int("runs", s.config.Warmup),
		zap.Ints("shape", s.config.WarmupShape),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Run executes the model on one input tensor.
//
// Arguments:
//   - ctx: Checked before the call. A running inference cannot be interrupted.
//   - input: A float32 [1, 3, H, W] tensor.
//
// Returns:
//   - inference.Output: The runtime-allocated output. The caller must Destroy it.
//   - error: An error if the input is invalid or execution fails.
func (s *Session) Run(ctx context.Context, input *tensor.Dense) (inference.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input == nil || input.Dtype() != tensor.Float32 {
		return nil, fmt.Errorf("input must be a float32 tensor")
	}
	data, ok := input.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("input must be a dense float32 tensor")
	}

	dims := input.Shape()
	shape := make([]int64, len(dims))
	for i, d := range dims {
		shape[i] = int64(d)
	}

	in, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}

	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("session is closed")
	}
	err = s.session.Run([]ort.Value{in}, outputs)
	s.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "run onnxruntime session")
	}

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
		return nil, fmt.Errorf("output %q is %T, expected a float32 tensor", s.config.OutputName, outputs[0])
	}
	return &tensorOutput{tensor: out}, nil
}

// Close releases the native session.
//
// Returns:
//   - error: An error if destroying the session fails.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return errors.Wrap(err, "destroy onnxruntime session")
	}
	return nil
}

// tensorOutput exposes a runtime-allocated tensor as an inference.Output.
type tensorOutput struct {
	tensor *ort.Tensor[float32]
	once   sync.Once
	err    error
}

func (o *tensorOutput) Shape() []int64 {
	return append([]int64(nil), o.tensor.GetShape()...)
}

func (o *tensorOutput) Data() []float32 {
	return o.tensor.GetData()
}

func (o *tensorOutput) Destroy() error {
	o.once.Do(func() {
		o.err = o.tensor.Destroy()
	})
	return o.err
}
