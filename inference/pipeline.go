// Package inference - Detection pipeline orchestration.
package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Pipeline sequences preprocessing, the engine call, decoding and
// suppression for one image at a time.
//
// A Pipeline holds no per-call state and is safe for concurrent use. It does
// not serialize calls into the engine; engines that cannot run concurrently
// must serialize themselves.
type Pipeline struct {
	engine Engine
	config Config
	logger *zap.Logger
	stats  *Stats
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig sets the default configuration used by Infer.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) {
		p.config = cfg
	}
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithStats records every invocation into stats.
func WithStats(stats *Stats) Option {
	return func(p *Pipeline) {
		p.stats = stats
	}
}

// NewPipeline creates a pipeline around an engine.
//
// Arguments:
//   - engine: The engine executing the detection network.
//   - opts: Optional configuration.
//
// Returns:
//   - *Pipeline: The pipeline.
//   - error: An error if the engine is nil or the configuration is invalid.
func NewPipeline(engine Engine, opts ...Option) (*Pipeline, error) {
	if engine == nil {
		return nil, errors.New("inference: nil engine")
	}

	p := &Pipeline{
		engine: engine,
		config: DefaultConfig(),
		logger: zap.NewNop(),
		stats:  NewStats(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.config.Validate(); err != nil {
		return nil, newFault(FaultConfig, "", err)
	}
	return p, nil
}

// Config returns the default configuration of the pipeline.
func (p *Pipeline) Config() Config {
	return p.config
}

// Stats returns the statistics the pipeline records into.
func (p *Pipeline) Stats() *Stats {
	return p.stats
}

// Infer runs the pipeline on src with the pipeline configuration.
//
// Arguments:
//   - ctx: The context of the invocation.
//   - src: The image source.
//
// Returns:
//   - *Result: The detections, empty when nothing was detected.
//   - error: A *Fault describing the failure. Never returned with a result.
func (p *Pipeline) Infer(ctx context.Context, src images.Source) (*Result, error) {
	return p.InferWith(ctx, src, p.config)
}

// InferWith runs the pipeline on src with a per-invocation configuration.
// Sources implementing images.Resampled are drawn with cfg.Resample.
//
// Arguments:
//   - ctx: The context of the invocation.
//   - src: The image source.
//   - cfg: The configuration of this invocation.
//
// Returns:
//   - *Result: The detections, empty when nothing was detected.
//   - error: A *Fault describing the failure. Never returned with a result.
func (p *Pipeline) InferWith(ctx context.Context, src images.Source, cfg Config) (*Result, error) {
	start := time.Now()

	result, err := p.run(ctx, src, cfg)
	if err != nil {
		var fault *Fault
		if !errors.As(err, &fault) {
			fault = newFault(FaultEngine, StageFailed, err)
		}
		p.stats.recordFailure(fault.Kind)
		p.logger.Warn("inference failed",
			zap.String("kind", string(fault.Kind)),
			zap.String("stage", string(fault.Stage)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(fault.Err),
		)
		return nil, fault
	}

	p.stats.recordSuccess(len(result.Candidates))
	p.logger.Debug("inference complete",
		zap.String("stage", string(StageDone)),
		zap.Int("detections", len(result.Candidates)),
		zap.Int("input_width", result.Width),
		zap.Int("input_height", result.Height),
		zap.String("latency_ms", result.LatencyMs()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// Infer runs a single detection with a one-off pipeline.
//
// Arguments:
//   - ctx: The context of the invocation.
//   - src: The image source.
//   - engine: The engine executing the detection network.
//   - cfg: The configuration of this invocation.
//
// Returns:
//   - *Result: The detections, empty when nothing was detected.
//   - error: A *Fault describing the failure.
func Infer(ctx context.Context, src images.Source, engine Engine, cfg Config) (*Result, error) {
	p, err := NewPipeline(engine, WithConfig(cfg))
	if err != nil {
		var fault *Fault
		if errors.As(err, &fault) {
			return nil, fault
		}
		return nil, newFault(FaultEngine, "", err)
	}
	return p.Infer(ctx, src)
}

func (p *Pipeline) run(ctx context.Context, src images.Source, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, newFault(FaultConfig, "", err)
	}

	if rs, ok := src.(images.Resampled); ok {
		resampler, err := images.NewResampler(cfg.Resample)
		if err != nil {
			return nil, newFault(FaultConfig, "", err)
		}
		src = rs.WithResampler(resampler)
	}

	stage := StageResizing
	if err := ctx.Err(); err != nil {
		return nil, newFault(FaultCanceled, stage, err)
	}

	input, err := Preprocess(src, cfg.TargetShortSide, cfg.Stride)
	if err != nil {
		return nil, newFault(FaultImageAccess, stage, err)
	}

	stage = StageInferring
	if err := ctx.Err(); err != nil {
		return nil, newFault(FaultCanceled, stage, err)
	}

	output, latency, err := p.runEngine(ctx, input)
	if err != nil {
		return nil, newFault(FaultEngine, stage, err)
	}
	p.stats.recordEngine(latency)

	stage = StageDecoding
	candidates, err := decodeAndRelease(output, input, cfg, p.logger)
	if err != nil {
		if errors.Is(err, postprocess.ErrShapeMismatch) {
			return nil, newFault(FaultShapeMismatch, stage, err)
		}
		return nil, newFault(FaultConfig, stage, err)
	}

	stage = StageSuppressing
	kept := postprocess.Suppress(candidates, cfg.NMS())
	if cfg.ClampToImage {
		kept = postprocess.ClampToImage(kept, src.Width(), src.Height())
	}

	return &Result{
		Candidates: kept,
		Latency:    latency,
		Width:      input.Width,
		Height:     input.Height,
		XRatio:     input.XRatio,
		YRatio:     input.YRatio,
	}, nil
}

// runEngine times the single engine call and turns panics and missing
// outputs into errors.
func (p *Pipeline) runEngine(ctx context.Context, input *Input) (output Output, latency time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()

	start := time.Now()
	output, err = p.engine.Run(ctx, input.Tensor)
	latency = time.Since(start)

	if err != nil {
		if output != nil {
			if derr := output.Destroy(); derr != nil {
				p.logger.Warn("failed to release engine output", zap.Error(derr))
			}
		}
		return nil, latency, errors.Wrap(err, "engine run")
	}
	if output == nil {
		return nil, latency, errors.New("engine returned no output")
	}
	return output, latency, nil
}

// decodeAndRelease decodes the output and releases it on every path.
func decodeAndRelease(output Output, input *Input, cfg Config, logger *zap.Logger) ([]postprocess.Candidate, error) {
	defer func() {
		if err := output.Destroy(); err != nil {
			logger.Warn("failed to release engine output", zap.Error(err))
		}
	}()

	return postprocess.Decode(output.Shape(), output.Data(), input.XRatio, input.YRatio, cfg.Decode())
}
