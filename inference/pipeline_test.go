package inference

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/images"
)

// fakeOutput is an engine output that counts Destroy calls.
type fakeOutput struct {
	shape     []int64
	data      []float32
	destroyed atomic.Int32
}

func (o *fakeOutput) Shape() []int64  { return o.shape }
func (o *fakeOutput) Data() []float32 { return o.data }
func (o *fakeOutput) Destroy() error {
	o.destroyed.Add(1)
	return nil
}

// head builds a single-class [1, 5, n] output from (xc, yc, w, h, score) rows.
func head(anchors ...[5]float32) *fakeOutput {
	n := len(anchors)
	data := make([]float32, 5*n)
	for i, a := range anchors {
		for attr := 0; attr < 5; attr++ {
			data[attr*n+i] = a[attr]
		}
	}
	return &fakeOutput{shape: []int64{1, 5, int64(n)}, data: data}
}

// fakeEngine records calls and returns a fixed output or error.
type fakeEngine struct {
	output     *fakeOutput
	err        error
	panicValue any
	delay      time.Duration
	calls      atomic.Int32
	shapes     []tensor.Shape
	mu         sync.Mutex
}

func (e *fakeEngine) Run(_ context.Context, input *tensor.Dense) (Output, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.shapes = append(e.shapes, input.Shape().Clone())
	e.mu.Unlock()

	if e.panicValue != nil {
		panic(e.panicValue)
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.output == nil {
		return nil, e.err
	}
	return e.output, e.err
}

func newTestPipeline(t *testing.T, engine Engine, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(engine, opts...)
	require.NoError(t, err)
	return p
}

var landscape = patternSource{width: 1000, height: 500}

// TestInferDetectsInOriginalSpace runs the full pipeline on a 1000x500 image.
func TestInferDetectsInOriginalSpace(t *testing.T) {
	out := head(
		[5]float32{400, 200, 160, 80, 0.95},
		[5]float32{410, 200, 160, 80, 0.90}, // overlaps the first
		[5]float32{1200, 600, 80, 80, 0.85},
		[5]float32{50, 50, 10, 10, 0.40}, // below threshold
	)
	engine := &fakeEngine{output: out, delay: time.Millisecond}
	p := newTestPipeline(t, engine)

	result, err := p.Infer(context.Background(), landscape)
	require.NoError(t, err)

	require.Len(t, engine.shapes, 1)
	assert.Equal(t, tensor.Shape{1, 3, 800, 1600}, engine.shapes[0])

	require.Len(t, result.Candidates, 2)
	first := result.Candidates[0]
	assert.Equal(t, float32(0.95), first.Score)
	assert.InDelta(t, (400-80)*0.625, first.Box.X, 1e-4)
	assert.InDelta(t, (200-40)*0.625, first.Box.Y, 1e-4)
	assert.InDelta(t, 160*0.625, first.Box.W, 1e-4)
	assert.InDelta(t, 80*0.625, first.Box.H, 1e-4)
	assert.Equal(t, float32(0.85), result.Candidates[1].Score)

	assert.Equal(t, 1600, result.Width)
	assert.Equal(t, 800, result.Height)
	assert.GreaterOrEqual(t, result.Latency, time.Millisecond)
	assert.Equal(t, int32(1), out.destroyed.Load())
}

func TestInferEmptyResultIsNotAFailure(t *testing.T) {
	out := head([5]float32{10, 10, 5, 5, 0.1})
	p := newTestPipeline(t, &fakeEngine{output: out})

	result, err := p.Infer(context.Background(), landscape)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotNil(t, result.Candidates)
	assert.Empty(t, result.Candidates)
	assert.Equal(t, int32(1), out.destroyed.Load())
}

func TestInferEngineFailures(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
	}{
		{"Engine error", &fakeEngine{err: errors.New("device lost")}},
		{"Engine panic", &fakeEngine{panicValue: "segfault in provider"}},
		{"Nil output", &fakeEngine{}},
		{"Error with output", &fakeEngine{output: head(), err: errors.New("partial")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, tt.engine)

			result, err := p.Infer(context.Background(), landscape)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, ErrEngine)
			assert.NotErrorIs(t, err, ErrShapeMismatch)

			var fault *Fault
			require.ErrorAs(t, err, &fault)
			assert.Equal(t, StageInferring, fault.Stage)

			if tt.engine.output != nil {
				assert.Equal(t, int32(1), tt.engine.output.destroyed.Load())
			}
		})
	}
}

func TestInferShapeMismatchReleasesOutput(t *testing.T) {
	out := &fakeOutput{shape: []int64{1, 84, 8400}, data: make([]float32, 84*8400)}
	p := newTestPipeline(t, &fakeEngine{output: out})

	result, err := p.Infer(context.Background(), landscape)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, FaultShapeMismatch, kind)
	assert.Equal(t, int32(1), out.destroyed.Load())
}

func TestInferCanceledSkipsEngine(t *testing.T) {
	engine := &fakeEngine{output: head()}
	p := newTestPipeline(t, engine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Infer(ctx, landscape)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, engine.calls.Load())
}

func TestInferImageAccessFault(t *testing.T) {
	engine := &fakeEngine{output: head()}
	p := newTestPipeline(t, engine)

	for _, src := range []images.Source{
		patternSource{width: 100, height: 0},
		patternSource{width: 64, height: 32, err: errors.New("read failed")},
	} {
		result, err := p.Infer(context.Background(), src)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrImageAccess)
	}
	assert.Zero(t, engine.calls.Load())
}

func TestInferWithInvalidConfig(t *testing.T) {
	engine := &fakeEngine{output: head()}
	p := newTestPipeline(t, engine)

	cfg := DefaultConfig()
	cfg.IoUThreshold = 1.5

	result, err := p.InferWith(context.Background(), landscape, cfg)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Zero(t, engine.calls.Load())
}

func TestInferWithOverrides(t *testing.T) {
	anchors := [][5]float32{
		{400, 200, 160, 80, 0.95},
		{420, 200, 160, 80, 0.70},
		{-40, 400, 160, 80, 0.90},
	}

	cfg := DefaultConfig()
	cfg.ConfidenceThreshold = 0.6
	cfg.ClampToImage = true

	p := newTestPipeline(t, &fakeEngine{output: head(anchors...)})
	result, err := p.InferWith(context.Background(), landscape, cfg)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2, "0.70 overlaps 0.95")

	clamped := result.Candidates[1].Box
	assert.Equal(t, float32(0), clamped.X)
	assert.InDelta(t, 40*0.625, clamped.W, 1e-4)

	cfg.IoUThreshold = 0.95
	p = newTestPipeline(t, &fakeEngine{output: head(anchors...)})
	result, err = p.InferWith(context.Background(), landscape, cfg)
	require.NoError(t, err)
	assert.Len(t, result.Candidates, 3)
}

// resamplingSource records the resamplers the pipeline draws it with.
type resamplingSource struct {
	patternSource
	used *[]images.Resampler
}

func (s resamplingSource) WithResampler(r images.Resampler) images.Source {
	*s.used = append(*s.used, r)
	return s.patternSource
}

func TestInferWithAppliesResample(t *testing.T) {
	var used []images.Resampler
	src := resamplingSource{patternSource: landscape, used: &used}
	p := newTestPipeline(t, &fakeEngine{output: head([5]float32{400, 200, 160, 80, 0.95})})

	_, err := p.Infer(context.Background(), src)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Resample = "nearest"
	_, err = p.InferWith(context.Background(), src, cfg)
	require.NoError(t, err)

	bilinear, err := images.NewResampler(images.DefaultResampler)
	require.NoError(t, err)
	nearest, err := images.NewResampler("nearest")
	require.NoError(t, err)
	require.Len(t, used, 2)
	assert.Equal(t, bilinear, used[0])
	assert.Equal(t, nearest, used[1])
}

func TestInferPackageEntryPoint(t *testing.T) {
	out := head([5]float32{400, 200, 160, 80, 0.95})

	result, err := Infer(context.Background(), landscape, &fakeEngine{output: out}, DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, result.Candidates, 1)

	_, err = Infer(context.Background(), landscape, nil, DefaultConfig())
	assert.Error(t, err)

	bad := DefaultConfig()
	bad.Classes = nil
	_, err = Infer(context.Background(), landscape, &fakeEngine{output: out}, bad)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewPipelineRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stride = 0

	p, err := NewPipeline(&fakeEngine{}, WithConfig(cfg))
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLatencyMsFormat(t *testing.T) {
	r := &Result{Latency: 12345678 * time.Nanosecond}
	assert.Equal(t, "12.35", r.LatencyMs())

	r.Latency = 0
	assert.Equal(t, "0.00", r.LatencyMs())

	out := head([5]float32{400, 200, 160, 80, 0.95})
	result, err := Infer(context.Background(), landscape, &fakeEngine{output: out}, DefaultConfig())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d+\.\d{2}$`), result.LatencyMs())
}

func TestInferRecordsStatsAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	stats := NewStats()

	ok := newTestPipeline(t, &fakeEngine{output: head([5]float32{400, 200, 160, 80, 0.95})},
		WithStats(stats), WithLogger(zap.New(core)))
	failing := newTestPipeline(t, &fakeEngine{err: errors.New("boom")},
		WithStats(stats), WithLogger(zap.New(core)))

	_, err := ok.Infer(context.Background(), landscape)
	require.NoError(t, err)
	_, err = failing.Infer(context.Background(), landscape)
	require.Error(t, err)

	snap := stats.Snapshot()
	assert.Equal(t, int64(2), snap.Runs)
	assert.Equal(t, int64(1), snap.Successes)
	assert.Equal(t, int64(1), snap.Detections)
	assert.Equal(t, int64(1), snap.Failures[FaultEngine])
	assert.Equal(t, int64(1), snap.EngineCalls)

	done := logs.FilterMessage("inference complete").FilterLevelExact(zapcore.DebugLevel).All()
	require.Len(t, done, 1)
	assert.Equal(t, string(StageDone), done[0].ContextMap()["stage"])
	warn := logs.FilterMessage("inference failed").FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warn, 1)
	assert.Equal(t, "engine", warn[0].ContextMap()["kind"])

	stats.Reset()
	assert.Zero(t, stats.Snapshot().Runs)
}

func TestPipelineConcurrentUse(t *testing.T) {
	out := head([5]float32{400, 200, 160, 80, 0.95})
	engine := &fakeEngine{output: out}
	p := newTestPipeline(t, engine)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.Infer(context.Background(), patternSource{width: 320, height: 240})
			assert.NoError(t, err)
			assert.Len(t, result.Candidates, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), engine.calls.Load())
	assert.Equal(t, int32(8), out.destroyed.Load())
	assert.Equal(t, int64(8), p.Stats().Snapshot().Successes)
}

func TestStatsSnapshotAverages(t *testing.T) {
	s := NewStats()
	assert.Zero(t, s.Snapshot().AverageTimeMs)

	s.recordEngine(10 * time.Millisecond)
	s.recordEngine(30 * time.Millisecond)
	snap := s.Snapshot()

	assert.InDelta(t, 40.0, snap.TotalTimeMs, 1e-9)
	assert.InDelta(t, 10.0, snap.MinTimeMs, 1e-9)
	assert.InDelta(t, 30.0, snap.MaxTimeMs, 1e-9)
	assert.InDelta(t, 20.0, snap.AverageTimeMs, 1e-9)
	assert.InDelta(t, 50.0, snap.ThroughputFPS, 1e-9)
}
