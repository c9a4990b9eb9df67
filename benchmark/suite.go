package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/util"
)

// Suite manages and executes benchmark scenarios
type Suite struct {
	engine    inference.Engine
	outputDir string
	logger    *zap.Logger
	mu        sync.RWMutex
	corpus    []image.Image
	scenarios []Scenario
	results   []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - engine: The engine every scenario runs against.
//   - outputDir: Where SaveResults writes the result files.
//   - logger: The logger. nil disables logging.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(engine inference.Engine, outputDir string, logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{
		engine:    engine,
		outputDir: outputDir,
		logger:    logger,
	}
}

// LoadCorpus decodes a single image file or every image in a directory.
// Files that fail to decode are skipped.
func (bs *Suite) LoadCorpus(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "failed to stat image path")
	}

	var files []util.ImageFile
	if info.IsDir() {
		files, err = util.LoadDirectoryImageFiles(path)
	} else {
		var f util.ImageFile
		f, err = util.LoadImageFile(path)
		files = []util.ImageFile{f}
	}
	if err != nil {
		return err
	}

	corpus := make([]image.Image, 0, len(files))
	for _, f := range files {
		img, err := f.Decode()
		if err != nil {
			bs.logger.Warn("skipping image", zap.String("path", f.Path), zap.Error(err))
			continue
		}
		corpus = append(corpus, img)
	}
	if len(corpus) == 0 {
		return fmt.Errorf("no valid images found at %s", path)
	}

	bs.SetCorpus(corpus)
	return nil
}

// SetCorpus replaces the benchmark images.
func (bs *Suite) SetCorpus(corpus []image.Image) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.corpus = corpus
}

// UseSyntheticCorpus replaces the corpus with one gray frame per
// resolution, all camera resolutions when none are given.
func (bs *Suite) UseSyntheticCorpus(resolutions ...images.Resolution) {
	if len(resolutions) == 0 {
		resolutions = images.CameraResolutions()
	}
	corpus := make([]image.Image, len(resolutions))
	for i, r := range resolutions {
		corpus[i] = r.Frame()
	}
	bs.SetCorpus(corpus)
}

// SyntheticResolutions looks up camera resolutions by name. Blank names
// are skipped; no names selects every camera resolution.
func SyntheticResolutions(names []string) ([]images.Resolution, error) {
	var out []images.Resolution
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		r, ok := images.ResolutionByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown camera resolution %q", name)
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return images.CameraResolutions(), nil
	}
	return out, nil
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// AddScenarioSet adds every scenario of a set.
func (bs *Suite) AddScenarioSet(set *ScenarioSet) {
	for _, s := range set.Scenarios {
		bs.AddScenario(s)
	}
}

// Scenarios returns the configured scenarios.
func (bs *Suite) Scenarios() []Scenario {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	out := make([]Scenario, len(bs.scenarios))
	copy(out, bs.scenarios)
	return out
}

// RunScenario executes a single benchmark scenario
//
// Pipeline failures count towards the error rate. Only an invalid scenario,
// an empty corpus or a canceled context fail the run.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	bs.mu.RLock()
	corpus := bs.corpus
	bs.mu.RUnlock()
	if len(corpus) == 0 {
		return nil, fmt.Errorf("scenario %s: no images loaded", scenario.Name)
	}

	sources := make([]images.Source, len(corpus))
	for i, img := range corpus {
		sources[i] = images.FromImage(img, nil)
	}

	stats := inference.NewStats()
	pipeline, err := inference.NewPipeline(bs.engine,
		inference.WithConfig(scenario.Pipeline),
		inference.WithLogger(bs.logger),
		inference.WithStats(stats),
	)
	if err != nil {
		return nil, err
	}

	// Warmup runs
	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := pipeline.Infer(ctx, sources[i%len(sources)]); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	stats.Reset()

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
		Images:    len(sources),
		NumCPU:    runtime.NumCPU(),
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	startTime := time.Now()
	var inferenceTime time.Duration
	for i := 0; i < scenario.Iterations; i++ {
		res, err := pipeline.Infer(ctx, sources[i%len(sources)])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		inferenceTime += res.Latency
	}
	totalDuration := time.Since(startTime)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	snap := stats.Snapshot()
	metrics.TotalDuration = totalDuration
	metrics.InferenceDuration = inferenceTime
	if secs := totalDuration.Seconds(); secs > 0 {
		metrics.FramesPerSecond = float64(snap.Successes) / secs
	}
	metrics.Engine = snap
	metrics.DetectionCount = int(snap.Detections)
	metrics.ErrorRate = float64(snap.Runs-snap.Successes) / float64(scenario.Iterations)
	metrics.Failures = snap.Failures
	metrics.MemoryStats = memoryDelta(startMem, endMem)

	return metrics, nil
}

// RunAllScenarios executes all configured benchmark scenarios. A failed
// scenario is logged and skipped.
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	for _, scenario := range bs.Scenarios() {
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			bs.logger.Error("scenario failed", zap.String("scenario", scenario.Name), zap.Error(err))
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		bs.logger.Info("scenario completed",
			zap.String("scenario", scenario.Name),
			zap.Float64("fps", metrics.FramesPerSecond),
			zap.Int("detections", metrics.DetectionCount),
			zap.Float64("error_rate", metrics.ErrorRate),
		)
	}
	return nil
}

// SaveResults persists benchmark results to filesystem
//
// Returns:
//   - string: The JSON results file.
//   - string: The CSV summary file.
//   - error: An error if a file cannot be written.
func (bs *Suite) SaveResults() (string, string, error) {
	results := bs.Results()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", "", errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return "", "", errors.Wrap(err, "failed to save summary CSV")
	}

	bs.logger.Info("benchmark results saved", zap.String("results", resultsFile), zap.String("summary", summaryFile))
	return resultsFile, summaryFile, nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	header := "Scenario,Short_Side,Resample,FPS,Total_Duration_ms,Avg_Engine_ms,Alloc_MB,Detections,Error_Rate\n"
	if _, err := file.WriteString(header); err != nil {
		return err
	}

	for _, result := range results {
		line := fmt.Sprintf("%s,%d,%s,%.2f,%.2f,%.2f,%.2f,%d,%.4f\n",
			result.Scenario.Name,
			result.Scenario.Pipeline.TargetShortSide,
			result.Scenario.Pipeline.Resample,
			result.FramesPerSecond,
			float64(result.TotalDuration.Nanoseconds())/1e6,
			result.Engine.AverageTimeMs,
			float64(result.MemoryStats.AllocBytes)/(1024*1024),
			result.DetectionCount,
			result.ErrorRate,
		)
		if _, err := file.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}

// Results returns all benchmark results
func (bs *Suite) Results() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}
