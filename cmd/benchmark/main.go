package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/benchmark"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/logger"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Path to the YAML configuration file")
		scenarioFile = flag.String("scenarios", "", "Path to a YAML scenario set")
		outputDir    = flag.String("output", "./benchmark_results", "Output directory for results")
		testImages   = flag.String("images", "", "Path to test images directory or file")
		synthetic    = flag.Bool("synthetic", false, "Benchmark gray frames at common camera resolutions")
		cameras      = flag.String("cameras", "", "Comma separated camera resolutions for -synthetic, e.g. \"HD 720p,Full HD 1080p\"")
		modelPath    = flag.String("model", "", "ONNX model path, overrides provider.model_path")
		resolutions  = flag.Bool("resolutions", false, "Compare different target short sides")
		resamplers   = flag.Bool("resamplers", false, "Compare resampling filters")
		timeout      = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
	)
	flag.Parse()

	if *testImages == "" && !*synthetic {
		fmt.Fprintln(os.Stderr, "Test images path (-images) or -synthetic is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *modelPath != "" {
		cfg.Provider.ModelPath = *modelPath
	}

	log := logger.Must(cfg.Log)
	defer func() { _ = log.Sync() }()

	session, err := providers.NewSession(cfg.Provider, log)
	if err != nil {
		log.Fatal("failed to create session", zap.Error(err))
	}
	defer func() {
		_ = session.Close()
		_ = providers.DestroyEnvironment()
	}()

	suite := benchmark.NewSuite(session, *outputDir, log)
	if *synthetic {
		frames, err := benchmark.SyntheticResolutions(strings.Split(*cameras, ","))
		if err != nil {
			log.Fatal("invalid camera resolutions", zap.Error(err))
		}
		suite.UseSyntheticCorpus(frames...)
	} else if err := suite.LoadCorpus(*testImages); err != nil {
		log.Fatal("failed to load test images", zap.Error(err))
	}

	base := cfg.Pipeline.Config
	switch {
	case *scenarioFile != "":
		set, err := benchmark.LoadScenarioSet(*scenarioFile, base)
		if err != nil {
			log.Fatal("failed to load scenario file", zap.Error(err))
		}
		suite.AddScenarioSet(set)
	default:
		if *resolutions {
			suite.AddScenarioSet(benchmark.ResolutionScenarios(base))
		}
		if *resamplers {
			suite.AddScenarioSet(benchmark.ResamplerScenarios(base))
		}
		if !*resolutions && !*resamplers {
			suite.AddScenarioSet(benchmark.QuickScenarios(base))
		}
	}
	log.Info("running benchmark", zap.Int("scenarios", len(suite.Scenarios())))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	if err := suite.RunAllScenarios(ctx); err != nil {
		log.Error("benchmark execution failed", zap.Error(err))
	}
	if _, _, err := suite.SaveResults(); err != nil {
		log.Fatal("failed to save results", zap.Error(err))
	}

	results := suite.Results()
	fmt.Printf("\n=== BENCHMARK RESULTS SUMMARY (%v) ===\n", time.Since(start).Round(time.Millisecond))
	var bestFPS float64
	var bestScenario string
	for _, result := range results {
		if result.FramesPerSecond > bestFPS {
			bestFPS = result.FramesPerSecond
			bestScenario = result.Scenario.Name
		}
		fmt.Printf("  %s: %.2f FPS, %.2f ms engine avg, %.2f%% errors\n",
			result.Scenario.Name,
			result.FramesPerSecond,
			result.Engine.AverageTimeMs,
			result.ErrorRate*100)
	}
	if bestScenario != "" {
		fmt.Printf("\nBest performing scenario: %s (%.2f FPS)\n", bestScenario, bestFPS)
	}
}

func init() {
	flag.Usage = func() {
		name := filepath.Base(os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", name)
		fmt.Fprintf(os.Stderr, "Benchmark tool for detection pipeline performance testing.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -images ./test_images -model ./model.onnx\n", name)
		fmt.Fprintf(os.Stderr, "  %s -synthetic -model ./model.onnx -resolutions\n", name)
		fmt.Fprintf(os.Stderr, "  %s -synthetic -cameras \"HD 720p,4K UHD\" -model ./model.onnx\n", name)
		fmt.Fprintf(os.Stderr, "  %s -config ./detect.yaml -images ./test_images -resolutions -resamplers\n", name)
		fmt.Fprintf(os.Stderr, "  %s -config ./detect.yaml -images ./test_images -scenarios ./scenarios.yaml\n", name)
	}
}
