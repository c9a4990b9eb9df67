// Command detect runs object detection on image files and prints one JSON
// line per image.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/overlay"
	"github.com/nvr-ai/go-detect/util"
)

// options holds the command line arguments.
type options struct {
	configPath string
	imagePath  string
	dirPath    string
	modelPath  string
	annotate   string
	confidence float64
	iou        float64
	clamp      bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to the YAML configuration file")
	fs.StringVar(&opts.imagePath, "image", "", "Image file to process")
	fs.StringVar(&opts.dirPath, "dir", "", "Directory of images to process")
	fs.StringVar(&opts.modelPath, "model", "", "ONNX model path, overrides provider.model_path")
	fs.StringVar(&opts.annotate, "annotate", "", "Directory to write annotated images to")
	fs.Float64Var(&opts.confidence, "confidence", -1, "Confidence threshold override")
	fs.Float64Var(&opts.iou, "iou", -1, "IoU threshold override")
	fs.BoolVar(&opts.clamp, "clamp", false, "Clamp boxes to the image bounds")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if (opts.imagePath == "") == (opts.dirPath == "") {
		return opts, fmt.Errorf("exactly one of -image or -dir is required")
	}
	return opts, nil
}

// apply overlays the command line overrides on the loaded configuration.
func (o options) apply(cfg *config.Config) error {
	if o.modelPath != "" {
		cfg.Provider.ModelPath = o.modelPath
	}
	if o.confidence >= 0 {
		cfg.Pipeline.ConfidenceThreshold = float32(o.confidence)
	}
	if o.iou >= 0 {
		cfg.Pipeline.IoUThreshold = float32(o.iou)
	}
	if o.clamp {
		cfg.Pipeline.ClampToImage = true
	}
	return cfg.Validate()
}

// line is the JSON output of one image.
type line struct {
	Path       string      `json:"path"`
	Detections []detection `json:"detections"`
	LatencyMs  string      `json:"latency_ms,omitempty"`
	Error      string      `json:"error,omitempty"`
	Kind       string      `json:"kind,omitempty"`
}

type detection struct {
	BBox  images.Box `json:"bbox"`
	Class int        `json:"class_idx"`
	Label string     `json:"label"`
	Score float32    `json:"score"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := opts.apply(cfg); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	session, err := providers.NewSession(cfg.Provider, log)
	if err != nil {
		log.Error("failed to create session", zap.Error(err))
		return 1
	}
	defer func() {
		_ = session.Close()
		_ = providers.DestroyEnvironment()
	}()

	pipeline, err := inference.NewPipeline(session,
		inference.WithConfig(cfg.Pipeline.Config),
		inference.WithLogger(log),
	)
	if err != nil {
		log.Error("failed to create pipeline", zap.Error(err))
		return 1
	}

	var files []util.ImageFile
	if opts.dirPath != "" {
		files, err = util.LoadDirectoryImageFiles(opts.dirPath)
	} else {
		var f util.ImageFile
		f, err = util.LoadImageFile(opts.imagePath)
		files = []util.ImageFile{f}
	}
	if err != nil {
		log.Error("failed to load images", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(stdout)
	failed := 0
	for i, f := range files {
		if ctx.Err() != nil {
			log.Warn("interrupted", zap.Int("remaining", len(files)-i))
			return 130
		}
		out := detect(ctx, pipeline, f, opts.annotate, log)
		if out.Error != "" {
			failed++
		}
		if err := enc.Encode(out); err != nil {
			log.Error("failed to write output", zap.Error(err))
			return 1
		}
	}

	log.Info("detection finished",
		zap.Int("images", len(files)),
		zap.Int("failed", failed),
		zap.Any("stats", pipeline.Stats().Snapshot()),
	)
	if failed > 0 {
		return 1
	}
	return 0
}

func detect(ctx context.Context, p *inference.Pipeline, f util.ImageFile, annotate string, log *zap.Logger) line {
	out := line{Path: f.Path}

	img, err := f.Decode()
	if err != nil {
		out.Error, out.Kind = err.Error(), string(inference.FaultImageAccess)
		return out
	}

	result, err := p.Infer(ctx, images.FromImage(img, nil))
	if err != nil {
		out.Error = err.Error()
		if kind, ok := inference.KindOf(err); ok {
			out.Kind = string(kind)
		}
		return out
	}

	cfg := p.Config()
	out.LatencyMs = result.LatencyMs()
	out.Detections = make([]detection, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		out.Detections = append(out.Detections, detection{BBox: c.Box, Class: c.Class, Label: cfg.Label(c.Class), Score: c.Score})
	}

	if annotate != "" {
		path := overlay.OutputPath(annotate, f.Path)
		if err := overlay.Save(path, img, result.Candidates, cfg.Label, overlay.DefaultStyle()); err != nil {
			log.Warn("failed to annotate image", zap.String("path", f.Path), zap.Error(err))
		}
	}
	return out
}
