// Command detectd serves object detection over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/logger"
	"github.com/nvr-ai/go-detect/server"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	addr := flag.String("addr", "", "Listen address, overrides server.addr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log := logger.Must(cfg.Log)
	defer func() { _ = log.Sync() }()

	if err := serve(cfg, log); err != nil {
		log.Fatal("detectd failed", zap.Error(err))
	}
}

func serve(cfg *config.Config, log *zap.Logger) error {
	session, err := providers.NewSession(cfg.Provider, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("failed to close session", zap.Error(err))
		}
		if err := providers.DestroyEnvironment(); err != nil {
			log.Warn("failed to destroy onnxruntime environment", zap.Error(err))
		}
	}()

	pipeline, err := inference.NewPipeline(session,
		inference.WithConfig(cfg.Pipeline.Config),
		inference.WithLogger(log),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting detectd",
		zap.String("addr", cfg.Server.Addr),
		zap.String("model", cfg.Provider.ModelPath),
		zap.String("backend", string(cfg.Provider.Backend)),
		zap.Strings("classes", cfg.Pipeline.Classes),
	)
	return server.New(pipeline, cfg.Server, log).ListenAndServe(ctx)
}
