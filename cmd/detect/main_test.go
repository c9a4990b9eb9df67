package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/config"
)

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer

	opts, err := parseFlags([]string{"-image", "a.jpg", "-confidence", "0.4", "-annotate", "out"}, &stderr)
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", opts.imagePath)
	assert.Equal(t, 0.4, opts.confidence)
	assert.Equal(t, -1.0, opts.iou)
	assert.Equal(t, "out", opts.annotate)

	_, err = parseFlags(nil, &stderr)
	assert.ErrorContains(t, err, "exactly one of -image or -dir")
	_, err = parseFlags([]string{"-image", "a.jpg", "-dir", "d"}, &stderr)
	assert.Error(t, err)
	_, err = parseFlags([]string{"-confidence", "high"}, &stderr)
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	opts := options{modelPath: "m.onnx", confidence: 0.3, iou: -1, clamp: true}
	require.NoError(t, opts.apply(&cfg))

	assert.Equal(t, "m.onnx", cfg.Provider.ModelPath)
	assert.Equal(t, float32(0.3), cfg.Pipeline.ConfidenceThreshold)
	assert.Equal(t, float32(0.5), cfg.Pipeline.IoUThreshold)
	assert.True(t, cfg.Pipeline.ClampToImage)

	cfg = config.Default()
	assert.Error(t, options{confidence: 2, iou: -1}.apply(&cfg))
}

func TestRunRejectsBadArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Equal(t, 1, run([]string{"-image", "a.jpg", "-config", "/does/not/exist.yaml"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "failed to read configuration file")
	assert.Empty(t, stdout.String())
}
