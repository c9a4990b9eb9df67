package inference

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/models/postprocess"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 800, cfg.TargetShortSide)
	assert.Equal(t, 32, cfg.Stride)
	assert.Equal(t, float32(0.8), cfg.ConfidenceThreshold)
	assert.Equal(t, float32(0.5), cfg.IoUThreshold)
	assert.Equal(t, []string{"object"}, cfg.Classes)
	assert.False(t, cfg.ClassAgnostic)
	assert.False(t, cfg.ClampToImage)
	assert.Zero(t, cfg.MaxDetections)
	assert.Equal(t, "bilinear", cfg.Resample)

	assert.Equal(t, postprocess.DecodeConfig{ConfidenceThreshold: 0.8, NumClasses: 1}, cfg.Decode())
	assert.Equal(t, postprocess.NMSConfig{IoUThreshold: 0.5}, cfg.NMS())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"Zero target", func(c *Config) { c.TargetShortSide = 0 }},
		{"Negative stride", func(c *Config) { c.Stride = -32 }},
		{"Confidence above one", func(c *Config) { c.ConfidenceThreshold = 1.01 }},
		{"Negative IoU", func(c *Config) { c.IoUThreshold = -0.1 }},
		{"No classes", func(c *Config) { c.Classes = nil }},
		{"Negative max detections", func(c *Config) { c.MaxDetections = -1 }},
		{"Unknown resampler", func(c *Config) { c.Resample = "sinc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigLabel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Classes = []string{"person", "vehicle"}

	assert.Equal(t, "person", cfg.Label(0))
	assert.Equal(t, "vehicle", cfg.Label(1))
	assert.Equal(t, "unknown_7", cfg.Label(7))
	assert.Equal(t, 2, cfg.Decode().NumClasses)
}

func TestFaultMatching(t *testing.T) {
	cause := errors.New("no such device")
	fault := newFault(FaultEngine, StageInferring, cause)
	wrapped := fmt.Errorf("request 42: %w", fault)

	assert.ErrorIs(t, wrapped, ErrEngine)
	assert.ErrorIs(t, wrapped, cause)
	assert.NotErrorIs(t, wrapped, ErrImageAccess)
	assert.NotErrorIs(t, wrapped, &Fault{Kind: FaultEngine, Err: cause}, "non-sentinel targets do not match by kind")

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, FaultEngine, kind)

	_, ok = KindOf(cause)
	assert.False(t, ok)

	assert.Equal(t, "engine fault while inferring: no such device", fault.Error())
	assert.Equal(t, "config fault: bad", newFault(FaultConfig, "", errors.New("bad")).Error())
	assert.Equal(t, "canceled fault", ErrCanceled.Error())
}
