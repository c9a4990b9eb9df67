// Package providers - OpenVINO execution provider.
package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type (CPU, GPU, NPU, ...).
	DeviceType string `json:"device_type"            yaml:"device_type"`
	// Inference precision: FP32, FP16 or ACCURACY.
	Precision string `json:"precision"              yaml:"precision"`
	// Overrides the accelerator default number of threads.
	NumOfThreads int `json:"num_of_threads"         yaml:"num_of_threads"`
	// Overrides the accelerator default streams.
	NumStreams int `json:"num_streams"            yaml:"num_streams"`
	// Rewrite dynamic shaped models to static shape at runtime.
	DisableDynamicShapes bool `json:"disable_dynamic_shapes" yaml:"disable_dynamic_shapes"`
	// Directory for compiled blob caching.
	CacheDir string `json:"cache_dir"              yaml:"cache_dir"`
}

// Map returns the provider options in the key/value form the runtime accepts.
func (o OpenVINOOptions) Map() map[string]string {
	m := map[string]string{}
	if o.DeviceType != "" {
		m["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		m["precision"] = o.Precision
	}
	itoaIfSet(m, "num_of_threads", o.NumOfThreads)
	itoaIfSet(m, "num_streams", o.NumStreams)
	if o.DisableDynamicShapes {
		m["disable_dynamic_shapes"] = "true"
	}
	if o.CacheDir != "" {
		m["cache_dir"] = o.CacheDir
	}
	return m
}

func appendOpenVINO(options *ort.SessionOptions, o OpenVINOOptions) error {
	if err := options.AppendExecutionProviderOpenVINO(o.Map()); err != nil {
		return errors.Wrap(err, "enable OpenVINO")
	}
	return nil
}
