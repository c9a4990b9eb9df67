// Package inference - Pipeline configuration.
package inference

import (
	"fmt"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Config represents the tunable parameters of a single pipeline invocation.
type Config struct {
	// TargetShortSide is the length the image height is scaled to before
	// stride alignment.
	TargetShortSide int `json:"target_short_side" yaml:"target_short_side"`

	// Stride is the network downsampling factor the input dimensions are
	// aligned to.
	Stride int `json:"stride" yaml:"stride"`

	// ConfidenceThreshold filters candidates scoring below this value.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// IoUThreshold controls Non-Maximum Suppression.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`

	// Classes lists the class labels of the detection head, in class index
	// order. Its length sets the number of class score rows in the output.
	Classes []string `json:"classes" yaml:"classes"`

	// ClassAgnostic suppresses overlapping boxes regardless of class.
	ClassAgnostic bool `json:"class_agnostic" yaml:"class_agnostic"`

	// ClampToImage intersects every returned box with the image bounds.
	ClampToImage bool `json:"clamp_to_image" yaml:"clamp_to_image"`

	// MaxDetections caps the number of returned candidates (0 = unlimited).
	MaxDetections int `json:"max_detections" yaml:"max_detections"`

	// Resample names the resampler used to scale the image, see
	// images.ResamplerNames.
	Resample string `json:"resample" yaml:"resample"`
}

// DefaultConfig returns the default single-class detector configuration.
//
// Returns:
//   - Config: Target short side 800, stride 32, confidence 0.8, IoU 0.5.
func DefaultConfig() Config {
	return Config{
		TargetShortSide:     800,
		Stride:              32,
		ConfidenceThreshold: 0.8,
		IoUThreshold:        0.5,
		Classes:             []string{"object"},
		Resample:            images.DefaultResampler,
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
//
// Returns:
//   - error: A description of the first invalid field, nil if valid.
func (c Config) Validate() error {
	if c.TargetShortSide <= 0 {
		return fmt.Errorf("target_short_side must be positive, got %d", c.TargetShortSide)
	}
	if c.Stride <= 0 {
		return fmt.Errorf("stride must be positive, got %d", c.Stride)
	}
	if !(c.ConfidenceThreshold >= 0 && c.ConfidenceThreshold <= 1) {
		return fmt.Errorf("confidence_threshold must be within [0, 1], got %v", c.ConfidenceThreshold)
	}
	if !(c.IoUThreshold >= 0 && c.IoUThreshold <= 1) {
		return fmt.Errorf("iou_threshold must be within [0, 1], got %v", c.IoUThreshold)
	}
	if len(c.Classes) == 0 {
		return fmt.Errorf("classes must name at least one class")
	}
	if c.MaxDetections < 0 {
		return fmt.Errorf("max_detections must not be negative, got %d", c.MaxDetections)
	}
	if _, err := images.NewResampler(c.Resample); err != nil {
		return err
	}
	return nil
}

// Decode returns the decoder parameters of the configuration.
func (c Config) Decode() postprocess.DecodeConfig {
	return postprocess.DecodeConfig{
		ConfidenceThreshold: c.ConfidenceThreshold,
		NumClasses:          len(c.Classes),
	}
}

// NMS returns the suppression parameters of the configuration.
func (c Config) NMS() postprocess.NMSConfig {
	return postprocess.NMSConfig{
		IoUThreshold:  c.IoUThreshold,
		ClassAgnostic: c.ClassAgnostic,
		MaxDetections: c.MaxDetections,
	}
}

// Label returns the class label for a class index.
func (c Config) Label(class int) string {
	if class >= 0 && class < len(c.Classes) {
		return c.Classes[class]
	}
	return fmt.Sprintf("unknown_%d", class)
}
