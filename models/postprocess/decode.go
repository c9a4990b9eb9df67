// Package postprocess - Decoding of raw detection-head output tensors.
package postprocess

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
)

// boxAttributes is the number of leading box rows in the detection head:
// x_center, y_center, width, height.
const boxAttributes = 4

// ErrShapeMismatch is returned when an output tensor does not have the
// [1, 4+numClasses, numAnchors] layout.
var ErrShapeMismatch = errors.New("output tensor shape mismatch")

// DecodeConfig defines parameters for decoding a detection-head output.
type DecodeConfig struct {
	// ConfidenceThreshold is the minimum score a candidate must reach.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// NumClasses is the number of class score rows following the box rows.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
}

// Attributes returns the number of rows per anchor, 4+NumClasses.
func (c DecodeConfig) Attributes() int {
	return boxAttributes + c.NumClasses
}

// Decode converts a raw [1, 4+numClasses, numAnchors] output tensor into
// candidates in original-image pixel space.
//
// Attribute a of anchor i lives at offset a*numAnchors+i. Box rows are in
// center form in network-input pixels; they are converted to corner form and
// scaled by the ratios returned from preprocessing. With a single class the
// score row is row 4 and the class index is always 0; with more classes the
// first highest class row wins.
//
// Candidates scoring below the threshold (or NaN) are dropped. The result is
// in anchor order and holds no reference to data.
//
// Arguments:
//   - shape: The output tensor shape.
//   - data: The flat row-major output data.
//   - xRatio: original width / network input width.
//   - yRatio: original height / network input height.
//   - cfg: The decode configuration.
//
// Returns:
//   - []Candidate: The surviving candidates, never nil on success.
//   - error: ErrShapeMismatch (wrapped) if the tensor layout is wrong.
func Decode(shape []int64, data []float32, xRatio, yRatio float64, cfg DecodeConfig) ([]Candidate, error) {
	if cfg.NumClasses < 1 {
		return nil, errors.Errorf("decode requires at least one class, got %d", cfg.NumClasses)
	}
	if len(shape) != 3 {
		return nil, errors.Wrapf(ErrShapeMismatch, "expected rank 3, got shape %v", shape)
	}
	attrs := int64(cfg.Attributes())
	if shape[0] != 1 || shape[1] != attrs || shape[2] < 0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "expected [1 %d N], got %v", attrs, shape)
	}
	n := int(shape[2])
	if len(data) != int(attrs)*n {
		return nil, errors.Wrapf(ErrShapeMismatch, "shape %v needs %d values, got %d", shape, int(attrs)*n, len(data))
	}

	results := make([]Candidate, 0)
	for i := 0; i < n; i++ {
		class, score := 0, data[boxAttributes*n+i]
		for c := 1; c < cfg.NumClasses; c++ {
			if s := data[(boxAttributes+c)*n+i]; s > score {
				class, score = c, s
			}
		}
		if !(score >= cfg.ConfidenceThreshold) {
			continue
		}

		xc := float64(data[i])
		yc := float64(data[n+i])
		w := float64(data[2*n+i])
		h := float64(data[3*n+i])

		results = append(results, Candidate{
			Box: images.Box{
				X: float32((xc - 0.5*w) * xRatio),
				Y: float32((yc - 0.5*h) * yRatio),
				W: float32(w * xRatio),
				H: float32(h * yRatio),
			},
			Class: class,
			Score: score,
		})
	}

	return results, nil
}
