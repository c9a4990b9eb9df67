// Package postprocess - Postprocessing utilities for models.
package postprocess

import "github.com/nvr-ai/go-detect/images"

// Candidate represents a single detection candidate.
type Candidate struct {
	// The bounding box in original-image pixel space.
	Box images.Box `json:"bbox" yaml:"bbox"`
	// The predicted class index of the candidate.
	Class int `json:"class_idx" yaml:"class_idx"`
	// The confidence score of the candidate.
	Score float32 `json:"score" yaml:"score"`
}

// ClampToImage returns a copy of candidates with every box intersected with
// the image rectangle [0,width]x[0,height].
//
// Arguments:
//   - candidates: The candidates to clamp.
//   - width: The original image width.
//   - height: The original image height.
//
// Returns:
//   - []Candidate: The clamped candidates in the same order.
func ClampToImage(candidates []Candidate, width, height int) []Candidate {
	out := make([]Candidate, len(candidates))
	for i, c := range candidates {
		c.Box = c.Box.Clamp(width, height)
		out[i] = c
	}
	return out
}
