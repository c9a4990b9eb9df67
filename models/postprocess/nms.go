// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-detect/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold is the overlap above which a lower-scoring box is suppressed.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// ClassAgnostic suppresses across classes when true. The default only
	// suppresses boxes sharing a class index.
	ClassAgnostic bool `json:"class_agnostic" yaml:"class_agnostic"`
	// MaxDetections caps the number of kept candidates. 0 means unlimited.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
}

// SortByScore returns a copy of candidates sorted by descending score.
//
// The sort is stable: candidates with equal scores keep their input order,
// which for decoder output is anchor order.
func SortByScore(candidates []Candidate) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}

// Suppress performs greedy class-aware Non-Maximum Suppression.
//
// Candidates are visited in descending score order. Each visited candidate
// that has not been suppressed is kept, and every later candidate of the same
// class whose IoU with it exceeds the threshold is suppressed.
//
// The input slice is not modified. The result is a subset of the input in
// descending score order, and running Suppress on its own output returns the
// same candidates.
//
// Arguments:
//   - candidates: The candidates in any order.
//   - config: NMS configuration.
//
// Returns:
//   - []Candidate: The kept candidates, never nil.
func Suppress(candidates []Candidate, config NMSConfig) []Candidate {
	sorted := SortByScore(candidates)
	n := len(sorted)

	kept := make([]Candidate, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}
		if config.MaxDetections > 0 && len(kept) == config.MaxDetections {
			break
		}

		anchor := sorted[i]
		kept = append(kept, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if !config.ClassAgnostic && sorted[j].Class != anchor.Class {
				continue
			}
			if images.IoU(anchor.Box, sorted[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return kept
}
