package inference

import (
	"fmt"
	"time"

	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Result is the outcome of one successful pipeline invocation.
type Result struct {
	// Candidates are the kept detections in descending score order, in
	// original image pixels. Empty, never nil, when nothing was detected.
	Candidates []postprocess.Candidate `json:"detections"`
	// Latency is the wall-clock duration of the engine call only.
	Latency time.Duration `json:"-"`
	// Width is the stride-aligned network input width.
	Width int `json:"width"`
	// Height is the stride-aligned network input height.
	Height int `json:"height"`
	// XRatio maps network x coordinates to original image pixels.
	XRatio float64 `json:"x_ratio"`
	// YRatio maps network y coordinates to original image pixels.
	YRatio float64 `json:"y_ratio"`
}

// LatencyMs returns the engine latency in milliseconds with two decimals.
func (r *Result) LatencyMs() string {
	return fmt.Sprintf("%.2f", float64(r.Latency.Nanoseconds())/1e6)
}
