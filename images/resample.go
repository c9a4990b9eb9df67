// Package images - Resampling backends used to draw a source into a buffer.
package images

import (
	"fmt"
	"image"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// Resampler scales an image to an exact width and height in a single pass.
//
// The aspect ratio is not preserved: the image is stretched to fill the
// target box.
type Resampler interface {
	Resample(src image.Image, width, height int) image.Image
}

// DefaultResampler is the name of the resampler used when none is configured.
const DefaultResampler = "bilinear"

// nfntResampler resamples with github.com/nfnt/resize.
type nfntResampler struct {
	interp resize.InterpolationFunction
}

func (r nfntResampler) Resample(src image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), src, r.interp)
}

// imagingResampler resamples with github.com/disintegration/imaging.
type imagingResampler struct {
	filter imaging.ResampleFilter
}

func (r imagingResampler) Resample(src image.Image, width, height int) image.Image {
	return imaging.Resize(src, width, height, r.filter)
}

var resamplers = map[string]Resampler{
	"bilinear":        nfntResampler{interp: resize.Bilinear},
	"nearest":         nfntResampler{interp: resize.NearestNeighbor},
	"bicubic":         nfntResampler{interp: resize.Bicubic},
	"lanczos3":        nfntResampler{interp: resize.Lanczos3},
	"imaging-linear":  imagingResampler{filter: imaging.Linear},
	"imaging-lanczos": imagingResampler{filter: imaging.Lanczos},
	"imaging-box":     imagingResampler{filter: imaging.Box},
}

// NewResampler returns the resampler registered under name.
//
// An empty name selects DefaultResampler.
//
// Arguments:
//   - name: One of ResamplerNames().
//
// Returns:
//   - Resampler: The resampler.
//   - error: An error if the name is unknown.
func NewResampler(name string) (Resampler, error) {
	if name == "" {
		name = DefaultResampler
	}
	r, ok := resamplers[name]
	if !ok {
		return nil, fmt.Errorf("unknown resampler %q (supported: %v)", name, ResamplerNames())
	}
	return r, nil
}

// ResamplerNames lists the registered resampler names in sorted order.
func ResamplerNames() []string {
	names := make([]string, 0, len(resamplers))
	for name := range resamplers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
