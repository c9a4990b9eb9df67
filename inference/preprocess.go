package inference

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/images"
)

// Input is a network-ready tensor together with the scale ratios mapping
// network pixels back to original image pixels.
type Input struct {
	// Tensor is the [1, 3, Height, Width] float32 planar tensor in [0, 1].
	Tensor *tensor.Dense
	// Width is the stride-aligned network input width.
	Width int
	// Height is the stride-aligned network input height.
	Height int
	// XRatio is original width / Width.
	XRatio float64
	// YRatio is original height / Height.
	YRatio float64
}

// AlignToStride rounds dim to the nearest multiple of stride. A remainder of
// at least half the stride rounds up.
//
// Arguments:
//   - dim: The dimension to align.
//   - stride: The alignment stride, must be positive.
//
// Returns:
//   - int: The aligned dimension.
func AlignToStride(dim, stride int) int {
	rem := dim % stride
	if 2*rem >= stride {
		return dim - rem + stride
	}
	return dim - rem
}

// Preprocess scales src so its height becomes targetShortSide, aligns both
// dimensions to stride and converts the pixels into a planar tensor.
//
// The image is stretched into the aligned size in a single resample pass, so
// the two ratios may differ slightly.
//
// Arguments:
//   - src: The image source.
//   - targetShortSide: The height the image is scaled to before alignment.
//   - stride: The network stride.
//
// Returns:
//   - *Input: The tensor and scale ratios.
//   - error: An error wrapping the cause if the image cannot be used.
func Preprocess(src images.Source, targetShortSide, stride int) (*Input, error) {
	if src == nil {
		return nil, errors.New("nil image source")
	}
	if targetShortSide <= 0 || stride <= 0 {
		return nil, errors.Errorf("invalid target %d or stride %d", targetShortSide, stride)
	}

	origW, origH := src.Width(), src.Height()
	if origW <= 0 || origH <= 0 {
		return nil, errors.Errorf("invalid image dimensions %dx%d", origW, origH)
	}

	shrink := float64(targetShortSide) / float64(origH)
	width := AlignToStride(roundHalfUp(float64(origW)*shrink), stride)
	height := AlignToStride(roundHalfUp(float64(origH)*shrink), stride)
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("image %dx%d aligns to empty input %dx%d", origW, origH, width, height)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	if err := src.DrawTo(canvas); err != nil {
		return nil, errors.Wrap(err, "draw image to canvas")
	}

	data, err := planarFromRGBA(canvas)
	if err != nil {
		return nil, err
	}

	return &Input{
		Tensor: tensor.New(
			tensor.WithShape(1, 3, height, width),
			tensor.Of(tensor.Float32),
			tensor.WithBacking(data),
		),
		Width:  width,
		Height: height,
		XRatio: float64(origW) / float64(width),
		YRatio: float64(origH) / float64(height),
	}, nil
}

// planarFromRGBA converts interleaved RGBA pixels to CHW float32 values in
// [0, 1]. Alpha is dropped.
func planarFromRGBA(canvas *image.RGBA) ([]float32, error) {
	width, height := canvas.Rect.Dx(), canvas.Rect.Dy()
	if len(canvas.Pix) < (height-1)*canvas.Stride+width*4 {
		return nil, errors.Errorf("pixel buffer holds %d bytes, needs %d", len(canvas.Pix), height*width*4)
	}

	plane := width * height
	data := make([]float32, 3*plane)
	red := data[0:plane]
	green := data[plane : 2*plane]
	blue := data[2*plane : 3*plane]

	i := 0
	for y := 0; y < height; y++ {
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+width*4]
		for x := 0; x < width; x++ {
			red[i] = float32(row[x*4]) / 255.0
			green[i] = float32(row[x*4+1]) / 255.0
			blue[i] = float32(row[x*4+2]) / 255.0
			i++
		}
	}
	return data, nil
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
