// Package images - Image sources consumed by the preprocessing stage.
package images

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"

	"github.com/disintegration/imaging"
)

// Source is a pixel source with known dimensions that can draw itself,
// scaled, into an RGBA buffer of arbitrary size.
//
// A Source must not change while a pipeline call is using it.
type Source interface {
	// Width returns the width of the source in pixels.
	Width() int
	// Height returns the height of the source in pixels.
	Height() int
	// DrawTo draws the whole source stretched to fill dst.Bounds().
	DrawTo(dst *image.RGBA) error
}

// Resampled is a Source whose resampling filter can be replaced.
type Resampled interface {
	Source
	// WithResampler returns a copy of the source that draws with r.
	WithResampler(r Resampler) Source
}

// ErrNoImage is returned when a Source has no backing image.
var ErrNoImage = errors.New("images: source has no image")

// imageSource adapts an image.Image to a Source.
type imageSource struct {
	img       image.Image
	resampler Resampler
}

// FromImage wraps a decoded image as a Source.
//
// Arguments:
//   - img: The decoded image.
//   - resampler: The resampler used by DrawTo. nil selects DefaultResampler.
//
// Returns:
//   - Source: The image source.
func FromImage(img image.Image, resampler Resampler) Source {
	if resampler == nil {
		resampler, _ = NewResampler(DefaultResampler)
	}
	return &imageSource{img: img, resampler: resampler}
}

func (s *imageSource) WithResampler(r Resampler) Source {
	return FromImage(s.img, r)
}

func (s *imageSource) Width() int {
	if s.img == nil {
		return 0
	}
	return s.img.Bounds().Dx()
}

func (s *imageSource) Height() int {
	if s.img == nil {
		return 0
	}
	return s.img.Bounds().Dy()
}

// DrawTo resamples the image to the size of dst and copies the result in.
func (s *imageSource) DrawTo(dst *image.RGBA) error {
	if s.img == nil {
		return ErrNoImage
	}
	if dst == nil {
		return errors.New("images: nil destination buffer")
	}
	size := dst.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("images: empty destination buffer %v", size)
	}

	scaled := s.img
	if s.img.Bounds().Size() != size {
		scaled = s.resampler.Resample(s.img, size.X, size.Y)
	}
	if scaled == nil {
		return errors.New("images: resampler returned no image")
	}
	draw.Draw(dst, dst.Bounds(), scaled, scaled.Bounds().Min, draw.Src)
	return nil
}

// Open decodes an image file, applying EXIF orientation.
//
// Arguments:
//   - path: The path of the image file.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the file cannot be read or decoded.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return img, nil
}

// Decode decodes an image from r, applying EXIF orientation.
//
// Arguments:
//   - r: The encoded image stream (JPEG, PNG, GIF, TIFF or BMP).
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if decoding fails.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
