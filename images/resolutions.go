// Package images - Common surveillance camera resolutions.
package images

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// AspectRatio represents a camera aspect ratio by name (e.g., "16:9").
type AspectRatio string

const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
	AspectRatio54  AspectRatio = "5:4"
	AspectRatio32  AspectRatio = "3:2"
)

// Resolution is a named camera frame size.
type Resolution struct {
	Name        string      `json:"name"        yaml:"name"`
	AspectRatio AspectRatio `json:"aspectRatio" yaml:"aspect_ratio"`
	Width       int         `json:"width"       yaml:"width"`
	Height      int         `json:"height"      yaml:"height"`
}

// GetMegaPixels returns the pixel count in megapixels rounded to two
// decimal places (e.g., 2.07 for 1080p).
func (r Resolution) GetMegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Width*r.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2f MP, %s)", r.Name, r.Width, r.Height, r.GetMegaPixels(), r.AspectRatio)
}

// Frame returns a mid-gray RGBA frame of the resolution's size.
func (r Resolution) Frame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	gray := color.RGBA{128, 128, 128, 255}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = gray.R, gray.G, gray.B, gray.A
	}
	return img
}

// cameraResolutions is ordered by pixel count.
var cameraResolutions = []Resolution{
	{Name: "nHD", AspectRatio: AspectRatio169, Width: 640, Height: 360},
	{Name: "VGA", AspectRatio: AspectRatio43, Width: 640, Height: 480},
	{Name: "qHD 540p", AspectRatio: AspectRatio169, Width: 960, Height: 540},
	{Name: "HD 720p", AspectRatio: AspectRatio169, Width: 1280, Height: 720},
	{Name: "1MP (5:4)", AspectRatio: AspectRatio54, Width: 1280, Height: 1024},
	{Name: "Full HD 1080p", AspectRatio: AspectRatio169, Width: 1920, Height: 1080},
	{Name: "3MP (4:3)", AspectRatio: AspectRatio43, Width: 2048, Height: 1536},
	{Name: "QHD 1440p", AspectRatio: AspectRatio169, Width: 2560, Height: 1440},
	{Name: "6MP (3:2)", AspectRatio: AspectRatio32, Width: 3072, Height: 2048},
	{Name: "4K UHD", AspectRatio: AspectRatio169, Width: 3840, Height: 2160},
}

// CameraResolutions returns the known camera resolutions, smallest first.
func CameraResolutions() []Resolution {
	out := make([]Resolution, len(cameraResolutions))
	copy(out, cameraResolutions)
	return out
}

// ResolutionByName looks a resolution up by its name.
func ResolutionByName(name string) (Resolution, bool) {
	for _, r := range cameraResolutions {
		if r.Name == name {
			return r, true
		}
	}
	return Resolution{}, false
}
