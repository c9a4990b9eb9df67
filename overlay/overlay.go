// Package overlay - Draws detection results onto images with gocv.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Style controls how annotations are drawn.
type Style struct {
	Thickness int
	FontScale float64
	// Palette is indexed by class, wrapping around.
	Palette []color.RGBA
}

// DefaultStyle returns green-first boxes of thickness 2.
func DefaultStyle() Style {
	return Style{
		Thickness: 2,
		FontScale: 0.8,
		Palette: []color.RGBA{
			{0, 255, 0, 0},
			{0, 0, 255, 0},
			{255, 0, 0, 0},
			{255, 255, 0, 0},
			{0, 255, 255, 0},
			{255, 0, 255, 0},
		},
	}
}

// ColorFor returns the palette color of a class.
func (s Style) ColorFor(class int) color.RGBA {
	if len(s.Palette) == 0 {
		return color.RGBA{0, 255, 0, 0}
	}
	if class < 0 {
		class = -class
	}
	return s.Palette[class%len(s.Palette)]
}

// Label formats the caption drawn above a box, e.g. "person 0.95".
func Label(name string, score float32) string {
	return fmt.Sprintf("%s %.2f", name, score)
}

// TextOrigin returns where a caption is anchored for a box. Captions sit
// just above the box and move inside it when the box touches the top edge.
func TextOrigin(r image.Rectangle) image.Point {
	const lift = 4
	if r.Min.Y-lift < 10 {
		return image.Pt(r.Min.X, r.Min.Y+12)
	}
	return image.Pt(r.Min.X, r.Min.Y-lift)
}

// Draw annotates img in place with one rectangle and caption per candidate.
//
// Arguments:
//   - img: A BGR matrix, as returned by gocv.IMRead or gocv.ImageToMatRGB.
//   - candidates: The detections in img's pixel space.
//   - label: Maps a class index to its name.
//   - style: The drawing style.
func Draw(img *gocv.Mat, candidates []postprocess.Candidate, label func(int) string, style Style) {
	for _, c := range candidates {
		r := c.Box.Rect()
		col := style.ColorFor(c.Class)
		gocv.Rectangle(img, r, col, style.Thickness)
		gocv.PutText(img, Label(label(c.Class), c.Score), TextOrigin(r), gocv.FontHersheyPlain, style.FontScale, col, style.Thickness)
	}
}

// Save draws candidates onto a copy of img and writes it to path. The
// format follows the file extension.
//
// Returns:
//   - error: An error if the image cannot be converted or written.
func Save(path string, img image.Image, candidates []postprocess.Candidate, label func(int) string, style Style) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "failed to convert image to mat")
	}
	defer mat.Close()

	Draw(&mat, candidates, label, style)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("failed to write annotated image to %s", path)
	}
	return nil
}

// OutputPath returns the annotated file name for an input inside dir.
func OutputPath(dir, input string) string {
	return filepath.Join(dir, "annotated_"+filepath.Base(input))
}
