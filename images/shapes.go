// Package images - Image processing utilities
package images

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Box is an axis-aligned bounding box in pixel space with a top-left origin.
//
// X and Y are the top-left corner, W and H the extent. Boxes decoded from a
// model are not clamped, so any field may fall outside of the image.
type Box struct {
	X, Y, W, H float32
}

// X2 returns the right edge of the box.
func (b Box) X2() float32 { return b.X + b.W }

// Y2 returns the bottom edge of the box.
func (b Box) Y2() float32 { return b.Y + b.H }

// Area returns W*H.
func (b Box) Area() float32 { return b.W * b.H }

// Rect converts the box to an integral image.Rectangle.
//
// This loses fractional pixels around the edges, so it is only used for
// drawing and never for overlap decisions.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math32.Floor(b.X)),
		int(math32.Floor(b.Y)),
		int(math32.Ceil(b.X2())),
		int(math32.Ceil(b.Y2())),
	).Canon()
}

// Clamp intersects the box with the rectangle [0,width]x[0,height].
//
// A box lying fully outside collapses to a zero-sized box on the nearest
// border.
//
// Arguments:
//   - width: The right bound.
//   - height: The bottom bound.
//
// Returns:
//   - Box: The clamped box.
func (b Box) Clamp(width, height int) Box {
	w, h := float32(width), float32(height)
	x1 := clamp(b.X, 0, w)
	y1 := clamp(b.Y, 0, h)
	x2 := clamp(b.X2(), 0, w)
	y2 := clamp(b.Y2(), 0, h)
	return Box{X: x1, Y: y1, W: math32.Max(0, x2-x1), H: math32.Max(0, y2-y1)}
}

func (b Box) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f, %.2f)", b.X, b.Y, b.W, b.H)
}

// MarshalJSON encodes the box as [x, y, w, h].
func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float32{b.X, b.Y, b.W, b.H})
}

// UnmarshalJSON decodes a box from [x, y, w, h].
func (b *Box) UnmarshalJSON(data []byte) error {
	var v [4]float32
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = Box{X: v[0], Y: v[1], W: v[2], H: v[3]}
	return nil
}

// IoU computes the Intersection over Union of two boxes.
//
// The intersection is taken from the corner coordinates of both boxes:
//
//	inter = max(0, min(x2) - max(x1)) * max(0, min(y2) - max(y1))
//	IoU   = inter / (areaA + areaB - inter)
//
// IoU is 0 whenever the intersection is 0, which also covers two
// zero-area boxes that would otherwise divide by zero.
//
// Arguments:
//   - a: The first box.
//   - b: The second box.
//
// Returns:
//   - float32: A value in [0, 1] for well-formed boxes.
//
// Example:
//
//	a := Box{X: 0, Y: 0, W: 10, H: 10}
//	b := Box{X: 5, Y: 5, W: 10, H: 10}
//	IoU(a, b) // 25 / 175 = 0.142857
func IoU(a, b Box) float32 {
	iw := math32.Max(0, math32.Min(a.X2(), b.X2())-math32.Max(a.X, b.X))
	ih := math32.Max(0, math32.Min(a.Y2(), b.Y2())-math32.Max(a.Y, b.Y))
	inter := iw * ih
	if inter == 0 {
		return 0
	}
	return inter / (a.Area() + b.Area() - inter)
}

func clamp(v, lo, hi float32) float32 {
	return math32.Min(math32.Max(v, lo), hi)
}
