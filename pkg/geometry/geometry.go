// Package geometry maps logical drawing regions onto the coordinate space a
// panel's firmware expects.
package geometry

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"smartscreen/pkg/proto"
)

// Region is a logical rectangle in the requested orientation.
type Region struct {
	X, Y, W, H int
}

func RegionOf(img image.Image, x, y int) Region {
	s := img.Bounds().Size()
	return Region{X: x, Y: y, W: s.X, H: s.Y}
}

// Wire holds inclusive firmware coordinates.
type Wire struct {
	X0, Y0, X1, Y1 int
}

func (w Wire) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", w.X0, w.Y0, w.X1, w.Y1)
}

// Check rejects regions that are empty or leave a w x h panel.
func (r Region) Check(w, h int) error {
	if r.W <= 0 || r.H <= 0 {
		return &proto.InputError{Field: "size", Value: fmt.Sprintf("%dx%d", r.W, r.H), Reason: "must be positive"}
	}
	if r.X < 0 || r.Y < 0 {
		return &proto.InputError{Field: "position", Value: fmt.Sprintf("%d,%d", r.X, r.Y), Reason: "must not be negative"}
	}
	if r.X+r.W > w {
		return &proto.InputError{Field: "width", Value: r.X + r.W, Reason: fmt.Sprintf("overflows panel width %d", w)}
	}
	if r.Y+r.H > h {
		return &proto.InputError{Field: "height", Value: r.Y + r.H, Reason: fmt.Sprintf("overflows panel height %d", h)}
	}
	return nil
}

// Identity is used by families whose firmware handles every orientation.
func Identity(r Region) Wire {
	return Wire{X0: r.X, Y0: r.Y, X1: r.X + r.W - 1, Y1: r.Y + r.H - 1}
}

// Reverse180 mirrors a region through the panel center, for firmware that
// only knows the two non-reversed orientations. w and h are the logical
// panel dimensions.
func Reverse180(r Region, w, h int) Wire {
	return Wire{
		X0: w - r.X - r.W,
		Y0: h - r.Y - r.H,
		X1: w - r.X - 1,
		Y1: h - r.Y - 1,
	}
}

// Swap exchanges the x and y roles instead of rotating pixels.
func Swap(r Region) Wire {
	return Wire{X0: r.Y, Y0: r.X, X1: r.Y + r.H - 1, Y1: r.X + r.W - 1}
}

// Rotate turns img counter-clockwise by a multiple of 90 degrees.
func Rotate(img image.Image, degrees int) image.Image {
	switch ((degrees % 360) + 360) % 360 {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	}
	return img
}
