package geometry

import (
	"image"

	"smartscreen/pkg/proto"
)

// ToLandscapeRaster rotates a logical image into a firmware raster that is
// natively landscape, returning the rotated image and the (row, column) of
// its top-left corner in that raster. pw and ph are the native portrait
// width and height of the panel.
func ToLandscapeRaster(o proto.Orientation, img image.Image, x, y, pw, ph int) (image.Image, int, int) {
	switch o {
	case proto.Portrait:
		rot := Rotate(img, 90)
		return rot, pw - x - rot.Bounds().Dy(), y
	case proto.ReversePortrait:
		rot := Rotate(img, 270)
		return rot, x, ph - y - rot.Bounds().Dx()
	case proto.ReverseLandscape:
		rot := Rotate(img, 180)
		return rot, pw - y - rot.Bounds().Dy(), ph - x - rot.Bounds().Dx()
	}
	w := Swap(Region{X: x, Y: y, W: img.Bounds().Dx(), H: img.Bounds().Dy()})
	return img, w.X0, w.Y0
}

// FullLandscapeRotation is the counter-clockwise rotation that brings a full
// logical frame into a natively landscape raster.
func FullLandscapeRotation(o proto.Orientation) int {
	switch o {
	case proto.Portrait:
		return 90
	case proto.ReversePortrait:
		return 270
	case proto.ReverseLandscape:
		return 180
	}
	return 0
}

// ToPortraitRaster rotates a full logical frame into the native portrait
// raster.
func ToPortraitRaster(o proto.Orientation, img image.Image) image.Image {
	switch o {
	case proto.Landscape:
		return Rotate(img, 270)
	case proto.ReversePortrait:
		return Rotate(img, 180)
	case proto.ReverseLandscape:
		return Rotate(img, 90)
	}
	return img
}
