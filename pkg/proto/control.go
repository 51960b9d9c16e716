package proto

import (
	"image"
	"image/color"
	"io"
)

// Control is the drawing/command surface every revision driver implements.
type Control interface {
	io.Closer

	Reset() error
	InitializeComm() error
	Clear() error
	ScreenOff() error
	ScreenOn() error

	// SetBrightness takes a level in 0..100; anything else is an *InputError.
	SetBrightness(level int) error
	SetBackplateLedColor(c color.RGBA) error
	SetOrientation(o Orientation) error

	// DisplayImage draws img with its top-left corner at (x, y) in the
	// current orientation.
	DisplayImage(img image.Image, x, y int) error

	Width() int
	Height() int
}

// Identified is implemented by drivers that learn their hardware variant
// through a handshake.
type Identified interface {
	Revision() string
	SubRevision() string
}

// Storage is the onboard file sub-protocol of the larger panels.
type Storage interface {
	ListFiles(dir string) (dirs []string, files []string, err error)
	Upload(remote string, r io.Reader, size int64) error
	Delete(remote string) error
	PlayVideo(remote string) error
	PlayImage(remote string) error
	StopMedia() error
}

// VideoOverlay draws on top of a video playing from onboard storage.
type VideoOverlay interface {
	DisplayImageOnVideo(img image.Image, x, y int) error
}
