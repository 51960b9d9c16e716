package proto

import (
	"strings"

	"github.com/pkg/errors"
)

type Orientation uint8

const (
	Portrait         Orientation = 0
	ReversePortrait  Orientation = 1
	Landscape        Orientation = 2
	ReverseLandscape Orientation = 3
)

var orientationNames = map[Orientation]string{
	Portrait:         "portrait",
	ReversePortrait:  "reverse_portrait",
	Landscape:        "landscape",
	ReverseLandscape: "reverse_landscape",
}

func (o Orientation) String() string {
	if s, ok := orientationNames[o]; ok {
		return s
	}
	return "unknown"
}

func (o Orientation) Valid() bool {
	return o <= ReverseLandscape
}

func (o Orientation) IsLandscape() bool {
	return o == Landscape || o == ReverseLandscape
}

func (o Orientation) IsReverse() bool {
	return o == ReversePortrait || o == ReverseLandscape
}

// Dims returns the logical width and height for a panel whose native
// (portrait) size is w x h.
func (o Orientation) Dims(w, h int) (int, int) {
	if o.IsLandscape() {
		return h, w
	}
	return w, h
}

func ParseOrientation(s string) (Orientation, error) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for o, name := range orientationNames {
		if name == s {
			return o, nil
		}
	}
	return Portrait, errors.Errorf("unknown orientation %q", s)
}
