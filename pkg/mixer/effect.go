package mixer

import (
	"image"

	"github.com/pkg/errors"
)

// Tile is one partial draw of a transition.
type Tile struct {
	At  image.Point
	Img image.Image
}

type Image interface {
	image.Image
	SubImage(image.Rectangle) image.Image
}

// Effect splits a frame into tiles. The channel is closed after the last
// tile and must be drained.
type Effect interface {
	Name() string
	Process(img Image) (<-chan Tile, error)
}

// ParseEffect resolves an effect by name; an empty name is no effect.
func ParseEffect(name string) (Effect, error) {
	switch name {
	case "":
		return nil, nil
	case "block":
		return EffectBlock(), nil
	case "scan":
		return EffectScan(32), nil
	}
	return nil, errors.Errorf("unknown effect %q", name)
}

func emit(ts []Tile) <-chan Tile {
	tc := make(chan Tile)
	go func() {
		defer close(tc)
		for _, t := range ts {
			tc <- t
		}
	}()
	return tc
}
