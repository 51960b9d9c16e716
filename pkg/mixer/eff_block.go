package mixer

import (
	"image"
	"math/rand"

	"github.com/samber/lo"
)

// EffectBlock reveals the frame in shuffled square blocks of a random size
// between 8 and 39 pixels.
func EffectBlock() Effect {
	return &block{
		size: 32,
		rand: true,
	}
}

// EffectBlockSize reveals the frame in fixed-size blocks in reading order.
func EffectBlockSize(size int) Effect {
	return &block{size: size}
}

type block struct {
	size int
	rand bool
}

func (e *block) Name() string {
	return "block"
}

func (e *block) Process(img Image) (<-chan Tile, error) {
	r := img.Bounds()
	size := e.size
	if e.rand {
		size = rand.Intn(32) + 8
	}

	var ts []Tile
	for y := r.Min.Y; y < r.Max.Y; y += size {
		for x := r.Min.X; x < r.Max.X; x += size {
			ts = append(ts, Tile{
				At:  image.Pt(x-r.Min.X, y-r.Min.Y),
				Img: img.SubImage(image.Rect(x, y, x+size, y+size)),
			})
		}
	}

	if e.rand {
		ts = lo.Shuffle(ts)
	}
	return emit(ts), nil
}
