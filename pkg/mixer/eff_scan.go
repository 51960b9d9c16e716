package mixer

import (
	"image"

	"github.com/pkg/errors"
)

// EffectScan reveals the frame top to bottom in full-width strips of rows
// lines. Every strip is one contiguous partial draw.
func EffectScan(rows int) Effect {
	return &scan{rows: rows}
}

type scan struct {
	rows int
}

func (e *scan) Name() string {
	return "scan"
}

func (e *scan) Process(img Image) (<-chan Tile, error) {
	if e.rows <= 0 {
		return nil, errors.Errorf("scan rows must be positive, got %d", e.rows)
	}
	r := img.Bounds()
	var ts []Tile
	for y := r.Min.Y; y < r.Max.Y; y += e.rows {
		ts = append(ts, Tile{
			At:  image.Pt(0, y-r.Min.Y),
			Img: img.SubImage(image.Rect(r.Min.X, y, r.Max.X, y+e.rows)),
		})
	}
	return emit(ts), nil
}
