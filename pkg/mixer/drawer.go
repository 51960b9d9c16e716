// Package mixer draws full frames onto a display, optionally through a
// transition effect that splits the frame into partial draws.
package mixer

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"smartscreen/pkg/proto"
)

func NewDrawer(dst proto.Control, logger *zap.Logger, opts ...Option) *Drawer {
	d := &Drawer{
		dev:    dst,
		logger: logger,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

type Option func(d *Drawer)

func WithEffect(e ...Effect) Option {
	return func(d *Drawer) {
		d.effs = e
	}
}

type Drawer struct {
	dev    proto.Control
	logger *zap.Logger
	effs   []Effect
}

// Fit scales and crops img to fill the display in its current orientation.
func (d *Drawer) Fit(img image.Image) image.Image {
	w, h := d.dev.Width(), d.dev.Height()
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		return img
	}
	return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
}

// Canvas draws img as the whole frame.
func (d *Drawer) Canvas(img image.Image) error {
	img = d.Fit(img)

	eff := lo.Sample(d.effs)
	if eff == nil {
		return d.dev.DisplayImage(img, 0, 0)
	}

	src, ok := img.(Image)
	if !ok {
		src = imaging.Clone(img)
	}
	tiles, err := eff.Process(src)
	if err != nil {
		return err
	}

	d.logger.With(zap.String("effect", eff.Name())).Debug("transition")
	var drawErr error
	for t := range tiles {
		// keep draining so the effect goroutine can exit
		if drawErr != nil {
			continue
		}
		drawErr = d.dev.DisplayImage(t.Img, t.At.X, t.At.Y)
	}
	return drawErr
}
