// Package revb drives the 10-byte framed panels (XuanFang and its flagship
// variant with an RGB backplate). The firmware only knows portrait and
// landscape; the reversed orientations are drawn rotated by 180 degrees.
package revb

import (
	"encoding/binary"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"smartscreen/pkg/bitmap"
	"smartscreen/pkg/device/handle"
	"smartscreen/pkg/geometry"
	"smartscreen/pkg/proto"
)

const Revision = "B"

var Matches = []proto.Match{
	{SerialNumber: "2017-2-25"},
}

func New(port proto.Port, cfg handle.Config, logger *zap.Logger) (*Display, error) {
	cfg.Revision = Revision
	if cfg.NativeWidth == 0 || cfg.NativeHeight == 0 {
		cfg.NativeWidth, cfg.NativeHeight = 320, 480
	}
	if cfg.Options.BaudRate == 0 {
		cfg.Options.BaudRate = 115200
	}
	cfg.Options.RTS = true

	d := &Display{h: handle.New(port, cfg, logger.Named("revb"))}
	return d, d.h.Open()
}

type Display struct {
	h *handle.Handle
}

func (d *Display) Revision() string {
	return Revision
}

func (d *Display) SubRevision() string {
	return d.h.SubRevision()
}

func (d *Display) Width() int {
	return d.h.Width()
}

func (d *Display) Height() int {
	return d.h.Height()
}

func (d *Display) Close() error {
	return d.h.Close()
}

func (d *Display) InitializeComm() error {
	reply, err := d.h.Exchange("hello", HelloCommand(), frameSize)
	sub, perr := ParseHello(reply)
	if err != nil || perr != nil {
		d.h.Logger().With(zap.Error(lo.Ternary(err != nil, err, perr))).Warn("hello failed, sub-revision unknown")
		sub = handle.UnknownSubRevision
	}

	d.h.SetSubRevision(sub)
	d.h.MarkInitialized()
	d.h.Logger().With(
		zap.String("sub", sub),
		zap.Bool("flagship", IsFlagship(sub)),
		zap.Bool("brightness_range", HasBrightnessRange(sub)),
	).Info("initialized")
	return nil
}

// Reset has no opcode on this family and clears the screen instead.
func (d *Display) Reset() error {
	d.h.Logger().Info("hardware reset not supported, clearing instead")
	return d.Clear()
}

// Clear paints the whole panel white; the firmware has no clear command.
func (d *Display) Clear() error {
	return d.DisplayImage(imaging.New(d.Width(), d.Height(), color.White), 0, 0)
}

func (d *Display) ScreenOff() error {
	return d.h.Send("screen-off", BrightnessCommand(d.h.SubRevision(), 0))
}

// ScreenOn restores the last brightness set.
func (d *Display) ScreenOn() error {
	return d.h.Send("screen-on", BrightnessCommand(d.h.SubRevision(), d.h.Brightness()))
}

func (d *Display) SetBrightness(level int) error {
	if err := proto.CheckLevel(level); err != nil {
		return err
	}
	d.h.SetBrightness(level)
	return d.h.Send("set-brightness", BrightnessCommand(d.h.SubRevision(), level))
}

func (d *Display) SetBackplateLedColor(c color.RGBA) error {
	if !IsFlagship(d.h.SubRevision()) {
		d.h.Logger().With(zap.String("sub", d.h.SubRevision())).Info("backplate led only on flagship panels, ignored")
		return nil
	}
	return d.h.Send("set-lighting", LightingCommand(c.R, c.G, c.B))
}

func (d *Display) SetOrientation(o proto.Orientation) error {
	if err := d.h.SetOrientation(o); err != nil {
		return err
	}
	if err := d.h.Send("set-orientation", OrientationCommand(o)); err != nil {
		return err
	}
	d.h.MarkReady()
	return nil
}

func (d *Display) DisplayImage(img image.Image, x, y int) error {
	w, h := d.Width(), d.Height()
	r := geometry.RegionOf(img, x, y)
	if err := r.Check(w, h); err != nil {
		return err
	}

	o := d.h.Orientation()
	if o.IsReverse() {
		img = geometry.Rotate(img, 180)
	}

	frames := [][]byte{BitmapCommand(WireRegion(o, r, w, h))}
	frames = append(frames, lo.Chunk(bitmap.EncodeRGB565(img, binary.BigEndian), w*8)...)
	return d.h.Send("display-bitmap", frames...)
}
