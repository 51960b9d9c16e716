// Package reva drives the first generation 3.5" panels and the USB monitor
// clones that share their 6-byte command protocol.
package reva

import (
	"encoding/binary"
	"image"
	"image/color"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"smartscreen/pkg/bitmap"
	"smartscreen/pkg/device/handle"
	"smartscreen/pkg/geometry"
	"smartscreen/pkg/proto"
)

const Revision = "A"

var Matches = []proto.Match{
	{SerialNumber: "USB35INCHIPSV2"},
	{VID: 0x1a86, PID: 0x5722},
}

func New(port proto.Port, cfg handle.Config, logger *zap.Logger) (*Display, error) {
	cfg.Revision = Revision
	autoSize := cfg.NativeWidth == 0 || cfg.NativeHeight == 0
	if autoSize {
		cfg.NativeWidth, cfg.NativeHeight = NativeSize(SubTuring35)
	}
	if cfg.Options.BaudRate == 0 {
		cfg.Options.BaudRate = 115200
	}
	cfg.Options.DTR = true
	cfg.Options.RTS = true

	d := &Display{
		h:        handle.New(port, cfg, logger.Named("reva")),
		autoSize: autoSize,
	}
	return d, d.h.Open()
}

type Display struct {
	h        *handle.Handle
	autoSize bool
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
	reply, err := d.h.Exchange("hello", HelloCommand(), 6)
	sub, perr := ParseHello(reply)
	if err != nil || perr != nil {
		d.h.Logger().With(zap.Error(lo.Ternary(err != nil, err, perr))).Warn("hello failed, sub-revision unknown")
		sub = handle.UnknownSubRevision
	}

	d.h.SetSubRevision(sub)
	if d.autoSize {
		d.h.SetNativeSize(NativeSize(sub))
	}
	d.h.MarkInitialized()
	d.h.Logger().With(zap.String("sub", sub)).Info("initialized")
	return nil
}

// Reset reboots the panel; the port disappears meanwhile and is reopened.
func (d *Display) Reset() error {
	return d.h.Call("reset", func() error {
		if err := d.h.WriteLocked(Command(Reset, 0, 0, 0, 0)); err != nil {
			return err
		}
		return d.h.Reopen()
	})
}

// Clear only works in portrait on this firmware, so the orientation is
// switched around it.
func (d *Display) Clear() error {
	o := d.h.Orientation()
	pw, ph := d.h.NativeSize()
	w, h := o.Dims(pw, ph)
	return d.h.Send("clear",
		OrientationCommand(proto.Portrait, pw, ph),
		Command(Clear, 0, 0, 0, 0),
		OrientationCommand(o, w, h),
	)
}

func (d *Display) ScreenOff() error {
	return d.h.Send("screen-off", Command(ScreenOff, 0, 0, 0, 0))
}

func (d *Display) ScreenOn() error {
	return d.h.Send("screen-on", Command(ScreenOn, 0, 0, 0, 0))
}

func (d *Display) SetBrightness(level int) error {
	if err := proto.CheckLevel(level); err != nil {
		return err
	}
	d.h.SetBrightness(level)
	return d.h.Send("set-brightness", BrightnessCommand(level))
}

func (d *Display) SetBackplateLedColor(c color.RGBA) error {
	d.h.Logger().With(zap.Any("color", c)).Info("backplate led not supported, ignored")
	return nil
}

func (d *Display) SetOrientation(o proto.Orientation) error {
	if err := d.h.SetOrientation(o); err != nil {
		return err
	}
	if err := d.h.Send("set-orientation", OrientationCommand(o, d.Width(), d.Height())); err != nil {
		return err
	}
	d.h.MarkReady()
	return nil
}

func (d *Display) DisplayImage(img image.Image, x, y int) error {
	r := geometry.RegionOf(img, x, y)
	if err := r.Check(d.Width(), d.Height()); err != nil {
		return err
	}

	w := geometry.Identity(r)
	frames := [][]byte{Command(DisplayBitmap, w.X0, w.Y0, w.X1, w.Y1)}
	frames = append(frames, lo.Chunk(bitmap.EncodeRGB565(img, binary.LittleEndian), d.Width()*8)...)
	return d.h.Send("display-bitmap", frames...)
}
