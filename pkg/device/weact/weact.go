// Package weact drives the WeAct Studio display boards. Orientation is
// handled by the firmware, so drawing uses logical coordinates directly.
package weact

import (
	"encoding/binary"
	"image"
	"image/color"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"smartscreen/pkg/bitmap"
	"smartscreen/pkg/device/handle"
	"smartscreen/pkg/geometry"
	"smartscreen/pkg/proto"
)

const (
	Revision = "WEACT"

	whoAmISize = 64
	fade       = time.Second
)

var Matches = []proto.Match{
	{VID: 0x1a86, PID: 0xfe0c},
	{NameContains: "WeAct"},
}

func New(port proto.Port, cfg handle.Config, logger *zap.Logger) (*Display, error) {
	cfg.Revision = Revision
	autoSize := cfg.NativeWidth == 0 || cfg.NativeHeight == 0
	if autoSize {
		cfg.NativeWidth, cfg.NativeHeight = NativeSize("")
	}
	if cfg.Options.BaudRate == 0 {
		cfg.Options.BaudRate = 115200
	}
	cfg.Options.RTS = true

	d := &Display{
		h:        handle.New(port, cfg, logger.Named("weact")),
		autoSize: autoSize,
	}
	return d, d.h.Open()
}

type Display struct {
	h        *handle.Handle
	autoSize bool
}

// NativeSize is the portrait panel size for a model name.
func NativeSize(model string) (int, int) {
	if strings.Contains(model, "0.96") {
		return 80, 160
	}
	return 320, 480
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

// Close releases the panel before closing the port.
func (d *Display) Close() error {
	if d.h.State() != handle.Closed {
		if err := d.h.Send("free", FreeCommand()); err != nil {
			d.h.Logger().With(zap.Error(err)).Warn("free failed")
		}
	}
	return d.h.Close()
}

func (d *Display) InitializeComm() error {
	reply, err := d.h.Exchange("who-am-i", WhoAmICommand(), whoAmISize)
	model, perr := ParseWhoAmI(reply)
	if err != nil || perr != nil {
		d.h.Logger().With(zap.Error(lo.Ternary(err != nil, err, perr))).Warn("who-am-i failed, sub-revision unknown")
		model = handle.UnknownSubRevision
	}

	d.h.SetSubRevision(model)
	if d.autoSize {
		d.h.SetNativeSize(NativeSize(model))
	}
	d.h.MarkInitialized()
	d.h.Logger().With(zap.String("model", model)).Info("initialized")
	return nil
}

func (d *Display) Reset() error {
	return d.h.Do("reset", func() error {
		if err := d.h.WriteLocked(ResetCommand()); err != nil {
			return err
		}
		return d.h.Reopen()
	}, true)
}

// Clear fills the whole panel with white.
func (d *Display) Clear() error {
	return d.Fill(color.White)
}

// Fill paints the whole panel with c.
func (d *Display) Fill(c color.Color) error {
	r, g, b, _ := c.RGBA()
	w := geometry.Identity(geometry.Region{W: d.Width(), H: d.Height()})
	return d.h.Send("fill", FillCommand(w, bitmap.Pack565(uint8(r>>8), uint8(g>>8), uint8(b>>8))))
}

func (d *Display) ScreenOff() error {
	return d.h.Send("screen-off", BrightnessCommand(0, fade))
}

func (d *Display) ScreenOn() error {
	return d.h.Send("screen-on", BrightnessCommand(d.h.Brightness(), fade))
}

func (d *Display) SetBrightness(level int) error {
	if err := proto.CheckLevel(level); err != nil {
		return err
	}
	d.h.SetBrightness(level)
	return d.h.Send("set-brightness", BrightnessCommand(level, fade))
}

func (d *Display) SetBackplateLedColor(c color.RGBA) error {
	d.h.Logger().With(zap.Any("color", c)).Info("backplate led not supported, ignored")
	return nil
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

// DisplayImage sends the region header and then the pixels one panel line
// at a time.
func (d *Display) DisplayImage(img image.Image, x, y int) error {
	r := geometry.RegionOf(img, x, y)
	if err := r.Check(d.Width(), d.Height()); err != nil {
		return err
	}

	frames := [][]byte{BitmapCommand(geometry.Identity(r))}
	frames = append(frames, lo.Chunk(bitmap.EncodeRGB565(img, binary.LittleEndian), d.Width()*2)...)
	return d.h.Send("display-bitmap", frames...)
}

// EnableHumitureReport asks boards with a sensor to report every period.
func (d *Display) EnableHumitureReport(enable bool, period time.Duration) error {
	if enable && (period <= 0 || period.Milliseconds() > 0xffff) {
		return &proto.InputError{Field: "period", Value: period, Reason: "must be within 1ms..65535ms"}
	}
	return d.h.Send("humiture-report", HumitureCommand(enable, period))
}

// ReadHumiture waits for the next sensor report.
func (d *Display) ReadHumiture() (Humiture, error) {
	var reply []byte
	err := d.h.Call("read-humiture", func() error {
		var err error
		reply, err = d.h.ReadLocked(humitureSize)
		return err
	})
	if err != nil {
		return Humiture{}, err
	}
	return ParseHumiture(reply)
}
