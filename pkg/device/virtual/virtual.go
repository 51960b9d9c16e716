// Package virtual is a simulated display. It keeps the composed frame in
// memory and logs every call, for running without hardware.
package virtual

import (
	"bytes"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"smartscreen/pkg/geometry"
	"smartscreen/pkg/proto"
)

const Revision = "SIMU"

func New(width, height int, logger *zap.Logger) *Display {
	d := &Display{
		l:            logger.Named("virtual"),
		nativeWidth:  width,
		nativeHeight: height,
		brightness:   100,
		on:           true,
	}
	d.frame = imaging.New(width, height, color.Black)
	return d
}

type Display struct {
	l *zap.Logger

	mu           sync.Mutex
	nativeWidth  int
	nativeHeight int
	orientation  proto.Orientation
	brightness   int
	led          color.RGBA
	on           bool
	closed       bool
	frame        *image.NRGBA
}

func (d *Display) Revision() string {
	return Revision
}

func (d *Display) SubRevision() string {
	return "simulated"
}

func (d *Display) Width() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, _ := d.orientation.Dims(d.nativeWidth, d.nativeHeight)
	return w
}

func (d *Display) Height() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, h := d.orientation.Dims(d.nativeWidth, d.nativeHeight)
	return h
}

func (d *Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.l.Info("close")
	return nil
}

// checkOpen is called with d.mu held.
func (d *Display) checkOpen() error {
	if d.closed {
		return errors.Errorf("revision %s: display is closed", Revision)
	}
	return nil
}

func (d *Display) Reset() error {
	d.l.Info("reset")
	return d.Clear()
}

func (d *Display) InitializeComm() error {
	d.l.Info("initialize")
	return nil
}

func (d *Display) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	d.frame = imaging.New(d.frame.Bounds().Dx(), d.frame.Bounds().Dy(), color.White)
	d.l.Info("clear")
	return nil
}

func (d *Display) ScreenOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	d.on = false
	d.l.Info("screen-off")
	return nil
}

func (d *Display) ScreenOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	d.on = true
	d.l.Info("screen-on")
	return nil
}

func (d *Display) SetBrightness(level int) error {
	if err := proto.CheckLevel(level); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	d.brightness = level
	d.l.With(zap.Int("level", level)).Info("set-brightness")
	return nil
}

func (d *Display) SetBackplateLedColor(c color.RGBA) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	d.led = c
	d.l.With(zap.Any("color", c)).Info("set-backplate")
	return nil
}

func (d *Display) SetOrientation(o proto.Orientation) error {
	if !o.Valid() {
		return &proto.InputError{Field: "orientation", Value: int(o), Reason: "unknown orientation"}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	d.orientation = o
	w, h := o.Dims(d.nativeWidth, d.nativeHeight)
	d.frame = imaging.New(w, h, color.Black)
	d.l.With(zap.Stringer("orientation", o)).Info("set-orientation")
	return nil
}

func (d *Display) DisplayImage(img image.Image, x, y int) error {
	r := geometry.RegionOf(img, x, y)
	if err := r.Check(d.Width(), d.Height()); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	d.frame = imaging.Paste(d.frame, img, image.Pt(x, y))
	d.l.With(
		zap.Int("x", x),
		zap.Int("y", y),
		zap.Int("w", r.W),
		zap.Int("h", r.H),
	).Debug("display-image")
	return nil
}

// Frame returns a copy of what the panel currently shows, in logical
// orientation.
func (d *Display) Frame() *image.NRGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return imaging.Clone(d.frame)
}

func (d *Display) Brightness() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brightness
}

func (d *Display) On() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.on
}

// Snapshot writes the current frame as a PNG.
func (d *Display) Snapshot(fs afero.Fs, path string) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, d.Frame(), imaging.PNG); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, buf.Bytes(), 0644)
}
