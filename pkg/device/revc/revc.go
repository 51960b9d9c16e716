// Package revc drives the large panels (2.1", 5" and 8.8") whose firmware
// takes 250-byte aligned messages, draws in a native landscape raster and
// exposes onboard storage for images and videos.
package revc

import (
	"image"
	"image/color"
	"io"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"smartscreen/pkg/bitmap"
	"smartscreen/pkg/device/handle"
	"smartscreen/pkg/geometry"
	"smartscreen/pkg/proto"
)

const Revision = "C"

const (
	statusSize    = 1024
	listSize      = 10240
	uploadChunk   = 16 * BlockSize
	defaultReboot = 5 * time.Second
)

var Matches = []proto.Match{
	{SerialNumber: "USB7INCH"},
	{SerialNumber: "CT21INCH"},
	{SerialNumber: "CT88INCH"},
	{SerialNumber: "20080411"},
}

func New(port proto.Port, cfg handle.Config, logger *zap.Logger) (*Display, error) {
	cfg.Revision = Revision
	autoSize := cfg.NativeWidth == 0 || cfg.NativeHeight == 0
	if autoSize {
		cfg.NativeWidth, cfg.NativeHeight = NativeSize(Sub5Inch)
	}
	if cfg.Options.BaudRate == 0 {
		cfg.Options.BaudRate = 115200
	}
	if cfg.ResetDelay == 0 {
		cfg.ResetDelay = defaultReboot
	}
	cfg.Options.RTS = true

	d := &Display{
		h:        handle.New(port, cfg, logger.Named("revc")),
		autoSize: autoSize,
	}
	return d, d.h.Open()
}

type Display struct {
	h        *handle.Handle
	autoSize bool
	// updates numbers partial draws; the firmware expects it to grow.
	updates atomic.Uint32
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
	reply, err := d.h.Exchange("hello", Command(Hello), helloReplySize)
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

	w, h := d.h.NativeSize()
	d.h.Logger().With(zap.String("sub", sub), zap.Int("width", w), zap.Int("height", h)).Info("initialized")
	return nil
}

// Reset restarts the firmware and reopens the port once it is back.
func (d *Display) Reset() error {
	return d.h.Do("reset", func() error {
		if err := d.h.WriteLocked(Command(Restart)); err != nil {
			return err
		}
		return d.h.Reopen()
	}, true)
}

// Clear draws a white portrait frame; the firmware has no clear command.
func (d *Display) Clear() error {
	pw, ph := d.h.NativeSize()
	return d.displayFull(imaging.New(pw, ph, color.White), proto.Portrait)
}

func (d *Display) ScreenOff() error {
	d.h.Lock()
	defer d.h.Unlock()

	if err := d.h.Enqueue("stop-video", Command(StopVideo)); err != nil {
		return err
	}
	if err := d.h.EnqueueOp("stop-media", d.exchange(Command(StopMedia), statusSize)); err != nil {
		return err
	}
	return d.h.Enqueue("turn-off", Command(TurnOff))
}

func (d *Display) ScreenOn() error {
	return d.h.Send("turn-on", Command(TurnOn))
}

func (d *Display) SetBrightness(level int) error {
	if err := proto.CheckLevel(level); err != nil {
		return err
	}
	d.h.SetBrightness(level)
	return d.h.Do("set-brightness", func() error {
		return d.h.WriteLocked(BrightnessCommand(level))
	}, true)
}

func (d *Display) SetBackplateLedColor(c color.RGBA) error {
	d.h.Logger().With(zap.Any("color", c)).Info("backplate led not supported, ignored")
	return nil
}

// SetOrientation keeps the firmware unflipped; every orientation is drawn
// by rotating in software.
func (d *Display) SetOrientation(o proto.Orientation) error {
	if err := d.h.SetOrientation(o); err != nil {
		return err
	}
	if err := d.h.Send("set-options", OptionsCommand(StartDefault, NoFlip, SleepOff)); err != nil {
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

	if x == 0 && y == 0 && r.W == w && r.H == h {
		return d.displayFull(img, d.h.Orientation())
	}
	return d.displayUpdate("update-bitmap", UpdateBitmap, bitmap.EncodeBGR, img, x, y)
}

// DisplayImageOnVideo draws over a video playing from storage, using the
// 4-bit per channel pixel format.
func (d *Display) DisplayImageOnVideo(img image.Image, x, y int) error {
	r := geometry.RegionOf(img, x, y)
	if err := r.Check(d.Width(), d.Height()); err != nil {
		return err
	}
	return d.displayUpdate("video-overlay", VideoOverlay, bitmap.EncodeCompressedBGRA, img, x, y)
}

func (d *Display) displayFull(img image.Image, o proto.Orientation) error {
	payload := Payload(FullImage(geometry.Rotate(img, geometry.FullLandscapeRotation(o))))

	d.h.Lock()
	defer d.h.Unlock()

	for _, f := range [][]byte{Command(PreUpdate), StartBitmapCommand(), Command(DisplayBitmap)} {
		if err := d.h.Enqueue("display-bitmap", f); err != nil {
			return err
		}
	}
	if err := d.h.EnqueueOp("display-bitmap", d.exchange(payload, statusSize)); err != nil {
		return err
	}
	return d.h.EnqueueOp("query-status", d.exchange(Command(QueryStatus), statusSize))
}

func (d *Display) displayUpdate(name string, prefix []byte, enc func(image.Image) []byte, img image.Image, x, y int) error {
	o := d.h.Orientation()
	pw, ph := d.h.NativeSize()
	rot, row, col := geometry.ToLandscapeRaster(o, img, x, y, pw, ph)

	// the count is taken under the submit lock so it grows in wire order
	d.h.Lock()
	defer d.h.Unlock()

	header, body := Update{
		Prefix: prefix,
		Row:    row,
		Col:    col,
		Stride: Stride(d.h.SubRevision(), pw, ph),
		Count:  d.updates.Inc() - 1,
		Encode: enc,
	}.Build(rot)

	if err := d.h.Enqueue(name, Payload(header)); err != nil {
		return err
	}
	if err := d.h.Enqueue(name, Payload(body)); err != nil {
		return err
	}
	return d.h.EnqueueOp("query-status", d.exchange(Command(QueryStatus), statusSize))
}

// exchange writes frame and drains up to n reply bytes. It runs while
// owning the wire.
func (d *Display) exchange(frame []byte, n int) func() error {
	return func() error {
		if err := d.h.WriteLocked(frame); err != nil {
			return err
		}
		reply, err := d.h.ReadLocked(n)
		if err != nil {
			return err
		}
		if len(reply) > 0 {
			d.h.Logger().With(zap.String("status", proto.ReplyText(reply))).Debug("reply")
		}
		return nil
	}
}

// query writes frame and returns up to n reply bytes in queue order.
func (d *Display) query(name string, frame []byte, n int) ([]byte, error) {
	var reply []byte
	err := d.h.Call(name, func() error {
		if err := d.h.WriteLocked(frame); err != nil {
			return err
		}
		var err error
		reply, err = d.h.ReadLocked(n)
		return err
	})
	return reply, err
}

func checkPath(path string) error {
	if path == "" {
		return &proto.InputError{Field: "path", Value: path, Reason: "must not be empty"}
	}
	return nil
}

func (d *Display) ListFiles(dir string) ([]string, []string, error) {
	if err := checkPath(dir); err != nil {
		return nil, nil, err
	}
	reply, err := d.query("list-files", FileCommand(ListFiles, dir), listSize)
	if err != nil {
		return nil, nil, err
	}
	return proto.ParseFileList(reply)
}

// FileSize returns the size in bytes of a stored file.
func (d *Display) FileSize(path string) (int64, error) {
	if err := checkPath(path); err != nil {
		return 0, err
	}
	reply, err := d.query("file-size", FileCommand(FileSize, path), statusSize)
	if err != nil {
		return 0, err
	}
	return ParseFileSize(reply)
}

// Upload streams size bytes from r to path. The transfer owns the port
// until it completes.
func (d *Display) Upload(path string, r io.Reader, size int64) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if size <= 0 {
		return &proto.InputError{Field: "size", Value: size, Reason: "must be positive"}
	}

	return d.h.Call("upload", func() error {
		if err := d.h.WriteLocked(UploadCommand(path, size)); err != nil {
			return err
		}
		reply, err := d.h.ReadLocked(statusSize)
		if err != nil {
			return err
		}
		if !proto.HasStatus(reply, "create_success") {
			return &proto.ProtocolError{Op: "upload", Got: reply, Want: "create_success"}
		}

		buf := make([]byte, uploadChunk)
		sent := int64(0)
		for sent < size {
			want := int64(len(buf))
			if size-sent < want {
				want = size - sent
			}
			n, err := io.ReadFull(r, buf[:want])
			if err != nil {
				return errors.Wrapf(err, "read upload source at %d", sent)
			}
			if err := d.h.WriteLocked(Payload(buf[:n])); err != nil {
				return err
			}
			sent += int64(n)
		}
		d.h.Logger().With(zap.String("path", path), zap.Int64("size", size)).Info("uploaded")
		return nil
	})
}

func (d *Display) Delete(path string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	return d.h.Send("delete-file", FileCommand(DeleteFile, path))
}

func (d *Display) PlayVideo(path string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	return d.h.Send("play-video", FileCommand(PlayVideo, path))
}

func (d *Display) PlayImage(path string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	return d.h.Send("play-image", FileCommand(PlayImage, path))
}

func (d *Display) StopMedia() error {
	d.h.Lock()
	defer d.h.Unlock()

	if err := d.h.Enqueue("stop-video", Command(StopVideo)); err != nil {
		return err
	}
	return d.h.EnqueueOp("stop-media", d.exchange(Command(StopMedia), statusSize))
}
