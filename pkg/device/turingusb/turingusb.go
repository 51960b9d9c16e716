// Package turingusb drives the USB bulk panels whose command headers are
// DES encrypted. The firmware only replaces whole frames, so partial draws
// are composed on a canvas and the full canvas is sent as a PNG.
package turingusb

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"smartscreen/pkg/device/handle"
	"smartscreen/pkg/geometry"
	"smartscreen/pkg/proto"
)

const (
	Revision    = "USB"
	SubTuring88 = "turing_8.8"

	maxPolls = 10
)

var Match = proto.Match{VID: 0x1cbe, PID: 0x0088}

func New(port proto.Port, cfg handle.Config, logger *zap.Logger) (*Display, error) {
	cfg.Revision = Revision
	if cfg.NativeWidth == 0 || cfg.NativeHeight == 0 {
		cfg.NativeWidth, cfg.NativeHeight = 480, 1920
	}
	if cfg.Options.ReadTimeout == 0 {
		cfg.Options.ReadTimeout = time.Second
	}
	if cfg.Options.WriteTimeout == 0 {
		cfg.Options.WriteTimeout = 2 * time.Second
	}

	d := &Display{
		h:       handle.New(port, cfg, logger.Named("turingusb")),
		now:     time.Now,
		backoff: 50 * time.Millisecond,
		chunk:   1 << 20,
	}
	d.canvas = imaging.New(d.h.Width(), d.h.Height(), color.Black)
	return d, d.h.Open()
}

type Display struct {
	h       *handle.Handle
	now     func() time.Time
	backoff time.Duration
	chunk   int

	// mu orders canvas updates with their frames.
	mu     sync.Mutex
	canvas *image.NRGBA
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

// transact writes frame and reads one reply. While the firmware answers
// "delay" it is polled with sync commands, at most maxPolls times with a
// growing pause. It runs while owning the wire.
func (d *Display) transact(frame []byte) ([]byte, error) {
	if err := d.h.WriteLocked(frame); err != nil {
		return nil, err
	}
	reply, err := d.h.ReadPacketLocked(ReplySize)
	for attempt := 1; err == nil && proto.HasStatus(reply, StatusDelay); attempt++ {
		if attempt > maxPolls {
			return reply, fmt.Errorf("device still busy after %d polls: %w", maxPolls, proto.ErrTimeout)
		}
		d.h.Logger().With(zap.Int("attempt", attempt)).Debug("device busy, polling")
		time.Sleep(time.Duration(attempt) * d.backoff)
		if err = d.h.WriteLocked(Command(Sync, d.now())); err != nil {
			return nil, err
		}
		reply, err = d.h.ReadPacketLocked(ReplySize)
	}
	return reply, err
}

func (d *Display) query(name string, frame []byte) ([]byte, error) {
	var reply []byte
	err := d.h.Call(name, func() error {
		var err error
		reply, err = d.transact(frame)
		return err
	})
	return reply, err
}

func (d *Display) do(name string, frame []byte) error {
	_, err := d.query(name, frame)
	return err
}

func (d *Display) InitializeComm() error {
	reply, err := d.query("sync", Command(Sync, d.now()))
	sub := SubTuring88
	if err != nil || len(reply) == 0 {
		d.h.Logger().With(zap.Error(err)).Warn("no sync reply, sub-revision unknown")
		sub = handle.UnknownSubRevision
	}
	d.h.SetSubRevision(sub)
	d.h.MarkInitialized()
	d.h.Logger().With(zap.String("sub", sub)).Info("initialized")
	return nil
}

func (d *Display) Reset() error {
	return d.h.Call("restart", func() error {
		if err := d.h.WriteLocked(Command(Restart, d.now())); err != nil {
			return err
		}
		return d.h.Reopen()
	})
}

// Clear paints the canvas white and sends it.
func (d *Display) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.canvas = imaging.New(d.Width(), d.Height(), color.White)
	return d.flush()
}

func (d *Display) ScreenOff() error {
	return d.do("screen-off", BrightnessCommand(0, d.now()))
}

func (d *Display) ScreenOn() error {
	return d.do("screen-on", BrightnessCommand(d.h.Brightness(), d.now()))
}

func (d *Display) SetBrightness(level int) error {
	if err := proto.CheckLevel(level); err != nil {
		return err
	}
	d.h.SetBrightness(level)
	return d.do("set-brightness", BrightnessCommand(level, d.now()))
}

func (d *Display) SetBackplateLedColor(c color.RGBA) error {
	d.h.Logger().With(zap.Any("color", c)).Info("backplate led not supported, ignored")
	return nil
}

// SetOrientation starts a fresh canvas in the new logical size.
func (d *Display) SetOrientation(o proto.Orientation) error {
	if err := d.h.SetOrientation(o); err != nil {
		return err
	}
	d.mu.Lock()
	d.canvas = imaging.New(d.Width(), d.Height(), color.Black)
	d.mu.Unlock()
	d.h.MarkReady()
	return nil
}

func (d *Display) SetFrameRate(fps int) error {
	if fps <= 0 || fps > 255 {
		return &proto.InputError{Field: "fps", Value: fps, Reason: "must be within 1..255"}
	}
	return d.do("set-frame-rate", FrameRateCommand(fps, d.now()))
}

// SaveSettings stores power-on defaults in the device.
func (d *Display) SaveSettings(s Settings) error {
	if err := proto.CheckLevel(s.Brightness); err != nil {
		return err
	}
	return d.do("save-settings", SettingsCommand(s, d.now()))
}

// StorageInfo returns the firmware's storage usage report as sent.
func (d *Display) StorageInfo() (string, error) {
	reply, err := d.query("storage", Command(Storage, d.now()))
	if err != nil {
		return "", err
	}
	return proto.ReplyText(reply), nil
}

func (d *Display) DisplayImage(img image.Image, x, y int) error {
	r := geometry.RegionOf(img, x, y)
	if err := r.Check(d.Width(), d.Height()); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.canvas = imaging.Paste(d.canvas, img, image.Pt(x, y))
	return d.flush()
}

// Canvas returns a copy of the composed frame in logical orientation.
func (d *Display) Canvas() *image.NRGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return imaging.Clone(d.canvas)
}

// flush sends the whole canvas in the native portrait raster. d.mu is held.
func (d *Display) flush() error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, geometry.ToPortraitRaster(d.h.Orientation(), d.canvas), imaging.PNG); err != nil {
		return errors.Wrap(err, "encode frame")
	}
	frame := append(ImageCommand(buf.Len(), d.now()), buf.Bytes()...)
	return d.do("display-image", frame)
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
	reply, err := d.query("list-files", PathCommand(ListFiles, dir, d.now()))
	if err != nil {
		return nil, nil, err
	}
	return proto.ParseFileList(reply)
}

// Upload opens path for writing and streams size bytes from r in chunks,
// owning the device until done.
func (d *Display) Upload(path string, r io.Reader, size int64) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if size <= 0 {
		return &proto.InputError{Field: "size", Value: size, Reason: "must be positive"}
	}

	return d.h.Call("upload", func() error {
		reply, err := d.transact(PathCommand(OpenUpload, path, d.now()))
		if err != nil {
			return err
		}
		if !proto.HasStatus(reply, StatusCreated) {
			return &proto.ProtocolError{Op: "upload", Got: reply, Want: StatusCreated}
		}

		buf := make([]byte, d.chunk)
		for sent := int64(0); sent < size; {
			want := int64(len(buf))
			if size-sent < want {
				want = size - sent
			}
			n, err := io.ReadFull(r, buf[:want])
			if err != nil {
				return errors.Wrapf(err, "read upload source at %d", sent)
			}
			if _, err := d.transact(append(ChunkCommand(n, d.now()), buf[:n]...)); err != nil {
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
	return d.do("delete-file", PathCommand(DeleteFile, path, d.now()))
}

func (d *Display) PlayVideo(path string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	return d.do("play-video", PathCommand(PlayVideo, path, d.now()))
}

func (d *Display) PlayImage(path string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	reply, err := d.query("play-image", PathCommand(PlayImage, path, d.now()))
	if err != nil {
		return err
	}
	if !proto.HasStatus(reply, StatusImagePlay) {
		return &proto.ProtocolError{Op: "play-image", Got: reply, Want: StatusImagePlay}
	}
	return nil
}

// StopMedia stops video and image playback. A missing acknowledgement is
// only logged.
func (d *Display) StopMedia() error {
	return d.h.Call("stop-media", func() error {
		if _, err := d.transact(Command(StopVideo, d.now())); err != nil {
			return err
		}
		reply, err := d.transact(Command(StopMedia, d.now()))
		if err != nil {
			return err
		}
		if !proto.HasStatus(reply, StatusStopped) {
			d.h.Logger().With(zap.String("reply", proto.ReplyText(reply))).Warn("media stop not acknowledged")
		}
		return nil
	})
}
