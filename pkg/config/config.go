// Package config holds the settings shared by the command line tools. It is
// bound to flags once and validated once; everything downstream reads the
// typed accessors.
package config

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"smartscreen/pkg/device/handle"
	"smartscreen/pkg/proto"
)

const (
	RevisionA         = "A"
	RevisionB         = "B"
	RevisionC         = "C"
	RevisionUSB       = "USB"
	RevisionWeAct     = "WEACT"
	RevisionSimulated = "SIMU"
)

var Revisions = []string{RevisionA, RevisionB, RevisionC, RevisionUSB, RevisionWeAct, RevisionSimulated}

type Config struct {
	Revision    string
	Port        string
	Remote      string
	Orientation string
	Brightness  int
	Backplate   string
	Width       int
	Height      int

	QueueSize    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ResetDelay   time.Duration
	CloseTimeout time.Duration

	Debug bool

	orientation proto.Orientation
	backplate   *color.RGBA
}

func Default() *Config {
	return &Config{
		Revision:     RevisionA,
		Port:         proto.AutoDetect,
		Orientation:  proto.Portrait.String(),
		Brightness:   20,
		QueueSize:    64,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		ResetDelay:   5 * time.Second,
		CloseTimeout: 5 * time.Second,
	}
}

func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Revision, "revision", c.Revision, fmt.Sprintf("display revision (%s)", strings.Join(Revisions, ", ")))
	fs.StringVar(&c.Port, "port", c.Port, "serial device, or AUTO to detect")
	fs.StringVar(&c.Remote, "remote", c.Remote, "address of a display exported by render, instead of a local one")
	fs.StringVar(&c.Orientation, "orientation", c.Orientation, "portrait, reverse_portrait, landscape or reverse_landscape")
	fs.IntVar(&c.Brightness, "brightness", c.Brightness, "brightness 0..100")
	fs.StringVar(&c.Backplate, "backplate", c.Backplate, "backplate led color as RRGGBB")
	fs.IntVar(&c.Width, "width", c.Width, "native panel width, 0 to detect")
	fs.IntVar(&c.Height, "height", c.Height, "native panel height, 0 to detect")
	fs.IntVar(&c.QueueSize, "queue", c.QueueSize, "request queue size, 0 for synchronous writes")
	fs.DurationVar(&c.ReadTimeout, "read-timeout", c.ReadTimeout, "transport read timeout")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "transport write timeout")
	fs.DurationVar(&c.ResetDelay, "reset-delay", c.ResetDelay, "wait for the device to come back after a reset")
	fs.DurationVar(&c.CloseTimeout, "close-timeout", c.CloseTimeout, "max time to drain queued requests on close")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "debug logging")
}

// Validate checks every field and caches the parsed values.
func (c *Config) Validate() error {
	c.Revision = strings.ToUpper(strings.TrimSpace(c.Revision))
	if c.Remote == "" && !contains(Revisions, c.Revision) {
		return errors.Errorf("unknown revision %q", c.Revision)
	}

	o, err := proto.ParseOrientation(c.Orientation)
	if err != nil {
		return err
	}
	c.orientation = o

	if err := proto.CheckLevel(c.Brightness); err != nil {
		return err
	}

	c.backplate = nil
	if c.Backplate != "" {
		rgb, err := ParseColor(c.Backplate)
		if err != nil {
			return err
		}
		c.backplate = &rgb
	}

	if c.Width < 0 || c.Height < 0 || (c.Width == 0) != (c.Height == 0) {
		return errors.Errorf("width and height must both be set or both be 0, got %dx%d", c.Width, c.Height)
	}
	if c.QueueSize < 0 {
		return errors.Errorf("queue size must not be negative, got %d", c.QueueSize)
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (c *Config) ParsedOrientation() proto.Orientation {
	return c.orientation
}

// BackplateColor is nil when no color was configured.
func (c *Config) BackplateColor() *color.RGBA {
	return c.backplate
}

// Handle is the per-connection part of the configuration.
func (c *Config) Handle() handle.Config {
	return handle.Config{
		NativeWidth:  c.Width,
		NativeHeight: c.Height,
		QueueSize:    c.QueueSize,
		Options: proto.Options{
			ReadTimeout:  c.ReadTimeout,
			WriteTimeout: c.WriteTimeout,
		},
		ResetDelay:   c.ResetDelay,
		CloseTimeout: c.CloseTimeout,
	}
}

// ParseColor reads RRGGBB, with or without a leading #.
func ParseColor(s string) (color.RGBA, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "#"))
	if err != nil || len(b) != 3 {
		return color.RGBA{}, errors.Errorf("invalid color %q, want RRGGBB", s)
	}
	return color.RGBA{R: b[0], G: b[1], B: b[2], A: 0xff}, nil
}
