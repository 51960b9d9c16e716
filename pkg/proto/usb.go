package proto

import (
	"context"
	"sync"
	"time"

	"github.com/google/gousb"
	"github.com/pkg/errors"
)

const (
	usbConfig      = 1
	usbEndpointOut = 0x01
	usbEndpointIn  = 0x81
)

func NewUSB(revision string, match Match) *USB {
	return &USB{revision: revision, match: match}
}

// USB is a bulk endpoint pair on the first interface of a VID/PID device.
type USB struct {
	mu       sync.Mutex
	revision string
	match    Match
	opts     Options

	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	out  *gousb.OutEndpoint
	in   *gousb.InEndpoint
}

func (u *USB) Open(opts *Options) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.ctx = gousb.NewContext()
	dev, err := u.ctx.OpenDeviceWithVIDPID(gousb.ID(u.match.VID), gousb.ID(u.match.PID))
	if err != nil {
		u.closeLocked()
		return errors.Wrap(err, "open usb device")
	}
	if dev == nil {
		u.closeLocked()
		return &DeviceNotFoundError{Revision: u.revision, Match: []Match{u.match}}
	}
	u.dev = dev
	_ = dev.SetAutoDetach(true)

	if u.cfg, err = dev.Config(usbConfig); err != nil {
		u.closeLocked()
		return errors.Wrap(err, "usb config")
	}
	if u.intf, err = u.cfg.Interface(0, 0); err != nil {
		u.closeLocked()
		return errors.Wrap(err, "usb interface")
	}
	if u.out, err = u.intf.OutEndpoint(usbEndpointOut); err != nil {
		u.closeLocked()
		return errors.Wrap(err, "usb out endpoint")
	}
	if u.in, err = u.intf.InEndpoint(usbEndpointIn & 0x0f); err != nil {
		u.closeLocked()
		return errors.Wrap(err, "usb in endpoint")
	}

	u.opts = *opts
	return nil
}

func (u *USB) SetReadTimeout(t time.Duration) error {
	u.opts.ReadTimeout = t
	return nil
}

// Read returns what arrived before the read timeout; a timeout is not an
// error.
func (u *USB) Read(p []byte) (int, error) {
	if u.in == nil {
		return 0, errors.New("usb device not open")
	}
	ctx, cancel := u.deadline(u.opts.ReadTimeout)
	defer cancel()

	n, err := u.in.ReadContext(ctx, p)
	if err != nil && ctx.Err() != nil {
		return n, nil
	}
	return n, err
}

func (u *USB) Write(p []byte) (int, error) {
	if u.out == nil {
		return 0, errors.New("usb device not open")
	}
	ctx, cancel := u.deadline(u.opts.WriteTimeout)
	defer cancel()

	n, err := u.out.WriteContext(ctx, p)
	if err != nil && ctx.Err() != nil {
		return n, ErrTimeout
	}
	return n, err
}

func (u *USB) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.closeLocked()
}

func (u *USB) closeLocked() error {
	var err error
	if u.intf != nil {
		u.intf.Close()
		u.intf = nil
	}
	if u.cfg != nil {
		err = u.cfg.Close()
		u.cfg = nil
	}
	if u.dev != nil {
		if e := u.dev.Close(); e != nil && err == nil {
			err = e
		}
		u.dev = nil
	}
	if u.ctx != nil {
		if e := u.ctx.Close(); e != nil && err == nil {
			err = e
		}
		u.ctx = nil
	}
	u.in, u.out = nil, nil
	return err
}

func (u *USB) deadline(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d)
}
