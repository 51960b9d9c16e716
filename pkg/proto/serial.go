package proto

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

type Options struct {
	DTR          bool
	RTS          bool
	BaudRate     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewSerial(name string, revision string, matches ...Match) *Serial {
	return &Serial{name: name, revision: revision, matches: matches}
}

type Serial struct {
	mu       sync.Mutex
	name     string
	revision string
	matches  []Match
	opts     Options
	resolved string
	port     serial.Port

	// wmu orders writes; inflight is closed once a write abandoned by a
	// timeout has left the driver.
	wmu      sync.Mutex
	inflight chan struct{}
}

func (s *Serial) Ports() ([]*enumerator.PortDetails, error) {
	return enumerator.GetDetailedPortsList()
}

// Resolve turns the configured name into an OS device path. Explicit names
// are used as is; AutoDetect walks the USB serial ports.
func (s *Serial) Resolve() (string, error) {
	if s.name != "" && !strings.EqualFold(s.name, AutoDetect) {
		return s.name, nil
	}

	ports, err := s.Ports()
	if err != nil {
		return "", errors.Wrap(err, "enumerate serial ports")
	}

	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		vid := parseHex16(p.VID)
		pid := parseHex16(p.PID)
		for _, m := range s.matches {
			if m.Matches(p.Name, vid, pid, p.SerialNumber) {
				return p.Name, nil
			}
		}
	}

	return "", &DeviceNotFoundError{Revision: s.revision, Match: s.matches}
}

func (s *Serial) Open(opts *Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched, err := s.Resolve()
	if err != nil {
		return err
	}

	port, err := serial.Open(matched, &serial.Mode{BaudRate: opts.BaudRate})
	if err != nil {
		return errors.Wrapf(err, "open %s", matched)
	}

	if err := port.SetDTR(opts.DTR); err != nil {
		_ = port.Close()
		return err
	}

	if err := port.SetRTS(opts.RTS); err != nil {
		_ = port.Close()
		return err
	}

	if opts.ReadTimeout > 0 {
		if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
			_ = port.Close()
			return err
		}
	}

	s.opts = *opts
	s.resolved = matched
	s.port = port
	s.inflight = nil
	return nil
}

// Reopen closes the port and opens it again with the last options, after
// waiting for the device to come back.
func (s *Serial) Reopen(wait time.Duration) error {
	_ = s.Close()
	time.Sleep(wait)
	opts := s.opts
	return s.Open(&opts)
}

// Name returns the resolved device path, empty before Open.
func (s *Serial) Name() string {
	return s.resolved
}

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *Serial) SetReadTimeout(t time.Duration) error {
	if s.port == nil {
		return errors.New("serial port not open")
	}
	return s.port.SetReadTimeout(t)
}

func (s *Serial) Read(p []byte) (n int, err error) {
	if s.port == nil {
		return 0, errors.New("serial port not open")
	}
	return s.port.Read(p)
}

// Write fails with ErrTimeout when the driver does not accept the buffer
// within WriteTimeout. The blocked write keeps the port: following writes
// wait for it within their own timeout and never start next to it.
func (s *Serial) Write(p []byte) (int, error) {
	if s.port == nil {
		return 0, errors.New("serial port not open")
	}
	if s.opts.WriteTimeout <= 0 {
		return s.port.Write(p)
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	timer := time.NewTimer(s.opts.WriteTimeout)
	defer timer.Stop()

	if s.inflight != nil {
		select {
		case <-s.inflight:
			s.inflight = nil
		case <-timer.C:
			return 0, errors.Wrap(ErrTimeout, "previous write still pending")
		}
	}

	var (
		n   int
		err error
	)
	port := s.port
	done := make(chan struct{})
	go func() {
		n, err = port.Write(p)
		close(done)
	}()

	select {
	case <-done:
		return n, err
	case <-timer.C:
		s.inflight = done
		return 0, ErrTimeout
	}
}

func parseHex16(s string) uint16 {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}
