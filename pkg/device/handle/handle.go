// Package handle holds the per-connection state shared by every revision
// driver: the transport, the request queue and the orientation bookkeeping.
package handle

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"smartscreen/pkg/proto"
	"smartscreen/pkg/queue"
)

type State int32

const (
	Closed State = iota
	Open
	Initialized
	Ready
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Initialized:
		return "initialized"
	case Ready:
		return "ready"
	}
	return "closed"
}

const UnknownSubRevision = "unknown"

// DefaultBrightness is the level ScreenOn restores before any SetBrightness.
const DefaultBrightness = 25

type opener interface {
	Open(opts *proto.Options) error
}

type reopener interface {
	Reopen(wait time.Duration) error
}

type Config struct {
	Revision     string
	NativeWidth  int
	NativeHeight int
	// QueueSize 0 runs every operation on the caller's goroutine.
	QueueSize int
	Options   proto.Options
	// ResetDelay is how long a rebooting device needs before the port can be
	// opened again.
	ResetDelay   time.Duration
	CloseTimeout time.Duration
}

func New(port proto.Port, cfg Config, logger *zap.Logger) *Handle {
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 5 * time.Second
	}
	return &Handle{
		port:         port,
		cfg:          cfg,
		logger:       logger,
		nativeWidth:  cfg.NativeWidth,
		nativeHeight: cfg.NativeHeight,
		subRevision:  UnknownSubRevision,
		brightness:   DefaultBrightness,
	}
}

type Handle struct {
	port   proto.Port
	cfg    Config
	logger *zap.Logger
	queue  *queue.Queue

	// wire keeps single port operations whole when a bypassing caller races
	// the consumer.
	wire sync.Mutex

	mu           sync.RWMutex
	orientation  proto.Orientation
	nativeWidth  int
	nativeHeight int
	subRevision  string
	brightness   int

	state atomic.Int32
}

// Open opens the transport and, when configured, starts the consumer.
func (h *Handle) Open() error {
	if o, ok := h.port.(opener); ok {
		opts := h.cfg.Options
		if err := o.Open(&opts); err != nil {
			return err
		}
	}
	if h.cfg.QueueSize > 0 {
		h.queue = queue.New(h.cfg.QueueSize, h.logger)
	}
	h.setState(Open)
	h.logger.With(
		zap.String("revision", h.cfg.Revision),
		zap.Bool("queued", h.queue != nil),
	).Debug("opened")
	return nil
}

func (h *Handle) Logger() *zap.Logger {
	return h.logger
}

func (h *Handle) Revision() string {
	return h.cfg.Revision
}

func (h *Handle) State() State {
	return State(h.state.Load())
}

func (h *Handle) setState(s State) {
	h.state.Store(int32(s))
}

func (h *Handle) MarkInitialized() {
	h.setState(Initialized)
}

func (h *Handle) MarkReady() {
	h.setState(Ready)
}

func (h *Handle) Orientation() proto.Orientation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.orientation
}

func (h *Handle) SetOrientation(o proto.Orientation) error {
	if !o.Valid() {
		return &proto.InputError{Field: "orientation", Value: int(o), Reason: "unknown orientation"}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.orientation = o
	return nil
}

// NativeSize is the orientation independent (portrait) panel size.
func (h *Handle) NativeSize() (int, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.nativeWidth, h.nativeHeight
}

func (h *Handle) SetNativeSize(w, hh int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nativeWidth, h.nativeHeight = w, hh
}

// Width is the panel width in the current orientation.
func (h *Handle) Width() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	w, _ := h.orientation.Dims(h.nativeWidth, h.nativeHeight)
	return w
}

func (h *Handle) Height() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, hh := h.orientation.Dims(h.nativeWidth, h.nativeHeight)
	return hh
}

func (h *Handle) SubRevision() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subRevision
}

func (h *Handle) SetSubRevision(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subRevision = s
}

func (h *Handle) Brightness() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.brightness
}

func (h *Handle) SetBrightness(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.brightness = level
}

// Close drains the queue and closes the transport. It is safe to call more
// than once and never fails; problems are logged.
func (h *Handle) Close() error {
	if State(h.state.Swap(int32(Closed))) == Closed {
		return nil
	}

	if h.queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CloseTimeout)
		if err := h.queue.Stop(ctx); err != nil {
			h.logger.With(zap.Error(err), zap.Int("pending", h.queue.Pending())).Warn("queue not drained before close")
		}
		cancel()
	}

	if err := h.port.Close(); err != nil {
		h.logger.With(zap.Error(err)).Warn("close transport failed")
	}
	h.logger.Debug("closed")
	return nil
}

// Reopen restarts the transport after a device reset.
func (h *Handle) Reopen() error {
	r, ok := h.port.(reopener)
	if !ok {
		return nil
	}
	if err := r.Reopen(h.cfg.ResetDelay); err != nil {
		return errors.Wrap(err, "reopen after reset")
	}
	return nil
}

func (h *Handle) checkOpen() error {
	if h.State() == Closed {
		return errors.Errorf("revision %s: display is closed", h.cfg.Revision)
	}
	return nil
}
