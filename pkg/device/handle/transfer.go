package handle

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"smartscreen/pkg/proto"
	"smartscreen/pkg/queue"
)

const maxDumpLen = 16

// Write puts one frame on the wire. A write timeout is logged and swallowed:
// the display simply misses that refresh.
func (h *Handle) Write(frame []byte) error {
	h.wire.Lock()
	defer h.wire.Unlock()
	return h.contain(h.write(frame))
}

func (h *Handle) write(frame []byte) error {
	start := time.Now()
	n, err := h.port.Write(frame)
	cost := time.Since(start)
	if err != nil {
		return err
	}

	ext := ""
	if len(frame) <= maxDumpLen {
		ext = fmt.Sprintf("%x", frame)
	}

	h.logger.With(
		zap.Int("sent", n),
		zap.String("cost", cost.String()),
		zap.String("data", ext),
	).Debug("transfer")
	return nil
}

// Read collects up to n bytes. A timeout ends the read early and the short
// (possibly empty) buffer is returned without an error.
func (h *Handle) Read(n int) ([]byte, error) {
	h.wire.Lock()
	defer h.wire.Unlock()
	return h.read(n)
}

func (h *Handle) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		m, err := h.port.Read(buf[got:])
		if err != nil {
			return buf[:got], err
		}
		if m == 0 {
			break
		}
		got += m
	}

	h.logger.With(zap.Int("want", n), zap.Int("recv", got)).Debug("receive")
	return buf[:got], nil
}

// Exchange writes frame and reads up to n reply bytes as one operation,
// ordered with the queued traffic.
func (h *Handle) Exchange(name string, frame []byte, n int) ([]byte, error) {
	var reply []byte
	err := h.Call(name, func() error {
		if err := h.write(frame); err != nil {
			return err
		}
		var err error
		reply, err = h.read(n)
		return err
	})
	return reply, err
}

// Do is enqueue-or-execute: with a queue and no bypass the op is queued for
// the consumer, otherwise it runs now. Ops run while owning the wire and use
// WriteLocked/ReadLocked.
func (h *Handle) Do(name string, op queue.Op, bypass bool) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if h.queue == nil || bypass {
		return h.wrap(op)()
	}
	return h.queue.Submit(name, h.wrap(op))
}

// Call runs op in queue order and waits for its result.
func (h *Handle) Call(name string, op queue.Op) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if h.queue == nil {
		return h.wrap(op)()
	}
	return h.queue.Call(name, h.wrap(op))
}

// Send writes frames back to back, never interleaved with other senders.
func (h *Handle) Send(name string, frames ...[]byte) error {
	h.Lock()
	defer h.Unlock()

	for _, f := range frames {
		if err := h.Enqueue(name, f); err != nil {
			return err
		}
	}
	return nil
}

// Lock takes the submit mutex for a hand-built multi-frame sequence.
func (h *Handle) Lock() {
	if h.queue != nil {
		h.queue.Lock()
		return
	}
	h.wire.Lock()
}

func (h *Handle) Unlock() {
	if h.queue != nil {
		h.queue.Unlock()
		return
	}
	h.wire.Unlock()
}

// Enqueue adds one frame write to a sequence started with Lock.
func (h *Handle) Enqueue(name string, frame []byte) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if h.queue == nil {
		// the wire mutex is already held through Lock
		return h.contain(h.write(frame))
	}
	return h.queue.Enqueue(name, h.wrap(func() error {
		return h.write(frame)
	}))
}

// EnqueueOp adds an arbitrary operation to a sequence started with Lock.
func (h *Handle) EnqueueOp(name string, op queue.Op) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if h.queue == nil {
		return h.contain(op())
	}
	return h.queue.Enqueue(name, h.wrap(op))
}

// ReadLocked reads from the port inside an operation that already owns the
// wire (an EnqueueOp op or a Lock sequence).
func (h *Handle) ReadLocked(n int) ([]byte, error) {
	return h.read(n)
}

// ReadPacketLocked performs a single port read of at most n bytes, for
// packet transports where one read is one reply.
func (h *Handle) ReadPacketLocked(n int) ([]byte, error) {
	buf := make([]byte, n)
	m, err := h.port.Read(buf)
	h.logger.With(zap.Int("want", n), zap.Int("recv", m)).Debug("receive")
	return buf[:m], err
}

// WriteLocked is Write for code that already owns the wire.
func (h *Handle) WriteLocked(frame []byte) error {
	return h.contain(h.write(frame))
}

func (h *Handle) wrap(op queue.Op) queue.Op {
	return func() error {
		h.wire.Lock()
		defer h.wire.Unlock()
		return h.contain(op())
	}
}

func (h *Handle) contain(err error) error {
	if err != nil && proto.IsTimeout(err) {
		h.logger.With(zap.Error(err)).Warn("transfer timed out, frame skipped")
		return nil
	}
	return err
}
