package proto

import (
	"bytes"
	"sync"
	"time"
)

// Loopback is an in-memory Port. Every Write is recorded as one frame and
// reads are served from scripted replies; with no reply left a read behaves
// like a timeout and returns nothing.
type Loopback struct {
	mu       sync.Mutex
	frames   [][]byte
	replies  [][]byte
	writeErr error
	closed   int
}

func NewLoopback(replies ...[]byte) *Loopback {
	return &Loopback{replies: replies}
}

func (l *Loopback) Reply(replies ...[]byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.replies = append(l.replies, replies...)
}

// FailWrites makes every following Write return err.
func (l *Loopback) FailWrites(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
}

func (l *Loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.replies) == 0 {
		return 0, nil
	}
	n := copy(p, l.replies[0])
	if n < len(l.replies[0]) {
		l.replies[0] = l.replies[0][n:]
	} else {
		l.replies = l.replies[1:]
	}
	return n, nil
}

func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writeErr != nil {
		return 0, l.writeErr
	}
	l.frames = append(l.frames, append([]byte(nil), p...))
	return len(p), nil
}

func (l *Loopback) SetReadTimeout(time.Duration) error {
	return nil
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed++
	return nil
}

// Closed reports how many times Close was called.
func (l *Loopback) Closed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Frames returns a copy of every recorded write.
func (l *Loopback) Frames() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.frames))
	for i, f := range l.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Bytes is the concatenation of every recorded write.
func (l *Loopback) Bytes() []byte {
	return bytes.Join(l.Frames(), nil)
}

func (l *Loopback) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = nil
}
