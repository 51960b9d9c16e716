package proto

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrTimeout is returned by Port writes that did not complete in time. It is
// not fatal: callers log it and skip the frame.
var ErrTimeout = errors.New("transport timeout")

// DeviceNotFoundError means auto-detection found no matching port.
type DeviceNotFoundError struct {
	Revision string
	Match    []Match
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("no device found for revision %s (candidates: %v)", e.Revision, e.Match)
}

// ProtocolError is an unexpected reply from the firmware.
type ProtocolError struct {
	Op   string
	Got  []byte
	Want string
}

func (e *ProtocolError) Error() string {
	if len(e.Got) > 32 {
		return fmt.Sprintf("%s: unexpected reply % x... (want %s)", e.Op, e.Got[:32], e.Want)
	}
	return fmt.Sprintf("%s: unexpected reply % x (want %s)", e.Op, e.Got, e.Want)
}

// InputError is a caller contract violation: bad coordinates, out of range
// levels, empty inputs.
type InputError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

func IsDeviceNotFound(err error) bool {
	var de *DeviceNotFoundError
	return errors.As(err, &de)
}

// CheckLevel validates a 0..100 brightness level.
func CheckLevel(level int) error {
	if level < 0 || level > 100 {
		return &InputError{Field: "brightness", Value: level, Reason: "must be within 0..100"}
	}
	return nil
}
