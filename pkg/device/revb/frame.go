package revb

import (
	"bytes"

	"smartscreen/pkg/geometry"
	"smartscreen/pkg/proto"
)

const (
	Hello          = 0xCA
	SetOrientation = 0xCB
	DisplayBitmap  = 0xCC
	SetLighting    = 0xCD
	SetBrightness  = 0xCE
)

const (
	SubA01 = "A01"
	SubA02 = "A02"
	SubA11 = "A11"
	SubA12 = "A12"
)

const (
	frameSize   = 10
	payloadSize = 8
	helloMagic  = "HELLO"
)

// Command frames are the opcode, up to 8 zero padded payload bytes and the
// opcode again as trailer.
func Command(code uint8, payload ...byte) []byte {
	if len(payload) > payloadSize {
		payload = payload[:payloadSize]
	}
	b := make([]byte, frameSize)
	b[0] = code
	copy(b[1:], payload)
	b[frameSize-1] = code
	return b
}

func HelloCommand() []byte {
	return Command(Hello, []byte(helloMagic)...)
}

type subKey struct {
	hw, fw byte
}

var subRevisions = map[subKey]string{
	{0x0A, 0x01}: SubA01,
	{0x0A, 0x02}: SubA02,
	{0x0B, 0x01}: SubA11,
	{0x0B, 0x02}: SubA12,
}

// ParseHello validates the 10-byte hello reply and extracts the
// sub-revision from bytes 6 and 7.
func ParseHello(reply []byte) (string, error) {
	if len(reply) != frameSize || reply[0] != Hello || reply[frameSize-1] != Hello ||
		!bytes.Equal(reply[1:6], []byte(helloMagic)) {
		return "", &proto.ProtocolError{Op: "hello", Got: reply, Want: "CA 'HELLO' .. .. .. CA"}
	}
	sub, ok := subRevisions[subKey{reply[6], reply[7]}]
	if !ok {
		return "", &proto.ProtocolError{Op: "hello", Got: reply[6:8], Want: "known sub-revision"}
	}
	return sub, nil
}

// HasBrightnessRange reports whether the sub-revision dims in 256 steps
// instead of only on/off.
func HasBrightnessRange(sub string) bool {
	return sub == SubA02 || sub == SubA12
}

// IsFlagship reports whether the sub-revision has the RGB backplate.
func IsFlagship(sub string) bool {
	return sub == SubA11 || sub == SubA12
}

func BrightnessLevel(sub string, level int) byte {
	if HasBrightnessRange(sub) {
		return byte(level * 255 / 100)
	}
	if level == 0 {
		return 0
	}
	return 1
}

func BrightnessCommand(sub string, level int) []byte {
	return Command(SetBrightness, BrightnessLevel(sub, level))
}

// OrientationCommand only distinguishes portrait from landscape; the
// reversed orientations are emulated by the driver.
func OrientationCommand(o proto.Orientation) []byte {
	if o.IsLandscape() {
		return Command(SetOrientation, 1)
	}
	return Command(SetOrientation, 0)
}

func LightingCommand(r, g, b uint8) []byte {
	return Command(SetLighting, r, g, b)
}

// BitmapCommand announces a region with big-endian 16-bit coordinates.
func BitmapCommand(w geometry.Wire) []byte {
	return Command(DisplayBitmap,
		byte(w.X0>>8), byte(w.X0),
		byte(w.Y0>>8), byte(w.Y0),
		byte(w.X1>>8), byte(w.X1),
		byte(w.Y1>>8), byte(w.Y1),
	)
}

// WireRegion maps a logical region to firmware coordinates. w and h are the
// logical panel size.
func WireRegion(o proto.Orientation, r geometry.Region, w, h int) geometry.Wire {
	if o.IsReverse() {
		return geometry.Reverse180(r, w, h)
	}
	return geometry.Identity(r)
}
