package reva

import (
	"bytes"

	"smartscreen/pkg/proto"
)

const (
	Reset          = 101
	Clear          = 102
	ToBlack        = 103
	ScreenOff      = 108
	ScreenOn       = 109
	SetBrightness  = 110
	SetOrientation = 121
	DisplayBitmap  = 197
	Hello          = 69
)

const (
	SubTuring35      = "turing_3.5"
	SubUSBMonitor35  = "usbmonitor_3.5"
	SubUSBMonitor5   = "usbmonitor_5"
	SubUSBMonitor7   = "usbmonitor_7"
	orientationFrame = 16
)

// Command packs four 10-bit coordinates and an opcode into 6 bytes.
func Command(code uint8, x, y, ex, ey int) []byte {
	b := make([]byte, 6)
	pack(b, code, x, y, ex, ey)
	return b
}

func pack(b []byte, code uint8, x, y, ex, ey int) {
	b[0] = byte(x >> 2)
	b[1] = byte(((x & 3) << 6) + (y >> 4))
	b[2] = byte(((y & 15) << 4) + (ex >> 6))
	b[3] = byte(((ex & 63) << 2) + (ey >> 8))
	b[4] = byte(ey & 255)
	b[5] = code
}

// OrientationCommand is the 16-byte orientation frame: an empty command
// followed by the orientation code offset by 100 and the logical size.
func OrientationCommand(o proto.Orientation, width, height int) []byte {
	b := make([]byte, orientationFrame)
	pack(b, SetOrientation, 0, 0, 0, 0)
	b[6] = byte(int(o) + 100)
	b[7] = byte(width >> 8)
	b[8] = byte(width & 255)
	b[9] = byte(height >> 8)
	b[10] = byte(height & 255)
	return b
}

// BrightnessCommand uses the inverted firmware scale: 0 is brightest.
func BrightnessCommand(level int) []byte {
	return Command(SetBrightness, BrightnessLevel(level), 0, 0, 0)
}

func BrightnessLevel(level int) int {
	return int(255 - float64(level)/100*255)
}

func HelloCommand() []byte {
	return bytes.Repeat([]byte{Hello}, 6)
}

var helloReplies = map[byte]string{
	0x01: SubUSBMonitor35,
	0x02: SubUSBMonitor5,
	0x03: SubUSBMonitor7,
}

// ParseHello maps the 6-byte hello reply to a sub-revision.
func ParseHello(reply []byte) (string, error) {
	if len(reply) != 6 {
		return "", &proto.ProtocolError{Op: "hello", Got: reply, Want: "6 bytes"}
	}
	if bytes.Equal(reply, bytes.Repeat(reply[:1], 6)) {
		if sub, ok := helloReplies[reply[0]]; ok {
			return sub, nil
		}
	}
	return SubTuring35, nil
}

// NativeSize is the portrait panel size of a sub-revision.
func NativeSize(sub string) (int, int) {
	switch sub {
	case SubUSBMonitor5:
		return 480, 800
	case SubUSBMonitor7:
		return 600, 1024
	}
	return 320, 480
}
