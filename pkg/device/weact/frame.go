package weact

import (
	"bytes"
	"encoding/binary"
	"time"

	"smartscreen/pkg/geometry"
	"smartscreen/pkg/proto"
)

const (
	SetOrientation = 0x02
	SetBrightness  = 0x03
	Fill           = 0x04
	SetBitmap      = 0x05
	HumitureReport = 0x06
	Free           = 0x07
	SystemReset    = 0x40
	WhoAmI         = 0x81
	End            = 0x0A
)

func le16(b []byte, v int) []byte {
	return append(b, byte(v), byte(v>>8))
}

func region(b []byte, w geometry.Wire) []byte {
	b = le16(b, w.X0)
	b = le16(b, w.Y0)
	b = le16(b, w.X1)
	return le16(b, w.Y1)
}

// BitmapCommand announces a region whose RGB565 pixels follow.
func BitmapCommand(w geometry.Wire) []byte {
	b := region([]byte{SetBitmap}, w)
	return append(b, End)
}

func FillCommand(w geometry.Wire, rgb565 uint16) []byte {
	b := region([]byte{Fill}, w)
	b = le16(b, int(rgb565))
	return append(b, End)
}

func BrightnessLevel(level int) byte {
	return byte(level * 255 / 100)
}

// BrightnessCommand fades to level over fade.
func BrightnessCommand(level int, fade time.Duration) []byte {
	b := le16([]byte{SetBrightness, BrightnessLevel(level)}, int(fade.Milliseconds()))
	return append(b, End)
}

func OrientationCommand(o proto.Orientation) []byte {
	return []byte{SetOrientation, byte(o), End}
}

func HumitureCommand(enable bool, period time.Duration) []byte {
	en := byte(0)
	if enable {
		en = 1
	}
	b := le16([]byte{HumitureReport, en}, int(period.Milliseconds()))
	return append(b, End)
}

func WhoAmICommand() []byte {
	return []byte{WhoAmI, End}
}

func ResetCommand() []byte {
	return []byte{SystemReset, End}
}

func FreeCommand() []byte {
	return []byte{Free, End}
}

// ParseWhoAmI extracts the model name from "81 <ascii> 0A".
func ParseWhoAmI(reply []byte) (string, error) {
	if len(reply) < 3 || reply[0] != WhoAmI {
		return "", &proto.ProtocolError{Op: "who-am-i", Got: reply, Want: "81 <model> 0a"}
	}
	end := bytes.IndexByte(reply, End)
	if end < 2 {
		return "", &proto.ProtocolError{Op: "who-am-i", Got: reply, Want: "81 <model> 0a"}
	}
	return string(reply[1:end]), nil
}

// Humiture is one sensor report.
type Humiture struct {
	// Temperature in degrees Celsius.
	Temperature float64
	// Humidity in percent.
	Humidity float64
}

const humitureSize = 6

// ParseHumiture decodes "06 <temp int16 LE, centi-degrees> <humidity uint16
// LE, centi-percent> 0A".
func ParseHumiture(reply []byte) (Humiture, error) {
	if len(reply) < humitureSize || reply[0] != HumitureReport || reply[5] != End {
		return Humiture{}, &proto.ProtocolError{Op: "humiture", Got: reply, Want: "06 tt tt hh hh 0a"}
	}
	return Humiture{
		Temperature: float64(int16(binary.LittleEndian.Uint16(reply[1:3]))) / 100,
		Humidity:    float64(binary.LittleEndian.Uint16(reply[3:5])) / 100,
	}, nil
}
