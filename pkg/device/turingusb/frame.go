package turingusb

import (
	"crypto/cipher"
	"crypto/des"
	"encoding/binary"
	"time"

	"smartscreen/pkg/proto"
)

const (
	Sync         = 10
	Restart      = 11
	Brightness   = 14
	FrameRate    = 15
	PlayVideo    = 98
	ListFiles    = 99
	Storage      = 100
	DisplayImage = 102
	StopVideo    = 111
	PlayImage    = 113
	StopMedia    = 114
	OpenUpload   = 38
	WriteChunk   = 39
	DeleteFile   = 42
	SaveSettings = 125
)

const (
	HeaderSize = 500
	FrameSize  = 512
	ReplySize  = 512
	// MaxBrightness is the firmware level for 100%.
	MaxBrightness = 102
)

const (
	StatusCreated   = "create_success"
	StatusStopped   = "media_stop"
	StatusImagePlay = "play_img_ok"
	StatusDelay     = "delay"
)

var key = []byte("slv3tuzx")

// Header is the 500-byte plaintext command header. The timestamp is the
// number of milliseconds since local midnight.
func Header(op byte, now time.Time) []byte {
	b := make([]byte, HeaderSize)
	b[0] = op
	b[2] = 0x1A
	b[3] = 0x6D
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	binary.LittleEndian.PutUint32(b[4:8], uint32(now.Sub(midnight).Milliseconds()))
	return b
}

// Seal encrypts a header with DES-CBC (the key doubles as IV) into a
// 512-byte frame ending in a1 1a.
func Seal(header []byte) []byte {
	size := (len(header) + des.BlockSize - 1) / des.BlockSize * des.BlockSize
	plain := make([]byte, size)
	copy(plain, header)

	block, err := des.NewCipher(key)
	if err != nil {
		panic(err)
	}
	frame := make([]byte, FrameSize)
	cipher.NewCBCEncrypter(block, key).CryptBlocks(frame[:size], plain)
	frame[510] = 0xA1
	frame[511] = 0x1A
	return frame
}

// Open reverses Seal and returns the 504-byte padded header.
func Open(frame []byte) []byte {
	size := (HeaderSize + des.BlockSize - 1) / des.BlockSize * des.BlockSize
	block, err := des.NewCipher(key)
	if err != nil {
		panic(err)
	}
	plain := make([]byte, size)
	cipher.NewCBCDecrypter(block, key).CryptBlocks(plain, frame[:size])
	return plain
}

func Command(op byte, now time.Time, fields ...byte) []byte {
	h := Header(op, now)
	copy(h[8:], fields)
	return Seal(h)
}

func BrightnessLevel(level int) byte {
	return byte(level * MaxBrightness / 100)
}

func BrightnessCommand(level int, now time.Time) []byte {
	return Command(Brightness, now, BrightnessLevel(level))
}

func FrameRateCommand(fps int, now time.Time) []byte {
	return Command(FrameRate, now, byte(fps))
}

func be32(v int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

// ImageCommand announces a PNG of size bytes; the PNG follows the frame
// unencrypted.
func ImageCommand(size int, now time.Time) []byte {
	return Command(DisplayImage, now, be32(size)...)
}

// PathCommand carries the path length as 4 bytes big endian, four zero
// bytes and the path itself.
func PathCommand(op byte, path string, now time.Time) []byte {
	fields := append(be32(len(path)), 0, 0, 0, 0)
	return Command(op, now, append(fields, path...)...)
}

// ChunkCommand precedes size bytes of upload data.
func ChunkCommand(size int, now time.Time) []byte {
	return Command(WriteChunk, now, be32(size)...)
}

type Settings struct {
	Brightness int
	Startup    byte
	Rotation   proto.Orientation
	Sleep      byte
	Offline    byte
}

// SettingsCommand persists the power-on defaults.
func SettingsCommand(s Settings, now time.Time) []byte {
	return Command(SaveSettings, now,
		BrightnessLevel(s.Brightness), s.Startup, 0, byte(s.Rotation), s.Sleep, s.Offline)
}
