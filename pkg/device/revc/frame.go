package revc

import (
	"bytes"
	"encoding/binary"
	"image"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"smartscreen/pkg/bitmap"
	"smartscreen/pkg/proto"
)

var (
	Hello          = []byte{0x01, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	Options        = []byte{0x7d, 0xef, 0x69, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x2d}
	Restart        = []byte{0x84, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01}
	TurnOff        = []byte{0x83, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01}
	TurnOn         = []byte{0x83, 0xef, 0x69, 0x00, 0x00, 0x00, 0x00}
	SetBrightness  = []byte{0x7b, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	StopVideo      = []byte{0x79, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01}
	StopMedia      = []byte{0x96, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01}
	QueryStatus    = []byte{0xcf, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01}
	StartBitmap    = []byte{0x2c}
	PreUpdate      = []byte{0x86, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01}
	UpdateBitmap   = []byte{0xcc, 0xef, 0x69, 0x00}
	DisplayBitmap  = []byte{0xc8, 0xef, 0x69, 0x00, 0x17, 0x70}
	VideoOverlay   = []byte{0xd0, 0xef, 0x69, 0x00}
	ListFiles      = []byte{0x65, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01}
	DeleteFile     = []byte{0x66, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01}
	FileSize       = []byte{0x6e, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01}
	UploadFile     = []byte{0x6f, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01}
	PlayVideo      = []byte{0x78, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01}
	PlayImage      = []byte{0x8c, 0xef, 0x69, 0x00, 0x00, 0x00, 0x01}
	updateTrailer  = []byte{0xef, 0x69}
	helloReplySize = 23
)

const (
	BlockSize = 250
	ChunkSize = 249

	PadNull        = 0x00
	PadStartBitmap = 0x2c
)

const (
	StartDefault = 0x00
	StartImage   = 0x01
	StartVideo   = 0x02

	NoFlip  = 0x00
	Flip180 = 0x01

	SleepOff = 0x00
)

const (
	Sub21Inch = "chs_21inch"
	Sub5Inch  = "chs_5inch"
	Sub88Inch = "chs_88inch"
)

// Message concatenates prefix and payload and right-pads the result with
// pad up to the next multiple of BlockSize.
func Message(prefix, payload []byte, pad byte) []byte {
	n := len(prefix) + len(payload)
	size := n
	if rem := n % BlockSize; rem != 0 {
		size += BlockSize - rem
	}
	b := make([]byte, n, size)
	copy(b, prefix)
	copy(b[len(prefix):], payload)
	for len(b) < size {
		b = append(b, pad)
	}
	return b
}

// Payload is a raw data message; it carries no prefix.
func Payload(data []byte) []byte {
	return Message(nil, data, PadNull)
}

func Command(prefix []byte, payload ...byte) []byte {
	return Message(prefix, payload, PadNull)
}

func StartBitmapCommand() []byte {
	return Message(StartBitmap, nil, PadStartBitmap)
}

func BrightnessLevel(level int) byte {
	return byte(level * 255 / 100)
}

func BrightnessCommand(level int) []byte {
	return Command(SetBrightness, BrightnessLevel(level))
}

func OptionsCommand(startMode, flip, sleep byte) []byte {
	return Command(Options, startMode, PadNull, flip, sleep)
}

// joinChunks splits data into ChunkSize pieces separated by a single zero
// byte.
func joinChunks(data []byte) []byte {
	return bytes.Join(lo.Chunk(data, ChunkSize), []byte{0x00})
}

// FullImage serializes an image already rotated into the native landscape
// raster.
func FullImage(img image.Image) []byte {
	return joinChunks(bitmap.EncodeBGRA(img))
}

// Update describes a partial draw in the native landscape raster.
type Update struct {
	Prefix []byte
	Row    int
	Col    int
	// Stride is the raster distance between two rows.
	Stride int
	Count  uint32
	Encode func(image.Image) []byte
}

// Build returns the update header and the row body. Each row is addressed
// by a 3-byte offset and a 2-byte width; the body is terminated by ef 69.
func (u Update) Build(img image.Image) ([]byte, []byte) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	pixels := u.Encode(img)
	if w == 0 || h == 0 {
		return nil, nil
	}

	var body bytes.Buffer
	body.Grow(len(pixels) + h*5 + 2)
	for r, l := range lo.Chunk(pixels, len(pixels)/h) {
		offset := (u.Row+r)*u.Stride + u.Col
		body.Write([]byte{byte(offset >> 16), byte(offset >> 8), byte(offset)})
		body.Write([]byte{byte(w >> 8), byte(w)})
		body.Write(l)
	}

	raw := body.Bytes()
	if len(raw) > BlockSize {
		raw = joinChunks(raw)
	}
	raw = append(raw, updateTrailer...)

	size := body.Len() + len(updateTrailer)
	header := make([]byte, 0, len(u.Prefix)+10)
	header = append(header, u.Prefix...)
	header = append(header, byte(size>>16), byte(size>>8), byte(size))
	header = append(header, 0, 0, 0)
	header = append(header, be32(u.Count)...)
	return header, raw
}

func ParseHello(reply []byte) (string, error) {
	s := string(reply)
	for _, sub := range []string{Sub21Inch, Sub5Inch, Sub88Inch} {
		if strings.HasPrefix(s, sub) {
			return sub, nil
		}
	}
	return "", &proto.ProtocolError{Op: "hello", Got: reply, Want: "chs_<size>inch"}
}

// NativeSize is the portrait panel size of a sub-revision.
func NativeSize(sub string) (int, int) {
	switch sub {
	case Sub21Inch:
		return 480, 480
	case Sub88Inch:
		return 480, 1920
	}
	return 480, 800
}

// Stride is the row distance of the native raster. The 8.8" firmware
// addresses rows by panel width.
func Stride(sub string, nativeWidth, nativeHeight int) int {
	if sub == Sub88Inch {
		return nativeWidth
	}
	return nativeHeight
}

// FileCommand addresses a path on the onboard storage.
func FileCommand(prefix []byte, path string) []byte {
	return Message(prefix, []byte(path), PadNull)
}

// UploadCommand announces a file: the size as 4 bytes big endian, then the
// path.
func UploadCommand(path string, size int64) []byte {
	return Message(UploadFile, append(be32(uint32(size)), path...), PadNull)
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// ParseFileSize decodes "result:<bytes>".
func ParseFileSize(reply []byte) (int64, error) {
	s := strings.TrimPrefix(proto.ReplyText(reply), "result:")
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, &proto.ProtocolError{Op: "size", Got: reply, Want: "result:<bytes>"}
	}
	return n, nil
}
