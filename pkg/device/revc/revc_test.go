package revc

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartscreen/pkg/device/handle"
	"smartscreen/pkg/proto"
)

func newDisplay(t *testing.T, cfg handle.Config, replies ...[]byte) (*Display, *proto.Loopback) {
	port := proto.NewLoopback(replies...)
	d, err := New(port, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d, port
}

func panel320(t *testing.T, replies ...[]byte) (*Display, *proto.Loopback) {
	return newDisplay(t, handle.Config{NativeWidth: 320, NativeHeight: 480}, replies...)
}

func fill(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

var (
	red  = color.NRGBA{R: 0xff, A: 0xff}
	blue = color.NRGBA{B: 0xff, A: 0xff}
)

// unjoin drops the separator after every full chunk.
func unjoin(b []byte) []byte {
	var out []byte
	for len(b) > ChunkSize {
		out = append(out, b[:ChunkSize]...)
		b = b[ChunkSize+1:]
	}
	return append(out, b...)
}

func TestPaddingInvariant(t *testing.T) {
	for _, prefix := range [][]byte{nil, StartBitmap, Restart, Options} {
		for l := 0; l <= 3*BlockSize; l++ {
			if len(prefix)+l == 0 {
				continue
			}
			m := Message(prefix, make([]byte, l), PadNull)
			want := (len(prefix) + l + BlockSize - 1) / BlockSize * BlockSize
			require.Len(t, m, want, "prefix %d payload %d", len(prefix), l)
			assert.True(t, bytes.HasPrefix(m, prefix), "prefix %d payload %d", len(prefix), l)
			assert.Equal(t, make([]byte, want-len(prefix)-l), m[len(prefix)+l:])
		}
	}
}

func TestStartBitmapPadding(t *testing.T) {
	assert.Equal(t, bytes.Repeat([]byte{0x2c}, BlockSize), StartBitmapCommand())
}

func TestCommands(t *testing.T) {
	b := BrightnessCommand(100)
	require.Len(t, b, BlockSize)
	assert.Equal(t, SetBrightness, b[:len(SetBrightness)])
	assert.Equal(t, byte(255), b[len(SetBrightness)])
	assert.Equal(t, byte(0), BrightnessCommand(0)[len(SetBrightness)])

	o := OptionsCommand(StartDefault, NoFlip, SleepOff)
	assert.Equal(t, append(append([]byte{}, Options...), 0, 0, 0, 0), o[:len(Options)+4])
}

func TestHello(t *testing.T) {
	pad := func(s string) []byte {
		b := make([]byte, helloReplySize)
		copy(b, s)
		return b
	}
	cases := []struct {
		reply []byte
		sub   string
		w, h  int
	}{
		{pad("chs_5inch.dev1_rom1.87"), Sub5Inch, 480, 800},
		{pad("chs_21inch.dev1_rom1.8"), Sub21Inch, 480, 480},
		{pad("chs_88inch.dev1_rom1.8"), Sub88Inch, 480, 1920},
		{[]byte("chs"), handle.UnknownSubRevision, 480, 800},
	}
	for _, c := range cases {
		d, port := newDisplay(t, handle.Config{}, c.reply)
		require.NoError(t, d.InitializeComm())
		assert.Equal(t, c.sub, d.SubRevision())
		assert.Equal(t, c.w, d.Width())
		assert.Equal(t, c.h, d.Height())
		assert.Equal(t, [][]byte{Command(Hello)}, port.Frames())
	}
}

func TestBrightnessContract(t *testing.T) {
	d, port := panel320(t)
	require.NoError(t, d.SetBrightness(0))
	require.NoError(t, d.SetBrightness(100))
	assert.Equal(t, [][]byte{BrightnessCommand(0), BrightnessCommand(100)}, port.Frames())
	assert.True(t, proto.IsInputError(d.SetBrightness(150)))
	assert.Len(t, port.Frames(), 2)
}

func TestFullFrame(t *testing.T) {
	d, port := panel320(t)

	img := fill(320, 480, blue)
	img.SetNRGBA(0, 0, red)
	require.NoError(t, d.DisplayImage(img, 0, 0))

	frames := port.Frames()
	require.Len(t, frames, 5)
	assert.Equal(t, Command(PreUpdate), frames[0])
	assert.Equal(t, StartBitmapCommand(), frames[1])
	assert.Equal(t, Command(DisplayBitmap), frames[2])
	assert.Equal(t, Command(QueryStatus), frames[4])

	raw := 320 * 480 * 4
	joined := raw + (raw-1)/ChunkSize
	payload := frames[3]
	assert.Zero(t, len(payload)%BlockSize)
	assert.Equal(t, (joined+BlockSize-1)/BlockSize*BlockSize, len(payload))

	// portrait is turned counter-clockwise into the 480x320 raster, so the
	// top-left pixel ends up bottom-left
	pixels := unjoin(payload[:joined])
	require.Len(t, pixels, raw)
	at := func(x, y int) []byte { i := (y*480 + x) * 4; return pixels[i : i+4] }
	assert.Equal(t, []byte{0x00, 0x00, 0xff, 0xff}, at(0, 319))
	assert.Equal(t, []byte{0xff, 0x00, 0x00, 0xff}, at(0, 0))
}

func TestFullFrameLandscapeIsNotRotated(t *testing.T) {
	d, port := panel320(t)
	require.NoError(t, d.SetOrientation(proto.Landscape))
	port.Reset()

	img := fill(480, 320, blue)
	img.SetNRGBA(0, 0, red)
	require.NoError(t, d.DisplayImage(img, 0, 0))

	pixels := unjoin(port.Frames()[3])
	assert.Equal(t, []byte{0x00, 0x00, 0xff, 0xff}, pixels[:4])
}

func TestPartialUpdateGolden(t *testing.T) {
	d, port := panel320(t)
	require.NoError(t, d.SetOrientation(proto.Landscape))
	port.Reset()

	img := fill(2, 1, blue)
	img.SetNRGBA(0, 0, red)
	require.NoError(t, d.DisplayImage(img, 3, 2))

	frames := port.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, Payload([]byte{
		0xcc, 0xef, 0x69, 0x00,
		0x00, 0x00, 0x0d,
		0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}), frames[0])
	assert.Equal(t, Payload([]byte{
		0x00, 0x03, 0xc3, 0x00, 0x02,
		0x00, 0x00, 0xff, 0xff, 0x00, 0x00,
		0xef, 0x69,
	}), frames[1])
	assert.Equal(t, Command(QueryStatus), frames[2])

	port.Reset()
	require.NoError(t, d.DisplayImage(img, 3, 2))
	assert.Equal(t, byte(1), port.Frames()[0][13], "update counter")
}

func TestPartialUpdateGeometry(t *testing.T) {
	cases := []struct {
		o      proto.Orientation
		offset []byte
		width  []byte
		rows   int
	}{
		{proto.Portrait, []byte{0x01, 0x89, 0xd4}, []byte{0x00, 0x32}, 100},
		{proto.ReversePortrait, []byte{0x00, 0x14, 0x5a}, []byte{0x00, 0x32}, 100},
		{proto.Landscape, []byte{0x00, 0x25, 0x8a}, []byte{0x00, 0x64}, 50},
		{proto.ReverseLandscape, []byte{0x01, 0xd6, 0x32}, []byte{0x00, 0x64}, 50},
	}
	for _, c := range cases {
		d, port := panel320(t)
		require.NoError(t, d.SetOrientation(c.o))
		port.Reset()

		require.NoError(t, d.DisplayImage(fill(100, 50, red), 10, 20))
		frames := port.Frames()
		require.Len(t, frames, 3, c.o.String())

		line := 5 + 100*50*3/c.rows
		body := c.rows * line
		size := body + 2
		header := frames[0]
		assert.Equal(t, []byte{byte(size >> 16), byte(size >> 8), byte(size)}, header[4:7], c.o.String())

		data := frames[1]
		assert.Equal(t, c.offset, data[:3], c.o.String())
		assert.Equal(t, c.width, data[3:5], c.o.String())

		joined := body + (body-1)/ChunkSize
		assert.Equal(t, []byte{0xef, 0x69}, data[joined:joined+2], c.o.String())
		rows := unjoin(data[:joined])
		require.Len(t, rows, body)
		// second row advances by one raster stride
		second := (int(c.offset[0])<<16 | int(c.offset[1])<<8 | int(c.offset[2])) + 480
		assert.Equal(t, []byte{byte(second >> 16), byte(second >> 8), byte(second)}, rows[line:line+3], c.o.String())
	}
}

func TestVideoOverlayUsesCompressedPixels(t *testing.T) {
	d, port := panel320(t)
	require.NoError(t, d.SetOrientation(proto.Landscape))
	port.Reset()

	require.NoError(t, d.DisplayImageOnVideo(fill(1, 1, color.NRGBA{R: 0xff, G: 0x80, B: 0x10, A: 0xff}), 0, 0))
	frames := port.Frames()
	assert.Equal(t, VideoOverlay, frames[0][:4])
	assert.Equal(t, Payload([]byte{0, 0, 0, 0, 1, 0x13, 0x83, 0xf0, 0xef, 0x69}), frames[1])
}

func TestDisplayRejectsOverflow(t *testing.T) {
	d, port := panel320(t)
	assert.True(t, proto.IsInputError(d.DisplayImage(fill(10, 10, red), 315, 0)))
	assert.True(t, proto.IsInputError(d.DisplayImageOnVideo(fill(10, 10, red), 0, 475)))
	assert.Empty(t, port.Frames())
}

func TestStorage(t *testing.T) {
	d, port := panel320(t, []byte("result:dir:a/file:x.png/"))
	dirs, files, err := d.ListFiles("/root/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, dirs)
	assert.Equal(t, []string{"x.png"}, files)
	assert.Equal(t, [][]byte{FileCommand(ListFiles, "/root/")}, port.Frames())

	port.Reset()
	port.Reply([]byte("result:1234"))
	n, err := d.FileSize("/root/x.png")
	require.NoError(t, err)
	assert.EqualValues(t, 1234, n)

	port.Reset()
	require.NoError(t, d.PlayVideo("/root/video/a.mp4"))
	require.NoError(t, d.PlayImage("/root/img/a.png"))
	require.NoError(t, d.Delete("/root/img/a.png"))
	assert.Equal(t, [][]byte{
		FileCommand(PlayVideo, "/root/video/a.mp4"),
		FileCommand(PlayImage, "/root/img/a.png"),
		FileCommand(DeleteFile, "/root/img/a.png"),
	}, port.Frames())

	assert.True(t, proto.IsInputError(d.Delete("")))
}

func TestUpload(t *testing.T) {
	d, port := panel320(t, []byte("create_success"))

	data := bytes.Repeat([]byte{7}, uploadChunk+10)
	require.NoError(t, d.Upload("/root/img/a.png", bytes.NewReader(data), int64(len(data))))

	frames := port.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, UploadCommand("/root/img/a.png", int64(len(data))), frames[0])
	assert.Equal(t, data[:uploadChunk], frames[1])
	assert.Equal(t, Payload(data[uploadChunk:]), frames[2])
}

func TestUploadRefused(t *testing.T) {
	d, port := panel320(t, []byte("error"))

	err := d.Upload("/root/a.png", bytes.NewReader([]byte{1}), 1)
	assert.True(t, proto.IsProtocolError(err))
	assert.Len(t, port.Frames(), 1)

	assert.True(t, proto.IsInputError(d.Upload("/root/a.png", bytes.NewReader(nil), 0)))
}

func TestQueuedDrawsDoNotInterleave(t *testing.T) {
	d, port := newDisplay(t, handle.Config{NativeWidth: 320, NativeHeight: 480, QueueSize: 16})
	require.NoError(t, d.SetOrientation(proto.Landscape))

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { done <- d.DisplayImage(fill(2, 1, red), 0, 0) }()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	require.NoError(t, d.Close())

	frames := port.Frames()[1:]
	require.Len(t, frames, 6)
	for i := 0; i < 6; i += 3 {
		assert.Equal(t, UpdateBitmap, frames[i][:4])
		assert.Equal(t, Command(QueryStatus), frames[i+2])
	}
}

func TestUpdateCounterFollowsWireOrder(t *testing.T) {
	const draws = 8
	d, port := newDisplay(t, handle.Config{NativeWidth: 320, NativeHeight: 480, QueueSize: 4})
	require.NoError(t, d.SetOrientation(proto.Landscape))

	done := make(chan error, draws)
	for i := 0; i < draws; i++ {
		go func() { done <- d.DisplayImage(fill(2, 1, red), 5, 5) }()
	}
	for i := 0; i < draws; i++ {
		require.NoError(t, <-done)
	}
	require.NoError(t, d.Close())

	frames := port.Frames()[1:]
	require.Len(t, frames, 3*draws)
	for i := 0; i < draws; i++ {
		header := frames[3*i]
		require.Equal(t, UpdateBitmap, header[:4])
		assert.Equal(t, []byte{0, 0, 0, byte(i)}, header[10:14], "draw %d", i)
	}
}

var (
	_ proto.Control      = (*Display)(nil)
	_ proto.Identified   = (*Display)(nil)
	_ proto.Storage      = (*Display)(nil)
	_ proto.VideoOverlay = (*Display)(nil)
)
