package turingusb

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"smartscreen/pkg/device/handle"
	"smartscreen/pkg/proto"
)

var fixed = time.Date(2026, 10, 19, 1, 2, 3, 4e6, time.Local)

func newDisplay(t *testing.T, cfg handle.Config, logger *zap.Logger, replies ...[]byte) (*Display, *proto.Loopback) {
	port := proto.NewLoopback(replies...)
	d, err := New(port, cfg, logger)
	require.NoError(t, err)
	d.now = func() time.Time { return fixed }
	d.backoff = 0
	t.Cleanup(func() { _ = d.Close() })
	return d, port
}

func small(t *testing.T, replies ...[]byte) (*Display, *proto.Loopback) {
	return newDisplay(t, handle.Config{NativeWidth: 4, NativeHeight: 8}, zap.NewNop(), replies...)
}

func fill(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

func TestHeader(t *testing.T) {
	h := Header(Sync, fixed)
	require.Len(t, h, HeaderSize)
	assert.Equal(t, byte(Sync), h[0])
	assert.Equal(t, byte(0), h[1])
	assert.Equal(t, []byte{0x1A, 0x6D}, h[2:4])
	assert.Equal(t, uint32(3723004), binary.LittleEndian.Uint32(h[4:8]))
}

func TestSealRoundTrip(t *testing.T) {
	frame := Command(Brightness, fixed, 51)
	require.Len(t, frame, FrameSize)
	assert.Equal(t, []byte{0xA1, 0x1A}, frame[510:])
	assert.Equal(t, make([]byte, 6), frame[504:510])

	want := Header(Brightness, fixed)
	want[8] = 51
	assert.NotEqual(t, want, frame[:HeaderSize])

	plain := Open(frame)
	require.Len(t, plain, 504)
	assert.Equal(t, want, plain[:HeaderSize])
	assert.Equal(t, make([]byte, 4), plain[HeaderSize:])
}

func TestSealIsDeterministic(t *testing.T) {
	assert.Equal(t, Command(Sync, fixed), Command(Sync, fixed))
	assert.NotEqual(t, Command(Sync, fixed), Command(Sync, fixed.Add(time.Millisecond)))
}

func TestPathCommand(t *testing.T) {
	plain := Open(PathCommand(ListFiles, "/img", fixed))
	assert.Equal(t, byte(ListFiles), plain[0])
	assert.Equal(t, []byte{0, 0, 0, 4, 0, 0, 0, 0}, plain[8:16])
	assert.Equal(t, "/img", string(plain[16:20]))
	assert.Zero(t, plain[20])
}

func TestBrightness(t *testing.T) {
	d, port := small(t)
	require.NoError(t, d.SetBrightness(0))
	require.NoError(t, d.SetBrightness(100))
	require.NoError(t, d.SetBrightness(50))

	frames := port.Frames()
	require.Len(t, frames, 3)
	for i, want := range []byte{0, MaxBrightness, 51} {
		plain := Open(frames[i])
		assert.Equal(t, byte(Brightness), plain[0])
		assert.Equal(t, want, plain[8])
	}

	assert.True(t, proto.IsInputError(d.SetBrightness(150)))
	assert.Len(t, port.Frames(), 3)
}

func TestScreenOnBeforeSetBrightness(t *testing.T) {
	d, port := small(t)
	require.NoError(t, d.ScreenOff())
	require.NoError(t, d.ScreenOn())

	frames := port.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, byte(0), Open(frames[0])[8])
	assert.Equal(t, byte(handle.DefaultBrightness*MaxBrightness/100), Open(frames[1])[8])
	assert.NotZero(t, Open(frames[1])[8])
}

func TestDelayIsPolled(t *testing.T) {
	d, port := small(t, []byte("delay"), []byte("delay"), []byte("ok"))
	require.NoError(t, d.SetBrightness(10))

	frames := port.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, byte(Brightness), Open(frames[0])[0])
	assert.Equal(t, byte(Sync), Open(frames[1])[0])
	assert.Equal(t, byte(Sync), Open(frames[2])[0])
}

func TestDelayPollingIsBounded(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	replies := make([][]byte, 0, maxPolls+5)
	for i := 0; i < maxPolls+5; i++ {
		replies = append(replies, []byte("delay"))
	}
	d, port := newDisplay(t, handle.Config{NativeWidth: 4, NativeHeight: 8}, zap.New(core), replies...)

	assert.NoError(t, d.SetBrightness(10))
	assert.Len(t, port.Frames(), 1+maxPolls)
	assert.Equal(t, 1, logs.FilterMessage("transfer timed out, frame skipped").Len())
}

func TestInitializeComm(t *testing.T) {
	d, port := small(t, []byte("sync_ok"))
	require.NoError(t, d.InitializeComm())
	assert.Equal(t, SubTuring88, d.SubRevision())
	assert.Equal(t, byte(Sync), Open(port.Frames()[0])[0])

	d, _ = small(t)
	require.NoError(t, d.InitializeComm())
	assert.Equal(t, handle.UnknownSubRevision, d.SubRevision())
}

func decodeFrame(t *testing.T, frame []byte) image.Image {
	plain := Open(frame)
	require.Equal(t, byte(DisplayImage), plain[0])
	size := binary.BigEndian.Uint32(plain[8:12])
	require.EqualValues(t, len(frame)-FrameSize, size)

	img, err := imaging.Decode(bytes.NewReader(frame[FrameSize:]))
	require.NoError(t, err)
	return img
}

func TestPartialDrawsAccumulate(t *testing.T) {
	d, port := small(t)

	require.NoError(t, d.DisplayImage(fill(2, 2, color.White), 2, 6))
	require.NoError(t, d.DisplayImage(fill(1, 1, color.NRGBA{R: 0xff, A: 0xff}), 0, 0))

	frames := port.Frames()
	require.Len(t, frames, 2)

	img := decodeFrame(t, frames[1])
	assert.Equal(t, image.Rect(0, 0, 4, 8), img.Bounds())
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.EqualValues(t, 0xffff, r)
	r, g, b, _ := img.At(3, 7).RGBA()
	assert.EqualValues(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b})
	r, _, _, _ = img.At(1, 1).RGBA()
	assert.Zero(t, r)
}

func TestLandscapeCanvasIsSentAsPortrait(t *testing.T) {
	d, port := small(t)
	require.NoError(t, d.SetOrientation(proto.Landscape))
	assert.Equal(t, 8, d.Width())
	assert.Equal(t, 4, d.Height())
	assert.Equal(t, image.Rect(0, 0, 8, 4), d.Canvas().Bounds())
	assert.Empty(t, port.Frames())

	require.NoError(t, d.DisplayImage(fill(1, 1, color.NRGBA{R: 0xff, A: 0xff}), 0, 0))
	img := decodeFrame(t, port.Frames()[0])
	assert.Equal(t, image.Rect(0, 0, 4, 8), img.Bounds())
	r, _, _, _ := img.At(3, 0).RGBA()
	assert.EqualValues(t, 0xffff, r)
}

// redBounds is the smallest rectangle holding every red pixel of img.
func redBounds(img image.Image) image.Rectangle {
	var out image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, _, _ := img.At(x, y).RGBA()
			if r > 0x8000 && g < 0x8000 {
				out = out.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return out
}

func TestCanvasPlacementPerOrientation(t *testing.T) {
	cases := []struct {
		o    proto.Orientation
		want image.Rectangle
	}{
		{proto.Portrait, image.Rect(10, 20, 110, 70)},
		{proto.ReversePortrait, image.Rect(210, 410, 310, 460)},
		{proto.Landscape, image.Rect(250, 10, 300, 110)},
		{proto.ReverseLandscape, image.Rect(20, 370, 70, 470)},
	}
	for _, c := range cases {
		d, port := newDisplay(t, handle.Config{NativeWidth: 320, NativeHeight: 480}, zap.NewNop())
		require.NoError(t, d.SetOrientation(c.o))
		require.NoError(t, d.DisplayImage(fill(100, 50, color.NRGBA{R: 0xff, A: 0xff}), 10, 20))

		frames := port.Frames()
		require.Len(t, frames, 1, c.o.String())
		img := decodeFrame(t, frames[0])
		assert.Equal(t, image.Rect(0, 0, 320, 480), img.Bounds(), c.o.String())
		assert.Equal(t, c.want, redBounds(img), c.o.String())
	}
}

func TestDisplayRejectsOverflow(t *testing.T) {
	d, port := small(t)
	assert.True(t, proto.IsInputError(d.DisplayImage(fill(2, 2, color.White), 3, 0)))
	assert.Empty(t, port.Frames())
}

func TestStorage(t *testing.T) {
	d, port := small(t, []byte("result:dir:video/file:a.png/"))
	dirs, files, err := d.ListFiles("/tmp/sdcard/mmcblk0p1/img/")
	require.NoError(t, err)
	assert.Equal(t, []string{"video"}, dirs)
	assert.Equal(t, []string{"a.png"}, files)
	assert.Equal(t, byte(ListFiles), Open(port.Frames()[0])[0])

	port.Reset()
	port.Reply([]byte("play_img_ok"))
	require.NoError(t, d.PlayImage("/img/a.png"))
	port.Reply([]byte("nope"))
	assert.True(t, proto.IsProtocolError(d.PlayImage("/img/a.png")))

	port.Reset()
	port.Reply([]byte("ok"), []byte("media_stop"))
	require.NoError(t, d.StopMedia())
	frames := port.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, byte(StopVideo), Open(frames[0])[0])
	assert.Equal(t, byte(StopMedia), Open(frames[1])[0])

	assert.True(t, proto.IsInputError(d.Delete("")))
}

func TestUpload(t *testing.T) {
	d, port := small(t, []byte(StatusCreated))
	d.chunk = 4

	data := []byte("0123456789")
	require.NoError(t, d.Upload("/img/a.png", bytes.NewReader(data), int64(len(data))))

	frames := port.Frames()
	require.Len(t, frames, 4)
	assert.Equal(t, byte(OpenUpload), Open(frames[0])[0])
	for i, want := range []string{"0123", "4567", "89"} {
		f := frames[i+1]
		plain := Open(f)
		assert.Equal(t, byte(WriteChunk), plain[0])
		assert.EqualValues(t, len(want), binary.BigEndian.Uint32(plain[8:12]))
		assert.Equal(t, want, string(f[FrameSize:]))
	}
}

func TestUploadRefused(t *testing.T) {
	d, port := small(t, []byte("error"))
	assert.True(t, proto.IsProtocolError(d.Upload("/a", bytes.NewReader([]byte{1}), 1)))
	assert.Len(t, port.Frames(), 1)
}

func TestSettings(t *testing.T) {
	d, port := small(t)
	require.NoError(t, d.SaveSettings(Settings{Brightness: 100, Rotation: proto.Landscape, Startup: 1}))
	plain := Open(port.Frames()[0])
	assert.Equal(t, byte(SaveSettings), plain[0])
	assert.Equal(t, []byte{MaxBrightness, 1, 0, 2, 0, 0}, plain[8:14])

	assert.True(t, proto.IsInputError(d.SetFrameRate(0)))
}

var (
	_ proto.Control    = (*Display)(nil)
	_ proto.Identified = (*Display)(nil)
	_ proto.Storage    = (*Display)(nil)
)
