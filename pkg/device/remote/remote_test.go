package remote

import (
	"image"
	"image/color"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartscreen/pkg/device/virtual"
	"smartscreen/pkg/proto"
)

func dial(t *testing.T) (*Client, *virtual.Display) {
	dev := virtual.New(320, 480, zap.NewNop())
	h, err := Handler(dev)
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.Listener.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, dev
}

func TestClientMirrorsDevice(t *testing.T) {
	c, dev := dial(t)
	assert.Equal(t, virtual.Revision, c.Revision())
	assert.Equal(t, 320, c.Width())

	require.NoError(t, c.SetOrientation(proto.Landscape))
	assert.Equal(t, 480, c.Width())
	assert.Equal(t, 320, c.Height())

	require.NoError(t, c.SetBrightness(30))
	assert.Equal(t, 30, dev.Brightness())

	require.NoError(t, c.ScreenOff())
	assert.False(t, dev.On())
	require.NoError(t, c.ScreenOn())
	assert.True(t, dev.On())

	require.NoError(t, c.DisplayImage(imaging.New(2, 2, color.White), 478, 318))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, dev.Frame().NRGBAAt(479, 319))
	assert.Equal(t, image.Rect(0, 0, 480, 320), dev.Frame().Bounds())
}

func TestClientErrors(t *testing.T) {
	c, _ := dial(t)
	assert.True(t, proto.IsInputError(c.SetBrightness(150)))
	assert.True(t, proto.IsInputError(c.SetOrientation(proto.Orientation(5))))
	assert.Error(t, c.DisplayImage(imaging.New(2, 2, color.White), 319, 0))
	assert.Error(t, c.command("explode"))
}

var _ proto.Control = (*Client)(nil)
