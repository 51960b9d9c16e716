package virtual

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartscreen/pkg/proto"
)

func TestDrawComposes(t *testing.T) {
	d := New(320, 480, zap.NewNop())
	require.NoError(t, d.SetOrientation(proto.Landscape))
	assert.Equal(t, 480, d.Width())
	assert.Equal(t, 320, d.Height())

	require.NoError(t, d.DisplayImage(imaging.New(10, 10, color.White), 470, 310))
	f := d.Frame()
	assert.Equal(t, image.Rect(0, 0, 480, 320), f.Bounds())
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, f.NRGBAAt(479, 319))
	assert.Equal(t, color.NRGBA{A: 255}, f.NRGBAAt(0, 0))

	assert.True(t, proto.IsInputError(d.DisplayImage(imaging.New(10, 10, color.White), 471, 0)))
	assert.True(t, proto.IsInputError(d.SetBrightness(101)))
}

func TestSnapshot(t *testing.T) {
	fs := afero.NewMemMapFs()
	d := New(8, 4, zap.NewNop())
	require.NoError(t, d.Clear())
	require.NoError(t, d.Snapshot(fs, "/out.png"))

	f, err := fs.Open("/out.png")
	require.NoError(t, err)
	defer f.Close()
	img, err := imaging.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())
}

var _ proto.Control = (*Display)(nil)

func TestClosedDisplayRejectsCalls(t *testing.T) {
	d := New(8, 4, zap.NewNop())
	require.NoError(t, d.DisplayImage(imaging.New(2, 2, color.White), 0, 0))
	require.NoError(t, d.Close())

	assert.Error(t, d.DisplayImage(imaging.New(2, 2, color.White), 0, 0))
	assert.Error(t, d.SetBrightness(10))
	assert.Error(t, d.SetOrientation(proto.Landscape))
	assert.Error(t, d.Clear())
	assert.Error(t, d.ScreenOn())
	assert.Equal(t, 100, d.Brightness())
	assert.NoError(t, d.Close())
}
