package source

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, imaging.New(w, h, c)))
	return buf.Bytes()
}

func newLoader(fs afero.Fs) *Loader {
	l := NewLoader(fs, zap.NewNop())
	l.SetProgress(io.Discard)
	return l
}

func TestName(t *testing.T) {
	assert.Equal(t, "a.png", Name("/tmp/x/a.png"))
	assert.Equal(t, "b.jpg", Name("https://example.com/i/b.jpg?size=2#top"))
	assert.True(t, IsURL("http://x"))
	assert.False(t, IsURL("/x"))
}

func TestLocal(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "img/red.png", pngBytes(t, 4, 2, color.White), 0644))
	l := newLoader(fs)

	img, err := l.Image("img/red.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())

	r, size, err := l.Open("img/red.png")
	require.NoError(t, err)
	defer r.Close()
	bs, err := io.ReadAll(l.Progress(r, size, "upload"))
	require.NoError(t, err)
	assert.Equal(t, int64(len(bs)), size)

	_, _, err = l.Open("img")
	assert.Error(t, err)
	_, err = l.Fetch("missing.png")
	assert.Error(t, err)
}

func TestURL(t *testing.T) {
	body := pngBytes(t, 3, 3, color.Black)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ok.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()
	l := newLoader(afero.NewMemMapFs())

	bs, err := l.Fetch(srv.URL + "/ok.png")
	require.NoError(t, err)
	assert.Equal(t, body, bs)

	r, size, err := l.Open(srv.URL + "/ok.png")
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), size)
	_ = r.Close()

	_, err = l.Fetch(srv.URL + "/missing.png")
	assert.Error(t, err)
}

func TestFilledCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "a.png", pngBytes(t, 40, 20, color.White), 0644))
	l := newLoader(fs)
	c := NewCache(afero.NewMemMapFs())

	img, err := l.Filled("a.png", 10, 10, c)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), img.Bounds())

	require.NoError(t, fs.Remove("a.png"))
	hit, cached, err := c.Load("a.png", 10, 10)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, img.Bounds(), cached.Bounds())

	_, err = l.Filled("a.png", 10, 10, c)
	assert.NoError(t, err)
	_, err = l.Filled("a.png", 5, 5, c)
	assert.Error(t, err)
}

func TestCacheDisabled(t *testing.T) {
	c := NewCache(nil)
	require.NoError(t, c.Save("x", imaging.New(1, 1, color.Black)))
	hit, _, err := c.Load("x", 1, 1)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "1.00KB", HumanSize(1024))
}
