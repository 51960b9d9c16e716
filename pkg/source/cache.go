package source

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Cache keeps images already fitted to a panel size, keyed by their source.
// A nil filesystem disables it.
func NewCache(fs afero.Fs) *Cache {
	return &Cache{fs: fs}
}

type Cache struct {
	fs afero.Fs
}

func (c *Cache) dirname(w, h int) string {
	return fmt.Sprintf("%dx%d", w, h)
}

func (c *Cache) filename(ref string, w, h int) string {
	sum := fnv.New64a()
	_, _ = sum.Write([]byte(ref))
	return fmt.Sprintf("%s/%016x.png", c.dirname(w, h), sum.Sum64())
}

func (c *Cache) Load(ref string, w, h int) (bool, image.Image, error) {
	if c.fs == nil {
		return false, nil, nil
	}

	bs, err := afero.ReadFile(c.fs, c.filename(ref, w, h))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil, nil
		}
		return false, nil, err
	}

	img, err := png.Decode(bytes.NewReader(bs))
	if err != nil {
		return false, nil, err
	}
	return true, img, nil
}

func (c *Cache) Save(ref string, img image.Image) error {
	if c.fs == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	dir := c.dirname(w, h)
	if exists, err := afero.DirExists(c.fs, dir); err != nil {
		return err
	} else if !exists {
		if err := c.fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return afero.WriteFile(c.fs, c.filename(ref, w, h), buf.Bytes(), 0644)
}

// Filled loads ref scaled and cropped to w x h, through the cache.
func (l *Loader) Filled(ref string, w, h int, c *Cache) (image.Image, error) {
	exists, img, err := c.Load(ref, w, h)
	if err != nil {
		return nil, fmt.Errorf("load cache failed: %w", err)
	}
	if exists {
		l.log.With(zap.String("ref", ref)).Debug("cache hit")
		return img, nil
	}

	img, err = l.Image(ref)
	if err != nil {
		return nil, err
	}
	filled := imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
	if err := c.Save(ref, filled); err != nil {
		return filled, fmt.Errorf("save cache failed: %w", err)
	}
	return filled, nil
}
