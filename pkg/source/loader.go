// Package source loads images and upload payloads from local files or URLs.
package source

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/inhies/go-bytesize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

func NewLoader(fs afero.Fs, logger *zap.Logger) *Loader {
	return &Loader{
		fs:       fs,
		cli:      resty.New().SetDoNotParseResponse(true).SetTimeout(time.Minute),
		log:      logger.Named("source"),
		progress: os.Stderr,
	}
}

type Loader struct {
	fs       afero.Fs
	cli      *resty.Client
	log      *zap.Logger
	progress io.Writer
}

// SetProgress redirects progress bars, io.Discard hides them.
func (l *Loader) SetProgress(w io.Writer) {
	l.progress = w
}

func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Name is the base name of a path or URL.
func Name(ref string) string {
	if IsURL(ref) {
		if i := strings.IndexAny(ref, "?#"); i >= 0 {
			ref = ref[:i]
		}
	}
	return path.Base(ref)
}

// Fetch reads the whole content of ref.
func (l *Loader) Fetch(ref string) ([]byte, error) {
	if !IsURL(ref) {
		return afero.ReadFile(l.fs, ref)
	}

	resp, err := l.cli.R().Get(ref)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.RawBody().Close()
	}()
	if resp.IsError() {
		return nil, fmt.Errorf("download %s: %s", ref, resp.Status())
	}

	bar := l.bar(resp.RawResponse.ContentLength, fmt.Sprintf("Downloading %s", Name(ref)))

	var buf bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(&buf, bar), resp.RawBody()); err != nil {
		return nil, err
	}

	l.log.With(
		zap.String("url", ref),
		zap.String("size", bytesize.New(float64(buf.Len())).String()),
	).Debug("downloaded")
	return buf.Bytes(), nil
}

func (l *Loader) Image(ref string) (image.Image, error) {
	bs, err := l.Fetch(ref)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	return img, nil
}

// Open returns a reader over ref and its size. Local files are streamed,
// URLs are downloaded first since the size must be known up front.
func (l *Loader) Open(ref string) (io.ReadCloser, int64, error) {
	if IsURL(ref) {
		bs, err := l.Fetch(ref)
		if err != nil {
			return nil, 0, err
		}
		return io.NopCloser(bytes.NewReader(bs)), int64(len(bs)), nil
	}

	f, err := l.fs.Open(ref)
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%s is a directory", ref)
	}
	return f, st.Size(), nil
}

// Progress wraps r so reads advance a progress bar sized for an upload.
func (l *Loader) Progress(r io.Reader, size int64, desc string) io.Reader {
	return io.TeeReader(r, l.bar(size, desc))
}

func (l *Loader) bar(size int64, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		size,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(l.progress),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprint(l.progress, "\n")
		}),
	)
}

// HumanSize formats a byte count the way the logs and bot replies show it.
func HumanSize(n int64) string {
	return bytesize.New(float64(n)).String()
}
