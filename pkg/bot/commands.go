package bot

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"smartscreen/pkg/config"
	"smartscreen/pkg/mixer"
	"smartscreen/pkg/proto"
	"smartscreen/pkg/source"
)

const replyOK = "OK"

var errNoStorage = errors.New("display has no onboard storage")

func NewCommands(dev proto.Control, drawer *mixer.Drawer, loader *source.Loader, cache *source.Cache, logger *zap.Logger) *Commands {
	return &Commands{
		dev:    dev,
		drawer: drawer,
		loader: loader,
		cache:  cache,
		log:    logger.Named("bot"),
	}
}

// Commands are the chat commands, independent of the chat transport. Each
// takes the message payload and returns the reply text.
type Commands struct {
	sync.Mutex
	dev    proto.Control
	drawer *mixer.Drawer
	loader *source.Loader
	cache  *source.Cache
	log    *zap.Logger
	last   string
}

func (c *Commands) Info(string) (string, error) {
	lines := []string{
		fmt.Sprintf("Size: %dx%d", c.dev.Width(), c.dev.Height()),
	}
	if id, ok := c.dev.(proto.Identified); ok {
		lines = append(lines,
			fmt.Sprintf("Revision: %s", id.Revision()),
			fmt.Sprintf("Sub-revision: %s", id.SubRevision()),
		)
	}
	if last := c.showing(); last != "" {
		lines = append(lines, fmt.Sprintf("Showing: %s", last))
	}
	return strings.Join(lines, "\n"), nil
}

func (c *Commands) On(string) (string, error) {
	return replyOK, c.dev.ScreenOn()
}

func (c *Commands) Off(string) (string, error) {
	return replyOK, c.dev.ScreenOff()
}

func (c *Commands) Clear(string) (string, error) {
	return replyOK, c.dev.Clear()
}

func (c *Commands) Reset(string) (string, error) {
	return replyOK, c.dev.Reset()
}

func (c *Commands) Brightness(in string) (string, error) {
	level, err := strconv.Atoi(strings.TrimSpace(in))
	if err != nil {
		return "", fmt.Errorf("brightness must be a number: %w", err)
	}
	return replyOK, c.dev.SetBrightness(level)
}

func (c *Commands) Orientation(in string) (string, error) {
	o, err := proto.ParseOrientation(in)
	if err != nil {
		return "", err
	}
	if err := c.dev.SetOrientation(o); err != nil {
		return "", err
	}
	last := c.showing()
	if last == "" {
		return replyOK, nil
	}
	// the previous picture no longer matches the panel shape
	return c.Draw(last)
}

// showing is the reference of the picture on the panel, if any.
func (c *Commands) showing() string {
	c.Lock()
	defer c.Unlock()
	return c.last
}

func (c *Commands) Led(in string) (string, error) {
	rgb, err := config.ParseColor(strings.TrimSpace(in))
	if err != nil {
		return "", err
	}
	return replyOK, c.dev.SetBackplateLedColor(rgb)
}

// Draw shows a local file or URL fitted to the panel.
func (c *Commands) Draw(in string) (string, error) {
	ref := strings.TrimSpace(in)
	if ref == "" {
		return "", &proto.InputError{Field: "image", Reason: "no file or url given"}
	}

	c.Lock()
	defer c.Unlock()

	img, err := c.loader.Filled(ref, c.dev.Width(), c.dev.Height(), c.cache)
	if img == nil {
		return "", err
	}
	if err != nil {
		c.log.With(zap.Error(err)).Info("cache update failed")
	}
	if err := c.drawer.Canvas(img); err != nil {
		return "", fmt.Errorf("draw canvas failed: %w", err)
	}
	c.last = ref
	return replyOK, nil
}

func (c *Commands) storage() (proto.Storage, error) {
	s, ok := c.dev.(proto.Storage)
	if !ok {
		return nil, errNoStorage
	}
	return s, nil
}

func (c *Commands) List(in string) (string, error) {
	s, err := c.storage()
	if err != nil {
		return "", err
	}
	dir := lo.Ternary(strings.TrimSpace(in) == "", "/", strings.TrimSpace(in))
	dirs, files, err := s.ListFiles(dir)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(dirs)+len(files))
	for _, d := range dirs {
		lines = append(lines, d+"/")
	}
	lines = append(lines, files...)
	if len(lines) == 0 {
		return "empty", nil
	}
	return strings.Join(lines, "\n"), nil
}

// Upload takes "<source> [remote path]"; the remote name defaults to the
// source base name.
func (c *Commands) Upload(in string) (string, error) {
	s, err := c.storage()
	if err != nil {
		return "", err
	}
	args := strings.Fields(in)
	if len(args) == 0 || len(args) > 2 {
		return "", &proto.InputError{Field: "upload", Reason: "want <source> [remote path]"}
	}
	remote := "/" + source.Name(args[0])
	if len(args) == 2 {
		remote = args[1]
	}

	r, size, err := c.loader.Open(args[0])
	if err != nil {
		return "", err
	}
	defer r.Close()

	if err := s.Upload(remote, r, size); err != nil {
		return "", err
	}
	return fmt.Sprintf("Uploaded %s (%s)", remote, source.HumanSize(size)), nil
}

func (c *Commands) Delete(in string) (string, error) {
	s, err := c.storage()
	if err != nil {
		return "", err
	}
	return replyOK, s.Delete(strings.TrimSpace(in))
}

func (c *Commands) Play(in string) (string, error) {
	s, err := c.storage()
	if err != nil {
		return "", err
	}
	p := strings.TrimSpace(in)
	if strings.HasSuffix(strings.ToLower(p), ".mp4") {
		return replyOK, s.PlayVideo(p)
	}
	return replyOK, s.PlayImage(p)
}

func (c *Commands) Stop(string) (string, error) {
	s, err := c.storage()
	if err != nil {
		return "", err
	}
	return replyOK, s.StopMedia()
}
