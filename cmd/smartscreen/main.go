package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"smartscreen/pkg/bot"
	"smartscreen/pkg/config"
	"smartscreen/pkg/device"
	"smartscreen/pkg/device/virtual"
	"smartscreen/pkg/mixer"
	"smartscreen/pkg/proto"
	"smartscreen/pkg/source"
)

type options struct {
	image    string
	x, y     int
	effect   string
	clear    bool
	ls       string
	upload   string
	remove   string
	play     string
	stop     bool
	root     string
	cache    string
	snapshot string
	tgToken  string
}

func main() {
	cfg := config.Default()
	cfg.BindFlags(flag.CommandLine)

	var opts options
	flag.StringVar(&opts.image, "image", "", "image file or url to draw")
	flag.IntVar(&opts.x, "x", -1, "draw at x without fitting, -1 to fill the panel")
	flag.IntVar(&opts.y, "y", 0, "draw at y when x is set")
	flag.StringVar(&opts.effect, "effect", "", "transition effect for full frames: block or scan")
	flag.BoolVar(&opts.clear, "clear", false, "clear the panel first")
	flag.StringVar(&opts.ls, "ls", "", "list an onboard storage dir")
	flag.StringVar(&opts.upload, "upload", "", "upload <source>[=<remote path>] to onboard storage")
	flag.StringVar(&opts.remove, "rm", "", "delete a file from onboard storage")
	flag.StringVar(&opts.play, "play", "", "play an onboard video or image")
	flag.BoolVar(&opts.stop, "stop", false, "stop onboard playback")
	flag.StringVar(&opts.root, "root", "", "base dir for local files")
	flag.StringVar(&opts.cache, "cache", "", "dir to cache fitted images in")
	flag.StringVar(&opts.snapshot, "snapshot", "", "write the simulated frame to this png")
	flag.StringVar(&opts.tgToken, "tg-token", "", "telegram bot token, keeps running until interrupted")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var (
		dev    proto.Control
		loader *source.Loader
		drawer *mixer.Drawer
		cache  *source.Cache
		logger *zap.Logger
	)

	app := fx.New(
		fx.Supply(cfg, opts),
		fx.Provide(
			newLogger,
			newDevice,
			newLoader,
			newCache,
			newDrawer,
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Populate(&dev, &loader, &drawer, &cache, &logger),
		fx.StopTimeout(cfg.CloseTimeout+time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	code := 0
	if err := run(dev, loader, drawer, cache, opts, logger); err != nil {
		logger.With(zap.Error(err)).Error("failed")
		code = 1
	} else if opts.tgToken != "" {
		if err := serve(dev, loader, drawer, cache, app, opts, logger); err != nil {
			logger.With(zap.Error(err)).Error("bot failed")
			code = 1
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.CloseTimeout+time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.With(zap.Error(err)).Info("shutdown failed")
	}
	os.Exit(code)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	return zc.Build()
}

func newDevice(cfg *config.Config, lc fx.Lifecycle, logger *zap.Logger) (proto.Control, error) {
	dev, err := device.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			logger.Info("draining display")
			return dev.Close()
		},
	})
	return dev, nil
}

func newLoader(opts options, logger *zap.Logger) (*source.Loader, error) {
	fs, err := source.NewFs(opts.root)
	if err != nil {
		return nil, err
	}
	return source.NewLoader(fs, logger), nil
}

func newCache(opts options) (*source.Cache, error) {
	if opts.cache == "" {
		return source.NewCache(nil), nil
	}
	fs, err := source.NewFs(opts.cache)
	if err != nil {
		return nil, errors.Wrap(err, "create cache")
	}
	return source.NewCache(fs), nil
}

func newDrawer(dev proto.Control, opts options, logger *zap.Logger) (*mixer.Drawer, error) {
	eff, err := mixer.ParseEffect(opts.effect)
	if err != nil {
		return nil, err
	}
	if eff == nil {
		return mixer.NewDrawer(dev, logger), nil
	}
	return mixer.NewDrawer(dev, logger, mixer.WithEffect(eff)), nil
}

func run(dev proto.Control, loader *source.Loader, drawer *mixer.Drawer, cache *source.Cache, opts options, logger *zap.Logger) error {
	if opts.clear {
		if err := dev.Clear(); err != nil {
			return errors.Wrap(err, "clear")
		}
	}

	if opts.image != "" {
		if err := draw(dev, loader, drawer, cache, opts); err != nil {
			return errors.Wrap(err, "draw")
		}
	}

	if err := storage(dev, loader, opts, logger); err != nil {
		return err
	}

	if opts.snapshot != "" {
		v, ok := dev.(*virtual.Display)
		if !ok {
			return errors.New("snapshot needs the simulated revision")
		}
		fs, err := source.NewFs("")
		if err != nil {
			return err
		}
		return v.Snapshot(fs, opts.snapshot)
	}
	return nil
}

func draw(dev proto.Control, loader *source.Loader, drawer *mixer.Drawer, cache *source.Cache, opts options) error {
	if opts.x < 0 {
		img, err := loader.Filled(opts.image, dev.Width(), dev.Height(), cache)
		if img == nil {
			return err
		}
		return drawer.Canvas(img)
	}

	img, err := loader.Image(opts.image)
	if err != nil {
		return err
	}
	return dev.DisplayImage(img, opts.x, opts.y)
}

func storage(dev proto.Control, loader *source.Loader, opts options, logger *zap.Logger) error {
	if opts.ls == "" && opts.upload == "" && opts.remove == "" && opts.play == "" && !opts.stop {
		return nil
	}

	s, ok := dev.(proto.Storage)
	if !ok {
		return errors.New("display has no onboard storage")
	}

	if opts.stop {
		if err := s.StopMedia(); err != nil {
			return errors.Wrap(err, "stop")
		}
	}

	if opts.upload != "" {
		src, remote := opts.upload, "/"+source.Name(opts.upload)
		if i := strings.LastIndex(opts.upload, "="); i > 0 {
			src, remote = opts.upload[:i], opts.upload[i+1:]
		}
		r, size, err := loader.Open(src)
		if err != nil {
			return err
		}
		defer r.Close()

		logger.With(zap.String("remote", remote), zap.String("size", source.HumanSize(size))).Info("uploading")
		if err := s.Upload(remote, loader.Progress(r, size, "Uploading "+source.Name(src)), size); err != nil {
			return errors.Wrap(err, "upload")
		}
	}

	if opts.remove != "" {
		if err := s.Delete(opts.remove); err != nil {
			return errors.Wrap(err, "delete")
		}
	}

	if opts.ls != "" {
		dirs, files, err := s.ListFiles(opts.ls)
		if err != nil {
			return errors.Wrap(err, "list")
		}
		for _, d := range dirs {
			fmt.Println(d + "/")
		}
		for _, f := range files {
			fmt.Println(f)
		}
	}

	if opts.play != "" {
		var err error
		if strings.HasSuffix(strings.ToLower(opts.play), ".mp4") {
			err = s.PlayVideo(opts.play)
		} else {
			err = s.PlayImage(opts.play)
		}
		if err != nil {
			return errors.Wrap(err, "play")
		}
	}
	return nil
}

func serve(dev proto.Control, loader *source.Loader, drawer *mixer.Drawer, cache *source.Cache, app *fx.App, opts options, logger *zap.Logger) error {
	b, err := bot.New(opts.tgToken, bot.NewCommands(dev, drawer, loader, cache, logger), logger)
	if err != nil {
		return err
	}
	b.Start()
	defer b.Stop()

	sig := <-app.Done()
	logger.With(zap.Stringer("signal", sig)).Info("shutting down")
	return nil
}
