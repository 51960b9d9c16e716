package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"smartscreen/pkg/config"
	"smartscreen/pkg/device"
	"smartscreen/pkg/device/remote"
	"smartscreen/pkg/proto"
)

var listen = flag.String("listen", ":9123", "listen addr")

func main() {
	cfg := config.Default()
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.Remote != "" {
		fmt.Fprintln(os.Stderr, "render exports a local display, --remote is not allowed")
		os.Exit(2)
	}

	fx.New(
		fx.Supply(cfg),
		fx.Provide(
			func(cfg *config.Config) (*zap.Logger, error) {
				if cfg.Debug {
					return zap.NewDevelopment()
				}
				return zap.NewProduction()
			},
			func(cfg *config.Config, lc fx.Lifecycle, logger *zap.Logger) (proto.Control, error) {
				dev, err := device.Open(cfg, logger)
				if err != nil {
					return nil, err
				}
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						return dev.Close()
					},
				})
				return dev, nil
			},
			func() *http.Server {
				return &http.Server{Addr: *listen}
			},
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Invoke(
			remote.Proxy,
		),
	).Run()
}
