package remote

import (
	"bytes"
	"context"
	"image/color"
	"net"
	"net/http"
	"net/rpc"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"smartscreen/pkg/proto"
)

// Handler serves dev over net/rpc at the default RPC path.
func Handler(dev proto.Control) (http.Handler, error) {
	rs := rpc.NewServer()
	if err := rs.Register(NewService(dev)); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, rs)
	return mux, nil
}

// Proxy exports dev on srv for the lifetime of the app.
func Proxy(dev proto.Control, srv *http.Server, lifecycle fx.Lifecycle, logger *zap.Logger) error {
	h, err := Handler(dev)
	if err != nil {
		return err
	}
	srv.Handler = h

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.With(zap.String("addr", ln.Addr().String())).Info("remote proxy listening")
			go func() {
				if err := srv.Serve(ln); err != http.ErrServerClosed {
					logger.With(zap.Error(err)).Error("remote proxy stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	return nil
}

func NewService(dev proto.Control) *Service {
	return &Service{dev: dev}
}

type Service struct {
	dev proto.Control
}

func (s *Service) Info(_ EmptyResponse, resp *InfoResponse) error {
	resp.Width = s.dev.Width()
	resp.Height = s.dev.Height()
	if id, ok := s.dev.(proto.Identified); ok {
		resp.Revision = id.Revision()
		resp.SubRevision = id.SubRevision()
	}
	return nil
}

func (s *Service) Command(name string, _ *EmptyResponse) error {
	switch name {
	case "reset":
		return s.dev.Reset()
	case "initialize":
		return s.dev.InitializeComm()
	case "clear":
		return s.dev.Clear()
	case "screen-off":
		return s.dev.ScreenOff()
	case "screen-on":
		return s.dev.ScreenOn()
	}

	return errors.Errorf("unknown command %q", name)
}

func (s *Service) SetBrightness(req LevelRequest, _ *EmptyResponse) error {
	return s.dev.SetBrightness(req.Level)
}

func (s *Service) SetBackplateLedColor(req ColorRequest, _ *EmptyResponse) error {
	return s.dev.SetBackplateLedColor(color.RGBA{R: req.R, G: req.G, B: req.B, A: req.A})
}

func (s *Service) SetOrientation(req OrientationRequest, _ *EmptyResponse) error {
	return s.dev.SetOrientation(proto.Orientation(req.Orientation))
}

func (s *Service) DisplayImage(req *DisplayImageRequest, _ *EmptyResponse) error {
	img, err := imaging.Decode(bytes.NewReader(req.Image))
	if err != nil {
		return err
	}

	return s.dev.DisplayImage(img, req.X, req.Y)
}
