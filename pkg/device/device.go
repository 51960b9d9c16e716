// Package device picks the driver for a configured revision and brings the
// panel up.
package device

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"smartscreen/pkg/config"
	"smartscreen/pkg/device/handle"
	"smartscreen/pkg/device/remote"
	"smartscreen/pkg/device/reva"
	"smartscreen/pkg/device/revb"
	"smartscreen/pkg/device/revc"
	"smartscreen/pkg/device/turingusb"
	"smartscreen/pkg/device/virtual"
	"smartscreen/pkg/device/weact"
	"smartscreen/pkg/proto"
)

// Open returns a connected, initialized and configured display.
func Open(cfg *config.Config, logger *zap.Logger) (proto.Control, error) {
	if cfg.Remote != "" {
		logger.With(zap.String("addr", cfg.Remote)).Info("using remote display")
		return remote.New(cfg.Remote)
	}

	dev, err := OpenPort(cfg.Revision, PortFor(cfg.Revision, cfg.Port), cfg.Handle(), logger)
	if err != nil {
		return nil, err
	}
	if err := Setup(dev, cfg, logger); err != nil {
		_ = dev.Close()
		return nil, err
	}
	return dev, nil
}

// PortFor returns the transport a revision talks over. The simulated display
// has none.
func PortFor(revision, name string) proto.Port {
	switch revision {
	case config.RevisionA:
		return proto.NewSerial(name, revision, reva.Matches...)
	case config.RevisionB:
		return proto.NewSerial(name, revision, revb.Matches...)
	case config.RevisionC:
		return proto.NewSerial(name, revision, revc.Matches...)
	case config.RevisionWeAct:
		return proto.NewSerial(name, revision, weact.Matches...)
	case config.RevisionUSB:
		return proto.NewUSB(revision, turingusb.Match)
	}
	return nil
}

func OpenPort(revision string, port proto.Port, cfg handle.Config, logger *zap.Logger) (proto.Control, error) {
	switch revision {
	case config.RevisionA:
		return reva.New(port, cfg, logger)
	case config.RevisionB:
		return revb.New(port, cfg, logger)
	case config.RevisionC:
		return revc.New(port, cfg, logger)
	case config.RevisionWeAct:
		return weact.New(port, cfg, logger)
	case config.RevisionUSB:
		return turingusb.New(port, cfg, logger)
	case config.RevisionSimulated:
		w, h := cfg.NativeWidth, cfg.NativeHeight
		if w == 0 || h == 0 {
			w, h = 320, 480
		}
		return virtual.New(w, h, logger), nil
	}
	return nil, errors.Errorf("unknown revision %q", revision)
}

// Setup runs the handshake and applies the configured orientation,
// brightness and backplate color.
func Setup(dev proto.Control, cfg *config.Config, logger *zap.Logger) error {
	if err := dev.InitializeComm(); err != nil {
		return errors.Wrap(err, "initialize")
	}
	if err := dev.SetOrientation(cfg.ParsedOrientation()); err != nil {
		return errors.Wrap(err, "set orientation")
	}
	if err := dev.SetBrightness(cfg.Brightness); err != nil {
		return errors.Wrap(err, "set brightness")
	}
	if c := cfg.BackplateColor(); c != nil {
		if err := dev.SetBackplateLedColor(*c); err != nil {
			return errors.Wrap(err, "set backplate")
		}
	}

	l := logger.With(zap.Int("width", dev.Width()), zap.Int("height", dev.Height()))
	if id, ok := dev.(proto.Identified); ok {
		l = l.With(zap.String("revision", id.Revision()), zap.String("sub", id.SubRevision()))
	}
	l.Info("display ready")
	return nil
}
