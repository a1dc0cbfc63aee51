package main

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"epaperd/pkg/config"
	"epaperd/pkg/device/epd"
	"epaperd/pkg/device/remote"
	"epaperd/pkg/device/virtual"
	"epaperd/pkg/idle"
	"epaperd/pkg/interp"
	"epaperd/pkg/panel"
	"epaperd/pkg/proto"
	"epaperd/pkg/store"
)

func newLogger() (*zap.Logger, error) {
	if *debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig(logger *zap.Logger) (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(afero.NewOsFs(), *configPath); err != nil {
			return config.Config{}, err
		}
	}

	if *serialName != "" {
		cfg.Serial = *serialName
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *rendererName != "" {
		cfg.Renderer = *rendererName
	}

	if cfg.Serial == "" {
		return config.Config{}, errors.New("no serial port configured")
	}

	logger.With(
		zap.String("name", cfg.DeviceName),
		zap.Uint8("display", cfg.DisplayType),
		zap.Uint16("max-slots", cfg.MaxSlots),
		zap.Duration("sleep", cfg.SleepTime),
		zap.String("data", cfg.DataDir),
		zap.String("serial", cfg.Serial),
		zap.String("renderer", cfg.Renderer),
	).Info("config loaded")
	return cfg, cfg.Validate()
}

func newStore(cfg config.Config, logger *zap.Logger) (*store.Store, error) {
	fs, err := store.DirFs(cfg.DataDir, true)
	if err != nil {
		return nil, err
	}
	return store.New(fs, store.WithMaxSlots(cfg.MaxSlots), store.WithLogger(logger))
}

// newRenderer picks the panel backend. Anything with a port is taken as the
// address of a render proxy.
func newRenderer(cfg config.Config, logger *zap.Logger, lifecycle fx.Lifecycle) (proto.Renderer, error) {
	var r proto.Renderer
	switch {
	case cfg.Renderer == "virtual":
		r = virtual.New(logger)
	case cfg.Renderer == "epd":
		model, _ := panel.Default.Lookup(cfg.DisplayType)
		dev, err := epd.Open("", epd.DefaultPins, epd.WithLogger(logger), epd.WithModel(model))
		if err != nil {
			return nil, err
		}
		r = dev
	case strings.Contains(cfg.Renderer, ":"):
		dev, err := remote.New(cfg.Renderer)
		if err != nil {
			return nil, errors.Wrapf(err, "dial render proxy %s", cfg.Renderer)
		}
		r = dev
	default:
		return nil, errors.Errorf("unknown renderer %q", cfg.Renderer)
	}

	if c, ok := r.(io.Closer); ok {
		lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return c.Close()
			},
		})
	}
	return r, nil
}

func newSerial(cfg config.Config) *proto.Serial {
	return proto.NewSerial(cfg.Serial)
}

func newTimer(cfg config.Config) *idle.Timer {
	return idle.New(cfg.SleepTime)
}

func newInterpreter(st *store.Store, r proto.Renderer, timer *idle.Timer, cfg config.Config, logger *zap.Logger) *interp.Interpreter {
	return interp.New(st, r,
		interp.WithActivity(timer),
		interp.WithLogger(logger),
		interp.WithBufferSize(cfg.BufferSize),
	)
}
