package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"epaperd/pkg/config"
	"epaperd/pkg/idle"
	"epaperd/pkg/interp"
	"epaperd/pkg/proto"
	"epaperd/pkg/store"
)

const watchInterval = time.Second

type params struct {
	fx.In

	Config      config.Config
	Logger      *zap.Logger
	Store       *store.Store
	Renderer    proto.Renderer
	Serial      *proto.Serial
	Timer       *idle.Timer
	Interpreter *interp.Interpreter
	Shutdowner  fx.Shutdowner
	Lifecycle   fx.Lifecycle
}

// run serves the live link until the link fails, the idle timer expires or
// the process is asked to stop.
func run(p params) {
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			opts := &proto.Options{BaudRate: p.Config.BaudRate, ReadTimeout: p.Config.BurstGap}
			if err := p.Serial.Open(opts); err != nil {
				return err
			}
			p.Logger.With(zap.String("serial", p.Serial.Name()), zap.String("name", p.Config.DeviceName)).Info("link opened")

			p.Timer.Start(p.Config.SleepTime)

			go func() {
				defer close(served)
				if p.Config.ReplayOnBoot {
					replay(ctx, p)
				}
				serve(ctx, p)
			}()

			if p.Config.SleepTime > 0 {
				go watch(ctx, p)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			err := p.Serial.Close()

			select {
			case <-served:
			case <-ctx.Done():
				p.Logger.Warn("serve loop did not stop")
			}

			if serr := p.Store.Shutdown(); serr != nil {
				p.Logger.With(zap.Error(serr)).Warn("store shutdown")
			}
			return err
		},
	})
}

func replay(ctx context.Context, p params) {
	cur := p.Store.Cursor()
	if cur.SlotCount == 0 && cur.CurrentIndex == 0 {
		if slots, err := p.Store.Slots(); err != nil || len(slots) == 0 {
			p.Logger.Info("no stored image to replay")
			return
		}
	}

	if err := p.Interpreter.Replay(ctx, cur.CurrentIndex); err != nil {
		p.Logger.With(zap.Uint16("index", cur.CurrentIndex), zap.Error(err)).Warn("boot replay failed")
		return
	}
	p.Logger.With(zap.Uint16("index", cur.CurrentIndex)).Info("boot replay done")
}

func serve(ctx context.Context, p params) {
	src := proto.NewLive(p.Serial, p.Config.BufferSize)
	err := p.Interpreter.Serve(ctx, interp.NewSession(interp.ModeLive), src, p.Serial)
	if ctx.Err() != nil {
		return
	}

	p.Logger.With(zap.Error(err)).Error("link lost")
	if err := p.Shutdowner.Shutdown(); err != nil {
		p.Logger.With(zap.Error(err)).Warn("shutdown")
	}
}

// watch puts the panel to sleep and stops the daemon once the idle timer
// expires.
func watch(ctx context.Context, p params) {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.Timer.TimedOut() {
				continue
			}

			p.Logger.With(zap.Time("last", p.Timer.LastActivity()), zap.Duration("sleep", p.Timer.Interval())).Info("idle timeout")
			if err := p.Renderer.Sleep(); err != nil {
				p.Logger.With(zap.Error(errors.Wrap(err, "renderer sleep"))).Warn("sleep failed")
			}
			if err := p.Shutdowner.Shutdown(); err != nil {
				p.Logger.With(zap.Error(err)).Warn("shutdown")
			}
			return
		}
	}
}
