package main

import (
	"context"
	"net/http"

	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"epaperd/pkg/config"
	"epaperd/pkg/device/epd"
	"epaperd/pkg/device/remote"
	"epaperd/pkg/device/virtual"
	"epaperd/pkg/proto"
)

var listen = flag.String("listen", ":9123", "listen addr")
var spiPort = flag.String("spi", "", "spi port name, empty for the first one")
var pinDC = flag.String("dc", epd.DefaultPins.DC, "data/command gpio")
var pinRST = flag.String("rst", epd.DefaultPins.RST, "reset gpio")
var pinBUSY = flag.String("busy", epd.DefaultPins.BUSY, "busy gpio")
var display = flag.Bool("display", true, "drive the spi panel, otherwise log only")
var debug = flag.Bool("debug", false, "set debug")

func main() {
	flag.Parse()

	fx.New(
		fx.Provide(
			func() (*zap.Logger, error) {
				if *debug {
					return zap.NewDevelopment()
				}
				return zap.NewProduction()
			},
			func() *http.Server {
				return &http.Server{Addr: *listen}
			},
			func(logger *zap.Logger, lifecycle fx.Lifecycle) (proto.Renderer, error) {
				if !*display {
					return virtual.New(logger), nil
				}
				pins := epd.Pins{DC: *pinDC, RST: *pinRST, BUSY: *pinBUSY}
				dev, err := epd.Open(*spiPort, pins, epd.WithLogger(logger))
				if err != nil {
					return nil, err
				}
				lifecycle.Append(fx.Hook{
					OnStop: func(context.Context) error {
						return dev.Close()
					},
				})
				return dev, nil
			},
		),
		fx.Invoke(
			func(dev proto.Renderer, srv *http.Server, lifecycle fx.Lifecycle, logger *zap.Logger) error {
				return remote.Proxy(config.DeviceName(), dev, srv, lifecycle, logger)
			},
		),
	).Run()
}
