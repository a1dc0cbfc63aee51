package main

import (
	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var configPath = flag.String("config", "", "config file, .toml or legacy setup.ini")
var serialName = flag.String("serial", "", "serial name, overrides config")
var dataDir = flag.String("data", "", "slot directory, overrides config")
var rendererName = flag.String("renderer", "", "virtual, epd or host:port of a render proxy")
var debug = flag.Bool("debug", false, "set debug")

func main() {
	flag.Parse()

	fx.New(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Provide(
			newLogger,
			loadConfig,
			newStore,
			newRenderer,
			newSerial,
			newTimer,
			newInterpreter,
		),
		fx.Invoke(
			run,
		),
	).Run()
}
