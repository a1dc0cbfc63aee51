// Package config loads daemon settings from a TOML file or a legacy
// setup.ini, layered over built-in defaults.
package config

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"epaperd/pkg/panel"
	"epaperd/pkg/proto"
	"epaperd/pkg/store"
)

const (
	FallbackName = "ESP32_BT"

	DefaultDisplay   = panel.Alternating
	DefaultSleepTime = 10 * time.Minute
	DefaultBaudRate  = 115200
	DefaultBurstGap  = 20 * time.Millisecond
	DefaultDataDir   = "/var/lib/epaperd"
	DefaultRenderer  = "virtual"

	MinBufferSize = 16
)

type Config struct {
	DeviceName   string
	DisplayType  uint8
	MaxSlots     uint16
	SleepTime    time.Duration
	DataDir      string
	Serial       string
	BaudRate     int
	BurstGap     time.Duration
	BufferSize   int
	Renderer     string
	ReplayOnBoot bool
}

func Default() Config {
	return Config{
		DeviceName:   DeviceName(),
		DisplayType:  DefaultDisplay,
		MaxSlots:     store.DefaultMaxSlots,
		SleepTime:    DefaultSleepTime,
		DataDir:      DefaultDataDir,
		BaudRate:     DefaultBaudRate,
		BurstGap:     DefaultBurstGap,
		BufferSize:   proto.DefaultCapacity,
		Renderer:     DefaultRenderer,
		ReplayOnBoot: true,
	}
}

// DeviceName derives a stable advertised name from the machine id.
func DeviceName() string {
	id, err := machineid.ProtectedID("epaperd")
	if err != nil || len(id) < 6 {
		return FallbackName
	}
	return "EPD_" + strings.ToUpper(id[:6])
}

type fileConfig struct {
	DeviceName   string `toml:"device_name"`
	DisplayType  int    `toml:"display_type"`
	MaxSlots     int    `toml:"max_slots"`
	SleepTime    string `toml:"sleep_time"`
	DataDir      string `toml:"data_dir"`
	Serial       string `toml:"serial"`
	BaudRate     int    `toml:"baud_rate"`
	BurstGap     string `toml:"burst_gap"`
	BufferSize   int    `toml:"buffer_size"`
	Renderer     string `toml:"renderer"`
	ReplayOnBoot bool   `toml:"replay_on_boot"`
}

// Load overlays the file at path onto Default. Files ending in .ini are read
// in the legacy key=value form, everything else as TOML.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".ini") {
		err = overlayINI(&cfg, data)
	} else {
		err = overlayTOML(&cfg, data)
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "load config %s", path)
	}

	return cfg, cfg.Validate()
}

func overlayTOML(cfg *Config, data []byte) error {
	var raw fileConfig
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return err
	}

	if meta.IsDefined("device_name") {
		if name := strings.TrimSpace(raw.DeviceName); name != "" {
			cfg.DeviceName = name
		}
	}

	if meta.IsDefined("display_type") {
		if raw.DisplayType < 0 || raw.DisplayType > 255 {
			return errors.Errorf("display_type %d out of range", raw.DisplayType)
		}
		cfg.DisplayType = uint8(raw.DisplayType)
	}

	if meta.IsDefined("max_slots") {
		if raw.MaxSlots < 0 || raw.MaxSlots > store.MaxSlots {
			return errors.Errorf("max_slots %d out of range", raw.MaxSlots)
		}
		cfg.MaxSlots = uint16(raw.MaxSlots)
	}

	if meta.IsDefined("sleep_time") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SleepTime))
		if err != nil {
			return errors.Wrap(err, "parse sleep_time")
		}
		cfg.SleepTime = d
	}

	if meta.IsDefined("data_dir") {
		cfg.DataDir = strings.TrimSpace(raw.DataDir)
	}

	if meta.IsDefined("serial") {
		cfg.Serial = strings.TrimSpace(raw.Serial)
	}

	if meta.IsDefined("baud_rate") {
		cfg.BaudRate = raw.BaudRate
	}

	if meta.IsDefined("burst_gap") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BurstGap))
		if err != nil {
			return errors.Wrap(err, "parse burst_gap")
		}
		cfg.BurstGap = d
	}

	if meta.IsDefined("buffer_size") {
		cfg.BufferSize = raw.BufferSize
	}

	if meta.IsDefined("renderer") {
		cfg.Renderer = strings.TrimSpace(raw.Renderer)
	}

	if meta.IsDefined("replay_on_boot") {
		cfg.ReplayOnBoot = raw.ReplayOnBoot
	}

	return nil
}

// overlayINI reads the flat setup.ini the firmware shipped with. Unknown keys
// and comment lines are skipped.
func overlayINI(cfg *Config, data []byte) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, ";") || strings.HasPrefix(text, "[") {
			continue
		}

		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return errors.Errorf("line %d: expected key=value", line)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "bt_name":
			if value != "" {
				cfg.DeviceName = value
			}
		case "epaper_type":
			n, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return errors.Wrapf(err, "line %d: epaper_type", line)
			}
			cfg.DisplayType = uint8(n)
		case "max_photo":
			n, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return errors.Wrapf(err, "line %d: max_photo", line)
			}
			cfg.MaxSlots = uint16(n)
		case "sleep_time":
			n, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return errors.Wrapf(err, "line %d: sleep_time", line)
			}
			cfg.SleepTime = time.Duration(n) * time.Second
		}
	}
	return sc.Err()
}

func (c Config) Validate() error {
	if c.MaxSlots < 1 || c.MaxSlots > store.MaxSlots {
		return errors.Errorf("max_slots %d out of range [1, %d]", c.MaxSlots, store.MaxSlots)
	}
	if c.BufferSize < MinBufferSize {
		return errors.Errorf("buffer_size %d below %d", c.BufferSize, MinBufferSize)
	}
	if _, ok := panel.Default.Lookup(c.DisplayType); !ok {
		return errors.Errorf("display_type %d unknown", c.DisplayType)
	}
	if c.SleepTime < 0 {
		return errors.Errorf("sleep_time %s negative", c.SleepTime)
	}
	return nil
}
