package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLoadTOML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/epaperd.toml", []byte(`
device_name = "frame-kitchen"
display_type = 14
max_slots = 3
sleep_time = "90s"
serial = "/dev/rfcomm0"
replay_on_boot = false
`), 0644))

	cfg, err := Load(fs, "/etc/epaperd.toml")
	require.NoError(t, err)

	require.Equal(t, "frame-kitchen", cfg.DeviceName)
	require.Equal(t, uint8(14), cfg.DisplayType)
	require.Equal(t, uint16(3), cfg.MaxSlots)
	require.Equal(t, 90*time.Second, cfg.SleepTime)
	require.Equal(t, "/dev/rfcomm0", cfg.Serial)
	require.False(t, cfg.ReplayOnBoot)

	// untouched keys keep their defaults
	require.Equal(t, DefaultBaudRate, cfg.BaudRate)
	require.Equal(t, DefaultBurstGap, cfg.BurstGap)
	require.Equal(t, DefaultRenderer, cfg.Renderer)
}

func TestLoadINI(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/setup.ini", []byte(
		"; firmware settings\nbt_name=ESP32_FRAME\nepaper_type = 8\nmax_photo=5\nsleep_time=120\nunused=1\n"), 0644))

	cfg, err := Load(fs, "/setup.ini")
	require.NoError(t, err)

	require.Equal(t, "ESP32_FRAME", cfg.DeviceName)
	require.Equal(t, uint8(8), cfg.DisplayType)
	require.Equal(t, uint16(5), cfg.MaxSlots)
	require.Equal(t, 2*time.Minute, cfg.SleepTime)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		path string
		body string
	}{
		{"unknown display", "/c.toml", "display_type = 200"},
		{"too many slots", "/c.toml", "max_slots = 1001"},
		{"zero slots", "/c.toml", "max_slots = 0"},
		{"small buffer", "/c.toml", "buffer_size = 8"},
		{"bad duration", "/c.toml", `sleep_time = "soon"`},
		{"bad toml", "/c.toml", "max_slots = "},
		{"bad ini line", "/c.ini", "max_photo"},
		{"bad ini number", "/c.ini", "epaper_type=big"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, tc.path, []byte(tc.body), 0644))
			_, err := Load(fs, tc.path)
			require.Error(t, err)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/nope.toml")
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, uint8(34), cfg.DisplayType)
	require.Equal(t, uint16(32), cfg.MaxSlots)
	require.Equal(t, 10*time.Minute, cfg.SleepTime)
	require.NotEmpty(t, cfg.DeviceName)
}
