// Package config loads the settings an application needs to open a gfx
// device: the backend, the window, the swapchain and logging. Files are TOML
// or YAML, chosen by extension, and only need to name the fields they change.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"render-hal/gfx"
)

type Config struct {
	// Backend is a name registered with gfx.Register, "opengl" or "d3d12".
	Backend   string          `toml:"backend" yaml:"backend"`
	Window    WindowConfig    `toml:"window" yaml:"window"`
	Swapchain SwapchainConfig `toml:"swapchain" yaml:"swapchain"`
	Device    DeviceConfig    `toml:"device" yaml:"device"`
	Log       LogConfig       `toml:"log" yaml:"log"`
}

type WindowConfig struct {
	Title     string `toml:"title" yaml:"title"`
	Width     int    `toml:"width" yaml:"width"`
	Height    int    `toml:"height" yaml:"height"`
	Resizable bool   `toml:"resizable" yaml:"resizable"`
}

type SwapchainConfig struct {
	Buffers uint32 `toml:"buffers" yaml:"buffers"`
	VSync   bool   `toml:"vsync" yaml:"vsync"`
	// ColorFormat and DepthFormat use gfx.PixelFormat names such as
	// "bgra8unorm". DepthFormat "none" disables the depth buffer.
	ColorFormat string `toml:"color_format" yaml:"color_format"`
	DepthFormat string `toml:"depth_format" yaml:"depth_format"`
}

type DeviceConfig struct {
	Debug bool `toml:"debug" yaml:"debug"`
	// FenceTimeoutMS bounds every CPU wait on the GPU. 0 uses
	// gfx.DefaultFenceTimeout.
	FenceTimeoutMS int `toml:"fence_timeout_ms" yaml:"fence_timeout_ms"`
}

type LogConfig struct {
	// Level is a slog level name: debug, info, warn or error.
	Level string `toml:"level" yaml:"level"`
}

func Default() Config {
	return Config{
		Backend: "opengl",
		Window: WindowConfig{
			Title:     "render-hal",
			Width:     1280,
			Height:    720,
			Resizable: true,
		},
		Swapchain: SwapchainConfig{
			Buffers:     2,
			VSync:       true,
			ColorFormat: gfx.PixelFormatBGRA8Unorm.String(),
			DepthFormat: gfx.PixelFormatDepth24Stencil8.String(),
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over Default and validates the result. Unknown keys are
// errors.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err = dec.Decode(&cfg); errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return cfg, &gfx.ConfigurationError{Op: "load config", Err: fmt.Errorf("unsupported config format %q", ext)}
	}
	if err != nil {
		return cfg, &gfx.ConfigurationError{Op: "load config " + filepath.Base(path), Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting as a *gfx.ConfigurationError.
func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return &gfx.ConfigurationError{Op: "validate config", Err: fmt.Errorf(format, args...)}
	}
	if c.Backend == "" {
		return fail("backend is empty")
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fail("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Swapchain.Buffers < 2 {
		return fail("swapchain needs at least 2 buffers, got %d", c.Swapchain.Buffers)
	}
	color, err := parseFormat(c.Swapchain.ColorFormat)
	if err != nil {
		return fail("swapchain color format: %w", err)
	}
	if color.IsDepth() {
		return fail("swapchain color format %v is a depth format", color)
	}
	if c.Swapchain.DepthFormat != "none" {
		depth, err := parseFormat(c.Swapchain.DepthFormat)
		if err != nil {
			return fail("swapchain depth format: %w", err)
		}
		if !depth.IsDepth() {
			return fail("swapchain depth format %v is not a depth format", depth)
		}
	}
	if c.Device.FenceTimeoutMS < 0 {
		return fail("negative fence timeout %dms", c.Device.FenceTimeoutMS)
	}
	if _, err := c.SlogLevel(); err != nil {
		return fail("log level: %w", err)
	}
	return nil
}

func parseFormat(name string) (gfx.PixelFormat, error) {
	for f := gfx.PixelFormatUndefined + 1; f.Valid(); f++ {
		if strings.EqualFold(f.String(), name) {
			return f, nil
		}
	}
	return gfx.PixelFormatUndefined, fmt.Errorf("unknown pixel format %q", name)
}

// SlogLevel parses Log.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.Log.Level))
	return l, err
}

// DeviceOptions converts the device settings for gfx.Open.
func (c Config) DeviceOptions(surface gfx.Surface) gfx.Options {
	return gfx.Options{
		Surface:      surface,
		Debug:        c.Device.Debug,
		FenceTimeout: time.Duration(c.Device.FenceTimeoutMS) * time.Millisecond,
	}
}

// SwapchainDescription converts the swapchain settings. The size is left
// zero so the swapchain follows the surface's framebuffer. c must be valid.
func (c Config) SwapchainDescription() gfx.SwapchainDescription {
	desc := gfx.SwapchainDescription{BufferCount: c.Swapchain.Buffers, VSync: c.Swapchain.VSync}
	desc.ColorFormat, _ = parseFormat(c.Swapchain.ColorFormat)
	if c.Swapchain.DepthFormat != "none" {
		desc.DepthFormat, _ = parseFormat(c.Swapchain.DepthFormat)
	}
	return desc
}
