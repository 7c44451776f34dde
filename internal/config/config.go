// Package config loads trackcam settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/trackcam/internal/capture"
	"github.com/ayusman/trackcam/internal/detector"
)

// Config holds all application settings.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Store    StoreConfig    `yaml:"store"`
	Hooks    HooksConfig    `yaml:"hooks"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// StaticDir is served under /static/ when set.
	StaticDir string `yaml:"static_dir"`
}

// CameraConfig selects the capture device.
type CameraConfig struct {
	// Source is a device index ("0") or a file path / stream URL.
	Source string `yaml:"source"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
}

// DetectorConfig locates the face cascade.
type DetectorConfig struct {
	Cascade string `yaml:"cascade"`
}

// StoreConfig controls the history database.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`

	// MaxSessions caps the stored stream history; 0 keeps everything.
	MaxSessions int `yaml:"max_sessions"`
}

// HooksConfig locates the event hooks. An empty Dir disables them.
type HooksConfig struct {
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Camera: CameraConfig{
			Source: "0",
			Width:  capture.DefaultWidth,
			Height: capture.DefaultHeight,
			FPS:    capture.DefaultFPS,
		},
		Detector: DetectorConfig{
			Cascade: detector.DefaultCascade,
		},
		Store: StoreConfig{
			Enabled:     true,
			Path:        filepath.Join("~", ".trackcam", "trackcam.db"),
			MaxSessions: 1000,
		},
		Hooks: HooksConfig{
			Dir:     filepath.Join("~", ".trackcam", "hooks"),
			Timeout: 5 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// path is not empty, then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Hooks.Dir = expandHome(cfg.Hooks.Dir)
	cfg.Server.StaticDir = expandHome(cfg.Server.StaticDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TRACKCAM_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("CAMERA_SOURCE"); v != "" {
		c.Camera.Source = v
	}
	if v := os.Getenv("TRACKCAM_CASCADE"); v != "" {
		c.Detector.Cascade = v
	}
	if v := os.Getenv("TRACKCAM_DB"); v != "" {
		c.Store.Path = v
	}
	if v, ok := os.LookupEnv("TRACKCAM_HOOKS"); ok {
		c.Hooks.Dir = v
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("read_timeout must not be negative: %v", c.Server.ReadTimeout))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive: %v", c.Server.ShutdownTimeout))
	}
	if c.Server.StaticDir != "" {
		if info, err := os.Stat(c.Server.StaticDir); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Errorf("static_dir is not a directory: %s", c.Server.StaticDir))
		}
	}
	if strings.TrimSpace(c.Camera.Source) == "" {
		errs = append(errs, errors.New("camera source is required"))
	}
	if c.Camera.FPS < 1 || c.Camera.FPS > 120 {
		errs = append(errs, fmt.Errorf("camera fps must be between 1 and 120: %d", c.Camera.FPS))
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		errs = append(errs, fmt.Errorf("invalid camera size: %dx%d", c.Camera.Width, c.Camera.Height))
	}
	if c.Store.Enabled && c.Store.Path == "" {
		errs = append(errs, errors.New("store path is required when the store is enabled"))
	}
	if c.Store.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("max_sessions must not be negative: %d", c.Store.MaxSessions))
	}
	if c.Hooks.Dir != "" && c.Hooks.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("hook timeout must be positive: %v", c.Hooks.Timeout))
	}

	return errors.Join(errs...)
}

// ServerAddress returns the listen address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CameraSettings converts the camera section for capture.NewCamera.
func (c *Config) CameraSettings() capture.Settings {
	return capture.Settings{
		Width:  c.Camera.Width,
		Height: c.Camera.Height,
		FPS:    c.Camera.FPS,
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
