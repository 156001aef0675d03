// Package config loads furnish settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/chazu/furnish/pkg/catalog"
	"github.com/chazu/furnish/pkg/geom"
	"github.com/chazu/furnish/pkg/picking"
	"github.com/chazu/furnish/pkg/placement"
	"github.com/chazu/furnish/pkg/session"
	"github.com/chazu/furnish/pkg/snapshot"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the planner.
type Config struct {
	Placement PlacementConfig `yaml:"placement"`
	Camera    CameraConfig    `yaml:"camera"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Log       LogConfig       `yaml:"log"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
}

type PlacementConfig struct {
	GridSize  float64 `yaml:"grid_size"`
	TopMargin float64 `yaml:"top_margin"`
}

type CameraConfig struct {
	Eye       [3]float64 `yaml:"eye"`
	Target    [3]float64 `yaml:"target"`
	FovY      float64    `yaml:"fov"`
	Width     int        `yaml:"width"`
	Height    int        `yaml:"height"`
	FloorSize float64    `yaml:"floor_size"`
}

type CatalogConfig struct {
	// Path to a prototype YAML file. Empty means the built-in palette.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type SnapshotConfig struct {
	PixelsPerUnit int  `yaml:"pixels_per_unit"`
	Margin        int  `yaml:"margin"`
	Labels        bool `yaml:"labels"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	cam := picking.DefaultCamera()
	return Config{
		Placement: PlacementConfig{GridSize: 1, TopMargin: placement.DefaultTopMargin},
		Camera: CameraConfig{
			Eye:       [3]float64{cam.Eye.X, cam.Eye.Y, cam.Eye.Z},
			Target:    [3]float64{cam.Target.X, cam.Target.Y, cam.Target.Z},
			FovY:      cam.FovY,
			Width:     cam.Width,
			Height:    cam.Height,
			FloorSize: picking.DefaultFloorSize,
		},
		Log:      LogConfig{Level: "info"},
		Snapshot: SnapshotConfig{PixelsPerUnit: 40, Margin: 1, Labels: true},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values. A missing file yields Default(); a malformed one is an
// error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.WithField("path", path).Debug("config file not found, using defaults")
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first out-of-range value.
func (c Config) Validate() error {
	switch {
	case c.Placement.GridSize < 0:
		return fmt.Errorf("placement.grid_size %g is negative", c.Placement.GridSize)
	case c.Placement.TopMargin < 0:
		return fmt.Errorf("placement.top_margin %g is negative", c.Placement.TopMargin)
	case c.Camera.Width <= 0 || c.Camera.Height <= 0:
		return fmt.Errorf("camera viewport %dx%d", c.Camera.Width, c.Camera.Height)
	case c.Camera.FovY <= 0 || c.Camera.FovY >= 180:
		return fmt.Errorf("camera.fov %g out of range", c.Camera.FovY)
	case c.Snapshot.PixelsPerUnit <= 0:
		return fmt.Errorf("snapshot.pixels_per_unit %d", c.Snapshot.PixelsPerUnit)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Flags holds command-line values that override file settings. Zero
// values leave the file setting alone.
type Flags struct {
	GridSize float64
	Catalog  string
	LogLevel string
}

// Resolve applies f over c.
func (c *Config) Resolve(f Flags) {
	if f.GridSize > 0 {
		c.Placement.GridSize = f.GridSize
	}
	if f.Catalog != "" {
		c.Catalog.Path = f.Catalog
	}
	if f.LogLevel != "" {
		c.Log.Level = f.LogLevel
	}
}

// Level returns the configured log level, falling back to info.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Options returns the controller options.
func (c Config) Options() session.Options {
	return session.Options{GridSize: c.Placement.GridSize, TopMargin: c.Placement.TopMargin}
}

// PickCamera returns the camera used to turn screen points into rays.
func (c Config) PickCamera() picking.Camera {
	cam := picking.DefaultCamera()
	cam.Eye = geom.Vec{X: c.Camera.Eye[0], Y: c.Camera.Eye[1], Z: c.Camera.Eye[2]}
	cam.Target = geom.Vec{X: c.Camera.Target[0], Y: c.Camera.Target[1], Z: c.Camera.Target[2]}
	cam.FovY = c.Camera.FovY
	cam.Width = c.Camera.Width
	cam.Height = c.Camera.Height
	return cam
}

// SnapshotOptions returns the floor plan drawing options.
func (c Config) SnapshotOptions() snapshot.Options {
	return snapshot.Options{
		PixelsPerUnit: c.Snapshot.PixelsPerUnit,
		Margin:        c.Snapshot.Margin,
		Labels:        c.Snapshot.Labels,
	}
}

// LoadCatalog reads the configured prototype file, or returns the
// built-in palette when none is set.
func (c Config) LoadCatalog() (*catalog.Catalog, error) {
	if c.Catalog.Path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(c.Catalog.Path)
}
