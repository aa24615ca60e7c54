// Package config provides configuration loading and management for volviz.
// It handles loading configuration from YAML files, provides default values
// and clamps every setting into the range the render engine expects.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"volviz/pkg/render"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Render parameters shared by every ray-casting kernel
	Render struct {
		// Algorithm names the kernel to render with
		Algorithm string `yaml:"algorithm"`

		// StepSize is the ray marching stride in voxels
		StepSize int `yaml:"stepSize"`

		// Resolution is the pixel block side length; one ray is cast
		// per Resolution x Resolution block
		Resolution int `yaml:"resolution"`

		// Workers is the number of band workers per renderer
		Workers int `yaml:"workers"`
	} `yaml:"render"`

	// Isosurface parameters for the isosurface kernel and the mesh extractor
	Isosurface struct {
		// Isovalue is the density threshold the surface traces
		Isovalue int `yaml:"isovalue"`

		// Opacity scales the surface contribution, in [0,1]
		Opacity float64 `yaml:"opacity"`

		// Thickness widens the surface band in gradient-magnitude units
		Thickness float64 `yaml:"thickness"`
	} `yaml:"isosurface"`

	// Mesh parameters for marching cubes extraction
	Mesh struct {
		// Stride is the vertex spacing in voxels
		Stride int `yaml:"stride"`

		// ScaleX, ScaleY and ScaleZ stretch vertex positions for
		// volumes with nonuniform voxel spacing
		ScaleX float64 `yaml:"scaleX"`
		ScaleY float64 `yaml:"scaleY"`
		ScaleZ float64 `yaml:"scaleZ"`
	} `yaml:"mesh"`

	// Output parameters for the offscreen presentation layer
	Output struct {
		// ImageSize is the side length exported frames are scaled to
		ImageSize int `yaml:"imageSize"`

		// Directory receives the rendered frames
		Directory string `yaml:"directory"`

		// Frames is the number of turntable frames per orbit sequence
		Frames int `yaml:"frames"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Render.Algorithm = "maximum"
	cfg.Render.StepSize = 1
	cfg.Render.Resolution = 1
	cfg.Render.Workers = runtime.NumCPU()

	cfg.Isosurface.Isovalue = 95
	cfg.Isosurface.Opacity = 1.0
	cfg.Isosurface.Thickness = 2.0

	cfg.Mesh.Stride = 3
	cfg.Mesh.ScaleX = 1.0
	cfg.Mesh.ScaleY = 1.0
	cfg.Mesh.ScaleZ = 1.0

	cfg.Output.ImageSize = 512
	cfg.Output.Directory = "renders"
	cfg.Output.Frames = 1

	return cfg
}

// LoadConfig loads configuration from a YAML file and clamps it into
// valid ranges. If the file doesn't exist, it returns the default
// configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.Validate()
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate clamps every setting into the range the render engine
// expects, so the engine itself never has to defend against bad values.
func (cfg *Config) Validate() {
	if cfg.Render.StepSize < 1 {
		cfg.Render.StepSize = 1
	}
	if cfg.Render.Resolution < 1 {
		cfg.Render.Resolution = 1
	}
	if cfg.Render.Workers < 1 {
		cfg.Render.Workers = 1
	}

	if cfg.Isosurface.Isovalue < math.MinInt16 {
		cfg.Isosurface.Isovalue = math.MinInt16
	}
	if cfg.Isosurface.Isovalue > math.MaxInt16 {
		cfg.Isosurface.Isovalue = math.MaxInt16
	}
	if cfg.Isosurface.Opacity < 0 {
		cfg.Isosurface.Opacity = 0
	}
	if cfg.Isosurface.Opacity > 1 {
		cfg.Isosurface.Opacity = 1
	}
	if cfg.Isosurface.Thickness <= 0 {
		cfg.Isosurface.Thickness = 1
	}

	if cfg.Mesh.Stride < 1 {
		cfg.Mesh.Stride = 1
	}
	if cfg.Mesh.ScaleX <= 0 {
		cfg.Mesh.ScaleX = 1
	}
	if cfg.Mesh.ScaleY <= 0 {
		cfg.Mesh.ScaleY = 1
	}
	if cfg.Mesh.ScaleZ <= 0 {
		cfg.Mesh.ScaleZ = 1
	}

	if cfg.Output.ImageSize < 1 {
		cfg.Output.ImageSize = 1
	}
	if cfg.Output.Frames < 1 {
		cfg.Output.Frames = 1
	}
}

// RenderParams builds the per-frame settings snapshot the render
// engine consumes.
func (cfg *Config) RenderParams() render.Params {
	return render.Params{
		StepSize:   cfg.Render.StepSize,
		Resolution: cfg.Render.Resolution,
		Workers:    cfg.Render.Workers,
		Isovalue:   int16(cfg.Isosurface.Isovalue),
		Opacity:    cfg.Isosurface.Opacity,
		Thickness:  cfg.Isosurface.Thickness,
	}
}
