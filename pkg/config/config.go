// Package config provides configuration loading and management for fieldseg.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"runtime"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"fieldseg/pkg/classmap"
)

// Storage backends for intermediate tiles
const (
	BackendDir    = "dir"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ClassConfig describes one segmentation class
type ClassConfig struct {
	// Name is reported in coverage results
	Name string `yaml:"name"`

	// Color is the canonical class colour as a hex string, e.g. "#c3c3c3"
	Color string `yaml:"color"`

	// Aliases are extra hex colours that classify as this class
	Aliases []string `yaml:"aliases,omitempty"`
}

// Storage configures where intermediate tiles are staged
type Storage struct {
	// Backend is one of "dir", "sqlite" or "memory"
	Backend string `yaml:"backend"`

	// Dir is the staging root for the dir backend. Every run gets its own
	// subdirectory.
	Dir string `yaml:"dir"`

	// SQLitePath is the database file for the sqlite backend
	SQLitePath string `yaml:"sqlitePath"`

	// Stage controls whether predicted tiles are persisted at all during a
	// run. When false the in-memory manifest is the only copy.
	Stage bool `yaml:"stage"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Tiling parameters
	Tiling struct {
		// PatchSize is the tile edge length in pixels
		PatchSize int `yaml:"patchSize"`

		// RelevanceFilter drops tiles without foreground labels when
		// building training sets
		RelevanceFilter bool `yaml:"relevanceFilter"`
	} `yaml:"tiling"`

	// Class colour table shared by tiling, stitching and analysis
	Classes struct {
		// Tolerance is the maximum per-channel colour difference
		Tolerance int `yaml:"tolerance"`

		// Table lists classes in id order; the first entry is background
		Table []ClassConfig `yaml:"table"`
	} `yaml:"classes"`

	// Stitching parameters
	Stitching struct {
		// Strict fails stitching when the tile grid has holes
		Strict bool `yaml:"strict"`
	} `yaml:"stitching"`

	Storage Storage `yaml:"storage"`

	// Processing parameters
	Processing struct {
		// Workers is how many images are processed concurrently in a batch
		Workers int `yaml:"workers"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Dir receives the stitched images
		Dir string `yaml:"dir"`

		// Base64 adds the PNG-encoded image to JSON results
		Base64 bool `yaml:"base64"`

		// CropToSource crops saved images back to the source extent.
		// Off by default: the padded canvas is the reference output.
		CropToSource bool `yaml:"cropToSource"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Tiling.PatchSize = 256
	cfg.Tiling.RelevanceFilter = false

	cfg.Classes.Tolerance = classmap.DefaultTolerance
	cfg.Classes.Table = []ClassConfig{
		{Name: "background", Color: "#c3c3c3"},
		{Name: "sorghum", Color: "#1f77bd", Aliases: []string{"#1f77b4"}},
		{Name: "weeds", Color: "#ff7f0e"},
	}

	cfg.Stitching.Strict = false

	cfg.Storage.Backend = BackendDir
	cfg.Storage.Dir = filepath.Join(os.TempDir(), "fieldseg")
	cfg.Storage.SQLitePath = filepath.Join(os.TempDir(), "fieldseg", "patches.db")
	cfg.Storage.Stage = true

	cfg.Processing.Workers = runtime.NumCPU()

	cfg.Output.Dir = "."
	cfg.Output.Base64 = false
	cfg.Output.CropToSource = false
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

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

// Validate checks value ranges and that the class table can be built
func (c *Config) Validate() error {
	if c.Tiling.PatchSize <= 0 {
		return fmt.Errorf("tiling.patchSize must be positive, got %d", c.Tiling.PatchSize)
	}
	if c.Processing.Workers <= 0 {
		return fmt.Errorf("processing.workers must be positive, got %d", c.Processing.Workers)
	}
	switch c.Storage.Backend {
	case BackendDir, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("storage.backend %q is not one of %s, %s, %s",
			c.Storage.Backend, BackendDir, BackendSQLite, BackendMemory)
	}
	if _, err := c.ClassTable(); err != nil {
		return err
	}
	return nil
}

// ClassTable builds the class colour table described by the configuration
func (c *Config) ClassTable() (*classmap.Table, error) {
	classes := make([]classmap.Class, 0, len(c.Classes.Table))
	for _, cc := range c.Classes.Table {
		col, err := parseColor(cc.Color)
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", cc.Name, err)
		}
		cls := classmap.Class{Name: cc.Name, Color: col}
		for _, a := range cc.Aliases {
			alias, err := parseColor(a)
			if err != nil {
				return nil, fmt.Errorf("class %q alias: %w", cc.Name, err)
			}
			cls.Aliases = append(cls.Aliases, alias)
		}
		classes = append(classes, cls)
	}
	return classmap.NewTable(classes, c.Classes.Tolerance)
}

func parseColor(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
