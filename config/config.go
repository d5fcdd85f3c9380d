// Package config reads the YAML settings of the doomrender tool.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/stuarthighley/doomrender/level"
	"github.com/stuarthighley/doomrender/render"
	"github.com/stuarthighley/doomrender/sight"
)

type Config struct {
	WAD      string `yaml:"wad"`
	Map      string `yaml:"map"`
	ZoneSize int    `yaml:"zone_size"`
	Skill    int    `yaml:"skill"`

	Screen        ScreenConfig `yaml:"screen"`
	SkyTexture    string       `yaml:"sky_texture"`
	MaxVisSprites int          `yaml:"max_vissprites"`

	Sight  SightConfig  `yaml:"sight"`
	Reject RejectConfig `yaml:"reject"`
	Output OutputConfig `yaml:"output"`
	View   ViewConfig   `yaml:"view"`
}

type ScreenConfig struct {
	Width           int `yaml:"width"`
	Height          int `yaml:"height"`
	Blocks          int `yaml:"blocks"`
	StatusBarHeight int `yaml:"status_bar_height"`
}

type SightConfig struct {
	BBoxReject bool `yaml:"bbox_reject"`
}

type RejectConfig struct {
	PadWithFF bool `yaml:"pad_with_ff"`
}

type OutputConfig struct {
	PNG string `yaml:"png"`
	// Scale enlarges the frame, stretching it vertically by 6/5 so the pixels
	// come out 4:3 as on a CRT.
	Scale int `yaml:"scale"`
}

type ViewConfig struct {
	// Angle overrides the player's facing, in degrees, when set.
	Angle *int `yaml:"angle"`
}

// Default returns the settings used for anything a config file leaves out.
func Default() *Config {
	return &Config{
		Map:      "E1M1",
		ZoneSize: 16 << 20,
		Skill:    3,
		Screen: ScreenConfig{
			Width:           320,
			Height:          200,
			Blocks:          10,
			StatusBarHeight: 32,
		},
		SkyTexture:    "SKY1",
		MaxVisSprites: 128,
		Sight:         SightConfig{BBoxReject: true},
		Output:        OutputConfig{PNG: "out.png", Scale: 2},
	}
}

// Load reads filename over the defaults and validates the result.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects settings the renderer or loader cannot use.
func (c *Config) Validate() error {
	if c.Map == "" {
		return errors.New("config: map is empty")
	}
	if c.ZoneSize < 1<<20 {
		return errors.Errorf("config: zone_size %v below 1 MiB", c.ZoneSize)
	}
	if c.Skill < 1 || c.Skill > 5 {
		return errors.Errorf("config: skill %v not in 1..5", c.Skill)
	}
	if c.Screen.Blocks < 3 || c.Screen.Blocks > 11 {
		return errors.Errorf("config: screen.blocks %v not in 3..11", c.Screen.Blocks)
	}
	if c.Output.Scale < 1 || c.Output.Scale > 8 {
		return errors.Errorf("config: output.scale %v not in 1..8", c.Output.Scale)
	}
	if err := c.RenderOptions().Validate(); err != nil {
		return errors.Wrap(err, "config")
	}
	return nil
}

// RenderOptions returns the renderer settings.
func (c *Config) RenderOptions() render.Options {
	return render.Options{
		Width:           c.Screen.Width,
		Height:          c.Screen.Height,
		StatusBarHeight: c.Screen.StatusBarHeight,
		MaxVisSprites:   c.MaxVisSprites,
		SkyTexture:      c.SkyTexture,
	}
}

// LevelOptions returns the level loader settings. The resolver is left for
// the caller.
func (c *Config) LevelOptions() level.Options {
	return level.Options{Skill: c.Skill, PadRejectWithFF: c.Reject.PadWithFF}
}

// SightOptions returns the sight check settings.
func (c *Config) SightOptions() sight.Options {
	return sight.Options{BBoxReject: c.Sight.BBoxReject}
}
