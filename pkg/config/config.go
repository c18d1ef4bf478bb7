// Package config loads csgbox settings from an optional file and CSGBOX_*
// environment variables, then validates them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/chazu/csgbox/pkg/ident"
)

// EnvPrefix prefixes every environment override, e.g. CSGBOX_LOG_LEVEL.
const EnvPrefix = "CSGBOX"

// Config is the complete csgbox configuration.
type Config struct {
	Window  WindowConfig  `mapstructure:"window" json:"window"`
	Picking PickingConfig `mapstructure:"picking" json:"picking"`
	Box     BoxConfig     `mapstructure:"box" json:"box"`
	IDBase  uint32        `mapstructure:"id_base" json:"idBase" validate:"lt=16777216"`
	Log     LogConfig     `mapstructure:"log" json:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
	Eval    EvalConfig    `mapstructure:"eval" json:"eval"`
	Mesh    MeshConfig    `mapstructure:"mesh" json:"mesh"`
}

type WindowConfig struct {
	Width  int `mapstructure:"width" json:"width" validate:"min=320,max=16384"`
	Height int `mapstructure:"height" json:"height" validate:"min=240,max=16384"`
}

// PickingConfig sizes the offscreen picking target.
type PickingConfig struct {
	Patch int `mapstructure:"patch" json:"patch" validate:"min=1,max=256"`
}

// BoxConfig holds the defaults for newly placed boxes.
type BoxConfig struct {
	Scale    float64 `mapstructure:"scale" json:"scale" validate:"gt=0"`
	Color    string  `mapstructure:"color" json:"color" validate:"hexcolor"`
	Rounding float64 `mapstructure:"rounding" json:"rounding" validate:"gte=0,lte=1"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" json:"format" validate:"oneof=text json"`
}

// MetricsConfig controls the prometheus listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" json:"addr" validate:"omitempty,hostname_port"`
}

type EvalConfig struct {
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" validate:"gt=0"`
}

type MeshConfig struct {
	Cells int `mapstructure:"cells" json:"cells" validate:"min=8,max=1024"`
}

// BoxColor returns the parsed default box color.
func (c *Config) BoxColor() ident.RGB {
	rgb, err := ident.ParseHex(c.Box.Color)
	if err != nil {
		return ident.RGB{0.8, 0.8, 0.8}
	}
	return rgb
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Window:  WindowConfig{Width: 1280, Height: 720},
		Picking: PickingConfig{Patch: 16},
		Box:     BoxConfig{Scale: 1, Color: "#cccccc", Rounding: 0.1},
		Log:     LogConfig{Level: "info", Format: "text"},
		Eval:    EvalConfig{Timeout: 5 * time.Second},
		Mesh:    MeshConfig{Cells: 200},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("window.width", d.Window.Width)
	v.SetDefault("window.height", d.Window.Height)
	v.SetDefault("picking.patch", d.Picking.Patch)
	v.SetDefault("box.scale", d.Box.Scale)
	v.SetDefault("box.color", d.Box.Color)
	v.SetDefault("box.rounding", d.Box.Rounding)
	v.SetDefault("id_base", d.IDBase)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("eval.timeout", d.Eval.Timeout)
	v.SetDefault("mesh.cells", d.Mesh.Cells)
}

// Load reads path (any format viper understands) when it is non-empty,
// otherwise looks for csgbox.{toml,yaml,json} in the working directory and
// carries on with defaults if there is none. Environment variables override
// both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("csgbox")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint and reports all failures at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}
