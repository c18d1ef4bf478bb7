package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/csgbox/pkg/config"
	"github.com/chazu/csgbox/pkg/editor"
	"github.com/chazu/csgbox/pkg/engine"
	"github.com/chazu/csgbox/pkg/ident"
	"github.com/chazu/csgbox/pkg/logging"
	"github.com/chazu/csgbox/pkg/metrics"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	// configPath is the --config flag value.
	configPath string

	// debugFlag turns on forest validation after every edit.
	debugFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "csgbox",
	Short: "csgbox - interactive CSG box modeller",
	Long: `csgbox places rounded boxes, combines them into union and subtract
hierarchies, and renders the result. Scenes can be built in the desktop
editor or from Lisp console scripts.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("csgbox version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default: ./csgbox.{toml,yaml,json} if present)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"validate the composition forest after every edit")

	rootCmd.AddCommand(runCmd, scriptCmd, exportCmd)
}

// loadConfig reads the configuration and builds the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func boxDefaults(cfg *config.Config) editor.BoxDefaults {
	return editor.BoxDefaults{
		Scale:    cfg.Box.Scale,
		Color:    cfg.BoxColor(),
		Rounding: float32(cfg.Box.Rounding),
	}
}

// newEngine builds a console engine whose fresh sessions follow cfg.
func newEngine(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) *engine.Engine {
	return engine.NewEngine(
		engine.WithTimeout(cfg.Eval.Timeout),
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithSessionOptions(
			editor.WithLogger(log),
			editor.WithMetrics(m),
			editor.WithBoxDefaults(boxDefaults(cfg)),
			editor.WithIDBase(ident.ID(cfg.IDBase)),
			editor.WithDebug(debugFlag),
		),
	)
}
