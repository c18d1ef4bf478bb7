package main

import (
	"context"
	"embed"

	"github.com/spf13/cobra"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/csgbox/pkg/metrics"
)

//go:embed all:frontend/dist
var assets embed.FS

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the editor window",
	Args:  cobra.NoArgs,
	RunE:  runEditor,
}

func runEditor(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	m := metrics.New()
	app := NewApp(cfg, log, m)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return m.Serve(gctx, cfg.Metrics.Addr, log) })
	}

	// wails.Run owns the main thread until the window closes.
	err = wails.Run(&options.App{
		Title:       "csgbox",
		Width:       cfg.Window.Width,
		Height:      cfg.Window.Height,
		AssetServer: &assetserver.Options{Assets: assets},
		OnStartup:   app.startup,
		OnShutdown:  app.shutdown,
		Bind:        []interface{}{app},
	})
	cancel()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}
