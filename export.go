package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/csgbox/pkg/evaluate"
	"github.com/chazu/csgbox/pkg/kernel/sdfx"
	"github.com/chazu/csgbox/pkg/metrics"
)

// exportOut is the export --out flag value.
var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Run a console script and write the scene as STL",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default: FILE with an .stl extension)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	path := args[0]
	s, err := evaluateFile(newEngine(cfg, log, metrics.New()), path)
	if err != nil {
		return err
	}
	prog, prims, err := s.Compile()
	if err != nil {
		return err
	}

	out := exportOut
	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + ".stl"
	}
	k := sdfx.New(sdfx.WithMeshCells(cfg.Mesh.Cells))
	if err := evaluate.WriteSTL(prog, prims, k, out); err != nil {
		return err
	}
	log.Info("exported", "script", path, "stl", out, "roots", len(prog.Roots))
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
