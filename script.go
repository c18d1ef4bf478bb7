package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/csgbox/pkg/compile"
	"github.com/chazu/csgbox/pkg/editor"
	"github.com/chazu/csgbox/pkg/engine"
	"github.com/chazu/csgbox/pkg/metrics"
	"github.com/chazu/csgbox/pkg/scene"
	"github.com/chazu/csgbox/pkg/watch"
)

// watchFlag is the script --watch flag value.
var watchFlag bool

var scriptCmd = &cobra.Command{
	Use:   "script FILE",
	Short: "Run a console script and print the compiled program",
	Long: `Run a Lisp console script against an empty scene and print the op
buffer it compiles to. With --watch the script reruns every time the file
is saved.`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	scriptCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "rerun when the file changes")
}

func runScript(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	m := metrics.New()
	eng := newEngine(cfg, log, m)
	path := args[0]
	out := cmd.OutOrStdout()

	if !watchFlag {
		return scriptOnce(eng, path, out)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return m.Serve(gctx, cfg.Metrics.Addr, log) })
	}
	rerun := func() {
		if err := scriptOnce(eng, path, out); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
	}
	g.Go(func() error {
		rerun()
		return watch.NewFile(path, watch.WithLogger(log)).Run(gctx, rerun)
	})
	return g.Wait()
}

// evaluateFile runs the script at path against a fresh session.
func evaluateFile(eng *engine.Engine, path string) (*editor.Session, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, evalErrs, err := eng.Evaluate(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		errs := make([]error, len(evalErrs))
		for i, e := range evalErrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("%s: %w", path, errors.Join(errs...))
	}
	return s, nil
}

func scriptOnce(eng *engine.Engine, path string, out io.Writer) error {
	s, err := evaluateFile(eng, path)
	if err != nil {
		return err
	}
	prog, prims, err := s.Compile()
	if err != nil {
		return err
	}
	return printProgram(out, prog, prims)
}

// printProgram lists the op buffer one record per line, then the roots.
func printProgram(w io.Writer, prog *compile.Program, prims []scene.Primitive) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tKIND\tOPERANDS\tBLEND\tCOLOR")
	for i, op := range prog.Ops {
		switch op.Kind {
		case compile.OpPrimitive:
			p := prims[op.Primitive]
			fmt.Fprintf(tw, "%d\t%s\tbox %s\t-\t%s\n", i, op.Kind, p.ID, p.Color.Hex())
		default:
			fmt.Fprintf(tw, "%d\t%s\t%d %d\t%.2f\t%s\n", i, op.Kind, op.Left, op.Right, op.Blend, op.Color.Hex())
		}
	}
	fmt.Fprintf(tw, "roots\t%v\n", prog.Roots)
	return tw.Flush()
}
