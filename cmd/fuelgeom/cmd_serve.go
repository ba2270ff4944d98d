package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chazu/fuelgeom/pkg/app"
)

var (
	serveAddr     string
	watchDebounce = app.DefaultDebounce
)

var serveCmd = &cobra.Command{
	Use:   "serve [script]",
	Short: "Serve point location, plots and metrics over HTTP",
	Long: `Builds the model once and serves:
  GET /locate?x=&y=&z=[&reaction=&nuclide=]   cell, material and tally bins at a point
  GET /plot.png[?name=&scale=]                 a declared plot
  GET /metrics                                 Prometheus metrics`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch script",
	Short: "Re-evaluate a script whenever it is saved",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", app.DefaultDebounce, "Quiet period before re-evaluating")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	res, source, err := loadModel(cmd, a, args)
	if err != nil {
		return err
	}
	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, cancel := signalContext()
	defer cancel()
	logger.Info("starting server", zap.String("addr", addr), zap.String("source", source))
	return a.Serve(ctx, addr, res.Model)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	return a.Watch(ctx, args[0], watchDebounce, func(r app.EvalResult) {
		if !r.OK() {
			fmt.Fprintf(out, "%s: %d error(s)\n", args[0], len(r.Errors))
			for _, e := range r.Errors {
				if e.Line > 0 {
					fmt.Fprintf(out, "  line %d: %s\n", e.Line, e.Message)
				} else {
					fmt.Fprintf(out, "  %s\n", e.Message)
				}
			}
			return
		}
		if r.Summary == nil {
			fmt.Fprintf(out, "%s: ok, %d material(s), no geometry\n", args[0], len(r.Materials))
			return
		}
		fmt.Fprintf(out, "%s: ok, %d cells, %d universes, %d lattices, %d warning(s)\n",
			args[0], r.Summary.Cells, r.Summary.Universes, r.Summary.Lattices, len(r.Warnings))
	})
}
