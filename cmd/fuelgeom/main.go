package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chazu/fuelgeom/internal/config"
	"github.com/chazu/fuelgeom/pkg/app"
	"github.com/chazu/fuelgeom/pkg/blob"
	"github.com/chazu/fuelgeom/pkg/export"
	"github.com/chazu/fuelgeom/pkg/kernel/sdfx"
	"github.com/chazu/fuelgeom/pkg/store"
	"github.com/chazu/fuelgeom/pkg/tessellate"
)

var (
	cfgPath   string
	verbose   bool
	reference bool

	cfg    *config.Config
	logger *zap.Logger
)

// errInvalidModel is returned after the script's errors have been printed.
var errInvalidModel = errors.New("model has errors")

var rootCmd = &cobra.Command{
	Use:   "fuelgeom",
	Short: "Build, query and export PWR fuel assembly models",
	Long: `fuelgeom builds reactor core models from Lisp scripts: materials,
CSG cells, universes and lattices, run settings, tallies and plots.

Scripts are evaluated in a sandbox. Use --reference instead of a script to
work with the built-in 17x17 PWR assembly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		logger, err = newLogger(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	for _, cmd := range []*cobra.Command{buildCmd, locateCmd, plotCmd, meshCmd, exportCmd, serveCmd} {
		cmd.Flags().BoolVar(&reference, "reference", false, "Use the built-in reference assembly instead of a script")
	}
	rootCmd.AddCommand(buildCmd, locateCmd, plotCmd, meshCmd, exportCmd, runsCmd, serveCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if lc.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zc.Build()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// newApp builds an App from the loaded configuration. exp may be nil.
func newApp(exp *export.Exporter) (*app.App, error) {
	timeout, err := cfg.EngineTimeout()
	if err != nil {
		return nil, err
	}
	palette, err := cfg.Palette()
	if err != nil {
		return nil, err
	}
	return app.New(app.Options{
		EvalTimeout: timeout,
		Kernel:      sdfx.NewWithResolution(cfg.Mesh.Resolution),
		Logger:      logger,
		Exporter:    exp,
		Palette:     &palette,
		PlotWorkers: cfg.Plot.Workers,
		Mesh:        tessellate.Options{Height: cfg.Mesh.Height, Workers: cfg.Mesh.Workers},
	}), nil
}

// openSink opens the configured blob store and catalog.
func openSink(ctx context.Context) (*export.Exporter, func(), error) {
	blobs, err := blob.Open(ctx, cfg.Storage.Blob)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := store.Open(ctx, cfg.Storage.Catalog.Driver, cfg.Storage.Catalog.DSN)
	if err != nil {
		return nil, nil, err
	}
	palette, err := cfg.Palette()
	if err != nil {
		catalog.Close()
		return nil, nil, err
	}
	exp := export.New(blobs, catalog, logger)
	exp.Palette = palette
	exp.PlotScale = cfg.Plot.Scale
	return exp, func() { catalog.Close() }, nil
}

// loadModel builds the model named by args, or the reference assembly.
// Script errors are printed before errInvalidModel is returned.
func loadModel(cmd *cobra.Command, a *app.App, args []string) (app.EvalResult, string, error) {
	var (
		res    app.EvalResult
		source string
	)
	switch {
	case reference:
		res, source = a.Reference(), "reference"
	case len(args) == 0:
		return app.EvalResult{}, "", errors.New("a script path or --reference is required")
	default:
		src, err := os.ReadFile(args[0])
		if err != nil {
			return app.EvalResult{}, "", err
		}
		res, source = a.Evaluate(string(src)), args[0]
	}

	out := cmd.ErrOrStderr()
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s: %s\n", w.Object, w.Message)
	}
	if !res.OK() {
		for _, e := range res.Errors {
			if e.Line > 0 {
				fmt.Fprintf(out, "%s:%d: %s\n", source, e.Line, e.Message)
			} else {
				fmt.Fprintf(out, "%s: %s\n", source, e.Message)
			}
		}
		return res, source, errInvalidModel
	}
	return res, source, nil
}
