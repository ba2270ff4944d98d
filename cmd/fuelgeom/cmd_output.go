package main

import (
	"bytes"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chazu/fuelgeom/pkg/blob"
	"github.com/chazu/fuelgeom/pkg/export"
	"github.com/chazu/fuelgeom/pkg/plot"
)

var (
	plotName   string
	plotOut    string
	plotScale  int
	plotToBlob bool

	exportSkipPlots bool
)

var plotCmd = &cobra.Command{
	Use:   "plot [script]",
	Short: "Render a declared plot to PNG",
	Long: `Samples one of the model's declared plots and writes a PNG. By default
the file is <plot name>.png in the current directory; with --blob it is
stored under plots/ in the configured blob store.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlot,
}

var exportCmd = &cobra.Command{
	Use:   "export [script]",
	Short: "Export the model to the configured blob store and catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List exported runs, or the artifacts of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	plotCmd.Flags().StringVarP(&plotName, "name", "n", "", "Plot to render (default: the first declared)")
	plotCmd.Flags().StringVarP(&plotOut, "out", "o", "", "Output file (default: <name>.png)")
	plotCmd.Flags().IntVar(&plotScale, "scale", 0, "Integer enlargement (default: plot.scale from config)")
	plotCmd.Flags().BoolVar(&plotToBlob, "blob", false, "Store the PNG in the blob store instead of a file")
	exportCmd.Flags().BoolVar(&exportSkipPlots, "skip-plots", false, "Do not render plots")
}

func runPlot(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	res, _, err := loadModel(cmd, a, args)
	if err != nil {
		return err
	}
	m := res.Model

	var spec *plot.Spec
	for i := range m.Plots {
		if plotName == "" || m.Plots[i].Name == plotName {
			spec = &m.Plots[i]
			break
		}
	}
	if spec == nil {
		if plotName == "" {
			return fmt.Errorf("model %q declares no plots", m.Name)
		}
		return fmt.Errorf("model %q has no plot %q", m.Name, plotName)
	}
	scale := plotScale
	if scale <= 0 {
		scale = cfg.Plot.Scale
	}

	ctx, cancel := signalContext()
	defer cancel()

	var buf bytes.Buffer
	start := time.Now()
	r, err := a.Plot(ctx, m, *spec, &buf, scale)
	if err != nil {
		return err
	}
	logger.Debug("plot sampled", zap.String("plot", spec.Name), zap.Duration("took", time.Since(start)))

	out := cmd.OutOrStdout()
	if plotToBlob {
		blobs, err := blob.Open(ctx, cfg.Storage.Blob)
		if err != nil {
			return err
		}
		// Stores are create-only; a re-render replaces the previous image.
		key := "plots/" + export.PlotFile(0, spec.Name)
		if _, err := blobs.Delete(ctx, key); err != nil {
			return err
		}
		info, err := blobs.Put(ctx, key, &buf, blob.PutOptions{ContentType: "image/png"})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "stored %s (%d bytes) in %s\n", info.Key, info.Size, blobs.Driver())
		if url, err := blobs.PresignURL(ctx, key, 0); err == nil {
			fmt.Fprintf(out, "url: %s\n", url)
		}
	} else {
		path := plotOut
		if path == "" {
			path = export.PlotFile(0, spec.Name)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", path)
	}
	fmt.Fprintf(out, "%d pixels found, %d outside, %d unresolved\n", r.Found, r.Outside, r.Unresolved)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	exp, closeSink, err := openSink(ctx)
	if err != nil {
		return err
	}
	defer closeSink()

	a, err := newApp(exp)
	if err != nil {
		return err
	}
	res, source, err := loadModel(cmd, a, args)
	if err != nil {
		return err
	}

	result, err := a.Export(ctx, res.Model, export.Options{Source: source, SkipPlots: exportSkipPlots})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s\n", result.Run.ID)
	for _, art := range result.Artifacts {
		fmt.Fprintf(out, "  %-10s %s (%d bytes)\n", art.Kind, art.Key, art.Size)
	}
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	exp, closeSink, err := openSink(ctx)
	if err != nil {
		return err
	}
	defer closeSink()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if len(args) == 1 {
		arts, err := exp.Catalog.Artifacts(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "KIND\tKEY\tSIZE\tETAG")
		for _, art := range arts {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", art.Kind, art.Key, art.Size, art.ETag)
		}
		return tw.Flush()
	}

	runs, err := exp.Catalog.Runs(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "ID\tNAME\tSOURCE\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Source, r.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
