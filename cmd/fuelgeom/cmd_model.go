package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chazu/fuelgeom/pkg/csg"
)

var (
	buildJSON bool
	meshOut   string
)

var buildCmd = &cobra.Command{
	Use:   "build [script]",
	Short: "Evaluate a model script and summarise the model",
	Long: `Evaluates a script (or the reference assembly) and prints object counts,
tallies and plots. Errors are reported with line numbers when available.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

var locateCmd = &cobra.Command{
	Use:   "locate [script] x y z",
	Short: "Find the cell and material at a point",
	Args: func(cmd *cobra.Command, args []string) error {
		want := 4
		if reference {
			want = 3
		}
		if len(args) != want {
			return fmt.Errorf("accepts %d arg(s), received %d", want, len(args))
		}
		return nil
	},
	RunE: runLocate,
}

var meshCmd = &cobra.Command{
	Use:   "mesh [script]",
	Short: "Tessellate the geometry and summarise the meshes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMesh,
}

func init() {
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Print the summary as JSON")
	meshCmd.Flags().StringVarP(&meshOut, "out", "o", "", "Write meshes as JSON to this file")
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	res, source, err := loadModel(cmd, a, args)
	if err != nil {
		return err
	}
	m := res.Model
	logger.Info("model built", zap.String("source", source))

	out := cmd.OutOrStdout()
	if buildJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(out, "model %q from %s\n", m.Name, source)
	if m.Materials != nil {
		fmt.Fprintf(out, "  materials: %d\n", m.Materials.Len())
	}
	if m.Geometry == nil {
		fmt.Fprintln(out, "  no geometry")
		return nil
	}
	s := m.Geometry.Summary()
	fmt.Fprintf(out, "  surfaces: %d  cells: %d  universes: %d  lattices: %d\n",
		s.Surfaces, s.Cells, s.Universes, s.Lattices)
	if m.Settings.Particles > 0 {
		fmt.Fprintf(out, "  settings: %d particles, %d batches (%d inactive)\n",
			m.Settings.Particles, m.Settings.Batches, m.Settings.Inactive)
	}
	for _, t := range m.Tallies {
		fmt.Fprintf(out, "  tally %q: %d bins\n", t.Name, t.NumBins())
	}
	for _, p := range m.Plots {
		fmt.Fprintf(out, "  plot %q: %dx%d %s\n", p.Name, p.Pixels[0], p.Pixels[1], p.Basis)
	}
	return nil
}

func runLocate(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	coords := args[len(args)-3:]
	var xyz [3]float64
	for i, s := range coords {
		if xyz[i], err = strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("coordinate %q: %w", s, err)
		}
	}
	res, _, err := loadModel(cmd, a, args[:len(args)-3])
	if err != nil {
		return err
	}

	loc, err := a.Locate(res.Model, csg.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status: %s\n", loc.Status)
	if err := loc.Err(); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
	if loc.Cell != nil {
		fmt.Fprintf(out, "cell: %s\n", loc.Cell)
		switch {
		case loc.Material != nil:
			fmt.Fprintf(out, "material: %s\n", loc.Material.Name)
		default:
			fmt.Fprintln(out, "material: void")
		}
	}
	for i, lvl := range loc.Path {
		fmt.Fprintf(out, "  %d: ", i)
		if lvl.Universe != nil {
			fmt.Fprintf(out, "universe %s", lvl.Universe)
		}
		if lvl.Cell != nil {
			fmt.Fprintf(out, " cell %s", lvl.Cell)
		}
		if lvl.Lattice != nil {
			fmt.Fprintf(out, " lattice %s[%d,%d]", lvl.Lattice.Name, lvl.Index[0], lvl.Index[1])
		}
		fmt.Fprintf(out, " at %v\n", lvl.Point)
	}
	return nil
}

func runMesh(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	res, _, err := loadModel(cmd, a, args)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	meshes, err := a.Meshes(ctx, res.Model)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tCELL\tMATERIAL\tTRIANGLES")
	for _, md := range meshes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", md.Path, md.Cell, md.Material, len(md.Indices)/3)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if meshOut == "" {
		return nil
	}
	f, err := os.Create(meshOut)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(meshes); err != nil {
		return err
	}
	logger.Info("meshes written", zap.String("path", meshOut), zap.Int("meshes", len(meshes)))
	return nil
}
