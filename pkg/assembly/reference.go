package assembly

import (
	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/model"
	"github.com/chazu/fuelgeom/pkg/plot"
	"github.com/chazu/fuelgeom/pkg/tally"
)

// ReferenceSettings are the run parameters of the reference model.
func ReferenceSettings() model.Settings {
	return model.Settings{Particles: 1000, Batches: 100, Inactive: 10}
}

// ReferenceMesh is the 50x50x1 flux mesh over the assembly.
func ReferenceMesh() *tally.RegularMesh {
	return &tally.RegularMesh{
		ID:         1,
		Name:       "flux mesh",
		Dimension:  [3]int{50, 50, 1},
		LowerLeft:  csg.Vec3{X: -12, Y: -12, Z: -1},
		UpperRight: csg.Vec3{X: 12, Y: 12, Z: 1},
	}
}

// ReferenceTallies declares the three reference tallies.
func ReferenceTallies(fuel *geometry.Cell, mesh *tally.RegularMesh) []*tally.Tally {
	return []*tally.Tally{
		{
			Name:     "fuel_reactions",
			Filters:  []tally.Filter{tally.CellFilter{Cells: []*geometry.Cell{fuel}}},
			Nuclides: []string{"U235"},
			Scores:   []tally.Score{tally.ScoreTotal, tally.ScoreFission, tally.ScoreAbsorption, tally.ScoreNGamma},
		},
		{
			Name:    "flux",
			Filters: []tally.Filter{tally.MeshFilter{Mesh: mesh}},
			Scores:  []tally.Score{tally.ScoreFlux},
		},
		{
			Name:   "reaction_rates",
			Scores: []tally.Score{tally.ScoreFission, tally.ScoreAbsorption},
		},
	}
}

// ReferencePlot is the 15x15 cm material plot through the assembly centre.
func ReferencePlot() plot.Spec {
	return plot.Spec{
		Name:    "fuel_assembly_plot",
		Width:   15,
		Height:  15,
		Pixels:  [2]int{1000, 1000},
		Basis:   plot.BasisXY,
		ColorBy: plot.ByMaterial,
	}
}

// Reference builds the complete reference model.
func Reference() (*model.Model, error) {
	a, err := Build(DefaultConfig())
	if err != nil {
		return nil, err
	}
	mesh := ReferenceMesh()
	m := &model.Model{
		Name:      "pwr_assembly",
		Materials: a.Library,
		Geometry:  a.Geometry,
		Settings:  ReferenceSettings(),
		Tallies:   ReferenceTallies(a.FuelCell, mesh),
		Meshes:    []*tally.RegularMesh{mesh},
		Plots:     []plot.Spec{ReferencePlot()},
	}
	if _, err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
