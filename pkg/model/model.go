// Package model bundles everything a transport run needs: materials,
// geometry, run settings, tallies and plots. A Model is the in-memory result
// of building; persisting it is the job of an explicit export sink.
package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/material"
	"github.com/chazu/fuelgeom/pkg/plot"
	"github.com/chazu/fuelgeom/pkg/tally"
)

// ErrInvalidSettings is wrapped by every settings validation error.
var ErrInvalidSettings = errors.New("invalid settings")

// Source is the initial particle distribution. Only point sources are
// modelled.
type Source struct {
	Point csg.Vec3 `json:"point"`
}

// Settings are the run parameters of a k-eigenvalue calculation.
type Settings struct {
	Particles int    `json:"particles"`
	Batches   int    `json:"batches"`
	Inactive  int    `json:"inactive"`
	Source    Source `json:"source"`
	Seed      int64  `json:"seed,omitempty"`
}

// Validate checks that 0 <= Inactive < Batches and Particles > 0.
func (s Settings) Validate() error {
	if s.Particles <= 0 {
		return fmt.Errorf("%w: particles = %d must be positive", ErrInvalidSettings, s.Particles)
	}
	if s.Batches <= 0 {
		return fmt.Errorf("%w: batches = %d must be positive", ErrInvalidSettings, s.Batches)
	}
	if s.Inactive < 0 || s.Inactive >= s.Batches {
		return fmt.Errorf("%w: inactive = %d must be in [0, %d)", ErrInvalidSettings, s.Inactive, s.Batches)
	}
	return nil
}

// ActiveBatches is the number of batches that contribute to tallies.
func (s Settings) ActiveBatches() int { return s.Batches - s.Inactive }

// Model is a complete problem description.
type Model struct {
	Name      string
	Materials *material.Library
	Geometry  *geometry.Geometry
	Settings  Settings
	Tallies   []*tally.Tally
	Meshes    []*tally.RegularMesh
	Plots     []plot.Spec
}

// Validate checks the settings, materials, source placement, plots and
// tallies. Every mesh a tally filters on must be listed in Meshes.
// It returns the tally classifier so callers do not compile it twice.
func (m *Model) Validate() (*tally.Classifier, error) {
	if m.Geometry == nil {
		return nil, fmt.Errorf("model %q has no geometry", m.Name)
	}
	if err := m.Settings.Validate(); err != nil {
		return nil, err
	}
	if m.Materials != nil {
		if err := m.Materials.Validate(); err != nil {
			return nil, err
		}
	}
	if loc := m.Geometry.Locate(m.Settings.Source.Point); loc.Status != geometry.Found {
		return nil, fmt.Errorf("%w: source point %v: %v", ErrInvalidSettings, m.Settings.Source.Point, loc.Err())
	}
	for _, p := range m.Plots {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	declared := make(map[*tally.RegularMesh]bool, len(m.Meshes))
	for _, mesh := range m.Meshes {
		declared[mesh] = true
	}
	for _, t := range m.Tallies {
		if t == nil {
			continue
		}
		for _, f := range t.Filters {
			if mf, ok := f.(tally.MeshFilter); ok && mf.Mesh != nil && !declared[mf.Mesh] {
				return nil, fmt.Errorf("%w: tally %q filters on mesh %s, which the model does not declare",
					tally.ErrInvalidFilter, t.Name, mf.Mesh)
			}
		}
	}
	return tally.NewClassifier(m.Geometry, m.Tallies)
}

// Tally returns the tally with the given name, or nil.
func (m *Model) Tally(name string) *tally.Tally {
	for _, t := range m.Tallies {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Transport is the external Monte Carlo engine. It owns the random walk,
// cross sections and batch statistics; this module only describes the
// problem and classifies events.
type Transport interface {
	Run(ctx context.Context, m *Model) ([]*tally.Results, error)
}
