package model_test

import (
	"errors"
	"testing"

	"github.com/chazu/fuelgeom/pkg/assembly"
	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/model"
	"github.com/chazu/fuelgeom/pkg/tally"
)

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name string
		s    model.Settings
		ok   bool
	}{
		{"reference", assembly.ReferenceSettings(), true},
		{"no inactive", model.Settings{Particles: 10, Batches: 5}, true},
		{"no particles", model.Settings{Batches: 5}, false},
		{"no batches", model.Settings{Particles: 10}, false},
		{"all inactive", model.Settings{Particles: 10, Batches: 5, Inactive: 5}, false},
		{"negative inactive", model.Settings{Particles: 10, Batches: 5, Inactive: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, model.ErrInvalidSettings) {
				t.Fatalf("expected ErrInvalidSettings, got %v", err)
			}
		})
	}
}

func TestActiveBatches(t *testing.T) {
	s := assembly.ReferenceSettings()
	if got := s.ActiveBatches(); got != 90 {
		t.Errorf("ActiveBatches = %d, want 90", got)
	}
}

func TestModelValidate(t *testing.T) {
	m, err := assembly.Reference()
	if err != nil {
		t.Fatalf("Reference: %v", err)
	}
	c, err := m.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(c.Tallies()) != len(m.Tallies) {
		t.Errorf("classifier has %d tallies, want %d", len(c.Tallies()), len(m.Tallies))
	}
	if m.Tally("flux") == nil {
		t.Error("reference model has no flux tally")
	}
	if m.Tally("missing") != nil {
		t.Error("Tally should return nil for unknown names")
	}
}

func TestModelValidateSourceOutside(t *testing.T) {
	m, err := assembly.Reference()
	if err != nil {
		t.Fatalf("Reference: %v", err)
	}
	m.Settings.Source.Point = csg.Vec3{X: 1000}
	if _, err := m.Validate(); !errors.Is(err, model.ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings for a source outside the geometry, got %v", err)
	}
}

func TestModelValidateNoGeometry(t *testing.T) {
	m := &model.Model{Name: "empty", Settings: assembly.ReferenceSettings()}
	if _, err := m.Validate(); err == nil {
		t.Fatal("expected error for a model without geometry")
	}
}

func TestModelValidateUndeclaredMesh(t *testing.T) {
	m, err := assembly.Reference()
	if err != nil {
		t.Fatalf("Reference: %v", err)
	}
	m.Meshes = nil
	if _, err := m.Validate(); !errors.Is(err, tally.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter for a mesh missing from the model, got %v", err)
	}

	// An equal but distinct mesh is still not the one the tally uses.
	m.Meshes = []*tally.RegularMesh{assembly.ReferenceMesh()}
	if _, err := m.Validate(); !errors.Is(err, tally.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter for a copied mesh, got %v", err)
	}
}
