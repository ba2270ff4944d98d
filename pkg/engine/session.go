package engine

import (
	"errors"

	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/material"
	"github.com/chazu/fuelgeom/pkg/model"
	"github.com/chazu/fuelgeom/pkg/tally"
)

// session accumulates the declarations of one evaluation.
type session struct {
	b           *geometry.Builder
	lib         *material.Library
	root        *geometry.Universe
	model       *model.Model
	hasSettings bool
}

func newSession() *session {
	s := &session{
		b:     geometry.NewBuilder(),
		lib:   material.NewLibrary(),
		model: &model.Model{},
	}
	s.b.UseMaterials(s.lib)
	s.model.Materials = s.lib
	return s
}

// finish builds the geometry and checks the model as a whole. Problems in
// the declarations come back as EvalErrors; the model is nil when there are
// any.
func (s *session) finish() (*model.Model, []EvalError) {
	if err := s.lib.Validate(); err != nil {
		return nil, errorsOf(err)
	}
	if s.root == nil {
		// Nothing to build: a script may only declare materials.
		if len(s.model.Tallies) > 0 {
			return nil, []EvalError{{Message: "tallies declared without a (geometry ...) root"}}
		}
		return s.model, nil
	}

	g, err := s.b.Build(s.root)
	if err != nil {
		return nil, errorsOf(err)
	}
	s.model.Geometry = g

	if s.hasSettings {
		if _, err := s.model.Validate(); err != nil {
			return nil, errorsOf(err)
		}
		return s.model, nil
	}
	if _, err := tally.NewClassifier(g, s.model.Tallies); err != nil {
		return nil, errorsOf(err)
	}
	return s.model, nil
}

// errorsOf flattens build findings and joined errors into EvalErrors.
func errorsOf(err error) []EvalError {
	var be *geometry.BuildError
	if errors.As(err, &be) {
		out := make([]EvalError, len(be.Findings))
		for i, f := range be.Findings {
			out[i] = EvalError{Message: f.Error()}
		}
		return out
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []EvalError
		for _, e := range joined.Unwrap() {
			out = append(out, errorsOf(e)...)
		}
		return out
	}
	return []EvalError{{Message: err.Error()}}
}
