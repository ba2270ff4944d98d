// Package engine evaluates model scripts. It wraps zygomys in a sandboxed
// environment with builtins for materials, surfaces, regions, cells,
// universes, lattices, settings, tallies and plots, and produces a validated
// model.Model.
package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/geometry"
	"github.com/chazu/fuelgeom/pkg/material"
	"github.com/chazu/fuelgeom/pkg/model"
	"github.com/chazu/fuelgeom/pkg/plot"
	zygo "github.com/glycerine/zygomys/zygo"
)

var (
	// ErrTimeout is returned when an evaluation exceeds the engine timeout.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrSuperseded is returned when a newer evaluation started first.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// EvalError is a non-fatal error in user code: a parse error, a runtime
// error raised by a builtin, or a model validation finding.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning is a non-blocking finding about an evaluated model.
type EvalWarning struct {
	Object  string
	Message string
}

// overlapSamples caps the per-axis sample count of the overlap check.
const overlapSamples = 32

// Warnings lists the geometry warnings of m, such as orphan universes, and
// any cell overlaps found on a coarse grid over each declared plot.
func Warnings(m *model.Model) []EvalWarning {
	if m == nil || m.Geometry == nil {
		return nil
	}
	var out []EvalWarning
	for _, w := range m.Geometry.Warnings() {
		out = append(out, EvalWarning{Object: w.Object, Message: w.Message})
	}

	seen := map[string]bool{}
	for _, p := range m.Plots {
		for _, o := range geometry.CheckOverlaps(m.Geometry, plotSamples(p)) {
			ids := make([]geometry.CellID, len(o.Cells))
			for i, c := range o.Cells {
				ids[i] = c.ID
			}
			key := fmt.Sprint(o.Universe.ID, ids)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, EvalWarning{
				Object:  o.Universe.String(),
				Message: fmt.Sprintf("cells %v overlap at %v; the first one wins", ids, o.Point),
			})
		}
	}
	return out
}

// plotSamples returns pixel centres of p on a grid of at most
// overlapSamples per side.
func plotSamples(p plot.Spec) []csg.Vec3 {
	if p.Validate() != nil {
		return nil
	}
	coarse := p
	coarse.Pixels = [2]int{min(p.Pixels[0], overlapSamples), min(p.Pixels[1], overlapSamples)}
	pts := make([]csg.Vec3, 0, coarse.Pixels[0]*coarse.Pixels[1])
	for row := 0; row < coarse.Pixels[1]; row++ {
		for col := 0; col < coarse.Pixels[0]; col++ {
			pts = append(pts, coarse.PixelCenter(col, row))
		}
	}
	return pts
}

// Engine evaluates model scripts. It is safe for concurrent use; every call
// to Evaluate runs in a fresh sandbox, and only the most recent call's
// result is returned.
type Engine struct {
	// Timeout bounds a single evaluation. Set it before the first call.
	Timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// NewEngine returns an engine with the default timeout.
func NewEngine() *Engine {
	return &Engine{Timeout: DefaultEvalTimeout}
}

// Evaluate runs source and returns the model it declares.
//
// Return semantics:
//   - On success: model + nil errors + nil error
//   - On parse, runtime or validation failure: nil + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): nil + nil + error
func (e *Engine) Evaluate(source string) (*model.Model, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		m, evalErrs, err := evaluate(source)
		ch <- evalResult{model: m, errors: evalErrs, err: err}
	}()

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}
	return waitWithTimeout(ch, gen, &e.mu, &e.generation, timeout)
}

func evaluate(source string) (*model.Model, []EvalError, error) {
	// Empty source is a valid program declaring an empty model.
	if strings.TrimSpace(source) == "" {
		return &model.Model{Materials: material.NewLibrary()}, nil, nil
	}

	// Sandbox mode keeps user code away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	s := newSession()
	registerBuiltins(env, s)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}

	m, evalErrs := s.finish()
	if len(evalErrs) > 0 {
		return nil, evalErrs, nil
	}
	return m, nil, nil
}

// linePattern matches zygomys messages like "Error on line N: ...".
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches "line N: ...".
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalErrors, extracting the
// line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
