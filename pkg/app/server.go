package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/chazu/fuelgeom/pkg/csg"
	"github.com/chazu/fuelgeom/pkg/model"
	"github.com/chazu/fuelgeom/pkg/plot"
	"github.com/chazu/fuelgeom/pkg/tally"
)

// LevelData is one step of a point location, as served by /locate.
type LevelData struct {
	Universe string     `json:"universe,omitempty"`
	Cell     string     `json:"cell,omitempty"`
	Lattice  string     `json:"lattice,omitempty"`
	Index    *[2]int    `json:"index,omitempty"`
	Point    [3]float64 `json:"point"`
}

// HitData is one tally bin a located event scores into.
type HitData struct {
	Tally string `json:"tally"`
	Bin   int    `json:"bin"`
}

// LocationData is the /locate response.
type LocationData struct {
	Status   string      `json:"status"`
	Point    [3]float64  `json:"point"`
	CellID   int         `json:"cellId,omitempty"`
	Cell     string      `json:"cell,omitempty"`
	Material string      `json:"material,omitempty"`
	Void     bool        `json:"void"`
	Error    string      `json:"error,omitempty"`
	Path     []LevelData `json:"path"`
	Hits     []HitData   `json:"hits,omitempty"`
}

// server answers queries against one model.
type server struct {
	app        *App
	model      *model.Model
	classifier *tally.Classifier
}

// Handler serves queries against m:
//
//	GET /locate?x=&y=&z=[&reaction=&nuclide=]  point location as JSON
//	GET /plot.png[?name=&scale=]                a declared plot
//	GET /metrics                                Prometheus metrics
//
// Tallies are compiled once; an invalid tally declaration is an error.
func (a *App) Handler(m *model.Model) (http.Handler, error) {
	if m == nil || m.Geometry == nil {
		return nil, ErrNoGeometry
	}
	c, err := tally.NewClassifier(m.Geometry, m.Tallies)
	if err != nil {
		return nil, err
	}
	s := &server{app: a, model: m, classifier: c}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /locate", s.locate)
	mux.HandleFunc("GET /plot.png", s.plot)
	mux.Handle("GET /metrics", a.metrics.Handler())
	return mux, nil
}

func (s *server) locate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var p csg.Vec3
	for _, f := range []struct {
		key string
		dst *float64
	}{{"x", &p.X}, {"y", &p.Y}, {"z", &p.Z}} {
		v, err := strconv.ParseFloat(q.Get(f.key), 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("bad %s: %v", f.key, err), http.StatusBadRequest)
			return
		}
		*f.dst = v
	}

	loc, err := s.app.Locate(s.model, p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := LocationData{
		Status: loc.Status.String(),
		Point:  [3]float64{p.X, p.Y, p.Z},
		Void:   loc.Void(),
		Path:   make([]LevelData, 0, len(loc.Path)),
	}
	if err := loc.Err(); err != nil {
		resp.Error = err.Error()
	}
	if loc.Cell != nil {
		resp.CellID, resp.Cell = int(loc.Cell.ID), loc.Cell.Name
	}
	if loc.Material != nil {
		resp.Material = loc.Material.Name
	}
	for _, lvl := range loc.Path {
		ld := LevelData{Point: [3]float64{lvl.Point.X, lvl.Point.Y, lvl.Point.Z}}
		if lvl.Universe != nil {
			ld.Universe = lvl.Universe.Name
		}
		if lvl.Cell != nil {
			ld.Cell = lvl.Cell.Name
		}
		if lvl.Lattice != nil {
			idx := lvl.Index
			ld.Lattice, ld.Index = lvl.Lattice.Name, &idx
		}
		resp.Path = append(resp.Path, ld)
	}

	if reaction := q.Get("reaction"); reaction != "" {
		score, err := tally.ParseScore(reaction)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hits, err := s.app.Classify(s.model, s.classifier, p, q.Get("nuclide"), score)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, h := range hits {
			resp.Hits = append(resp.Hits, HitData{Tally: h.Tally.Name, Bin: h.Bin})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.app.logger.Warn("write locate response", zap.Error(err))
	}
}

func (s *server) plot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	spec, ok := s.findPlot(q.Get("name"))
	if !ok {
		http.Error(w, "no such plot", http.StatusNotFound)
		return
	}
	scale := 1
	if v := q.Get("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 16 {
			http.Error(w, "scale must be an integer in [1, 16]", http.StatusBadRequest)
			return
		}
		scale = n
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := s.app.Plot(r.Context(), s.model, spec, w, scale); err != nil {
		s.app.logger.Error("plot request failed", zap.String("plot", spec.Name), zap.Error(err))
		if errors.Is(err, plot.ErrInvalidPlot) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// findPlot returns the named plot, or the first declared plot when name is
// empty.
func (s *server) findPlot(name string) (plot.Spec, bool) {
	for _, p := range s.model.Plots {
		if name == "" || p.Name == name {
			return p, true
		}
	}
	return plot.Spec{}, false
}

// Serve listens on addr and serves Handler(m) until ctx is cancelled, then
// shuts down gracefully.
func (a *App) Serve(ctx context.Context, addr string, m *model.Model) error {
	h, err := a.Handler(m)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return a.serve(ctx, ln, h)
}

func (a *App) serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	server := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve(ln)
	}()
	a.logger.Info("serving", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errChan; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
