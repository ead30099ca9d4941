// Package viewer owns one viewing session: the tween buffer, the rain
// simulation, the collision grid, and the export path. The session is an
// explicit object created by the render loop; independent sessions can
// coexist, which the tests rely on.
package viewer

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/livedepth/livedepth/config"
	"github.com/livedepth/livedepth/core"
	"github.com/livedepth/livedepth/depth"
	"github.com/livedepth/livedepth/export"
	"github.com/livedepth/livedepth/meshing"
	"github.com/livedepth/livedepth/rain"
	"github.com/livedepth/livedepth/render"
	"github.com/livedepth/livedepth/spatial"
	"github.com/livedepth/livedepth/tween"
)

// Session is the per-viewer state machine. HandlePointSet is fed from the
// stream side; Tick runs once per render frame on the render thread.
type Session struct {
	cfg config.Config

	tween *tween.Buffer
	rain  *rain.Sim
	grid  *spatial.Grid
	cloud *depth.PointSet

	gridW, gridH int

	verts []render.PointVertex
}

// NewSession builds a session from a validated config.
func NewSession(cfg config.Config) *Session {
	return &Session{
		cfg:   cfg,
		tween: tween.NewBuffer(cfg.Tween.MinWindowMs, cfg.Tween.MaxWindowMs),
		rain: rain.NewSim(cfg.Rain.ParticleCount, rain.ParamsFromConfig(cfg.Rain),
			time.Now().UnixNano()),
	}
}

// HandlePointSet publishes a freshly unprojected set: tween swap plus a
// full collision grid rebuild. Called once per decoded frame, off the
// render path. A resolution change is detected here and only logged; the
// tween buffer and grid re-derive their own allocations from the set.
func (s *Session) HandlePointSet(ps *depth.PointSet, nowMs float64) {
	if s.gridW != 0 && (ps.Width != s.gridW || ps.Height != s.gridH) {
		core.LogInfo("session: resolution change %dx%d -> %dx%d, reallocating",
			s.gridW, s.gridH, ps.Width, ps.Height)
	}
	s.gridW, s.gridH = ps.Width, ps.Height

	s.tween.OnFrame(ps, nowMs)
	s.cloud = ps

	grid, err := spatial.Build(ps, s.cfg.Rain.CellSize)
	if err != nil {
		// cell size was validated at config time; keep the old grid
		core.LogError("session: grid rebuild: %v", err)
		return
	}
	s.grid = grid
}

// Tick advances rain and produces the packed vertex list for the backend.
// Bounded work: one linear pass over the cloud and one over the particle
// pool. Returns nil before the first frame.
func (s *Session) Tick(nowMs float64, dt float32) []render.PointVertex {
	state := s.tween.Sample(nowMs)
	s.rain.Step(dt, s.grid, s.cloud)

	if state == nil {
		return nil
	}

	s.verts = s.verts[:0]
	size := s.cfg.Sprite.Size
	for i, valid := range state.Valid {
		if !valid {
			continue
		}
		s.verts = append(s.verts, render.PointVertex{
			Pos:   [3]float32{state.Positions[3*i], state.Positions[3*i+1], state.Positions[3*i+2]},
			Size:  size,
			Color: [4]float32{state.Colors[3*i], state.Colors[3*i+1], state.Colors[3*i+2], 1},
		})
	}
	s.verts = s.rain.Instances(s.verts, size)
	return s.verts
}

// Style returns the current point sprite style.
func (s *Session) Style() render.PointStyle {
	return render.PointStyle{
		Shape:     s.cfg.Sprite.Shape,
		Feather:   s.cfg.Sprite.Feather,
		Thickness: s.cfg.Sprite.Thickness,
		Size:      s.cfg.Sprite.Size,
	}
}

// ApplyConfig swaps in a validated config at runtime. Rain tunables, tween
// window bounds, and sprite style take effect immediately; a cell size
// change applies on the next grid rebuild.
func (s *Session) ApplyConfig(cfg config.Config) {
	if err := cfg.Validate(); err != nil {
		core.LogWarn("session: config rejected: %v", err)
		return
	}
	if cfg.Rain.ParticleCount != s.cfg.Rain.ParticleCount {
		s.rain = rain.NewSim(cfg.Rain.ParticleCount, rain.ParamsFromConfig(cfg.Rain),
			time.Now().UnixNano())
	} else {
		s.rain.SetParams(rain.ParamsFromConfig(cfg.Rain))
	}
	s.tween.SetWindowBounds(cfg.Tween.MinWindowMs, cfg.Tween.MaxWindowMs)
	s.cfg = cfg
	core.LogInfo("session: config applied")
}

// Export reconstructs the latest cloud and writes it to dir, picking the
// format from ext (".glb" or ".gltf"). Zero accepted triangles falls back
// to a point-cloud primitive; that path is reported, not failed.
func (s *Session) Export(dir, ext string) (export.Result, string, error) {
	if s.cloud == nil {
		return export.Result{}, "", fmt.Errorf("export: no frame received yet")
	}
	mesh, err := meshing.Build(s.cloud, s.cfg.Export.Stride, s.cfg.Export.MaxEdge)
	if err != nil {
		return export.Result{}, "", err
	}
	name := fmt.Sprintf("livedepth-%s%s", uuid.NewString()[:8], ext)
	path := filepath.Join(dir, name)
	res, err := export.WriteFile(path, mesh)
	if err != nil {
		return res, path, err
	}
	if res.FellBack {
		core.LogWarn("export: no triangles survived edge filtering, wrote point cloud (%d points)", res.Vertices)
	} else {
		core.LogInfo("export: wrote %s (%d triangles, %d vertices)", path, res.Triangles, res.Vertices)
	}
	return res, path, nil
}

// Cloud returns the latest published point set, nil before the first
// frame.
func (s *Session) Cloud() *depth.PointSet {
	return s.cloud
}

// Grid returns the current collision grid, nil before the first frame.
func (s *Session) Grid() *spatial.Grid {
	return s.grid
}

// Rain exposes the simulator for tests and the HUD.
func (s *Session) Rain() *rain.Sim {
	return s.rain
}
