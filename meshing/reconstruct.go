// Package meshing downsamples the depth grid into a triangulated surface
// for export. Triangles never bridge depth discontinuities: every edge of
// an accepted triangle must be shorter than the configured maximum.
package meshing

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/livedepth/livedepth/config"
	"github.com/livedepth/livedepth/depth"
)

// Mesh is the compacted reconstruction output. Triangles may be empty; the
// exporter is then required to fall back to a point-cloud primitive over
// the same vertices.
type Mesh struct {
	Positions []float32 // 3 * len(vertices)
	Colors    []float32 // 3 * len(vertices)
	Triangles []uint32  // 3 * triangle count, indices into the vertex list
}

// VertexCount returns the number of compacted vertices.
func (m *Mesh) VertexCount() int { return len(m.Positions) / 3 }

// TriangleCount returns the number of accepted triangles.
func (m *Mesh) TriangleCount() int { return len(m.Triangles) / 3 }

// Build walks the grid in steps of stride, forming two triangles per 2x2
// quad of grid-aligned samples. A triangle is accepted only if all three
// vertices are valid and each pairwise edge is at most maxEdge long.
//
// When no triangle survives, the returned mesh contains every valid point
// as a vertex and an empty triangle list, ready for the mandatory
// point-cloud fallback.
func Build(ps *depth.PointSet, stride int, maxEdge float32) (*Mesh, error) {
	if stride < 1 {
		return nil, fmt.Errorf("%w: mesh stride must be >= 1, got %d", config.ErrInvalidConfig, stride)
	}
	if maxEdge <= 0 {
		return nil, fmt.Errorf("%w: max edge must be > 0, got %g", config.ErrInvalidConfig, maxEdge)
	}

	w, h := ps.Width, ps.Height
	maxEdgeSq := maxEdge * maxEdge

	// remap from grid index to compacted vertex index, built lazily
	remap := make(map[int]uint32)
	mesh := &Mesh{}

	emit := func(gridIdx int) uint32 {
		if vi, ok := remap[gridIdx]; ok {
			return vi
		}
		vi := uint32(mesh.VertexCount())
		remap[gridIdx] = vi
		mesh.Positions = append(mesh.Positions,
			ps.Positions[3*gridIdx], ps.Positions[3*gridIdx+1], ps.Positions[3*gridIdx+2])
		mesh.Colors = append(mesh.Colors,
			ps.Colors[3*gridIdx], ps.Colors[3*gridIdx+1], ps.Colors[3*gridIdx+2])
		return vi
	}

	edgeOk := func(a, b int) bool {
		d := ps.Position(a).Sub(ps.Position(b))
		return d.Dot(d) <= maxEdgeSq
	}

	tryTriangle := func(a, b, c int) {
		if !ps.Valid[a] || !ps.Valid[b] || !ps.Valid[c] {
			return
		}
		if !edgeOk(a, b) || !edgeOk(b, c) || !edgeOk(a, c) {
			return
		}
		mesh.Triangles = append(mesh.Triangles, emit(a), emit(b), emit(c))
	}

	for v := 0; v+stride < h; v += stride {
		for u := 0; u+stride < w; u += stride {
			i00 := v*w + u
			i10 := v*w + u + stride
			i01 := (v+stride)*w + u
			i11 := (v+stride)*w + u + stride
			tryTriangle(i00, i01, i10)
			tryTriangle(i10, i01, i11)
		}
	}

	if len(mesh.Triangles) == 0 {
		// fallback geometry: all valid points, no topology
		mesh.Positions = mesh.Positions[:0]
		mesh.Colors = mesh.Colors[:0]
		for i, valid := range ps.Valid {
			if !valid {
				continue
			}
			mesh.Positions = append(mesh.Positions,
				ps.Positions[3*i], ps.Positions[3*i+1], ps.Positions[3*i+2])
			mesh.Colors = append(mesh.Colors,
				ps.Colors[3*i], ps.Colors[3*i+1], ps.Colors[3*i+2])
		}
	}
	return mesh, nil
}

// Bounds returns the axis-aligned bounds of the mesh vertices. Zero vectors
// for an empty mesh.
func (m *Mesh) Bounds() (mgl32.Vec3, mgl32.Vec3) {
	if m.VertexCount() == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}
	}
	minV := mgl32.Vec3{m.Positions[0], m.Positions[1], m.Positions[2]}
	maxV := minV
	for i := 1; i < m.VertexCount(); i++ {
		for a := 0; a < 3; a++ {
			v := m.Positions[3*i+a]
			if v < minV[a] {
				minV[a] = v
			}
			if v > maxV[a] {
				maxV[a] = v
			}
		}
	}
	return minV, maxV
}
