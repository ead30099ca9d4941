// Package spatial buckets a point set into fixed-size voxel cells for
// near-constant-time neighbor queries. The grid is rebuilt from scratch for
// every new point set; rebuild cost is linear in the point count and paced
// by the network frame rate, not the render rate.
package spatial

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/livedepth/livedepth/config"
	"github.com/livedepth/livedepth/depth"
)

// ErrInvalidCellSize rejects non-positive cell sizes at build time.
var ErrInvalidCellSize = fmt.Errorf("%w: cell size must be > 0", config.ErrInvalidConfig)

type Grid struct {
	cellSize float32
	points   *depth.PointSet
	// Map from cell hash to indices of valid points in that cell.
	cells map[uint64][]int32
}

// Build buckets every valid point of ps. An empty or nil set yields a grid
// with zero buckets where every query returns nothing.
func Build(ps *depth.PointSet, cellSize float32) (*Grid, error) {
	if cellSize <= 0 {
		return nil, fmt.Errorf("%w, got %g", ErrInvalidCellSize, cellSize)
	}
	g := &Grid{
		cellSize: cellSize,
		points:   ps,
		cells:    make(map[uint64][]int32),
	}
	if ps == nil {
		return g, nil
	}
	for i, valid := range ps.Valid {
		if !valid {
			continue
		}
		p := ps.Position(i)
		key := hashKey(g.cellIndex(p[0]), g.cellIndex(p[1]), g.cellIndex(p[2]))
		g.cells[key] = append(g.cells[key], int32(i))
	}
	return g, nil
}

// CellSize returns the quantization step the grid was built with.
func (g *Grid) CellSize() float32 {
	return g.cellSize
}

// Neighbors visits every point index whose Euclidean distance to pos is at
// most radius, scanning the 3x3x3 cell block around pos. Distances compare
// squared, no sqrt. Returning false from fn stops the scan early.
func (g *Grid) Neighbors(pos mgl32.Vec3, radius float32, fn func(i int32, distSq float32) bool) {
	if len(g.cells) == 0 || radius <= 0 {
		return
	}
	cx := g.cellIndex(pos[0])
	cy := g.cellIndex(pos[1])
	cz := g.cellIndex(pos[2])
	rSq := radius * radius

	for x := cx - 1; x <= cx+1; x++ {
		for y := cy - 1; y <= cy+1; y++ {
			for z := cz - 1; z <= cz+1; z++ {
				for _, i := range g.cells[hashKey(x, y, z)] {
					d := g.points.Position(int(i)).Sub(pos)
					distSq := d.Dot(d)
					if distSq <= rSq {
						if !fn(i, distSq) {
							return
						}
					}
				}
			}
		}
	}
}

// NeighborIndices collects the indices Neighbors would visit. Convenience
// form for tests and one-shot queries; the rain path uses Neighbors to
// avoid the allocation.
func (g *Grid) NeighborIndices(pos mgl32.Vec3, radius float32) []int32 {
	var out []int32
	g.Neighbors(pos, radius, func(i int32, _ float32) bool {
		out = append(out, i)
		return true
	})
	return out
}

// HasNeighbor reports whether any valid point lies within radius of pos.
func (g *Grid) HasNeighbor(pos mgl32.Vec3, radius float32) bool {
	found := false
	g.Neighbors(pos, radius, func(int32, float32) bool {
		found = true
		return false
	})
	return found
}

func (g *Grid) cellIndex(v float32) int {
	return int(math.Floor(float64(v / g.cellSize)))
}

// Simple hash function for 3D cell coordinates.
func hashKey(x, y, z int) uint64 {
	// large primes for mixing
	const p1 = 73856093
	const p2 = 19349663
	const p3 = 83492791
	return uint64(x*p1 ^ y*p2 ^ z*p3)
}
