package spatial

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/livedepth/livedepth/config"
	"github.com/livedepth/livedepth/depth"
)

func randomSet(t *testing.T, n int, seed int64) *depth.PointSet {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	ps := depth.NewPointSet(n, 1)
	for i := 0; i < n; i++ {
		ps.Positions[3*i] = rng.Float32()*4 - 2
		ps.Positions[3*i+1] = rng.Float32()*4 - 2
		ps.Positions[3*i+2] = rng.Float32()*4 - 2
		ps.Valid[i] = rng.Float32() > 0.1
	}
	return ps
}

// Every query must agree with the brute-force scan over all valid points.
func TestGrid_MatchesBruteForce(t *testing.T) {
	ps := randomSet(t, 500, 42)
	grid, err := Build(ps, 0.25)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for q := 0; q < 50; q++ {
		pos := mgl32.Vec3{rng.Float32()*4 - 2, rng.Float32()*4 - 2, rng.Float32()*4 - 2}
		// the 3x3x3 scan is exact only for radius <= cell size
		radius := 0.02 + rng.Float32()*0.22

		var want []int32
		for i, valid := range ps.Valid {
			if !valid {
				continue
			}
			d := ps.Position(i).Sub(pos)
			if d.Dot(d) <= radius*radius {
				want = append(want, int32(i))
			}
		}

		got := grid.NeighborIndices(pos, radius)
		sort.Slice(got, func(a, b int) bool { return got[a] < got[b] })
		sort.Slice(want, func(a, b int) bool { return want[a] < want[b] })
		require.Equal(t, want, got, "query %d pos %v radius %g", q, pos, radius)

		require.Equal(t, len(want) > 0, grid.HasNeighbor(pos, radius))
	}
}

func TestGrid_ExcludesInvalidPoints(t *testing.T) {
	ps := depth.NewPointSet(2, 1)
	ps.Valid[0] = true
	// point 1 sits at the origin too but is invalid
	grid, err := Build(ps, 0.5)
	require.NoError(t, err)

	got := grid.NeighborIndices(mgl32.Vec3{}, 0.1)
	require.Equal(t, []int32{0}, got)
}

func TestGrid_EmptySet(t *testing.T) {
	grid, err := Build(nil, 0.5)
	require.NoError(t, err)
	require.False(t, grid.HasNeighbor(mgl32.Vec3{}, 10))
	require.Empty(t, grid.NeighborIndices(mgl32.Vec3{}, 10))
}

func TestGrid_NegativeCoordinates(t *testing.T) {
	ps := depth.NewPointSet(1, 1)
	ps.Positions[0] = -1.3
	ps.Positions[1] = -0.7
	ps.Positions[2] = -2.9
	ps.Valid[0] = true

	grid, err := Build(ps, 0.1)
	require.NoError(t, err)
	require.True(t, grid.HasNeighbor(mgl32.Vec3{-1.3, -0.7, -2.9}, 0.01))
	require.False(t, grid.HasNeighbor(mgl32.Vec3{1.3, 0.7, 2.9}, 0.01))
}

// config.Validate caps the collision radius at the cell size; at that
// boundary every direction must still be covered by the one-cell scan.
func TestGrid_ExactAtCellSizeRadius(t *testing.T) {
	const cell = 0.1
	dirs := []mgl32.Vec3{
		{1, 0, 0}, {-1, 0, 0},
		{0, 1, 0}, {0, -1, 0},
		{0, 0, 1}, {0, 0, -1},
		{0.577, 0.577, 0.577}, {-0.577, -0.577, -0.577},
	}
	center := mgl32.Vec3{0.05, 0.05, 0.05} // mid-cell, worst case for coverage

	ps := depth.NewPointSet(len(dirs), 1)
	for i, d := range dirs {
		p := center.Add(d.Mul(cell * 0.99))
		ps.Positions[3*i] = p[0]
		ps.Positions[3*i+1] = p[1]
		ps.Positions[3*i+2] = p[2]
		ps.Valid[i] = true
	}

	grid, err := Build(ps, cell)
	require.NoError(t, err)
	require.Len(t, grid.NeighborIndices(center, cell), len(dirs))
}

func TestGrid_EarlyStop(t *testing.T) {
	ps := randomSet(t, 200, 3)
	grid, err := Build(ps, 0.5)
	require.NoError(t, err)

	visits := 0
	grid.Neighbors(mgl32.Vec3{}, 3, func(int32, float32) bool {
		visits++
		return false
	})
	require.LessOrEqual(t, visits, 1)
}

func TestBuild_RejectsBadCellSize(t *testing.T) {
	_, err := Build(nil, 0)
	require.ErrorIs(t, err, ErrInvalidCellSize)
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = Build(nil, -0.5)
	require.Error(t, err)
}
