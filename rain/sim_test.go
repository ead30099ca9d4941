package rain

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/livedepth/livedepth/config"
	"github.com/livedepth/livedepth/depth"
	"github.com/livedepth/livedepth/spatial"
)

func baseParams(mode config.HitMode) Params {
	return Params{
		Speed:           1,
		HitMode:         mode,
		CollisionRadius: 0.05,
		FloorY:          -100,
		// effectively no lifetime recycling during a short test
		MaxLifetimeSec: 1e9,
		StickDwellSec:  0.05,
		FlightDwellSec: 0.1,
	}
}

// cloudAt builds a one-point cloud plus its collision grid.
func cloudAt(t *testing.T, p mgl32.Vec3) (*depth.PointSet, *spatial.Grid) {
	t.Helper()
	ps := depth.NewPointSet(1, 1)
	ps.Positions[0] = p[0]
	ps.Positions[1] = p[1]
	ps.Positions[2] = p[2]
	ps.Valid[0] = true
	grid, err := spatial.Build(ps, 0.1)
	require.NoError(t, err)
	return ps, grid
}

func TestStep_FallsWithoutGrid(t *testing.T) {
	s := NewSim(1, baseParams(config.HitStick), 1)
	s.Place(0, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, baseFallVelY, 0})

	s.Step(0.016, nil, nil)
	require.Equal(t, Falling, s.State(0))
	require.Less(t, s.Position(0).Y(), float32(1))
	require.Less(t, s.Velocity(0).Y(), float32(baseFallVelY))
}

func TestCollide_StickZeroesVelocitySameTick(t *testing.T) {
	cloud, grid := cloudAt(t, mgl32.Vec3{})
	s := NewSim(1, baseParams(config.HitStick), 1)
	s.Place(0, mgl32.Vec3{0, 0.045, 0}, mgl32.Vec3{0, baseFallVelY, 0})

	s.Step(0.001, grid, cloud)
	require.Equal(t, Stuck, s.State(0))
	require.Equal(t, mgl32.Vec3{}, s.Velocity(0))
	stuckAt := s.Position(0)

	// stuck particles hold position until the dwell expires
	s.Step(0.01, grid, cloud)
	require.Equal(t, Stuck, s.State(0))
	require.Equal(t, stuckAt, s.Position(0))

	// dwell expiry recycles back to Falling in the spawn volume
	for i := 0; i < 10 && s.State(0) == Stuck; i++ {
		s.Step(0.01, grid, cloud)
	}
	require.Equal(t, Falling, s.State(0))
	require.GreaterOrEqual(t, s.Position(0).Y(), float32(spawnYMin))
	require.LessOrEqual(t, s.Position(0).Y(), float32(spawnYMax))
}

func TestCollide_FlyUp(t *testing.T) {
	cloud, grid := cloudAt(t, mgl32.Vec3{})
	s := NewSim(1, baseParams(config.HitFlyUp), 1)
	s.Place(0, mgl32.Vec3{0, 0.045, 0}, mgl32.Vec3{0, baseFallVelY, 0})

	s.Step(0.001, grid, cloud)
	require.Equal(t, FlyingUp, s.State(0))
	require.Greater(t, s.Velocity(0).Y(), float32(0))

	// no second collision response while airborne
	s.Step(0.001, grid, cloud)
	require.Equal(t, FlyingUp, s.State(0))
}

func TestCollide_FlightDwellRecycles(t *testing.T) {
	cloud, grid := cloudAt(t, mgl32.Vec3{})
	s := NewSim(1, baseParams(config.HitFlyUp), 1)
	s.Place(0, mgl32.Vec3{0, 0.045, 0}, mgl32.Vec3{0, baseFallVelY, 0})

	s.Step(0.001, grid, cloud)
	require.Equal(t, FlyingUp, s.State(0))

	// airborne particles recycle after the flight dwell, not the stick dwell
	for i := 0; i < 20 && s.State(0) == FlyingUp; i++ {
		s.Step(0.01, grid, cloud)
	}
	require.Equal(t, Falling, s.State(0))
	require.GreaterOrEqual(t, s.Position(0).Y(), float32(spawnYMin))
}

func TestCollide_RadialScattersAwayFromCentroid(t *testing.T) {
	cloud, grid := cloudAt(t, mgl32.Vec3{})
	s := NewSim(1, baseParams(config.HitRadial), 1)
	s.Place(0, mgl32.Vec3{0.03, 0.02, 0.01}, mgl32.Vec3{0, baseFallVelY, 0})

	s.Step(0.0001, grid, cloud)
	require.Equal(t, Scattering, s.State(0))

	away := s.Position(0) // centroid is the origin
	require.Greater(t, s.Velocity(0).Dot(away), float32(0),
		"velocity should point away from the centroid")
}

func TestCollide_RandomSpeedBounded(t *testing.T) {
	cloud, grid := cloudAt(t, mgl32.Vec3{})
	s := NewSim(8, baseParams(config.HitRandom), 99)
	for i := 0; i < 8; i++ {
		s.Place(i, mgl32.Vec3{0, 0.045, 0}, mgl32.Vec3{0, baseFallVelY, 0})
	}

	s.Step(0.0001, grid, cloud)
	for i := 0; i < 8; i++ {
		require.Equal(t, Scattering, s.State(i), "particle %d", i)
		speed := s.Velocity(i).Len()
		require.Greater(t, speed, float32(scatterSpeed)*0.45, "particle %d", i)
		require.Less(t, speed, float32(scatterSpeed)*1.55, "particle %d", i)
	}
}

func TestStep_FloorRespawns(t *testing.T) {
	p := baseParams(config.HitStick)
	p.FloorY = -1
	s := NewSim(1, p, 5)
	s.Place(0, mgl32.Vec3{0, -0.99, 0}, mgl32.Vec3{0, -5, 0})

	s.Step(0.016, nil, nil)
	require.Equal(t, Falling, s.State(0))
	require.GreaterOrEqual(t, s.Position(0).Y(), float32(spawnYMin))
	require.Equal(t, float32(baseFallVelY), s.Velocity(0).Y())
}

func TestInstances_StableCountAndStickBrightness(t *testing.T) {
	cloud, grid := cloudAt(t, mgl32.Vec3{})
	s := NewSim(3, baseParams(config.HitStick), 2)
	s.Place(0, mgl32.Vec3{0, 0.045, 0}, mgl32.Vec3{0, baseFallVelY, 0})
	s.Step(0.001, grid, cloud)
	require.Equal(t, Stuck, s.State(0))

	verts := s.Instances(nil, 0.01)
	require.Len(t, verts, 3)
	for _, v := range verts {
		require.Equal(t, float32(0.01), v.Size)
	}
	// the stuck particle renders brighter than a falling one
	require.Greater(t, verts[0].Color[0], verts[1].Color[0])
	require.Equal(t, float32(1), verts[0].Color[3])
}

func TestSetParams_TakesEffectNextStep(t *testing.T) {
	cloud, grid := cloudAt(t, mgl32.Vec3{})
	s := NewSim(1, baseParams(config.HitStick), 1)
	s.SetParams(baseParams(config.HitFlyUp))
	s.Place(0, mgl32.Vec3{0, 0.045, 0}, mgl32.Vec3{0, baseFallVelY, 0})

	s.Step(0.001, grid, cloud)
	require.Equal(t, FlyingUp, s.State(0))
}
