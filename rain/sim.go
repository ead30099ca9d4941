// Package rain advances a fixed pool of particles falling onto the point
// cloud, using the spatial grid for collision queries against the latest
// published set.
package rain

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/livedepth/livedepth/config"
	"github.com/livedepth/livedepth/depth"
	"github.com/livedepth/livedepth/render"
	"github.com/livedepth/livedepth/spatial"
)

// State of a particle. The only transitions are
// Falling -> {Stuck | FlyingUp | Scattering} on first collision, and any
// terminal state -> Falling through respawn.
type State uint8

const (
	Falling State = iota
	Stuck
	FlyingUp
	Scattering
)

const (
	gravity      = 9.81
	baseFallVelY = -1.2
	upImpulse    = 2.5
	scatterSpeed = 1.8
	// stuck particles render brighter than their base color
	stickBrightness = 1.6
	// spawn volume above the scene
	spawnYMin, spawnYMax = 1.5, 3.0
	spawnXZ              = 2.0
)

// Params are the live tunables of the simulation, mirrored from
// config.Rain. Swappable between steps via SetParams.
type Params struct {
	Speed           float32
	HitMode         config.HitMode
	CollisionRadius float32
	FloorY          float32
	MaxLifetimeSec  float32
	StickDwellSec   float32
	FlightDwellSec  float32
}

// ParamsFromConfig maps the config section onto simulation parameters.
func ParamsFromConfig(rc config.Rain) Params {
	return Params{
		Speed:           rc.Speed,
		HitMode:         rc.HitMode,
		CollisionRadius: rc.CollisionRadius,
		FloorY:          rc.FloorY,
		MaxLifetimeSec:  rc.MaxLifetimeSec,
		StickDwellSec:   rc.StickDwellSec,
		FlightDwellSec:  rc.FlightDwellSec,
	}
}

// Sim is a fixed-size particle pool with stable indices; particles recycle
// in place instead of being swap-removed.
type Sim struct {
	params Params
	rng    *rand.Rand

	pos      []mgl32.Vec3
	vel      []mgl32.Vec3
	color    [][4]float32
	state    []State
	stateAge []float32
	age      []float32

	// centroid of the cloud the grid was built from, for radial scatter
	centroid    mgl32.Vec3
	hasCentroid bool
	cloud       *depth.PointSet
}

// NewSim creates a pool of n particles, all falling from random spawn
// positions. The seed makes tests deterministic.
func NewSim(n int, params Params, seed int64) *Sim {
	s := &Sim{
		params:   params,
		rng:      rand.New(rand.NewSource(seed)),
		pos:      make([]mgl32.Vec3, n),
		vel:      make([]mgl32.Vec3, n),
		color:    make([][4]float32, n),
		state:    make([]State, n),
		stateAge: make([]float32, n),
		age:      make([]float32, n),
	}
	for i := range s.pos {
		s.respawn(i)
		// stagger initial ages so the pool does not recycle in lockstep
		s.age[i] = s.rng.Float32() * params.MaxLifetimeSec
	}
	return s
}

func (s *Sim) Len() int { return len(s.pos) }

// SetParams swaps the live tunables; takes effect on the next Step.
func (s *Sim) SetParams(p Params) { s.params = p }

// State returns the state of particle i, for tests and the HUD.
func (s *Sim) State(i int) State { return s.state[i] }

// Velocity returns the velocity of particle i.
func (s *Sim) Velocity(i int) mgl32.Vec3 { return s.vel[i] }

// Position returns the position of particle i.
func (s *Sim) Position(i int) mgl32.Vec3 { return s.pos[i] }

// Place moves a particle explicitly. Test hook.
func (s *Sim) Place(i int, pos, vel mgl32.Vec3) {
	s.pos[i] = pos
	s.vel[i] = vel
}

// Step advances the simulation by dt seconds. grid must have been built
// from cloud; both may be nil before the first frame, in which case
// particles just fall.
func (s *Sim) Step(dt float32, grid *spatial.Grid, cloud *depth.PointSet) {
	if dt <= 0 {
		return
	}
	if cloud != s.cloud {
		s.cloud = cloud
		s.hasCentroid = false
		if cloud != nil {
			s.centroid, s.hasCentroid = cloud.Centroid()
		}
	}

	p := s.params
	for i := range s.pos {
		s.age[i] += dt
		s.stateAge[i] += dt

		switch s.state[i] {
		case Falling:
			s.vel[i][1] -= gravity * p.Speed * dt
		case Stuck:
			// dwell in place, then recycle
			if s.stateAge[i] >= p.StickDwellSec {
				s.respawn(i)
				continue
			}
		case FlyingUp, Scattering:
			// ballistic after the impulse
			s.vel[i][1] -= gravity * p.Speed * dt
			if s.stateAge[i] >= p.FlightDwellSec {
				s.respawn(i)
				continue
			}
		}

		s.pos[i] = s.pos[i].Add(s.vel[i].Mul(dt))

		if s.state[i] == Falling && grid != nil {
			if grid.HasNeighbor(s.pos[i], p.CollisionRadius) {
				s.collide(i)
			}
		}

		if s.pos[i][1] < p.FloorY || s.age[i] >= p.MaxLifetimeSec {
			s.respawn(i)
		}
	}
}

// collide applies the configured hit behavior on the tick a falling
// particle first enters the collision radius.
func (s *Sim) collide(i int) {
	p := s.params
	switch p.HitMode {
	case config.HitFlyUp:
		s.vel[i] = mgl32.Vec3{0, upImpulse * p.Speed, 0}
		s.setState(i, FlyingUp)
	case config.HitRadial:
		dir := mgl32.Vec3{0, 1, 0}
		if s.hasCentroid {
			away := s.pos[i].Sub(s.centroid)
			if away.Len() > 1e-6 {
				dir = away.Normalize()
			}
		}
		s.vel[i] = dir.Mul(scatterSpeed * p.Speed)
		s.setState(i, Scattering)
	case config.HitRandom:
		theta := s.rng.Float64() * 2 * math.Pi
		phi := s.rng.Float64() * math.Pi
		speed := scatterSpeed * p.Speed * (0.5 + s.rng.Float32())
		dir := mgl32.Vec3{
			float32(math.Sin(phi) * math.Cos(theta)),
			float32(math.Cos(phi)),
			float32(math.Sin(phi) * math.Sin(theta)),
		}
		s.vel[i] = dir.Mul(speed)
		s.setState(i, Scattering)
	default: // stick
		s.vel[i] = mgl32.Vec3{}
		s.setState(i, Stuck)
	}
}

func (s *Sim) setState(i int, st State) {
	s.state[i] = st
	s.stateAge[i] = 0
}

// respawn recycles a particle at a random position above the scene with the
// base fall velocity.
func (s *Sim) respawn(i int) {
	s.pos[i] = mgl32.Vec3{
		(s.rng.Float32()*2 - 1) * spawnXZ,
		spawnYMin + s.rng.Float32()*(spawnYMax-spawnYMin),
		(s.rng.Float32()*2 - 1) * spawnXZ,
	}
	s.vel[i] = mgl32.Vec3{0, baseFallVelY, 0}
	s.color[i] = [4]float32{0.65, 0.78, 1.0, 0.9}
	s.state[i] = Falling
	s.stateAge[i] = 0
	s.age[i] = 0
}

// Instances appends the pool as renderable points. Stuck particles get the
// brightness boost; size comes from the style at draw time.
func (s *Sim) Instances(dst []render.PointVertex, size float32) []render.PointVertex {
	for i := range s.pos {
		c := s.color[i]
		if s.state[i] == Stuck {
			c = [4]float32{
				minf(c[0]*stickBrightness, 1),
				minf(c[1]*stickBrightness, 1),
				minf(c[2]*stickBrightness, 1),
				1,
			}
		}
		dst = append(dst, render.PointVertex{
			Pos:   [3]float32{s.pos[i][0], s.pos[i][1], s.pos[i][2]},
			Size:  size,
			Color: c,
		})
	}
	return dst
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
