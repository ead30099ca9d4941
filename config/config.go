package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is wrapped by every validation failure so callers can
// test the whole class with errors.Is.
var ErrInvalidConfig = errors.New("invalid config")

// HitMode selects what a rain particle does on its first collision with the
// point cloud.
type HitMode string

const (
	HitStick  HitMode = "stick"
	HitFlyUp  HitMode = "flyup"
	HitRadial HitMode = "radial"
	HitRandom HitMode = "random"
)

// SpriteShape selects the point sprite mask.
type SpriteShape string

const (
	SpriteSquare SpriteShape = "square"
	SpriteCircle SpriteShape = "circle"
	SpriteCross  SpriteShape = "cross"
)

// Stream settings for the depth producer connection.
type Stream struct {
	URL              string  `toml:"url"`
	ReconnectMinSec  float64 `toml:"reconnect_min_sec"`
	ReconnectMaxSec  float64 `toml:"reconnect_max_sec"`
	ReadLimitBytes   int64   `toml:"read_limit_bytes"`
	HandshakeTimeout float64 `toml:"handshake_timeout_sec"`
}

// Rain tunables. The control panel writes these; the session reads them.
type Rain struct {
	ParticleCount   int     `toml:"particle_count"`
	Speed           float32 `toml:"speed"`
	HitMode         HitMode `toml:"hit_mode"`
	CollisionRadius float32 `toml:"collision_radius"`
	CellSize        float32 `toml:"cell_size"`
	FloorY          float32 `toml:"floor_y"`
	MaxLifetimeSec  float32 `toml:"max_lifetime_sec"`
	StickDwellSec   float32 `toml:"stick_dwell_sec"`
	FlightDwellSec  float32 `toml:"flight_dwell_sec"`
}

// Tween window bounds in milliseconds.
type Tween struct {
	MinWindowMs float64 `toml:"min_window_ms"`
	MaxWindowMs float64 `toml:"max_window_ms"`
}

// Export tunables for mesh reconstruction.
type Export struct {
	Stride  int     `toml:"stride"`
	MaxEdge float32 `toml:"max_edge"`
	Dir     string  `toml:"dir"`
}

// Sprite style for point rendering.
type Sprite struct {
	Shape     SpriteShape `toml:"shape"`
	Feather   float32     `toml:"feather"`
	Thickness float32     `toml:"thickness"`
	Size      float32     `toml:"size"`
}

type Window struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
}

// Config enumerates every tunable of the viewer. All fields have documented
// defaults; Validate rejects values outside their range instead of silently
// clamping.
type Config struct {
	Debug  bool   `toml:"debug"`
	Stream Stream `toml:"stream"`
	Rain   Rain   `toml:"rain"`
	Tween  Tween  `toml:"tween"`
	Export Export `toml:"export"`
	Sprite Sprite `toml:"sprite"`
	Window Window `toml:"window"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Stream: Stream{
			URL:              "ws://localhost:8765",
			ReconnectMinSec:  0.5,
			ReconnectMaxSec:  8.0,
			ReadLimitBytes:   64 << 20,
			HandshakeTimeout: 10.0,
		},
		Rain: Rain{
			ParticleCount:   2000,
			Speed:           1.0,
			HitMode:         HitStick,
			CollisionRadius: 0.05,
			CellSize:        0.1,
			FloorY:          -3.0,
			MaxLifetimeSec:  12.0,
			StickDwellSec:   1.5,
			FlightDwellSec:  3.0,
		},
		Tween: Tween{
			MinWindowMs: 80,
			MaxWindowMs: 240,
		},
		Export: Export{
			Stride:  2,
			MaxEdge: 0.25,
			Dir:     ".",
		},
		Sprite: Sprite{
			Shape:     SpriteCircle,
			Feather:   0.25,
			Thickness: 0.3,
			Size:      0.012,
		},
		Window: Window{
			Width:  1280,
			Height: 720,
			Title:  "LiveDepth",
		},
	}
}

// Load reads a TOML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Stream.URL == "" {
		return fmt.Errorf("%w: stream.url is empty", ErrInvalidConfig)
	}
	if c.Rain.ParticleCount <= 0 {
		return fmt.Errorf("%w: rain.particle_count must be > 0, got %d", ErrInvalidConfig, c.Rain.ParticleCount)
	}
	if c.Rain.CellSize <= 0 {
		return fmt.Errorf("%w: rain.cell_size must be > 0, got %g", ErrInvalidConfig, c.Rain.CellSize)
	}
	if c.Rain.CollisionRadius <= 0 {
		return fmt.Errorf("%w: rain.collision_radius must be > 0, got %g", ErrInvalidConfig, c.Rain.CollisionRadius)
	}
	// the grid's one-cell neighbor scan is exact only within this bound
	if c.Rain.CollisionRadius > c.Rain.CellSize {
		return fmt.Errorf("%w: rain.collision_radius %g exceeds rain.cell_size %g", ErrInvalidConfig, c.Rain.CollisionRadius, c.Rain.CellSize)
	}
	switch c.Rain.HitMode {
	case HitStick, HitFlyUp, HitRadial, HitRandom:
	default:
		return fmt.Errorf("%w: rain.hit_mode %q", ErrInvalidConfig, c.Rain.HitMode)
	}
	if c.Rain.StickDwellSec <= 0 || c.Rain.FlightDwellSec <= 0 {
		return fmt.Errorf("%w: rain dwell times must be > 0, got stick %g flight %g", ErrInvalidConfig, c.Rain.StickDwellSec, c.Rain.FlightDwellSec)
	}
	if c.Tween.MinWindowMs <= 0 || c.Tween.MaxWindowMs < c.Tween.MinWindowMs {
		return fmt.Errorf("%w: tween window bounds [%g, %g]", ErrInvalidConfig, c.Tween.MinWindowMs, c.Tween.MaxWindowMs)
	}
	if c.Export.Stride < 1 {
		return fmt.Errorf("%w: export.stride must be >= 1, got %d", ErrInvalidConfig, c.Export.Stride)
	}
	if c.Export.MaxEdge <= 0 {
		return fmt.Errorf("%w: export.max_edge must be > 0, got %g", ErrInvalidConfig, c.Export.MaxEdge)
	}
	switch c.Sprite.Shape {
	case SpriteSquare, SpriteCircle, SpriteCross:
	default:
		return fmt.Errorf("%w: sprite.shape %q", ErrInvalidConfig, c.Sprite.Shape)
	}
	if c.Sprite.Feather < 0 || c.Sprite.Feather > 1 {
		return fmt.Errorf("%w: sprite.feather must be in [0,1], got %g", ErrInvalidConfig, c.Sprite.Feather)
	}
	if c.Sprite.Thickness <= 0 || c.Sprite.Thickness > 1 {
		return fmt.Errorf("%w: sprite.thickness must be in (0,1], got %g", ErrInvalidConfig, c.Sprite.Thickness)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	return nil
}
