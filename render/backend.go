// Package render defines the drawing capability the viewer consumes:
// point/triangle primitives with per-vertex color and a configurable point
// sprite. Concrete backends live in subpackages; the session never touches
// GPU types directly.
package render

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/livedepth/livedepth/config"
)

// PointVertex is one renderable point. Matches the instance layout the
// wgpu backend uploads verbatim.
type PointVertex struct {
	Pos   [3]float32
	Size  float32
	Color [4]float32
}

// PointStyle selects the sprite used for every point in a draw.
type PointStyle struct {
	Shape     config.SpriteShape
	Feather   float32 // 0..1, fraction of the sprite radius faded out
	Thickness float32 // 0..1, arm width for the cross shape
	Size      float32 // world-space point size
}

// Camera is the view the backend draws with.
type Camera struct {
	View mgl32.Mat4
	Proj mgl32.Mat4
}

// Backend is the rendering capability. One frame is: UploadPoints (cloud +
// rain packed together), optionally SetHUD, then Draw.
type Backend interface {
	// UploadPoints replaces the point instance buffer for the next Draw.
	UploadPoints(points []PointVertex)

	// SetHUD replaces the status line overlay. Empty string hides it.
	SetHUD(text string)

	// Draw renders the current buffers. Style changes between draws are
	// cheap unless the sprite parameters changed (mask regeneration).
	Draw(cam Camera, style PointStyle) error

	// Resize reacts to framebuffer size changes.
	Resize(width, height int)

	// Release frees GPU resources. The backend is unusable afterwards.
	Release()
}
