package depth

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Unproject converts a frame's depth grid into camera-space points.
//
// For pixel (u,v) with depth Z: X=(u-cx)/fx*Z, Y=(v-cy)/fy*Z. The stored
// render position is (X, -Y, -Z) so the viewer looks down the negative Z
// axis with +Y up. Colors are normalized to [0,1].
//
// dst is reused when it matches the frame's resolution; otherwise a new set
// is allocated. Invalid depth (non-finite or <= 0) keeps its slot with a
// zero position and Valid=false.
func Unproject(f *Frame, dst *PointSet) *PointSet {
	if dst == nil || dst.Width != f.Width || dst.Height != f.Height {
		dst = NewPointSet(f.Width, f.Height)
	}

	i := 0
	for v := 0; v < f.Height; v++ {
		for u := 0; u < f.Width; u++ {
			z := f.Depth[i]
			if !isFinite(z) || z <= 0 {
				dst.Valid[i] = false
				dst.setPosition(i, mgl32.Vec3{})
			} else {
				x := (float32(u) - f.Cx) / f.Fx * z
				y := (float32(v) - f.Cy) / f.Fy * z
				dst.setPosition(i, mgl32.Vec3{x, -y, -z})
				dst.Valid[i] = true
			}
			dst.Colors[3*i] = float32(f.RGB[3*i]) / 255.0
			dst.Colors[3*i+1] = float32(f.RGB[3*i+1]) / 255.0
			dst.Colors[3*i+2] = float32(f.RGB[3*i+2]) / 255.0
			i++
		}
	}
	return dst
}

// ProjectBack inverts Unproject for a single render-space position: it
// undoes the (X,-Y,-Z) flip and rederives (u, v, Z) from the intrinsics.
// Exposed for round-trip verification.
func ProjectBack(p mgl32.Vec3, in Intrinsics) (u, v, z float32) {
	z = -p.Z()
	x := p.X()
	y := -p.Y()
	u = x/z*in.Fx + in.Cx
	v = y/z*in.Fy + in.Cy
	return u, v, z
}

func isFinite(f float32) bool {
	f64 := float64(f)
	return !math.IsNaN(f64) && !math.IsInf(f64, 0)
}
