package render

import (
	"image"
	"image/color"
	"math"

	"github.com/livedepth/livedepth/config"
)

// SpriteMaskSize is the side length of every generated mask bitmap.
const SpriteMaskSize = 64

// SpriteKey identifies one generated mask. Masks are pure functions of the
// key, so they are cached and regenerated only when the parameters change.
type SpriteKey struct {
	Shape     config.SpriteShape
	Feather   float32
	Thickness float32
}

// SpriteTable caches generated sprite masks by parameter tuple.
type SpriteTable struct {
	masks map[SpriteKey]*image.Alpha
}

func NewSpriteTable() *SpriteTable {
	return &SpriteTable{masks: make(map[SpriteKey]*image.Alpha)}
}

// Mask returns the alpha bitmap for the given sprite parameters, generating
// it on first use.
func (t *SpriteTable) Mask(key SpriteKey) *image.Alpha {
	if m, ok := t.masks[key]; ok {
		return m
	}
	m := generateMask(key)
	t.masks[key] = m
	return m
}

// generateMask rasterizes the sprite shape into an alpha bitmap. Distances
// are normalized so (0,0) is the sprite center and 1 the half-extent.
func generateMask(key SpriteKey) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, SpriteMaskSize, SpriteMaskSize))
	feather := float64(key.Feather)
	if feather < 1e-3 {
		feather = 1e-3
	}
	thickness := float64(key.Thickness)

	for py := 0; py < SpriteMaskSize; py++ {
		for px := 0; px < SpriteMaskSize; px++ {
			// pixel center in [-1,1]
			x := (float64(px)+0.5)/(SpriteMaskSize/2) - 1
			y := (float64(py)+0.5)/(SpriteMaskSize/2) - 1

			var d float64 // signed distance to the shape edge, positive outside
			switch key.Shape {
			case config.SpriteCircle:
				d = math.Hypot(x, y) - 1
			case config.SpriteCross:
				// two axis-aligned bars of half-width `thickness`
				dx := math.Abs(x) - thickness
				dy := math.Abs(y) - thickness
				d = math.Min(dx, dy)
			default: // square
				d = math.Max(math.Abs(x), math.Abs(y)) - 1
			}

			// feather maps [-feather, 0] to [1, 0] alpha
			a := -d / feather
			if a > 1 {
				a = 1
			}
			if a < 0 {
				a = 0
			}
			m.SetAlpha(px, py, color.Alpha{A: uint8(a*255 + 0.5)})
		}
	}
	return m
}
