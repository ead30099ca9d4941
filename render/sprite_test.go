package render

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livedepth/livedepth/config"
)

func alphaAt(t *SpriteTable, key SpriteKey, px, py int) uint8 {
	return t.Mask(key).AlphaAt(px, py).A
}

func TestMask_CachedByKey(t *testing.T) {
	table := NewSpriteTable()
	key := SpriteKey{Shape: config.SpriteCircle, Feather: 0.25}

	a := table.Mask(key)
	b := table.Mask(key)
	require.Same(t, a, b)

	c := table.Mask(SpriteKey{Shape: config.SpriteCircle, Feather: 0.5})
	require.NotSame(t, a, c)
}

func TestMask_Circle(t *testing.T) {
	table := NewSpriteTable()
	key := SpriteKey{Shape: config.SpriteCircle, Feather: 0.25}

	mid := SpriteMaskSize / 2
	require.Equal(t, uint8(255), alphaAt(table, key, mid, mid))
	// corners lie outside the unit circle
	require.Equal(t, uint8(0), alphaAt(table, key, 0, 0))
	require.Equal(t, uint8(0), alphaAt(table, key, SpriteMaskSize-1, SpriteMaskSize-1))
	// edge midpoint sits on the circle boundary, fully feathered out
	require.Less(t, alphaAt(table, key, SpriteMaskSize-1, mid), uint8(64))
}

func TestMask_SquareFillsCorners(t *testing.T) {
	table := NewSpriteTable()
	key := SpriteKey{Shape: config.SpriteSquare, Feather: 0.1}

	mid := SpriteMaskSize / 2
	require.Equal(t, uint8(255), alphaAt(table, key, mid, mid))
	// near-corner pixels stay mostly opaque, unlike the circle
	require.Greater(t, alphaAt(table, key, 4, 4), uint8(200))
}

func TestMask_CrossArms(t *testing.T) {
	table := NewSpriteTable()
	key := SpriteKey{Shape: config.SpriteCross, Feather: 0.05, Thickness: 0.3}

	mid := SpriteMaskSize / 2
	// center and arm pixels are opaque
	require.Equal(t, uint8(255), alphaAt(table, key, mid, mid))
	require.Equal(t, uint8(255), alphaAt(table, key, 2, mid))
	require.Equal(t, uint8(255), alphaAt(table, key, mid, 2))
	// diagonal quadrant interiors are empty
	require.Equal(t, uint8(0), alphaAt(table, key, 8, 8))
}

func TestMask_ZeroFeatherHardEdge(t *testing.T) {
	table := NewSpriteTable()
	key := SpriteKey{Shape: config.SpriteCircle, Feather: 0}

	mid := SpriteMaskSize / 2
	require.Equal(t, uint8(255), alphaAt(table, key, mid, mid))
	require.Equal(t, uint8(0), alphaAt(table, key, 0, mid/4))
}
